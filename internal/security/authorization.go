package security

import (
	"log/slog"

	"github.com/aryan0dhankhar/societyhub/internal/domain"
	"github.com/aryan0dhankhar/societyhub/internal/security/auth"
)

// Permission represents an action permission
type Permission string

const (
	PermManageFlats    Permission = "manage_flats"
	PermListFlats      Permission = "list_flats"
	PermViewSociety    Permission = "view_society"
	PermViewProfile    Permission = "view_profile"
	PermEditProfile    Permission = "edit_profile"
	PermChangePassword Permission = "change_password"
)

// AccountPermissions maps account types to their permissions
var AccountPermissions = map[auth.AccountType][]Permission{
	auth.AccountSociety: {
		PermManageFlats,
		PermListFlats,
		PermViewSociety,
		PermChangePassword,
	},
	auth.AccountResident: {
		PermViewProfile,
		PermEditProfile,
		PermChangePassword,
	},
}

var errForbidden = &domain.Error{Kind: domain.KindAuth, Code: "forbidden", Message: "access denied"}

// AuthorizationService handles authorization checks
type AuthorizationService struct {
	logger *slog.Logger
}

// NewAuthorizationService creates a new authorization service
func NewAuthorizationService(logger *slog.Logger) *AuthorizationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationService{
		logger: logger,
	}
}

// HasPermission checks if an account type has a specific permission
func (as *AuthorizationService) HasPermission(kind auth.AccountType, permission Permission) bool {
	for _, p := range AccountPermissions[kind] {
		if p == permission {
			return true
		}
	}
	return false
}

// Authorize validates that the session may perform permission
func (as *AuthorizationService) Authorize(claims *auth.Claims, permission Permission) error {
	if claims == nil {
		return domain.ErrInvalidCredentials.WithMessage("missing session")
	}
	if !as.HasPermission(claims.UserType, permission) {
		as.logger.Warn("permission denied",
			slog.String("account_type", string(claims.UserType)),
			slog.String("permission", string(permission)),
		)
		return errForbidden.WithMessage(string(claims.UserType) + " accounts cannot " + string(permission))
	}
	return nil
}
