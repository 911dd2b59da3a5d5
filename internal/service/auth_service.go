package service

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/aryan0dhankhar/societyhub/internal/domain"
	"github.com/aryan0dhankhar/societyhub/internal/observability/metrics"
	"github.com/aryan0dhankhar/societyhub/internal/observability/tracing"
	"github.com/aryan0dhankhar/societyhub/internal/security/audit"
	"github.com/aryan0dhankhar/societyhub/internal/security/auth"
	"github.com/aryan0dhankhar/societyhub/internal/security/credential"
)

// AuthService authenticates society admins and residents, issues session
// tokens and performs the one-way bootstrap to hashed password transition
type AuthService struct {
	store  domain.Store
	hasher *credential.Hasher
	tokens *auth.TokenManager
	audit  *audit.Logger
	logger *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService creates a new authentication service
func NewAuthService(
	store domain.Store,
	hasher *credential.Hasher,
	tokens *auth.TokenManager,
	auditLogger *audit.Logger,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	if auditLogger == nil {
		auditLogger = audit.NewLogger(logger)
	}

	return &AuthService{
		store:  store,
		hasher: hasher,
		tokens: tokens,
		audit:  auditLogger,
		logger: logger,
	}
}

// LoginResult represents login response
type LoginResult struct {
	AccountID   int64     `json:"id"`
	Email       string    `json:"email"`
	SocietyCode string    `json:"society_code"`
	UserType    string    `json:"user_type"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
	TokenType   string    `json:"token_type"`
	// MustChangePassword is set while the account is still on its bootstrap credential
	MustChangePassword bool `json:"must_change_password"`
}

// account is the part of a society or resident the auth flows need
type account struct {
	id          int64
	email       string
	societyCode string
	credential  domain.Credential
}

func (s *AuthService) lookupByEmail(ctx context.Context, kind auth.AccountType, email string) (*account, error) {
	switch kind {
	case auth.AccountSociety:
		soc, err := s.store.Societies().GetByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		return &account{id: soc.ID, email: soc.Email, societyCode: soc.Code, credential: soc.Credential()}, nil
	case auth.AccountResident:
		res, err := s.store.Residents().GetByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		return &account{id: res.ID, email: res.Email, societyCode: res.SocietyCode, credential: res.Credential}, nil
	}
	return nil, domain.Validation("unknown account type %q", kind)
}

func (s *AuthService) lookupByID(ctx context.Context, kind auth.AccountType, id int64) (*account, error) {
	switch kind {
	case auth.AccountSociety:
		soc, err := s.store.Societies().GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return &account{id: soc.ID, email: soc.Email, societyCode: soc.Code, credential: soc.Credential()}, nil
	case auth.AccountResident:
		res, err := s.store.Residents().GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return &account{id: res.ID, email: res.Email, societyCode: res.SocietyCode, credential: res.Credential}, nil
	}
	return nil, domain.Validation("unknown account type %q", kind)
}

// verify checks password with the strategy of the credential's state
func (s *AuthService) verify(c domain.Credential, password string) (bool, error) {
	if c.State() == domain.StateBootstrap {
		return credential.MatchBootstrap(password, c.InitialPassword), nil
	}
	return s.hasher.Verify(c.PasswordHash, password)
}

// burnHash spends roughly one bcrypt comparison so unknown emails take as
// long as wrong passwords
func (s *AuthService) burnHash(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("societyhub-timing-equalizer")
	})
	_, _ = s.hasher.Verify(s.dummyHash, password)
}

// Login authenticates an account and returns a session token. Every failure
// is reported as ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, kind auth.AccountType, email, password string) (result *LoginResult, err error) {
	ctx, end := tracing.Start(ctx, "AuthService.Login")
	defer end(&err)

	if !kind.Valid() {
		return nil, domain.Validation("unknown account type %q", kind)
	}
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.Validation("email and password are required")
	}

	acct, err := s.lookupByEmail(ctx, kind, email)
	if err != nil {
		if domain.KindOf(err) != domain.KindNotFound {
			return nil, err
		}
		s.burnHash(password)
		metrics.ObserveLogin(string(kind), "unknown", "failure")
		s.audit.LogLogin(ctx, string(kind), email, "failure")
		return nil, domain.ErrInvalidCredentials
	}

	state := acct.credential.State()
	ok, err := s.verify(acct.credential, password)
	if err != nil {
		s.logger.Error("failed to verify password",
			slog.String("account_type", string(kind)),
			slog.Int64("account_id", acct.id),
			slog.String("error", err.Error()),
		)
		return nil, domain.Infra("verify password", err)
	}
	if !ok {
		metrics.ObserveLogin(string(kind), state.String(), "failure")
		s.audit.LogLogin(ctx, string(kind), email, "failure")
		return nil, domain.ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.GenerateToken(kind, acct.id, acct.email, acct.societyCode)
	if err != nil {
		s.logger.Error("failed to sign token", slog.String("error", err.Error()))
		return nil, domain.Infra("sign token", err)
	}

	metrics.ObserveLogin(string(kind), state.String(), "success")
	s.audit.LogLogin(ctx, string(kind), acct.email, "success")
	s.logger.Info("account logged in",
		slog.String("account_type", string(kind)),
		slog.Int64("account_id", acct.id),
		slog.String("society_code", acct.societyCode),
	)

	return &LoginResult{
		AccountID:          acct.id,
		Email:              acct.email,
		SocietyCode:        acct.societyCode,
		UserType:           string(kind),
		Token:              token,
		ExpiresAt:          expiresAt,
		TokenType:          "Bearer",
		MustChangePassword: state == domain.StateBootstrap,
	}, nil
}

// VerifyToken checks signature and expiry and returns the claims
func (s *AuthService) VerifyToken(tokenString string) (*auth.Claims, error) {
	claims, err := s.tokens.ValidateToken(tokenString)
	if err != nil {
		return nil, domain.ErrInvalidCredentials.WithMessage("invalid or expired token")
	}
	return claims, nil
}

// ChangePassword replaces the account's credential with a hash of
// newPassword. For a resident still on its bootstrap secret this is the only
// path to the Active state, and it cannot be undone.
func (s *AuthService) ChangePassword(ctx context.Context, kind auth.AccountType, id int64, oldPassword, newPassword string) (err error) {
	ctx, end := tracing.Start(ctx, "AuthService.ChangePassword")
	defer end(&err)
	defer func() { metrics.ObservePasswordChange(string(kind), metrics.Result(err)) }()

	actor := string(kind) + ":" + strconv.FormatInt(id, 10)

	if err := checkPassword("new password", newPassword); err != nil {
		return err
	}

	acct, err := s.lookupByID(ctx, kind, id)
	if err != nil {
		return err
	}

	ok, err := s.verify(acct.credential, oldPassword)
	if err != nil {
		return domain.Infra("verify password", err)
	}
	if !ok {
		s.audit.LogPasswordChange(ctx, string(kind), actor, "failure", "incorrect old password")
		return domain.ErrIncorrectOldPassword
	}

	// hash before writing; the update itself is a single conditional statement
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return domain.Infra("hash password", err)
	}

	switch kind {
	case auth.AccountSociety:
		err = s.store.Societies().UpdatePassword(ctx, acct.id, acct.credential, hash)
	default:
		err = s.store.Residents().UpdatePassword(ctx, acct.id, acct.credential, hash)
	}
	if err != nil {
		s.audit.LogPasswordChange(ctx, string(kind), actor, "failure", domain.AsError(err).Code)
		return err
	}

	s.audit.LogPasswordChange(ctx, string(kind), actor, "success", "from="+acct.credential.State().String())
	s.logger.Info("password changed",
		slog.String("account_type", string(kind)),
		slog.Int64("account_id", acct.id),
	)
	return nil
}
