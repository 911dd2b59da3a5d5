package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aryan0dhankhar/societyhub/internal/domain"
	"github.com/aryan0dhankhar/societyhub/internal/observability/tracing"
)

// ResidentProfile is what a resident sees about themselves
type ResidentProfile struct {
	*domain.Resident
	MustChangePassword bool `json:"must_change_password"`
}

// ResidentService serves a resident's own profile
type ResidentService struct {
	store  domain.Store
	cache  domain.FlatListCache
	logger *slog.Logger
}

// NewResidentService creates a resident service. cache may be nil.
func NewResidentService(store domain.Store, cache domain.FlatListCache, logger *slog.Logger) *ResidentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResidentService{store: store, cache: cache, logger: logger}
}

// Profile returns the resident behind the token
func (s *ResidentService) Profile(ctx context.Context, id int64) (*ResidentProfile, error) {
	res, err := s.store.Residents().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ResidentProfile{
		Resident:           res,
		MustChangePassword: res.Credential.State() == domain.StateBootstrap,
	}, nil
}

// UpdateProfile edits contact fields. Email stays unique across all
// residents; credentials are never touched.
func (s *ResidentService) UpdateProfile(ctx context.Context, id int64, c domain.Contact) (profile *ResidentProfile, err error) {
	ctx, end := tracing.Start(ctx, "ResidentService.UpdateProfile")
	defer end(&err)

	c = domain.Contact{
		Name:    strings.TrimSpace(c.Name),
		Email:   domain.NormalizeEmail(c.Email),
		Phone:   strings.TrimSpace(c.Phone),
		Address: strings.TrimSpace(c.Address),
	}
	if c.Empty() {
		return nil, domain.Validation("resident name and email are required")
	}
	if err := domain.ValidateContact(roleResident, &c); err != nil {
		return nil, err
	}

	var updated *domain.Resident
	err = s.store.RunInTx(ctx, func(tx domain.Repositories) error {
		existing, err := tx.Residents().GetByEmail(ctx, c.Email)
		switch {
		case err == nil && existing.ID != id:
			return domain.ErrDuplicateEmail
		case err != nil && domain.KindOf(err) != domain.KindNotFound:
			return err
		}

		if err := tx.Residents().UpdateContact(ctx, id, c); err != nil {
			return err
		}
		updated, err = tx.Residents().GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, updated.SocietyCode)
	}
	s.logger.Info("resident profile updated",
		slog.Int64("resident_id", id),
		slog.String("society_code", updated.SocietyCode),
	)

	return &ResidentProfile{
		Resident:           updated,
		MustChangePassword: updated.Credential.State() == domain.StateBootstrap,
	}, nil
}
