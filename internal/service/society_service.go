package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aryan0dhankhar/societyhub/internal/domain"
	"github.com/aryan0dhankhar/societyhub/internal/observability/metrics"
	"github.com/aryan0dhankhar/societyhub/internal/observability/tracing"
	"github.com/aryan0dhankhar/societyhub/internal/security/audit"
	"github.com/aryan0dhankhar/societyhub/internal/security/auth"
	"github.com/aryan0dhankhar/societyhub/internal/security/credential"
)

const (
	minPasswordLength = 8
	// bcrypt rejects inputs longer than 72 bytes
	maxPasswordBytes = 72
	codeAttempts     = 5
)

func checkPassword(label, password string) error {
	if len(password) < minPasswordLength {
		return domain.Validation("%s must be at least %d characters", label, minPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return domain.Validation("%s must be at most %d bytes", label, maxPasswordBytes)
	}
	return nil
}

// RegisterSocietyRequest creates a society and its flat grid. A blank Code
// asks for a generated one, which requires self-registration to be enabled.
type RegisterSocietyRequest struct {
	Code          string
	Name          string
	Email         string
	Password      string
	Wings         int
	FloorsPerWing int
	RoomsPerFloor int
}

// RegisterResult is returned after a successful registration
type RegisterResult struct {
	SocietyID   int64     `json:"society_id"`
	SocietyCode string    `json:"society_code"`
	TotalFlats  int       `json:"total_flats"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
	TokenType   string    `json:"token_type"`
	UserType    string    `json:"user_type"`
}

// SocietyService handles registration, listings and the society profile
type SocietyService struct {
	store            domain.Store
	hasher           *credential.Hasher
	tokens           *auth.TokenManager
	cache            domain.FlatListCache
	audit            *audit.Logger
	selfRegistration bool
	logger           *slog.Logger
}

// NewSocietyService creates a society service. cache may be nil.
func NewSocietyService(
	store domain.Store,
	hasher *credential.Hasher,
	tokens *auth.TokenManager,
	cache domain.FlatListCache,
	auditLogger *audit.Logger,
	selfRegistration bool,
	logger *slog.Logger,
) *SocietyService {
	if logger == nil {
		logger = slog.Default()
	}
	if auditLogger == nil {
		auditLogger = audit.NewLogger(logger)
	}

	return &SocietyService{
		store:            store,
		hasher:           hasher,
		tokens:           tokens,
		cache:            cache,
		audit:            auditLogger,
		selfRegistration: selfRegistration,
		logger:           logger,
	}
}

func (s *SocietyService) validateRegistration(req *RegisterSocietyRequest) error {
	req.Code = strings.TrimSpace(req.Code)
	req.Name = strings.TrimSpace(req.Name)
	req.Email = domain.NormalizeEmail(req.Email)

	if req.Code == "" && !s.selfRegistration {
		return domain.Validation("society code is required")
	}
	if req.Name == "" {
		return domain.Validation("society name is required")
	}
	if !domain.ValidEmail(req.Email) {
		return domain.Validation("invalid email format")
	}
	if err := checkPassword("password", req.Password); err != nil {
		return err
	}
	if req.Wings <= 0 || req.FloorsPerWing <= 0 || req.RoomsPerFloor <= 0 {
		return domain.Validation("wings, floors per wing and rooms per floor must be positive")
	}
	return domain.ValidateGrid(req.Wings, req.FloorsPerWing, req.RoomsPerFloor)
}

// Register creates the society and its whole flat grid atomically and signs
// the admin in
func (s *SocietyService) Register(ctx context.Context, req RegisterSocietyRequest) (result *RegisterResult, err error) {
	ctx, end := tracing.Start(ctx, "SocietyService.Register")
	defer end(&err)

	if err := s.validateRegistration(&req); err != nil {
		metrics.ObserveRegistration("invalid", 0)
		return nil, err
	}

	flatIDs, err := domain.GenerateFlatGrid(req.Wings, req.FloorsPerWing, req.RoomsPerFloor)
	if err != nil {
		return nil, err
	}

	// bcrypt runs before the transaction opens
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, domain.Infra("hash password", err)
	}

	society := &domain.Society{
		Code:          req.Code,
		Name:          req.Name,
		Email:         req.Email,
		PasswordHash:  hash,
		Wings:         req.Wings,
		FloorsPerWing: req.FloorsPerWing,
		RoomsPerFloor: req.RoomsPerFloor,
	}

	var inserted int
	err = s.store.RunInTx(ctx, func(tx domain.Repositories) error {
		if _, err := tx.Societies().GetByEmail(ctx, society.Email); err == nil {
			return domain.ErrDuplicateSociety.WithMessage("email is already registered")
		} else if domain.KindOf(err) != domain.KindNotFound {
			return err
		}

		if society.Code == "" {
			code, err := s.generateCode(ctx, tx)
			if err != nil {
				return err
			}
			society.Code = code
		}

		if err := tx.Societies().Create(ctx, society); err != nil {
			return err
		}

		n, err := tx.Flats().CreateGrid(ctx, society.Code, flatIDs)
		if err != nil {
			return err
		}
		inserted = n
		return nil
	})
	if err != nil {
		metrics.ObserveRegistration(metrics.Result(err), 0)
		s.audit.LogRegistration(ctx, society.Code, "failure", domain.AsError(err).Code)
		if domain.KindOf(err) == domain.KindInfra {
			s.logger.Error("society registration failed", slog.String("error", err.Error()))
		}
		return nil, err
	}

	token, expiresAt, err := s.tokens.GenerateToken(auth.AccountSociety, society.ID, society.Email, society.Code)
	if err != nil {
		return nil, domain.Infra("sign token", err)
	}

	metrics.ObserveRegistration("success", inserted)
	s.audit.LogRegistration(ctx, society.Code, "success", fmt.Sprintf("flats=%d", inserted))
	s.logger.Info("society registered",
		slog.String("society_code", society.Code),
		slog.Int("total_flats", inserted),
	)

	return &RegisterResult{
		SocietyID:   society.ID,
		SocietyCode: society.Code,
		TotalFlats:  inserted,
		Token:       token,
		ExpiresAt:   expiresAt,
		TokenType:   "Bearer",
		UserType:    string(auth.AccountSociety),
	}, nil
}

// generateCode picks an unused SOC-prefixed code. The unique constraint still
// guards the race between this check and the insert.
func (s *SocietyService) generateCode(ctx context.Context, tx domain.Repositories) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code, err := newSocietyCode()
		if err != nil {
			return "", domain.Infra("generate society code", err)
		}
		_, err = tx.Societies().GetByCode(ctx, code)
		if domain.KindOf(err) == domain.KindNotFound {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", domain.ErrDuplicateSociety.WithMessage("could not allocate a society code")
}

func newSocietyCode() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "SOC" + hex.EncodeToString(b), nil
}

// ListFlatsWithDetails returns every flat of the society with its owner and
// tenant, served from the cache when possible
func (s *SocietyService) ListFlatsWithDetails(ctx context.Context, societyCode string) (flats []*domain.FlatDetails, err error) {
	ctx, end := tracing.Start(ctx, "SocietyService.ListFlatsWithDetails")
	defer end(&err)

	if strings.TrimSpace(societyCode) == "" {
		return nil, domain.Validation("society code is required")
	}

	var generation uint64
	if s.cache != nil {
		cached, gen, ok := s.cache.Get(ctx, societyCode)
		if ok {
			metrics.ObserveFlatCache("hit")
			return cached, nil
		}
		metrics.ObserveFlatCache("miss")
		generation = gen
	}

	flats, err = s.store.Flats().ListWithOccupants(ctx, societyCode)
	if err != nil {
		return nil, err
	}

	// a write committed since Get has moved the generation on and Set drops
	// this listing
	if s.cache != nil {
		s.cache.Set(ctx, societyCode, generation, flats)
	}
	return flats, nil
}

// SocietyProfile is the public view of a society
type SocietyProfile struct {
	ID            int64     `json:"id"`
	Code          string    `json:"society_code"`
	Name          string    `json:"society_name"`
	Email         string    `json:"email"`
	Wings         int       `json:"no_of_wings"`
	FloorsPerWing int       `json:"floor_per_wing"`
	RoomsPerFloor int       `json:"rooms_per_floor"`
	TotalFlats    int       `json:"total_flats"`
	CreatedAt     time.Time `json:"created_at"`
}

// Profile returns the society identified by the admin's token
func (s *SocietyService) Profile(ctx context.Context, id int64) (*SocietyProfile, error) {
	society, err := s.store.Societies().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &SocietyProfile{
		ID:            society.ID,
		Code:          society.Code,
		Name:          society.Name,
		Email:         society.Email,
		Wings:         society.Wings,
		FloorsPerWing: society.FloorsPerWing,
		RoomsPerFloor: society.RoomsPerFloor,
		TotalFlats:    society.TotalFlats(),
		CreatedAt:     society.CreatedAt,
	}, nil
}
