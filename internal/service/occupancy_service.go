package service

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aryan0dhankhar/societyhub/internal/domain"
	"github.com/aryan0dhankhar/societyhub/internal/observability/metrics"
	"github.com/aryan0dhankhar/societyhub/internal/observability/tracing"
	"github.com/aryan0dhankhar/societyhub/internal/security/audit"
	"github.com/aryan0dhankhar/societyhub/internal/security/credential"
)

const (
	roleOwner    = "owner"
	roleResident = "resident"
)

// PersonInput is the owner or tenant block of an occupancy edit. ID links an
// existing resident; contact fields update it in place or, without an ID,
// create a new resident.
type PersonInput struct {
	ID      *int64 `json:"id,omitempty"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func (p *PersonInput) contact() *domain.Contact {
	if p == nil {
		return nil
	}
	c := &domain.Contact{
		Name:    strings.TrimSpace(p.Name),
		Email:   domain.NormalizeEmail(p.Email),
		Phone:   strings.TrimSpace(p.Phone),
		Address: strings.TrimSpace(p.Address),
	}
	if c.Empty() {
		return nil
	}
	return c
}

func (p *PersonInput) linkedID() *int64 {
	if p == nil || p.ID == nil || *p.ID <= 0 {
		return nil
	}
	id := *p.ID
	return &id
}

// CreateFlatRequest adds a flat outside the generated grid
type CreateFlatRequest struct {
	SocietyCode string
	FlatID      string
	Occupancy   domain.Occupancy
	Owner       *PersonInput
	Resident    *PersonInput
}

// UpsertOccupancyRequest edits the occupancy and people of an existing flat
type UpsertOccupancyRequest struct {
	SocietyCode string
	FlatRowID   int64
	Occupancy   domain.Occupancy
	Owner       *PersonInput
	Resident    *PersonInput
}

// ProvisionedCredential is a bootstrap secret created by this call. It is
// returned once so the administrator can deliver it out of band.
type ProvisionedCredential struct {
	ResidentID      int64  `json:"resident_id"`
	Role            string `json:"role"`
	Email           string `json:"email"`
	InitialPassword string `json:"initial_password"`
}

// OccupancyResult is the flat after the write plus its resolved people
type OccupancyResult struct {
	Flat        *domain.Flat            `json:"flat"`
	OwnerID     *int64                  `json:"owner_id"`
	ResidentID  *int64                  `json:"resident_id"`
	Owner       *domain.Resident        `json:"owner"`
	Resident    *domain.Resident        `json:"resident"`
	Provisioned []ProvisionedCredential `json:"provisioned,omitempty"`
}

// OccupancyService assigns owners and tenants to flats
type OccupancyService struct {
	store       domain.Store
	provisioner *credential.Provisioner
	cache       domain.FlatListCache
	audit       *audit.Logger
	logger      *slog.Logger
}

// NewOccupancyService creates the occupancy assigner. cache may be nil.
func NewOccupancyService(
	store domain.Store,
	provisioner *credential.Provisioner,
	cache domain.FlatListCache,
	auditLogger *audit.Logger,
	logger *slog.Logger,
) *OccupancyService {
	if logger == nil {
		logger = slog.Default()
	}
	if auditLogger == nil {
		auditLogger = audit.NewLogger(logger)
	}

	return &OccupancyService{
		store:       store,
		provisioner: provisioner,
		cache:       cache,
		audit:       auditLogger,
		logger:      logger,
	}
}

// occupancyInput is the shared shape both entry points reduce to
type occupancyInput struct {
	societyCode string
	occupancy   domain.Occupancy
	owner       *PersonInput
	resident    *PersonInput
	ownerC      *domain.Contact
	residentC   *domain.Contact
}

func (s *OccupancyService) prepare(societyCode string, occupancy domain.Occupancy, owner, resident *PersonInput) (*occupancyInput, error) {
	if strings.TrimSpace(societyCode) == "" {
		return nil, domain.Validation("society code is required")
	}
	if occupancy == "" {
		occupancy = domain.OccupancyVacant
	}
	if !occupancy.Valid() {
		return nil, domain.Validation("occupancy must be one of Vacant, Owner-Occupied or Rented")
	}

	in := &occupancyInput{
		societyCode: societyCode,
		occupancy:   occupancy,
		owner:       owner,
		resident:    resident,
		ownerC:      owner.contact(),
	}
	if err := domain.ValidateContact(roleOwner, in.ownerC); err != nil {
		return nil, err
	}

	// the tenant block only matters while the flat is rented
	if occupancy == domain.OccupancyRented {
		in.residentC = resident.contact()
		if err := domain.ValidateContact(roleResident, in.residentC); err != nil {
			return nil, err
		}
	}

	if in.ownerC != nil && in.residentC != nil && strings.EqualFold(in.ownerC.Email, in.residentC.Email) {
		ownerID, residentID := owner.linkedID(), resident.linkedID()
		if ownerID == nil || residentID == nil || *ownerID != *residentID {
			return nil, domain.ErrDuplicateEmail.WithMessage("owner and resident cannot share an email")
		}
	}
	return in, nil
}

// CreateFlat inserts a new flat and its people in one transaction
func (s *OccupancyService) CreateFlat(ctx context.Context, req CreateFlatRequest) (result *OccupancyResult, err error) {
	ctx, end := tracing.Start(ctx, "OccupancyService.CreateFlat")
	defer end(&err)
	start := time.Now()
	defer func() { metrics.ObserveOccupancyWrite("create_flat", metrics.Result(err), time.Since(start)) }()

	flatID := strings.ToUpper(strings.TrimSpace(req.FlatID))
	if flatID == "" {
		return nil, domain.Validation("flat id is required")
	}
	in, err := s.prepare(req.SocietyCode, req.Occupancy, req.Owner, req.Resident)
	if err != nil {
		return nil, err
	}

	err = s.store.RunInTx(ctx, func(tx domain.Repositories) error {
		if _, err := tx.Societies().GetByCode(ctx, in.societyCode); err != nil {
			return err
		}

		flat := &domain.Flat{SocietyCode: in.societyCode, FlatID: flatID}
		res, err := s.assign(ctx, tx, in, flat, nil, nil)
		if err != nil {
			return err
		}
		if err := tx.Flats().Create(ctx, flat); err != nil {
			return err
		}
		result = res
		return nil
	})

	s.finish(ctx, "create_flat", in.societyCode, flatID, result, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpsertOccupancy updates an existing flat of the caller's society. Without
// an id, a person whose email matches the flat's current owner or tenant is
// that resident, so resubmitting the same request changes nothing and creates
// no residents. A different email provisions a new resident.
func (s *OccupancyService) UpsertOccupancy(ctx context.Context, req UpsertOccupancyRequest) (result *OccupancyResult, err error) {
	ctx, end := tracing.Start(ctx, "OccupancyService.UpsertOccupancy")
	defer end(&err)
	start := time.Now()
	defer func() { metrics.ObserveOccupancyWrite("upsert_occupancy", metrics.Result(err), time.Since(start)) }()

	if req.FlatRowID <= 0 {
		return nil, domain.Validation("flat id is required")
	}
	in, err := s.prepare(req.SocietyCode, req.Occupancy, req.Owner, req.Resident)
	if err != nil {
		return nil, err
	}

	flatLabel := strconv.FormatInt(req.FlatRowID, 10)
	err = s.store.RunInTx(ctx, func(tx domain.Repositories) error {
		flat, err := tx.Flats().GetByID(ctx, req.FlatRowID)
		if err != nil {
			return err
		}
		if flat.SocietyCode != in.societyCode {
			return domain.NotFound("flat")
		}
		flatLabel = flat.FlatID

		res, err := s.assign(ctx, tx, in, flat, flat.OwnerID, flat.ResidentID)
		if err != nil {
			return err
		}
		if err := tx.Flats().Update(ctx, flat); err != nil {
			return err
		}
		result = res
		return nil
	})

	s.finish(ctx, "upsert_occupancy", in.societyCode, flatLabel, result, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// assign runs the duplicate checks and owner/tenant resolution and writes the
// resolved ids onto flat. The caller persists flat.
func (s *OccupancyService) assign(ctx context.Context, tx domain.Repositories, in *occupancyInput, flat *domain.Flat, currentOwner, currentResident *int64) (*OccupancyResult, error) {
	ownerLinked, err := s.linkFor(ctx, tx, in.owner, in.ownerC, currentOwner)
	if err != nil {
		return nil, err
	}
	residentLinked, err := s.linkFor(ctx, tx, in.resident, in.residentC, currentResident)
	if err != nil {
		return nil, err
	}

	// duplicate checks run for every role before anything is written
	if err := s.checkEmail(ctx, tx, in.ownerC, ownerLinked); err != nil {
		return nil, err
	}
	if in.occupancy == domain.OccupancyRented {
		if err := s.checkEmail(ctx, tx, in.residentC, residentLinked); err != nil {
			return nil, err
		}
	}

	result := &OccupancyResult{}

	owner, provisioned, err := s.resolve(ctx, tx, in.societyCode, flat.FlatID, true, in.ownerC, ownerLinked)
	if err != nil {
		return nil, err
	}
	if provisioned != nil {
		result.Provisioned = append(result.Provisioned, *provisioned)
	}

	var tenant *domain.Resident
	if in.occupancy == domain.OccupancyRented {
		tenant, provisioned, err = s.resolve(ctx, tx, in.societyCode, flat.FlatID, false, in.residentC, residentLinked)
		if err != nil {
			return nil, err
		}
		if provisioned != nil {
			result.Provisioned = append(result.Provisioned, *provisioned)
		}
	}

	flat.Occupancy = in.occupancy
	flat.OwnerID = residentID(owner)
	// soft detach: a tenant row outlives the flat leaving Rented
	flat.ResidentID = residentID(tenant)

	result.Flat = flat
	result.OwnerID = flat.OwnerID
	result.ResidentID = flat.ResidentID
	result.Owner = owner
	result.Resident = tenant
	return result, nil
}

// linkFor picks the resident a role edits in place. An explicit id wins. The
// flat's current resident is kept only when no contact is supplied or the
// contact still carries that resident's email; anyone else is a new person.
func (s *OccupancyService) linkFor(ctx context.Context, tx domain.Repositories, p *PersonInput, c *domain.Contact, current *int64) (*int64, error) {
	if id := p.linkedID(); id != nil {
		return id, nil
	}
	if current == nil || c == nil {
		return current, nil
	}

	existing, err := tx.Residents().GetByID(ctx, *current)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return nil, nil
		}
		return nil, err
	}
	if strings.EqualFold(existing.Email, c.Email) {
		return current, nil
	}
	return nil, nil
}

func (s *OccupancyService) checkEmail(ctx context.Context, tx domain.Repositories, c *domain.Contact, linked *int64) error {
	if c == nil {
		return nil
	}
	existing, err := tx.Residents().GetByEmail(ctx, c.Email)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return nil
		}
		return err
	}
	if linked == nil || existing.ID != *linked {
		return domain.ErrDuplicateEmail
	}
	return nil
}

// resolve returns the resident for one role: the linked one (updated in
// place when contact is supplied), a newly provisioned one, or nil.
func (s *OccupancyService) resolve(ctx context.Context, tx domain.Repositories, societyCode, flatID string, isOwner bool, c *domain.Contact, linked *int64) (*domain.Resident, *ProvisionedCredential, error) {
	if linked != nil {
		existing, err := tx.Residents().GetByID(ctx, *linked)
		if err != nil {
			return nil, nil, err
		}
		if existing.SocietyCode != societyCode {
			return nil, nil, domain.NotFound("resident")
		}
		if c == nil {
			return existing, nil, nil
		}
		if err := tx.Residents().UpdateContact(ctx, existing.ID, *c); err != nil {
			return nil, nil, err
		}
		existing.Name, existing.Email, existing.Phone, existing.Address = c.Name, c.Email, c.Phone, c.Address
		return existing, nil, nil
	}

	if c == nil {
		return nil, nil, nil
	}

	secret, err := s.provisioner.ForRole(isOwner)
	if err != nil {
		return nil, nil, domain.Infra("generate bootstrap password", err)
	}

	created := &domain.Resident{
		SocietyCode: societyCode,
		FlatID:      flatID,
		Name:        c.Name,
		Email:       c.Email,
		Phone:       c.Phone,
		Address:     c.Address,
		IsOwner:     isOwner,
		Credential:  domain.Credential{InitialPassword: secret},
	}
	if err := tx.Residents().Create(ctx, created); err != nil {
		return nil, nil, err
	}

	role := roleResident
	if isOwner {
		role = roleOwner
	}
	return created, &ProvisionedCredential{
		ResidentID:      created.ID,
		Role:            role,
		Email:           created.Email,
		InitialPassword: secret,
	}, nil
}

// finish records the outcome once the transaction has settled
func (s *OccupancyService) finish(ctx context.Context, action, societyCode, flatID string, result *OccupancyResult, err error) {
	if err != nil {
		if domain.KindOf(err) == domain.KindInfra {
			s.logger.Error("occupancy write failed",
				slog.String("action", action),
				slog.String("society_code", societyCode),
				slog.String("flat_id", flatID),
				slog.String("error", err.Error()),
			)
		}
		s.audit.LogOccupancy(ctx, societyCode, action, flatID, "failure", domain.AsError(err).Code)
		return
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, societyCode)
	}
	for _, p := range result.Provisioned {
		metrics.ObserveResidentProvisioned(p.Role)
	}
	s.audit.LogOccupancy(ctx, societyCode, action, flatID, "success",
		"occupancy="+string(result.Flat.Occupancy)+" provisioned="+strconv.Itoa(len(result.Provisioned)))
}

func residentID(r *domain.Resident) *int64 {
	if r == nil {
		return nil
	}
	id := r.ID
	return &id
}
