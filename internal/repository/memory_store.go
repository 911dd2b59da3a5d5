package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aryan0dhankhar/societyhub/internal/domain"
)

// MemoryStore is an in-process domain.Store used when no DATABASE_URL is
// configured and by the service tests. It enforces the same uniqueness and
// check constraints as the Postgres schema. Transactions are serialized and
// applied copy-on-commit, so a failed fn leaves no trace.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
	memRepos
}

type memState struct {
	nextID    int64
	societies map[int64]*domain.Society
	flats     map[int64]*domain.Flat
	residents map[int64]*domain.Resident
}

func newMemState() *memState {
	return &memState{
		societies: map[int64]*domain.Society{},
		flats:     map[int64]*domain.Flat{},
		residents: map[int64]*domain.Resident{},
	}
}

func (st *memState) clone() *memState {
	c := &memState{
		nextID:    st.nextID,
		societies: make(map[int64]*domain.Society, len(st.societies)),
		flats:     make(map[int64]*domain.Flat, len(st.flats)),
		residents: make(map[int64]*domain.Resident, len(st.residents)),
	}
	for id, s := range st.societies {
		c.societies[id] = copySociety(s)
	}
	for id, f := range st.flats {
		c.flats[id] = copyFlat(f)
	}
	for id, r := range st.residents {
		c.residents[id] = copyResident(r)
	}
	return c
}

func (st *memState) newID() int64 {
	st.nextID++
	return st.nextID
}

// memView gives repositories access to a state under a lock. Outside a
// transaction the lock is the store mutex; inside one the store mutex is
// already held, so the view uses a no-op lock.
type memView struct {
	lock  sync.Locker
	state func() *memState
}

func (v memView) with(fn func(st *memState) error) error {
	v.lock.Lock()
	defer v.lock.Unlock()
	return fn(v.state())
}

type noopLocker struct{}

func (noopLocker) Lock()   {}
func (noopLocker) Unlock() {}

type memRepos struct {
	societies *memSocietyRepository
	flats     *memFlatRepository
	residents *memResidentRepository
}

func newMemRepos(v memView) memRepos {
	return memRepos{
		societies: &memSocietyRepository{v: v},
		flats:     &memFlatRepository{v: v},
		residents: &memResidentRepository{v: v},
	}
}

func (r memRepos) Societies() domain.SocietyRepository  { return r.societies }
func (r memRepos) Flats() domain.FlatRepository         { return r.flats }
func (r memRepos) Residents() domain.ResidentRepository { return r.residents }

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{state: newMemState()}
	s.memRepos = newMemRepos(memView{lock: &s.mu, state: func() *memState { return s.state }})
	return s
}

// RunInTx runs fn against a private copy of the state and publishes it only
// when fn succeeds and ctx is still live.
func (s *MemoryStore) RunInTx(ctx context.Context, fn func(tx domain.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return domain.Infra("begin transaction", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	tx := newMemRepos(memView{lock: noopLocker{}, state: func() *memState { return work }})
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return domain.Infra("commit transaction", err)
	}

	s.state = work
	return nil
}

// Ping always succeeds
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// --- societies ---

type memSocietyRepository struct{ v memView }

func (r *memSocietyRepository) Create(_ context.Context, society *domain.Society) error {
	return r.v.with(func(st *memState) error {
		for _, s := range st.societies {
			if s.Code == society.Code || strings.EqualFold(s.Email, society.Email) {
				return domain.ErrDuplicateSociety
			}
		}
		society.ID = st.newID()
		society.CreatedAt = time.Now().UTC()
		st.societies[society.ID] = copySociety(society)
		return nil
	})
}

func (r *memSocietyRepository) GetByID(_ context.Context, id int64) (*domain.Society, error) {
	return r.find(func(s *domain.Society) bool { return s.ID == id })
}

func (r *memSocietyRepository) GetByCode(_ context.Context, code string) (*domain.Society, error) {
	return r.find(func(s *domain.Society) bool { return s.Code == code })
}

func (r *memSocietyRepository) GetByEmail(_ context.Context, email string) (*domain.Society, error) {
	return r.find(func(s *domain.Society) bool { return strings.EqualFold(s.Email, email) })
}

func (r *memSocietyRepository) UpdatePassword(_ context.Context, id int64, expected domain.Credential, newHash string) error {
	return r.v.with(func(st *memState) error {
		s, ok := st.societies[id]
		if !ok || s.PasswordHash != expected.PasswordHash {
			return domain.ErrIncorrectOldPassword
		}
		s.PasswordHash = newHash
		return nil
	})
}

func (r *memSocietyRepository) find(match func(*domain.Society) bool) (*domain.Society, error) {
	var found *domain.Society
	err := r.v.with(func(st *memState) error {
		for _, s := range st.societies {
			if match(s) {
				found = copySociety(s)
				return nil
			}
		}
		return domain.NotFound("society")
	})
	return found, err
}

// --- flats ---

type memFlatRepository struct{ v memView }

func (r *memFlatRepository) Create(_ context.Context, flat *domain.Flat) error {
	return r.v.with(func(st *memState) error {
		if flat.Occupancy == "" {
			flat.Occupancy = domain.OccupancyVacant
		}
		if err := st.checkFlat(flat); err != nil {
			return err
		}
		flat.ID = st.newID()
		flat.CreatedAt = time.Now().UTC()
		st.flats[flat.ID] = copyFlat(flat)
		return nil
	})
}

func (r *memFlatRepository) CreateGrid(_ context.Context, societyCode string, flatIDs []string) (int, error) {
	err := r.v.with(func(st *memState) error {
		// validate the whole batch first so a failing grid inserts nothing
		batch := make(map[string]bool, len(flatIDs))
		for _, id := range flatIDs {
			probe := &domain.Flat{SocietyCode: societyCode, FlatID: id, Occupancy: domain.OccupancyVacant}
			if batch[id] {
				return domain.ErrDuplicateFlat
			}
			if err := st.checkFlat(probe); err != nil {
				return err
			}
			batch[id] = true
		}

		now := time.Now().UTC()
		for _, id := range flatIDs {
			f := &domain.Flat{ID: st.newID(), SocietyCode: societyCode, FlatID: id, Occupancy: domain.OccupancyVacant, CreatedAt: now}
			st.flats[f.ID] = f
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(flatIDs), nil
}

func (r *memFlatRepository) GetByID(_ context.Context, id int64) (*domain.Flat, error) {
	var found *domain.Flat
	err := r.v.with(func(st *memState) error {
		f, ok := st.flats[id]
		if !ok {
			return domain.NotFound("flat")
		}
		found = copyFlat(f)
		return nil
	})
	return found, err
}

func (r *memFlatRepository) Update(_ context.Context, flat *domain.Flat) error {
	return r.v.with(func(st *memState) error {
		cur, ok := st.flats[flat.ID]
		if !ok {
			return domain.NotFound("flat")
		}
		next := copyFlat(cur)
		next.Occupancy = flat.Occupancy
		next.OwnerID = copyID(flat.OwnerID)
		next.ResidentID = copyID(flat.ResidentID)
		if err := st.checkLinks(next); err != nil {
			return err
		}
		st.flats[flat.ID] = next
		return nil
	})
}

func (r *memFlatRepository) ListWithOccupants(_ context.Context, societyCode string) ([]*domain.FlatDetails, error) {
	flats := []*domain.FlatDetails{}
	err := r.v.with(func(st *memState) error {
		for _, f := range st.flats {
			if f.SocietyCode != societyCode {
				continue
			}
			d := &domain.FlatDetails{Flat: *copyFlat(f)}
			if f.OwnerID != nil {
				if o, ok := st.residents[*f.OwnerID]; ok {
					d.Owner = copyResident(o)
				}
			}
			if f.ResidentID != nil {
				if t, ok := st.residents[*f.ResidentID]; ok {
					d.Resident = copyResident(t)
				}
			}
			flats = append(flats, d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(flats, func(i, j int) bool { return flats[i].FlatID < flats[j].FlatID })
	return flats, nil
}

// checkFlat mirrors flat_society_flat_key, the society foreign key and the
// occupancy checks.
func (st *memState) checkFlat(flat *domain.Flat) error {
	if !st.societyExists(flat.SocietyCode) {
		return domain.NotFound("referenced record")
	}
	for _, f := range st.flats {
		if f.SocietyCode == flat.SocietyCode && f.FlatID == flat.FlatID {
			return domain.ErrDuplicateFlat
		}
	}
	return st.checkLinks(flat)
}

func (st *memState) checkLinks(flat *domain.Flat) error {
	if !flat.Occupancy.Valid() {
		return domain.Validation("record violates constraint flat_occupancy_check")
	}
	if flat.Occupancy != domain.OccupancyRented && flat.ResidentID != nil {
		return domain.Validation("record violates constraint flat_resident_rented_check")
	}
	for _, id := range []*int64{flat.OwnerID, flat.ResidentID} {
		if id == nil {
			continue
		}
		if _, ok := st.residents[*id]; !ok {
			return domain.NotFound("referenced record")
		}
	}
	return nil
}

func (st *memState) societyExists(code string) bool {
	for _, s := range st.societies {
		if s.Code == code {
			return true
		}
	}
	return false
}

// --- residents ---

type memResidentRepository struct{ v memView }

func (r *memResidentRepository) Create(_ context.Context, resident *domain.Resident) error {
	return r.v.with(func(st *memState) error {
		if err := checkCredential(resident.Credential); err != nil {
			return err
		}
		if !st.societyExists(resident.SocietyCode) {
			return domain.NotFound("referenced record")
		}
		if st.emailTaken(resident.Email, 0) {
			return domain.ErrDuplicateEmail
		}
		resident.ID = st.newID()
		resident.CreatedAt = time.Now().UTC()
		st.residents[resident.ID] = copyResident(resident)
		return nil
	})
}

func (r *memResidentRepository) GetByID(_ context.Context, id int64) (*domain.Resident, error) {
	var found *domain.Resident
	err := r.v.with(func(st *memState) error {
		res, ok := st.residents[id]
		if !ok {
			return domain.NotFound("resident")
		}
		found = copyResident(res)
		return nil
	})
	return found, err
}

func (r *memResidentRepository) GetByEmail(_ context.Context, email string) (*domain.Resident, error) {
	var found *domain.Resident
	err := r.v.with(func(st *memState) error {
		for _, res := range st.residents {
			if strings.EqualFold(res.Email, email) {
				found = copyResident(res)
				return nil
			}
		}
		return domain.NotFound("resident")
	})
	return found, err
}

func (r *memResidentRepository) UpdateContact(_ context.Context, id int64, contact domain.Contact) error {
	return r.v.with(func(st *memState) error {
		res, ok := st.residents[id]
		if !ok {
			return domain.NotFound("resident")
		}
		if st.emailTaken(contact.Email, id) {
			return domain.ErrDuplicateEmail
		}
		res.Name = contact.Name
		res.Email = contact.Email
		res.Phone = contact.Phone
		res.Address = contact.Address
		return nil
	})
}

func (r *memResidentRepository) UpdatePassword(_ context.Context, id int64, expected domain.Credential, newHash string) error {
	return r.v.with(func(st *memState) error {
		res, ok := st.residents[id]
		if !ok || res.Credential != expected {
			return domain.ErrIncorrectOldPassword
		}
		res.Credential = domain.Credential{PasswordHash: newHash}
		return nil
	})
}

func (r *memResidentRepository) CountBootstrap(_ context.Context) (int, error) {
	n := 0
	err := r.v.with(func(st *memState) error {
		for _, res := range st.residents {
			if res.Credential.InitialPassword != "" {
				n++
			}
		}
		return nil
	})
	return n, err
}

// emailTaken mirrors resident_email_lower_key, ignoring the row being updated
func (st *memState) emailTaken(email string, except int64) bool {
	for id, res := range st.residents {
		if id != except && strings.EqualFold(res.Email, email) {
			return true
		}
	}
	return false
}

// checkCredential mirrors resident_credential_check
func checkCredential(c domain.Credential) error {
	if (c.PasswordHash == "") == (c.InitialPassword == "") {
		return domain.Validation("record violates constraint resident_credential_check")
	}
	return nil
}

func copySociety(s *domain.Society) *domain.Society {
	c := *s
	return &c
}

func copyFlat(f *domain.Flat) *domain.Flat {
	c := *f
	c.OwnerID = copyID(f.OwnerID)
	c.ResidentID = copyID(f.ResidentID)
	return &c
}

func copyResident(r *domain.Resident) *domain.Resident {
	c := *r
	return &c
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
