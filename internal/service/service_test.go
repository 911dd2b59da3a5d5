package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aryan0dhankhar/societyhub/internal/domain"
	"github.com/aryan0dhankhar/societyhub/internal/repository"
	"github.com/aryan0dhankhar/societyhub/internal/security/auth"
	"github.com/aryan0dhankhar/societyhub/internal/security/credential"
)

// testEnv wires every service onto one in-memory store
type testEnv struct {
	store     domain.Store
	cache     *repository.MemoryFlatCache
	tokens    *auth.TokenManager
	societies *SocietyService
	occupancy *OccupancyService
	auth      *AuthService
	residents *ResidentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, repository.NewMemoryStore())
}

func newTestEnvWithStore(t *testing.T, store domain.Store) *testEnv {
	t.Helper()

	hasher := credential.NewHasher(bcrypt.MinCost)
	tokens := auth.NewTokenManager("test-secret", "societyhub", time.Hour)
	cache := repository.NewMemoryFlatCache(time.Minute)

	return &testEnv{
		store:     store,
		cache:     cache,
		tokens:    tokens,
		societies: NewSocietyService(store, hasher, tokens, cache, nil, true, nil),
		occupancy: NewOccupancyService(store, credential.NewProvisioner(10, 8), cache, nil, nil),
		auth:      NewAuthService(store, hasher, tokens, nil, nil),
		residents: NewResidentService(store, cache, nil),
	}
}

// register creates society code with a wings x floors x rooms grid
func (e *testEnv) register(t *testing.T, code string, wings, floors, rooms int) *RegisterResult {
	t.Helper()
	res, err := e.societies.Register(context.Background(), RegisterSocietyRequest{
		Code:          code,
		Name:          "Society " + code,
		Email:         "admin-" + code + "@example.com",
		Password:      "admin-password",
		Wings:         wings,
		FloorsPerWing: floors,
		RoomsPerFloor: rooms,
	})
	require.NoError(t, err)
	return res
}

func (e *testEnv) flatByCode(t *testing.T, societyCode, flatID string) *domain.FlatDetails {
	t.Helper()
	flats, err := e.store.Flats().ListWithOccupants(context.Background(), societyCode)
	require.NoError(t, err)
	for _, f := range flats {
		if f.FlatID == flatID {
			return f
		}
	}
	t.Fatalf("flat %s not found in %s", flatID, societyCode)
	return nil
}

func (e *testEnv) residentCount(t *testing.T, societyCode string) int {
	t.Helper()
	seen := map[int64]bool{}
	flats, err := e.store.Flats().ListWithOccupants(context.Background(), societyCode)
	require.NoError(t, err)
	for _, f := range flats {
		if f.Owner != nil {
			seen[f.Owner.ID] = true
		}
		if f.Resident != nil {
			seen[f.Resident.ID] = true
		}
	}
	return len(seen)
}

// assertInvariants checks the flat and credential invariants over a society
func assertInvariants(t *testing.T, store domain.Store, societyCode string) {
	t.Helper()
	ctx := context.Background()

	flats, err := store.Flats().ListWithOccupants(ctx, societyCode)
	require.NoError(t, err)

	emails := map[string]int64{}
	for _, f := range flats {
		if f.Occupancy != domain.OccupancyRented {
			require.Nilf(t, f.ResidentID, "flat %s is %s but links resident %v", f.FlatID, f.Occupancy, f.ResidentID)
		}
		for _, id := range []*int64{f.OwnerID, f.ResidentID} {
			if id == nil {
				continue
			}
			r, err := store.Residents().GetByID(ctx, *id)
			require.NoError(t, err)
			hasHash := r.Credential.PasswordHash != ""
			hasInitial := r.Credential.InitialPassword != ""
			require.Truef(t, hasHash != hasInitial, "resident %d must have exactly one credential", r.ID)

			key := strings.ToLower(r.Email)
			if prev, ok := emails[key]; ok {
				require.Equalf(t, prev, r.ID, "email %s shared by two residents", r.Email)
			}
			emails[key] = r.ID
		}
	}
}
