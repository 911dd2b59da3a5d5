package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aryan0dhankhar/societyhub/internal/domain"
	"github.com/aryan0dhankhar/societyhub/internal/repository"
	"github.com/aryan0dhankhar/societyhub/internal/security/auth"
	"github.com/aryan0dhankhar/societyhub/internal/security/credential"
)

func validRegistration(code string) RegisterSocietyRequest {
	return RegisterSocietyRequest{
		Code:          code,
		Name:          "Green Acres",
		Email:         "admin-" + code + "@example.com",
		Password:      "admin-password",
		Wings:         2,
		FloorsPerWing: 3,
		RoomsPerFloor: 4,
	}
}

// Scenario A
func TestRegisterSmallestSociety(t *testing.T) {
	env := newTestEnv(t)

	res := env.register(t, "SOC1", 1, 1, 1)
	assert.Equal(t, 1, res.TotalFlats)
	assert.Equal(t, "SOC1", res.SocietyCode)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "society", res.UserType)

	flats, err := env.societies.ListFlatsWithDetails(context.Background(), "SOC1")
	require.NoError(t, err)
	require.Len(t, flats, 1)
	assert.Equal(t, "A0101", flats[0].FlatID)
	assert.Equal(t, domain.OccupancyVacant, flats[0].Occupancy)
	assert.Nil(t, flats[0].Owner)
	assert.Nil(t, flats[0].Resident)

	claims, err := env.auth.VerifyToken(res.Token)
	require.NoError(t, err)
	id, err := claims.AccountID()
	require.NoError(t, err)
	assert.Equal(t, res.SocietyID, id)
}

func TestRegisterGeneratesWholeGrid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.societies.Register(ctx, validRegistration("SOC1"))
	require.NoError(t, err)
	assert.Equal(t, 24, res.TotalFlats)

	flats, err := env.societies.ListFlatsWithDetails(ctx, "SOC1")
	require.NoError(t, err)
	require.Len(t, flats, 24)
	assert.Equal(t, "A0101", flats[0].FlatID)
	assert.Equal(t, "B0304", flats[len(flats)-1].FlatID)

	profile, err := env.societies.Profile(ctx, res.SocietyID)
	require.NoError(t, err)
	assert.Equal(t, 24, profile.TotalFlats)
	assert.Equal(t, "Green Acres", profile.Name)
}

func TestRegisterValidation(t *testing.T) {
	cases := map[string]func(r *RegisterSocietyRequest){
		"missing name":   func(r *RegisterSocietyRequest) { r.Name = "  " },
		"bad email":      func(r *RegisterSocietyRequest) { r.Email = "admin.example.com" },
		"short password": func(r *RegisterSocietyRequest) { r.Password = "1234567" },
		"long password":  func(r *RegisterSocietyRequest) { r.Password = strings.Repeat("é", 40) },
		"zero wings":     func(r *RegisterSocietyRequest) { r.Wings = 0 },
		"negative rooms": func(r *RegisterSocietyRequest) { r.RoomsPerFloor = -1 },
		"too many wings": func(r *RegisterSocietyRequest) { r.Wings = 27 },
		"too many rooms": func(r *RegisterSocietyRequest) { r.RoomsPerFloor = 100 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)
			req := validRegistration("SOC1")
			mutate(&req)

			_, err := env.societies.Register(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, domain.KindValidation, domain.KindOf(err))

			_, err = env.store.Societies().GetByCode(context.Background(), "SOC1")
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestRegisterDuplicates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "SOC1", 1, 1, 1)

	sameCode := validRegistration("SOC1")
	sameCode.Email = "someone-else@example.com"
	_, err := env.societies.Register(ctx, sameCode)
	assert.ErrorIs(t, err, domain.ErrDuplicateSociety)

	sameEmail := validRegistration("SOC2")
	sameEmail.Email = "ADMIN-soc1@example.com"
	_, err = env.societies.Register(ctx, sameEmail)
	assert.ErrorIs(t, err, domain.ErrDuplicateSociety)

	// neither attempt left flats behind
	flats, err := env.store.Flats().ListWithOccupants(ctx, "SOC2")
	require.NoError(t, err)
	assert.Empty(t, flats)
	flats, err = env.store.Flats().ListWithOccupants(ctx, "SOC1")
	require.NoError(t, err)
	assert.Len(t, flats, 1)
}

func TestRegisterGeneratedCode(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.societies.Register(context.Background(), validRegistration(""))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.SocietyCode, "SOC"))
	assert.Len(t, res.SocietyCode, len("SOC")+8)
}

func TestRegisterWithoutSelfRegistration(t *testing.T) {
	store := repository.NewMemoryStore()
	societies := NewSocietyService(store, credential.NewHasher(bcrypt.MinCost),
		auth.NewTokenManager("test-secret", "societyhub", time.Hour), nil, nil, false, nil)

	_, err := societies.Register(context.Background(), validRegistration(""))
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = societies.Register(context.Background(), validRegistration("SOC1"))
	assert.NoError(t, err)
}

func TestListFlatsServedFromCacheUntilWrite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "SOC1", 1, 1, 2)

	first, err := env.societies.ListFlatsWithDetails(ctx, "SOC1")
	require.NoError(t, err)
	cached, _, ok := env.cache.Get(ctx, "SOC1")
	require.True(t, ok)
	assert.Len(t, cached, len(first))

	_, err = env.occupancy.CreateFlat(ctx, CreateFlatRequest{SocietyCode: "SOC1", FlatID: "P0001"})
	require.NoError(t, err)
	_, _, ok = env.cache.Get(ctx, "SOC1")
	assert.False(t, ok)

	second, err := env.societies.ListFlatsWithDetails(ctx, "SOC1")
	require.NoError(t, err)
	assert.Len(t, second, 3)
}

// writeBeforeSet commits a write between a listing's load and its Set
type writeBeforeSet struct {
	*repository.MemoryFlatCache
	write func()
}

func (w *writeBeforeSet) Set(ctx context.Context, societyCode string, generation uint64, flats []*domain.FlatDetails) {
	if write := w.write; write != nil {
		w.write = nil
		write()
	}
	w.MemoryFlatCache.Set(ctx, societyCode, generation, flats)
}

func TestListFlatsDropsListingLoadedBeforeWrite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "SOC1", 1, 1, 2)

	racing := &writeBeforeSet{MemoryFlatCache: env.cache, write: func() {
		_, err := env.occupancy.CreateFlat(ctx, CreateFlatRequest{SocietyCode: "SOC1", FlatID: "P0001"})
		require.NoError(t, err)
	}}
	societies := NewSocietyService(env.store, credential.NewHasher(bcrypt.MinCost), env.tokens, racing, nil, true, nil)

	stale, err := societies.ListFlatsWithDetails(ctx, "SOC1")
	require.NoError(t, err)
	assert.Len(t, stale, 2)

	_, _, ok := env.cache.Get(ctx, "SOC1")
	assert.False(t, ok, "a listing loaded before the write must not be cached")

	fresh, err := societies.ListFlatsWithDetails(ctx, "SOC1")
	require.NoError(t, err)
	assert.Len(t, fresh, 3)

	cached, _, ok := env.cache.Get(ctx, "SOC1")
	require.True(t, ok)
	assert.Len(t, cached, 3)
}

func TestListFlatsRequiresCode(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.societies.ListFlatsWithDetails(context.Background(), " ")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	flats, err := env.societies.ListFlatsWithDetails(context.Background(), "UNKNOWN")
	require.NoError(t, err)
	assert.Empty(t, flats)
}
