package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/societyhub/internal/domain"
)

func seedSociety(t *testing.T, s *MemoryStore, code string) {
	t.Helper()
	err := s.Societies().Create(context.Background(), &domain.Society{
		Code: code, Name: "Green Park", Email: code + "@example.com", PasswordHash: "hash",
		Wings: 1, FloorsPerWing: 1, RoomsPerFloor: 2,
	})
	require.NoError(t, err)
}

func TestMemoryStoreRollbackLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedSociety(t, s, "SOC1")

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(tx domain.Repositories) error {
		_, err := tx.Flats().CreateGrid(ctx, "SOC1", []string{"A0101", "A0102"})
		require.NoError(t, err)
		require.NoError(t, tx.Residents().Create(ctx, &domain.Resident{
			SocietyCode: "SOC1", FlatID: "A0101", Name: "Asha", Email: "asha@example.com",
			Credential: domain.Credential{InitialPassword: "abcdefgh"},
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	flats, err := s.Flats().ListWithOccupants(ctx, "SOC1")
	require.NoError(t, err)
	assert.Empty(t, flats)

	_, err = s.Residents().GetByEmail(ctx, "asha@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryStoreCommitPublishes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedSociety(t, s, "SOC1")

	err := s.RunInTx(ctx, func(tx domain.Repositories) error {
		n, err := tx.Flats().CreateGrid(ctx, "SOC1", []string{"A0102", "A0101"})
		if err != nil {
			return err
		}
		assert.Equal(t, 2, n)
		return nil
	})
	require.NoError(t, err)

	flats, err := s.Flats().ListWithOccupants(ctx, "SOC1")
	require.NoError(t, err)
	require.Len(t, flats, 2)
	assert.Equal(t, "A0101", flats[0].FlatID)
	assert.Equal(t, domain.OccupancyVacant, flats[0].Occupancy)
}

func TestMemoryStoreCancelledContextDoesNotCommit(t *testing.T) {
	s := NewMemoryStore()
	seedSociety(t, s, "SOC1")

	ctx, cancel := context.WithCancel(context.Background())
	err := s.RunInTx(ctx, func(tx domain.Repositories) error {
		_, err := tx.Flats().CreateGrid(ctx, "SOC1", []string{"A0101"})
		cancel()
		return err
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindInfra, domain.KindOf(err))

	flats, err := s.Flats().ListWithOccupants(context.Background(), "SOC1")
	require.NoError(t, err)
	assert.Empty(t, flats)
}

func TestMemoryStoreEmailUniqueIgnoresCase(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedSociety(t, s, "SOC1")

	first := &domain.Resident{SocietyCode: "SOC1", FlatID: "A0101", Name: "A", Email: "Dup@Example.com",
		Credential: domain.Credential{InitialPassword: "x1234567"}}
	require.NoError(t, s.Residents().Create(ctx, first))

	second := &domain.Resident{SocietyCode: "SOC1", FlatID: "A0102", Name: "B", Email: "dup@example.COM",
		Credential: domain.Credential{InitialPassword: "y1234567"}}
	assert.ErrorIs(t, s.Residents().Create(ctx, second), domain.ErrDuplicateEmail)

	found, err := s.Residents().GetByEmail(ctx, "DUP@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
}

func TestMemoryStoreEnforcesConstraints(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedSociety(t, s, "SOC1")

	t.Run("credential exclusivity", func(t *testing.T) {
		both := &domain.Resident{SocietyCode: "SOC1", Name: "A", Email: "a@example.com",
			Credential: domain.Credential{PasswordHash: "h", InitialPassword: "p"}}
		assert.ErrorIs(t, s.Residents().Create(ctx, both), domain.ErrInvalidFormat)

		neither := &domain.Resident{SocietyCode: "SOC1", Name: "A", Email: "a@example.com"}
		assert.ErrorIs(t, s.Residents().Create(ctx, neither), domain.ErrInvalidFormat)
	})

	t.Run("duplicate flat", func(t *testing.T) {
		require.NoError(t, s.Flats().Create(ctx, &domain.Flat{SocietyCode: "SOC1", FlatID: "X1"}))
		assert.ErrorIs(t, s.Flats().Create(ctx, &domain.Flat{SocietyCode: "SOC1", FlatID: "X1"}), domain.ErrDuplicateFlat)
	})

	t.Run("unknown society", func(t *testing.T) {
		assert.ErrorIs(t, s.Flats().Create(ctx, &domain.Flat{SocietyCode: "NOPE", FlatID: "X1"}), domain.ErrNotFound)
	})

	t.Run("tenant only while rented", func(t *testing.T) {
		r := &domain.Resident{SocietyCode: "SOC1", Name: "T", Email: "t@example.com",
			Credential: domain.Credential{InitialPassword: "abcdefgh"}}
		require.NoError(t, s.Residents().Create(ctx, r))

		f := &domain.Flat{SocietyCode: "SOC1", FlatID: "X2", Occupancy: domain.OccupancyOwnerOccupied, ResidentID: &r.ID}
		assert.ErrorIs(t, s.Flats().Create(ctx, f), domain.ErrInvalidFormat)
	})
}

func TestMemoryStoreUpdatePasswordIsConditional(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedSociety(t, s, "SOC1")

	r := &domain.Resident{SocietyCode: "SOC1", Name: "A", Email: "a@example.com",
		Credential: domain.Credential{InitialPassword: "boot1234"}}
	require.NoError(t, s.Residents().Create(ctx, r))

	stale := domain.Credential{InitialPassword: "other"}
	assert.ErrorIs(t, s.Residents().UpdatePassword(ctx, r.ID, stale, "newhash"), domain.ErrIncorrectOldPassword)

	require.NoError(t, s.Residents().UpdatePassword(ctx, r.ID, r.Credential, "newhash"))

	got, err := s.Residents().GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Credential{PasswordHash: "newhash"}, got.Credential)
	assert.Equal(t, domain.StateActive, got.Credential.State())

	// the bootstrap credential no longer matches
	assert.ErrorIs(t, s.Residents().UpdatePassword(ctx, r.ID, r.Credential, "again"), domain.ErrIncorrectOldPassword)

	n, err := s.Residents().CountBootstrap(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryFlatCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryFlatCache(time.Minute)

	_, gen, ok := c.Get(ctx, "SOC1")
	assert.False(t, ok)

	c.Set(ctx, "SOC1", gen, []*domain.FlatDetails{{Flat: domain.Flat{FlatID: "A0101"}}})
	got, _, ok := c.Get(ctx, "SOC1")
	require.True(t, ok)
	assert.Equal(t, "A0101", got[0].FlatID)

	c.Invalidate(ctx, "SOC1")
	_, next, ok := c.Get(ctx, "SOC1")
	assert.False(t, ok)
	assert.NotEqual(t, gen, next)
}

func TestMemoryFlatCacheDropsSetFromOlderGeneration(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryFlatCache(time.Minute)

	// a reader misses and starts loading
	_, gen, ok := c.Get(ctx, "SOC1")
	require.False(t, ok)

	// a write commits and invalidates before the reader stores its listing
	c.Invalidate(ctx, "SOC1")
	c.Set(ctx, "SOC1", gen, []*domain.FlatDetails{{Flat: domain.Flat{FlatID: "stale"}}})

	_, current, ok := c.Get(ctx, "SOC1")
	assert.False(t, ok)

	// other societies keep their own generation
	_, other, _ := c.Get(ctx, "SOC2")
	c.Set(ctx, "SOC2", other, []*domain.FlatDetails{{Flat: domain.Flat{FlatID: "B0101"}}})
	_, _, ok = c.Get(ctx, "SOC2")
	assert.True(t, ok)

	c.Set(ctx, "SOC1", current, []*domain.FlatDetails{{Flat: domain.Flat{FlatID: "fresh"}}})
	got, _, ok := c.Get(ctx, "SOC1")
	require.True(t, ok)
	assert.Equal(t, "fresh", got[0].FlatID)
}
