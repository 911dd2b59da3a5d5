package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/societyhub/internal/domain"
	"github.com/aryan0dhankhar/societyhub/internal/security/auth"
)

// provisionOwner puts a new owner into A0101 and returns their id and secret
func provisionOwner(t *testing.T, env *testEnv, email string) (int64, string) {
	t.Helper()
	flat := env.flatByCode(t, "SOC1", "A0101")
	res, err := env.occupancy.UpsertOccupancy(context.Background(), UpsertOccupancyRequest{
		SocietyCode: "SOC1",
		FlatRowID:   flat.ID,
		Occupancy:   domain.OccupancyOwnerOccupied,
		Owner:       &PersonInput{Name: "Owner", Email: email},
	})
	require.NoError(t, err)
	require.Len(t, res.Provisioned, 1)
	return res.Provisioned[0].ResidentID, res.Provisioned[0].InitialPassword
}

// Scenario C
func TestBootstrapToActiveTransition(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "SOC1", 1, 1, 1)
	ctx := context.Background()

	id, secret := provisionOwner(t, env, "owner@example.com")

	login, err := env.auth.Login(ctx, auth.AccountResident, "owner@example.com", secret)
	require.NoError(t, err)
	assert.True(t, login.MustChangePassword)
	assert.Equal(t, id, login.AccountID)
	assert.Equal(t, "SOC1", login.SocietyCode)
	assert.Equal(t, "resident", login.UserType)

	require.NoError(t, env.auth.ChangePassword(ctx, auth.AccountResident, id, secret, "P@ssw0rd!"))

	stored, err := env.store.Residents().GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StateActive, stored.Credential.State())
	assert.Empty(t, stored.Credential.InitialPassword)

	_, err = env.auth.Login(ctx, auth.AccountResident, "owner@example.com", secret)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	login, err = env.auth.Login(ctx, auth.AccountResident, "OWNER@example.com", "P@ssw0rd!")
	require.NoError(t, err)
	assert.False(t, login.MustChangePassword)

	// the old secret no longer works as the old password either
	err = env.auth.ChangePassword(ctx, auth.AccountResident, id, secret, "another-pass")
	assert.ErrorIs(t, err, domain.ErrIncorrectOldPassword)
}

func TestBootstrapMatchIsExact(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "SOC1", 1, 1, 1)
	ctx := context.Background()

	_, secret := provisionOwner(t, env, "owner@example.com")

	for _, attempt := range []string{secret[:len(secret)-1], secret + "x", "x" + secret, ""} {
		_, err := env.auth.Login(ctx, auth.AccountResident, "owner@example.com", attempt)
		assert.Error(t, err, "attempt %q", attempt)
	}

	// surrounding whitespace from copy and paste is tolerated
	_, err := env.auth.Login(ctx, auth.AccountResident, "owner@example.com", " "+secret+"\n")
	assert.NoError(t, err)
}

func TestSocietyLogin(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "SOC1", 1, 1, 1)
	ctx := context.Background()

	login, err := env.auth.Login(ctx, auth.AccountSociety, "ADMIN-SOC1@example.com", "admin-password")
	require.NoError(t, err)
	assert.Equal(t, reg.SocietyID, login.AccountID)
	assert.Equal(t, "society", login.UserType)
	assert.Equal(t, "Bearer", login.TokenType)
	assert.False(t, login.MustChangePassword)

	claims, err := env.auth.VerifyToken(login.Token)
	require.NoError(t, err)
	assert.Equal(t, "SOC1", claims.SocietyCode)
	assert.Equal(t, auth.AccountSociety, claims.UserType)

	// a society admin cannot log in through the resident door
	_, err = env.auth.Login(ctx, auth.AccountResident, "admin-SOC1@example.com", "admin-password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "SOC1", 1, 1, 1)
	ctx := context.Background()

	_, errWrong := env.auth.Login(ctx, auth.AccountSociety, "admin-SOC1@example.com", "wrong-password")
	_, errUnknown := env.auth.Login(ctx, auth.AccountSociety, "nobody@example.com", "wrong-password")

	require.Error(t, errWrong)
	require.Error(t, errUnknown)
	assert.Equal(t, errWrong.Error(), errUnknown.Error())
	assert.Equal(t, domain.KindAuth, domain.KindOf(errUnknown))

	_, err := env.auth.Login(ctx, "admin", "admin-SOC1@example.com", "admin-password")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = env.auth.Login(ctx, auth.AccountSociety, "", "")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestChangeSocietyPassword(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "SOC1", 1, 1, 1)
	ctx := context.Background()

	err := env.auth.ChangePassword(ctx, auth.AccountSociety, reg.SocietyID, "admin-password", "short")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	// 40 runes but 80 bytes, past what bcrypt accepts
	err = env.auth.ChangePassword(ctx, auth.AccountSociety, reg.SocietyID, "admin-password", strings.Repeat("é", 40))
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	_, err = env.auth.Login(ctx, auth.AccountSociety, "admin-SOC1@example.com", "admin-password")
	require.NoError(t, err)

	err = env.auth.ChangePassword(ctx, auth.AccountSociety, reg.SocietyID, "not-the-password", "brand-new-password")
	assert.ErrorIs(t, err, domain.ErrIncorrectOldPassword)

	err = env.auth.ChangePassword(ctx, auth.AccountSociety, 9999, "admin-password", "brand-new-password")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, env.auth.ChangePassword(ctx, auth.AccountSociety, reg.SocietyID, "admin-password", "brand-new-password"))

	_, err = env.auth.Login(ctx, auth.AccountSociety, "admin-SOC1@example.com", "admin-password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = env.auth.Login(ctx, auth.AccountSociety, "admin-SOC1@example.com", "brand-new-password")
	assert.NoError(t, err)
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.auth.VerifyToken("not-a-jwt")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	other := auth.NewTokenManager("other-secret", "societyhub", env.tokens.TTL())
	forged, _, err := other.GenerateToken(auth.AccountSociety, 1, "a@example.com", "SOC1")
	require.NoError(t, err)
	_, err = env.auth.VerifyToken(forged)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}
