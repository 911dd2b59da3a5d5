package auth

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateAndValidateToken(t *testing.T) {
	tm := NewTokenManager("secret", "societyhub", 0)
	if tm.TTL() != 7*24*time.Hour {
		t.Fatalf("expected 7 day default ttl, got %v", tm.TTL())
	}

	token, expiresAt, err := tm.GenerateToken(AccountResident, 42, "r@example.com", "SOC1")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if time.Until(expiresAt) < 6*24*time.Hour {
		t.Fatalf("unexpected expiry %v", expiresAt)
	}

	claims, err := tm.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	id, err := claims.AccountID()
	if err != nil || id != 42 {
		t.Fatalf("expected subject 42, got %d (%v)", id, err)
	}
	if claims.Email != "r@example.com" || claims.SocietyCode != "SOC1" || claims.UserType != AccountResident {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.ID == "" {
		t.Fatalf("expected jti to be set")
	}
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	tm := NewTokenManager("secret", "societyhub", time.Hour)
	token, _, err := tm.GenerateToken(AccountSociety, 1, "a@example.com", "SOC1")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	other := NewTokenManager("other-secret", "societyhub", time.Hour)
	if _, err := other.ValidateToken(token); err == nil {
		t.Fatalf("expected signature failure")
	}

	expired := NewTokenManager("secret", "societyhub", -time.Hour)
	// negative ttl falls back to the default, so build an expired token by hand
	expired.ttl = -time.Minute
	old, _, err := expired.GenerateToken(AccountSociety, 1, "a@example.com", "SOC1")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if _, err := tm.ValidateToken(old); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestGenerateTokenRequiresIdentity(t *testing.T) {
	tm := NewTokenManager("secret", "", time.Hour)
	if _, _, err := tm.GenerateToken(AccountType("admin"), 1, "", ""); err == nil {
		t.Fatalf("expected error for unknown account type")
	}
	if _, _, err := tm.GenerateToken(AccountResident, 0, "", ""); err == nil {
		t.Fatalf("expected error for missing id")
	}
}

func TestExtractToken(t *testing.T) {
	tok, err := ExtractToken("Bearer abc.def")
	if err != nil || tok != "abc.def" {
		t.Fatalf("expected abc.def, got %q (%v)", tok, err)
	}
	if _, err := ExtractToken("Basic " + strings.Repeat("x", 4)); err == nil {
		t.Fatalf("expected error for non-bearer header")
	}
}
