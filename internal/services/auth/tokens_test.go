package auth

import (
	"errors"
	"testing"
	"time"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestTokenIssuer_IssueVerifyRoundtrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour, 0)

	token, err := issuer.Issue("alice", 42)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Subject != "alice" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "alice")
	}
	if claims.InstallationID != 42 {
		t.Errorf("InstallationID = %d, want 42", claims.InstallationID)
	}
	if !claims.ExpiresAt.After(claims.IssuedAt) {
		t.Errorf("ExpiresAt %v not after IssuedAt %v", claims.ExpiresAt, claims.IssuedAt)
	}
}

func TestTokenIssuer_RoundtripWithoutInstallation(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour, 0)

	token, err := issuer.Issue("bob", 0)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.InstallationID != 0 {
		t.Errorf("InstallationID = %d, want 0", claims.InstallationID)
	}
}

func TestTokenIssuer_IssueRequiresUsername(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour, 0)

	if _, err := issuer.Issue("", 0); err == nil {
		t.Fatal("Issue() with empty username should fail")
	}
}

func TestTokenIssuer_VerifyExpired(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour, 0)
	issuer.tokenTTL = -time.Minute // already expired at issue

	token, err := issuer.Issue("alice", 0)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	_, err = issuer.Verify(token)
	var invalid *InvalidTokenError
	if !errors.As(err, &invalid) {
		t.Fatalf("Verify() error = %v, want InvalidTokenError", err)
	}
	if invalid.Reason != ReasonExpired {
		t.Errorf("Reason = %q, want %q", invalid.Reason, ReasonExpired)
	}
}

func TestTokenIssuer_VerifyAtExactExpiry(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer := NewTokenIssuer("test-secret", time.Hour, 0)
	issuer.now = fixedClock(base)

	token, err := issuer.Issue("alice", 0)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	// One second before expiry the token is still good.
	issuer.now = fixedClock(base.Add(time.Hour - time.Second))
	if _, err := issuer.Verify(token); err != nil {
		t.Fatalf("Verify() just before expiry error = %v", err)
	}

	// At exactly the expiry instant the token is invalid.
	issuer.now = fixedClock(base.Add(time.Hour))
	_, err = issuer.Verify(token)
	var invalid *InvalidTokenError
	if !errors.As(err, &invalid) || invalid.Reason != ReasonExpired {
		t.Fatalf("Verify() at exact expiry = %v, want expired InvalidTokenError", err)
	}
}

func TestTokenIssuer_VerifyForeignSignature(t *testing.T) {
	a := NewTokenIssuer("secret-a", time.Hour, 0)
	b := NewTokenIssuer("secret-b", time.Hour, 0)

	token, err := a.Issue("alice", 0)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	_, err = b.Verify(token)
	var invalid *InvalidTokenError
	if !errors.As(err, &invalid) {
		t.Fatalf("Verify() error = %v, want InvalidTokenError", err)
	}
	if invalid.Reason != ReasonSignature {
		t.Errorf("Reason = %q, want %q", invalid.Reason, ReasonSignature)
	}
}

func TestTokenIssuer_VerifyMalformed(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour, 0)

	for _, token := range []string{"", "garbage", "a.b", "a.b.c.d", "...."} {
		_, err := issuer.Verify(token)
		var invalid *InvalidTokenError
		if !errors.As(err, &invalid) {
			t.Fatalf("Verify(%q) error = %v, want InvalidTokenError", token, err)
		}
		if invalid.Reason != ReasonMalformed {
			t.Errorf("Verify(%q) reason = %q, want %q", token, invalid.Reason, ReasonMalformed)
		}
	}
}

func TestTokenIssuer_RefreshExpiredButYoungToken(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer := NewTokenIssuer("test-secret", time.Hour, 30*24*time.Hour)
	issuer.now = fixedClock(base)

	token, err := issuer.Issue("alice", 42)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	// Two days on: expired, but far inside the refresh window.
	later := base.Add(48 * time.Hour)
	issuer.now = fixedClock(later)

	if _, err := issuer.Verify(token); err == nil {
		t.Fatal("Verify() should fail on the expired token")
	}

	fresh, claims, err := issuer.Refresh(token)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if fresh == token {
		t.Error("Refresh() returned the original token; want a new one")
	}
	if claims.Subject != "alice" || claims.InstallationID != 42 {
		t.Errorf("claims = %q/%d, want alice/42", claims.Subject, claims.InstallationID)
	}
	if !claims.IssuedAt.Equal(later) {
		t.Errorf("IssuedAt = %v, want fresh %v", claims.IssuedAt, later)
	}

	verified, err := issuer.Verify(fresh)
	if err != nil {
		t.Fatalf("Verify(fresh) error = %v", err)
	}
	if !verified.IssuedAt.Equal(later) {
		t.Errorf("fresh token IssuedAt = %v, want %v", verified.IssuedAt, later)
	}
}

func TestTokenIssuer_RefreshBeyondAgeLimit(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	limit := 30 * 24 * time.Hour
	issuer := NewTokenIssuer("test-secret", time.Hour, limit)
	issuer.now = fixedClock(base)

	token, err := issuer.Issue("alice", 0)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	// At exactly the age limit the refresh still goes through.
	issuer.now = fixedClock(base.Add(limit))
	if _, _, err := issuer.Refresh(token); err != nil {
		t.Fatalf("Refresh() at exact age limit error = %v", err)
	}

	// A second past it the refresh is refused.
	issuer.now = fixedClock(base.Add(limit + time.Second))
	_, _, err = issuer.Refresh(token)
	var tooOld *TooOldError
	if !errors.As(err, &tooOld) {
		t.Fatalf("Refresh() beyond age limit = %v, want TooOldError", err)
	}
}

func TestTokenIssuer_RefreshRejectsForeignSignature(t *testing.T) {
	a := NewTokenIssuer("secret-a", time.Hour, 0)
	b := NewTokenIssuer("secret-b", time.Hour, 0)

	token, err := a.Issue("alice", 0)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	_, _, err = b.Refresh(token)
	var invalid *InvalidTokenError
	if !errors.As(err, &invalid) {
		t.Fatalf("Refresh() error = %v, want InvalidTokenError", err)
	}
	if invalid.Reason != ReasonSignature {
		t.Errorf("Reason = %q, want %q", invalid.Reason, ReasonSignature)
	}
}
