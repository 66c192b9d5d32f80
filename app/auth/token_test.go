package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lysyi3m/khabar/app/database"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("0123456789abcdef0123", time.Hour)
	user := &database.User{ID: 42, Name: "مدیر", Role: database.RoleAdmin}

	token, expiresAt, err := issuer.Issue(user)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Errorf("Expected expiry in the future, got %v", expiresAt)
	}

	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("Failed to parse token: %v", err)
	}

	id, _ := claims.UserID()
	if id != 42 {
		t.Errorf("Expected user id 42, got %d", id)
	}
	if claims.Role != database.RoleAdmin {
		t.Errorf("Expected role admin, got %q", claims.Role)
	}
	if claims.Issuer != Issuer {
		t.Errorf("Expected issuer %q, got %q", Issuer, claims.Issuer)
	}
}

func TestTokenIssuer_Rejects(t *testing.T) {
	issuer := NewTokenIssuer("0123456789abcdef0123", time.Hour)
	user := &database.User{ID: 1, Role: database.RoleUser}

	token, _, err := issuer.Issue(user)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	other := NewTokenIssuer("another-secret-value-000", time.Hour)
	if _, err := other.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for wrong secret, got %v", err)
	}

	expired := NewTokenIssuer("0123456789abcdef0123", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := expired.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for expired token, got %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: database.RoleAdmin})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := issuer.Parse(unsigned); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for unsigned token, got %v", err)
	}

	if _, err := issuer.Parse("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for garbage, got %v", err)
	}
}
