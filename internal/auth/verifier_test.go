package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"blindrelay/pkg/interfaces"
)

const testSecret = "test-secret-key"

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return signed
}

func TestNewVerifier_RejectsEmptySecret(t *testing.T) {
	if _, err := NewVerifier(""); err == nil {
		t.Error("Expected error for empty secret")
	}
}

func TestVerify_ValidToken(t *testing.T) {
	v, err := NewVerifier(testSecret)
	if err != nil {
		t.Fatal(err)
	}

	credential := signToken(t, testSecret, Claims{
		Email: "judge@example.com",
		Name:  "Judge Judy",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	identity, err := v.Verify(credential)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if identity.UserID != "user-42" {
		t.Errorf("Expected user-42, got %s", identity.UserID)
	}
	if identity.Email != "judge@example.com" || identity.Name != "Judge Judy" {
		t.Errorf("Profile fields not carried: %+v", identity)
	}
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	v, _ := NewVerifier(testSecret)

	credential := signToken(t, "other-secret", Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-42"},
	})

	if _, err := v.Verify(credential); !errors.Is(err, interfaces.ErrUnverified) {
		t.Errorf("Expected ErrUnverified, got %v", err)
	}
}

func TestVerify_RejectsExpiredToken(t *testing.T) {
	v, _ := NewVerifier(testSecret)

	credential := signToken(t, testSecret, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	if _, err := v.Verify(credential); !errors.Is(err, interfaces.ErrUnverified) {
		t.Errorf("Expected ErrUnverified, got %v", err)
	}
}

func TestVerify_RejectsMissingSubject(t *testing.T) {
	v, _ := NewVerifier(testSecret)

	credential := signToken(t, testSecret, Claims{Email: "x@example.com"})

	if _, err := v.Verify(credential); !errors.Is(err, interfaces.ErrUnverified) {
		t.Errorf("Expected ErrUnverified for empty subject, got %v", err)
	}
}

func TestVerify_RejectsGarbage(t *testing.T) {
	v, _ := NewVerifier(testSecret)

	for _, credential := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := v.Verify(credential); !errors.Is(err, interfaces.ErrUnverified) {
			t.Errorf("Expected ErrUnverified for %q, got %v", credential, err)
		}
	}
}

func TestDevVerifier_FixedIdentity(t *testing.T) {
	identity, err := DevVerifier{}.Verify("anything")
	if err != nil {
		t.Fatalf("DevVerifier should never fail: %v", err)
	}
	if identity.UserID != "dev-user-123" {
		t.Errorf("Unexpected dev identity: %+v", identity)
	}
}
