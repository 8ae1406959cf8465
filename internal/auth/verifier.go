package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"blindrelay/pkg/interfaces"
	"blindrelay/pkg/types"
)

// Claims is the token payload: registered claims plus the profile fields the
// session endpoints need.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// Verifier validates HMAC-signed bearer tokens. Implements
// interfaces.Verifier: an unverifiable credential yields ErrUnverified,
// never a fabricated identity.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for the given signing secret.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("token secret cannot be empty")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Verify parses and validates the token and returns its identity.
func (v *Verifier) Verify(credential string) (*types.Identity, error) {
	token, err := jwt.ParseWithClaims(credential, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, interfaces.ErrUnverified
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return nil, interfaces.ErrUnverified
	}

	return &types.Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.Name,
	}, nil
}

// DevVerifier accepts any credential and returns a fixed development
// identity. Only wired when dev mode is explicitly enabled in config; never
// the production path.
type DevVerifier struct{}

// Verify returns the development identity regardless of credential.
func (DevVerifier) Verify(string) (*types.Identity, error) {
	return &types.Identity{
		UserID: "dev-user-123",
		Email:  "dev@example.com",
		Name:   "Development User",
	}, nil
}
