package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Verifier checks HS256 tokens issued by the account service. Issuing tokens
// is not this service's job; Sign exists for the seed command and tests.
type Verifier struct {
	key []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{key: []byte(secret)}
}

// UserID returns the subject of a valid token. Older tokens carry the user id
// in an "id" claim instead of "sub".
func (v *Verifier) UserID(token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}

	tok, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return v.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	if sub, _ := mc["sub"].(string); sub != "" {
		return sub, nil
	}
	if id, _ := mc["id"].(string); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("%w: no subject", ErrInvalidToken)
}

func (v *Verifier) Sign(userID string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.key)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
