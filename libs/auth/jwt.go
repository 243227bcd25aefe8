// Package auth verifies bearer tokens issued to salon staff.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims identifies a staff member of a salon.
type Claims struct {
	SalonID string `json:"salon_id,omitempty"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// SignHS256 issues a token for claims. Used by tests and local tooling.
func SignHS256(claims Claims, secret string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseAndVerifyHS256 checks the signature and the time based claims.
func ParseAndVerifyHS256(token, secret string) (*Claims, error) {
	if secret == "" {
		return nil, ErrInvalidToken
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(30*time.Second))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
