// Package auth verifies bearer credentials and resolves them to a Principal.
// Token issuance (registration, login, OTP exchange) lives in a separate
// identity service; this backend only consumes its tokens.
package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Principal is the authenticated caller attached to every request.
type Principal struct {
	UserID uint64
	Role   string
}

// Verifier resolves a raw bearer token to a Principal.
type Verifier interface {
	Verify(token string) (Principal, error)
}

// OTPProvider abstracts the one-time-password flow used for phone-based
// sign-in. No implementation ships here; deployments plug in their SMS vendor
// and the OTP routes register only when a provider is configured.
type OTPProvider interface {
	Send(ctx context.Context, phone string) error
	Check(ctx context.Context, phone, code string) (bool, error)
}

// JWTVerifier validates HS256 tokens whose subject is the user id and whose
// "role" claim carries the user role.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify parses and validates the token signature and expiry.
func (v *JWTVerifier) Verify(token string) (Principal, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Principal{}, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, fmt.Errorf("invalid token claims")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Principal{}, fmt.Errorf("token missing subject")
	}
	userID, err := strconv.ParseUint(sub, 10, 64)
	if err != nil {
		return Principal{}, fmt.Errorf("invalid token subject: %w", err)
	}

	role, _ := claims["role"].(string)

	return Principal{UserID: userID, Role: role}, nil
}

// Issue signs a token for the principal. Exposed for seeding and tests.
func (v *JWTVerifier) Issue(p Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  strconv.FormatUint(p.UserID, 10),
		"role": p.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
