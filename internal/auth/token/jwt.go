// Package token issues and validates the HS256 bearer tokens the graph
// service accepts. The signing key is the secret shared with the identity
// provider; the subject claim is the provider's user ID.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"warikan/internal/domain"
	"warikan/pkg/domerr"
)

// Claims are the access-token claims the graph service cares about.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Service handles token creation and validation.
type Service struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewService(signingKey, issuer, audience string) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// Issue mints an access token for a user. Used by the loopback provider in
// dev and by tests; in production the identity provider mints tokens with
// the same shape and key.
func (s *Service) Issue(userID domain.UserID, name string, expiresIn time.Duration) (string, error) {
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})
	return newToken.SignedString(s.signingKey)
}

// ValidateToken checks signature, expiry, issuer and audience, and resolves
// the caller. Satisfies middleware.TokenValidator.
func (s *Service) ValidateToken(tokenString string) (domain.UserID, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithAudience(s.audience))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", domerr.New(domerr.CodeUnauthenticated, "token has expired")
		}
		return "", domerr.New(domerr.CodeUnauthenticated, "invalid token")
	}
	if !parsed.Valid {
		return "", domerr.New(domerr.CodeUnauthenticated, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return "", domerr.New(domerr.CodeUnauthenticated, "invalid token claims")
	}
	return domain.UserID(claims.Subject), nil
}
