// Package auth issues and verifies the access tokens presented to the
// snapshot service and exposes a fiber middleware that identifies the caller.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/promptvault/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the standard claims plus the user name and the
// privileged (admin) flag.
type Claims struct {
	jwt.RegisteredClaims
	User  string `json:"user"`
	Admin bool   `json:"admin,omitempty"`
}

// GenerateToken signs an HS256 token for user.
func GenerateToken(user string, admin bool, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		User:  user,
		Admin: admin,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies tokenString and returns its claims. Expired tokens
// yield common.ErrTokenExpired, anything else unusable yields
// common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || strings.TrimSpace(claims.User) == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
