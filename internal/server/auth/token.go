// Package auth signs and verifies the transport session tokens handed to
// browsers. The token is a signed wrapper around the opaque session key; all
// session state, including expiry, lives in the database.
package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/babelscrib/babelscrib/internal/common"
)

// Claims carries the opaque session key inside the signed token.
type Claims struct {
	jwt.RegisteredClaims
	SessionKey string
}

// GenerateToken wraps sessionKey into a signed HS256 token.
func GenerateToken(sessionKey string, secretKey []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		SessionKey: sessionKey,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// SessionKeyFromToken verifies the token signature and returns the embedded
// session key.
func SessionKeyFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return "", err
	}

	if !token.Valid || claims.SessionKey == "" {
		return "", common.ErrorInvalidToken
	}

	return claims.SessionKey, nil
}
