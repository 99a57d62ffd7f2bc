package auth

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

var ErrTokenInvalid = errors.New("token is invalid")

// TokenProvider verifies the JWTs issued by the external auth service. The
// subject claim carries the user id.
type TokenProvider struct {
	secret []byte
}

// NewTokenProvider builds a provider over the shared HMAC secret.
func NewTokenProvider(secret string) *TokenProvider {
	return &TokenProvider{secret: []byte(secret)}
}

// ParseUserID validates the token and extracts the authenticated user id.
func (p *TokenProvider) ParseUserID(tokenString string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, ErrTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrTokenInvalid
	}
	subject, err := claims.GetSubject()
	if err != nil {
		return 0, ErrTokenInvalid
	}
	userID, err := strconv.ParseInt(subject, 10, 64)
	if err != nil {
		return 0, ErrTokenInvalid
	}
	return userID, nil
}
