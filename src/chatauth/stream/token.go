package stream

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Tokens signs Stream Chat JWTs with the application secret.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

func NewTokens(secret string, ttl time.Duration) Tokens {
	return Tokens{secret: []byte(secret), ttl: ttl}
}

// UserToken mints a client token scoped to userID. A zero ttl yields a
// token without expiry.
func (t Tokens) UserToken(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("stream: empty user id")
	}
	claims := jwt.MapClaims{"user_id": userID}
	if t.ttl > 0 {
		now := time.Now()
		claims["iat"] = now.Unix()
		claims["exp"] = now.Add(t.ttl).Unix()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// ServerToken authenticates server-side REST calls.
func (t Tokens) ServerToken() (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"server": true}).SignedString(t.secret)
}
