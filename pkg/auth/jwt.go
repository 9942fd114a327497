package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that fails signature, expiry or claim checks
var ErrInvalidToken = errors.New("invalid token")

// UserSession is the user snapshot carried in a session token
type UserSession struct {
	ID                 string `json:"userId"`
	Email              string `json:"email"`
	Name               string `json:"name,omitempty"`
	Role               string `json:"role"`
	MustChangePassword bool   `json:"mustChangePassword"`
	EmailVerified      bool   `json:"emailVerified"`
}

// IsAdmin reports whether the session belongs to an administrator
func (u UserSession) IsAdmin() bool {
	return u.Role == "admin"
}

// Claims represents the session JWT. RegisteredClaims.ID holds the session row id.
type Claims struct {
	UserSession
	jwt.RegisteredClaims
}

// SessionID returns the jti claim
func (c *Claims) SessionID() string {
	return c.RegisteredClaims.ID
}

// Issuer signs and verifies HS256 tokens with a single secret
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an Issuer. ttl is the lifetime of session tokens.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL returns the session token lifetime
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue creates a session token whose jti is sessionID
func (i *Issuer) Issue(user UserSession, sessionID string) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)

	claims := &Claims{
		UserSession: user,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        sessionID,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Validate parses a session token and checks its signature and expiry
func (i *Issuer) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, i.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserSession.ID == "" || claims.RegisteredClaims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (i *Issuer) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.New("invalid signing method")
	}
	return i.secret, nil
}
