package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// StateTTL bounds how long an OAuth redirect may take
const StateTTL = 10 * time.Minute

const stateAudience = "oauth_state"

type stateClaims struct {
	Provider string `json:"provider"`
	jwt.RegisteredClaims
}

// IssueState returns a signed OAuth state value bound to userID and provider
func (i *Issuer) IssueState(userID, provider, nonce string) (string, error) {
	now := i.now()
	claims := &stateClaims{
		Provider: provider,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Audience:  jwt.ClaimStrings{stateAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(StateTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        nonce,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// VerifyState checks an OAuth state value and returns the user id it was issued for
func (i *Issuer) VerifyState(state, provider string) (string, error) {
	claims := &stateClaims{}
	token, err := jwt.ParseWithClaims(state, claims, i.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(stateAudience),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid || claims.Provider != provider || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
