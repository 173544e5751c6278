package httpapi

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/user"
)

// Claims carries the caller identity issued by the upstream identity service.
type Claims struct {
	Role            string `json:"role"`
	ProfileComplete bool   `json:"profile_complete"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens and resolves them to actors.
type Authenticator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// SetClock overrides the time source used for expiry checks.
func (a *Authenticator) SetClock(now func() time.Time) {
	if now != nil {
		a.now = now
	}
}

// Verify parses a raw token into an actor.
func (a *Authenticator) Verify(raw string) (user.Actor, error) {
	if raw == "" {
		return user.Actor{}, errors.New("missing bearer token")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return user.Actor{}, fmt.Errorf("invalid token: %w", err)
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return user.Actor{}, errors.New("invalid token subject")
	}
	role, err := user.ParseRole(claims.Role)
	if err != nil {
		return user.Actor{}, fmt.Errorf("invalid token role: %w", err)
	}
	return user.Actor{UserID: id, Role: role, ProfileComplete: claims.ProfileComplete}, nil
}

// Issue signs a token for actor valid for ttl. Production tokens come from
// the identity provider; Issue backs cmd/devtoken and the test suites.
func (a *Authenticator) Issue(actor user.Actor, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		Role:            string(actor.Role),
		ProfileComplete: actor.ProfileComplete,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID.String(),
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}
