package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/facility-tickets/internal/domain"
)

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttlMinutes int) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &TokenManager{secret: []byte(secret), ttl: time.Duration(ttlMinutes) * time.Minute}
}

// Claims describes the JWT payload issued by the identity provider.
type Claims struct {
	ActorID    string        `json:"sub"`
	Roles      []domain.Role `json:"roles"`
	Properties []string      `json:"properties,omitempty"`
	Skills     []string      `json:"skills,omitempty"`
	jwt.RegisteredClaims
}

// Actor converts claims into the engine's caller.
func (c *Claims) Actor() *domain.Actor {
	return &domain.Actor{
		ID:                  c.ActorID,
		Roles:               append([]domain.Role(nil), c.Roles...),
		PropertyMemberships: append([]string(nil), c.Properties...),
		Skills:              append([]string(nil), c.Skills...),
	}
}

// GenerateToken builds and signs a JWT for the actor.
func (tm *TokenManager) GenerateToken(actor *domain.Actor) (string, time.Time, error) {
	if !actor.Authenticated() {
		return "", time.Time{}, errors.New("actor id required")
	}
	now := time.Now()
	expiresAt := now.Add(tm.ttl)
	claims := &Claims{
		ActorID:    actor.ID,
		Roles:      actor.Roles,
		Properties: actor.PropertyMemberships,
		Skills:     actor.Skills,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.ActorID == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}
