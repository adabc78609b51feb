package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer signs and verifies page scoped HS256 tokens.
type TokenIssuer struct {
	secretKey []byte
	ttl       time.Duration
}

// NewTokenIssuer builds an issuer using the provided secret.
func NewTokenIssuer(secretKey string) *TokenIssuer {
	return &TokenIssuer{
		secretKey: []byte(secretKey),
		ttl:       time.Hour,
	}
}

// WithTTL allows customising the expiration duration.
func (ti *TokenIssuer) WithTTL(ttl time.Duration) *TokenIssuer {
	if ttl > 0 {
		ti.ttl = ttl
	}
	return ti
}

// Issue 为 subject（通常是页面客户端 ID）签发令牌
func (ti *TokenIssuer) Issue(subject string) (string, error) {
	if ti == nil {
		return "", errors.New("token issuer is nil")
	}
	if len(ti.secretKey) == 0 {
		return "", errors.New("token issuer secret is empty")
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify validates the token signature and expiry and returns its subject.
func (ti *TokenIssuer) Verify(tokenString string) (string, error) {
	if ti == nil {
		return "", errors.New("token issuer is nil")
	}
	if len(ti.secretKey) == 0 {
		return "", errors.New("token issuer secret is empty")
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ti.secretKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	return claims.Subject, nil
}

// expired reports whether raw is a JWT whose exp claim lies before now.
// Opaque tokens never expire from the resolver's point of view.
func expired(raw string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Time.Before(now)
}
