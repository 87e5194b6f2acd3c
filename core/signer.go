package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const resetPurpose = "password_reset"

// JWTService issues and verifies HS256 reset-authorization tokens.
type JWTService struct {
	secret []byte
	issuer string
	now    func() time.Time
}

type resetClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

func NewJWTService(secret, issuer string) *JWTService {
	return NewJWTServiceWithClock(secret, issuer, time.Now)
}

func NewJWTServiceWithClock(secret, issuer string, now func() time.Time) *JWTService {
	if now == nil {
		now = time.Now
	}
	return &JWTService{secret: []byte(secret), issuer: issuer, now: now}
}

func (s *JWTService) Issue(_ context.Context, accountID string, ttl time.Duration) (Token, error) {
	if len(s.secret) == 0 {
		return Token{}, errors.New("jwt secret is required")
	}
	if accountID == "" {
		return Token{}, errors.New("account id is required")
	}
	now := s.now()
	id := uuid.NewString()
	claims := resetClaims{
		Purpose: resetPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   accountID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign reset token: %w", err)
	}
	return Token{
		ID:        id,
		Value:     signed,
		AccountID: accountID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *JWTService) Verify(_ context.Context, raw string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	var claims resetClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil || !tok.Valid {
		return Claims{}, ErrInvalidOrExpiredToken
	}
	if claims.Purpose != resetPurpose || claims.Subject == "" || claims.ID == "" {
		return Claims{}, ErrInvalidOrExpiredToken
	}
	return Claims{
		ID:        claims.ID,
		AccountID: claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
