// Copyright (c) 2026 StorageUp. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives, token management and the
// role policies shared by every protected endpoint.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing, token
// carriers) from the domain logic. It is injected into the Application layer
// through small interfaces declared by the consumers.
package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalid is returned when a token is malformed or its signature does not verify.
	ErrTokenInvalid = errors.New("sec: invalid token")

	// ErrTokenExpired is returned only for a correctly signed token past its expiry.
	ErrTokenExpired = errors.New("sec: token expired")

	// ErrMissingSecret is returned at construction when no signing secret is configured.
	ErrMissingSecret = errors.New("sec: signing secret is not configured")
)

// Clock returns the current time. Injected so expiry logic can be tested.
type Clock func() time.Time

// AuthClaims represents the payload embedded inside a session token.
type AuthClaims struct {
	jwt.RegisteredClaims

	// UserID duplicates Subject under the claim name older clients read.
	UserID string `json:"userId"`
}

// TokenService issues and verifies HS256 session tokens.
type TokenService struct {
	secret []byte
	issuer string
	now    Clock
	parser *jwt.Parser
}

// NewTokenService creates a new TokenService.
//
// It refuses to build without a secret so that a misconfigured process fails at startup.
func NewTokenService(secret, issuer string, clock Clock) (*TokenService, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if clock == nil {
		clock = time.Now
	}

	// Claim validation is disabled here: the signature is always checked first and
	// expiry is evaluated afterwards against the injected clock.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithoutClaimsValidation(),
	)

	return &TokenService{
		secret: []byte(secret),
		issuer: issuer,
		now:    clock,
		parser: parser,
	}, nil
}

// Issue creates a signed token for subjectID that expires after timeToLive.
func (service *TokenService) Issue(subjectID string, timeToLive time.Duration) (string, time.Time, error) {
	currentTime := service.now()
	expiresAt := jwt.NewNumericDate(currentTime.Add(timeToLive))

	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: expiresAt,
		},
		UserID: subjectID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(service.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, expiresAt.Time, nil
}

// Verify checks the signature and then the expiry of a token.
//
// # Returns
//   - The claims while the token is valid.
//   - [ErrTokenInvalid] when the token is malformed, tampered with or signed by another key.
//   - [ErrTokenExpired] when the signature verifies but now >= exp.
func (service *TokenService) Verify(tokenString string) (*AuthClaims, error) {
	claims := &AuthClaims{}
	if _, err := service.parser.ParseWithClaims(tokenString, claims, service.keyFunc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if claims.subject() == "" || claims.ExpiresAt == nil {
		return nil, ErrTokenInvalid
	}
	if service.issuer != "" && claims.Issuer != service.issuer {
		return nil, ErrTokenInvalid
	}

	if !service.now().Before(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}

	return claims, nil
}

// DecodeUnsafe returns the embedded claims without checking signature or expiry.
//
// It must never be used to authorize an action. The refresh flow calls it only
// after [TokenService.Verify] has reported [ErrTokenExpired].
func (service *TokenService) DecodeUnsafe(tokenString string) (*AuthClaims, bool) {
	claims := &AuthClaims{}
	if _, _, err := service.parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, false
	}
	if claims.subject() == "" {
		return nil, false
	}
	return claims, true
}

func (service *TokenService) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
	}
	return service.secret, nil
}

// subject prefers the registered claim and falls back to userId.
func (claims *AuthClaims) subject() string {
	if claims.Subject != "" {
		return claims.Subject
	}
	return claims.UserID
}

// SubjectID returns the identity the token authenticates.
func (claims *AuthClaims) SubjectID() string {
	return claims.subject()
}
