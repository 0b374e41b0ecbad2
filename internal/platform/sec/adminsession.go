// Copyright (c) 2026 Atrium. All rights reserved.

package sec

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AdminSessionClaims is the payload of a stateless admin session token.
//
// Validity is purely a function of signature and expiry. There is no
// server-side session store and no revocation channel other than expiry
// or cookie clearing.
type AdminSessionClaims struct {
	jwt.RegisteredClaims

	// Wallet is the lowercased admin wallet address the session was minted for.
	Wallet string `json:"wlt"`
}

// AdminSessionService mints and verifies short-lived admin session tokens.
//
// # Why HS256?
//
// Admin sessions are issued and verified by the same process, so a shared
// symmetric secret (SESSION_SECRET) is sufficient and avoids key distribution.
// User access tokens remain RS256 because third parties may verify them.
type AdminSessionService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewAdminSessionService constructs an [AdminSessionService].
func NewAdminSessionService(secret, issuer string, ttl time.Duration) (*AdminSessionService, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("sec: session secret must be at least 32 bytes")
	}
	return &AdminSessionService{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
	}, nil
}

// Mint creates a signed session token for the given wallet address.
// The address is lowercased before embedding.
func (service *AdminSessionService) Mint(wallet string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(service.ttl)

	claims := AdminSessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strings.ToLower(wallet),
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Wallet: strings.ToLower(wallet),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(service.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sec: failed to sign admin session: %w", err)
	}

	return signed, expiresAt, nil
}

// Verify checks the signature and expiry of a session token and returns the
// embedded wallet address.
func (service *AdminSessionService) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AdminSessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return service.secret, nil
	})

	if err != nil {
		return "", fmt.Errorf("sec: invalid admin session: %w", err)
	}

	claims, ok := token.Claims.(*AdminSessionClaims)
	if !ok || !token.Valid || claims.Wallet == "" {
		return "", fmt.Errorf("sec: invalid admin session claims")
	}

	return claims.Wallet, nil
}

// TTL returns the configured session lifetime.
func (service *AdminSessionService) TTL() time.Duration {
	return service.ttl
}
