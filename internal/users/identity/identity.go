// Copyright (c) 2026 Atrium. All rights reserved.

// Package identity implements multi-provider account resolution for Atrium.
//
// # Architecture
//
// A User is a single portal account. An Identity is one external credential
// (wallet address, Google subject, GitHub id, or email) linked to that
// account. Users sign in through any linked identity; the (provider,
// account_id) pair resolves to at most one user.
//
// # Rules
//
//   - Logging in NEVER creates an account. An unresolved identity is a 404
//     the client must answer with an explicit registration step.
//   - Registration creates the user and its first identity atomically.
//   - A user can hold at most one identity per provider.
//   - The last remaining identity of a user cannot be unbound, otherwise the
//     account would become unreachable.
package identity

import "time"

// Provider enumerates the supported identity providers.
type Provider string

const (
	ProviderWallet Provider = "wallet"
	ProviderGoogle Provider = "google"
	ProviderGitHub Provider = "github"
	ProviderEmail  Provider = "email"
)

// Valid reports whether the provider is one of the supported set.
func (p Provider) Valid() bool {
	switch p {
	case ProviderWallet, ProviderGoogle, ProviderGitHub, ProviderEmail:
		return true
	}
	return false
}

// User represents a registered member of the Atrium portal.
//
// # Rules
//   - Username is unique and URL-safe.
//   - PasswordHash is set only for accounts with an email identity and is
//     generated via Bcrypt exclusively inside the service layer.
//   - Experience accumulates from community activity and never decreases.
type User struct {
	UID          string    `json:"uid"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	Bio          string    `json:"bio,omitempty"`
	Experience   int64     `json:"experience"`
	IsVerified   bool      `json:"is_verified"`
	PasswordHash string    `json:"-"` // Explicitly omitted from JSON for security.
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Identity is one external credential linked to a user account.
//
// The (Provider, AccountID) pair is globally unique: an external account can
// be linked to at most one Atrium user.
type Identity struct {
	ID        int64     `json:"id"`
	Provider  Provider  `json:"provider"`
	AccountID string    `json:"account_id"`
	UserUID   string    `json:"user_uid"`
	CreatedAt time.Time `json:"created_at"`
}

// Session represents an active refresh-token session.
//
// # Security Concept
//
// Access tokens (JWT) are stateless and cannot be revoked before expiry.
// Atrium pairs short-lived JWTs with long-lived database-tracked sessions:
// when the JWT expires the client exchanges the refresh token for a new pair,
// and revoking the session logs the device out for good.
type Session struct {
	ID        string    `json:"id"`
	UserUID   string    `json:"user_uid"`
	TokenHash string    `json:"-"` // Hashed refresh token. Omitted for security.
	UserAgent string    `json:"user_agent"`
	IPAddress string    `json:"ip_address"`
	ExpiresAt time.Time `json:"expires_at"`
	IsRevoked bool      `json:"is_revoked"`
	CreatedAt time.Time `json:"created_at"`
}

// # Lifetime Constraints

const (
	// AccessTokenTTL is the duration a JWT access token remains valid.
	// Short (15m) to minimize the impact of a leaked token.
	AccessTokenTTL = 15 * time.Minute

	// RefreshTokenTTL is the duration a refresh session remains valid.
	RefreshTokenTTL = 30 * 24 * time.Hour

	// RefreshTokenLength is the byte length of the random refresh token.
	RefreshTokenLength = 32

	// OAuthStateTTL bounds how long an OAuth round-trip may take.
	OAuthStateTTL = 10 * time.Minute

	// OAuthStateLength is the byte length of the random state token.
	OAuthStateLength = 16

	// VerificationTokenTTL is how long an email verification token remains
	// valid. Long-lived as users might not check email immediately.
	VerificationTokenTTL = 24 * time.Hour

	// VerificationTokenLength is the byte length of the verification token.
	VerificationTokenLength = 32
)
