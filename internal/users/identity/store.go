// Copyright (c) 2026 Atrium. All rights reserved.

package identity

import (
	"context"
	"time"
)

// UserRepository defines the data access contract for user accounts.
//
// # Implementations
//
// The canonical implementation is PostgreSQL ([PostgresUserRepository]).
type UserRepository interface {
	// FindByUID returns the account with the given UID.
	//
	// Returns [apperr.NotFound] if the account does not exist.
	FindByUID(ctx context.Context, uid string) (*User, error)

	// FindByUsername returns the account with the given username.
	//
	// Returns [apperr.NotFound] if the username is available.
	FindByUsername(ctx context.Context, username string) (*User, error)

	// Update persists changes to mutable profile fields (DisplayName, Bio, etc).
	// Passwords must be updated via [UpdatePassword].
	Update(ctx context.Context, user *User) error

	// UpdatePassword replaces only the user's password hash.
	// Kept separate from [Update] so unrelated profile updates can never
	// clobber the credential.
	UpdatePassword(ctx context.Context, uid, newHash string) error

	// MarkVerified flips the account's verified flag after a successful
	// email verification token consumption.
	MarkVerified(ctx context.Context, uid string) error
}

// IdentityRepository defines the data access contract for linked identities.
type IdentityRepository interface {
	// Resolve returns the user owning the (provider, accountID) identity.
	//
	// Returns [apperr.NotFound] if no such identity is bound. Resolution is
	// the read path of every login flow and never creates rows.
	Resolve(ctx context.Context, provider Provider, accountID string) (*User, error)

	// FindIdentity returns the identity row for (provider, accountID).
	//
	// Returns [apperr.NotFound] if unbound.
	FindIdentity(ctx context.Context, provider Provider, accountID string) (*Identity, error)

	// ListByUser returns every identity linked to the user, oldest first.
	ListByUser(ctx context.Context, userUID string) ([]*Identity, error)

	// Bind links an additional identity to an existing user.
	//
	// Returns a wrapped unique-violation error if (provider, accountID) is
	// already bound anywhere or the user already holds this provider.
	Bind(ctx context.Context, identity *Identity) error

	// Unbind removes the user's identity for the provider.
	//
	// Returns [apperr.NotFound] if the user holds no such identity. The
	// last-identity guard lives in the service layer, not here.
	Unbind(ctx context.Context, userUID string, provider Provider) error

	// CreateUserWithIdentity persists a new user and its first identity in
	// one transaction. Either both rows land or neither does.
	CreateUserWithIdentity(ctx context.Context, user *User, identity *Identity) error
}

// SessionRepository defines the data access contract for refresh sessions.
type SessionRepository interface {
	// Create persists a new tracking session for an authenticated login.
	Create(ctx context.Context, session *Session) error

	// FindByTokenHash returns the active session matching the token hash.
	//
	// Returns [apperr.NotFound] if the session is invalid, expired, or revoked.
	FindByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// Revoke marks a specific session as permanently invalidated.
	Revoke(ctx context.Context, sessionID string) error

	// RevokeAll revokes every active session belonging to the user.
	// Crucial for security responses (password change, account compromise).
	RevokeAll(ctx context.Context, userUID string) error

	// DeleteExpired physically removes lapsed sessions. Intended for a
	// periodic background cleanup worker.
	DeleteExpired(ctx context.Context) error
}

// StateRepository defines the contract for volatile auth tokens.
//
// # Domain Ownership
//
// OAuth state and email verification tokens are short-lived and meaningless
// after use, so they live in Redis rather than Postgres.
type StateRepository interface {
	// SetOAuthState stores a state token with the provider it was issued for.
	SetOAuthState(ctx context.Context, state string, provider Provider, ttl time.Duration) error

	// ConsumeOAuthState returns the provider for a state token and deletes it.
	//
	// Returns [apperr.NotFound] if the state is unknown or already used.
	ConsumeOAuthState(ctx context.Context, state string) (Provider, error)

	// SetVerificationToken stores an email verification token for a user.
	SetVerificationToken(ctx context.Context, token, userUID string, ttl time.Duration) error

	// ConsumeVerificationToken returns the user for a token and deletes it.
	//
	// Returns [apperr.NotFound] if the token is unknown or expired.
	ConsumeVerificationToken(ctx context.Context, token string) (string, error)
}
