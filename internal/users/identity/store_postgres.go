// Copyright (c) 2026 Atrium. All rights reserved.

package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atriumhq/atrium/internal/platform/dberr"
)

// # User Repository

// PostgresUserRepository implements [UserRepository] using pgx.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates the PostgreSQL implementation of [UserRepository].
func NewUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `
	uid, username, displayname, avatarurl, bio, experience,
	isverified, passwordhash, createdat, updatedat`

func scanUser(row interface{ Scan(dest ...any) error }) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.UID,
		&user.Username,
		&user.DisplayName,
		&user.AvatarURL,
		&user.Bio,
		&user.Experience,
		&user.IsVerified,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

/*
FindByUID retrieves a single account by its primary identifier.

Parameters:
  - context: context.Context
  - uid: string

Returns:
  - *User: The hydrated account entity
  - error: Not found or execution errors
*/
func (repository *PostgresUserRepository) FindByUID(context context.Context, uid string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users.account WHERE uid = $1`

	user, err := scanUser(repository.pool.QueryRow(context, query, uid))
	if err != nil {
		return nil, dberr.Wrap(err, "find_user_by_uid")
	}
	return user, nil
}

/*
FindByUsername retrieves a single account by its unique username.

Parameters:
  - context: context.Context
  - username: string

Returns:
  - *User: The hydrated account entity
  - error: Not found or execution errors
*/
func (repository *PostgresUserRepository) FindByUsername(context context.Context, username string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users.account WHERE username = $1`

	user, err := scanUser(repository.pool.QueryRow(context, query, username))
	if err != nil {
		return nil, dberr.Wrap(err, "find_user_by_username")
	}
	return user, nil
}

/*
Update persists the mutable profile fields of an account.

Parameters:
  - context: context.Context
  - user: *User

Returns:
  - error: Constraint violations or connectivity errors
*/
func (repository *PostgresUserRepository) Update(context context.Context, user *User) error {
	const query = `
		UPDATE users.account
		SET displayname = $2, avatarurl = $3, bio = $4, experience = $5, updatedat = $6
		WHERE uid = $1`

	user.UpdatedAt = time.Now()

	_, err := repository.pool.Exec(context, query,
		user.UID,
		user.DisplayName,
		user.AvatarURL,
		user.Bio,
		user.Experience,
		user.UpdatedAt,
	)
	if err != nil {
		return dberr.Wrap(err, "update_user")
	}
	return nil
}

// UpdatePassword replaces only the password hash for the account.
func (repository *PostgresUserRepository) UpdatePassword(context context.Context, uid, newHash string) error {
	const query = `UPDATE users.account SET passwordhash = $2, updatedat = now() WHERE uid = $1`

	if _, err := repository.pool.Exec(context, query, uid, newHash); err != nil {
		return dberr.Wrap(err, "update_user_password")
	}
	return nil
}

// MarkVerified flips the verified flag for the account.
func (repository *PostgresUserRepository) MarkVerified(context context.Context, uid string) error {
	const query = `UPDATE users.account SET isverified = TRUE, updatedat = now() WHERE uid = $1`

	if _, err := repository.pool.Exec(context, query, uid); err != nil {
		return dberr.Wrap(err, "mark_user_verified")
	}
	return nil
}

// # Identity Repository

// PostgresIdentityRepository implements [IdentityRepository] using pgx.
type PostgresIdentityRepository struct {
	pool *pgxpool.Pool
}

// NewIdentityRepository creates the PostgreSQL implementation of [IdentityRepository].
func NewIdentityRepository(pool *pgxpool.Pool) *PostgresIdentityRepository {
	return &PostgresIdentityRepository{pool: pool}
}

/*
Resolve maps (provider, accountID) to the owning account in one join.

Description: The read path of every login flow. Returns the full account row
so callers avoid a second round-trip.

Parameters:
  - context: context.Context
  - provider: Provider
  - accountID: string (already normalized)

Returns:
  - *User: The owning account
  - error: apperr.NotFound when the identity is unbound
*/
func (repository *PostgresIdentityRepository) Resolve(context context.Context, provider Provider, accountID string) (*User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users.account
		JOIN users.identity ON users.identity.useruid = users.account.uid
		WHERE users.identity.provider = $1 AND users.identity.accountid = $2`

	user, err := scanUser(repository.pool.QueryRow(context, query, provider, accountID))
	if err != nil {
		return nil, dberr.Wrap(err, "resolve_identity")
	}
	return user, nil
}

/*
FindIdentity retrieves the identity row for (provider, accountID).

Parameters:
  - context: context.Context
  - provider: Provider
  - accountID: string

Returns:
  - *Identity: The identity link
  - error: apperr.NotFound when unbound
*/
func (repository *PostgresIdentityRepository) FindIdentity(context context.Context, provider Provider, accountID string) (*Identity, error) {
	const query = `
		SELECT id, provider, accountid, useruid, createdat
		FROM users.identity
		WHERE provider = $1 AND accountid = $2`

	identity := &Identity{}
	err := repository.pool.QueryRow(context, query, provider, accountID).Scan(
		&identity.ID,
		&identity.Provider,
		&identity.AccountID,
		&identity.UserUID,
		&identity.CreatedAt,
	)
	if err != nil {
		return nil, dberr.Wrap(err, "find_identity")
	}
	return identity, nil
}

/*
ListByUser retrieves every identity linked to the account, oldest first.

Parameters:
  - context: context.Context
  - userUID: string

Returns:
  - []*Identity: Linked identities
  - error: Execution or scanning errors
*/
func (repository *PostgresIdentityRepository) ListByUser(context context.Context, userUID string) ([]*Identity, error) {
	const query = `
		SELECT id, provider, accountid, useruid, createdat
		FROM users.identity
		WHERE useruid = $1
		ORDER BY createdat ASC, id ASC`

	rows, err := repository.pool.Query(context, query, userUID)
	if err != nil {
		return nil, dberr.Wrap(err, "list_identities")
	}
	defer rows.Close()

	var identities []*Identity
	for rows.Next() {
		identity := &Identity{}
		if err := rows.Scan(
			&identity.ID,
			&identity.Provider,
			&identity.AccountID,
			&identity.UserUID,
			&identity.CreatedAt,
		); err != nil {
			return nil, dberr.Wrap(err, "scan_identity")
		}
		identities = append(identities, identity)
	}

	return identities, nil
}

/*
Bind inserts an additional identity link for an existing account.

Description: The unique indexes on (provider, accountid) and
(useruid, provider) enforce the binding rules under concurrency; violations
surface as apperr.Conflict via the dberr mapping.

Parameters:
  - context: context.Context
  - identity: *Identity

Returns:
  - error: Conflict on duplicate bindings, or connectivity errors
*/
func (repository *PostgresIdentityRepository) Bind(context context.Context, identity *Identity) error {
	const query = `
		INSERT INTO users.identity (provider, accountid, useruid, createdat)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	identity.CreatedAt = time.Now()

	err := repository.pool.QueryRow(context, query,
		identity.Provider,
		identity.AccountID,
		identity.UserUID,
		identity.CreatedAt,
	).Scan(&identity.ID)
	if err != nil {
		return dberr.Wrap(err, "bind_identity")
	}
	return nil
}

// Unbind deletes the account's identity for the provider.
func (repository *PostgresIdentityRepository) Unbind(context context.Context, userUID string, provider Provider) error {
	const query = `DELETE FROM users.identity WHERE useruid = $1 AND provider = $2`

	tag, err := repository.pool.Exec(context, query, userUID, provider)
	if err != nil {
		return dberr.Wrap(err, "unbind_identity")
	}
	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}
	return nil
}

/*
CreateUserWithIdentity persists a new account and its first identity in one
transaction.

Description: Registration must never leave an account without a login path or
an identity pointing at a missing account, so both inserts share a
transaction. Unique violations on username or (provider, accountid) roll the
whole registration back.

Parameters:
  - context: context.Context
  - user: *User
  - identity: *Identity (UserUID must match user.UID)

Returns:
  - error: Conflict on unique violations, or connectivity errors
*/
func (repository *PostgresIdentityRepository) CreateUserWithIdentity(context context.Context, user *User, identity *Identity) error {
	transaction, err := repository.pool.Begin(context)
	if err != nil {
		return fmt.Errorf("postgres_identity_begin_failed: %w", err)
	}
	// Rollback is a no-op after a successful commit.
	defer func() { _ = transaction.Rollback(context) }()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	identity.CreatedAt = now

	const userQuery = `
		INSERT INTO users.account (
			uid, username, displayname, avatarurl, bio, experience,
			isverified, passwordhash, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = transaction.Exec(context, userQuery,
		user.UID,
		user.Username,
		user.DisplayName,
		user.AvatarURL,
		user.Bio,
		user.Experience,
		user.IsVerified,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return dberr.Wrap(err, "create_user")
	}

	const identityQuery = `
		INSERT INTO users.identity (provider, accountid, useruid, createdat)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err = transaction.QueryRow(context, identityQuery,
		identity.Provider,
		identity.AccountID,
		identity.UserUID,
		identity.CreatedAt,
	).Scan(&identity.ID)
	if err != nil {
		return dberr.Wrap(err, "create_first_identity")
	}

	if err := transaction.Commit(context); err != nil {
		return fmt.Errorf("postgres_identity_commit_failed: %w", err)
	}
	return nil
}

// # Session Repository

// PostgresSessionRepository implements [SessionRepository] using pgx.
type PostgresSessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates the PostgreSQL implementation of [SessionRepository].
func NewSessionRepository(pool *pgxpool.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{pool: pool}
}

// Create persists a new refresh session.
func (repository *PostgresSessionRepository) Create(context context.Context, session *Session) error {
	const query = `
		INSERT INTO users.session (
			id, useruid, tokenhash, useragent, ipaddress, expiresat, isrevoked, createdat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	session.CreatedAt = time.Now()

	_, err := repository.pool.Exec(context, query,
		session.ID,
		session.UserUID,
		session.TokenHash,
		session.UserAgent,
		session.IPAddress,
		session.ExpiresAt,
		session.IsRevoked,
		session.CreatedAt,
	)
	if err != nil {
		return dberr.Wrap(err, "create_session")
	}
	return nil
}

/*
FindByTokenHash retrieves the live session matching the token hash.

Description: Expired and revoked sessions are filtered in the query so a
stale token is indistinguishable from an invalid one.
*/
func (repository *PostgresSessionRepository) FindByTokenHash(context context.Context, tokenHash string) (*Session, error) {
	const query = `
		SELECT id, useruid, tokenhash, useragent, ipaddress, expiresat, isrevoked, createdat
		FROM users.session
		WHERE tokenhash = $1 AND isrevoked = FALSE AND expiresat > now()`

	session := &Session{}
	err := repository.pool.QueryRow(context, query, tokenHash).Scan(
		&session.ID,
		&session.UserUID,
		&session.TokenHash,
		&session.UserAgent,
		&session.IPAddress,
		&session.ExpiresAt,
		&session.IsRevoked,
		&session.CreatedAt,
	)
	if err != nil {
		return nil, dberr.Wrap(err, "find_session")
	}
	return session, nil
}

// Revoke marks one session as permanently invalidated.
func (repository *PostgresSessionRepository) Revoke(context context.Context, sessionID string) error {
	const query = `UPDATE users.session SET isrevoked = TRUE WHERE id = $1`

	if _, err := repository.pool.Exec(context, query, sessionID); err != nil {
		return dberr.Wrap(err, "revoke_session")
	}
	return nil
}

// RevokeAll revokes every active session belonging to the account.
func (repository *PostgresSessionRepository) RevokeAll(context context.Context, userUID string) error {
	const query = `UPDATE users.session SET isrevoked = TRUE WHERE useruid = $1 AND isrevoked = FALSE`

	if _, err := repository.pool.Exec(context, query, userUID); err != nil {
		return dberr.Wrap(err, "revoke_all_sessions")
	}
	return nil
}

// DeleteExpired removes lapsed sessions to reclaim storage.
func (repository *PostgresSessionRepository) DeleteExpired(context context.Context) error {
	const query = `DELETE FROM users.session WHERE expiresat < now()`

	if _, err := repository.pool.Exec(context, query); err != nil {
		return dberr.Wrap(err, "delete_expired_sessions")
	}
	return nil
}
