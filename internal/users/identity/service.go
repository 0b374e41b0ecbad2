// Copyright (c) 2026 Atrium. All rights reserved.

package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/atriumhq/atrium/internal/platform/apperr"
	"github.com/atriumhq/atrium/internal/platform/sec"
	"github.com/atriumhq/atrium/pkg/uuid"
)

// TokenProvider defines the contract for generating access tokens.
type TokenProvider interface {
	// GenerateAccessToken creates a signed JWT string for the given user.
	GenerateAccessToken(userID, username string, timeToLive time.Duration) (string, error)
}

// Service implements account resolution, registration, and credential login.
//
// # Review Process
//
// This service owns every account creation path. Any change to the
// no-auto-create rule or the last-identity guard must be reviewed by the
// security team.
type Service struct {
	userRepository     UserRepository
	identityRepository IdentityRepository
	sessionRepository  SessionRepository
	stateRepository    StateRepository
	tokenProvider      TokenProvider
	logger             *slog.Logger
}

// NewService constructs a new identity [Service] with its dependencies.
func NewService(
	userRepo UserRepository,
	identityRepo IdentityRepository,
	sessionRepo SessionRepository,
	stateRepo StateRepository,
	tokenProv TokenProvider,
	logger *slog.Logger,
) *Service {
	return &Service{
		userRepository:     userRepo,
		identityRepository: identityRepo,
		sessionRepository:  sessionRepo,
		stateRepository:    stateRepo,
		tokenProvider:      tokenProv,
		logger:             logger,
	}
}

// normalizeAccountID canonicalizes the external account identifier so the
// same credential always maps to the same identity row.
func normalizeAccountID(provider Provider, accountID string) string {
	switch provider {
	case ProviderWallet:
		return sec.NormalizeWallet(strings.TrimSpace(accountID))
	case ProviderEmail:
		return strings.ToLower(strings.TrimSpace(accountID))
	default:
		return strings.TrimSpace(accountID)
	}
}

// Resolve maps an external identity to its portal account.
//
// # Rules
//
// Resolution is strictly a read. An unresolved identity surfaces as
// [apperr.NotFound]; the caller decides whether that triggers an explicit
// registration step. No code path here may create a user.
func (service *Service) Resolve(ctx context.Context, provider Provider, accountID string) (*User, error) {
	if !provider.Valid() {
		return nil, apperr.ValidationError("Unknown identity provider")
	}
	return service.identityRepository.Resolve(ctx, provider, normalizeAccountID(provider, accountID))
}

// RegisterInput holds the data required to enroll a new account.
type RegisterInput struct {
	Provider    Provider
	AccountID   string
	Username    string
	DisplayName string

	// Password is required for, and only for, the email provider.
	Password string
}

// Register creates a user and its first identity atomically.
//
// # Returns
//   - [apperr.Conflict] if the identity is already bound or the username is taken.
//   - [apperr.ValidationError] for unknown providers or missing credentials.
//
// # Business Rules
//   - The identity (provider, account_id) must be unbound.
//   - Usernames must be unique.
//   - Email registrations require a password and trigger a verification token.
func (service *Service) Register(ctx context.Context, input RegisterInput) (*User, error) {
	if !input.Provider.Valid() {
		return nil, apperr.ValidationError("Unknown identity provider")
	}
	accountID := normalizeAccountID(input.Provider, input.AccountID)

	// ── 1. Uniqueness Checks ──────────────────────────────────────────────

	// Fail fast on an already-bound identity. The unique index still backs
	// this up inside the transaction for racing registrations.
	if _, err := service.identityRepository.FindIdentity(ctx, input.Provider, accountID); err == nil {
		return nil, apperr.Conflict("Identity is already registered")
	}

	if _, err := service.userRepository.FindByUsername(ctx, input.Username); err == nil {
		return nil, apperr.Conflict("Username is already taken")
	}

	// ── 2. Credentials ────────────────────────────────────────────────────

	var passwordHash string
	if input.Provider == ProviderEmail {
		if input.Password == "" {
			return nil, apperr.ValidationError("Password is required for email registration")
		}
		hash, err := sec.HashPassword(input.Password)
		if err != nil {
			return nil, fmt.Errorf("identity_service_hash_failed: %w", err)
		}
		passwordHash = hash
	}

	// ── 3. Entity Construction ────────────────────────────────────────────

	user := &User{
		UID:          uuid.Must(), // Time-sortable ID to prevent PG index fragmentation.
		Username:     input.Username,
		DisplayName:  input.DisplayName,
		PasswordHash: passwordHash,
	}
	identity := &Identity{
		Provider:  input.Provider,
		AccountID: accountID,
		UserUID:   user.UID,
	}

	// ── 4. Atomic Persistence ─────────────────────────────────────────────

	if err := service.identityRepository.CreateUserWithIdentity(ctx, user, identity); err != nil {
		return nil, err
	}

	// ── 5. Email Verification Token ───────────────────────────────────────

	// Token dispatch is delegated to an external mailer; this service only
	// generates and stores it.
	if input.Provider == ProviderEmail {
		token, err := sec.GenerateSecureToken(VerificationTokenLength)
		if err == nil {
			err = service.stateRepository.SetVerificationToken(ctx, token, user.UID, VerificationTokenTTL)
		}
		if err != nil {
			// The account exists; verification can be re-requested later.
			service.logger.Warn("identity_verification_token_failed",
				slog.String("user_uid", user.UID), slog.Any("error", err))
		}
	}

	service.logger.Info("user_registered",
		slog.String("user_uid", user.UID),
		slog.String("provider", string(input.Provider)),
	)

	return user, nil
}

// Bind links an additional identity to an existing user.
//
// # Returns
//   - [apperr.Conflict] if the identity is bound anywhere or the user already
//     holds an identity for this provider.
func (service *Service) Bind(ctx context.Context, userUID string, provider Provider, accountID string) (*Identity, error) {
	if !provider.Valid() {
		return nil, apperr.ValidationError("Unknown identity provider")
	}
	accountID = normalizeAccountID(provider, accountID)

	// The target account must exist.
	if _, err := service.userRepository.FindByUID(ctx, userUID); err != nil {
		return nil, err
	}

	// ── 1. Global Uniqueness ──────────────────────────────────────────────

	if existing, err := service.identityRepository.FindIdentity(ctx, provider, accountID); err == nil {
		if existing.UserUID == userUID {
			return nil, apperr.Conflict("Identity is already linked to this account")
		}
		return nil, apperr.Conflict("Identity is already linked to another account")
	}

	// ── 2. One Identity Per Provider ──────────────────────────────────────

	linked, err := service.identityRepository.ListByUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("identity_service_bind_list_failed: %w", err)
	}
	for _, identity := range linked {
		if identity.Provider == provider {
			return nil, apperr.Conflict("Account already has a linked " + string(provider) + " identity")
		}
	}

	// ── 3. Persistence ────────────────────────────────────────────────────

	identity := &Identity{
		Provider:  provider,
		AccountID: accountID,
		UserUID:   userUID,
	}
	if err := service.identityRepository.Bind(ctx, identity); err != nil {
		return nil, err
	}

	service.logger.Info("identity_bound",
		slog.String("user_uid", userUID),
		slog.String("provider", string(provider)),
	)

	return identity, nil
}

// Unbind removes the user's identity for a provider.
//
// # Returns
//   - [apperr.Conflict] when it is the user's only identity. An account must
//     always retain at least one login path.
//   - [apperr.NotFound] when the user holds no identity for the provider.
func (service *Service) Unbind(ctx context.Context, userUID string, provider Provider) error {
	if !provider.Valid() {
		return apperr.ValidationError("Unknown identity provider")
	}

	linked, err := service.identityRepository.ListByUser(ctx, userUID)
	if err != nil {
		return fmt.Errorf("identity_service_unbind_list_failed: %w", err)
	}

	holds := false
	for _, identity := range linked {
		if identity.Provider == provider {
			holds = true
			break
		}
	}
	if !holds {
		return apperr.NotFound("Linked identity")
	}

	// ── Last-Identity Guard ───────────────────────────────────────────────

	if len(linked) <= 1 {
		return apperr.Conflict("Cannot remove the last linked identity")
	}

	if err := service.identityRepository.Unbind(ctx, userUID, provider); err != nil {
		return err
	}

	service.logger.Info("identity_unbound",
		slog.String("user_uid", userUID),
		slog.String("provider", string(provider)),
	)

	return nil
}

// ListIdentities returns every identity linked to the user.
func (service *Service) ListIdentities(ctx context.Context, userUID string) ([]*Identity, error) {
	return service.identityRepository.ListByUser(ctx, userUID)
}

// LoginInput defines credentials for an email authentication attempt.
type LoginInput struct {
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

// LoginSession represents a successfully established user session.
type LoginSession struct {
	AccessToken           string
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	User                  *User
}

// LoginWithEmail validates email credentials and issues security tokens.
//
// # Flow
//  1. Resolve the email identity to its account.
//  2. Verify the password hash using Bcrypt.
//  3. Issue the access/refresh token pair.
//
// Returns [apperr.Unauthorized] for any credential mismatch; the reason is
// never distinguished to prevent account enumeration.
func (service *Service) LoginWithEmail(ctx context.Context, input LoginInput) (*LoginSession, error) {
	user, err := service.identityRepository.Resolve(ctx, ProviderEmail, normalizeAccountID(ProviderEmail, input.Email))
	if err != nil {
		return nil, apperr.Unauthorized("Invalid login credentials")
	}

	// Constant-time comparison inside bcrypt protects against timing attacks.
	if user.PasswordHash == "" || !sec.CheckPasswordHash(input.Password, user.PasswordHash) {
		return nil, apperr.Unauthorized("Invalid login credentials")
	}

	return service.issueSession(ctx, user, input.UserAgent, input.IPAddress)
}

// LoginResolved issues a session for an identity that has already been
// proven externally (OAuth code exchange or wallet signature).
//
// Resolution failures propagate as [apperr.NotFound]: the caller must offer
// explicit registration, never silent account creation.
func (service *Service) LoginResolved(ctx context.Context, provider Provider, accountID, userAgent, ipAddress string) (*LoginSession, error) {
	user, err := service.Resolve(ctx, provider, accountID)
	if err != nil {
		return nil, err
	}
	return service.issueSession(ctx, user, userAgent, ipAddress)
}

// issueSession mints the access token and the tracked refresh session.
func (service *Service) issueSession(ctx context.Context, user *User, userAgent, ipAddress string) (*LoginSession, error) {
	accessToken, err := service.tokenProvider.GenerateAccessToken(user.UID, user.Username, AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("identity_service_token_generation_failed: %w", err)
	}

	refreshToken, err := sec.GenerateSecureToken(RefreshTokenLength)
	if err != nil {
		return nil, fmt.Errorf("identity_service_refresh_token_failed: %w", err)
	}

	expiresAt := time.Now().Add(RefreshTokenTTL)
	session := &Session{
		ID:        uuid.Must(),
		UserUID:   user.UID,
		TokenHash: sec.HashToken(refreshToken),
		UserAgent: userAgent,
		IPAddress: ipAddress,
		ExpiresAt: expiresAt,
		IsRevoked: false,
	}

	if err := service.sessionRepository.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("identity_service_session_creation_failed: %w", err)
	}

	return &LoginSession{
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		RefreshTokenExpiresAt: expiresAt,
		User:                  user,
	}, nil
}

// RefreshSession implements refresh token rotation: the presented token is
// revoked and a fresh pair is issued, so a replayed token dies on arrival.
func (service *Service) RefreshSession(ctx context.Context, refreshToken, userAgent, ipAddress string) (*LoginSession, error) {
	session, err := service.sessionRepository.FindByTokenHash(ctx, sec.HashToken(refreshToken))
	if err != nil {
		return nil, apperr.Unauthorized("Invalid or expired refresh token")
	}

	if err := service.sessionRepository.Revoke(ctx, session.ID); err != nil {
		return nil, fmt.Errorf("identity_service_refresh_revoke_failed: %w", err)
	}

	user, err := service.userRepository.FindByUID(ctx, session.UserUID)
	if err != nil {
		return nil, apperr.Unauthorized("User not found or suspended")
	}

	return service.issueSession(ctx, user, userAgent, ipAddress)
}

// Logout permanently revokes the session behind the refresh token.
// Unknown tokens are treated as already logged out (idempotent operation).
func (service *Service) Logout(ctx context.Context, refreshToken string) error {
	session, err := service.sessionRepository.FindByTokenHash(ctx, sec.HashToken(refreshToken))
	if err != nil {
		return nil
	}

	if err := service.sessionRepository.Revoke(ctx, session.ID); err != nil {
		return fmt.Errorf("identity_service_logout_failed: %w", err)
	}

	return nil
}

// VerifyEmail consumes a verification token and marks the account verified.
func (service *Service) VerifyEmail(ctx context.Context, token string) error {
	userUID, err := service.stateRepository.ConsumeVerificationToken(ctx, token)
	if err != nil {
		return err
	}

	if err := service.userRepository.MarkVerified(ctx, userUID); err != nil {
		return fmt.Errorf("identity_service_mark_verified_failed: %w", err)
	}

	service.logger.Info("user_email_verified", slog.String("user_uid", userUID))
	return nil
}
