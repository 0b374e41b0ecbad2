// Copyright (c) 2026 Atrium. All rights reserved.

package identity_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumhq/atrium/internal/platform/apperr"
	"github.com/atriumhq/atrium/internal/platform/sec"
	"github.com/atriumhq/atrium/internal/users/identity"
)

// # In-Memory Fakes

type fakeStore struct {
	mu         sync.Mutex
	users      map[string]*identity.User     // keyed by UID
	identities []*identity.Identity
	sessions   map[string]*identity.Session // keyed by token hash
	oauthState map[string]identity.Provider
	verifyTok  map[string]string
	nextID     int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:      make(map[string]*identity.User),
		sessions:   make(map[string]*identity.Session),
		oauthState: make(map[string]identity.Provider),
		verifyTok:  make(map[string]string),
	}
}

// UserRepository

func (s *fakeStore) FindByUID(_ context.Context, uid string) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[uid]; ok {
		return user, nil
	}
	return nil, apperr.NotFound("User")
}

func (s *fakeStore) FindByUsername(_ context.Context, username string) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (s *fakeStore) Update(_ context.Context, user *identity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.UID] = user
	return nil
}

func (s *fakeStore) UpdatePassword(_ context.Context, uid, newHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[uid]; ok {
		user.PasswordHash = newHash
	}
	return nil
}

func (s *fakeStore) MarkVerified(_ context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[uid]; ok {
		user.IsVerified = true
	}
	return nil
}

// IdentityRepository

func (s *fakeStore) Resolve(ctx context.Context, provider identity.Provider, accountID string) (*identity.User, error) {
	s.mu.Lock()
	var owner string
	for _, link := range s.identities {
		if link.Provider == provider && link.AccountID == accountID {
			owner = link.UserUID
			break
		}
	}
	s.mu.Unlock()
	if owner == "" {
		return nil, apperr.NotFound("Account")
	}
	return s.FindByUID(ctx, owner)
}

func (s *fakeStore) FindIdentity(_ context.Context, provider identity.Provider, accountID string) (*identity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, link := range s.identities {
		if link.Provider == provider && link.AccountID == accountID {
			return link, nil
		}
	}
	return nil, apperr.NotFound("Identity")
}

func (s *fakeStore) ListByUser(_ context.Context, userUID string) ([]*identity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var linked []*identity.Identity
	for _, link := range s.identities {
		if link.UserUID == userUID {
			linked = append(linked, link)
		}
	}
	return linked, nil
}

func (s *fakeStore) Bind(_ context.Context, link *identity.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	link.ID = s.nextID
	s.identities = append(s.identities, link)
	return nil
}

func (s *fakeStore) Unbind(_ context.Context, userUID string, provider identity.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for index, link := range s.identities {
		if link.UserUID == userUID && link.Provider == provider {
			s.identities = append(s.identities[:index], s.identities[index+1:]...)
			return nil
		}
	}
	return apperr.NotFound("Identity")
}

func (s *fakeStore) CreateUserWithIdentity(ctx context.Context, user *identity.User, link *identity.Identity) error {
	s.mu.Lock()
	s.users[user.UID] = user
	s.mu.Unlock()
	return s.Bind(ctx, link)
}

// SessionRepository

func (s *fakeStore) Create(_ context.Context, session *identity.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.TokenHash] = session
	return nil
}

func (s *fakeStore) FindByTokenHash(_ context.Context, tokenHash string) (*identity.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[tokenHash]
	if !ok || session.IsRevoked || session.ExpiresAt.Before(time.Now()) {
		return nil, apperr.NotFound("Session")
	}
	return session, nil
}

func (s *fakeStore) Revoke(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if session.ID == sessionID {
			session.IsRevoked = true
		}
	}
	return nil
}

func (s *fakeStore) RevokeAll(_ context.Context, userUID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if session.UserUID == userUID {
			session.IsRevoked = true
		}
	}
	return nil
}

func (s *fakeStore) DeleteExpired(context.Context) error { return nil }

// StateRepository

func (s *fakeStore) SetOAuthState(_ context.Context, state string, provider identity.Provider, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oauthState[state] = provider
	return nil
}

func (s *fakeStore) ConsumeOAuthState(_ context.Context, state string) (identity.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	provider, ok := s.oauthState[state]
	if !ok {
		return "", apperr.NotFound("OAuth state")
	}
	delete(s.oauthState, state)
	return provider, nil
}

func (s *fakeStore) SetVerificationToken(_ context.Context, token, userUID string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verifyTok[token] = userUID
	return nil
}

func (s *fakeStore) ConsumeVerificationToken(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userUID, ok := s.verifyTok[token]
	if !ok {
		return "", apperr.NotFound("Verification token")
	}
	delete(s.verifyTok, token)
	return userUID, nil
}

// fakeTokens is a TokenProvider that emits predictable strings.
type fakeTokens struct{}

func (fakeTokens) GenerateAccessToken(userID, _ string, _ time.Duration) (string, error) {
	return "access-" + userID, nil
}

func newTestService(store *fakeStore) *identity.Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return identity.NewService(store, store, store, store, fakeTokens{}, logger)
}

// # Tests

/*
TestService_Resolve_NeverCreates asserts the core login rule: resolution of
an unknown identity is a 404 and leaves storage untouched.
*/
func TestService_Resolve_NeverCreates(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store)

	_, err := service.Resolve(context.Background(), identity.ProviderGoogle, "sub-12345")
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))

	// No user, identity, or session row may appear from a failed resolve.
	assert.Empty(t, store.users)
	assert.Empty(t, store.identities)
	assert.Empty(t, store.sessions)
}

/*
TestService_Register_CreatesUserAndIdentity covers the atomic creation path.
*/
func TestService_Register_CreatesUserAndIdentity(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store)

	user, err := service.Register(context.Background(), identity.RegisterInput{
		Provider:    identity.ProviderWallet,
		AccountID:   "0x8BA1F109551BD432803012645AC136DDD64DBA72",
		Username:    "ava",
		DisplayName: "Ava",
	})
	require.NoError(t, err)
	require.NotEmpty(t, user.UID)

	// The wallet address is stored lowercased and resolvable either way.
	resolved, err := service.Resolve(context.Background(),
		identity.ProviderWallet, "0x8ba1f109551bd432803012645ac136ddd64dba72")
	require.NoError(t, err)
	assert.Equal(t, user.UID, resolved.UID)

	links, err := service.ListIdentities(context.Background(), user.UID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, identity.ProviderWallet, links[0].Provider)
	assert.Equal(t, "0x8ba1f109551bd432803012645ac136ddd64dba72", links[0].AccountID)
}

/*
TestService_Register_Conflicts covers the duplicate identity and username rules.
*/
func TestService_Register_Conflicts(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store)

	_, err := service.Register(context.Background(), identity.RegisterInput{
		Provider:  identity.ProviderGitHub,
		AccountID: "777",
		Username:  "ava",
	})
	require.NoError(t, err)

	// Same identity again.
	_, err = service.Register(context.Background(), identity.RegisterInput{
		Provider:  identity.ProviderGitHub,
		AccountID: "777",
		Username:  "someoneelse",
	})
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))

	// Same username, different identity.
	_, err = service.Register(context.Background(), identity.RegisterInput{
		Provider:  identity.ProviderGoogle,
		AccountID: "sub-1",
		Username:  "ava",
	})
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))
}

/*
TestService_Register_Email covers the credential path: bcrypt hashing and
the verification token side effect.
*/
func TestService_Register_Email(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store)

	user, err := service.Register(context.Background(), identity.RegisterInput{
		Provider:  identity.ProviderEmail,
		AccountID: "Ava@Example.COM",
		Username:  "ava",
		Password:  "correct horse battery",
	})
	require.NoError(t, err)

	// Plain text must never be stored.
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "correct horse battery", user.PasswordHash)
	assert.True(t, sec.CheckPasswordHash("correct horse battery", user.PasswordHash))

	// Email account ids are canonicalized to lower case.
	_, err = service.Resolve(context.Background(), identity.ProviderEmail, "ava@example.com")
	require.NoError(t, err)

	// A verification token was generated for the external mailer.
	require.Len(t, store.verifyTok, 1)
	for _, uid := range store.verifyTok {
		assert.Equal(t, user.UID, uid)
	}

	// Password is mandatory for the email provider.
	_, err = service.Register(context.Background(), identity.RegisterInput{
		Provider:  identity.ProviderEmail,
		AccountID: "other@example.com",
		Username:  "other",
	})
	require.Error(t, err)
	assert.Equal(t, 400, apperr.As(err).HTTPStatus)
}

/*
TestService_Bind covers linking rules: global uniqueness and one per provider.
*/
func TestService_Bind(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store)

	first, err := service.Register(context.Background(), identity.RegisterInput{
		Provider: identity.ProviderGitHub, AccountID: "1", Username: "first",
	})
	require.NoError(t, err)
	second, err := service.Register(context.Background(), identity.RegisterInput{
		Provider: identity.ProviderGitHub, AccountID: "2", Username: "second",
	})
	require.NoError(t, err)

	// Happy path: a new provider for the first user.
	link, err := service.Bind(context.Background(), first.UID, identity.ProviderGoogle, "sub-9")
	require.NoError(t, err)
	assert.Equal(t, first.UID, link.UserUID)

	// The same external account cannot be linked to a second user.
	_, err = service.Bind(context.Background(), second.UID, identity.ProviderGoogle, "sub-9")
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))

	// One identity per provider per user.
	_, err = service.Bind(context.Background(), first.UID, identity.ProviderGoogle, "sub-10")
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))

	// Unknown target account.
	_, err = service.Bind(context.Background(), "missing-uid", identity.ProviderGoogle, "sub-11")
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

/*
TestService_Unbind covers the last-identity guard.
*/
func TestService_Unbind(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store)

	user, err := service.Register(context.Background(), identity.RegisterInput{
		Provider: identity.ProviderWallet,
		AccountID: "0x8ba1f109551bd432803012645ac136ddd64dba72",
		Username: "ava",
	})
	require.NoError(t, err)

	// A single linked identity can never be removed.
	err = service.Unbind(context.Background(), user.UID, identity.ProviderWallet)
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))

	// After binding a second identity the first becomes removable.
	_, err = service.Bind(context.Background(), user.UID, identity.ProviderGitHub, "42")
	require.NoError(t, err)

	require.NoError(t, service.Unbind(context.Background(), user.UID, identity.ProviderWallet))

	links, err := service.ListIdentities(context.Background(), user.UID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, identity.ProviderGitHub, links[0].Provider)

	// Unbinding a provider the user never held is a 404, and the now-last
	// identity is again protected.
	err = service.Unbind(context.Background(), user.UID, identity.ProviderGoogle)
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))

	err = service.Unbind(context.Background(), user.UID, identity.ProviderGitHub)
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))
}

/*
TestService_LoginWithEmail covers credential verification and session issuance.
*/
func TestService_LoginWithEmail(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store)

	user, err := service.Register(context.Background(), identity.RegisterInput{
		Provider:  identity.ProviderEmail,
		AccountID: "ava@example.com",
		Username:  "ava",
		Password:  "correct horse battery",
	})
	require.NoError(t, err)

	session, err := service.LoginWithEmail(context.Background(), identity.LoginInput{
		Email:    "ava@example.com",
		Password: "correct horse battery",
	})
	require.NoError(t, err)
	assert.Equal(t, "access-"+user.UID, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)
	assert.True(t, session.RefreshTokenExpiresAt.After(time.Now()))

	// Wrong password and unknown email are indistinguishable 401s.
	_, err = service.LoginWithEmail(context.Background(), identity.LoginInput{
		Email: "ava@example.com", Password: "wrong",
	})
	require.Error(t, err)
	assert.Equal(t, 401, apperr.As(err).HTTPStatus)

	_, err = service.LoginWithEmail(context.Background(), identity.LoginInput{
		Email: "ghost@example.com", Password: "whatever",
	})
	require.Error(t, err)
	assert.Equal(t, 401, apperr.As(err).HTTPStatus)

	// Failed logins never create accounts.
	assert.Len(t, store.users, 1)
}

/*
TestService_LoginResolved covers the OAuth/wallet login path: resolution
only, no account creation.
*/
func TestService_LoginResolved(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store)

	// Unregistered identity: 404, nothing created.
	_, err := service.LoginResolved(context.Background(), identity.ProviderGoogle, "sub-1", "ua", "ip")
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
	assert.Empty(t, store.users)

	user, err := service.Register(context.Background(), identity.RegisterInput{
		Provider: identity.ProviderGoogle, AccountID: "sub-1", Username: "ava",
	})
	require.NoError(t, err)

	session, err := service.LoginResolved(context.Background(), identity.ProviderGoogle, "sub-1", "ua", "ip")
	require.NoError(t, err)
	assert.Equal(t, user.UID, session.User.UID)
}

/*
TestService_RefreshSession covers refresh token rotation and replay death.
*/
func TestService_RefreshSession(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store)

	_, err := service.Register(context.Background(), identity.RegisterInput{
		Provider:  identity.ProviderEmail,
		AccountID: "ava@example.com",
		Username:  "ava",
		Password:  "correct horse battery",
	})
	require.NoError(t, err)

	login, err := service.LoginWithEmail(context.Background(), identity.LoginInput{
		Email: "ava@example.com", Password: "correct horse battery",
	})
	require.NoError(t, err)

	rotated, err := service.RefreshSession(context.Background(), login.RefreshToken, "ua", "ip")
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, rotated.RefreshToken)

	// The consumed token is dead; replaying it fails.
	_, err = service.RefreshSession(context.Background(), login.RefreshToken, "ua", "ip")
	require.Error(t, err)
	assert.Equal(t, 401, apperr.As(err).HTTPStatus)
}

/*
TestService_VerifyEmail covers verification token consumption.
*/
func TestService_VerifyEmail(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store)

	user, err := service.Register(context.Background(), identity.RegisterInput{
		Provider:  identity.ProviderEmail,
		AccountID: "ava@example.com",
		Username:  "ava",
		Password:  "correct horse battery",
	})
	require.NoError(t, err)
	require.False(t, user.IsVerified)

	var token string
	for issued := range store.verifyTok {
		token = issued
	}
	require.NotEmpty(t, token)

	require.NoError(t, service.VerifyEmail(context.Background(), token))
	assert.True(t, store.users[user.UID].IsVerified)

	// Tokens are single use.
	err = service.VerifyEmail(context.Background(), token)
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}
