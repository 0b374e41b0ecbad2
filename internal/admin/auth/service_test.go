// Copyright (c) 2026 Atrium. All rights reserved.

package auth_test

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumhq/atrium/internal/admin/auth"
	"github.com/atriumhq/atrium/internal/platform/apperr"
	"github.com/atriumhq/atrium/internal/platform/sec"
)

// testWallet is a throwaway secp256k1 keypair for signing challenges.
type testWallet struct {
	key     *ecdsa.PrivateKey
	address string
}

func newTestWallet(t *testing.T) *testWallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &testWallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey).Hex(),
	}
}

// sign produces a personal_sign signature in the browser-wallet V convention.
func (w *testWallet) sign(t *testing.T, message string) string {
	t.Helper()
	digest := crypto.Keccak256([]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)))
	signature, err := crypto.Sign(digest, w.key)
	require.NoError(t, err)
	signature[64] += 27
	return hexutil.Encode(signature)
}

func newTestService(t *testing.T, admins []string, disableSignature bool, limiter auth.Limiter) *auth.Service {
	t.Helper()
	sessions, err := sec.NewAdminSessionService(
		"0123456789abcdef0123456789abcdef", "atrium.gg", time.Hour,
	)
	require.NoError(t, err)
	if limiter == nil {
		limiter = auth.NewMemoryLimiter(5, 15*time.Minute)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return auth.NewService(sessions, limiter, admins, disableSignature, logger)
}

func verifyInput(wallet *testWallet, issued *auth.IssuedChallenge, signature string) auth.VerifyInput {
	return auth.VerifyInput{
		Address:     wallet.address,
		Message:     issued.Challenge.Message,
		Signature:   signature,
		NonceCookie: issued.CookieValue,
		ClientIP:    "203.0.113.7",
	}
}

/*
TestService_IssueChallenge checks the challenge structure and cookie payload.
*/
func TestService_IssueChallenge(t *testing.T) {
	wallet := newTestWallet(t)
	service := newTestService(t, []string{wallet.address}, false, nil)

	issued, err := service.IssueChallenge(wallet.address)
	require.NoError(t, err)

	// 16 random bytes, hex encoded.
	assert.Len(t, issued.Challenge.Nonce, 32)
	assert.Greater(t, issued.Challenge.ExpiresAt, issued.Challenge.Timestamp)
	assert.Contains(t, issued.Challenge.Message, "Admin access to Atrium")
	assert.Contains(t, issued.Challenge.Message, "Nonce: "+issued.Challenge.Nonce)

	// The cookie payload round-trips to the same challenge fields.
	payload, legacy := auth.DecodeNoncePayload(issued.CookieValue, time.Now())
	assert.False(t, legacy)
	assert.Equal(t, issued.Challenge.Nonce, payload.Nonce)
	assert.Equal(t, issued.Challenge.Timestamp, payload.IssuedAt)
	assert.Equal(t, issued.Challenge.ExpiresAt, payload.ExpiresAt)

	// Two challenges never share a nonce.
	second, err := service.IssueChallenge(wallet.address)
	require.NoError(t, err)
	assert.NotEqual(t, issued.Challenge.Nonce, second.Challenge.Nonce)
}

/*
TestService_Verify_Success covers the full happy path with a real signature.
*/
func TestService_Verify_Success(t *testing.T) {
	wallet := newTestWallet(t)
	service := newTestService(t, []string{wallet.address}, false, nil)

	issued, err := service.IssueChallenge(wallet.address)
	require.NoError(t, err)

	signature := wallet.sign(t, issued.Challenge.Message)
	session, err := service.Verify(context.Background(), verifyInput(wallet, issued, signature))
	require.NoError(t, err)

	assert.Equal(t, sec.NormalizeWallet(wallet.address), session.Wallet)
	assert.NotEmpty(t, session.Token)
	assert.True(t, session.ExpiresAt.After(time.Now()))
}

/*
TestService_Verify_GethRecoveryID accepts signatures with V in {0, 1}.
*/
func TestService_Verify_GethRecoveryID(t *testing.T) {
	wallet := newTestWallet(t)
	service := newTestService(t, []string{wallet.address}, false, nil)

	issued, err := service.IssueChallenge(wallet.address)
	require.NoError(t, err)

	// Raw geth convention: leave the recovery id untouched.
	digest := crypto.Keccak256([]byte(fmt.Sprintf(
		"\x19Ethereum Signed Message:\n%d%s",
		len(issued.Challenge.Message), issued.Challenge.Message,
	)))
	rawSignature, err := crypto.Sign(digest, wallet.key)
	require.NoError(t, err)

	session, err := service.Verify(context.Background(),
		verifyInput(wallet, issued, hexutil.Encode(rawSignature)))
	require.NoError(t, err)
	assert.Equal(t, sec.NormalizeWallet(wallet.address), session.Wallet)
}

/*
TestService_Verify_ExpiredChallenge rejects challenges past their window.
*/
func TestService_Verify_ExpiredChallenge(t *testing.T) {
	wallet := newTestWallet(t)
	service := newTestService(t, []string{wallet.address}, false, nil)

	// Forge a cookie whose window already lapsed.
	issuedAt := time.Now().Add(-10 * time.Minute).UnixMilli()
	expiresAt := time.Now().Add(-6 * time.Minute).UnixMilli()
	message := auth.ChallengeMessage("deadbeef", issuedAt, expiresAt)
	cookie := auth.EncodeNoncePayload(auth.NoncePayload{
		Nonce: "deadbeef", IssuedAt: issuedAt, ExpiresAt: expiresAt,
	})

	_, err := service.Verify(context.Background(), auth.VerifyInput{
		Address:     wallet.address,
		Message:     message,
		Signature:   wallet.sign(t, message),
		NonceCookie: cookie,
		ClientIP:    "203.0.113.7",
	})
	require.Error(t, err)
	assert.Equal(t, "Challenge expired", err.Error())
}

/*
TestService_Verify_MissingChallenge rejects attempts without a nonce cookie.
*/
func TestService_Verify_MissingChallenge(t *testing.T) {
	wallet := newTestWallet(t)
	service := newTestService(t, []string{wallet.address}, false, nil)

	message := "Admin access to Atrium\n\nNonce: x\nTimestamp: 1\nExpires: 2"
	_, err := service.Verify(context.Background(), auth.VerifyInput{
		Address:   wallet.address,
		Message:   message,
		Signature: wallet.sign(t, message),
		ClientIP:  "203.0.113.7",
	})
	require.Error(t, err)

	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 400, appError.HTTPStatus)
}

/*
TestService_Verify_MessageMismatch requires the byte-exact canonical message.
*/
func TestService_Verify_MessageMismatch(t *testing.T) {
	wallet := newTestWallet(t)
	service := newTestService(t, []string{wallet.address}, false, nil)

	issued, err := service.IssueChallenge(wallet.address)
	require.NoError(t, err)

	// Sign a message that differs by a single trailing space.
	tampered := issued.Challenge.Message + " "
	input := verifyInput(wallet, issued, wallet.sign(t, tampered))
	input.Message = tampered

	_, err = service.Verify(context.Background(), input)
	require.Error(t, err)
	assert.Equal(t, "Message format mismatch", err.Error())
}

/*
TestService_Verify_WrongSigner rejects a valid signature from another key.
*/
func TestService_Verify_WrongSigner(t *testing.T) {
	wallet := newTestWallet(t)
	impostor := newTestWallet(t)
	service := newTestService(t, []string{wallet.address}, false, nil)

	issued, err := service.IssueChallenge(wallet.address)
	require.NoError(t, err)

	_, err = service.Verify(context.Background(),
		verifyInput(wallet, issued, impostor.sign(t, issued.Challenge.Message)))
	require.Error(t, err)

	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 401, appError.HTTPStatus)
}

/*
TestService_Verify_NotAdmin rejects wallets outside the allow-list.
*/
func TestService_Verify_NotAdmin(t *testing.T) {
	wallet := newTestWallet(t)
	service := newTestService(t, []string{"0x0000000000000000000000000000000000000001"}, false, nil)

	issued, err := service.IssueChallenge(wallet.address)
	require.NoError(t, err)

	_, err = service.Verify(context.Background(),
		verifyInput(wallet, issued, wallet.sign(t, issued.Challenge.Message)))
	require.Error(t, err)

	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 403, appError.HTTPStatus)
}

/*
TestService_Verify_RateLimit exhausts the attempt budget and checks the 429
carries a future reset time. A subsequent success must clear the counter.
*/
func TestService_Verify_RateLimit(t *testing.T) {
	wallet := newTestWallet(t)
	impostor := newTestWallet(t)
	limiter := auth.NewMemoryLimiter(5, 15*time.Minute)
	service := newTestService(t, []string{wallet.address}, false, limiter)

	issued, err := service.IssueChallenge(wallet.address)
	require.NoError(t, err)

	// Burn the whole budget with bad signatures.
	badInput := verifyInput(wallet, issued, impostor.sign(t, issued.Challenge.Message))
	for attempt := 0; attempt < 5; attempt++ {
		_, err := service.Verify(context.Background(), badInput)
		require.Error(t, err)
		assert.Equal(t, 401, apperr.As(err).HTTPStatus, "attempt %d", attempt)
	}

	// The 6th attempt is throttled even with a correct signature.
	goodInput := verifyInput(wallet, issued, wallet.sign(t, issued.Challenge.Message))
	_, err = service.Verify(context.Background(), goodInput)
	require.Error(t, err)

	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 429, appError.HTTPStatus)
	assert.Greater(t, appError.ResetAt, time.Now().Unix())

	// A different client IP is an independent budget; succeed there and
	// confirm success resets its counter.
	goodInput.ClientIP = "198.51.100.9"
	for round := 0; round < 2; round++ {
		session, err := service.Verify(context.Background(), goodInput)
		require.NoError(t, err, "round %d", round)
		assert.NotEmpty(t, session.Token)
	}
}

/*
TestService_Verify_LegacyBareNonce accepts the pre-JSON cookie format.
*/
func TestService_Verify_LegacyBareNonce(t *testing.T) {
	wallet := newTestWallet(t)
	service := newTestService(t, []string{wallet.address}, false, nil)

	// Old clients stored the raw nonce with no timestamps. The signed message
	// still must reference the nonce.
	nonce := "a1b2c3d4e5f6a7b8"
	message := fmt.Sprintf("Admin access to Atrium\n\nNonce: %s\nTimestamp: 1\nExpires: 2", nonce)

	session, err := service.Verify(context.Background(), auth.VerifyInput{
		Address:     wallet.address,
		Message:     message,
		Signature:   wallet.sign(t, message),
		NonceCookie: nonce,
		ClientIP:    "203.0.113.7",
	})
	require.NoError(t, err)
	assert.Equal(t, sec.NormalizeWallet(wallet.address), session.Wallet)
}

/*
TestService_Verify_SignatureCheckDisabled covers the development bypass.
*/
func TestService_Verify_SignatureCheckDisabled(t *testing.T) {
	wallet := newTestWallet(t)
	outsider := newTestWallet(t)
	service := newTestService(t, []string{wallet.address}, true, nil)

	// No challenge, no signature. The allow-list still decides.
	session, err := service.Verify(context.Background(), auth.VerifyInput{
		Address:  wallet.address,
		ClientIP: "203.0.113.7",
	})
	require.NoError(t, err)
	assert.Equal(t, sec.NormalizeWallet(wallet.address), session.Wallet)

	_, err = service.Verify(context.Background(), auth.VerifyInput{
		Address:  outsider.address,
		ClientIP: "203.0.113.7",
	})
	require.Error(t, err)
	assert.Equal(t, 403, apperr.As(err).HTTPStatus)
}
