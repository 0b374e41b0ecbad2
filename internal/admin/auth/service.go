// Copyright (c) 2026 Atrium. All rights reserved.

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/atriumhq/atrium/internal/platform/apperr"
	"github.com/atriumhq/atrium/internal/platform/constants"
	"github.com/atriumhq/atrium/internal/platform/sec"
)

// SessionMinter issues signed admin session tokens.
type SessionMinter interface {
	Mint(wallet string) (string, time.Time, error)
}

// Service implements the administrator challenge/verify use cases.
//
// # Review Process
//
// This service gates the entire admin surface. Any change to the verification
// order (rate limit, expiry, message match, signature, allow-list) must be
// reviewed by the security team.
type Service struct {
	sessions SessionMinter
	limiter  Limiter
	logger   *slog.Logger

	// admins is the lowercased wallet allow-list.
	admins map[string]struct{}

	// disableSignature skips the challenge and signature checks entirely.
	// Intended for local development against UI work only.
	disableSignature bool

	// now is swappable for deterministic tests.
	now func() time.Time
}

// NewService constructs the admin auth [Service].
func NewService(
	sessions SessionMinter,
	limiter Limiter,
	adminWallets []string,
	disableSignature bool,
	logger *slog.Logger,
) *Service {
	admins := make(map[string]struct{}, len(adminWallets))
	for _, wallet := range adminWallets {
		admins[sec.NormalizeWallet(wallet)] = struct{}{}
	}

	if disableSignature {
		logger.Warn("admin_auth_signature_check_disabled",
			slog.String("detail", "wallet signature verification is OFF; sessions are issued from the allow-list alone"),
		)
	}

	return &Service{
		sessions:         sessions,
		limiter:          limiter,
		admins:           admins,
		disableSignature: disableSignature,
		logger:           logger,
		now:              time.Now,
	}
}

// IssuedChallenge pairs the client-facing challenge with the cookie value
// that must be set alongside it.
type IssuedChallenge struct {
	Challenge   Challenge
	CookieValue string
}

// IssueChallenge generates a fresh nonce challenge for the address.
//
// # Flow
//  1. Generate a 16-byte random nonce (hex encoded).
//  2. Stamp the validity window (unix milliseconds).
//  3. Build the canonical message and the cookie payload.
//
// The caller owns cookie transport. Writing the new cookie overwrites any
// previous challenge for the same address, so at most one is valid at a time.
func (service *Service) IssueChallenge(address string) (*IssuedChallenge, error) {
	nonce, err := sec.GenerateSecureToken(16)
	if err != nil {
		return nil, fmt.Errorf("admin_auth_nonce_generation_failed: %w", err)
	}

	issuedAt := service.now().UnixMilli()
	expiresAt := issuedAt + constants.AdminNonceTTL.Milliseconds()
	message := ChallengeMessage(nonce, issuedAt, expiresAt)

	return &IssuedChallenge{
		Challenge: Challenge{
			Nonce:     nonce,
			Timestamp: issuedAt,
			ExpiresAt: expiresAt,
			Message:   message,
		},
		CookieValue: EncodeNoncePayload(NoncePayload{
			Nonce:     nonce,
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
		}),
	}, nil
}

// VerifyInput carries one admin verification attempt.
type VerifyInput struct {
	Address   string
	Message   string
	Signature string

	// NonceCookie is the raw value of the per-address nonce cookie,
	// empty when the cookie is absent.
	NonceCookie string

	ClientIP string
}

// Session is a successfully established admin session.
type Session struct {
	Token     string
	Wallet    string
	ExpiresAt time.Time
}

// Verify checks a signed challenge and mints an admin session.
//
// # Flow
//  1. Rate limit on ip|wallet (one attempt consumed per call).
//  2. Decode and expiry-check the nonce cookie.
//  3. Require the submitted message to match the canonical reconstruction.
//  4. Recover the signer from the EIP-191 signature; must equal the address.
//  5. Require the wallet to be on the allow-list.
//  6. Mint the session token and reset the rate-limit counter.
//
// # Returns
//   - [apperr.RateLimited] when the attempt budget is exhausted.
//   - [apperr.ValidationError] for missing, expired, or mismatched challenges.
//   - [apperr.Unauthorized] when the signature does not prove the address.
//   - [apperr.Forbidden] for valid signatures from non-admin wallets.
func (service *Service) Verify(ctx context.Context, input VerifyInput) (*Session, error) {
	wallet := sec.NormalizeWallet(input.Address)
	limitKey := input.ClientIP + "|" + wallet
	now := service.now()

	// ── 1. Rate Limiting ──────────────────────────────────────────────────

	decision, err := service.limiter.Check(limitKey)
	if err != nil {
		return nil, fmt.Errorf("admin_auth_limiter_failed: %w", err)
	}
	if !decision.Allowed {
		service.audit(ctx, wallet, input.ClientIP, "denied", "rate_limited")
		return nil, apperr.RateLimited(decision.ResetAt)
	}

	if service.disableSignature {
		// Development bypass. The allow-list check below still applies.
		service.audit(ctx, wallet, input.ClientIP, "bypass", "signature_check_disabled")
	} else {

		// ── 2. Challenge Presence & Expiry ────────────────────────────────

		if input.NonceCookie == "" {
			service.audit(ctx, wallet, input.ClientIP, "denied", "no_challenge")
			return nil, apperr.ValidationError("No active challenge for this address")
		}

		payload, legacy := DecodeNoncePayload(input.NonceCookie, now)
		if now.UnixMilli() > payload.ExpiresAt {
			service.audit(ctx, wallet, input.ClientIP, "denied", "challenge_expired")
			return nil, apperr.ValidationError("Challenge expired")
		}

		// ── 3. Canonical Message Match ────────────────────────────────────

		if legacy {
			// Legacy cookies lack the issuance timestamps needed to rebuild
			// the canonical text, so only the nonce binding can be enforced.
			if !strings.Contains(input.Message, "Nonce: "+payload.Nonce) {
				service.audit(ctx, wallet, input.ClientIP, "denied", "message_mismatch")
				return nil, apperr.ValidationError("Message format mismatch")
			}
		} else {
			expected := ChallengeMessage(payload.Nonce, payload.IssuedAt, payload.ExpiresAt)
			if input.Message != expected {
				service.audit(ctx, wallet, input.ClientIP, "denied", "message_mismatch")
				return nil, apperr.ValidationError("Message format mismatch")
			}
		}

		// ── 4. Signature Recovery ─────────────────────────────────────────

		verified, err := sec.VerifyWalletSignature(wallet, input.Message, input.Signature)
		if err != nil || !verified {
			service.audit(ctx, wallet, input.ClientIP, "denied", "signature_mismatch")
			return nil, apperr.Unauthorized("Signature does not match address")
		}
	}

	// ── 5. Allow-List ─────────────────────────────────────────────────────

	if !service.IsAdmin(wallet) {
		service.audit(ctx, wallet, input.ClientIP, "denied", "not_admin")
		return nil, apperr.Forbidden("Wallet is not an administrator")
	}

	// ── 6. Session Issuance ───────────────────────────────────────────────

	token, expiresAt, err := service.sessions.Mint(wallet)
	if err != nil {
		return nil, fmt.Errorf("admin_auth_session_mint_failed: %w", err)
	}

	// A successful login refunds the attempt budget for this client.
	if err := service.limiter.Reset(limitKey); err != nil {
		service.logger.Warn("admin_auth_limiter_reset_failed", slog.Any("error", err))
	}

	service.audit(ctx, wallet, input.ClientIP, "granted", "")

	return &Session{Token: token, Wallet: wallet, ExpiresAt: expiresAt}, nil
}

// IsAdmin reports whether the wallet is on the configured allow-list.
func (service *Service) IsAdmin(wallet string) bool {
	_, ok := service.admins[sec.NormalizeWallet(wallet)]
	return ok
}

// audit emits one structured line per verification attempt. These lines are
// the only record of admin login activity, so every path must pass through.
func (service *Service) audit(ctx context.Context, wallet, clientIP, outcome, reason string) {
	attrs := []any{
		slog.String("wallet", wallet),
		slog.String("ip", clientIP),
		slog.String("outcome", outcome),
	}
	if reason != "" {
		attrs = append(attrs, slog.String("reason", reason))
	}
	service.logger.InfoContext(ctx, "admin_auth_attempt", attrs...)
}
