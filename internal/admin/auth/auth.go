// Copyright (c) 2026 Atrium. All rights reserved.

// Package auth implements the wallet-based administrator login protocol.
//
// # Architecture
//
// Administrators do not hold accounts or passwords. Access is proven by
// signing a short-lived server-issued challenge with the private key of an
// allow-listed wallet. The flow is a two-step exchange:
//
//  1. Challenge: the server issues a random nonce bound to the wallet address
//     and stores it client-side in an httpOnly cookie.
//  2. Verify: the client returns the signed challenge; the server recovers the
//     signer address from the signature and, if everything lines up, mints a
//     stateless session token.
//
// The server keeps no per-challenge state. The nonce cookie is the only
// record of an outstanding challenge, which also means issuing a new
// challenge atomically invalidates the previous one.
package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/atriumhq/atrium/internal/platform/constants"
)

// Challenge is the client-facing result of a challenge issuance.
type Challenge struct {
	Nonce     string `json:"nonce"`
	Timestamp int64  `json:"timestamp"`
	ExpiresAt int64  `json:"expiresAt"`
	Message   string `json:"message"`
}

// NoncePayload is the server-issued challenge state persisted in the
// per-address nonce cookie. Timestamps are unix milliseconds.
type NoncePayload struct {
	Nonce     string `json:"nonce"`
	IssuedAt  int64  `json:"issued_at"`
	ExpiresAt int64  `json:"expires_at"`
}

// ChallengeMessage builds the canonical text an administrator must sign.
//
// # Invariant
//
// Verification requires the submitted message to be byte-identical to this
// reconstruction. Any change here invalidates every outstanding challenge.
func ChallengeMessage(nonce string, issuedAt, expiresAt int64) string {
	return fmt.Sprintf(
		"Admin access to %s\n\nNonce: %s\nTimestamp: %d\nExpires: %d",
		constants.ChallengeAppName, nonce, issuedAt, expiresAt,
	)
}

// EncodeNoncePayload serializes the payload for cookie storage.
// Base64url keeps the JSON safe inside a cookie value.
func EncodeNoncePayload(payload NoncePayload) string {
	raw, err := json.Marshal(payload)
	if err != nil {
		// Marshalling a plain struct of strings and ints cannot fail.
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeNoncePayload parses a nonce cookie value.
//
// # Legacy Format
//
// Earlier deployments stored the bare nonce string in the cookie with no
// timestamps. When the value does not decode as the current payload format,
// it is treated as a legacy bare nonce with an inferred validity window
// starting at the current time. The second return value reports this
// compatibility path so callers can relax the exact-message check.
func DecodeNoncePayload(raw string, now time.Time) (NoncePayload, bool) {
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err == nil {
		var payload NoncePayload
		if err := json.Unmarshal(decoded, &payload); err == nil && payload.Nonce != "" {
			return payload, false
		}
	}

	// Legacy bare nonce. The original issuance time is unknown, so grant the
	// compatibility window from now.
	return NoncePayload{
		Nonce:     raw,
		IssuedAt:  now.UnixMilli(),
		ExpiresAt: now.Add(constants.AdminNonceLegacyWindow).UnixMilli(),
	}, true
}
