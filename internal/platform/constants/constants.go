// Copyright (c) 2026 Atrium. All rights reserved.

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, and cross-cutting keys that are shared
between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - Security: Token issuers and cookie configuration.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "atrium-api"
	AppVersion = "0.1.0-dev"

	// ChallengeAppName is the display name embedded in the wallet login
	// challenge message. Changing it invalidates every outstanding challenge.
	ChallengeAppName = "Atrium"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second

	// ChainCallTimeout bounds a single outbound RPC call to the chain node.
	ChainCallTimeout = 10 * time.Second
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 100.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 150

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute

	// AdminAuthMaxAttempts is the number of admin verification attempts allowed
	// per window before the client is throttled.
	AdminAuthMaxAttempts = 5

	// AdminAuthWindow is the fixed window for admin verification throttling.
	AdminAuthWindow = 15 * time.Minute
)

// # Authentication

const (
	// AuthIssuer is the standard 'iss' claim in issued tokens.
	AuthIssuer = "atrium.gg"

	// AdminSessionTTL is how long an admin wallet session remains valid.
	// There is no revocation channel; expiry is the only exit.
	AdminSessionTTL = 1 * time.Hour

	// AdminSessionCookieName is the name of the httpOnly admin session cookie.
	AdminSessionCookieName = "admin_session"

	// AdminNonceCookiePrefix namespaces nonce cookies by wallet address.
	// The full cookie name is AdminNonceCookiePrefix + lowercased address.
	AdminNonceCookiePrefix = "admin_nonce_"

	// AdminNonceTTL is how long an issued wallet challenge remains valid.
	AdminNonceTTL = 4 * time.Minute

	// AdminNonceLegacyWindow is the inferred validity window applied when a
	// nonce cookie holds a bare legacy nonce string instead of the JSON payload.
	AdminNonceLegacyWindow = 5 * time.Minute

	// RefreshTokenCookieName is the name of the cookie that stores the refresh token.
	RefreshTokenCookieName = "refresh_token"

	// RefreshTokenCookiePath is the scoped path for the refresh token cookie.
	RefreshTokenCookiePath = "/api/v1/auth"
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
)

// # JSON Field Identifiers

const (
	FieldData    = "data"
	FieldMeta    = "meta"
	FieldError   = "error"
	FieldCode    = "code"
	FieldDetails = "details"
	FieldMessage = "message"
	FieldStatus  = "status"
	FieldSuccess = "success"
	FieldWallet  = "wallet"
	FieldResetAt = "resetAt"
)

// # Redis Prefixes (Cache Taxonomy)

const (
	RedisPrefixOAuthState  = "auth:oauth_state:"
	RedisPrefixVerifyToken = "auth:verify_token:"
	RedisPrefixViewCount   = "content:views:"
)
