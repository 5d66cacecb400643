// Copyright (c) 2026 StorageUp. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, and cross-cutting keys that are shared
between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - Security: JWT issuer, cookie names and lifetimes.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "storageup-api"
	AppVersion = "0.1.0-dev"
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

	// DefaultStoreTimeout bounds a single credential store operation.
	DefaultStoreTimeout = 5 * time.Second
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 100.0

	// DefaultRateLimitBurst is the token bucket capacity per IP.
	DefaultRateLimitBurst = 200

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # Authentication

const (
	// AuthIssuer is the standard 'iss' claim in JWTs.
	AuthIssuer = "storageup"

	// AdminTokenCookieName carries tokens issued through the admin portal.
	AdminTokenCookieName = "adminToken"

	// UserTokenCookieName carries tokens issued to customers.
	UserTokenCookieName = "token"

	// TokenCookiePath scopes both session cookies to the whole API.
	TokenCookiePath = "/"

	// TokenCookieTTL is the lifetime of a freshly written session cookie.
	TokenCookieTTL = 7 * 24 * time.Hour

	// DefaultSessionTTL is the session token lifetime when none is configured.
	DefaultSessionTTL = 7 * 24 * time.Hour

	// DefaultResetTokenTTL applies when PASSWORD_RESET_TOKEN_EXPIRE_MINUTES is unset.
	DefaultResetTokenTTL = 30 * time.Minute
)

// # HTTP Headers

const (
	HeaderAuthorization = "Authorization"
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
)

// # JSON Field Identifiers

const (
	FieldStatus = "status"
	FieldChecks = "checks"
)

// # Document Collections

const (
	CollectionUsers = "users"
)

// # Redis Prefixes (Cache Taxonomy)

const (
	RedisPrefixForgotPasswordLimit = "auth:forgot_password_limit:"
)
