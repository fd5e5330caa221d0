package settings

// Environment keys and defaults for the auth rate limiter.
const (
	// RateLimitKeyPrefix prefixes every rate limit key.
	RateLimitKeyPrefix = "AUTH_RATE_LIMIT"
	// RateLimitStoreKey selects the backing store (memory, shared, database, db, postgres, redis).
	RateLimitStoreKey = "AUTH_RATE_LIMIT_STORE"
	// RateLimitSaltKey defines the HMAC key for subject hashing.
	RateLimitSaltKey = "AUTH_RATE_LIMIT_SALT"
	// RateLimitWindowSecondsKey defines the global attempt window.
	RateLimitWindowSecondsKey = "AUTH_RATE_LIMIT_WINDOW_SECONDS"
	// RateLimitBlockSecondsKey defines the global cooldown.
	RateLimitBlockSecondsKey = "AUTH_RATE_LIMIT_BLOCK_SECONDS"
	// RateLimitDatabaseURLKey holds the privileged DSN for the shared Postgres store.
	RateLimitDatabaseURLKey = "AUTH_RATE_LIMIT_DATABASE_URL"
	// RateLimitRedisURLKey holds the Redis URL for the shared Redis store.
	RateLimitRedisURLKey = "AUTH_RATE_LIMIT_REDIS_URL"
	// RateLimitRedisPrefixKey defines the Redis key prefix.
	RateLimitRedisPrefixKey = "AUTH_RATE_LIMIT_REDIS_PREFIX"

	// DefaultRateLimitWindowSeconds is the fallback attempt window.
	DefaultRateLimitWindowSeconds = 60
	// DefaultRateLimitBlockSeconds is the fallback cooldown.
	DefaultRateLimitBlockSeconds = 300
	// DefaultRateLimitSalt is used when no salt is configured.
	DefaultRateLimitSalt = "phase-2-auth-rate-limit"
	// DefaultRateLimitRedisPrefix is the fallback Redis key prefix.
	DefaultRateLimitRedisPrefix = "portal:rl"
	// DefaultLoginMaxAttempts is the login attempt budget.
	DefaultLoginMaxAttempts = 5
	// DefaultPasswordResetMaxAttempts is the password reset attempt budget.
	DefaultPasswordResetMaxAttempts = 3
	// DefaultVerificationResendMaxAttempts is the verification resend attempt budget.
	DefaultVerificationResendMaxAttempts = 3
)

// AnalyticsPhase tags every emitted analytics event.
const AnalyticsPhase = "phase-001"

// DefaultNextPath is where a successful login lands when no safe next path is given.
const DefaultNextPath = "/archive"
