package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCheckScript mirrors check_auth_rate_limit on a hash per key.
// ARGV: now_ms, window_seconds, max_attempts, block_seconds, blocked_until_ms.
var redisCheckScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2]) * 1000
local max_attempts = tonumber(ARGV[3])
local block_seconds = tonumber(ARGV[4])
local block_ms = block_seconds * 1000

local function fresh()
  redis.call("HSET", key, "count", 1, "window_started", ARGV[1], "blocked_until", 0)
  redis.call("PEXPIRE", key, window_ms)
  return {1, 0}
end

local state = redis.call("HMGET", key, "count", "window_started", "blocked_until")
local count = tonumber(state[1])
if count == nil then
  return fresh()
end
local window_started = tonumber(state[2]) or now
local blocked_until = tonumber(state[3]) or 0

if blocked_until > 0 then
  if blocked_until > now then
    return {0, math.ceil((blocked_until - now) / 1000)}
  end
  return fresh()
end

if now >= window_started + window_ms then
  return fresh()
end

count = count + 1
if count > max_attempts then
  redis.call("HSET", key, "count", count, "blocked_until", ARGV[5])
  redis.call("PEXPIRE", key, block_ms)
  return {0, block_seconds}
end
redis.call("HSET", key, "count", count)
return {1, 0}
`)

// RedisCaller runs the check script against Redis.
type RedisCaller struct {
	client *redis.Client
	prefix string
}

// NewRedisCaller constructs a RedisCaller from a redis:// URL.
func NewRedisCaller(rawURL, prefix string) (*RedisCaller, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, ErrMissingSharedCredential
	}
	options, errParse := redis.ParseURL(rawURL)
	if errParse != nil {
		return nil, errParse
	}
	return NewRedisCallerWithClient(redis.NewClient(options), prefix), nil
}

// NewRedisCallerWithClient wraps an existing client.
func NewRedisCallerWithClient(client *redis.Client, prefix string) *RedisCaller {
	return &RedisCaller{
		client: client,
		prefix: strings.TrimSpace(prefix),
	}
}

// CheckAndIncrement evaluates the script and converts its reply.
func (c *RedisCaller) CheckAndIncrement(ctx context.Context, req SharedRequest) (*SharedRow, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("rate limit redis: not initialized")
	}
	res, errEval := redisCheckScript.Run(ctx, c.client,
		[]string{c.buildKey(req.Action, req.SubjectHash)},
		req.Now.UnixMilli(),
		req.WindowSeconds,
		req.MaxAttempts,
		req.BlockSeconds,
		req.Now.Add(time.Duration(req.BlockSeconds)*time.Second).UnixMilli(),
	).Slice()
	if errEval != nil {
		if errors.Is(errEval, redis.Nil) {
			return nil, nil
		}
		return nil, errEval
	}
	if len(res) < 2 {
		return nil, nil
	}
	allowedFlag, okAllowed := toInt64(res[0])
	retry, okRetry := toInt64(res[1])
	row := &SharedRow{}
	if okAllowed {
		isAllowed := allowedFlag == 1
		row.Allowed = &isAllowed
	}
	if okRetry {
		row.RetryAfterSeconds = &retry
	}
	return row, nil
}

// Close closes the underlying client.
func (c *RedisCaller) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *RedisCaller) buildKey(action Action, subjectHash string) string {
	if c.prefix == "" {
		return string(action) + ":" + subjectHash
	}
	return c.prefix + ":" + string(action) + ":" + subjectHash
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case uint64:
		return int64(n), true
	default:
		return 0, false
	}
}
