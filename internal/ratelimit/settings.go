package ratelimit

import (
	"os"
	"strconv"
	"strings"

	internalsettings "github.com/router-for-me/CandidatePortal/internal/settings"
)

// ActionConfig holds the attempt budget for a single action.
type ActionConfig struct {
	MaxAttempts   int
	WindowSeconds int
	BlockSeconds  int
}

// SettingsConfig captures the resolved rate limit settings.
type SettingsConfig struct {
	Mode        Mode
	Backend     Backend
	Salt        string
	DatabaseURL string
	RedisURL    string
	RedisPrefix string
	Actions     map[Action]ActionConfig
}

// SettingsProvider supplies the latest settings snapshot.
type SettingsProvider func() SettingsConfig

// LoadSettingsConfig resolves settings from the process environment.
func LoadSettingsConfig() SettingsConfig {
	return ResolveConfig(Environ())
}

// Environ returns the process environment as a key/value mapping.
func Environ() map[string]string {
	env := os.Environ()
	out := make(map[string]string, len(env))
	for _, kv := range env {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		out[key] = value
	}
	return out
}

// ResolveConfig builds a fully populated config from an env-style mapping.
func ResolveConfig(source map[string]string) SettingsConfig {
	globalWindow := parsePositiveInt(source[internalsettings.RateLimitWindowSecondsKey], internalsettings.DefaultRateLimitWindowSeconds)
	globalBlock := parsePositiveInt(source[internalsettings.RateLimitBlockSecondsKey], internalsettings.DefaultRateLimitBlockSeconds)

	mode, backend := resolveStoreMode(source)
	cfg := SettingsConfig{
		Mode:        mode,
		Backend:     backend,
		Salt:        strings.TrimSpace(source[internalsettings.RateLimitSaltKey]),
		DatabaseURL: strings.TrimSpace(source[internalsettings.RateLimitDatabaseURLKey]),
		RedisURL:    strings.TrimSpace(source[internalsettings.RateLimitRedisURLKey]),
		RedisPrefix: strings.TrimSpace(source[internalsettings.RateLimitRedisPrefixKey]),
		Actions:     make(map[Action]ActionConfig, len(Actions)),
	}
	if cfg.Salt == "" {
		cfg.Salt = internalsettings.DefaultRateLimitSalt
	}
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = internalsettings.DefaultRateLimitRedisPrefix
	}

	for _, action := range Actions {
		prefix := actionKeyPrefix(action)
		cfg.Actions[action] = ActionConfig{
			MaxAttempts:   parsePositiveInt(source[prefix+"_MAX_ATTEMPTS"], defaultMaxAttempts(action)),
			WindowSeconds: parsePositiveInt(source[prefix+"_WINDOW_SECONDS"], globalWindow),
			BlockSeconds:  parsePositiveInt(source[prefix+"_BLOCK_SECONDS"], globalBlock),
		}
	}
	return cfg
}

// ActionConfig returns the budget for the action and whether it is known.
func (c SettingsConfig) ActionConfig(action Action) (ActionConfig, bool) {
	if !action.Valid() {
		return ActionConfig{}, false
	}
	cfg, ok := c.Actions[action]
	return cfg, ok
}

func resolveStoreMode(source map[string]string) (Mode, Backend) {
	switch strings.ToLower(strings.TrimSpace(source[internalsettings.RateLimitStoreKey])) {
	case "memory":
		return ModeMemory, BackendPostgres
	case "shared", "database", "db", "postgres":
		return ModeShared, BackendPostgres
	case "redis":
		return ModeShared, BackendRedis
	}
	if strings.TrimSpace(source[internalsettings.RateLimitDatabaseURLKey]) != "" {
		return ModeShared, BackendPostgres
	}
	if strings.TrimSpace(source[internalsettings.RateLimitRedisURLKey]) != "" {
		return ModeShared, BackendRedis
	}
	return ModeMemory, BackendPostgres
}

func actionKeyPrefix(action Action) string {
	return internalsettings.RateLimitKeyPrefix + "_" + strings.ToUpper(string(action))
}

func defaultMaxAttempts(action Action) int {
	switch action {
	case ActionLogin:
		return internalsettings.DefaultLoginMaxAttempts
	case ActionPasswordReset:
		return internalsettings.DefaultPasswordResetMaxAttempts
	case ActionVerificationResend:
		return internalsettings.DefaultVerificationResendMaxAttempts
	default:
		return 1
	}
}

// parsePositiveInt reads the leading integer of raw and falls back when it is
// missing or not positive.
func parsePositiveInt(raw string, fallback int) int {
	raw = strings.TrimSpace(raw)
	end := 0
	if end < len(raw) && (raw[end] == '+' || raw[end] == '-') {
		end++
	}
	digitsStart := end
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return fallback
	}
	parsed, errParse := strconv.Atoi(raw[:end])
	if errParse != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
