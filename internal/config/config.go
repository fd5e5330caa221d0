package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath        = "CONFIG_PATH"
	EnvDBConnection      = "DB_CONNECTION"
	EnvListenAddr        = "LISTEN_ADDR"
	EnvGoTrueURL         = "GOTRUE_URL"
	EnvGoTrueAnonKey     = "GOTRUE_ANON_KEY"
	EnvAnalyticsStore    = "ANALYTICS_STORE"
	EnvAnalyticsTestMode = "ANALYTICS_TEST_MODE"
)

// DefaultListenAddr is used when neither env nor config file set a listen address.
const DefaultListenAddr = ":8080"

// Analytics store identifiers.
const (
	AnalyticsStoreLog      = "log"
	AnalyticsStoreDatabase = "database"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// ErrMissingGoTrue indicates the hosted auth endpoint is not configured.
var ErrMissingGoTrue = errors.New("missing auth provider settings (set GOTRUE_URL and GOTRUE_ANON_KEY or `gotrue.url` and `gotrue.anon-key`)")

// fileConfig maps the YAML layout of the portal config file.
type fileConfig struct {
	DatabaseDSN string `yaml:"database-dsn"`
	Database    struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`
	ListenAddr string       `yaml:"listen-addr"`
	GoTrue     GoTrueConfig `yaml:"gotrue"`
	Analytics  struct {
		Store    string `yaml:"store"`
		TestMode bool   `yaml:"test-mode"`
	} `yaml:"analytics"`
}

// readFileConfig parses the config file. A missing file yields an empty config.
func readFileConfig(configPath string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return cfg, fmt.Errorf("parse config file: %w", errUnmarshal)
	}
	return cfg, nil
}

// LoadDatabaseDSN reads the database DSN from the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config file: %w", err)
	}

	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// LoadListenAddr resolves the HTTP listen address.
func LoadListenAddr(configPath string) (string, error) {
	if addr := strings.TrimSpace(os.Getenv(EnvListenAddr)); addr != "" {
		return addr, nil
	}
	cfg, err := readFileConfig(configPath)
	if err != nil {
		return "", err
	}
	if addr := strings.TrimSpace(cfg.ListenAddr); addr != "" {
		return addr, nil
	}
	return DefaultListenAddr, nil
}

// GoTrueConfig holds the hosted auth endpoint and its public key.
type GoTrueConfig struct {
	URL     string `yaml:"url"`
	AnonKey string `yaml:"anon-key"`
}

// LoadGoTrueConfig loads the hosted auth settings. Both values are required and
// the URL must be absolute.
func LoadGoTrueConfig(configPath string) (GoTrueConfig, error) {
	cfg, err := readFileConfig(configPath)
	if err != nil {
		return GoTrueConfig{}, err
	}
	result := GoTrueConfig{
		URL:     strings.TrimSpace(cfg.GoTrue.URL),
		AnonKey: strings.TrimSpace(cfg.GoTrue.AnonKey),
	}
	if v := strings.TrimSpace(os.Getenv(EnvGoTrueURL)); v != "" {
		result.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvGoTrueAnonKey)); v != "" {
		result.AnonKey = v
	}

	if result.URL == "" || result.AnonKey == "" {
		return GoTrueConfig{}, ErrMissingGoTrue
	}
	parsed, errParse := url.Parse(result.URL)
	if errParse != nil || parsed.Scheme == "" || parsed.Host == "" {
		return GoTrueConfig{}, fmt.Errorf("invalid %s: expected an absolute URL", EnvGoTrueURL)
	}
	result.URL = strings.TrimRight(result.URL, "/")
	return result, nil
}

// AnalyticsConfig selects where analytics events are written.
type AnalyticsConfig struct {
	Store    string
	TestMode bool
}

// LoadAnalyticsConfig resolves the analytics sink. Unknown stores fall back to log.
func LoadAnalyticsConfig(configPath string) (AnalyticsConfig, error) {
	cfg, err := readFileConfig(configPath)
	if err != nil {
		return AnalyticsConfig{}, err
	}
	result := AnalyticsConfig{Store: cfg.Analytics.Store, TestMode: cfg.Analytics.TestMode}
	if v := strings.TrimSpace(os.Getenv(EnvAnalyticsStore)); v != "" {
		result.Store = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAnalyticsTestMode)); v != "" {
		result.TestMode = v == "1" || strings.EqualFold(v, "true")
	}

	switch strings.ToLower(strings.TrimSpace(result.Store)) {
	case AnalyticsStoreDatabase, "db":
		result.Store = AnalyticsStoreDatabase
	default:
		result.Store = AnalyticsStoreLog
	}
	return result, nil
}
