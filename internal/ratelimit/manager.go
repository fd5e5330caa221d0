package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	internalsettings "github.com/router-for-me/CandidatePortal/internal/settings"
	log "github.com/sirupsen/logrus"
)

// SharedCallerFactory constructs the caller for the shared store.
type SharedCallerFactory func(ctx context.Context, cfg SettingsConfig) (SharedCaller, error)

type sharedConfig struct {
	backend     Backend
	databaseURL string
	redisURL    string
	redisPrefix string
}

// Manager is the single entry point used by auth routes. It resolves settings
// on every call and dispatches to the memory or shared store.
type Manager struct {
	provider      SettingsProvider
	nowFn         func() time.Time
	memoryLimiter *MemoryLimiter
	newCaller     SharedCallerFactory

	mu     sync.Mutex
	shared *sharedHandle
}

// sharedHandle counts the checks running on a caller. A retired caller is
// closed once its last check returns.
type sharedHandle struct {
	limiter *SharedLimiter
	cfg     sharedConfig
	refs    int
	retired bool
}

// NewManager constructs a Manager with default dependencies when nil.
func NewManager(provider SettingsProvider, nowFn func() time.Time, newCaller SharedCallerFactory) *Manager {
	if provider == nil {
		provider = LoadSettingsConfig
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if newCaller == nil {
		newCaller = NewSharedCaller
	}
	return &Manager{
		provider:      provider,
		nowFn:         nowFn,
		memoryLimiter: NewMemoryLimiter(),
		newCaller:     newCaller,
	}
}

// NewSharedCaller builds the caller for the configured shared backend.
func NewSharedCaller(ctx context.Context, cfg SettingsConfig) (SharedCaller, error) {
	switch cfg.Backend {
	case BackendRedis:
		return NewRedisCaller(cfg.RedisURL, cfg.RedisPrefix)
	default:
		return NewPostgresCaller(ctx, cfg.DatabaseURL)
	}
}

// Check records one attempt for the input and returns the decision.
func (m *Manager) Check(ctx context.Context, in CheckInput) (Result, error) {
	if m == nil {
		return Result{}, errors.New("rate limit: nil manager")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := m.nowFn()
	cfg := m.provider()

	actionCfg, ok := cfg.ActionConfig(in.Action)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownAction, in.Action)
	}
	subjectHash := HashSubject(in.Action, in.Subject, in.IPAddress, cfg.Salt)

	store, storeName, release, errStore := m.storeFor(ctx, cfg)
	if errStore != nil {
		observeCheck(in.Action, storeName, Result{}, errStore)
		log.WithError(errStore).WithField("action", in.Action).Error("rate limit: store unavailable")
		return Result{}, errStore
	}
	result, errCheck := store.Check(ctx, in.Action, subjectHash, actionCfg, now)
	release()
	observeCheck(in.Action, storeName, result, errCheck)
	if errCheck != nil {
		log.WithError(errCheck).WithFields(log.Fields{
			"action":       in.Action,
			"subject_hash": subjectHash,
		}).Warn("rate limit: check failed")
		return Result{}, errCheck
	}
	return result, nil
}

// Reset clears the memory store. Shared stores are left untouched.
func (m *Manager) Reset() {
	if m == nil {
		return
	}
	m.memoryLimiter.Reset()
}

// Close releases the shared store connection. Checks still running on it
// finish first; the connection closes when the last one returns.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shared == nil {
		return nil
	}
	h := m.shared
	m.shared = nil
	return h.retire()
}

func (m *Manager) storeFor(ctx context.Context, cfg SettingsConfig) (Store, string, func(), error) {
	if cfg.Mode != ModeShared {
		return m.memoryLimiter, string(ModeMemory), func() {}, nil
	}
	storeName := string(ModeShared) + ":" + string(cfg.Backend)
	h, errAcquire := m.acquireShared(ctx, cfg)
	if errAcquire != nil {
		return nil, storeName, nil, errAcquire
	}
	return h.limiter, storeName, func() { m.releaseShared(h) }, nil
}

// acquireShared returns the caller for cfg with one reference held, replacing
// the cached caller when the credentials changed.
func (m *Manager) acquireShared(ctx context.Context, cfg SettingsConfig) (*sharedHandle, error) {
	nextCfg := sharedConfig{backend: cfg.Backend}
	switch cfg.Backend {
	case BackendRedis:
		nextCfg.redisURL = cfg.RedisURL
		nextCfg.redisPrefix = cfg.RedisPrefix
		if nextCfg.redisURL == "" {
			return nil, fmt.Errorf("%w: set %s", ErrMissingSharedCredential, internalsettings.RateLimitRedisURLKey)
		}
	default:
		nextCfg.databaseURL = cfg.DatabaseURL
		if nextCfg.databaseURL == "" {
			return nil, fmt.Errorf("%w: set %s", ErrMissingSharedCredential, internalsettings.RateLimitDatabaseURLKey)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shared != nil && m.shared.cfg == nextCfg {
		m.shared.refs++
		return m.shared, nil
	}

	caller, errCaller := m.newCaller(ctx, cfg)
	if errCaller != nil {
		return nil, fmt.Errorf("rate limit shared store: connect: %w", errCaller)
	}
	if m.shared != nil {
		if errRetire := m.shared.retire(); errRetire != nil {
			log.WithError(errRetire).Warn("rate limit: close previous shared store failed")
		}
	}
	m.shared = &sharedHandle{limiter: NewSharedLimiter(caller), cfg: nextCfg, refs: 1}
	return m.shared, nil
}

func (m *Manager) releaseShared(h *sharedHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h.refs--
	if h.retired && h.refs == 0 {
		if errClose := h.limiter.caller.Close(); errClose != nil {
			log.WithError(errClose).Warn("rate limit: close retired shared store failed")
		}
	}
}

// retire marks the handle for closing and closes it now when idle.
// The caller holds m.mu.
func (h *sharedHandle) retire() error {
	h.retired = true
	if h.refs > 0 {
		return nil
	}
	return h.limiter.caller.Close()
}
