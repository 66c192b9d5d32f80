package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/khabar/app/database"
	"github.com/lysyi3m/khabar/app/metrics"
)

type GuardConfig struct {
	MaxFailures int
	Window      time.Duration
	Cooldown    time.Duration
}

// Status describes the throttle state of one identifier.
type Status struct {
	Blocked      bool
	BlockedUntil time.Time
	Remaining    int
}

// RetryAfter is the time left until the block expires.
func (s Status) RetryAfter(now time.Time) time.Duration {
	if !s.Blocked || !s.BlockedUntil.After(now) {
		return 0
	}
	return s.BlockedUntil.Sub(now)
}

// Guard throttles login attempts per identifier. Failures are counted inside
// Window after the last success or block; reaching MaxFailures blocks the
// identifier for Cooldown. Decisions for one identifier are serialized.
type Guard struct {
	attempts database.LoginAttemptRepository
	cfg      GuardConfig
	now      func() time.Time
	locks    *keyedMutex
}

func NewGuard(attempts database.LoginAttemptRepository, cfg GuardConfig) *Guard {
	return &Guard{
		attempts: attempts,
		cfg:      cfg,
		now:      time.Now,
		locks:    newKeyedMutex(),
	}
}

// Attempt runs verify under the throttle. A blocked identifier is rejected
// without calling verify; otherwise the outcome is recorded before the lock
// for the identifier is released. It reports whether verify succeeded.
func (g *Guard) Attempt(ctx context.Context, identifier, ip string, verify func(ctx context.Context) (bool, error)) (Status, bool, error) {
	identifier = NormalizeIdentifier(identifier)
	defer g.locks.lock(identifier)()

	status, err := g.check(ctx, identifier)
	if err != nil || status.Blocked {
		return status, false, err
	}

	ok, err := verify(ctx)
	if err != nil {
		return Status{}, false, err
	}

	status, err = g.record(ctx, identifier, ip, ok)
	return status, ok, err
}

func (g *Guard) Check(ctx context.Context, identifier string) (Status, error) {
	identifier = NormalizeIdentifier(identifier)
	defer g.locks.lock(identifier)()
	return g.check(ctx, identifier)
}

func (g *Guard) check(ctx context.Context, identifier string) (Status, error) {
	now := g.now()

	until, err := g.attempts.ActiveBlock(ctx, identifier, now)
	if err != nil {
		return Status{}, err
	}
	if until != nil {
		return Status{Blocked: true, BlockedUntil: *until}, nil
	}

	failures, err := g.failures(ctx, identifier, now)
	if err != nil {
		return Status{}, err
	}

	return Status{Remaining: max(g.cfg.MaxFailures-failures, 0)}, nil
}

// Record stores the outcome of a login attempt and returns the resulting
// state. The attempt that reaches MaxFailures carries the block.
func (g *Guard) Record(ctx context.Context, identifier, ip string, success bool) (Status, error) {
	identifier = NormalizeIdentifier(identifier)
	defer g.locks.lock(identifier)()
	return g.record(ctx, identifier, ip, success)
}

func (g *Guard) record(ctx context.Context, identifier, ip string, success bool) (Status, error) {
	now := g.now()

	attempt := &database.LoginAttempt{
		Identifier: identifier,
		IPAddress:  ip,
		Success:    success,
		CreatedAt:  now,
	}
	if err := g.attempts.Insert(ctx, attempt); err != nil {
		return Status{}, err
	}

	if success {
		return Status{Remaining: g.cfg.MaxFailures}, nil
	}

	failures, err := g.failures(ctx, identifier, now)
	if err != nil {
		return Status{}, err
	}

	if failures < g.cfg.MaxFailures {
		return Status{Remaining: g.cfg.MaxFailures - failures}, nil
	}

	until := now.Add(g.cfg.Cooldown)
	if err := g.attempts.Block(ctx, attempt.ID, until); err != nil {
		return Status{}, err
	}

	metrics.BlockedLogins.Inc()
	slog.Warn("Login identifier blocked", "identifier", identifier, "ip", ip, "failures", failures, "until", until)

	return Status{Blocked: true, BlockedUntil: until}, nil
}

// Cleanup removes attempts that no longer affect any decision.
func (g *Guard) Cleanup(ctx context.Context) (int64, error) {
	horizon := max(g.cfg.Window, g.cfg.Cooldown)
	deleted, err := g.attempts.DeleteOlderThan(ctx, g.now().Add(-horizon))
	if err != nil {
		return 0, fmt.Errorf("failed to clean up login attempts: %w", err)
	}
	return deleted, nil
}

func (g *Guard) failures(ctx context.Context, identifier string, now time.Time) (int, error) {
	resetID, err := g.attempts.LastResetID(ctx, identifier)
	if err != nil {
		return 0, err
	}
	return g.attempts.CountFailures(ctx, identifier, now.Add(-g.cfg.Window), resetID)
}

// keyedMutex hands out one mutex per key and forgets it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
