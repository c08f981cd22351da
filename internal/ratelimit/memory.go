package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Memory is a token-bucket limiter held in process memory. Each (name, key)
// pair gets its own bucket with burst Limit refilled at Limit/Window.
type Memory struct {
	rules        Rules
	mu           sync.Mutex
	entries      map[string]*memoryEntry
	idleTTL      time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
}

type memoryEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type MemoryOption func(*Memory)

// WithIdleTTL sets how long an untouched bucket is kept.
func WithIdleTTL(d time.Duration) MemoryOption {
	return func(m *Memory) { m.idleTTL = d }
}

// WithCleanupEvery sets the janitor period. Zero disables the janitor.
func WithCleanupEvery(d time.Duration) MemoryOption {
	return func(m *Memory) { m.cleanupEvery = d }
}

func NewMemory(rules Rules, opts ...MemoryOption) *Memory {
	m := &Memory{
		rules:        rules,
		entries:      make(map[string]*memoryEntry),
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) TryAcquire(ctx context.Context, name, key string) (Result, error) {
	rule, err := m.rules.lookup(name)
	if err != nil {
		return Result{}, err
	}

	now := m.now()
	lim := m.limiter(name+":"+key, rule, now)

	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return Result{OK: false, RetryAfter: rule.Window}, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return Result{OK: false, RetryAfter: delay}, nil
	}
	return Result{OK: true}, nil
}

func (m *Memory) limiter(id string, rule Rule, now time.Time) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ent, ok := m.entries[id]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	every := rate.Limit(float64(rule.Limit) / rule.Window.Seconds())
	lim := rate.NewLimiter(every, rule.Limit)
	m.entries[id] = &memoryEntry{lim: lim, lastSeen: now}
	return lim
}

// Cleanup drops buckets idle for longer than the idle TTL.
func (m *Memory) Cleanup() {
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	defer m.mu.Unlock()

	for k, ent := range m.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(m.entries, k)
		}
	}
}

// StartJanitor runs Cleanup periodically until ctx is done.
func (m *Memory) StartJanitor(ctx context.Context) {
	if m.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(m.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.Cleanup()
			}
		}
	}()
}

func (m *Memory) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
