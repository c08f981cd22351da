// Package ratelimit gates high-frequency operations per (rule name, key).
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Rule names used across the service.
const (
	IncrementPodcastViews = "incrementPodcastViews"
	API                   = "api"
)

// ErrUnknownRule is returned when TryAcquire is called with an unregistered name.
var ErrUnknownRule = errors.New("unknown rate limit rule")

// Rule allows Limit events per Window for each key.
type Rule struct {
	Limit  int
	Window time.Duration
}

func (r Rule) validate(name string) error {
	if r.Limit <= 0 {
		return fmt.Errorf("rule %q: limit must be > 0", name)
	}
	if r.Window < time.Millisecond {
		return fmt.Errorf("rule %q: window must be at least 1ms", name)
	}
	return nil
}

// Rules maps a rule name to its allowance.
type Rules map[string]Rule

func (rs Rules) lookup(name string) (Rule, error) {
	r, ok := rs[name]
	if !ok {
		return Rule{}, fmt.Errorf("%w: %q", ErrUnknownRule, name)
	}
	return r, nil
}

// Validate checks every rule has a positive limit and a window of at least
// one millisecond.
func (rs Rules) Validate() error {
	for name, r := range rs {
		if err := r.validate(name); err != nil {
			return err
		}
	}
	return nil
}

// Result is the outcome of TryAcquire. RetryAfter is a hint for denied calls.
type Result struct {
	OK         bool
	RetryAfter time.Duration
}

// Limiter is implemented by the memory and Redis backends.
type Limiter interface {
	TryAcquire(ctx context.Context, name, key string) (Result, error)
}
