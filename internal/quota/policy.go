package quota

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrExceeded is returned when a plan's ceiling has been reached.
var ErrExceeded = errors.New("quota exceeded for this period")

// Decision is the outcome of Evaluate.
type Decision struct {
	Allowed bool
	Plan    Plan
	Used    int
	Ceiling int
	Reason  string
}

// Err returns ErrExceeded for denied decisions and nil otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %d of %d podcasts used on the %s plan", ErrExceeded, d.Used, d.Ceiling, d.Plan)
}

// Evaluate allows a creation only while used is strictly below the plan ceiling.
func Evaluate(plan Plan, used int) Decision {
	ceiling := plan.Ceiling()
	d := Decision{Plan: plan, Used: used, Ceiling: ceiling, Allowed: used < ceiling}
	if !d.Allowed {
		d.Reason = ErrExceeded.Error()
	}
	return d
}

// Guard carries the quota check down to storage so the usage increment can be
// applied as a single conditional update.
type Guard struct {
	Ceiling     int
	PeriodStart time.Time
}

// Period defines where the current quota period begins.
type Period interface {
	Start(now time.Time) time.Time
}

// Lifetime never resets: usage accumulates from the epoch.
type Lifetime struct{}

func (Lifetime) Start(time.Time) time.Time { return time.Unix(0, 0).UTC() }

// Monthly resets at the first instant of each UTC calendar month.
type Monthly struct{}

func (Monthly) Start(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ParsePeriod accepts "lifetime" and "monthly".
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lifetime":
		return Lifetime{}, nil
	case "monthly":
		return Monthly{}, nil
	default:
		return nil, fmt.Errorf("unknown quota period %q", s)
	}
}
