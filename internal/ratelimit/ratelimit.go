// Package ratelimit implements per-client fixed-window request counting.
// Counting is delegated to a Counter so a single process can keep windows
// in memory while a fleet shares them through Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

type Class string

const (
	ClassAuth    Class = "auth"
	ClassGeneral Class = "general"
)

// Policy bounds one class. FailClosed denies requests while the counter
// backend is failing instead of letting them through.
type Policy struct {
	Limit      int
	Window     time.Duration
	FailClosed bool
}

// Counter records one hit for key and returns the number of hits in the
// current window together with the instant that window ends.
type Counter interface {
	Hit(ctx context.Context, key string, window time.Duration) (count int, resetAt time.Time, err error)
}

type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the wait until the window resets, rounded up to whole seconds.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait <= 0 {
		return 0
	}
	return wait.Truncate(time.Second) + roundUp(wait%time.Second)
}

func roundUp(rem time.Duration) time.Duration {
	if rem > 0 {
		return time.Second
	}
	return 0
}

type Limiter struct {
	counter  Counter
	policies map[Class]Policy
}

func NewLimiter(counter Counter, policies map[Class]Policy) (*Limiter, error) {
	for class, p := range policies {
		if p.Limit <= 0 || p.Window <= 0 {
			return nil, fmt.Errorf("ratelimit: invalid policy for %s: limit=%d window=%s", class, p.Limit, p.Window)
		}
	}
	return &Limiter{counter: counter, policies: policies}, nil
}

// Allow counts the request against the client's window for class. Every
// call counts, so a client hammering a closed window keeps it saturated
// until it expires. On a counter error the returned Decision still says
// whether the policy lets the request through.
func (l *Limiter) Allow(ctx context.Context, class Class, clientIP string) (Decision, error) {
	policy, ok := l.policies[class]
	if !ok {
		return Decision{}, fmt.Errorf("ratelimit: unknown class %q", class)
	}

	count, resetAt, err := l.counter.Hit(ctx, key(class, clientIP), policy.Window)
	if err != nil {
		return Decision{Allowed: !policy.FailClosed, Limit: policy.Limit}, err
	}

	remaining := policy.Limit - count
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   count <= policy.Limit,
		Limit:     policy.Limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

func key(class Class, clientIP string) string {
	return "ratelimit:" + string(class) + ":" + clientIP
}
