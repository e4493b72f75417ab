// Package ratelimit caps how often a user may start money-moving workflows.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrLimitExceeded is returned by Check when the caller is over quota.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// Limit is a quota of Requests per Window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// DefaultLimit allows ten workflow runs per user per minute.
var DefaultLimit = Limit{Requests: 10, Window: time.Minute}

// Decision is the outcome of one check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// Limiter counts one request against key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Check calls Allow and turns a denial into ErrLimitExceeded.
func Check(ctx context.Context, limiter Limiter, key string) (Decision, error) {
	decision, err := limiter.Allow(ctx, key)
	if err != nil {
		return decision, err
	}

	if !decision.Allowed {
		return decision, ErrLimitExceeded
	}

	return decision, nil
}
