package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-reveal/core"
)

const (
	defaultRequests = 30
	defaultWindow   = time.Minute
	defaultPrefix   = "reveal:ratelimit"
)

// Store counts hits for a fixed window bucket and returns the count after
// this hit.
type Store interface {
	Increment(ctx context.Context, bucket string, window time.Duration) (int64, error)
}

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type ThrottledError struct {
	Key        string
	RetryAfter time.Duration
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf("ratelimit: key %q throttled for %s", strings.TrimSpace(e.Key), e.RetryAfter)
}

func (e ThrottledError) ToServiceError() *goerrors.Error {
	return core.NewRateLimitedError(e.RetryAfter.Milliseconds())
}

// Limiter is a fixed-window request limiter. Store failures fail open.
type Limiter struct {
	Store    Store
	Requests int
	Window   time.Duration
	Prefix   string
	Now      func() time.Time
	Logger   core.Logger
}

func NewLimiter(store Store, requests int, window time.Duration) *Limiter {
	if requests <= 0 {
		requests = defaultRequests
	}
	if window <= 0 {
		window = defaultWindow
	}
	return &Limiter{
		Store:    store,
		Requests: requests,
		Window:   window,
		Prefix:   defaultPrefix,
		Now:      func() time.Time { return time.Now().UTC() },
		Logger:   glog.Nop(),
	}
}

// Allow records a hit for key and reports whether it fits in the window.
func (l *Limiter) Allow(ctx context.Context, key string) Decision {
	if l == nil || l.Store == nil {
		return Decision{Allowed: true}
	}
	window := l.Window
	if window <= 0 {
		window = defaultWindow
	}
	now := l.now()
	windowStart := now.Truncate(window)
	resetAt := windowStart.Add(window)
	decision := Decision{Allowed: true, Limit: l.Requests, Remaining: l.Requests, ResetAt: resetAt}

	count, err := l.Store.Increment(ctx, l.bucket(key, windowStart), window)
	if err != nil {
		glog.Ensure(l.Logger).WithContext(ctx).Warn("rate limit store unavailable, allowing request",
			"error", err.Error(),
		)
		return decision
	}

	remaining := l.Requests - int(count)
	if remaining < 0 {
		remaining = 0
	}
	decision.Remaining = remaining
	if int(count) > l.Requests {
		decision.Allowed = false
		decision.RetryAfter = resetAt.Sub(now)
	}
	return decision
}

func (l *Limiter) bucket(key string, windowStart time.Time) string {
	key = strings.TrimSpace(strings.ToLower(key))
	if key == "" {
		key = "anonymous"
	}
	prefix := strings.TrimSpace(l.Prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	return fmt.Sprintf("%s:%s:%d", prefix, key, windowStart.Unix())
}

func (l *Limiter) now() time.Time {
	if l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}
