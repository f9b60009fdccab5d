// Package ratelimit implements the per-source signup throttle: a fixed-window counter
// persisted in a small key-value store (Redis in production, memory in development).
//
// The limiter fails open: if the counter store cannot be read or written, the request is
// allowed and the failure is logged.
package ratelimit

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"beta/cmd/security/token"
)

const (
	// DefaultMax is the number of allowed requests per window and source.
	DefaultMax = 5
	// DefaultWindow is the counter window length.
	DefaultWindow = time.Hour

	keyNamespace = "signup"
	expirySlack  = time.Second
)

// Config controls limiter thresholds.
type Config struct {
	Max    int
	Window time.Duration
}

// Counter is the persisted state for one source key.
type Counter struct {
	Count       int
	WindowStart time.Time
}

// Decision is the result of a single check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	// FailedOpen is set when the store errored and the request was let through.
	FailedOpen bool
}

// Limiter applies the fixed-window policy on top of a Store.
type Limiter struct {
	store  Store
	cfg    Config
	hasher token.Hasher
	log    *slog.Logger
	now    func() time.Time

	onFailOpen func(op string)
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets the logger used for fail-open reports.
func WithLogger(log *slog.Logger) Option {
	return func(l *Limiter) {
		if log != nil {
			l.log = log
		}
	}
}

// WithHasher sets the hasher used to derive store keys from source addresses.
func WithHasher(h token.Hasher) Option {
	return func(l *Limiter) { l.hasher = h }
}

// WithFailOpenHook registers a callback invoked whenever the store fails and the limiter lets a request through.
func WithFailOpenHook(fn func(op string)) Option {
	return func(l *Limiter) { l.onFailOpen = fn }
}

// NewLimiter constructs a Limiter with safe defaults when inputs are invalid.
func NewLimiter(store Store, cfg Config, opts ...Option) *Limiter {
	if cfg.Max <= 0 {
		cfg.Max = DefaultMax
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	l := &Limiter{
		store: store,
		cfg:   cfg,
		log:   slog.Default(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Allow reports whether a request from sourceKey may proceed, consuming one slot when it does.
func (l *Limiter) Allow(ctx context.Context, sourceKey string) bool {
	return l.Check(ctx, sourceKey).Allowed
}

// Check is Allow with retry metadata.
func (l *Limiter) Check(ctx context.Context, sourceKey string) Decision {
	if l == nil || l.store == nil {
		return Decision{Allowed: true}
	}

	sourceKey = strings.TrimSpace(sourceKey)
	if sourceKey == "" {
		sourceKey = "unknown"
	}
	key := l.hasher.HashKey(keyNamespace, sourceKey)
	now := l.now()

	c, ok, err := l.store.Get(ctx, key)
	if err != nil {
		return l.failOpen(ctx, "get", err)
	}

	next, d := evaluate(c, ok, now, l.cfg)
	if !d.Allowed {
		return d
	}

	if err := l.store.Put(ctx, key, next, counterTTL(next, now, l.cfg.Window)); err != nil {
		return l.failOpen(ctx, "put", err)
	}
	return d
}

func (l *Limiter) failOpen(ctx context.Context, op string, err error) Decision {
	l.log.WarnContext(ctx, "ratelimit.store.fail_open", "op", op, "err", err)
	if l.onFailOpen != nil {
		l.onFailOpen(op)
	}
	return Decision{Allowed: true, FailedOpen: true}
}

// counterTTL keeps a counter until strictly after its window closes,
// since a reset needs now-WindowStart > window.
func counterTTL(c Counter, now time.Time, window time.Duration) time.Duration {
	return c.WindowStart.Add(window).Sub(now) + expirySlack
}

// evaluate applies the window policy to the current counter.
// It returns the counter to persist and the decision; the counter is meaningless when denied.
func evaluate(c Counter, exists bool, now time.Time, cfg Config) (Counter, Decision) {
	if !exists || now.Sub(c.WindowStart) > cfg.Window {
		return Counter{Count: 1, WindowStart: now}, Decision{Allowed: true}
	}
	if c.Count >= cfg.Max {
		retry := c.WindowStart.Add(cfg.Window).Sub(now)
		if retry < time.Second {
			retry = time.Second
		}
		return c, Decision{Allowed: false, RetryAfter: retry}
	}
	return Counter{Count: c.Count + 1, WindowStart: c.WindowStart}, Decision{Allowed: true}
}
