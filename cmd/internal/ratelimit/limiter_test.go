package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"beta/cmd/security/token"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(t *testing.T, store Store, clock *fakeClock, opts ...Option) *Limiter {
	t.Helper()
	base := []Option{
		WithClock(clock.Now),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return NewLimiter(store, Config{Max: 5, Window: time.Hour}, append(base, opts...)...)
}

func TestLimiter_AllowsMaxThenBlocks(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := newTestLimiter(t, NewMemoryStore(), clock)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if !l.Allow(ctx, "198.51.100.4") {
			t.Fatalf("request %d should be allowed", i)
		}
		clock.Advance(time.Minute)
	}
	d := l.Check(ctx, "198.51.100.4")
	if d.Allowed {
		t.Fatalf("6th request within the window must be rejected")
	}
	if d.RetryAfter != 55*time.Minute {
		t.Fatalf("expected retry after 55m, got %v", d.RetryAfter)
	}

	// Other sources are unaffected.
	if !l.Allow(ctx, "198.51.100.5") {
		t.Fatalf("different source must be allowed")
	}
}

func TestLimiter_BlockedAtExactWindowBoundary(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	store.nowF = clock.Now
	l := newTestLimiter(t, store, clock)
	ctx := context.Background()

	// Every allowed request lands on the same instant.
	for i := 1; i <= 5; i++ {
		if !l.Allow(ctx, "ip") {
			t.Fatalf("request %d should be allowed", i)
		}
	}

	clock.Advance(time.Hour)
	if l.Allow(ctx, "ip") {
		t.Fatalf("request at windowStart+window must still be blocked")
	}

	clock.Advance(time.Millisecond)
	if !l.Allow(ctx, "ip") {
		t.Fatalf("request after the window must be allowed")
	}
}

func TestLimiter_TTLCountsFromWindowStart(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := &recordingStore{m: map[string]Counter{}}
	l := newTestLimiter(t, store, clock)
	ctx := context.Background()

	l.Allow(ctx, "ip")
	clock.Advance(20 * time.Minute)
	l.Allow(ctx, "ip")

	want := []time.Duration{time.Hour + time.Second, 40*time.Minute + time.Second}
	if len(store.ttls) != 2 || store.ttls[0] != want[0] || store.ttls[1] != want[1] {
		t.Fatalf("ttls = %v, want %v", store.ttls, want)
	}
}

func TestLimiter_RejectedCallDoesNotIncrement(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	l := newTestLimiter(t, store, clock)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		l.Allow(ctx, "ip")
	}
	key := token.Hasher{}.HashKey(keyNamespace, "ip")
	c, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected stored counter, ok=%v err=%v", ok, err)
	}
	if c.Count != 5 {
		t.Fatalf("expected count to stop at 5, got %d", c.Count)
	}
}

func TestLimiter_ResetsAfterWindow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	// A store without expiry so the reset path in evaluate is exercised.
	store := &recordingStore{m: map[string]Counter{}}
	l := newTestLimiter(t, store, clock)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if !l.Allow(ctx, "ip") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow(ctx, "ip") {
		t.Fatalf("expected block")
	}

	// Exactly one window later is still inside (strictly greater resets).
	clock.Advance(time.Hour)
	if l.Allow(ctx, "ip") {
		t.Fatalf("expected block at exact window boundary")
	}

	clock.Advance(time.Millisecond)
	if !l.Allow(ctx, "ip") {
		t.Fatalf("expected reset after window elapsed")
	}
	for _, c := range store.m {
		if c.Count != 1 || !c.WindowStart.Equal(clock.Now()) {
			t.Fatalf("expected fresh counter, got %+v", c)
		}
	}
}

func TestLimiter_FailsOpen(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	cases := []struct {
		name  string
		store *recordingStore
		op    string
	}{
		{name: "get error", store: &recordingStore{getErr: errors.New("redis down")}, op: "get"},
		{name: "put error", store: &recordingStore{m: map[string]Counter{}, putErr: errors.New("redis down")}, op: "put"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var hooked []string
			l := newTestLimiter(t, tc.store, clock, WithFailOpenHook(func(op string) { hooked = append(hooked, op) }))

			for i := 0; i < 10; i++ {
				d := l.Check(context.Background(), "ip")
				if !d.Allowed || !d.FailedOpen {
					t.Fatalf("expected fail-open allow, got %+v", d)
				}
			}
			if len(hooked) != 10 || hooked[0] != tc.op {
				t.Fatalf("expected 10 %q hooks, got %v", tc.op, hooked)
			}
		})
	}
}

func TestLimiter_NilStoreAllows(t *testing.T) {
	var l *Limiter
	if !l.Allow(context.Background(), "ip") {
		t.Fatalf("nil limiter must allow")
	}
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg := Config{Max: 5, Window: time.Hour}

	cases := []struct {
		name      string
		in        Counter
		exists    bool
		wantAllow bool
		wantCount int
	}{
		{name: "absent", exists: false, wantAllow: true, wantCount: 1},
		{name: "increment", in: Counter{Count: 2, WindowStart: now.Add(-time.Minute)}, exists: true, wantAllow: true, wantCount: 3},
		{name: "last slot", in: Counter{Count: 4, WindowStart: now.Add(-time.Minute)}, exists: true, wantAllow: true, wantCount: 5},
		{name: "full", in: Counter{Count: 5, WindowStart: now.Add(-time.Minute)}, exists: true, wantAllow: false, wantCount: 5},
		{name: "stale full", in: Counter{Count: 5, WindowStart: now.Add(-61 * time.Minute)}, exists: true, wantAllow: true, wantCount: 1},
	}

	for _, tc := range cases {
		got, d := evaluate(tc.in, tc.exists, now, cfg)
		if d.Allowed != tc.wantAllow {
			t.Fatalf("%s: allowed=%v want %v", tc.name, d.Allowed, tc.wantAllow)
		}
		if got.Count != tc.wantCount {
			t.Fatalf("%s: count=%d want %d", tc.name, got.Count, tc.wantCount)
		}
	}
}

type recordingStore struct {
	m      map[string]Counter
	ttls   []time.Duration
	getErr error
	putErr error
}

func (s *recordingStore) Get(_ context.Context, key string) (Counter, bool, error) {
	if s.getErr != nil {
		return Counter{}, false, s.getErr
	}
	c, ok := s.m[key]
	return c, ok, nil
}

func (s *recordingStore) Put(_ context.Context, key string, c Counter, ttl time.Duration) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.ttls = append(s.ttls, ttl)
	s.m[key] = c
	return nil
}
