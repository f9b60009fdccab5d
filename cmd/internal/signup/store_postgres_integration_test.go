package signup

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Integration tests are enabled when BETA_DATABASE_URL is set.
// Outside CI, an unreachable Postgres skips these tests.

func TestPostgresStore_RoundTrip(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	t.Cleanup(pool.Close)

	schema := "beta_test_" + randomSuffix(t)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })

	store, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	if err := store.ApplySchema(ctx); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	// Second application must be a no-op.
	if err := store.ApplySchema(ctx); err != nil {
		t.Fatalf("re-apply schema: %v", err)
	}

	tok, _ := NewToken()
	now := time.Now().UTC().Truncate(time.Microsecond)
	rec, err := store.Create(ctx, Record{
		Email:             "pg@example.com",
		Why:               genuineWhy,
		SourceAddress:     "198.51.100.4",
		BotScore:          0.8,
		VerificationToken: tok,
		Status:            StatusUnverified,
		SignupDate:        now,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.FindByToken(ctx, tok)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID != rec.ID || got.Status != StatusUnverified || got.VerifiedDate != nil || got.ProblemCategory != nil {
		t.Fatalf("unexpected record: %+v", got)
	}

	if err := store.Patch(ctx, rec.ID, Patch{Status: statusPtr(StatusVerified), VerifiedDate: &now}); err != nil {
		t.Fatalf("patch verified: %v", err)
	}
	cat, pain := "spam", "5"
	if err := store.Patch(ctx, rec.ID, Patch{Status: statusPtr(StatusCompleted), ProblemCategory: &cat, PainLevel: &pain}); err != nil {
		t.Fatalf("patch completed: %v", err)
	}
	got, err = store.FindByToken(ctx, tok)
	if err != nil {
		t.Fatalf("find after patch: %v", err)
	}
	if got.Status != StatusCompleted || got.VerifiedDate == nil || derefString(got.ProblemCategory) != "spam" {
		t.Fatalf("patch did not persist: %+v", got)
	}

	if _, err := store.FindByToken(ctx, "00000000-0000-4000-8000-000000000000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Patch(ctx, "01J00000000000000000000000", Patch{Status: statusPtr(StatusVerified)}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on patch, got %v", err)
	}
	if _, err := store.Create(ctx, Record{Email: "dup@example.com", Why: genuineWhy, VerificationToken: tok}); err == nil {
		t.Fatalf("expected unique token violation")
	}
}

func mustOpenTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("BETA_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: BETA_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse BETA_DATABASE_URL: %v", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		if shouldSkipIntegration(err) {
			t.Skipf("integration test skipped: Postgres unreachable (BETA_DATABASE_URL set): %v", err)
		}
		t.Fatalf("ping: %v", err)
	}
	return pool
}

func shouldSkipIntegration(err error) bool {
	if err == nil || os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "no such host")
}

func mustDropSchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := pool.Exec(ctx, `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`); err != nil {
		t.Fatalf("drop schema: %v", err)
	}
}

func randomSuffix(t *testing.T) string {
	t.Helper()
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		t.Fatalf("rand: %v", err)
	}
	return hex.EncodeToString(b[:])
}
