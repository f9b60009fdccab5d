package signup

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreCreateFindPatch(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rec, err := s.Create(ctx, Record{Email: "a@b.co", VerificationToken: "tok-1", Status: StatusUnverified})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(rec.ID) != 26 {
		t.Fatalf("expected ULID id, got %q", rec.ID)
	}
	if _, err := s.Create(ctx, Record{Email: "c@d.co", VerificationToken: "tok-1"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected duplicate token rejection, got %v", err)
	}

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := s.Patch(ctx, rec.ID, Patch{Status: statusPtr(StatusVerified), VerifiedDate: &now}); err != nil {
		t.Fatalf("Patch: %v", err)
	}
	got, err := s.FindByToken(ctx, "tok-1")
	if err != nil {
		t.Fatalf("FindByToken: %v", err)
	}
	if got.Status != StatusVerified || got.VerifiedDate == nil || !got.VerifiedDate.Equal(now) {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Email != "a@b.co" {
		t.Fatalf("email changed: %q", got.Email)
	}

	if _, err := s.FindByToken(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Patch(ctx, "missing", Patch{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordApplyCopiesPointers(t *testing.T) {
	cat := "privacy"
	rec := Record{}.Apply(Patch{ProblemCategory: &cat})
	cat = "changed"
	if rec.ProblemCategory == nil || *rec.ProblemCategory != "privacy" {
		t.Fatalf("apply aliased the patch value: %v", rec.ProblemCategory)
	}
	if !(Patch{}).Empty() {
		t.Fatalf("zero patch should be empty")
	}
}

func TestParseStatus(t *testing.T) {
	if s, ok := ParseStatus(" Verified "); !ok || s != StatusVerified {
		t.Fatalf("ParseStatus = %q, %v", s, ok)
	}
	if _, ok := ParseStatus("pending"); ok {
		t.Fatalf("unknown status accepted")
	}
}
