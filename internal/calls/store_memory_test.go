package calls

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_CreateAndGet(t *testing.T) {
	s := NewMemoryStore()

	c := Call{CallID: "c1", UserID: "u1", Status: CallStatusInitiated}
	if err := s.Create(context.Background(), c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(context.Background(), c); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("duplicate create must fail, got %v", err)
	}

	got, err := s.Get(context.Background(), "c1")
	if err != nil || got.UserID != "u1" {
		t.Fatalf("get: %v %+v", err, got)
	}
	if _, err := s.Get(context.Background(), "c2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_ProviderCallIDWriteOnce(t *testing.T) {
	s := NewMemoryStore()
	_ = s.Create(context.Background(), Call{CallID: "c1"})

	if err := s.SetProviderCallID(context.Background(), "c1", "CA1"); err != nil {
		t.Fatalf("first set: %v", err)
	}
	// same value is a no-op
	if err := s.SetProviderCallID(context.Background(), "c1", "CA1"); err != nil {
		t.Fatalf("idempotent set: %v", err)
	}
	if err := s.SetProviderCallID(context.Background(), "c1", "CA2"); !errors.Is(err, ErrProviderIDTaken) {
		t.Fatalf("expected ErrProviderIDTaken, got %v", err)
	}

	got, err := s.GetByProviderCallID(context.Background(), "CA1")
	if err != nil || got.CallID != "c1" {
		t.Fatalf("lookup by provider id: %v %+v", err, got)
	}
}

func TestMemoryStore_UpdatePreservesIdentity(t *testing.T) {
	s := NewMemoryStore()
	_ = s.Create(context.Background(), Call{CallID: "c1", ProviderCallID: "CA1", Status: CallStatusInitiated})

	got, err := s.Update(context.Background(), "c1", func(c Call) (Call, error) {
		c.CallID = "hijacked"
		c.ProviderCallID = "CA9"
		c.Status = CallStatusRinging
		return c, nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.CallID != "c1" || got.ProviderCallID != "CA1" {
		t.Fatalf("identity fields rewritten: %+v", got)
	}
	if got.Status != CallStatusRinging {
		t.Fatalf("status not applied")
	}
}

func TestMemoryStore_UpdateSerializesPerCall(t *testing.T) {
	s := NewMemoryStore()
	_ = s.Create(context.Background(), Call{CallID: "c1"})

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Update(context.Background(), "c1", func(c Call) (Call, error) {
				c.DurationSeconds++
				return c, nil
			})
		}()
	}
	wg.Wait()

	got, _ := s.Get(context.Background(), "c1")
	if got.DurationSeconds != n {
		t.Fatalf("lost updates: got %d, want %d", got.DurationSeconds, n)
	}
}

func TestMemoryStore_ListFilters(t *testing.T) {
	s := NewMemoryStore()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_ = s.Create(context.Background(), Call{CallID: "c1", UserID: "u1", CreatedAt: t0})
	_ = s.Create(context.Background(), Call{CallID: "c2", UserID: "u2", CreatedAt: t0.Add(time.Hour)})
	_ = s.Create(context.Background(), Call{CallID: "c3", UserID: "u1", CreatedAt: t0.Add(2 * time.Hour)})

	got, err := s.List(context.Background(), ListFilter{UserID: "u1"})
	if err != nil || len(got) != 2 {
		t.Fatalf("user filter: %v %d", err, len(got))
	}

	got, _ = s.List(context.Background(), ListFilter{From: t0.Add(time.Hour), To: t0.Add(2 * time.Hour)})
	if len(got) != 1 || got[0].CallID != "c2" {
		t.Fatalf("time window filter: %+v", got)
	}

	got, _ = s.List(context.Background(), ListFilter{})
	if len(got) != 3 {
		t.Fatalf("unfiltered: %d", len(got))
	}
}

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_ = s.Create(context.Background(), Call{CallID: "c1", CreatedAt: t0})
	_ = s.Create(context.Background(), Call{CallID: "c2", CreatedAt: t0.Add(2 * time.Hour)})
	_ = s.Create(context.Background(), Call{CallID: "c3", CreatedAt: t0.Add(time.Hour)})

	got, err := s.List(context.Background(), ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"c2", "c3", "c1"}
	for i, id := range want {
		if got[i].CallID != id {
			t.Fatalf("position %d: got %q, want %q", i, got[i].CallID, id)
		}
	}
}
