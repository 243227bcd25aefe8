package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

type countingStaff struct {
	calls int
	avail model.StaffAvailability
	err   error
}

func (c *countingStaff) FetchStaffAvailability(context.Context, string) (model.StaffAvailability, error) {
	c.calls++
	return c.avail, c.err
}

func TestCachedStaffStore(t *testing.T) {
	next := &countingStaff{avail: model.StaffAvailability{StaffID: "staff-1", WorkingDays: []time.Weekday{time.Monday}}}
	cache := NewCachedStaffStore(next, time.Minute, nil)
	now := created
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := cache.FetchStaffAvailability(ctx, "staff-1"); err != nil {
			t.Fatalf("fetch: %v", err)
		}
	}
	if next.calls != 1 {
		t.Fatalf("expected one backend call, got %d", next.calls)
	}

	cache.Invalidate("staff-1")
	_, _ = cache.FetchStaffAvailability(ctx, "staff-1")
	if next.calls != 2 {
		t.Fatalf("expected refetch after invalidation, got %d calls", next.calls)
	}

	now = now.Add(2 * time.Minute)
	_, _ = cache.FetchStaffAvailability(ctx, "staff-1")
	if next.calls != 3 {
		t.Fatalf("expected refetch after expiry, got %d calls", next.calls)
	}
}

func TestCachedStaffStoreDoesNotCacheErrors(t *testing.T) {
	next := &countingStaff{err: model.ErrNotFound}
	cache := NewCachedStaffStore(next, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := cache.FetchStaffAvailability(ctx, "ghost"); !errors.Is(err, model.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if next.calls != 2 {
		t.Fatalf("errors must not be cached, got %d calls", next.calls)
	}
}
