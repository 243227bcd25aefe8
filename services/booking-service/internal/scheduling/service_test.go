package scheduling

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/reservation"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

var (
	// Friday 2026-10-16 08:00 UTC.
	testNow = time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	monday  = model.Date{Year: 2026, Month: time.October, Day: 19}
)

func hm(h, m int) model.TimeOfDay { return model.NewTimeOfDay(h, m) }

func newTestService(t *testing.T) *Service {
	t.Helper()
	store := storage.NewMemoryStore()
	if err := store.PutStaffAvailability(model.StaffAvailability{
		StaffID:     "staff-1",
		WorkingDays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		Start:       hm(9, 0),
		End:         hm(17, 0),
		BreakStart:  hm(12, 0),
		BreakEnd:    hm(13, 0),
	}); err != nil {
		t.Fatalf("seed staff: %v", err)
	}
	for _, svc := range []model.Service{
		{ID: "svc-cut", Name: "Haircut", DurationMinutes: 30},
		{ID: "svc-color", Name: "Color", DurationMinutes: 45, BufferMinutes: 15},
	} {
		if err := store.PutService(svc); err != nil {
			t.Fatalf("seed service: %v", err)
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cal := availability.NewCalendar(store, store, availability.WithClock(func() time.Time { return testNow }))
	coord := reservation.NewCoordinator(cal, store, reservation.NewKeyedMutex(), logger, nil, reservation.Config{})
	return NewService(cal, coord, store, store, nil, logger)
}

func TestGetAvailabilityUsesOccupancy(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	cut, err := s.GetAvailability(ctx, "staff-1", monday, "svc-cut")
	if err != nil {
		t.Fatalf("GetAvailability: %v", err)
	}
	if len(cut) != 26 || cut[0] != (Slot{Start: hm(9, 0), End: hm(9, 30)}) || cut[len(cut)-1].Start != hm(16, 30) {
		t.Fatalf("unexpected haircut slots: %v", cut)
	}

	color, err := s.GetAvailability(ctx, "staff-1", monday, "svc-color")
	if err != nil {
		t.Fatalf("GetAvailability: %v", err)
	}
	last := color[len(color)-1]
	if last.Start != hm(16, 0) || last.End != hm(16, 45) {
		t.Fatalf("expected the last color slot at 16:00 ending 16:45, got %v", last)
	}
	for _, slot := range color {
		if slot.Start < hm(12, 0) && slot.Start.Add(60) > hm(12, 0) {
			t.Fatalf("slot %v would run its buffer into the break", slot)
		}
	}
}

func TestCreateBookingRemovesSlotsAndCancelRestoresThem(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	b, err := s.CreateBooking(ctx, "staff-1", monday, hm(14, 0), "svc-cut", "client-1")
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if b.Status != model.StatusPending || b.End != hm(14, 30) {
		t.Fatalf("unexpected booking %+v", b)
	}

	slots, _ := s.GetAvailability(ctx, "staff-1", monday, "svc-cut")
	for _, slot := range slots {
		if slot.Start > hm(13, 30) && slot.Start < hm(14, 30) {
			t.Fatalf("slot %v overlaps the new booking", slot)
		}
	}
	if len(slots) != 23 {
		t.Fatalf("expected 23 slots after booking, got %d", len(slots))
	}

	if _, err := s.CreateBooking(ctx, "staff-1", monday, hm(14, 15), "svc-cut", "client-2"); !errors.Is(err, model.ErrSlotConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	if _, err := s.CancelBooking(ctx, b.ID, "client request"); err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}
	slots, _ = s.GetAvailability(ctx, "staff-1", monday, "svc-cut")
	if len(slots) != 26 {
		t.Fatalf("expected all 26 slots after cancellation, got %d", len(slots))
	}

	listed, err := s.ListBookings(ctx, "staff-1", monday)
	if err != nil || len(listed) != 1 || listed[0].Status != model.StatusCancelled {
		t.Fatalf("unexpected listing %+v (%v)", listed, err)
	}
	got, err := s.GetBooking(ctx, b.ID)
	if err != nil || got.CancelReason != "client request" {
		t.Fatalf("unexpected booking %+v (%v)", got, err)
	}
}

func TestServiceErrors(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	if _, err := s.GetAvailability(ctx, "staff-1", monday, "svc-missing"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found for unknown service, got %v", err)
	}
	if _, err := s.GetAvailability(ctx, "staff-1", monday, ""); !errors.Is(err, model.ErrInvalidRequest) {
		t.Fatalf("expected invalid request without service, got %v", err)
	}
	if _, err := s.GetAvailability(ctx, "ghost", monday, "svc-cut"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found for unknown staff, got %v", err)
	}
	if _, err := s.CreateBooking(ctx, "staff-1", monday, hm(14, 0), "svc-missing", "c"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := s.CancelBooking(ctx, "not-a-uuid", ""); !errors.Is(err, model.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
	if _, err := s.CancelBooking(ctx, "9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d", ""); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := s.ListBookings(ctx, "", monday); !errors.Is(err, model.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
}

func TestUnavailableIntervals(t *testing.T) {
	s := newTestService(t)
	got, err := s.UnavailableIntervals(context.Background(), "staff-1", monday)
	if err != nil {
		t.Fatalf("UnavailableIntervals: %v", err)
	}
	want := []availability.Interval{
		{Start: model.StartOfDay, End: hm(9, 0)},
		{Start: hm(12, 0), End: hm(13, 0)},
		{Start: hm(17, 0), End: model.EndOfDay},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
