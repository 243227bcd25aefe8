package model

import (
	"errors"
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	got, err := ParseTimeOfDay("09:15")
	if err != nil {
		t.Fatalf("ParseTimeOfDay failed: %v", err)
	}
	if got != NewTimeOfDay(9, 15) || got.String() != "09:15" {
		t.Fatalf("unexpected time of day: %d (%s)", got, got)
	}

	end, err := ParseTimeOfDay("24:00")
	if err != nil || end != EndOfDay {
		t.Fatalf("expected end of day, got %d err=%v", end, err)
	}

	if _, err := ParseTimeOfDay("9am"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestDate(t *testing.T) {
	d, err := ParseDate("2026-10-19")
	if err != nil {
		t.Fatalf("ParseDate failed: %v", err)
	}
	if d.Weekday() != time.Monday {
		t.Fatalf("expected Monday, got %s", d.Weekday())
	}
	if d.String() != "2026-10-19" {
		t.Fatalf("unexpected string %s", d)
	}
	if !d.Before(d.AddDays(1)) || d.AddDays(1).Before(d) || d.Before(d) {
		t.Fatal("Before ordering is wrong")
	}
	if got := d.AddDays(13); got.String() != "2026-11-01" {
		t.Fatalf("AddDays across month: got %s", got)
	}

	at := d.At(NewTimeOfDay(13, 30), time.UTC)
	if !at.Equal(time.Date(2026, 10, 19, 13, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected instant %s", at)
	}
	if TimeOfDayAt(at) != NewTimeOfDay(13, 30) {
		t.Fatalf("TimeOfDayAt mismatch")
	}
}

func TestStaffAvailabilityValidate(t *testing.T) {
	ok := StaffAvailability{
		StaffID:    "staff-1",
		Start:      NewTimeOfDay(9, 0),
		End:        NewTimeOfDay(17, 0),
		BreakStart: NewTimeOfDay(12, 0),
		BreakEnd:   NewTimeOfDay(13, 0),
	}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid template, got %v", err)
	}

	noBreak := ok
	noBreak.BreakStart, noBreak.BreakEnd = 0, 0
	if err := noBreak.Validate(); err != nil || noBreak.HasBreak() {
		t.Fatalf("expected valid template without break, got %v", err)
	}

	badBreak := ok
	badBreak.BreakEnd = NewTimeOfDay(17, 30)
	if err := badBreak.Validate(); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for break past end, got %v", err)
	}

	inverted := ok
	inverted.Start, inverted.End = inverted.End, inverted.Start
	if err := inverted.Validate(); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for inverted hours, got %v", err)
	}
}

func TestServiceValidate(t *testing.T) {
	if err := (Service{ID: "cut", DurationMinutes: 30, BufferMinutes: 10}).Validate(); err != nil {
		t.Fatalf("expected valid service, got %v", err)
	}
	if err := (Service{ID: "cut"}).Validate(); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for zero duration, got %v", err)
	}
	if err := (Service{ID: "cut", DurationMinutes: 30, BufferMinutes: -5}).Validate(); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for negative buffer, got %v", err)
	}
}

func TestStatus(t *testing.T) {
	if !StatusPending.Blocking() || !StatusConfirmed.Blocking() {
		t.Fatal("pending and confirmed must block")
	}
	for _, s := range []Status{StatusCancelled, StatusCompleted, StatusNoShow} {
		if s.Blocking() {
			t.Fatalf("%s must not block", s)
		}
	}
	if s, ok := ParseStatus(" confirmed "); !ok || s != StatusConfirmed {
		t.Fatalf("ParseStatus: got %q ok=%v", s, ok)
	}
	if _, ok := ParseStatus("booked"); ok {
		t.Fatal("unexpected status accepted")
	}
}
