package model

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
	StatusNoShow    Status = "NO_SHOW"
)

// Blocking reports whether a booking in this status occupies its interval.
func (s Status) Blocking() bool {
	return s == StatusPending || s == StatusConfirmed
}

func ParseStatus(raw string) (Status, bool) {
	switch s := Status(strings.ToUpper(strings.TrimSpace(raw))); s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return s, true
	}
	return "", false
}

// Booking is an appointment of one service with one staff member on one day.
// End already includes the service buffer.
type Booking struct {
	ID           string
	StaffID      string
	ServiceID    string
	ClientID     string
	Date         Date
	Start        TimeOfDay
	End          TimeOfDay
	Status       Status
	CancelledAt  *time.Time
	CancelReason string
	CreatedAt    time.Time
}

func (b Booking) Overlaps(start, end TimeOfDay) bool {
	return b.Start < end && start < b.End
}

// StartsAt resolves the booking start to an instant in loc.
func (b Booking) StartsAt(loc *time.Location) time.Time {
	return b.Date.At(b.Start, loc)
}

func (b Booking) EndsAt(loc *time.Location) time.Time {
	return b.Date.At(b.End, loc)
}
