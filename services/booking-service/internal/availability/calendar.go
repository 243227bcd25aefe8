package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("salonbook.availability")

// StaffStore returns the working-hours template of a staff member, or an
// error wrapping model.ErrNotFound.
type StaffStore interface {
	FetchStaffAvailability(ctx context.Context, staffID string) (model.StaffAvailability, error)
}

// BookingReader returns the PENDING and CONFIRMED bookings of a staff day.
type BookingReader interface {
	FetchBookingsForStaffDay(ctx context.Context, staffID string, date model.Date) ([]model.Booking, error)
}

// WholeDay is the single interval reported for days the staff member does not work.
var WholeDay = Interval{Start: model.StartOfDay, End: model.EndOfDay}

// DefaultStep is the default slot granularity in minutes.
const DefaultStep = 15

type Calendar struct {
	staff    StaffStore
	bookings BookingReader
	step     int
	now      func() time.Time
}

type Option func(*Calendar)

// WithStep sets the slot granularity in minutes.
func WithStep(minutes int) Option {
	return func(c *Calendar) {
		if minutes > 0 {
			c.step = minutes
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Calendar) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCalendar(staff StaffStore, bookings BookingReader, opts ...Option) *Calendar {
	c := &Calendar{
		staff:    staff,
		bookings: bookings,
		step:     DefaultStep,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Calendar) Step() int { return c.step }

// Now returns the current time; shared with the reservation path so both
// agree on what "past" means.
func (c *Calendar) Now() time.Time { return c.now() }

// Availability fetches the working-hours template of a staff member.
func (c *Calendar) Availability(ctx context.Context, staffID string) (model.StaffAvailability, error) {
	avail, err := c.staff.FetchStaffAvailability(ctx, staffID)
	if err != nil {
		return model.StaffAvailability{}, fmt.Errorf("fetch availability for staff %s: %w", staffID, err)
	}
	return avail, nil
}

// Snapshot is the input of one scheduling computation. It is never mutated
// after load.
type Snapshot struct {
	Availability model.StaffAvailability
	Date         model.Date
	Bookings     []model.Booking
}

// Load fetches the template and the blocking bookings of one staff day.
func (c *Calendar) Load(ctx context.Context, staffID string, date model.Date) (Snapshot, error) {
	avail, err := c.Availability(ctx, staffID)
	if err != nil {
		return Snapshot{}, err
	}
	bookings, err := c.bookings.FetchBookingsForStaffDay(ctx, staffID, date)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch bookings for staff %s on %s: %w", staffID, date, err)
	}
	return Snapshot{Availability: avail, Date: date, Bookings: bookings}, nil
}

// UnavailableIntervals returns the sorted, disjoint blocked intervals of a staff day.
func (c *Calendar) UnavailableIntervals(ctx context.Context, staffID string, date model.Date) ([]Interval, error) {
	ctx, span := tracer.Start(ctx, "availability.unavailable_intervals")
	defer span.End()
	span.SetAttributes(attribute.String("salon.staff_id", staffID), attribute.String("salon.date", date.String()))

	snap, err := c.Load(ctx, staffID, date)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return snap.Blocked(), nil
}

func (s Snapshot) Blocked() []Interval {
	return BlockedIntervals(s.Availability, s.Date, s.Bookings)
}

// BlockedIntervals unions the time before Start, after End, the break and
// every blocking booking. Non-working days are blocked as a whole.
func BlockedIntervals(avail model.StaffAvailability, date model.Date, bookings []model.Booking) []Interval {
	if !avail.WorksOn(date.Weekday()) {
		return []Interval{WholeDay}
	}

	blocked := make([]Interval, 0, len(bookings)+3)
	blocked = append(blocked,
		Interval{Start: model.StartOfDay, End: avail.Start},
		Interval{Start: avail.End, End: model.EndOfDay},
	)
	if avail.HasBreak() {
		blocked = append(blocked, Interval{Start: avail.BreakStart, End: avail.BreakEnd})
	}
	for _, b := range bookings {
		if !b.Status.Blocking() || b.Date != date {
			continue
		}
		blocked = append(blocked, Interval{Start: b.Start, End: b.End})
	}
	return Merge(blocked)
}
