package availability

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"go.opentelemetry.io/otel/attribute"
)

// AvailableSlots returns the bookable start times for a booking of
// durationMinutes on the given staff day. The sequence is lazy, finite and
// may be ranged over any number of times with identical results; it reflects
// the bookings loaded when AvailableSlots was called.
func (c *Calendar) AvailableSlots(ctx context.Context, staffID string, date model.Date, durationMinutes int) (iter.Seq[model.TimeOfDay], error) {
	if durationMinutes <= 0 || durationMinutes > int(model.EndOfDay) {
		return nil, fmt.Errorf("%w: duration must be between 1 and 1440 minutes (got %d)", model.ErrInvalidRequest, durationMinutes)
	}

	ctx, span := tracer.Start(ctx, "availability.available_slots")
	defer span.End()
	span.SetAttributes(
		attribute.String("salon.staff_id", staffID),
		attribute.String("salon.date", date.String()),
		attribute.Int("salon.duration_minutes", durationMinutes),
	)

	snap, err := c.Load(ctx, staffID, date)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	notBefore, open := OpenFrom(date, c.now().In(snap.Availability.Location()))
	if !open {
		return Slots(nil, durationMinutes, c.step, 0), nil
	}
	return Slots(snap.FreeGaps(), durationMinutes, c.step, notBefore), nil
}

// FreeGaps is the complement of Blocked within working hours.
func (s Snapshot) FreeGaps() []Interval {
	window := Interval{Start: s.Availability.Start, End: s.Availability.End}
	return Complement(window, s.Blocked())
}

// OpenFrom reports the earliest wall-clock minute still bookable on date given
// the current instant (already converted to the staff timezone). Past dates are
// closed; future dates are open from midnight.
func OpenFrom(date model.Date, now time.Time) (model.TimeOfDay, bool) {
	today := model.DateOf(now)
	switch {
	case date.Before(today):
		return 0, false
	case today.Before(date):
		return model.StartOfDay, true
	}
	t := model.TimeOfDayAt(now)
	if now.Second() > 0 || now.Nanosecond() > 0 {
		t = t.Add(1)
	}
	return t, true
}

// Slots walks each free gap from its start in step increments and yields every
// t with t >= notBefore and t+duration <= gap end, in ascending order.
func Slots(free []Interval, duration, step int, notBefore model.TimeOfDay) iter.Seq[model.TimeOfDay] {
	gaps := append([]Interval(nil), free...)
	return func(yield func(model.TimeOfDay) bool) {
		if duration <= 0 || step <= 0 {
			return
		}
		for _, gap := range gaps {
			if gap.Minutes() < duration {
				continue
			}
			for t := gap.Start; t.Add(duration) <= gap.End; t = t.Add(step) {
				if t < notBefore {
					continue
				}
				if !yield(t) {
					return
				}
			}
		}
	}
}
