package availability

import (
	"context"
	"fmt"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// IsFree reports whether [start, end) on the staff day overlaps no unavailable
// interval at the moment of the call. It never blocks on reservations.
func (c *Calendar) IsFree(ctx context.Context, staffID string, date model.Date, start, end model.TimeOfDay) (bool, error) {
	candidate := Interval{Start: start, End: end}
	if candidate.Empty() || !start.Valid() || !end.Valid() {
		return false, fmt.Errorf("%w: interval %s-%s", model.ErrInvalidRequest, start, end)
	}
	blocked, err := c.UnavailableIntervals(ctx, staffID, date)
	if err != nil {
		return false, err
	}
	return Fits(blocked, candidate), nil
}

// Fits reports whether candidate overlaps none of blocked, which must be sorted
// and disjoint as returned by Merge.
func Fits(blocked []Interval, candidate Interval) bool {
	for _, b := range blocked {
		if b.Start >= candidate.End {
			// blocked is sorted; nothing later can overlap.
			break
		}
		if b.Overlaps(candidate) {
			return false
		}
	}
	return true
}
