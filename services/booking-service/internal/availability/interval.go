package availability

import (
	"slices"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// Interval is a half-open wall-clock range [Start, End) within one day.
type Interval struct {
	Start model.TimeOfDay
	End   model.TimeOfDay
}

func (i Interval) Empty() bool {
	return i.End <= i.Start
}

func (i Interval) Minutes() int {
	if i.Empty() {
		return 0
	}
	return int(i.End - i.Start)
}

// Overlaps: [a,b) and [c,d) overlap iff a < d && c < b. Touching ends do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

func (i Interval) Contains(o Interval) bool {
	return i.Start <= o.Start && o.End <= i.End
}

// Merge sorts intervals by start and coalesces overlapping or touching ones.
// Empty intervals are dropped. The input slice is not modified.
func Merge(in []Interval) []Interval {
	sorted := make([]Interval, 0, len(in))
	for _, iv := range in {
		if !iv.Empty() {
			sorted = append(sorted, iv)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	slices.SortFunc(sorted, func(a, b Interval) int {
		if a.Start != b.Start {
			return int(a.Start - b.Start)
		}
		return int(a.End - b.End)
	})

	merged := []Interval{sorted[0]}
	for _, cur := range sorted[1:] {
		last := &merged[len(merged)-1]
		if cur.Start <= last.End {
			if cur.End > last.End {
				last.End = cur.End
			}
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}

// Complement returns the gaps of window not covered by blocked. blocked must be
// sorted and disjoint (as returned by Merge).
func Complement(window Interval, blocked []Interval) []Interval {
	if window.Empty() {
		return nil
	}
	var gaps []Interval
	cursor := window.Start
	for _, b := range blocked {
		if b.End <= cursor {
			continue
		}
		if b.Start >= window.End {
			break
		}
		if b.Start > cursor {
			gaps = append(gaps, Interval{Start: cursor, End: b.Start})
		}
		cursor = b.End
		if cursor >= window.End {
			return gaps
		}
	}
	if cursor < window.End {
		gaps = append(gaps, Interval{Start: cursor, End: window.End})
	}
	return gaps
}
