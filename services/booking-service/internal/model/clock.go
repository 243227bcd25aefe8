package model

import (
	"fmt"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time in minutes since midnight. EndOfDay (1440)
// is a valid exclusive upper bound.
type TimeOfDay int

const (
	StartOfDay TimeOfDay = 0
	EndOfDay   TimeOfDay = 24 * 60
)

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay accepts "HH:MM"; "24:00" is accepted as EndOfDay.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	raw = strings.TrimSpace(raw)
	if raw == "24:00" {
		return EndOfDay, nil
	}
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, fmt.Errorf("%w: time of day %q", ErrInvalidRequest, raw)
	}
	return NewTimeOfDay(t.Hour(), t.Minute()), nil
}

func (t TimeOfDay) Valid() bool {
	return t >= StartOfDay && t <= EndOfDay
}

func (t TimeOfDay) Add(minutes int) TimeOfDay {
	return t + TimeOfDay(minutes)
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// TimeOfDayAt truncates an instant to the minute in its own location.
func TimeOfDayAt(t time.Time) TimeOfDay {
	return NewTimeOfDay(t.Hour(), t.Minute())
}

// Date is a calendar day without a time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

func ParseDate(raw string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return Date{}, fmt.Errorf("%w: date %q", ErrInvalidRequest, raw)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) Weekday() time.Weekday {
	return d.At(StartOfDay, time.UTC).Weekday()
}

// At returns the instant of the given wall-clock time on d in loc.
func (d Date) At(t TimeOfDay, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, int(t), 0, 0, loc)
}

func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.At(StartOfDay, time.UTC).AddDate(0, 0, n))
}
