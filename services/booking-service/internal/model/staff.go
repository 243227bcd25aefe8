package model

import (
	"fmt"
	"time"
)

// StaffAvailability is the recurring weekly working-hours template of one
// staff member. A zero BreakStart/BreakEnd pair means no break.
type StaffAvailability struct {
	StaffID     string
	WorkingDays []time.Weekday
	Start       TimeOfDay
	End         TimeOfDay
	BreakStart  TimeOfDay
	BreakEnd    TimeOfDay
	Timezone    string
}

func (a StaffAvailability) HasBreak() bool {
	return a.BreakEnd > a.BreakStart
}

func (a StaffAvailability) WorksOn(day time.Weekday) bool {
	for _, d := range a.WorkingDays {
		if d == day {
			return true
		}
	}
	return false
}

// Location resolves Timezone, falling back to UTC for empty or unknown names.
func (a StaffAvailability) Location() *time.Location {
	if a.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (a StaffAvailability) Validate() error {
	if a.StaffID == "" {
		return fmt.Errorf("%w: staff id required", ErrInvalidRequest)
	}
	if !a.Start.Valid() || !a.End.Valid() || a.Start >= a.End {
		return fmt.Errorf("%w: working hours %s-%s", ErrInvalidRequest, a.Start, a.End)
	}
	if a.BreakStart == 0 && a.BreakEnd == 0 {
		return nil
	}
	if !(a.Start < a.BreakStart && a.BreakStart < a.BreakEnd && a.BreakEnd < a.End) {
		return fmt.Errorf("%w: break %s-%s outside working hours %s-%s",
			ErrInvalidRequest, a.BreakStart, a.BreakEnd, a.Start, a.End)
	}
	return nil
}

type Service struct {
	ID              string
	Name            string
	DurationMinutes int
	BufferMinutes   int
}

// Occupancy is the number of minutes a booking of this service blocks.
func (s Service) Occupancy() int {
	return s.DurationMinutes + s.BufferMinutes
}

func (s Service) Validate() error {
	if s.DurationMinutes <= 0 {
		return fmt.Errorf("%w: service duration must be positive (got %d)", ErrInvalidRequest, s.DurationMinutes)
	}
	if s.BufferMinutes < 0 {
		return fmt.Errorf("%w: service buffer must not be negative (got %d)", ErrInvalidRequest, s.BufferMinutes)
	}
	if s.Occupancy() > int(EndOfDay) {
		return fmt.Errorf("%w: service occupies more than a day", ErrInvalidRequest)
	}
	return nil
}
