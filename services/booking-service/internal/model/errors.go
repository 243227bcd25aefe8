package model

import "errors"

var (
	// ErrNotFound: unknown staff member, service or booking.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest: outside working hours, malformed duration, past date.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrSlotConflict: another booking already occupies an overlapping interval.
	ErrSlotConflict = errors.New("slot already booked")
	// ErrTimeout: the reservation scope could not be acquired in time. Safe to retry.
	ErrTimeout = errors.New("timed out waiting for reservation scope")
)
