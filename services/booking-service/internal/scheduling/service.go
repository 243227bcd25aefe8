// Package scheduling is the entry point used by transport adapters. It
// resolves service definitions and delegates to the availability calendar
// and the reservation coordinator.
package scheduling

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/reservation"
)

type ServiceStore interface {
	FetchService(ctx context.Context, serviceID string) (model.Service, error)
}

// BookingAdmin covers the booking operations outside reservation.
type BookingAdmin interface {
	GetBooking(ctx context.Context, bookingID string) (model.Booking, error)
	CancelBooking(ctx context.Context, bookingID, reason string) (model.Booking, error)
	ListForStaffDay(ctx context.Context, staffID string, date model.Date) ([]model.Booking, error)
}

// Slot is an offered appointment. End is when the service itself ends; the
// buffer after it is not part of the slot.
type Slot struct {
	Start model.TimeOfDay
	End   model.TimeOfDay
}

type Service struct {
	calendar    *availability.Calendar
	coordinator *reservation.Coordinator
	services    ServiceStore
	bookings    BookingAdmin
	metrics     *metrics.SchedulingMetrics
	logger      *slog.Logger
}

func NewService(calendar *availability.Calendar, coordinator *reservation.Coordinator, services ServiceStore, bookings BookingAdmin, m *metrics.SchedulingMetrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		calendar:    calendar,
		coordinator: coordinator,
		services:    services,
		bookings:    bookings,
		metrics:     m,
		logger:      logger,
	}
}

// GetAvailability lists the start times at which serviceID can be booked
// with staffID on date. Slots are sized by the service occupancy so every
// returned slot is reservable at the time of the query.
func (s *Service) GetAvailability(ctx context.Context, staffID string, date model.Date, serviceID string) ([]Slot, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveQuery("get_availability", time.Since(start).Seconds()) }()

	if strings.TrimSpace(staffID) == "" || date.IsZero() {
		return nil, fmt.Errorf("%w: staff id and date are required", model.ErrInvalidRequest)
	}
	svc, err := s.service(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	seq, err := s.calendar.AvailableSlots(ctx, staffID, date, svc.Occupancy())
	if err != nil {
		return nil, err
	}
	slots := []Slot{}
	for t := range seq {
		slots = append(slots, Slot{Start: t, End: t.Add(svc.DurationMinutes)})
	}
	return slots, nil
}

func (s *Service) CreateBooking(ctx context.Context, staffID string, date model.Date, start model.TimeOfDay, serviceID, clientID string) (model.Booking, error) {
	svc, err := s.service(ctx, serviceID)
	if err != nil {
		return model.Booking{}, err
	}
	return s.coordinator.Reserve(ctx, reservation.Request{
		StaffID:  strings.TrimSpace(staffID),
		Date:     date,
		Start:    start,
		Service:  svc,
		ClientID: strings.TrimSpace(clientID),
	})
}

// CancelBooking soft-cancels a booking; the freed interval becomes
// available immediately.
func (s *Service) CancelBooking(ctx context.Context, bookingID, reason string) (model.Booking, error) {
	if _, err := uuid.Parse(bookingID); err != nil {
		return model.Booking{}, fmt.Errorf("%w: booking id %q", model.ErrInvalidRequest, bookingID)
	}
	b, err := s.bookings.CancelBooking(ctx, bookingID, strings.TrimSpace(reason))
	if err != nil {
		return model.Booking{}, err
	}
	s.logger.Info("booking cancelled", "booking_id", b.ID, "staff_id", b.StaffID, "date", b.Date.String())
	return b, nil
}

func (s *Service) GetBooking(ctx context.Context, bookingID string) (model.Booking, error) {
	if _, err := uuid.Parse(bookingID); err != nil {
		return model.Booking{}, fmt.Errorf("%w: booking id %q", model.ErrInvalidRequest, bookingID)
	}
	return s.bookings.GetBooking(ctx, bookingID)
}

func (s *Service) ListBookings(ctx context.Context, staffID string, date model.Date) ([]model.Booking, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveQuery("list_bookings", time.Since(start).Seconds()) }()

	if strings.TrimSpace(staffID) == "" || date.IsZero() {
		return nil, fmt.Errorf("%w: staff id and date are required", model.ErrInvalidRequest)
	}
	return s.bookings.ListForStaffDay(ctx, staffID, date)
}

// UnavailableIntervals exposes the blocked intervals of a staff day.
func (s *Service) UnavailableIntervals(ctx context.Context, staffID string, date model.Date) ([]availability.Interval, error) {
	if strings.TrimSpace(staffID) == "" || date.IsZero() {
		return nil, fmt.Errorf("%w: staff id and date are required", model.ErrInvalidRequest)
	}
	return s.calendar.UnavailableIntervals(ctx, staffID, date)
}

func (s *Service) service(ctx context.Context, serviceID string) (model.Service, error) {
	serviceID = strings.TrimSpace(serviceID)
	if serviceID == "" {
		return model.Service{}, fmt.Errorf("%w: service id is required", model.ErrInvalidRequest)
	}
	svc, err := s.services.FetchService(ctx, serviceID)
	if err != nil {
		return model.Service{}, fmt.Errorf("fetch service %s: %w", serviceID, err)
	}
	if err := svc.Validate(); err != nil {
		return model.Service{}, err
	}
	return svc, nil
}
