package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("salonbook.reservation")

// BookingStore is the booking repository seen by the coordinator.
// PersistBooking must insert atomically and report an overlapping blocking
// booking as model.ErrSlotConflict.
type BookingStore interface {
	availability.BookingReader
	PersistBooking(ctx context.Context, b model.Booking) (model.Booking, error)
}

type Request struct {
	StaffID  string
	Date     model.Date
	Start    model.TimeOfDay
	Service  model.Service
	ClientID string
}

type Config struct {
	// LockTimeout bounds the wait for the staff-day scope.
	LockTimeout time.Duration
}

const DefaultLockTimeout = 2 * time.Second

// Coordinator is the only component that creates bookings.
type Coordinator struct {
	calendar    *availability.Calendar
	bookings    BookingStore
	locker      Locker
	logger      *slog.Logger
	metrics     *metrics.SchedulingMetrics
	lockTimeout time.Duration
}

func NewCoordinator(calendar *availability.Calendar, bookings BookingStore, locker Locker, logger *slog.Logger, m *metrics.SchedulingMetrics, cfg Config) *Coordinator {
	if calendar == nil || bookings == nil {
		panic("reservation: calendar and booking store required")
	}
	if locker == nil {
		locker = NewKeyedMutex()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultLockTimeout
	}
	return &Coordinator{
		calendar:    calendar,
		bookings:    bookings,
		locker:      locker,
		logger:      logger,
		metrics:     m,
		lockTimeout: cfg.LockTimeout,
	}
}

// Reserve creates a PENDING booking for req if its interval is still free.
// The free check and the insert run inside the (staff, date) scope, so of any
// set of concurrent overlapping requests at most one succeeds. Conflicts are
// never retried.
func (c *Coordinator) Reserve(ctx context.Context, req Request) (model.Booking, error) {
	ctx, span := tracer.Start(ctx, "reservation.reserve")
	defer span.End()
	span.SetAttributes(
		attribute.String("salon.staff_id", req.StaffID),
		attribute.String("salon.date", req.Date.String()),
		attribute.String("salon.start", req.Start.String()),
		attribute.String("salon.service_id", req.Service.ID),
	)

	b, err := c.reserve(ctx, req)
	outcome := outcomeOf(err)
	c.metrics.ObserveReservation(outcome)
	span.SetAttributes(attribute.String("salon.outcome", outcome))

	if err != nil {
		if outcome == metrics.OutcomeError {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.logger.Error("reservation failed", "err", err, "staff_id", req.StaffID, "date", req.Date.String())
		} else {
			c.logger.Info("reservation rejected", "outcome", outcome, "err", err,
				"staff_id", req.StaffID, "date", req.Date.String(), "start", req.Start.String())
		}
		return model.Booking{}, err
	}
	c.logger.Info("reservation created", "booking_id", b.ID, "staff_id", b.StaffID,
		"date", b.Date.String(), "start", b.Start.String(), "end", b.End.String())
	return b, nil
}

func (c *Coordinator) reserve(ctx context.Context, req Request) (model.Booking, error) {
	if req.StaffID == "" || req.ClientID == "" {
		return model.Booking{}, fmt.Errorf("%w: staff id and client id are required", model.ErrInvalidRequest)
	}
	if req.Date.IsZero() {
		return model.Booking{}, fmt.Errorf("%w: date is required", model.ErrInvalidRequest)
	}
	if err := req.Service.Validate(); err != nil {
		return model.Booking{}, err
	}
	if !req.Start.Valid() {
		return model.Booking{}, fmt.Errorf("%w: start %d outside of day", model.ErrInvalidRequest, req.Start)
	}

	avail, err := c.calendar.Availability(ctx, req.StaffID)
	if err != nil {
		return model.Booking{}, err
	}
	now := c.calendar.Now().In(avail.Location())
	candidate := availability.Interval{Start: req.Start, End: req.Start.Add(req.Service.Occupancy())}
	if err := validateAgainstTemplate(avail, req.Date, candidate, now); err != nil {
		return model.Booking{}, err
	}

	lockCtx, cancel := context.WithTimeout(ctx, c.lockTimeout)
	waitStart := time.Now()
	release, err := c.locker.Lock(lockCtx, ScopeKey(req.StaffID, req.Date))
	cancel()
	c.metrics.ObserveScopeWait(time.Since(waitStart).Seconds())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return model.Booking{}, fmt.Errorf("%w: staff %s on %s after %s", model.ErrTimeout, req.StaffID, req.Date, c.lockTimeout)
		}
		return model.Booking{}, fmt.Errorf("acquire reservation scope: %w", err)
	}
	defer release()

	// Bookings may have changed since the caller queried availability.
	existing, err := c.bookings.FetchBookingsForStaffDay(ctx, req.StaffID, req.Date)
	if err != nil {
		return model.Booking{}, fmt.Errorf("fetch bookings for staff %s on %s: %w", req.StaffID, req.Date, err)
	}
	if !availability.Fits(availability.BlockedIntervals(avail, req.Date, existing), candidate) {
		return model.Booking{}, fmt.Errorf("%w: staff %s on %s %s-%s", model.ErrSlotConflict, req.StaffID, req.Date, candidate.Start, candidate.End)
	}

	b := model.Booking{
		ID:        uuid.NewString(),
		StaffID:   req.StaffID,
		ServiceID: req.Service.ID,
		ClientID:  req.ClientID,
		Date:      req.Date,
		Start:     candidate.Start,
		End:       candidate.End,
		Status:    model.StatusPending,
		CreatedAt: now.UTC(),
	}
	saved, err := c.bookings.PersistBooking(ctx, b)
	if err != nil {
		if errors.Is(err, model.ErrSlotConflict) {
			return model.Booking{}, err
		}
		return model.Booking{}, fmt.Errorf("persist booking: %w", err)
	}
	return saved, nil
}

// validateAgainstTemplate rejects requests that could never succeed,
// independently of other bookings.
func validateAgainstTemplate(avail model.StaffAvailability, date model.Date, candidate availability.Interval, now time.Time) error {
	openFrom, open := availability.OpenFrom(date, now)
	if !open {
		return fmt.Errorf("%w: %s is in the past", model.ErrInvalidRequest, date)
	}
	if candidate.Start < openFrom {
		return fmt.Errorf("%w: start %s on %s has already passed", model.ErrInvalidRequest, candidate.Start, date)
	}
	if !avail.WorksOn(date.Weekday()) {
		return fmt.Errorf("%w: staff %s does not work on %s", model.ErrInvalidRequest, avail.StaffID, date.Weekday())
	}
	hours := availability.Interval{Start: avail.Start, End: avail.End}
	if !hours.Contains(candidate) {
		return fmt.Errorf("%w: %s-%s outside working hours %s-%s",
			model.ErrInvalidRequest, candidate.Start, candidate.End, avail.Start, avail.End)
	}
	if avail.HasBreak() && candidate.Overlaps(availability.Interval{Start: avail.BreakStart, End: avail.BreakEnd}) {
		return fmt.Errorf("%w: %s-%s crosses the break %s-%s",
			model.ErrInvalidRequest, candidate.Start, candidate.End, avail.BreakStart, avail.BreakEnd)
	}
	return nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeReserved
	case errors.Is(err, model.ErrSlotConflict):
		return metrics.OutcomeConflict
	case errors.Is(err, model.ErrInvalidRequest):
		return metrics.OutcomeInvalid
	case errors.Is(err, model.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, model.ErrTimeout):
		return metrics.OutcomeTimeout
	default:
		return metrics.OutcomeError
	}
}
