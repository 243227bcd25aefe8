package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
)

// Pool is the subset of *db.Pool the repositories use.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type BookingRepository struct {
	pool   Pool
	outbox *outbox.Repository
}

func NewBookingRepository(pool Pool, outboxRepo *outbox.Repository) *BookingRepository {
	if outboxRepo == nil {
		outboxRepo = outbox.NewRepository()
	}
	return &BookingRepository{pool: pool, outbox: outboxRepo}
}

const bookingColumns = `id::text, staff_id, service_id, client_id, to_char(day, 'YYYY-MM-DD'),
			start_minute, end_minute, status, cancelled_at, COALESCE(cancellation_reason, ''), created_at`

// FetchBookingsForStaffDay returns the PENDING and CONFIRMED bookings of a staff day.
func (r *BookingRepository) FetchBookingsForStaffDay(ctx context.Context, staffID string, date model.Date) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE staff_id = $1
			AND day = $2::date
			AND status IN ('pending', 'confirmed')
		ORDER BY start_minute ASC
	`, staffID, date.String())
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

// ListForStaffDay returns every booking of a staff day regardless of status.
func (r *BookingRepository) ListForStaffDay(ctx context.Context, staffID string, date model.Date) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE staff_id = $1 AND day = $2::date
		ORDER BY start_minute ASC, created_at ASC
	`, staffID, date.String())
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (r *BookingRepository) GetBooking(ctx context.Context, bookingID string) (model.Booking, error) {
	b, err := scanBooking(r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, bookingID))
	if err != nil {
		if IsNotFound(err) {
			return model.Booking{}, fmt.Errorf("booking %s: %w", bookingID, model.ErrNotFound)
		}
		return model.Booking{}, err
	}
	return b, nil
}

// PersistBooking inserts b together with its reserved event. An overlapping
// blocking booking rejected by the exclusion constraint is reported as
// model.ErrSlotConflict.
func (r *BookingRepository) PersistBooking(ctx context.Context, b model.Booking) (model.Booking, error) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	evt, err := outbox.BookingReserved(b)
	if err != nil {
		return model.Booking{}, fmt.Errorf("build reserved event: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO bookings
			(id, staff_id, service_id, client_id, day, start_minute, end_minute, status, created_at)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9)
	`, b.ID, b.StaffID, b.ServiceID, b.ClientID, b.Date.String(), int(b.Start), int(b.End), dbStatus(b.Status), b.CreatedAt)
	if err != nil {
		if IsConflict(err) {
			return model.Booking{}, fmt.Errorf("insert booking %s-%s: %w", b.Start, b.End, model.ErrSlotConflict)
		}
		return model.Booking{}, err
	}
	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return model.Booking{}, fmt.Errorf("write outbox event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

// CancelBooking soft-cancels a blocking booking and frees its interval.
// Cancelling an already cancelled booking returns it unchanged.
func (r *BookingRepository) CancelBooking(ctx context.Context, bookingID, reason string) (model.Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b, err := scanBooking(tx.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
		FOR UPDATE
	`, bookingID))
	if err != nil {
		if IsNotFound(err) {
			return model.Booking{}, fmt.Errorf("booking %s: %w", bookingID, model.ErrNotFound)
		}
		return model.Booking{}, err
	}
	if b.Status == model.StatusCancelled {
		return b, nil
	}
	if !b.Status.Blocking() {
		return model.Booking{}, fmt.Errorf("%w: booking %s is %s", model.ErrInvalidRequest, bookingID, b.Status)
	}

	var cancelledAt time.Time
	err = tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
			cancelled_at = now(),
			cancellation_reason = $2
		WHERE id = $1
		RETURNING cancelled_at
	`, bookingID, reason).Scan(&cancelledAt)
	if err != nil {
		return model.Booking{}, err
	}
	b.Status = model.StatusCancelled
	b.CancelledAt = &cancelledAt
	b.CancelReason = reason

	evt, err := outbox.BookingCancelled(b)
	if err != nil {
		return model.Booking{}, fmt.Errorf("build cancelled event: %w", err)
	}
	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return model.Booking{}, fmt.Errorf("write outbox event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBooking(row scanner) (model.Booking, error) {
	var (
		b           model.Booking
		day         string
		start, end  int
		status      string
		cancelledAt *time.Time
	)
	if err := row.Scan(
		&b.ID,
		&b.StaffID,
		&b.ServiceID,
		&b.ClientID,
		&day,
		&start,
		&end,
		&status,
		&cancelledAt,
		&b.CancelReason,
		&b.CreatedAt,
	); err != nil {
		return model.Booking{}, err
	}
	date, err := model.ParseDate(day)
	if err != nil {
		return model.Booking{}, fmt.Errorf("booking %s: %w", b.ID, err)
	}
	st, ok := model.ParseStatus(status)
	if !ok {
		return model.Booking{}, fmt.Errorf("booking %s: unknown status %q", b.ID, status)
	}
	b.Date = date
	b.Start = model.TimeOfDay(start)
	b.End = model.TimeOfDay(end)
	b.Status = st
	b.CancelledAt = cancelledAt
	return b, nil
}

func collectBookings(rows pgx.Rows) ([]model.Booking, error) {
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func dbStatus(s model.Status) string {
	return strings.ToLower(string(s))
}

// IsConflict reports an exclusion constraint violation.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

// IsUniqueViolation reports a duplicate key.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
