package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/pashagolub/pgxmock/v4"
)

var (
	monday  = model.Date{Year: 2026, Month: time.October, Day: 19}
	created = time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)

	bookingCols = []string{"id", "staff_id", "service_id", "client_id", "day", "start_minute", "end_minute", "status", "cancelled_at", "cancellation_reason", "created_at"}
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *BookingRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock, NewBookingRepository(mock, outbox.NewRepository())
}

func pendingBooking() model.Booking {
	return model.Booking{
		ID:        "0b6f2a8e-5c1d-4f53-9a57-3c2a1e0f9b11",
		StaffID:   "staff-1",
		ServiceID: "svc-cut",
		ClientID:  "client-1",
		Date:      monday,
		Start:     model.NewTimeOfDay(10, 0),
		End:       model.NewTimeOfDay(10, 30),
		Status:    model.StatusPending,
		CreatedAt: created,
	}
}

func TestFetchBookingsForStaffDay(t *testing.T) {
	mock, repo := newMockRepo(t)
	mock.ExpectQuery("FROM bookings").
		WithArgs("staff-1", "2026-10-19").
		WillReturnRows(pgxmock.NewRows(bookingCols).
			AddRow("b-1", "staff-1", "svc-cut", "client-1", "2026-10-19", 540, 570, "confirmed", (*time.Time)(nil), "", created).
			AddRow("b-2", "staff-1", "svc-cut", "client-2", "2026-10-19", 600, 630, "pending", (*time.Time)(nil), "", created))

	got, err := repo.FetchBookingsForStaffDay(context.Background(), "staff-1", monday)
	if err != nil {
		t.Fatalf("FetchBookingsForStaffDay: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 bookings, got %d", len(got))
	}
	if got[0].Status != model.StatusConfirmed || got[0].Start != model.NewTimeOfDay(9, 0) || got[0].Date != monday {
		t.Fatalf("unexpected first booking: %+v", got[0])
	}
	if got[1].Status != model.StatusPending || got[1].End != model.NewTimeOfDay(10, 30) {
		t.Fatalf("unexpected second booking: %+v", got[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPersistBookingWritesOutboxInSameTx(t *testing.T) {
	mock, repo := newMockRepo(t)
	b := pendingBooking()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bookings").
		WithArgs(b.ID, "staff-1", "svc-cut", "client-1", "2026-10-19", 600, 630, "pending", created).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(outbox.AggregateBooking, b.ID, outbox.EventBookingReserved, pgxmock.AnyArg(), "", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	got, err := repo.PersistBooking(context.Background(), b)
	if err != nil {
		t.Fatalf("PersistBooking: %v", err)
	}
	if got.ID != b.ID {
		t.Fatalf("unexpected booking: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPersistBookingMapsExclusionViolation(t *testing.T) {
	mock, repo := newMockRepo(t)
	b := pendingBooking()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bookings").
		WithArgs(b.ID, "staff-1", "svc-cut", "client-1", "2026-10-19", 600, 630, "pending", created).
		WillReturnError(&pgconn.PgError{Code: "23P01", ConstraintName: "bookings_no_overlap"})
	mock.ExpectRollback()

	_, err := repo.PersistBooking(context.Background(), b)
	if !errors.Is(err, model.ErrSlotConflict) {
		t.Fatalf("expected slot conflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCancelBooking(t *testing.T) {
	mock, repo := newMockRepo(t)
	b := pendingBooking()
	cancelledAt := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(b.ID).
		WillReturnRows(pgxmock.NewRows(bookingCols).
			AddRow(b.ID, "staff-1", "svc-cut", "client-1", "2026-10-19", 600, 630, "pending", (*time.Time)(nil), "", created))
	mock.ExpectQuery("UPDATE bookings").
		WithArgs(b.ID, "client request").
		WillReturnRows(pgxmock.NewRows([]string{"cancelled_at"}).AddRow(cancelledAt))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(outbox.AggregateBooking, b.ID, outbox.EventBookingCancelled, pgxmock.AnyArg(), "", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	got, err := repo.CancelBooking(context.Background(), b.ID, "client request")
	if err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}
	if got.Status != model.StatusCancelled || got.CancelledAt == nil || !got.CancelledAt.Equal(cancelledAt) {
		t.Fatalf("unexpected cancelled booking: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCancelBookingAlreadyCancelledIsNoop(t *testing.T) {
	mock, repo := newMockRepo(t)
	b := pendingBooking()
	cancelledAt := created.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(b.ID).
		WillReturnRows(pgxmock.NewRows(bookingCols).
			AddRow(b.ID, "staff-1", "svc-cut", "client-1", "2026-10-19", 600, 630, "cancelled", &cancelledAt, "changed plans", created))
	mock.ExpectRollback()

	got, err := repo.CancelBooking(context.Background(), b.ID, "again")
	if err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}
	if got.CancelReason != "changed plans" {
		t.Fatalf("expected original cancellation to be kept, got %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCancelBookingErrors(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs("missing").WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()
	if _, err := repo.CancelBooking(context.Background(), "missing", ""); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs("b-done").
		WillReturnRows(pgxmock.NewRows(bookingCols).
			AddRow("b-done", "staff-1", "svc-cut", "client-1", "2026-10-19", 600, 630, "completed", (*time.Time)(nil), "", created))
	mock.ExpectRollback()
	if _, err := repo.CancelBooking(context.Background(), "b-done", ""); !errors.Is(err, model.ErrInvalidRequest) {
		t.Fatalf("expected invalid request for completed booking, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetBookingNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)
	mock.ExpectQuery("FROM bookings").WithArgs("nope").WillReturnError(pgx.ErrNoRows)
	if _, err := repo.GetBooking(context.Background(), "nope"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestIdempotencyRepository(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := NewIdempotencyRepository(mock)

	mock.ExpectQuery("FROM booking_idempotency_keys").WithArgs("key-1").WillReturnError(pgx.ErrNoRows)
	if _, found, err := repo.LookupIdempotency(context.Background(), "key-1"); err != nil || found {
		t.Fatalf("expected miss, got found=%v err=%v", found, err)
	}

	mock.ExpectExec("INSERT INTO booking_idempotency_keys").
		WithArgs("key-1", "b-1", 201, `{"booking_id":"b-1"}`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	if err := repo.SaveIdempotency(context.Background(), IdempotencyRecord{Key: "key-1", BookingID: "b-1", StatusCode: 201, ResponsePayload: []byte(`{"booking_id":"b-1"}`)}); err != nil {
		t.Fatalf("SaveIdempotency: %v", err)
	}

	mock.ExpectQuery("FROM booking_idempotency_keys").
		WithArgs("key-1").
		WillReturnRows(pgxmock.NewRows([]string{"idempotency_key", "booking_id", "status_code", "response_payload", "created_at"}).
			AddRow("key-1", "b-1", 201, `{"booking_id":"b-1"}`, created))
	rec, found, err := repo.LookupIdempotency(context.Background(), "key-1")
	if err != nil || !found || rec.BookingID != "b-1" || string(rec.ResponsePayload) != `{"booking_id":"b-1"}` {
		t.Fatalf("unexpected lookup: %+v found=%v err=%v", rec, found, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
