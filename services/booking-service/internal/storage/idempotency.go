package storage

import (
	"context"
	"time"
)

// IdempotencyRecord is the stored outcome of a booking request sent with an
// Idempotency-Key header.
type IdempotencyRecord struct {
	Key             string
	BookingID       string
	StatusCode      int
	ResponsePayload []byte
	CreatedAt       time.Time
}

type IdempotencyRepository struct {
	pool Pool
}

func NewIdempotencyRepository(pool Pool) *IdempotencyRepository {
	return &IdempotencyRepository{pool: pool}
}

func (r *IdempotencyRepository) LookupIdempotency(ctx context.Context, key string) (IdempotencyRecord, bool, error) {
	var (
		rec          IdempotencyRecord
		responseText string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT idempotency_key, booking_id::text, status_code, response_payload::text, created_at
		FROM booking_idempotency_keys
		WHERE idempotency_key = $1
	`, key).Scan(&rec.Key, &rec.BookingID, &rec.StatusCode, &responseText, &rec.CreatedAt)
	if err != nil {
		if IsNotFound(err) {
			return IdempotencyRecord{}, false, nil
		}
		return IdempotencyRecord{}, false, err
	}
	rec.ResponsePayload = []byte(responseText)
	return rec, true, nil
}

// SaveIdempotency keeps the first outcome stored for a key.
func (r *IdempotencyRepository) SaveIdempotency(ctx context.Context, rec IdempotencyRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (idempotency_key, booking_id, status_code, response_payload)
		VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, rec.Key, rec.BookingID, rec.StatusCode, string(rec.ResponsePayload))
	return err
}
