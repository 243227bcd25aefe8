package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// StaffRepository reads working-hours templates and service definitions
// maintained by the business side.
type StaffRepository struct {
	db rowQuerier
}

func NewStaffRepository(db rowQuerier) *StaffRepository {
	return &StaffRepository{db: db}
}

func (r *StaffRepository) FetchStaffAvailability(ctx context.Context, staffID string) (model.StaffAvailability, error) {
	var (
		a                    model.StaffAvailability
		days                 []int32
		start, end           int
		breakStart, breakEnd int
	)
	err := r.db.QueryRow(ctx, `
		SELECT staff_id, working_days, start_minute, end_minute,
			COALESCE(break_start_minute, -1), COALESCE(break_end_minute, -1), timezone
		FROM staff_availability
		WHERE staff_id = $1
	`, staffID).Scan(&a.StaffID, &days, &start, &end, &breakStart, &breakEnd, &a.Timezone)
	if err != nil {
		if IsNotFound(err) {
			return model.StaffAvailability{}, fmt.Errorf("staff %s: %w", staffID, model.ErrNotFound)
		}
		return model.StaffAvailability{}, err
	}

	a.WorkingDays = make([]time.Weekday, 0, len(days))
	for _, d := range days {
		if d < 0 || d > 6 {
			return model.StaffAvailability{}, fmt.Errorf("staff %s: invalid weekday %d", staffID, d)
		}
		a.WorkingDays = append(a.WorkingDays, time.Weekday(d))
	}
	a.Start = model.TimeOfDay(start)
	a.End = model.TimeOfDay(end)
	if breakStart >= 0 && breakEnd >= 0 {
		a.BreakStart = model.TimeOfDay(breakStart)
		a.BreakEnd = model.TimeOfDay(breakEnd)
	}
	if err := a.Validate(); err != nil {
		return model.StaffAvailability{}, fmt.Errorf("staff %s template: %w", staffID, err)
	}
	return a, nil
}

func (r *StaffRepository) FetchService(ctx context.Context, serviceID string) (model.Service, error) {
	var s model.Service
	err := r.db.QueryRow(ctx, `
		SELECT id, name, duration_minutes, buffer_minutes
		FROM services
		WHERE id = $1
	`, serviceID).Scan(&s.ID, &s.Name, &s.DurationMinutes, &s.BufferMinutes)
	if err != nil {
		if IsNotFound(err) {
			return model.Service{}, fmt.Errorf("service %s: %w", serviceID, model.ErrNotFound)
		}
		return model.Service{}, err
	}
	return s, nil
}
