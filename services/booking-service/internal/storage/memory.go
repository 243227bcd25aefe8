package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// MemoryStore keeps staff templates, services, bookings and idempotency
// records in process. PersistBooking enforces the same no-overlap guard as
// the bookings exclusion constraint.
type MemoryStore struct {
	mu          sync.RWMutex
	staff       map[string]model.StaffAvailability
	services    map[string]model.Service
	bookings    map[string]model.Booking
	idempotency map[string]IdempotencyRecord
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		staff:       map[string]model.StaffAvailability{},
		services:    map[string]model.Service{},
		bookings:    map[string]model.Booking{},
		idempotency: map[string]IdempotencyRecord{},
		now:         time.Now,
	}
}

func (s *MemoryStore) PutStaffAvailability(a model.StaffAvailability) error {
	if err := a.Validate(); err != nil {
		return err
	}
	a.WorkingDays = slices.Clone(a.WorkingDays)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staff[a.StaffID] = a
	return nil
}

func (s *MemoryStore) PutService(svc model.Service) error {
	if svc.ID == "" {
		return fmt.Errorf("%w: service id required", model.ErrInvalidRequest)
	}
	if err := svc.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[svc.ID] = svc
	return nil
}

func (s *MemoryStore) FetchStaffAvailability(_ context.Context, staffID string) (model.StaffAvailability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.staff[staffID]
	if !ok {
		return model.StaffAvailability{}, fmt.Errorf("staff %s: %w", staffID, model.ErrNotFound)
	}
	a.WorkingDays = slices.Clone(a.WorkingDays)
	return a, nil
}

func (s *MemoryStore) FetchService(_ context.Context, serviceID string) (model.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[serviceID]
	if !ok {
		return model.Service{}, fmt.Errorf("service %s: %w", serviceID, model.ErrNotFound)
	}
	return svc, nil
}

func (s *MemoryStore) FetchBookingsForStaffDay(_ context.Context, staffID string, date model.Date) ([]model.Booking, error) {
	return s.staffDay(staffID, date, true), nil
}

func (s *MemoryStore) ListForStaffDay(_ context.Context, staffID string, date model.Date) ([]model.Booking, error) {
	return s.staffDay(staffID, date, false), nil
}

func (s *MemoryStore) GetBooking(_ context.Context, bookingID string) (model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return model.Booking{}, fmt.Errorf("booking %s: %w", bookingID, model.ErrNotFound)
	}
	return b, nil
}

func (s *MemoryStore) PersistBooking(_ context.Context, b model.Booking) (model.Booking, error) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bookings[b.ID]; exists {
		return model.Booking{}, fmt.Errorf("booking %s already exists", b.ID)
	}
	if b.Status.Blocking() {
		for _, other := range s.bookings {
			if other.StaffID == b.StaffID && other.Date == b.Date && other.Status.Blocking() && other.Overlaps(b.Start, b.End) {
				return model.Booking{}, fmt.Errorf("insert booking %s-%s: %w", b.Start, b.End, model.ErrSlotConflict)
			}
		}
	}
	s.bookings[b.ID] = b
	return b, nil
}

func (s *MemoryStore) CancelBooking(_ context.Context, bookingID, reason string) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return model.Booking{}, fmt.Errorf("booking %s: %w", bookingID, model.ErrNotFound)
	}
	if b.Status == model.StatusCancelled {
		return b, nil
	}
	if !b.Status.Blocking() {
		return model.Booking{}, fmt.Errorf("%w: booking %s is %s", model.ErrInvalidRequest, bookingID, b.Status)
	}
	cancelledAt := s.now().UTC()
	b.Status = model.StatusCancelled
	b.CancelledAt = &cancelledAt
	b.CancelReason = reason
	s.bookings[bookingID] = b
	return b, nil
}

func (s *MemoryStore) LookupIdempotency(_ context.Context, key string) (IdempotencyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.idempotency[key]
	return rec, ok, nil
}

func (s *MemoryStore) SaveIdempotency(_ context.Context, rec IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.idempotency[rec.Key]; ok {
		return nil
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	rec.ResponsePayload = slices.Clone(rec.ResponsePayload)
	s.idempotency[rec.Key] = rec
	return nil
}

func (s *MemoryStore) staffDay(staffID string, date model.Date, blockingOnly bool) []model.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Booking
	for _, b := range s.bookings {
		if b.StaffID != staffID || b.Date != date {
			continue
		}
		if blockingOnly && !b.Status.Blocking() {
			continue
		}
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b model.Booking) int {
		if a.Start != b.Start {
			return int(a.Start) - int(b.Start)
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}
