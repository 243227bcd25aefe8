package storage

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// CachedStaffStore caches working-hours templates for a bounded time.
// Templates change rarely and are invalidated by staff update events; errors
// are never cached.
type CachedStaffStore struct {
	next    availability.StaffStore
	ttl     time.Duration
	now     func() time.Time
	metrics *metrics.SchedulingMetrics

	mu      sync.Mutex
	entries map[string]cachedStaff
	// version is bumped by Invalidate so a fetch racing with an
	// invalidation does not store the stale template.
	version uint64
}

type cachedStaff struct {
	avail   model.StaffAvailability
	expires time.Time
}

func NewCachedStaffStore(next availability.StaffStore, ttl time.Duration, m *metrics.SchedulingMetrics) *CachedStaffStore {
	return &CachedStaffStore{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		metrics: m,
		entries: map[string]cachedStaff{},
	}
}

func (c *CachedStaffStore) FetchStaffAvailability(ctx context.Context, staffID string) (model.StaffAvailability, error) {
	if c.ttl <= 0 {
		return c.next.FetchStaffAvailability(ctx, staffID)
	}

	now := c.now()
	c.mu.Lock()
	e, ok := c.entries[staffID]
	version := c.version
	c.mu.Unlock()
	if ok && now.Before(e.expires) {
		c.metrics.ObserveCache(true)
		return clone(e.avail), nil
	}
	c.metrics.ObserveCache(false)

	avail, err := c.next.FetchStaffAvailability(ctx, staffID)
	if err != nil {
		return model.StaffAvailability{}, err
	}
	c.mu.Lock()
	if c.version == version {
		c.entries[staffID] = cachedStaff{avail: clone(avail), expires: now.Add(c.ttl)}
	}
	c.mu.Unlock()
	return avail, nil
}

func (c *CachedStaffStore) Invalidate(staffID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, staffID)
	c.version++
}

func clone(a model.StaffAvailability) model.StaffAvailability {
	a.WorkingDays = slices.Clone(a.WorkingDays)
	return a
}
