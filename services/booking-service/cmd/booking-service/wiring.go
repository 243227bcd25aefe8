package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/libs/redislock"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/consumer"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/inbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/reservation"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/scheduling"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type bookingStore interface {
	reservation.BookingStore
	scheduling.BookingAdmin
}

// stores bundles the persistence ports. With no database every port is
// served by one MemoryStore.
type stores struct {
	staff       availability.StaffStore
	services    scheduling.ServiceStore
	bookings    bookingStore
	idempotency handlers.IdempotencyStore
	inbox       consumer.Inbox
}

func postgresStores(pool *db.Pool) stores {
	staffRepo := storage.NewStaffRepository(pool)
	return stores{
		staff:       staffRepo,
		services:    staffRepo,
		bookings:    storage.NewBookingRepository(pool, outbox.NewRepository()),
		idempotency: storage.NewIdempotencyRepository(pool),
		inbox:       inbox.NewRepository(pool),
	}
}

func memoryStores(mem *storage.MemoryStore) stores {
	return stores{
		staff:       mem,
		services:    mem,
		bookings:    mem,
		idempotency: mem,
		inbox:       inbox.NewMemory(),
	}
}

// seedDemo loads one staff member and two services so the in-memory mode is
// usable without a database.
func seedDemo(mem *storage.MemoryStore) error {
	if err := mem.PutStaffAvailability(model.StaffAvailability{
		StaffID:     "demo-staff",
		WorkingDays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		Start:       model.NewTimeOfDay(9, 0),
		End:         model.NewTimeOfDay(17, 0),
		BreakStart:  model.NewTimeOfDay(12, 0),
		BreakEnd:    model.NewTimeOfDay(13, 0),
		Timezone:    "UTC",
	}); err != nil {
		return err
	}
	for _, svc := range []model.Service{
		{ID: "demo-haircut", Name: "Haircut", DurationMinutes: 30},
		{ID: "demo-color", Name: "Color", DurationMinutes: 45, BufferMinutes: 15},
	} {
		if err := mem.PutService(svc); err != nil {
			return err
		}
	}
	return nil
}

// newLocker picks the reservation scope: Redis leases when a client is
// given, otherwise the in-process keyed mutex.
func newLocker(rdb redis.Cmdable, ttl time.Duration, logger *slog.Logger) reservation.Locker {
	if rdb == nil {
		return reservation.NewKeyedMutex()
	}
	return redislock.New(rdb, logger, redislock.Config{Prefix: "salonbook:lock", TTL: ttl})
}

func setupMetrics() (http.Handler, *metrics.SchedulingMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewSchedulingMetrics(reg)
}
