package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/auth"
	"github.com/md-rashed-zaman/salonbook/libs/config"
	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/salonbook/libs/otel"
	"github.com/md-rashed-zaman/salonbook/libs/redislock"
	"github.com/md-rashed-zaman/salonbook/libs/runtime"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/consumer"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/reservation"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/scheduling"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	logger := runtime.NewLogger(service, config.String("LOG_LEVEL", "info"))

	port, err := config.Port("PORT", "8083")
	if err != nil {
		logger.Error("config error", "err", err)
		os.Exit(1)
	}
	slotStep, err := config.Int("SLOT_STEP_MINUTES", availability.DefaultStep)
	if err != nil {
		logger.Error("config error", "err", err)
		os.Exit(1)
	}
	lockTimeout, err := config.Duration("LOCK_TIMEOUT", reservation.DefaultLockTimeout)
	if err != nil {
		logger.Error("config error", "err", err)
		os.Exit(1)
	}
	lockTTL, err := config.Duration("LOCK_TTL", 10*time.Second)
	if err != nil {
		logger.Error("config error", "err", err)
		os.Exit(1)
	}
	staffCacheTTL, err := config.Duration("STAFF_CACHE_TTL", 30*time.Second)
	if err != nil {
		logger.Error("config error", "err", err)
		os.Exit(1)
	}
	ratePerMinute, err := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if err != nil {
		logger.Error("config error", "err", err)
		os.Exit(1)
	}
	seed, err := config.Bool("SEED_DEMO_DATA", false)
	if err != nil {
		logger.Error("config error", "err", err)
		os.Exit(1)
	}
	brokers := config.String("KAFKA_BROKERS", "")

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	metricsHandler, schedMetrics := setupMetrics()
	var checks []runtime.ReadyCheck

	var st stores
	var pool *db.Pool
	if dbURL := config.String("DATABASE_URL", ""); dbURL != "" {
		pool, err = db.Open(ctx, dbURL)
		if err != nil {
			logger.Error("db connection failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		st = postgresStores(pool)
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
	} else {
		logger.Warn("DATABASE_URL not set; bookings are kept in memory")
		mem := storage.NewMemoryStore()
		if seed {
			if err := seedDemo(mem); err != nil {
				logger.Error("seed demo data", "err", err)
				os.Exit(1)
			}
		}
		st = memoryStores(mem)
	}

	var rdb *redis.Client
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
		})
		defer func() { _ = rdb.Close() }()
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: redislock.ReadyCheck(rdb)})
	}
	locker := newLocker(nil, lockTTL, logger)
	if rdb != nil {
		locker = newLocker(rdb, lockTTL, logger)
	}

	staffCache := storage.NewCachedStaffStore(st.staff, staffCacheTTL, schedMetrics)
	calendar := availability.NewCalendar(staffCache, st.bookings, availability.WithStep(slotStep))
	coordinator := reservation.NewCoordinator(calendar, st.bookings, locker, logger, schedMetrics,
		reservation.Config{LockTimeout: lockTimeout})
	scheduler := scheduling.NewService(calendar, coordinator, st.services, st.bookings, schedMetrics, logger)

	if brokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
		if pool != nil {
			publisher := outbox.NewPublisher(pool, outbox.NewRepository(), logger, outbox.PublisherConfig{
				Brokers:   brokers,
				PollEvery: 2 * time.Second,
				BatchSize: 50,
			})
			go publisher.Run(ctx)
		}
		staffConsumer := consumer.New(logger, st.inbox, consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "booking-service"),
			Topic:   config.String("KAFKA_STAFF_TOPIC", consumer.TopicStaffAvailabilityUpdated),
		}, consumer.StaffAvailabilityHandler(staffCache, logger))
		go staffConsumer.Run(ctx)
	}

	bookingHandler := handlers.NewBookingHandler(scheduler, st.idempotency, logger)
	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/metrics", metricsHandler)
	var staffAuth httpx.Middleware
	if secret := config.String("JWT_SECRET", ""); secret != "" {
		staffAuth = auth.RequireBearer(secret, "owner", "staff", "admin")
	} else {
		logger.Warn("JWT_SECRET not set; staff routes are unauthenticated")
	}
	bookingHandler.Register(mux, staffAuth)

	var rateLimit httpx.Middleware
	if rdb != nil {
		rateLimit = httpx.NewRedisRateLimiter(rdb, ratePerMinute, time.Minute, "salonbook:rl").Middleware(logger, true)
	} else {
		rateLimit = httpx.NewRateLimiter(ratePerMinute, time.Minute).Middleware()
	}
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS"),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "Idempotency-Key", httpx.RequestIDHeader},
			ExposedHeaders: []string{"Retry-After", "Idempotent-Replayed", httpx.RequestIDHeader},
			MaxAge:         10 * time.Minute,
		}),
		rateLimit,
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(15*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
