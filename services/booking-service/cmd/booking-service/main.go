package main

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/slotsync/slotsync/libs/config"
	"github.com/slotsync/slotsync/libs/db"
	"github.com/slotsync/slotsync/libs/httpx"
	"github.com/slotsync/slotsync/libs/kafkax"
	otelx "github.com/slotsync/slotsync/libs/otel"
	"github.com/slotsync/slotsync/libs/runtime"
	"github.com/slotsync/slotsync/services/booking-service/internal/consumer"
	"github.com/slotsync/slotsync/services/booking-service/internal/entitlements"
	"github.com/slotsync/slotsync/services/booking-service/internal/handlers"
	"github.com/slotsync/slotsync/services/booking-service/internal/inbox"
	"github.com/slotsync/slotsync/services/booking-service/internal/lifecycle"
	"github.com/slotsync/slotsync/services/booking-service/internal/outbox"
	"github.com/slotsync/slotsync/services/booking-service/internal/policy"
	"github.com/slotsync/slotsync/services/booking-service/internal/reservation"
	"github.com/slotsync/slotsync/services/booking-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

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

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL, db.Options{})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	repo := storage.NewBookingRepository(pool)
	rulesRepo := storage.NewRulesRepository(pool)
	policyRepo := storage.NewPolicyRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	store := storage.NewStore(pool, repo, outboxRepo)

	policyProvider, err := policy.NewProvider(logger, policyRepo, config.String("BUSINESS_GRPC_ADDR", ""))
	if err != nil {
		logger.Error("policy provider init failed, using local projection", "err", err)
		policyProvider = policyRepo
	}
	entitlementChecker := entitlements.NewChecker(repo, logger)

	coord := reservation.NewCoordinator(store, rulesRepo, policyProvider, entitlementChecker, logger)
	manager := lifecycle.NewManager(store, policyProvider, logger)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	inboxRepo := inbox.NewRepository(pool)
	startConsumer := func(topic string) {
		if topic == "" {
			return
		}
		billingConsumer := consumer.New(logger, inboxRepo, pool, repo, consumer.Config{
			Brokers: config.String("KAFKA_BROKERS", ""),
			GroupID: config.String("KAFKA_GROUP_ID", "booking-service"),
			Topic:   topic,
		})
		go billingConsumer.Run(ctx)
	}
	startConsumer(config.String("KAFKA_CONSUME_TOPIC", "billing.subscription.activated.v1"))
	startConsumer(config.String("KAFKA_CONSUME_TOPIC_2", "billing.subscription.canceled.v1"))

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	setupEntitlementsRoutes(ctx, mux, logger)
	bookingHandler := handlers.NewBookingHandler(coord, manager, repo, logger)

	apiMiddleware := []httpx.Middleware{
		handlers.RequireAuth(jwtSecret, logger),
		httpx.WithBodyLimit(1 << 20),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 15*time.Second)),
	}
	if redisAddr := config.String("REDIS_ADDR", ""); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		defer rdb.Close()
		limiter := httpx.NewRedisRateLimiter(rdb,
			config.Int("RATE_LIMIT", 60),
			config.Duration("RATE_LIMIT_WINDOW", time.Minute),
			"booking")
		apiMiddleware = append(apiMiddleware, limiter.Middleware(logger, true))
	} else {
		// Single-instance fallback; replicas need REDIS_ADDR for a shared window.
		limiter := httpx.NewRateLimiter(
			config.Int("RATE_LIMIT", 60),
			config.Duration("RATE_LIMIT_WINDOW", time.Minute))
		apiMiddleware = append(apiMiddleware, limiter.Middleware())
	}

	api := http.NewServeMux()
	bookingHandler.Register(api)
	mux.Handle("/api/", httpx.Chain(api, apiMiddleware...))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
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
