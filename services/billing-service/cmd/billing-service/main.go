package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/slotsync/slotsync/libs/config"
	"github.com/slotsync/slotsync/libs/db"
	"github.com/slotsync/slotsync/libs/httpx"
	"github.com/slotsync/slotsync/libs/kafkax"
	otelx "github.com/slotsync/slotsync/libs/otel"
	"github.com/slotsync/slotsync/libs/runtime"
	"github.com/slotsync/slotsync/services/billing-service/internal/handlers"
	"github.com/slotsync/slotsync/services/billing-service/internal/outbox"
	"github.com/slotsync/slotsync/services/billing-service/internal/reconcile"
	"github.com/slotsync/slotsync/services/billing-service/internal/storage"
	"github.com/slotsync/slotsync/services/billing-service/internal/subscriptions"
)

func main() {
	service := config.String("SERVICE_NAME", "billing-service")
	port, err := config.Port("PORT", "8084")
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

	repo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	subSvc := subscriptions.New(repo, outboxRepo)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	h := handlers.New(repo, outboxRepo, logger, handlers.Config{
		StripeWebhookSecret:           config.String("STRIPE_WEBHOOK_SECRET", ""),
		StripeWebhookToleranceSeconds: config.Int("STRIPE_WEBHOOK_TOLERANCE_SECONDS", 300),
		StripeSecretKey:               config.String("STRIPE_SECRET_KEY", ""),
		StripePriceStarter:            config.String("STRIPE_PRICE_STARTER", ""),
		StripePriceProfessional:       config.String("STRIPE_PRICE_PROFESSIONAL", ""),
		StripePriceBusiness:           config.String("STRIPE_PRICE_BUSINESS", ""),
		StripePriceEnterprise:         config.String("STRIPE_PRICE_ENTERPRISE", ""),
		CheckoutSuccessURL:            config.String("CHECKOUT_SUCCESS_URL", ""),
		CheckoutCancelURL:             config.String("CHECKOUT_CANCEL_URL", ""),
	})

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)

	// Public endpoints: provider signature or per-session token is the auth.
	mux.HandleFunc("/api/v1/billing/webhooks/stripe", h.StripeWebhook)
	mux.HandleFunc("/api/v1/billing/checkout/session", h.CheckoutSessionStatus)
	mux.HandleFunc("/api/v1/billing/checkout/session/ack", h.AckCheckoutReturn)

	api := http.NewServeMux()
	api.HandleFunc("/api/v1/billing/checkout", h.CreateCheckout)
	api.HandleFunc("/api/v1/billing/subscription", h.GetSubscription)
	api.HandleFunc("/api/v1/billing/subscription/cancel", h.CancelSubscription)
	api.HandleFunc("/api/v1/billing/webhooks/local", h.LocalWebhook)
	mux.Handle("/api/", httpx.Chain(api,
		handlers.RequireAuth(jwtSecret, logger),
		httpx.WithBodyLimit(1<<20),
	))

	// The checkout return pages call the session status/ack endpoints from
	// the browser.
	cors := httpx.WithCORS(httpx.CORSPolicy{
		AllowedOrigins: strings.Split(config.String("CORS_ALLOWED_ORIGINS", ""), ","),
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         10 * time.Minute,
	})

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		cors,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "billing")
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

	if config.String("STRIPE_RECONCILE_ENABLED", "false") == "true" {
		rec := reconcile.NewStripeReconciler(pool, repo, subSvc, logger, reconcile.StripeReconcilerConfig{
			StripeSecretKey: config.String("STRIPE_SECRET_KEY", ""),
			BatchSize:       config.Int("STRIPE_RECONCILE_BATCH_SIZE", 50),
			AdvisoryLockKey: int64(config.Int("STRIPE_RECONCILE_LOCK_KEY", 7151002)),
		})
		go rec.Run(ctx, config.Duration("STRIPE_RECONCILE_INTERVAL", 5*time.Minute))
	}

	if err := startGrpcServer(ctx, logger, pool); err != nil {
		logger.Error("grpc server failed to start", "err", err)
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
