package main

import (
	"context"
	"net/http"
	"time"

	"github.com/greenlane-app/greenlane/libs/config"
	"github.com/greenlane-app/greenlane/libs/db"
	"github.com/greenlane-app/greenlane/libs/httpx"
	"github.com/greenlane-app/greenlane/libs/kafkax"
	otelx "github.com/greenlane-app/greenlane/libs/otel"
	"github.com/greenlane-app/greenlane/libs/runtime"
	"github.com/greenlane-app/greenlane/services/delivery-service/internal/availability"
	"github.com/greenlane-app/greenlane/services/delivery-service/internal/handlers"
	"github.com/greenlane-app/greenlane/services/delivery-service/internal/outbox"
	"github.com/greenlane-app/greenlane/services/delivery-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "delivery-service")
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

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	// All slot hour comparisons happen in the store's operating timezone.
	tzName := config.String("STORE_TIMEZONE", "America/New_York")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		logger.Error("invalid STORE_TIMEZONE; falling back to local", "tz", tzName, "err", err)
		loc = time.Local
	}

	opts := availability.Options{
		ZoneRadiusMiles: config.Float("ZONE_RADIUS_MILES", availability.DefaultZoneRadiusMiles),
		SlotCapacity:    config.Int("SLOT_CAPACITY", availability.DefaultSlotCapacity),
	}

	outboxRepo := outbox.NewRepository(pool)
	settingsRepo := storage.NewSettingsRepository(pool, outboxRepo)
	slotRepo := storage.NewSlotRepository(pool, outboxRepo)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		Topic:     config.String("KAFKA_DELIVERY_TOPIC", outbox.DefaultTopic),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	deliveryHandler := handlers.NewDeliveryHandler(settingsRepo, slotRepo, logger, opts, loc)
	adminHandler := handlers.NewAdminHandler(settingsRepo, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/delivery/slots", deliveryHandler.Slots)
	mux.HandleFunc("/delivery/book", deliveryHandler.Book)
	mux.HandleFunc("/admin/settings", adminHandler.Settings)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "delivery")
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
