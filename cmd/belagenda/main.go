package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/belagenda/belagenda/internal/booking"
	"github.com/belagenda/belagenda/internal/handlers"
	"github.com/belagenda/belagenda/internal/outbox"
	"github.com/belagenda/belagenda/internal/reminder"
	"github.com/belagenda/belagenda/internal/storage"
	"github.com/belagenda/belagenda/internal/whatsapp"
	"github.com/belagenda/belagenda/libs/config"
	"github.com/belagenda/belagenda/libs/db"
	"github.com/belagenda/belagenda/libs/httpx"
	"github.com/belagenda/belagenda/libs/kafkax"
	otelx "github.com/belagenda/belagenda/libs/otel"
	"github.com/belagenda/belagenda/libs/runtime"
)

func main() {
	service := config.String("SERVICE_NAME", "belagenda")
	port, err := config.Port("PORT", "8080")
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

	tzName := config.String("TIMEZONE", "America/Sao_Paulo")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		logger.Warn("invalid timezone, using UTC", "timezone", tzName)
		tzName = "UTC"
		loc = time.UTC
	}

	kafkaBrokers := config.String("KAFKA_BROKERS", "")
	outboxRepo := outbox.NewRepository(pool)
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   kafkaBrokers,
		PollEvery: config.Duration("KAFKA_OUTBOX_POLL", 2*time.Second),
		BatchSize: config.Int("KAFKA_OUTBOX_BATCH", 50),
	})
	go outboxPublisher.Run(ctx)

	appointmentRepo := storage.NewAppointmentRepository(pool, outboxRepo, tzName)
	procedureRepo := storage.NewProcedureRepository(pool)
	bookingSvc := booking.NewService(appointmentRepo, loc)

	gateway := whatsapp.NewClient(
		config.String("WHATSAPP_GATEWAY_URL", ""),
		config.String("WHATSAPP_GATEWAY_TOKEN", ""),
		config.Duration("WHATSAPP_HTTP_TIMEOUT", 5*time.Second),
	)
	dispatcher := reminder.NewDispatcher(gateway, config.String("WHATSAPP_COUNTRY_CODE", "55"), loc)
	scanner := reminder.NewScanner(appointmentRepo, dispatcher, logger, reminder.ScannerConfig{
		Interval:        config.Duration("REMINDER_SCAN_INTERVAL", time.Minute),
		Lead:            config.Duration("REMINDER_LEAD", time.Hour),
		DispatchTimeout: config.Duration("REMINDER_DISPATCH_TIMEOUT", 10*time.Second),
	})
	go scanner.Run(ctx)

	checks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if kafkaBrokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)})
	}
	if config.String("WHATSAPP_GATEWAY_URL", "") != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "whatsapp", Check: whatsapp.ReadyCheck(gateway)})
	}
	mux := runtime.NewBaseMux(checks...)

	appointmentHandler := handlers.NewAppointmentHandler(bookingSvc, logger)
	procedureHandler := handlers.NewProcedureHandler(procedureRepo, logger)

	mux.HandleFunc("POST /api/v1/appointments", appointmentHandler.Create)
	mux.HandleFunc("GET /api/v1/appointments", appointmentHandler.List)
	mux.HandleFunc("GET /api/v1/appointments/dates", appointmentHandler.Dates)
	mux.HandleFunc("GET /api/v1/appointments/{id}", appointmentHandler.Get)
	mux.HandleFunc("PUT /api/v1/appointments/{id}", appointmentHandler.Update)
	mux.HandleFunc("DELETE /api/v1/appointments/{id}", appointmentHandler.Delete)
	mux.HandleFunc("GET /api/v1/procedures", procedureHandler.List)
	mux.HandleFunc("POST /api/v1/procedures", procedureHandler.Create)
	mux.HandleFunc("DELETE /api/v1/procedures/{id}", procedureHandler.Delete)

	if staticDir := config.String("STATIC_DIR", ""); staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}

	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 60)
	var rateLimitMW httpx.Middleware
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	handler := httpx.Chain(mux,
		httpx.WithCORS(
			splitList(config.String("CORS_ALLOWED_ORIGINS", "")),
			splitList(config.String("CORS_ALLOWED_HEADERS", "Content-Type,X-Request-Id")),
		),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 10*time.Second)),
		rateLimitMW,
	)
	handler = otelhttp.NewHandler(handler, service)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
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

func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
