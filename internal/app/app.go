package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/pizza-ops/internal/domain/analytics"
	"github.com/xenking/pizza-ops/internal/domain/inventory"
	"github.com/xenking/pizza-ops/internal/domain/loyalty"
	"github.com/xenking/pizza-ops/internal/domain/order"
	"github.com/xenking/pizza-ops/internal/email"
	"github.com/xenking/pizza-ops/internal/events"
	"github.com/xenking/pizza-ops/internal/httpapi"
	"github.com/xenking/pizza-ops/internal/queue"
	"github.com/xenking/pizza-ops/internal/storage/postgres"
	"github.com/xenking/pizza-ops/pkg/health"
	"github.com/xenking/pizza-ops/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles
// graceful shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Repositories.
	storeRepo := postgres.NewStoreRepository(pool)
	menuRepo := postgres.NewMenuRepository(pool)
	inventoryRepo := postgres.NewInventoryRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	analyticsRepo := postgres.NewAnalyticsRepository(pool)
	daySeq := postgres.NewDaySequence(pool)

	// Event publisher: Kafka when brokers are configured, no-op otherwise.
	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPub := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() {
			if err := kafkaPub.Close(); err != nil {
				lg.Error("close kafka publisher", zap.Error(err))
			}
		}()
		publisher = kafkaPub
	}
	gateway := events.NewGateway(publisher)

	// Async job queue: loyalty accrual and customer email.
	jobs := queue.New(queue.Config{
		Workers:     cfg.Queue.Workers,
		Capacity:    cfg.Queue.Capacity,
		MaxAttempts: cfg.Queue.MaxAttempts,
		Backoff:     cfg.Queue.Backoff,
	}, lg.Named("queue"))

	accruer := loyalty.NewProgramAccruer(loyalty.DefaultProgram(), orderRepo)
	sender := email.NewLogSender(lg)
	registerJobHandlers(jobs, accruer, sender)

	if err := jobs.Start(ctx); err != nil {
		return errors.Wrap(err, "start job queue")
	}
	defer jobs.Stop()

	// Domain services.
	ledger := inventory.NewLedger(inventoryRepo)
	generator := order.NewNumberGenerator(cfg.OrderNumberPrefix, daySeq)
	orderSvc := order.NewService(
		order.ServiceConfig{PermissiveTransitions: cfg.PermissiveTransitions},
		menuRepo, storeRepo, ledger, generator, orderRepo,
		gateway, queue.NewDispatcher(jobs),
	)
	analyticsSvc := analytics.NewService(orderRepo, storeRepo, analytics.NopUserStats{}, analyticsRepo)

	// HTTP surface: health endpoints + API routes on one server.
	api := httpapi.NewServer(orderSvc, ledger, inventoryRepo, menuRepo, storeRepo, analyticsSvc, jobs)
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", api.Routes())

	handler := httpmiddleware.Wrap(mux,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", "Authorization"},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.LogRequests(),
	)
	handler = otelhttp.NewHandler(handler, "pizza-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           handler,
	}
	healthSvc.SetReady(true)

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// registerJobHandlers binds the deferred side effects to their job types.
func registerJobHandlers(jobs *queue.Queue, accruer loyalty.Accruer, sender email.Sender) {
	jobs.RegisterHandler(queue.JobLoyaltyAccrual, func(ctx context.Context, job queue.Job) error {
		o, ok := job.Payload.(*order.Order)
		if !ok {
			return errors.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
		}
		return accruer.EarnPoints(ctx, o)
	})
	jobs.RegisterHandler(queue.JobConfirmationEmail, func(ctx context.Context, job queue.Job) error {
		o, ok := job.Payload.(*order.Order)
		if !ok {
			return errors.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
		}
		return sender.SendOrderConfirmation(ctx, o)
	})
	jobs.RegisterHandler(queue.JobStatusEmail, func(ctx context.Context, job queue.Job) error {
		p, ok := job.Payload.(queue.StatusEmailPayload)
		if !ok {
			return errors.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
		}
		return sender.SendOrderStatusUpdate(ctx, p.Order, p.NewStatus)
	})
}
