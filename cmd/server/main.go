package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/invoicer/handler"
	"github.com/dmitrymomot/invoicer/internal/db"
	"github.com/dmitrymomot/invoicer/internal/jobs"
	"github.com/dmitrymomot/invoicer/internal/repository"
	"github.com/dmitrymomot/invoicer/modules/api"
	"github.com/dmitrymomot/invoicer/modules/billing"
	"github.com/dmitrymomot/invoicer/modules/invoicing"
	"github.com/dmitrymomot/invoicer/pkg/config"
	"github.com/dmitrymomot/invoicer/pkg/email"
	"github.com/dmitrymomot/invoicer/pkg/environment"
	"github.com/dmitrymomot/invoicer/pkg/errtrack"
	"github.com/dmitrymomot/invoicer/pkg/file"
	"github.com/dmitrymomot/invoicer/pkg/gemini"
	"github.com/dmitrymomot/invoicer/pkg/httpserver"
	"github.com/dmitrymomot/invoicer/pkg/jwt"
	"github.com/dmitrymomot/invoicer/pkg/logger"
	"github.com/dmitrymomot/invoicer/pkg/metrics"
	"github.com/dmitrymomot/invoicer/pkg/pg"
	"github.com/dmitrymomot/invoicer/pkg/ratelimiter"
	"github.com/dmitrymomot/invoicer/pkg/redis"
	"github.com/dmitrymomot/invoicer/pkg/requestid"
	"github.com/dmitrymomot/invoicer/pkg/subscription"
	"github.com/dmitrymomot/invoicer/svc/entitlement"
	"github.com/dmitrymomot/invoicer/svc/invoice"
	"github.com/dmitrymomot/invoicer/svc/profile"
)

func main() {
	var app config.App
	config.MustLoad(&app)

	log := logger.New(
		logger.WithEnvironment(app.Env, app.Name),
		logger.WithLevelName(app.LogLevel),
		logger.WithContextExtractors(
			requestid.LoggerExtractor(),
			jwt.LoggerExtractor(),
			environment.LoggerExtractor(),
		),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, app, log); err != nil {
		log.ErrorContext(ctx, "server stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, app config.App, log *slog.Logger) error {
	loc, err := app.Location()
	if err != nil {
		return err
	}

	var (
		trackerCfg  errtrack.Config
		pgCfg       pg.Config
		redisCfg    redis.Config
		jwtCfg      jwt.Config
		storageCfg  file.Config
		emailCfg    email.Config
		razorpayCfg subscription.RazorpayConfig
		paddleCfg   subscription.PaddleConfig
		geminiCfg   gemini.Config
		limiterCfg  ratelimiter.Config
		serverCfg   httpserver.Config
	)
	for _, load := range []func() error{
		func() error { return config.Load(&trackerCfg) },
		func() error { return config.Load(&pgCfg) },
		func() error { return config.Load(&redisCfg) },
		func() error { return config.Load(&jwtCfg) },
		func() error { return config.Load(&storageCfg) },
		func() error { return config.Load(&emailCfg) },
		func() error { return config.Load(&razorpayCfg) },
		func() error { return config.Load(&paddleCfg) },
		func() error { return config.Load(&geminiCfg) },
		func() error { return config.Load(&limiterCfg) },
		func() error { return config.Load(&serverCfg) },
	} {
		if err := load(); err != nil {
			return err
		}
	}

	tracker, err := errtrack.New(trackerCfg)
	if err != nil {
		return err
	}
	defer tracker.Flush(2 * time.Second)

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool, pgCfg, db.Migrations(), log); err != nil {
		return err
	}

	checks := []httpserver.Check{{Name: "postgres", Fn: pg.Healthcheck(pool)}}

	var deduper subscription.Deduper = subscription.NewMemoryDeduper(10000, subscription.DefaultDedupeTTL)
	if redisCfg.Enabled() {
		rdb, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		deduper = subscription.NewRedisDeduper(rdb, subscription.DefaultDedupeTTL)
		checks = append(checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(rdb)})
	} else {
		log.WarnContext(ctx, "REDIS_URL not set, webhook deduplication is per process")
	}

	m := metrics.New(strings.ReplaceAll(app.Name, "-", "_"))

	subscriptionRepo := repository.NewSubscriptionRepository(pool)
	customerRepo := repository.NewCustomerRepository(pool)
	invoiceRepo := repository.NewInvoiceRepository(pool)
	profileRepo := repository.NewProfileRepository(pool)

	subs := subscription.NewService(subscriptionRepo,
		subscription.WithLogger(log),
		subscription.WithObserver(m.BillingEvent),
	)
	entitlements := entitlement.NewService(subs, invoiceRepo,
		entitlement.WithLocation(loc),
		entitlement.WithLogger(log),
	)

	storage, err := file.New(ctx, storageCfg)
	if err != nil {
		return err
	}
	validate := handler.NewValidator()
	profiles := profile.NewService(profileRepo,
		profile.WithStorage(storage),
		profile.WithValidator(validate),
		profile.WithLogger(log),
	)

	mailer := email.NewDevSender(emailCfg.DevDir)
	if emailCfg.PostmarkEnabled() {
		if mailer, err = email.NewPostmarkClient(emailCfg); err != nil {
			return err
		}
	}

	invoices := invoice.NewService(customerRepo, invoiceRepo, entitlements,
		invoice.WithLocation(loc),
		invoice.WithLogger(log),
		invoice.WithProfiles(profiles),
		invoice.WithMailer(mailer),
		invoice.WithObserver(m.InvoiceEvent),
	)

	errorHandler := handler.NewErrorHandler(log, handler.WithReporter(tracker.Report))

	billingOpts := []billing.Option{
		billing.WithDeduper(deduper),
		billing.WithLogger(log),
	}
	if paddleCfg.Enabled() {
		paddle, err := subscription.NewPaddleGateway(paddleCfg)
		if err != nil {
			return err
		}
		billingOpts = append(billingOpts, billing.WithPaddle(paddle))
	}
	billingSvc := billing.NewService(subs, entitlements,
		subscription.NewRazorpayGateway(razorpayCfg),
		errorHandler,
		billingOpts...,
	)

	invoicingOpts := []invoicing.Option{
		invoicing.WithValidator(validate),
		invoicing.WithLogger(log),
		invoicing.WithAIObserver(m.AIRequest),
	}
	if geminiCfg.APIKey != "" {
		invoicingOpts = append(invoicingOpts, invoicing.WithParser(
			gemini.NewClient(geminiCfg, gemini.WithLogger(log)),
			ratelimiter.New(limiterCfg),
		))
	} else {
		log.WarnContext(ctx, "GEMINI_API_KEY not set, AI invoice parsing is disabled")
	}
	invoicingSvc := invoicing.NewService(invoices, profiles, errorHandler, invoicingOpts...)

	signer, err := jwt.New(jwtCfg)
	if err != nil {
		return err
	}
	authenticate := jwt.Middleware(signer, jwt.WithErrorFunc(func(w http.ResponseWriter, r *http.Request, err error) {
		_ = handler.JSONError(errors.Join(err, handler.ErrUnauthorized)).Render(w, r)
	}))

	r := chi.NewRouter()
	r.Use(
		requestid.Middleware,
		middleware.RealIP,
		environment.Middleware(environment.Parse(app.Env)),
		middleware.Recoverer,
		tracker.Middleware,
		cors.Handler(cors.Options{
			AllowedOrigins:   app.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		m.Middleware,
	)

	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(log, checks...))
	r.Handle("/metrics", m.Handler())

	if local, ok := storage.(*file.LocalStorage); ok && strings.HasPrefix(storageCfg.BaseURL, "/") {
		prefix := strings.TrimSuffix(storageCfg.BaseURL, "/")
		r.Handle(prefix+"/*", http.StripPrefix(prefix, http.FileServer(http.Dir(local.Dir()))))
	}

	r.Mount("/api", api.Router(api.RouterOptions{
		Authenticate: authenticate,
		Private: []func(http.Handler) http.Handler{
			api.Provision(subs, api.WithProvisionLogger(log)),
		},
		Billing:   billingSvc,
		Webhooks:  billingSvc,
		Invoicing: invoicingSvc,
	}))

	var scheduler *jobs.Scheduler
	if app.OverdueSweepSchedule != "" {
		scheduler = jobs.New(loc, jobs.WithLogger(log))
		if err := scheduler.Add("overdue_sweep", app.OverdueSweepSchedule,
			jobs.OverdueSweep(invoices, time.Now, log)); err != nil {
			return fmt.Errorf("OVERDUE_SWEEP_SCHEDULE: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.InfoContext(gctx, "http server starting", slog.String("addr", serverCfg.Addr))
		return httpserver.New(serverCfg, log).Run(gctx, r)
	})
	if scheduler != nil {
		g.Go(func() error { return scheduler.Run(gctx) })
	}

	return g.Wait()
}
