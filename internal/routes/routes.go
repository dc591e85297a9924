package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/congo-pay/sendbtc/internal/auth"
	"github.com/congo-pay/sendbtc/internal/config"
	"github.com/congo-pay/sendbtc/internal/fee"
	"github.com/congo-pay/sendbtc/internal/journal"
	"github.com/congo-pay/sendbtc/internal/metrics"
	"github.com/congo-pay/sendbtc/internal/middleware"
	"github.com/congo-pay/sendbtc/internal/notification"
	"github.com/congo-pay/sendbtc/internal/payments"
	"github.com/congo-pay/sendbtc/internal/price"
	"github.com/congo-pay/sendbtc/internal/wallet"
	"github.com/congo-pay/sendbtc/internal/walletapi"
)

const (
	simulatedBalanceSats = 100_000
	janitorInterval      = time.Minute
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	// Registry receives the service metrics. A fresh registry is used when nil.
	Registry *prometheus.Registry
	// Backend overrides the wallet API client built from Cfg.
	Backend WalletBackend
}

// WalletBackend is everything the service needs from the custodial wallet API.
type WalletBackend interface {
	payments.Gateway
	payments.Directory
	fee.Prober
	wallet.Fetcher
	price.Source
}

// Workers are the background loops started alongside the HTTP server.
type Workers struct {
	poller   *price.Poller
	payments *payments.Service
}

// Run blocks until ctx is cancelled.
func (w *Workers) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w.poller.Run(ctx)
		return nil
	})
	g.Go(func() error {
		w.payments.RunJanitor(ctx, janitorInterval)
		return nil
	})
	return g.Wait()
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) (*Workers, error) {
	if d.Cache == nil {
		return nil, fmt.Errorf("redis is required")
	}
	if d.DB == nil && !d.Cfg.IsDev() {
		return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
	}
	params, err := d.Cfg.ChainParams()
	if err != nil {
		return nil, err
	}
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
		d.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)
	app.Get("/metrics", metrics.Handler(d.Registry))

	backend := d.Backend
	if backend == nil {
		backend, err = newBackend(d.Cfg, d.Logger)
		if err != nil {
			return nil, err
		}
	}

	var submissions journal.Journal
	if d.DB != nil {
		submissions = journal.NewPostgresJournal(d.DB)
	} else {
		submissions = journal.NewInMemory()
	}
	schemaCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := submissions.EnsureSchema(schemaCtx); err != nil {
		return nil, fmt.Errorf("ensure journal schema: %w", err)
	}

	collector := metrics.NewCollector(d.Registry)
	walletCache := wallet.NewCache(d.Cache, backend, d.Cfg.BalanceCacheTTL, d.Logger)
	priceStore := price.NewStore(d.Cache)
	fees := fee.NewProbeResolver(backend, d.Logger,
		fee.WithLimiter(rate.NewLimiter(rate.Limit(d.Cfg.FeeProbeRPS), d.Cfg.FeeProbeBurst)),
		fee.WithFailureHook(collector.FeeProbeFailed),
	)
	emitter := notification.NewEmitter(d.Logger,
		notification.NewLoggerNotifier(d.Logger),
		notification.NewRedisNotifier(d.Cache),
	)

	paymentSvc := payments.NewService(payments.Config{
		Gateway:   backend,
		Fees:      fees,
		Balances:  walletCache,
		Prices:    priceStore,
		Journal:   submissions,
		Listeners: []payments.Listener{collector, emitter},
		Freshness: d.Cfg.PriceFreshness,
		Retention: d.Cfg.SubmissionRetention,
		Logger:    d.Logger,
	})

	paymentHandler := payments.NewHandler(paymentSvc, params, backend, d.Cfg.SubmitWait)
	walletHandler := wallet.NewHandler(walletCache)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"network":    params.Name,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	protected := api.Group("", middleware.JWTAuth([]byte(d.Cfg.JWTSecret)))
	RegisterWalletRoutes(protected, walletHandler)
	RegisterPaymentRoutes(protected, paymentHandler,
		middleware.SubmitRateLimit(d.Cache, d.Cfg.SubmitRatePerMinute),
		middleware.SpendingPIN(auth.NewPINVerifier(d.Cfg.SpendingPINHash)),
		middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger),
	)

	poller := price.NewPoller(backend, priceStore, d.Cfg.PriceCurrencies, d.Cfg.PricePollInterval, d.Logger)
	return &Workers{poller: poller, payments: paymentSvc}, nil
}

func newBackend(cfg config.Config, logger *slog.Logger) (WalletBackend, error) {
	if cfg.WalletAPIURL != "" {
		return walletapi.New(cfg.WalletAPIURL, cfg.WalletAPITimeout), nil
	}
	if !cfg.IsDev() {
		return nil, fmt.Errorf("wallet api url is required when APP_ENV=%s", cfg.AppEnv)
	}
	logger.Warn("WALLET_API_URL not set, using the simulated wallet backend")
	return walletapi.NewSimulator(simulatedBalanceSats), nil
}
