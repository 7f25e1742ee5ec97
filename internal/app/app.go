package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/AlejandroAndrade98/embipos/internal/client"
	"github.com/AlejandroAndrade98/embipos/internal/config"
	"github.com/AlejandroAndrade98/embipos/internal/domain"
	"github.com/AlejandroAndrade98/embipos/internal/event"
	handler "github.com/AlejandroAndrade98/embipos/internal/handler/http"
	"github.com/AlejandroAndrade98/embipos/internal/repository"
	"github.com/AlejandroAndrade98/embipos/internal/repository/memory"
	pgrepo "github.com/AlejandroAndrade98/embipos/internal/repository/postgres"
	redisrepo "github.com/AlejandroAndrade98/embipos/internal/repository/redis"
	"github.com/AlejandroAndrade98/embipos/internal/service"
	"github.com/AlejandroAndrade98/embipos/internal/session"
	"github.com/AlejandroAndrade98/embipos/migrations"
	"github.com/AlejandroAndrade98/embipos/pkg/database"
	"github.com/AlejandroAndrade98/embipos/pkg/health"
	"github.com/AlejandroAndrade98/embipos/pkg/httpclient"
	pkgkafka "github.com/AlejandroAndrade98/embipos/pkg/kafka"
	"github.com/AlejandroAndrade98/embipos/pkg/middleware"
	"github.com/AlejandroAndrade98/embipos/pkg/tracing"
)

const (
	serviceName = "pos-terminal"

	sweepInterval      = 5 * time.Minute
	eventDedupTTL      = 24 * time.Hour
	shutdownGrace      = 10 * time.Second
	startupDialTimeout = 15 * time.Second
)

// App wires together all dependencies and runs the terminal service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	pool           *pgxpool.Pool
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	consumer       *pkgkafka.Consumer
	sessions       *session.Registry
	httpServer     *http.Server
	shutdownTracer func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), startupDialTimeout)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	shutdownTracer, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.shutdownTracer = shutdownTracer

	// Initialize Redis client.
	redisCfg := database.DefaultRedisConfig()
	redisCfg.Host = cfg.RedisHost
	redisCfg.Port = cfg.RedisPort
	redisCfg.Password = cfg.RedisPassword
	redisCfg.DB = cfg.RedisDB
	rdb, err := database.NewRedisClient(ctx, redisCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.rdb = rdb
	logger.Info("connected to Redis", slog.String("addr", redisCfg.Addr()), slog.Int("db", redisCfg.DB))

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})

	ledger, err := a.newLedger(ctx, healthHandler)
	if err != nil {
		a.closeStores()
		return nil, err
	}

	// Kafka producer and product.updated consumer.
	var publisher event.Publisher
	if cfg.EventsEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		a.dlq = pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
		publisher = a.producer
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		logger.Info("event publishing disabled")
	}
	events := event.NewProducer(publisher, logger)

	productCache := redisrepo.NewProductCache(rdb, cfg.SKUCacheTTL)
	if cfg.EventsEnabled {
		reader := pkgkafka.NewReader(pkgkafka.ConsumerConfig{
			Brokers:  cfg.KafkaBrokers,
			GroupID:  cfg.ConsumerGroup,
			Topic:    event.TopicProductUpdated,
			MinBytes: 1,
			MaxBytes: 1 << 20,
		})
		a.consumer = event.NewProductConsumer(
			reader,
			cfg.ConsumerGroup,
			productCache,
			redisrepo.NewIdempotencyStore(rdb, eventDedupTTL),
			a.dlq,
			logger,
		)
	}

	// Remote POS API client behind retries and a circuit breaker.
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.APITimeout
	httpCfg.MaxRetries = cfg.APIMaxRetries
	breaker := httpclient.NewCircuitBreakerClient(httpclient.New(httpCfg), httpclient.CircuitBreakerConfig{
		Name:         "pos-api",
		MaxRequests:  cfg.CBMaxRequests,
		Interval:     time.Duration(cfg.CBInterval) * time.Second,
		Timeout:      time.Duration(cfg.CBTimeout) * time.Second,
		FailureRatio: cfg.CBFailureRatio,
		MinRequests:  cfg.CBMinRequests,
	}, logger)
	healthHandler.RegisterNonCritical("pos-api", func(context.Context) error {
		if breaker.State() == gobreaker.StateOpen {
			return errors.New("circuit open")
		}
		return nil
	})
	api := client.New(breaker, cfg.APIBase(), logger)

	// Build the dependency graph.
	policy, err := domain.ParseStockPolicy(cfg.StockPolicy)
	if err != nil {
		a.closeStores()
		return nil, err
	}
	a.sessions = session.NewRegistry(logger)

	catalog := service.NewCatalogService(api, productCache, logger)
	reports := service.NewReportService(api, cfg.Location(), cfg.ReportMaxRangeDays)
	services := handler.Services{
		Auth:     service.NewAuthService(api, redisrepo.NewSessionStore(rdb), a.sessions, cfg.SessionTTL, logger),
		Cart:     service.NewCartService(a.sessions, catalog, events, policy, logger),
		Checkout: service.NewCheckoutService(a.sessions, api, ledger, events, cfg.PaymentMethods, logger),
		Catalog:  catalog,
		Reports:  reports,
		Goals:    service.NewGoalsService(api, reports, logger),
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	cors.Environment = cfg.Environment

	// HTTP router.
	router := handler.NewRouter(services, healthHandler, handler.RouterConfig{
		CORS:           cors,
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		RequestTimeout: cfg.APITimeout*time.Duration(cfg.APIMaxRetries+1) + 5*time.Second,
		LoginRPS:       cfg.LoginRateLimitRPS,
		LoginBurst:     cfg.LoginRateLimitBurst,
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.APITimeout*time.Duration(cfg.APIMaxRetries+1) + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return a, nil
}

// newLedger returns the checkout ledger selected by configuration. The
// postgres backend connects, migrates and exports pool metrics.
func (a *App) newLedger(ctx context.Context, h *health.Handler) (repository.CheckoutLedger, error) {
	if a.cfg.LedgerBackend != "postgres" {
		a.logger.Info("checkout ledger kept in memory")
		return memory.NewLedger(), nil
	}

	pgCfg := database.DefaultPostgresConfig()
	pgCfg.Host = a.cfg.PostgresHost
	pgCfg.Port = a.cfg.PostgresPort
	pgCfg.User = a.cfg.PostgresUser
	pgCfg.Password = a.cfg.PostgresPass
	pgCfg.DBName = a.cfg.PostgresDB
	pgCfg.SSLMode = a.cfg.PostgresSSL
	pgCfg.MaxConns = a.cfg.DBMaxConns
	pgCfg.MinConns = a.cfg.DBMinConns

	pool, err := database.NewPostgresPool(ctx, &pgCfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool

	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
		a.logger.Warn("failed to register pool metrics", slog.String("error", err.Error()))
	}
	database.SetSlowQueryLogging(time.Duration(a.cfg.SlowQueryThresholdMs)*time.Millisecond, a.logger)

	h.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	a.logger.Info("checkout ledger stored in PostgreSQL", slog.String("host", pgCfg.Host), slog.String("db", pgCfg.DBName))
	return pgrepo.NewLedger(pool), nil
}

// Run starts the HTTP server and background workers and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	workers, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.sessions.RunSweeper(workers, sweepInterval, a.cfg.CartIdleTTL)
	}()

	if a.consumer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.consumer.Start(workers); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("product consumer stopped", slog.String("error", err.Error()))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	stopWorkers()
	shutdownErr := a.Shutdown()
	wg.Wait()

	if runErr != nil {
		return runErr
	}
	return shutdownErr
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}
	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			a.logger.Error("kafka dlq close error", slog.String("error", err.Error()))
		}
	}

	a.closeStores()

	if err := a.shutdownTracer(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}

func (a *App) closeStores() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
}
