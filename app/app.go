package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"solar-impact-insights/api"
	"solar-impact-insights/cache"
	"solar-impact-insights/config"
	"solar-impact-insights/database"
	"solar-impact-insights/logger"
	"solar-impact-insights/metrics"
	"solar-impact-insights/notifications"
	"solar-impact-insights/pipeline"
	"solar-impact-insights/realtime"
	"solar-impact-insights/warehouse"
)

// Version is reported in every log line.
const Version = "1.0.0"

// analysisCacheTTL bounds how long cached correlations and summaries are served.
const analysisCacheTTL = 30 * time.Minute

// App represents the main application
type App struct {
	config    *config.Config
	log       *zap.Logger
	db        *database.Database
	redis     *cache.RedisClient
	repo      *database.Repository
	broker    *realtime.Broker
	warehouse *warehouse.Warehouse
	scheduler *Scheduler
}

// New creates a new application instance
func New(cfg *config.Config) (*App, error) {
	log, err := logger.New(logger.Config{
		ServiceName:   "solar-impact-insights",
		Environment:   cfg.Logging.Environment,
		Version:       Version,
		Level:         cfg.Logging.Level,
		Format:        cfg.Logging.Format,
		IncludeCaller: true,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return &App{config: cfg, log: log}, nil
}

// Start starts the application and blocks until a shutdown signal arrives
func (a *App) Start() error {
	defer func() { _ = a.log.Sync() }()

	if err := a.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	runOpts, err := RunOptions(a.config)
	if err != nil {
		return err
	}

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Database Connection
	a.log.Info("🗄️  Connecting to database...")
	dbPort, err := strconv.Atoi(a.config.DatabasePort)
	if err != nil {
		return fmt.Errorf("invalid database port: %w", err)
	}
	db, err := database.Connect(
		a.config.DatabaseHost,
		dbPort,
		a.config.DatabaseName,
		a.config.DatabaseUser,
		a.config.DatabasePassword,
		a.log,
	)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	a.db = db

	a.repo = database.NewRepository(a.db, a.log)
	if err := a.repo.InitSchema(ctx); err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}

	// 2. Redis Connection
	a.log.Info("🧠 Connecting to Redis...")
	a.redis = cache.NewRedisClient(a.config.RedisHost, a.config.RedisPort, a.config.RedisPassword, a.log)

	var seriesCache cache.SeriesCache = cache.NewMemoryCache()
	if a.redis == nil {
		a.log.Warn("⚠️  Redis connection failed. Using in-process source cache, analysis caching disabled.")
	} else {
		seriesCache = a.redis
	}
	analysisCache := cache.NewAnalysisCache(a.redis, analysisCacheTTL)

	// 3. Metrics, realtime broker and notifications
	pipelineMetrics, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("metrics registration failed: %w", err)
	}

	a.broker = realtime.NewBroker(a.log)
	go a.broker.Run(ctx)

	deps := pipeline.Dependencies{
		Store:       a.repo,
		Broadcaster: a.broker,
		Metrics:     pipelineMetrics,
	}
	if notifier := NewWebhookNotifier(a.config.Webhooks, a.log); notifier.Enabled() {
		deps.Notifier = notifier
	}

	// 4. Optional ClickHouse warehouse
	if a.config.Warehouse.Enabled {
		wh, err := warehouse.Dial(ctx, warehouse.Config{
			Address:  a.config.Warehouse.Address,
			Database: a.config.Warehouse.Database,
			Table:    a.config.Warehouse.Table,
			User:     a.config.Warehouse.User,
			Password: a.config.Warehouse.Password,
		}, a.log)
		if err != nil {
			return fmt.Errorf("warehouse connection failed: %w", err)
		}
		if err := wh.EnsureSchema(ctx); err != nil {
			_ = wh.Close()
			return fmt.Errorf("warehouse schema failed: %w", err)
		}
		a.warehouse = wh
		deps.Warehouse = wh
	}

	// 5. Pipelines
	liveSources, err := LiveSources(a.config.Sources, seriesCache, a.log)
	if err != nil {
		return err
	}
	live := pipeline.NewRunner(liveSources, deps, a.log)
	mock := pipeline.NewRunner(MockSources(), deps, a.log)

	// 6. API Server
	apiServer := api.NewServer(api.Options{
		Repo:        a.repo,
		Live:        live,
		Mock:        mock,
		Broker:      a.broker,
		Cache:       analysisCache,
		RunOptions:  runOpts,
		DefaultMock: a.config.Sources.UseMock,
	}, a.log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := apiServer.Start(ctx, a.config.HTTPPort); err != nil {
			a.log.Error("⚠️  API Server failed", zap.Error(err))
		}
	}()

	// 7. Scheduled collection
	if interval := a.config.Sources.CollectInterval; interval > 0 {
		collector := api.Collector(live)
		if a.config.Sources.UseMock {
			collector = mock
		}
		a.scheduler = NewScheduler(collector, runOpts, interval, a.log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.scheduler.Start(ctx)
		}()
	}

	// 8. Wait for interrupt and perform graceful shutdown
	err = a.gracefulShutdown(cancel)
	wg.Wait()
	return err
}

// NewWebhookNotifier builds one webhook per configured URL. A token is sent as a bearer value.
func NewWebhookNotifier(cfg config.WebhookConfig, log *zap.Logger) *notifications.WebhookNotifier {
	hooks := make([]notifications.Webhook, 0, len(cfg.URLs))
	for _, url := range cfg.URLs {
		hook := notifications.Webhook{URL: url, ActiveOnly: cfg.ActiveOnly}
		if cfg.AuthToken != "" {
			hook.AuthHeader = cfg.AuthHeader
			hook.AuthValue = "Bearer " + cfg.AuthToken
		}
		hooks = append(hooks, hook)
	}
	return notifications.NewWebhookNotifier(hooks, log)
}

// gracefulShutdown handles graceful shutdown with timeout
func (a *App) gracefulShutdown(cancel context.CancelFunc) error {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	<-interrupt
	a.log.Info("🛑 Shutdown signal received, initiating graceful shutdown...")

	// Cancel context to stop the server, broker and scheduler
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	shutdownComplete := make(chan struct{})
	go func() {
		if a.scheduler != nil {
			a.log.Info("⏱️ Stopping scheduler...")
			a.scheduler.Stop()
		}

		if a.warehouse != nil {
			if err := a.warehouse.Close(); err != nil {
				a.log.Error("Error closing warehouse", zap.Error(err))
			} else {
				a.log.Info("✅ Warehouse connection closed")
			}
		}

		if a.db != nil {
			if err := a.db.Close(); err != nil {
				a.log.Error("Error closing database", zap.Error(err))
			} else {
				a.log.Info("✅ Database connection closed")
			}
		}

		if a.redis != nil {
			if err := a.redis.Close(); err != nil {
				a.log.Error("Error closing redis", zap.Error(err))
			} else {
				a.log.Info("✅ Redis connection closed")
			}
		}

		close(shutdownComplete)
	}()

	select {
	case <-shutdownComplete:
		a.log.Info("✅ Graceful shutdown completed")
		return nil
	case <-shutdownCtx.Done():
		a.log.Warn("⚠️  Shutdown timeout exceeded, forcing exit")
		return fmt.Errorf("shutdown timeout")
	}
}
