package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/atticusjxn/flynnai-sub001/internal/alerting"
	"github.com/atticusjxn/flynnai-sub001/internal/audit"
	"github.com/atticusjxn/flynnai-sub001/internal/notify"
	"github.com/atticusjxn/flynnai-sub001/internal/ratelimit"
	"github.com/atticusjxn/flynnai-sub001/internal/retry"
	"github.com/atticusjxn/flynnai-sub001/pkg/config"
	"github.com/atticusjxn/flynnai-sub001/pkg/logging"
	"github.com/atticusjxn/flynnai-sub001/pkg/metrics"
)

func main() {
	// Load .env file if it exists (for local development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      cfg.Logging.Output,
		ServiceName: "flynnai-resilience",
		Version:     version(),
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	logging.SetGlobalLogger(logger)

	m := metrics.NewMetrics(&metrics.Config{
		Namespace: cfg.Metrics.Namespace,
		Enabled:   cfg.Metrics.Enabled,
	})

	auditor := audit.NewLogger(logger, "flynnai-resilience")

	inApp := notify.NewInAppChannel(200)
	dispatcher := notify.NewDispatcher(logger, m,
		notify.NewLogChannel(logger),
		inApp,
	)

	// Error record store: postgres when configured, memory otherwise.
	var store retry.RecordStore
	if cfg.Database.Password != "" {
		pgStore, err := retry.NewPostgresStore(
			cfg.DatabaseURL(),
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			logger.Error("Failed to connect to database, using in-memory error store", "error", err)
			store = retry.NewMemoryStore()
		} else {
			defer pgStore.Close()
			store = pgStore
		}
	} else {
		store = retry.NewMemoryStore()
	}

	classifier := retry.NewClassifier(store, dispatcher, logger, m)

	limiterCfg := ratelimit.DefaultServiceConfig()
	limiterCfg.Default = ratelimit.Config{
		Window:      cfg.RateLimit.DefaultWindow,
		MaxRequests: cfg.RateLimit.DefaultMaxRequests,
	}
	limiterCfg.CleanupInterval = cfg.RateLimit.CleanupInterval
	limiterCfg.ViolationRetention = cfg.RateLimit.ViolationRetention

	limiter := ratelimit.NewService(limiterCfg, auditor, dispatcher, logger, m)

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		limiter.SetCounterStore(ratelimit.NewRedisCounterStore(client, ""))
		logger.Info("Rate limiter using distributed counter backend", "addr", cfg.RedisAddr())
	}

	engine := alerting.NewEngine(
		alerting.EngineConfig{
			EvaluationInterval: cfg.Alerting.EvaluationInterval,
			RecentAlertLimit:   cfg.Alerting.RecentAlertLimit,
		},
		alerting.DefaultRules(),
		alerting.SnapshotFunc(collectMetrics),
		auditor,
		logger,
		m,
	)
	engine.RegisterChannel("log", notify.NewLogChannel(logger))
	engine.RegisterChannel("in_app", inApp)
	engine.RegisterChannel("email", notify.NewEmailChannel(logger, os.Getenv("ALERT_EMAIL")))
	engine.RegisterChannel("webhook", notify.NewWebhookChannel(logger, os.Getenv("ALERT_WEBHOOK_URL")))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	limiter.Start(ctx)
	engine.Start(ctx)

	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", m.Handler())
			logger.Info("Metrics endpoint listening", "addr", cfg.Metrics.Addr)
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	go func() {
		addr := os.Getenv("ADMIN_ADDR")
		if addr == "" {
			addr = ":8081"
		}
		router := newAdminRouter(limiter, engine, classifier, inApp)
		logger.Info("Admin API listening", "addr", addr)
		if err := router.Run(addr); err != nil {
			logger.Error("Admin server failed", "error", err)
		}
	}()

	logger.Info("Resilience layer started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutting down")
	engine.Stop()
	limiter.Stop()
}

// collectMetrics builds the per-cycle metric snapshot. Process memory
// comes from the runtime; pipeline metrics are fed by the business
// layer through the shared collector in a full deployment.
func collectMetrics() alerting.Snapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	snapshot := alerting.Snapshot{
		alerting.MetricMemoryUsage: float64(memStats.Alloc) / float64(memStats.Sys) * 100,
	}
	return snapshot
}

func version() string {
	if v := os.Getenv("SERVICE_VERSION"); v != "" {
		return v
	}
	return "dev"
}
