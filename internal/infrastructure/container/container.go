// Package container provides dependency injection using Uber FX
package container

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	appmarket "github.com/macrocart/v2/internal/application/market"
	appnutrition "github.com/macrocart/v2/internal/application/nutrition"
	"github.com/macrocart/v2/internal/application/planner"
	"github.com/macrocart/v2/internal/application/solver"
	"github.com/macrocart/v2/internal/infrastructure/cache"
	"github.com/macrocart/v2/internal/infrastructure/config"
	"github.com/macrocart/v2/internal/infrastructure/http/server"
	"github.com/macrocart/v2/internal/infrastructure/llm"
	"github.com/macrocart/v2/internal/infrastructure/marketapi"
	"github.com/macrocart/v2/internal/infrastructure/monitoring"
	"github.com/macrocart/v2/internal/infrastructure/nutritionapi"
	"github.com/macrocart/v2/internal/infrastructure/persistence/canonical"
	"github.com/macrocart/v2/internal/infrastructure/ratelimit"
	"github.com/macrocart/v2/internal/ports/inbound"
	"github.com/macrocart/v2/internal/ports/outbound"
	"github.com/macrocart/v2/pkg/healthcheck"
	"github.com/macrocart/v2/pkg/logger"
)

// Module provides all dependency injection modules
var Module = fx.Options(
	ConfigModule,
	LoggerModule,
	MonitoringModule,
	StorageModule,
	CacheModule,
	UpstreamModule,
	PipelineModule,
	HealthModule,
	HTTPModule,
	LifecycleModule,
)

// ConfigModule provides configuration
var ConfigModule = fx.Provide(
	func() (*config.Config, error) {
		return config.Load("")
	},
)

// LoggerModule provides logging
var LoggerModule = fx.Provide(
	func(cfg *config.Config) (*zap.Logger, error) {
		return logger.New(logger.Config{
			Level:       cfg.App.LogLevel,
			Format:      cfg.App.LogFormat,
			Development: cfg.App.Debug,
		})
	},
)

// MonitoringModule provides the metrics collector and tracing provider
var MonitoringModule = fx.Provide(
	func(log *zap.Logger) *monitoring.MetricsCollector {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		return monitoring.NewMetricsCollector(registry, log)
	},
	func(cfg *config.Config, log *zap.Logger) (*monitoring.TracingProvider, error) {
		return monitoring.NewTracingProvider(context.Background(), cfg, log)
	},
)

// StorageModule provides the canonical nutrition store
var StorageModule = fx.Provide(
	canonical.Open,
	fx.Annotate(
		canonical.NewStore,
		fx.As(new(outbound.CanonicalRepository)),
	),
)

// CacheModule provides the shared KV store, the stale-while-revalidate
// cache, and the market token bucket, all feeding the metrics collector.
var CacheModule = fx.Provide(
	func(cfg *config.Config, log *zap.Logger) (outbound.KVStore, error) {
		if cfg.Redis.Host == "" {
			log.Info("Using in-memory KV store")
			return cache.NewMemoryStore(0), nil
		}
		return cache.NewRedisStore(&cfg.Redis, cfg.Bucket.CASAttempts, log)
	},
	func(kv outbound.KVStore, cfg *config.Config, metrics *monitoring.MetricsCollector, log *zap.Logger) *cache.SWR {
		swr := cache.NewSWR(kv, cfg.Cache, log)
		swr.SetObserver(func(key string, status cache.Status) {
			metrics.RecordCacheLookup(cacheLabel(key), string(status))
		})
		return swr
	},
	func(kv outbound.KVStore, cfg *config.Config, metrics *monitoring.MetricsCollector, log *zap.Logger) outbound.TokenBucket {
		bucket := ratelimit.NewBucket(kv, cfg.Bucket, log)
		bucket.SetObserver(func(store string, wait time.Duration, refused bool) {
			if refused {
				metrics.RecordBucketRefusal(store)
				return
			}
			metrics.RecordBucketWait(store, wait)
		})
		return bucket
	},
)

// cacheLabel maps an SWR key to its metric label, so
// "cache:price:kroger:eggs:1" reports under "price".
func cacheLabel(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) >= 2 && parts[0] == "cache" {
		return parts[1]
	}
	return "kv"
}

// UpstreamModule provides the outbound API clients, each wrapped in its
// cache decorator where one exists.
var UpstreamModule = fx.Provide(
	func(cfg *config.Config, bucket outbound.TokenBucket, swr *cache.SWR, metrics *monitoring.MetricsCollector, log *zap.Logger) outbound.MarketSearcher {
		client := marketapi.NewClient(&cfg.Market, bucket, metrics, log)
		return marketapi.NewCachedSearcher(client, swr, cfg.Cache.PricePrefix, log)
	},
	func(cfg *config.Config, swr *cache.SWR, metrics *monitoring.MetricsCollector, log *zap.Logger) outbound.BarcodeNutritionClient {
		client := nutritionapi.NewBarcodeClient(&cfg.Nutrition, metrics, log)
		return nutritionapi.NewCachedBarcodeClient(client, swr, cfg.Cache.NutritionPrefix, log)
	},
	func(cfg *config.Config, swr *cache.SWR, metrics *monitoring.MetricsCollector, log *zap.Logger) outbound.FoodSearchClient {
		client := nutritionapi.NewFoodSearchClient(&cfg.Nutrition, metrics, log)
		return nutritionapi.NewCachedFoodSearchClient(client, swr, cfg.Cache.NutritionPrefix, log)
	},
	func(cfg *config.Config, metrics *monitoring.MetricsCollector, log *zap.Logger) outbound.SketchClient {
		return llm.NewSketchClient(&cfg.LLM, metrics, log)
	},
	func(cfg *config.Config, metrics *monitoring.MetricsCollector, log *zap.Logger) outbound.DescriptionClient {
		return llm.NewDescriptionClient(&cfg.LLM, metrics, log)
	},
)

// PipelineModule provides the application services running the plan pipeline
var PipelineModule = fx.Provide(
	appmarket.NewRunner,
	appnutrition.NewResolver,
	solver.New,
	solver.NewVerifier,
	fx.Annotate(
		planner.NewService,
		fx.As(new(inbound.PlannerService)),
	),
)

// HealthModule provides the health check registry with its dependency probes
var HealthModule = fx.Provide(
	func(cfg *config.Config, db *gorm.DB, kv outbound.KVStore, log *zap.Logger) *healthcheck.HealthCheck {
		health := healthcheck.New(cfg.App.Version, log)
		health.Register("database", healthcheck.NewDatabaseChecker(db))
		if store, ok := kv.(*cache.RedisStore); ok {
			health.Register("redis", healthcheck.NewRedisChecker(store.Client()))
		}
		if cfg.Market.BaseURL != "" {
			health.Register("market-api", healthcheck.NewExternalServiceChecker("market-api", cfg.Market.BaseURL, 5*time.Second))
		}
		if cfg.Nutrition.BarcodeBaseURL != "" {
			health.Register("nutrition-api", healthcheck.NewExternalServiceChecker("nutrition-api", cfg.Nutrition.BarcodeBaseURL, 5*time.Second))
		}
		return health
	},
)

// HTTPModule provides the HTTP server
var HTTPModule = fx.Provide(
	server.New,
)

// LifecycleModule provides lifecycle hooks
var LifecycleModule = fx.Invoke(
	RegisterLifecycleHooks,
)

// RegisterLifecycleHooks starts the server and uptime counter on boot and
// tears everything down in reverse on shutdown.
func RegisterLifecycleHooks(
	lc fx.Lifecycle,
	cfg *config.Config,
	log *zap.Logger,
	db *gorm.DB,
	kv outbound.KVStore,
	metrics *monitoring.MetricsCollector,
	tracing *monitoring.TracingProvider,
	srv *server.Server,
) {
	uptimeCtx, cancelUptime := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting MacroCart",
				zap.String("version", cfg.App.Version),
				zap.String("environment", cfg.App.Environment),
			)

			metrics.StartUptimeCounter(uptimeCtx)

			go func() {
				if err := srv.Start(); err != nil {
					log.Fatal("Failed to start HTTP server", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down MacroCart")
			cancelUptime()

			if err := srv.Shutdown(ctx); err != nil {
				log.Error("Failed to shutdown HTTP server", zap.Error(err))
			}

			if err := tracing.Shutdown(ctx); err != nil {
				log.Error("Failed to shutdown tracing", zap.Error(err))
			}

			if closer, ok := kv.(io.Closer); ok {
				if err := closer.Close(); err != nil {
					log.Error("Failed to close KV store", zap.Error(err))
				}
			}

			if sqlDB, err := db.DB(); err == nil {
				if err := sqlDB.Close(); err != nil {
					log.Error("Failed to close database connection", zap.Error(err))
				}
			}

			_ = log.Sync()
			return nil
		},
	})
}
