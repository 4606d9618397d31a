package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/fjod/go_cart/pos-service/internal/backend"
	"github.com/fjod/go_cart/pos-service/internal/catalog"
	h "github.com/fjod/go_cart/pos-service/internal/http"
	"github.com/fjod/go_cart/pos-service/internal/metrics"
)

type Config struct {
	HTTPPort        string
	BackendURL      string
	BackendTimeout  time.Duration
	DefaultStoreID  string
	RedisAddr       string
	RedisPassword   string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	CatalogCacheTTL time.Duration
	CatalogRefresh  time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		BackendURL:      getEnv("BACKEND_URL", "http://localhost:8000"),
		BackendTimeout:  getDuration("BACKEND_TIMEOUT", 10*time.Second),
		DefaultStoreID:  getEnv("DEFAULT_STORE_ID", "1"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		CatalogCacheTTL: getDuration("CATALOG_CACHE_TTL", 15*time.Minute),
		CatalogRefresh:  getDuration("CATALOG_REFRESH_INTERVAL", 0),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration accepts Go durations ("30s") or plain seconds ("30").
func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	cfg := loadConfig()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer redisClient.Close()

	var cache catalog.SnapshotCache
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 2*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, catalog snapshots will not be cached",
			zap.String("addr", cfg.RedisAddr), zap.Error(err))
	} else {
		cache = catalog.NewRedisCache(redisClient, cfg.CatalogCacheTTL)
	}
	cancelPing()

	backendClient := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout)
	index := catalog.NewIndex(backendClient, cache, logger)

	startCtx, cancelStart := context.WithTimeout(context.Background(), cfg.BackendTimeout)
	if warmed, err := index.Warm(startCtx, cfg.DefaultStoreID); err != nil {
		logger.Warn("catalog warm-up failed", zap.Error(err))
	} else if warmed {
		logger.Info("serving cached catalog until refresh completes")
	}
	if err := index.Refresh(startCtx, cfg.DefaultStoreID); err != nil {
		// registers can still resume parked sales and retry the refresh
		logger.Error("initial catalog refresh failed", zap.String("store_id", cfg.DefaultStoreID), zap.Error(err))
	}
	cancelStart()

	runCtx, stopRefresher := context.WithCancel(context.Background())
	defer stopRefresher()
	go catalog.NewRefresher(index, cfg.CatalogRefresh, cfg.BackendTimeout, cfg.DefaultStoreID, logger).Run(runCtx)

	defaultStore := func() string {
		if id := index.StoreID(); id != "" {
			return id
		}
		return cfg.DefaultStoreID
	}
	registry := h.NewRegistry(index, backendClient, defaultStore, logger)
	api := h.NewAPI(registry, index, cfg.DefaultStoreID, cfg.RequestTimeout, logger, metrics.NewRegisterMetrics())

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(h.NewRouter(api), "pos-service"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("POS service starting", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stopRefresher()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exited")
}
