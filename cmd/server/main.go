package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"scoregate/internal/alert"
	"scoregate/internal/api"
	"scoregate/internal/config"
	"scoregate/internal/health"
	"scoregate/internal/limiter"
	"scoregate/internal/metrics"
	"scoregate/internal/middleware"
	"scoregate/internal/observability"
	"scoregate/internal/store"
	"scoregate/internal/upstream"
)

func main() {
	cfg := config.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx := context.Background()
	shutdown, err := observability.InitTracer(ctx, cfg.OtelEndpoint, cfg.OtelServiceName, cfg.ModelName, cfg.ModelVersion)
	if err == nil {
		defer shutdown(ctx)
	}

	m := metrics.New(cfg.LatencyBuckets, cfg.PayloadBuckets)

	client, err := upstream.New(cfg.UpstreamURL, cfg.ConnectTimeout, cfg.RequestTimeout)
	if err != nil {
		logger.Fatal("invalid upstream url", zap.Error(err))
	}

	var alerts *alert.Dispatcher
	if cfg.AlertWebhookURL != "" {
		alerts = alert.New(cfg.AlertWebhookURL, cfg.AlertSecret)
	}

	// Assigned only when redis is configured; a typed-nil *limiter.Limiter
	// would defeat the handler's nil check.
	var lim api.RateLimiter
	if cfg.RedisURL != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: parseRedisAddr(cfg.RedisURL)})
		lim = limiter.New(redisClient, cfg.RateLimitQPS, cfg.RateLimitConc)
	}

	var st *store.Store
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("db connect failed", zap.Error(err))
		}
		defer pool.Close()
		st = store.New(pool)
		if err := st.EnsureSchema(ctx); err != nil {
			logger.Fatal("db schema init failed", zap.Error(err))
		}
	}

	prober := &health.Prober{
		Upstream: client,
		Metrics:  m,
		Alerts:   alerts,
		Model:    cfg.ModelName,
		Version:  cfg.ModelVersion,
	}

	srv := &api.Server{
		Metrics:  m,
		Upstream: client,
		Prober:   prober,
		Limiter:  lim,
		Store:    st,
		Alerts:   alerts,
		Logger:   logger,
		Model:    cfg.ModelName,
		Version:  cfg.ModelVersion,
	}

	router := chi.NewRouter()
	router.Use(cors.Handler(cors.Options{AllowedOrigins: []string{"*"}, AllowedMethods: []string{"GET", "POST"}, AllowedHeaders: []string{"*"}}))
	router.Use(func(next http.Handler) http.Handler { return otelhttp.NewHandler(next, "http") })
	router.Use(middleware.RequestID)

	router.Post("/invocations", srv.Invocations)
	router.Handle("/metrics", m.Handler())
	router.Get("/health", srv.Health)
	router.Get("/requests", srv.Requests)

	addr := ":" + cfg.Port
	logger.Info("server starting",
		zap.String("addr", addr),
		zap.String("upstream", client.ScoreURL()),
		zap.String("model", cfg.ModelName),
		zap.String("model_version", cfg.ModelVersion),
	)
	if err := http.ListenAndServe(addr, router); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func parseRedisAddr(url string) string {
	// minimal parse for redis://host:port/db
	trimmed := url
	if len(trimmed) > 8 && trimmed[:8] == "redis://" {
		trimmed = trimmed[8:]
	}
	for i, ch := range trimmed {
		if ch == '/' {
			return trimmed[:i]
		}
	}
	return trimmed
}
