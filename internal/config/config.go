package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port            string
	UpstreamURL     string
	ModelName       string
	ModelVersion    string
	ConnectTimeout  time.Duration
	RequestTimeout  time.Duration
	LatencyBuckets  []float64
	PayloadBuckets  []float64
	RedisURL        string
	RateLimitQPS    int
	RateLimitConc   int
	DatabaseURL     string
	AlertWebhookURL string
	AlertSecret     string
	OtelEndpoint    string
	OtelServiceName string
}

var (
	defaultLatencyBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	defaultPayloadBuckets = []float64{100, 500, 1_000, 5_000, 10_000, 50_000, 100_000, 500_000, 1_000_000}
)

func Load() Config {
	return Config{
		Port:            getEnv("PORT", "8080"),
		UpstreamURL:     getEnv("UPSTREAM_URL", "http://127.0.0.1:5001/invocations"),
		ModelName:       getEnv("MODEL_NAME", "creditscoring"),
		ModelVersion:    getEnv("MODEL_VERSION", "unversioned"),
		ConnectTimeout:  getEnvDuration("CONNECT_TIMEOUT", 5*time.Second),
		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		LatencyBuckets:  getEnvFloats("LATENCY_BUCKETS", defaultLatencyBuckets),
		PayloadBuckets:  getEnvFloats("PAYLOAD_BUCKETS", defaultPayloadBuckets),
		RedisURL:        getEnv("REDIS_URL", ""),
		RateLimitQPS:    getEnvInt("RATE_LIMIT_QPS", 50),
		RateLimitConc:   getEnvInt("RATE_LIMIT_CONCURRENCY", 25),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		AlertWebhookURL: getEnv("ALERT_WEBHOOK_URL", ""),
		AlertSecret:     getEnv("ALERT_WEBHOOK_SECRET", ""),
		OtelEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
		OtelServiceName: getEnv("OTEL_SERVICE_NAME", "scoregate"),
	}
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return parsed
}

// getEnvFloats parses a comma-separated list of ascending bucket boundaries.
// The default is kept whole when any element fails to parse.
func getEnvFloats(key string, def []float64) []float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return def
		}
		out = append(out, f)
	}
	return out
}
