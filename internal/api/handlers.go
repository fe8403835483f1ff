// Package api contains the HTTP handlers for the scoring proxy: the
// forwarding route, the health probe, and the audit-log listing.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"scoregate/internal/alert"
	"scoregate/internal/health"
	"scoregate/internal/metrics"
	"scoregate/internal/middleware"
	"scoregate/internal/store"
	"scoregate/internal/upstream"
	"scoregate/internal/util"
)

// Error types recorded on the errors counter. Fixed set; label cardinality
// stays bounded.
const (
	errInvalidBody  = "invalid_request_body"
	errUpstreamNon2 = "upstream_non_2xx"
	errConnect      = "connect_error"
	errTimeout      = "timeout"
	errUnexpected   = "unexpected_exception"
)

// RateLimiter gates admission to the scoring route. *limiter.Limiter
// satisfies it; a rejected Acquire must not be Released.
type RateLimiter interface {
	Allow(ctx context.Context, model, version string) (bool, error)
	Acquire(ctx context.Context, model, version string) (bool, error)
	Release(ctx context.Context, model, version string)
}

type Server struct {
	Metrics  *metrics.Metrics
	Upstream *upstream.Client
	Prober   *health.Prober
	Limiter  RateLimiter       // nil disables rate limiting
	Store    *store.Store      // nil disables the audit log
	Alerts   *alert.Dispatcher // nil disables webhook alerts
	Logger   *zap.Logger
	Model    string
	Version  string
}

// Invocations forwards the raw request body to the scoring server and relays
// the reply verbatim. Each inbound request results in at most one upstream
// dispatch; failures are converted into metrics plus a synthesized response.
func (s *Server) Invocations(w http.ResponseWriter, r *http.Request) {
	if s.Limiter != nil {
		allowed, err := s.Limiter.Allow(r.Context(), s.Model, s.Version)
		if err != nil || !allowed {
			s.Metrics.RateLimitedTotal.Inc()
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		acq, err := s.Limiter.Acquire(r.Context(), s.Model, s.Version)
		if err != nil || !acq {
			s.Metrics.RateLimitedTotal.Inc()
			http.Error(w, "too many concurrent requests", http.StatusTooManyRequests)
			return
		}
		defer s.Limiter.Release(r.Context(), s.Model, s.Version)
	}

	// The gauge must come back down on every exit path, including panics
	// unwinding through the handler and callers that disconnect mid-flight.
	s.Metrics.InProgress.WithLabelValues(s.Model, s.Version).Inc()
	defer s.Metrics.InProgress.WithLabelValues(s.Model, s.Version).Dec()
	start := time.Now()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.Metrics.RequestLatency.WithLabelValues(s.Model, s.Version).Observe(time.Since(start).Seconds())
		s.Metrics.RequestsTotal.WithLabelValues(s.Model, s.Version, "400").Inc()
		s.Metrics.RequestErrors.WithLabelValues(s.Model, s.Version, errInvalidBody).Inc()
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		s.audit(r, http.StatusBadRequest, time.Since(start), 0, "", errInvalidBody)
		return
	}
	s.Metrics.PayloadBytes.WithLabelValues(s.Model, s.Version).Observe(float64(len(body)))

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}

	resp, err := s.Upstream.Score(r.Context(), body, contentType)
	latency := time.Since(start)
	s.Metrics.RequestLatency.WithLabelValues(s.Model, s.Version).Observe(latency.Seconds())

	status := 0
	errType := ""
	if err == nil {
		status = resp.StatusCode
		if status < 200 || status >= 300 {
			errType = errUpstreamNon2
		}
		s.Metrics.UpstreamUp.WithLabelValues(s.Model, s.Version).Set(1)
		if s.Alerts != nil {
			s.Alerts.ObserveUpstream(true, "forward")
		}
	} else {
		switch f := upstream.AsFailure(err); f.Kind {
		case upstream.FailureConnect:
			status = http.StatusBadGateway
			errType = errConnect
			s.Metrics.UpstreamUp.WithLabelValues(s.Model, s.Version).Set(0)
			if s.Alerts != nil {
				s.Alerts.ObserveUpstream(false, "forward: connect failure")
			}
		case upstream.FailureTimeout:
			status = http.StatusGatewayTimeout
			errType = errTimeout
		default:
			status = http.StatusInternalServerError
			errType = errUnexpected
		}
	}

	s.Metrics.RequestsTotal.WithLabelValues(s.Model, s.Version, strconv.Itoa(status)).Inc()
	if errType != "" {
		s.Metrics.RequestErrors.WithLabelValues(s.Model, s.Version, errType).Inc()
	}

	if err == nil {
		ct := resp.ContentType
		if ct == "" {
			ct = "application/json"
		}
		w.Header().Set("Content-Type", ct)
		w.WriteHeader(resp.StatusCode)
		_, _ = w.Write(resp.Body)
	} else {
		// Short failure-kind body only; internals stay in the logs.
		var msg string
		switch errType {
		case errConnect:
			msg = "upstream scoring server unreachable"
		case errTimeout:
			msg = "upstream scoring request timed out"
		default:
			msg = "internal proxy error: " + errType
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(msg))
	}

	s.audit(r, status, latency, len(body), util.HashBytes(body), errType)

	s.Logger.Info("request completed",
		zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
		zap.String("model", s.Model),
		zap.String("model_version", s.Version),
		zap.Int("status", status),
		zap.Int64("latency_ms", latency.Milliseconds()),
		zap.Int("payload_bytes", len(body)),
		zap.String("error_type", errType),
	)
	if err != nil {
		s.Logger.Warn("upstream dispatch failed",
			zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
			zap.String("error_type", errType),
			zap.Error(err),
		)
	}
}

// Health runs one probe and reports the result. The status code is always
// 200; degradation is expressed in the body so collectors can scrape it.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	res := s.Prober.Probe(r.Context())
	if res.Reachable {
		writeJSON(w, map[string]interface{}{"status": "ok", "upstream": "reachable", "code": res.Code})
		return
	}
	writeJSON(w, map[string]interface{}{"status": "degraded", "upstream": "unreachable", "detail": res.Detail})
}

// Requests lists recent audit rows when the store is configured.
func (s *Server) Requests(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		http.Error(w, "request log not enabled", http.StatusNotFound)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	logs, err := s.Store.ListRecent(r.Context(), limit)
	if err != nil {
		http.Error(w, "failed to list requests", http.StatusInternalServerError)
		return
	}
	writeJSON(w, logs)
}

func (s *Server) audit(r *http.Request, status int, latency time.Duration, payloadBytes int, payloadHash, errType string) {
	if s.Store == nil {
		return
	}
	_ = s.Store.InsertRequestLog(r.Context(), store.RequestLog{
		RequestID:    middleware.RequestIDFromContext(r.Context()),
		Model:        s.Model,
		ModelVersion: s.Version,
		StatusCode:   status,
		LatencyMS:    latency.Milliseconds(),
		PayloadBytes: payloadBytes,
		PayloadHash:  payloadHash,
		ErrorCode:    errType,
		CreatedAt:    time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
