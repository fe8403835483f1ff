// Package middleware carries the request-scoped plumbing shared by all routes.
package middleware

import (
	"context"
	"net/http"

	"github.com/segmentio/ksuid"
)

type contextKey string

const ctxRequestID contextKey = "request_id"

// RequestIDFromContext returns the ID assigned by RequestID, or "" when the
// middleware did not run.
func RequestIDFromContext(ctx context.Context) string {
	val := ctx.Value(ctxRequestID)
	if val == nil {
		return ""
	}
	id, _ := val.(string)
	return id
}

// RequestID assigns a ksuid to each request, honoring an X-Request-ID the
// caller already set, and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = ksuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), ctxRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
