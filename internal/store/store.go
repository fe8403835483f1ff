// Package store persists a best-effort audit trail of forwarded inference
// requests in Postgres. The proxy works fully without it; every write is
// fire-and-forget from the handler's point of view.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

type RequestLog struct {
	ID           int       `json:"id"`
	RequestID    string    `json:"request_id"`
	Model        string    `json:"model"`
	ModelVersion string    `json:"model_version"`
	StatusCode   int       `json:"status_code"`
	LatencyMS    int64     `json:"latency_ms"`
	PayloadBytes int       `json:"payload_bytes"`
	PayloadHash  string    `json:"payload_hash"`
	ErrorCode    string    `json:"error_code"`
	CreatedAt    time.Time `json:"created_at"`
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{DB: pool}
}

// EnsureSchema creates the audit table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.DB.Exec(ctx, `CREATE TABLE IF NOT EXISTS request_logs (
		id SERIAL PRIMARY KEY,
		request_id TEXT NOT NULL,
		model TEXT NOT NULL,
		model_version TEXT NOT NULL,
		status_code INT NOT NULL,
		latency_ms BIGINT NOT NULL,
		payload_bytes INT NOT NULL,
		payload_hash TEXT NOT NULL,
		error_code TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`)
	return err
}

func (s *Store) InsertRequestLog(ctx context.Context, rl RequestLog) error {
	_, err := s.DB.Exec(ctx,
		`INSERT INTO request_logs (request_id, model, model_version, status_code, latency_ms, payload_bytes, payload_hash, error_code, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		rl.RequestID, rl.Model, rl.ModelVersion, rl.StatusCode, rl.LatencyMS,
		rl.PayloadBytes, rl.PayloadHash, rl.ErrorCode, rl.CreatedAt)
	return err
}

// ListRecent returns the newest audit rows, most recent first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]RequestLog, error) {
	rows, err := s.DB.Query(ctx,
		`SELECT id, request_id, model, model_version, status_code, latency_ms, payload_bytes, payload_hash, error_code, created_at
		 FROM request_logs ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]RequestLog, 0, limit)
	for rows.Next() {
		var rl RequestLog
		if err := rows.Scan(&rl.ID, &rl.RequestID, &rl.Model, &rl.ModelVersion, &rl.StatusCode,
			&rl.LatencyMS, &rl.PayloadBytes, &rl.PayloadHash, &rl.ErrorCode, &rl.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rl)
	}
	return out, rows.Err()
}
