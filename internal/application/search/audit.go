package search

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/KeyIP-Intelligence/internal/infrastructure/monitoring/logging"
)

// AuditEvent is one recorded fingerprint engine operation.
type AuditEvent struct {
	Kind             string // "load", "search", "search_batch", "unload"
	QueryID          string
	PopulationSize   int
	ResultCount      int
	Threshold        float64
	DurationMillis   int64
	OccurredAt       time.Time
}

// AuditLog persists AuditEvents to Postgres. It is optional — a nil
// *AuditLog silently drops every Record call, matching the
// fingerprint.audit.enabled configuration gate.
type AuditLog struct {
	pool *pgxpool.Pool
	log  logging.Logger
}

// NewAuditLog wires an AuditLog around an already-open connection pool.
func NewAuditLog(pool *pgxpool.Pool, log logging.Logger) *AuditLog {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &AuditLog{pool: pool, log: log}
}

// EnsureSchema creates the audit table if it does not already exist. Safe to
// call on every startup.
func (a *AuditLog) EnsureSchema(ctx context.Context) error {
	if a == nil || a.pool == nil {
		return nil
	}
	const ddl = `
CREATE TABLE IF NOT EXISTS fingerprint_audit_log (
	id              BIGSERIAL PRIMARY KEY,
	kind            TEXT NOT NULL,
	query_id        TEXT NOT NULL DEFAULT '',
	population_size INTEGER NOT NULL DEFAULT 0,
	result_count    INTEGER NOT NULL DEFAULT 0,
	threshold       DOUBLE PRECISION NOT NULL DEFAULT 0,
	duration_millis BIGINT NOT NULL DEFAULT 0,
	occurred_at     TIMESTAMPTZ NOT NULL
)`
	_, err := a.pool.Exec(ctx, ddl)
	return err
}

// Record appends one AuditEvent to the log. Failures are logged, not
// returned — auditing must never fail a caller's load/search operation.
func (a *AuditLog) Record(ctx context.Context, ev AuditEvent) {
	if a == nil || a.pool == nil {
		return
	}
	const insert = `
INSERT INTO fingerprint_audit_log
	(kind, query_id, population_size, result_count, threshold, duration_millis, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	err := a.withTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insert,
			ev.Kind, ev.QueryID, ev.PopulationSize, ev.ResultCount, ev.Threshold, ev.DurationMillis, ev.OccurredAt)
		return err
	})
	if err != nil {
		a.log.Warn("fingerprint audit record failed", logging.String("kind", ev.Kind), logging.Err(err))
	}
}

func (a *AuditLog) withTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// RecordLoad is a convenience wrapper for the "load" audit event.
func (a *AuditLog) RecordLoad(ctx context.Context, populationSize int, duration time.Duration) {
	a.Record(ctx, AuditEvent{
		Kind:           "load",
		PopulationSize: populationSize,
		DurationMillis: duration.Milliseconds(),
		OccurredAt:     time.Now(),
	})
}

// RecordSearch is a convenience wrapper for the "search" audit event.
func (a *AuditLog) RecordSearch(ctx context.Context, queryID string, threshold float64, resultCount int, duration time.Duration) {
	a.Record(ctx, AuditEvent{
		Kind:           "search",
		QueryID:        queryID,
		Threshold:      threshold,
		ResultCount:    resultCount,
		DurationMillis: duration.Milliseconds(),
		OccurredAt:     time.Now(),
	})
}
