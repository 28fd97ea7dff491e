package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/carbonledger/emissions-cli/internal/db"
	"github.com/carbonledger/emissions-cli/internal/model"
	"github.com/carbonledger/emissions-cli/internal/resilience"
)

// PostgresStore implements Store using pgxpool. Writes are retried on
// transient failures so momentary connection drops do not lose audit
// entries.
type PostgresStore struct {
	pool  db.Pool
	retry resilience.Policy
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "audit postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "audit postgres: ping")
	}
	return &PostgresStore{pool: pool, retry: resilience.StoragePolicy()}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, retry: resilience.Policy{Attempts: 1}}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS calculation_audit (
	id              TEXT PRIMARY KEY,
	ts              TIMESTAMPTZ NOT NULL,
	activity_id     TEXT NOT NULL,
	method          TEXT NOT NULL,
	region          TEXT NOT NULL,
	quantity        DOUBLE PRECISION NOT NULL,
	unit            TEXT NOT NULL,
	factor_id       TEXT NOT NULL,
	factor_value    DOUBLE PRECISION NOT NULL,
	factor_source   TEXT NOT NULL,
	confidence      DOUBLE PRECISION NOT NULL,
	is_fallback     BOOLEAN NOT NULL,
	fallback_reason TEXT,
	co2e            DOUBLE PRECISION NOT NULL,
	co2e_unit       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_calculation_audit_activity ON calculation_audit(activity_id);
CREATE INDEX IF NOT EXISTS idx_calculation_audit_ts ON calculation_audit(ts);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "audit postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

var auditColumns = []string{
	"id", "ts", "activity_id", "method", "region", "quantity", "unit",
	"factor_id", "factor_value", "factor_source", "confidence",
	"is_fallback", "fallback_reason", "co2e", "co2e_unit",
}

func auditRow(e model.CalculationAuditEntry) []any {
	return []any{
		e.ID, e.Timestamp.UTC(), e.ActivityID, e.Method, e.Region, e.Quantity, e.Unit,
		e.FactorID, e.FactorValue, e.FactorSource, e.Confidence, e.IsFallback,
		e.FallbackReason, e.CO2e, e.CO2eUnit,
	}
}

func (s *PostgresStore) Append(ctx context.Context, e model.CalculationAuditEntry) error {
	err := s.retry.Do(ctx, "audit append", func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO calculation_audit
			 (id, ts, activity_id, method, region, quantity, unit, factor_id, factor_value, factor_source, confidence, is_fallback, fallback_reason, co2e, co2e_unit)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			auditRow(e)...,
		)
		return err
	})
	return eris.Wrap(err, "audit postgres: append")
}

// AppendBatch writes entries through the COPY protocol. COPY is atomic, so
// a failed batch leaves no partial trail behind.
func (s *PostgresStore) AppendBatch(ctx context.Context, entries []model.CalculationAuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, auditRow(e))
	}
	_, err := db.CopyRows(ctx, s.pool, "calculation_audit", auditColumns, rows)
	return eris.Wrap(err, "audit postgres: append batch")
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]model.CalculationAuditEntry, error) {
	query := `SELECT id, ts, activity_id, method, region, quantity, unit, factor_id, factor_value, factor_source, confidence, is_fallback, fallback_reason, co2e, co2e_unit
		FROM calculation_audit WHERE 1=1`
	var args []any

	if filter.ActivityID != "" {
		args = append(args, filter.ActivityID)
		query += fmt.Sprintf(` AND activity_id = $%d`, len(args))
	}
	if filter.Method != "" {
		args = append(args, filter.Method)
		query += fmt.Sprintf(` AND method = $%d`, len(args))
	}
	query += ` ORDER BY ts`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "audit postgres: list")
	}
	defer rows.Close()

	var out []model.CalculationAuditEntry
	for rows.Next() {
		var e model.CalculationAuditEntry
		var reason sql.NullString
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.ActivityID, &e.Method, &e.Region, &e.Quantity, &e.Unit,
			&e.FactorID, &e.FactorValue, &e.FactorSource, &e.Confidence, &e.IsFallback, &reason,
			&e.CO2e, &e.CO2eUnit); err != nil {
			return nil, eris.Wrap(err, "audit postgres: scan")
		}
		e.FallbackReason = reason.String
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "audit postgres: rows")
}

func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM calculation_audit`).Scan(&n)
	return n, eris.Wrap(err, "audit postgres: count")
}
