package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/carbonledger/emissions-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode. database/sql serializes writes through the single connection pool,
// which is all the atomicity the append-only trail needs.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "audit sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "audit sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS calculation_audit (
	id              TEXT PRIMARY KEY,
	ts              DATETIME NOT NULL,
	activity_id     TEXT NOT NULL,
	method          TEXT NOT NULL,
	region          TEXT NOT NULL,
	quantity        REAL NOT NULL,
	unit            TEXT NOT NULL,
	factor_id       TEXT NOT NULL,
	factor_value    REAL NOT NULL,
	factor_source   TEXT NOT NULL,
	confidence      REAL NOT NULL,
	is_fallback     INTEGER NOT NULL,
	fallback_reason TEXT,
	co2e            REAL NOT NULL,
	co2e_unit       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_calculation_audit_activity ON calculation_audit(activity_id);
CREATE INDEX IF NOT EXISTS idx_calculation_audit_ts ON calculation_audit(ts);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "audit sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Append(ctx context.Context, e model.CalculationAuditEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO calculation_audit
		 (id, ts, activity_id, method, region, quantity, unit, factor_id, factor_value, factor_source, confidence, is_fallback, fallback_reason, co2e, co2e_unit)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp.UTC(), e.ActivityID, e.Method, e.Region, e.Quantity, e.Unit,
		e.FactorID, e.FactorValue, e.FactorSource, e.Confidence, boolToInt(e.IsFallback),
		e.FallbackReason, e.CO2e, e.CO2eUnit,
	)
	return eris.Wrap(err, "audit sqlite: append")
}

// AppendBatch writes all entries in a single transaction so a partial batch
// is never visible.
func (s *SQLiteStore) AppendBatch(ctx context.Context, entries []model.CalculationAuditEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "audit sqlite: begin batch")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO calculation_audit
		 (id, ts, activity_id, method, region, quantity, unit, factor_id, factor_value, factor_source, confidence, is_fallback, fallback_reason, co2e, co2e_unit)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "audit sqlite: prepare batch")
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.Timestamp.UTC(), e.ActivityID, e.Method, e.Region, e.Quantity, e.Unit,
			e.FactorID, e.FactorValue, e.FactorSource, e.Confidence, boolToInt(e.IsFallback),
			e.FallbackReason, e.CO2e, e.CO2eUnit,
		); err != nil {
			return eris.Wrap(err, "audit sqlite: append batch")
		}
	}

	return eris.Wrap(tx.Commit(), "audit sqlite: commit batch")
}

func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]model.CalculationAuditEntry, error) {
	query := `SELECT id, ts, activity_id, method, region, quantity, unit, factor_id, factor_value, factor_source, confidence, is_fallback, fallback_reason, co2e, co2e_unit
		FROM calculation_audit WHERE 1=1`
	var args []any

	if filter.ActivityID != "" {
		query += ` AND activity_id = ?`
		args = append(args, filter.ActivityID)
	}
	if filter.Method != "" {
		query += ` AND method = ?`
		args = append(args, filter.Method)
	}
	query += ` ORDER BY ts`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "audit sqlite: list")
	}
	defer rows.Close()

	var out []model.CalculationAuditEntry
	for rows.Next() {
		var e model.CalculationAuditEntry
		var ts time.Time
		var fallback int
		var reason sql.NullString
		if err := rows.Scan(&e.ID, &ts, &e.ActivityID, &e.Method, &e.Region, &e.Quantity, &e.Unit,
			&e.FactorID, &e.FactorValue, &e.FactorSource, &e.Confidence, &fallback, &reason,
			&e.CO2e, &e.CO2eUnit); err != nil {
			return nil, eris.Wrap(err, "audit sqlite: scan")
		}
		e.Timestamp = ts
		e.IsFallback = fallback != 0
		e.FallbackReason = reason.String
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "audit sqlite: rows")
}

func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM calculation_audit`).Scan(&n)
	return n, eris.Wrap(err, "audit sqlite: count")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
