package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/10aburnett/popuppromocodes-script/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS visits (
	id           TEXT PRIMARY KEY,
	url          TEXT NOT NULL UNIQUE,
	status       TEXT NOT NULL,
	code         TEXT,
	has_discount INTEGER NOT NULL DEFAULT 0,
	result       TEXT,
	error        TEXT,
	visited_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_visits_status ON visits(status);
CREATE INDEX IF NOT EXISTS idx_visits_code ON visits(code);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) RecordVisit(ctx context.Context, record model.VisitRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.VisitedAt.IsZero() {
		record.VisitedAt = time.Now().UTC()
	}

	code, hasDiscount, resultJSON, err := flattenResult(record.Result)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO visits (id, url, status, code, has_discount, result, error, visited_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET
			status = excluded.status,
			code = excluded.code,
			has_discount = excluded.has_discount,
			result = excluded.result,
			error = excluded.error,
			visited_at = excluded.visited_at`,
		record.ID, record.URL, string(record.Status), code, hasDiscount,
		resultJSON, record.Error, record.VisitedAt,
	)
	return eris.Wrapf(err, "sqlite: record visit %s", record.URL)
}

func (s *SQLiteStore) Seen(ctx context.Context, url string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM visits WHERE url = ? AND status != ?`,
		url, string(model.VisitStatusFailed),
	).Scan(&n)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: seen %s", url)
	}
	return n > 0, nil
}

func (s *SQLiteStore) GetVisit(ctx context.Context, url string) (*model.VisitRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, url, status, result, error, visited_at FROM visits WHERE url = ?`,
		url,
	)
	rec, err := scanVisit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

func (s *SQLiteStore) ListVisits(ctx context.Context, filter VisitFilter) ([]model.VisitRecord, error) {
	query := `SELECT id, url, status, result, error, visited_at FROM visits WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.FoundOnly {
		query += ` AND code IS NOT NULL AND code != ''`
	}
	if filter.MissingDiscount {
		query += ` AND code IS NOT NULL AND code != '' AND has_discount = 0`
	}
	query += ` ORDER BY visited_at ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list visits")
	}
	defer rows.Close()

	var records []model.VisitRecord
	for rows.Next() {
		rec, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: iterate visits")
}

func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[model.VisitStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(1) FROM visits GROUP BY status`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count visits")
	}
	defer rows.Close()

	counts := make(map[model.VisitStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan count")
		}
		counts[model.VisitStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: iterate counts")
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanVisit(row scanner) (*model.VisitRecord, error) {
	var rec model.VisitRecord
	var status string
	var resultJSON, errText sql.NullString

	if err := row.Scan(&rec.ID, &rec.URL, &status, &resultJSON, &errText, &rec.VisitedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, eris.Wrap(err, "sqlite: scan visit")
	}
	rec.Status = model.VisitStatus(status)
	rec.Error = errText.String
	if resultJSON.Valid && resultJSON.String != "" {
		var result model.ExtractionResult
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
		rec.Result = &result
	}
	return &rec, nil
}

// flattenResult derives the indexed columns from a result payload.
func flattenResult(result *model.ExtractionResult) (code string, hasDiscount bool, resultJSON any, err error) {
	if result == nil {
		return "", false, nil, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return "", false, nil, eris.Wrap(err, "store: marshal result")
	}
	return result.Code, result.Discount.Present(), string(data), nil
}
