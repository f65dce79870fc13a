package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/10aburnett/popuppromocodes-script/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool (or a pgxmock pool in tests).
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS visits (
	id           TEXT PRIMARY KEY,
	url          TEXT NOT NULL UNIQUE,
	status       TEXT NOT NULL,
	code         TEXT,
	has_discount BOOLEAN NOT NULL DEFAULT false,
	result       JSONB,
	error        TEXT,
	visited_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_visits_status ON visits(status);
CREATE INDEX IF NOT EXISTS idx_visits_code ON visits(code);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) RecordVisit(ctx context.Context, record model.VisitRecord) error {
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

	_, err = s.pool.Exec(ctx,
		`INSERT INTO visits (id, url, status, code, has_discount, result, error, visited_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT(url) DO UPDATE SET
			status = EXCLUDED.status,
			code = EXCLUDED.code,
			has_discount = EXCLUDED.has_discount,
			result = EXCLUDED.result,
			error = EXCLUDED.error,
			visited_at = EXCLUDED.visited_at`,
		record.ID, record.URL, string(record.Status), code, hasDiscount,
		resultJSON, record.Error, record.VisitedAt,
	)
	return eris.Wrapf(err, "postgres: record visit %s", record.URL)
}

func (s *PostgresStore) Seen(ctx context.Context, url string) (bool, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(1) FROM visits WHERE url = $1 AND status != $2`,
		url, string(model.VisitStatusFailed),
	).Scan(&n)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: seen %s", url)
	}
	return n > 0, nil
}

func (s *PostgresStore) GetVisit(ctx context.Context, url string) (*model.VisitRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, url, status, result, error, visited_at FROM visits WHERE url = $1`,
		url,
	)
	rec, err := scanPgVisit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (s *PostgresStore) ListVisits(ctx context.Context, filter VisitFilter) ([]model.VisitRecord, error) {
	query := `SELECT id, url, status, result, error, visited_at FROM visits WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}

	if filter.Status != "" {
		query += ` AND status = ` + arg(string(filter.Status))
	}
	if filter.FoundOnly {
		query += ` AND code IS NOT NULL AND code != ''`
	}
	if filter.MissingDiscount {
		query += ` AND code IS NOT NULL AND code != '' AND NOT has_discount`
	}
	query += ` ORDER BY visited_at ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list visits")
	}
	defer rows.Close()

	var records []model.VisitRecord
	for rows.Next() {
		rec, err := scanPgVisit(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: iterate visits")
}

func (s *PostgresStore) CountByStatus(ctx context.Context) (map[model.VisitStatus]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(1) FROM visits GROUP BY status`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count visits")
	}
	defer rows.Close()

	counts := make(map[model.VisitStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan count")
		}
		counts[model.VisitStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: iterate counts")
}

func scanPgVisit(row pgx.Row) (*model.VisitRecord, error) {
	var rec model.VisitRecord
	var status string
	var resultJSON, errText *string

	if err := row.Scan(&rec.ID, &rec.URL, &status, &resultJSON, &errText, &rec.VisitedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan visit")
	}
	rec.Status = model.VisitStatus(status)
	if errText != nil {
		rec.Error = *errText
	}
	if resultJSON != nil && *resultJSON != "" {
		result, err := unmarshalResult(*resultJSON)
		if err != nil {
			return nil, err
		}
		rec.Result = result
	}
	return &rec, nil
}
