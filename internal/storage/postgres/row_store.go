// Package postgres provides a Postgres-backed output row store.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/people-email-enricher/internal/enrich"
)

const defaultTable = "enriched_rows"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for output rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// RowStore appends output rows to a Postgres table. Rows are never updated;
// a serial id preserves insertion order.
type RowStore struct {
	pool  pool
	table string
}

// NewRowStore connects to Postgres and ensures the output table exists.
func NewRowStore(ctx context.Context, cfg Config) (*RowStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store := &RowStore{pool: p, table: table}
	if err := store.ensureTable(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewRowStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRowStoreWithPool(ctx context.Context, p pool, table string) (*RowStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	store := &RowStore{pool: p, table: name}
	if err := store.ensureTable(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

func (s *RowStore) ensureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	street TEXT NOT NULL,
	city TEXT NOT NULL,
	dist TEXT NOT NULL,
	zip TEXT NOT NULL,
	email TEXT NOT NULL,
	status TEXT NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *RowStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Append inserts rows in a single statement, in order.
func (s *RowStore) Append(ctx context.Context, rows []enrich.OutputRow) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("row store is not configured")
	}
	if len(rows) == 0 {
		return nil
	}
	const cols = 8
	placeholders := make([]string, 0, len(rows))
	args := make([]any, 0, len(rows)*cols)
	for i, row := range rows {
		base := i * cols
		placeholders = append(placeholders, fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8))
		for _, v := range row.Values() {
			args = append(args, v)
		}
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (first_name, last_name, street, city, dist, zip, email, status) VALUES %s",
		s.table, strings.Join(placeholders, ","))
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert rows: %w", err)
	}
	return nil
}

// Load returns every row in insertion order.
func (s *RowStore) Load(ctx context.Context) ([]enrich.OutputRow, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("row store is not configured")
	}
	query := fmt.Sprintf(
		"SELECT first_name, last_name, street, city, dist, zip, email, status FROM %s ORDER BY id",
		s.table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select rows: %w", err)
	}
	defer rows.Close()

	out := []enrich.OutputRow{}
	for rows.Next() {
		var (
			row    enrich.OutputRow
			status string
		)
		if err := rows.Scan(&row.FirstName, &row.LastName, &row.Street, &row.City,
			&row.District, &row.ZIP, &row.Email, &status); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row.Status = enrich.Status(status)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
