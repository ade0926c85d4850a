// Package postgres loads and saves the record set from a Postgres table of
// jsonb documents.
package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/review-catalog/internal/bundle"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the connection pool and the record table.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
	// Meta is returned with every load; the table holds records only.
	Meta bundle.Meta
}

type pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Source reads rows shaped as (id text, position int, doc jsonb).
type Source struct {
	pool   pool
	table  string
	meta   bundle.Meta
	logger *zap.Logger
}

// New connects a pool and returns a Source.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Source, error) {
	if cfg.DSN == "" {
		return nil, errors.New("source.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	src, err := NewWithPool(p, cfg.Table, cfg.Meta, logger)
	if err != nil {
		p.Close()
		return nil, err
	}
	return src, nil
}

// NewWithPool builds a Source over an existing pool.
func NewWithPool(p pool, table string, meta bundle.Meta, logger *zap.Logger) (*Source, error) {
	if p == nil {
		return nil, errors.New("pool is required")
	}
	if table == "" {
		table = "catalog_records"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{pool: p, table: table, meta: meta, logger: logger}, nil
}

// Close releases the pool.
func (s *Source) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Load returns every document in position order. An empty table is
// reported as bundle.ErrNotFound.
func (s *Source) Load(ctx context.Context) (bundle.Bundle, error) {
	query := fmt.Sprintf(`SELECT doc FROM %s ORDER BY position, id`, s.table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return bundle.Bundle{}, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return bundle.Bundle{}, fmt.Errorf("scan record: %w", err)
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var row map[string]any
		if err := dec.Decode(&row); err != nil {
			s.logger.Warn("skipping undecodable record document", zap.Error(err))
			continue
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return bundle.Bundle{}, fmt.Errorf("iterate records: %w", err)
	}
	if len(out) == 0 {
		return bundle.Bundle{}, fmt.Errorf("table %s: %w", s.table, bundle.ErrNotFound)
	}
	return bundle.Bundle{Meta: s.meta, Rows: out}, nil
}

// Save replaces the table contents in one transaction. Rows without a
// string id are skipped.
func (s *Source) Save(ctx context.Context, b bundle.Bundle) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, s.table)); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	insert := fmt.Sprintf(`INSERT INTO %s (id, position, doc) VALUES ($1, $2, $3)`, s.table)
	for i, row := range b.Rows {
		id, _ := row["id"].(string)
		if id == "" {
			continue
		}
		doc, mErr := json.Marshal(row)
		if mErr != nil {
			err = fmt.Errorf("marshal record %s: %w", id, mErr)
			return err
		}
		if _, err = tx.Exec(ctx, insert, id, i, doc); err != nil {
			return fmt.Errorf("insert record %s: %w", id, err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
