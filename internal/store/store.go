// Package store is the engine's control-store and time-series-store client,
// built on sqlx and lib/pq. It owns the two Postgres connections named in
// spec.md §6 (control store, time-series store — which may be the same
// database) and exposes the generic row-returning Query/TSDBQuery surface
// registry.ExecContext is built around, plus typed CRUD for flows,
// executions, the tag-dependency index, and library records.
package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/tagflow/engine/internal/config"
	"github.com/tagflow/engine/internal/flowerr"
	"github.com/tagflow/engine/internal/registry"
)

// Store holds the two sqlx connections. They're commonly the same physical
// database, but kept separate so a deployment can split hot telemetry
// writes onto its own instance without code changes.
type Store struct {
	control *sqlx.DB
	tsdb    *sqlx.DB
}

// Open connects both the control store and time-series store. When
// tsdbCfg.DSN is empty, the control connection is reused for both, matching
// the common single-database deployment.
func Open(dbCfg config.DatabaseConfig, tsdbCfg config.TSDBConfig) (*Store, error) {
	control, err := sqlx.Connect("postgres", dbCfg.DSN)
	if err != nil {
		return nil, flowerr.Wrap(flowerr.Transient, err, "open control store")
	}
	control.SetMaxOpenConns(orDefault(dbCfg.MaxOpenConns, 10))
	control.SetMaxIdleConns(orDefault(dbCfg.MaxIdleConns, 5))
	control.SetConnMaxLifetime(time.Duration(orDefault(dbCfg.ConnMaxLifeSec, 300)) * time.Second)

	tsdb := control
	if tsdbCfg.DSN != "" && tsdbCfg.DSN != dbCfg.DSN {
		tsdb, err = sqlx.Connect("postgres", tsdbCfg.DSN)
		if err != nil {
			return nil, flowerr.Wrap(flowerr.Transient, err, "open time-series store")
		}
		tsdb.SetMaxOpenConns(orDefault(tsdbCfg.MaxOpenConns, 10))
	}

	return &Store{control: control, tsdb: tsdb}, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Close releases both connections (a no-op twice over when they're the same
// handle).
func (s *Store) Close() error {
	if err := s.control.Close(); err != nil {
		return err
	}
	if s.tsdb != s.control {
		return s.tsdb.Close()
	}
	return nil
}

// Query runs sql against the control store, matching registry.ExecContext's
// contract: generic rows, column name to value.
func (s *Store) Query(ctx context.Context, sql string, args ...any) ([]registry.Row, error) {
	return queryRows(ctx, s.control, sql, args...)
}

// TSDBQuery runs sql against the time-series store.
func (s *Store) TSDBQuery(ctx context.Context, sql string, args ...any) ([]registry.Row, error) {
	return queryRows(ctx, s.tsdb, sql, args...)
}

func queryRows(ctx context.Context, db *sqlx.DB, query string, args ...any) ([]registry.Row, error) {
	rows, err := db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, flowerr.Wrap(flowerr.Transient, err, "query")
	}
	defer rows.Close()

	var out []registry.Row
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, flowerr.Wrap(flowerr.Transient, err, "scan row")
		}
		out = append(out, registry.Row(row))
	}
	return out, rows.Err()
}
