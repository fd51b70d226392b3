package db

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOptions tunes the billing pool. Zero values keep pgx defaults, except
// Schema which falls back to public.
type PoolOptions struct {
	MaxConns int32
	MinConns int32
	Schema   string
	AppName  string
}

var schemaPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidSchema reports whether name can be interpolated into search_path.
func ValidSchema(name string) bool {
	return schemaPattern.MatchString(name)
}

// NewPool opens a pgx pool whose connections resolve unqualified billing
// tables in opts.Schema, and verifies it with a ping.
func NewPool(ctx context.Context, databaseURL string, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	schema := opts.Schema
	if schema == "" {
		schema = "public"
	}
	if !ValidSchema(schema) {
		return nil, fmt.Errorf("invalid schema name %q", schema)
	}

	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	cfg.MinConns = opts.MinConns
	cfg.MaxConnIdleTime = 5 * time.Minute
	if opts.AppName != "" {
		cfg.ConnConfig.RuntimeParams["application_name"] = opts.AppName
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET search_path TO "+schema)
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database %s: %w", schema, err)
	}

	return pool, nil
}
