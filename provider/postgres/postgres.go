// Package postgres stores entries and counters in two Postgres tables via pgx.
// Unlike the in-memory providers it is durable, so it can be the only copy of
// the posts; the counter uses a single UPSERT … RETURNING, which is atomic.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	pr "github.com/unkn0wn-root/rwcache/provider"
)

// DB is the subset of *pgxpool.Pool the provider uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Config struct {
	Pool        *pgxpool.Pool
	TablePrefix string // default "rwcache"; tables are <prefix>_entries and <prefix>_counters
	ClosePool   bool   // set true only if this provider exclusively owns the pool
}

type Postgres struct {
	db        DB
	pool      *pgxpool.Pool
	closePool bool

	entries  string
	counters string
}

var (
	_ pr.Provider    = (*Postgres)(nil)
	_ pr.Counter     = (*Postgres)(nil)
	_ pr.BatchGetter = (*Postgres)(nil)
)

// New creates the tables if needed.
func New(ctx context.Context, cfg Config) (*Postgres, error) {
	if cfg.Pool == nil {
		return nil, errors.New("postgres provider: nil pool")
	}
	p := newWithDB(cfg.Pool, cfg.TablePrefix)
	p.pool, p.closePool = cfg.Pool, cfg.ClosePool
	if err := p.migrate(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func newWithDB(db DB, prefix string) *Postgres {
	if prefix == "" {
		prefix = "rwcache"
	}
	return &Postgres{
		db:       db,
		entries:  pgx.Identifier{prefix + "_entries"}.Sanitize(),
		counters: pgx.Identifier{prefix + "_counters"}.Sanitize(),
	}
}

func (p *Postgres) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + p.entries + ` (key TEXT PRIMARY KEY, value BYTEA NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS ` + p.counters + ` (key TEXT PRIMARY KEY, n BIGINT NOT NULL CHECK (n >= 0))`,
	}
	for _, s := range stmts {
		if _, err := p.db.Exec(ctx, s); err != nil {
			return fmt.Errorf("postgres provider: migrate: %w", err)
		}
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var b []byte
	err := p.db.QueryRow(ctx, `SELECT value FROM `+p.entries+` WHERE key = $1`, key).Scan(&b)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO `+p.entries+` (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	return err
}

func (p *Postgres) Del(ctx context.Context, key string) error {
	if _, err := p.db.Exec(ctx, `DELETE FROM `+p.entries+` WHERE key = $1`, key); err != nil {
		return err
	}
	_, err := p.db.Exec(ctx, `DELETE FROM `+p.counters+` WHERE key = $1`, key)
	return err
}

func (p *Postgres) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	rows, err := p.db.Query(ctx, `SELECT key, value FROM `+p.entries+` WHERE key = ANY($1)`, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			k string
			v []byte
		)
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (p *Postgres) Load(ctx context.Context, key string) (uint64, error) {
	var n int64
	err := p.db.QueryRow(ctx, `SELECT n FROM `+p.counters+` WHERE key = $1`, key).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}

func (p *Postgres) Add(ctx context.Context, key string, delta int64) (uint64, error) {
	var n int64
	err := p.db.QueryRow(ctx,
		`INSERT INTO `+p.counters+` AS c (key, n) VALUES ($1, GREATEST($2::BIGINT, 0))
		 ON CONFLICT (key) DO UPDATE SET n = GREATEST(c.n + $2::BIGINT, 0)
		 RETURNING n`, key, delta).Scan(&n)
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}

func (p *Postgres) Store(ctx context.Context, key string, n uint64) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO `+p.counters+` (key, n) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET n = EXCLUDED.n`, key, int64(n))
	return err
}

func (p *Postgres) Close(_ context.Context) error {
	if p.closePool && p.pool != nil {
		p.pool.Close()
	}
	return nil
}
