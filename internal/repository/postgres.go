package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hexlog/catan-server-go/internal/config"
	"github.com/hexlog/catan-server-go/internal/game"
)

// PostgresStore keeps snapshots in PostgreSQL.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects a pool and applies migrations.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
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

	connectCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{pool: pool, logger: logger}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if logger != nil {
		stats := pool.Stat()
		logger.Info("postgres snapshot store opened",
			zap.Int32("total_conns", stats.TotalConns()),
			zap.Int32("idle_conns", stats.IdleConns()),
			zap.Int32("max_conns", stats.MaxConns()),
		)
	}
	return store, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
    name TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	list, err := migrations("postgres")
	if err != nil {
		return err
	}
	for _, m := range list {
		err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx,
				"INSERT INTO schema_migrations (name) VALUES ($1) ON CONFLICT (name) DO NOTHING", m.name)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return nil
			}
			_, err = tx.Exec(ctx, m.up)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// Save inserts or replaces the snapshot of a game.
func (s *PostgresStore) Save(ctx context.Context, snap *game.Snapshot) error {
	r, err := encode(snap)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO game_snapshots (game_id, seq, phase, winner, checksum, data, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
ON CONFLICT (game_id) DO UPDATE SET
	seq = EXCLUDED.seq,
	phase = EXCLUDED.phase,
	winner = EXCLUDED.winner,
	checksum = EXCLUDED.checksum,
	data = EXCLUDED.data,
	updated_at = EXCLUDED.updated_at
`,
		r.summary.GameID,
		r.summary.Seq,
		r.summary.Phase,
		r.summary.Winner,
		r.summary.Checksum,
		r.data,
		r.summary.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.GameID, err)
	}
	if s.logger != nil {
		s.logger.Debug("snapshot saved",
			zap.String("game_id", snap.GameID),
			zap.Int64("seq", snap.Seq),
			zap.Int("bytes", len(r.data)),
		)
	}
	return nil
}

// Load returns the stored snapshot of a game.
func (s *PostgresStore) Load(ctx context.Context, gameID string) (*game.Snapshot, error) {
	var (
		checksum string
		data     []byte
	)
	err := s.pool.QueryRow(ctx,
		"SELECT checksum, data FROM game_snapshots WHERE game_id = $1", gameID,
	).Scan(&checksum, &data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("game %s: %w", gameID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", gameID, err)
	}
	return decode(gameID, checksum, data)
}

// Delete removes the snapshot of a game.
func (s *PostgresStore) Delete(ctx context.Context, gameID string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM game_snapshots WHERE game_id = $1", gameID)
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", gameID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("game %s: %w", gameID, ErrNotFound)
	}
	return nil
}

// List returns the most recently updated snapshots first.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := s.pool.Query(ctx, `
SELECT game_id, seq, phase, winner, checksum, updated_at
FROM game_snapshots
ORDER BY updated_at DESC, game_id
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	summaries := make([]Summary, 0, limit)
	for rows.Next() {
		var summary Summary
		if err := rows.Scan(
			&summary.GameID,
			&summary.Seq,
			&summary.Phase,
			&summary.Winner,
			&summary.Checksum,
			&summary.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return summaries, nil
}
