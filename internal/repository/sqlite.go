package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/hexlog/catan-server-go/internal/game"
)

// SQLiteStore keeps snapshots in a local SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens the database at path, creating its directory, and applies
// migrations.
func OpenSQLite(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &SQLiteStore{db: db, logger: logger}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if logger != nil {
		logger.Info("sqlite snapshot store opened", zap.String("path", cleanPath))
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
);`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	list, err := migrations("sqlite")
	if err != nil {
		return err
	}
	for _, m := range list {
		var found int
		err := s.db.QueryRow("SELECT 1 FROM schema_migrations WHERE name = ?", m.name).Scan(&found)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", m.name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration transaction %s: %w", m.name, err)
		}
		if _, err := tx.Exec(m.up); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", m.name, err)
		}
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO schema_migrations (name, applied_at) VALUES (?, ?)",
			m.name, time.Now().UTC().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.name, err)
		}
	}
	return nil
}

// Close releases the connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save inserts or replaces the snapshot of a game.
func (s *SQLiteStore) Save(ctx context.Context, snap *game.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r, err := encode(snap)
	if err != nil {
		return err
	}
	now := r.summary.UpdatedAt.UnixMilli()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO game_snapshots (
	game_id,
	seq,
	phase,
	winner,
	checksum,
	data,
	created_at,
	updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(game_id) DO UPDATE SET
	seq = excluded.seq,
	phase = excluded.phase,
	winner = excluded.winner,
	checksum = excluded.checksum,
	data = excluded.data,
	updated_at = excluded.updated_at
`,
		r.summary.GameID,
		r.summary.Seq,
		r.summary.Phase,
		r.summary.Winner,
		r.summary.Checksum,
		r.data,
		now,
		now,
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
func (s *SQLiteStore) Load(ctx context.Context, gameID string) (*game.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		checksum string
		data     []byte
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT checksum, data FROM game_snapshots WHERE game_id = ?", gameID,
	).Scan(&checksum, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("game %s: %w", gameID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", gameID, err)
	}
	return decode(gameID, checksum, data)
}

// Delete removes the snapshot of a game.
func (s *SQLiteStore) Delete(ctx context.Context, gameID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM game_snapshots WHERE game_id = ?", gameID)
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", gameID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", gameID, err)
	}
	if n == 0 {
		return fmt.Errorf("game %s: %w", gameID, ErrNotFound)
	}
	return nil
}

// List returns the most recently updated snapshots first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT
	game_id,
	seq,
	phase,
	winner,
	checksum,
	updated_at
FROM game_snapshots
ORDER BY updated_at DESC, game_id
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	summaries := make([]Summary, 0, limit)
	for rows.Next() {
		var (
			summary   Summary
			updatedAt int64
		)
		if err := rows.Scan(
			&summary.GameID,
			&summary.Seq,
			&summary.Phase,
			&summary.Winner,
			&summary.Checksum,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		summary.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return summaries, nil
}
