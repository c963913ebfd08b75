// Package repository persists game snapshots.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hexlog/catan-server-go/internal/config"
	"github.com/hexlog/catan-server-go/internal/game"
)

//go:embed migrations
var migrationFS embed.FS

// ErrNotFound is returned when no snapshot is stored for a game.
var ErrNotFound = errors.New("snapshot not found")

// Summary describes a stored snapshot without decoding it.
type Summary struct {
	GameID    string
	Seq       int64
	Phase     string
	Winner    int
	Checksum  string
	UpdatedAt time.Time
}

// Store saves the latest snapshot of each game.
type Store interface {
	Save(ctx context.Context, snap *game.Snapshot) error
	Load(ctx context.Context, gameID string) (*game.Snapshot, error)
	Delete(ctx context.Context, gameID string) error
	List(ctx context.Context, limit int) ([]Summary, error)
	Close() error
}

// Open returns the store selected by cfg.Driver, or nil for "none".
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case "none":
		return nil, nil
	case "sqlite":
		store, err := OpenSQLite(cfg.Path, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres":
		store, err := OpenPostgres(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// row is the stored form of a snapshot.
type row struct {
	summary Summary
	data    []byte
}

func encode(snap *game.Snapshot) (row, error) {
	if snap == nil {
		return row{}, fmt.Errorf("snapshot is required")
	}
	if strings.TrimSpace(snap.GameID) == "" {
		return row{}, fmt.Errorf("game id is required")
	}
	sum, err := snap.ComputeChecksum()
	if err != nil {
		return row{}, err
	}
	data, err := snap.SerializeToBytes()
	if err != nil {
		return row{}, err
	}
	return row{
		summary: Summary{
			GameID:    snap.GameID,
			Seq:       snap.Seq,
			Phase:     snap.Frame.Phase.String(),
			Winner:    snap.Frame.Winner,
			Checksum:  sum.Hash,
			UpdatedAt: time.Now().UTC(),
		},
		data: data,
	}, nil
}

// decode restores a snapshot and checks it against the stored checksum.
func decode(gameID, checksum string, data []byte) (*game.Snapshot, error) {
	snap, err := game.DeserializeFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", gameID, err)
	}
	ok, err := snap.VerifyChecksum(&game.Checksum{Hash: checksum})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("snapshot %s does not match its stored checksum", gameID)
	}
	return snap, nil
}

// migrations returns the up sections of the embedded migrations for dialect,
// ordered by file name.
func migrations(dialect string) ([]migration, error) {
	root := "migrations/" + dialect
	entries, err := fs.ReadDir(migrationFS, root)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	out := make([]migration, 0, len(names))
	for _, name := range names {
		content, err := fs.ReadFile(migrationFS, root+"/"+name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		up := extractUp(string(content))
		if strings.TrimSpace(up) == "" {
			continue
		}
		out = append(out, migration{name: name, up: up})
	}
	return out, nil
}

type migration struct {
	name string
	up   string
}

// extractUp returns the SQL in the -- +migrate Up section.
func extractUp(content string) string {
	upIdx := strings.Index(content, "-- +migrate Up")
	if upIdx == -1 {
		return content
	}
	downIdx := strings.Index(content, "-- +migrate Down")
	if downIdx == -1 {
		return content[upIdx+len("-- +migrate Up"):]
	}
	return content[upIdx+len("-- +migrate Up") : downIdx]
}
