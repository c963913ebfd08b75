package game

import (
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNoReplay is returned when a game has neither a live nor a saved replay.
var ErrNoReplay = errors.New("replay not found")

// Replay is the line of play of one game: one snapshot per sequence number,
// oldest first. Undone steps are cut from the end, so frame i is always the
// state i actions after the first frame.
type Replay struct {
	GameID string
	Frames []*Snapshot
}

// Len returns the number of frames.
func (r *Replay) Len() int { return len(r.Frames) }

// Frame returns frame i.
func (r *Replay) Frame(i int) (*Snapshot, bool) {
	if i < 0 || i >= len(r.Frames) {
		return nil, false
	}
	return r.Frames[i], true
}

// SessionAt rebuilds a playable session from frame i.
func (r *Replay) SessionAt(i int, logger *zap.Logger) (*Session, error) {
	snap, ok := r.Frame(i)
	if !ok {
		return nil, fmt.Errorf("replay %s has %d frames, no frame %d", r.GameID, len(r.Frames), i)
	}
	return RestoreSession(snap, logger)
}

// add appends snap after dropping every frame at or past its sequence
// number, which is what an undo leaves behind.
func (r *Replay) add(snap *Snapshot) {
	n := len(r.Frames)
	for n > 0 && r.Frames[n-1].Seq >= snap.Seq {
		n--
	}
	r.Frames = append(r.Frames[:n], snap)
}

func (r *Replay) clone() *Replay {
	return &Replay{GameID: r.GameID, Frames: append([]*Snapshot(nil), r.Frames...)}
}

const replayFormat = 2

// replayHeader precedes the frames in a replay file.
type replayHeader struct {
	Format   int
	GameID   string
	SavedAt  time.Time
	Frames   int
	Checksum string
}

func replayPath(dir, gameID string) string {
	return filepath.Join(dir, gameID+".replay")
}

// writeReplay stores r as gzip-compressed gob. The file is written next to
// its final name and renamed, so a reader never sees a partial replay.
func writeReplay(dir string, r *Replay) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create replay directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, r.GameID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create replay file: %w", err)
	}
	defer os.Remove(tmp.Name())

	head := replayHeader{
		Format:  replayFormat,
		GameID:  r.GameID,
		SavedAt: time.Now().UTC(),
		Frames:  len(r.Frames),
	}
	if n := len(r.Frames); n > 0 {
		sum, err := r.Frames[n-1].ComputeChecksum()
		if err != nil {
			tmp.Close()
			return err
		}
		head.Checksum = sum.Hash
	}

	zw := gzip.NewWriter(tmp)
	enc := gob.NewEncoder(zw)
	err = enc.Encode(&head)
	for i := 0; err == nil && i < len(r.Frames); i++ {
		if err = enc.Encode(r.Frames[i]); err != nil {
			err = fmt.Errorf("frame %d: %w", i, err)
		}
	}
	if err == nil {
		err = zw.Close()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write replay %s: %w", r.GameID, err)
	}
	return os.Rename(tmp.Name(), replayPath(dir, r.GameID))
}

// readReplay loads a replay written by writeReplay and verifies the last
// frame against the stored checksum.
func readReplay(dir, gameID string) (*Replay, error) {
	f, err := os.Open(replayPath(dir, gameID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoReplay, gameID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open replay: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read replay %s: %w", gameID, err)
	}
	defer zr.Close()
	dec := gob.NewDecoder(zr)

	var head replayHeader
	if err := dec.Decode(&head); err != nil {
		return nil, fmt.Errorf("failed to decode replay header: %w", err)
	}
	if head.Format != replayFormat {
		return nil, fmt.Errorf("unsupported replay format %d", head.Format)
	}
	r := &Replay{GameID: head.GameID, Frames: make([]*Snapshot, 0, head.Frames)}
	for i := 0; i < head.Frames; i++ {
		snap := new(Snapshot)
		if err := dec.Decode(snap); err != nil {
			return nil, fmt.Errorf("failed to decode frame %d: %w", i, err)
		}
		r.Frames = append(r.Frames, snap)
	}
	if n := len(r.Frames); n > 0 {
		ok, err := r.Frames[n-1].VerifyChecksum(&Checksum{Hash: head.Checksum})
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("replay %s: final frame checksum mismatch", gameID)
		}
	}
	return r, nil
}

// ReplayRecorder follows live games and writes their replay to disk each
// time one of them ends. A game stays recorded until Close, so a win that is
// undone and played differently overwrites the earlier file.
type ReplayRecorder struct {
	logger *zap.Logger
	dir    string

	mu   sync.Mutex
	live map[string]*Replay
}

// NewReplayRecorder creates a recorder writing into dir.
func NewReplayRecorder(logger *zap.Logger, dir string) *ReplayRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplayRecorder{
		logger: logger,
		dir:    dir,
		live:   make(map[string]*Replay),
	}
}

// Record adds a frame to the game's replay, starting one if needed.
func (rr *ReplayRecorder) Record(snap *Snapshot) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	r, ok := rr.live[snap.GameID]
	if !ok {
		r = &Replay{GameID: snap.GameID}
		rr.live[snap.GameID] = r
		rr.logger.Debug("replay recording started",
			zap.String("game_id", snap.GameID),
			zap.Int64("seq", snap.Seq),
		)
	}
	r.add(snap)
}

// Save writes the game's current replay, replacing any earlier file.
func (rr *ReplayRecorder) Save(gameID string) error {
	rr.mu.Lock()
	r, ok := rr.live[gameID]
	if ok {
		r = r.clone()
	}
	rr.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s is not recorded", ErrNoReplay, gameID)
	}

	if err := writeReplay(rr.dir, r); err != nil {
		return err
	}
	rr.logger.Info("replay saved",
		zap.String("game_id", gameID),
		zap.Int("frames", r.Len()),
		zap.String("directory", rr.dir),
	)
	return nil
}

// Replay returns a copy of the live replay, or the saved one for a game
// that is no longer recorded.
func (rr *ReplayRecorder) Replay(gameID string) (*Replay, error) {
	rr.mu.Lock()
	r, ok := rr.live[gameID]
	if ok {
		r = r.clone()
	}
	rr.mu.Unlock()
	if ok {
		return r, nil
	}
	return readReplay(rr.dir, gameID)
}

// Recording reports whether the game is followed.
func (rr *ReplayRecorder) Recording(gameID string) bool {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	_, ok := rr.live[gameID]
	return ok
}

// Close stops following a game. A saved file is left in place.
func (rr *ReplayRecorder) Close(gameID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	delete(rr.live, gameID)
}
