package game

import (
	"bytes"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/hexlog/catan-server-go/internal/game/board"
	"github.com/hexlog/catan-server-go/internal/game/ledger"
)

// SnapshotVersion is bumped whenever the Snapshot layout changes.
const SnapshotVersion = 1

// Snapshot is a complete, self-contained copy of a session. History is not
// included; a restored session starts with empty undo and redo stacks and
// reports Depth through RestoredDepth.
type Snapshot struct {
	Version   int
	GameID    string
	Config    Config
	Layout    board.Layout
	Occupancy board.Occupancy
	Ledger    ledger.State
	Frame     Frame
	Seq       int64
	Depth     int
	Timestamp time.Time
}

// Checksum identifies the game state held by a snapshot.
type Checksum struct {
	Hash      string
	Timestamp string
	Version   int
}

// Snapshot captures the session.
func (s *Session) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

func (s *Session) snapshot() *Snapshot {
	cfg := s.cfg
	cfg.Layout = nil
	cfg.Players = append([]string(nil), s.cfg.Players...)
	return &Snapshot{
		Version:   SnapshotVersion,
		GameID:    s.cfg.GameID,
		Config:    cfg,
		Layout:    s.board.Layout(),
		Occupancy: s.board.Occupancy(),
		Ledger:    s.ledger.State(),
		Frame:     s.frame(),
		Seq:       s.seq,
		Depth:     s.history.Depth(),
		Timestamp: time.Now().UTC(),
	}
}

// Checksum returns the checksum of the session's current state.
func (s *Session) Checksum() (*Checksum, error) {
	return s.Snapshot().ComputeChecksum()
}

// RestoreSession rebuilds a session from a snapshot.
func RestoreSession(snap *Snapshot, logger *zap.Logger) (*Session, error) {
	if snap == nil {
		return nil, fmt.Errorf("nil snapshot")
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version: %d", snap.Version)
	}
	cfg, err := snap.Config.withDefaults()
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot config: %w", err)
	}
	layout := snap.Layout
	cfg.Layout = &layout

	b, err := board.New(layout)
	if err != nil {
		return nil, fmt.Errorf("failed to build board: %w", err)
	}
	if err := b.RestoreOccupancy(snap.Occupancy); err != nil {
		return nil, fmt.Errorf("failed to restore occupancy: %w", err)
	}
	l, err := ledger.FromState(snap.Ledger)
	if err != nil {
		return nil, fmt.Errorf("failed to restore ledger: %w", err)
	}
	if l.Seats() != len(cfg.Players) {
		return nil, fmt.Errorf("ledger has %d seats, config %d players", l.Seats(), len(cfg.Players))
	}

	s := newSession(cfg, logger, b, l, rand.NewPCG(0, 0))
	if err := s.restoreFrame(snap.Frame); err != nil {
		return nil, err
	}
	s.seq = snap.Seq
	s.restored = snap.Depth
	if err := s.checkInvariants(); err != nil {
		return nil, fmt.Errorf("snapshot state is inconsistent: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("game restored",
			zap.String("game_id", cfg.GameID),
			zap.Int64("seq", s.seq),
			zap.String("phase", s.phase.String()),
		)
	}
	return s, nil
}

// ComputeChecksum hashes a canonical text form of the snapshot. The
// timestamp and history depth are excluded.
func (snap *Snapshot) ComputeChecksum() (*Checksum, error) {
	hash, err := blake2b.New256(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create hash: %w", err)
	}
	if _, err := hash.Write([]byte(snap.canonical())); err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}
	return &Checksum{
		Hash:      hex.EncodeToString(hash.Sum(nil)),
		Timestamp: snap.Timestamp.Format("2006-01-02T15:04:05.000Z"),
		Version:   snap.Version,
	}, nil
}

// VerifyChecksum reports whether the snapshot still matches expected.
func (snap *Snapshot) VerifyChecksum(expected *Checksum) (bool, error) {
	computed, err := snap.ComputeChecksum()
	if err != nil {
		return false, fmt.Errorf("failed to compute checksum: %w", err)
	}
	return computed.Hash == expected.Hash, nil
}

func (snap *Snapshot) canonical() string {
	var buf strings.Builder
	cfg := snap.Config
	fmt.Fprintf(&buf, "GAME:%s|%d|%d\n", snap.GameID, snap.Version, snap.Seq)
	fmt.Fprintf(&buf, "PLAYERS:%s\n", strings.Join(cfg.Players, ","))
	fmt.Fprintf(&buf, "RULES:%d|%d|%d|%d|%d\n",
		cfg.VictoryTarget, cfg.MinLongestRoad, cfg.MinLargestArmy, cfg.Seed[0], cfg.Seed[1])

	fmt.Fprintf(&buf, "TERRAIN:%v\n", snap.Layout.Terrains)
	fmt.Fprintf(&buf, "TOKENS:%v\n", snap.Layout.Tokens)
	for _, p := range snap.Layout.Ports {
		fmt.Fprintf(&buf, "PORT:%d|%s|%s\n", p.Tile, p.Side, p.Resource)
	}

	buf.WriteString("BUILDINGS:")
	for v, b := range snap.Occupancy.Buildings {
		if !b.Empty() {
			fmt.Fprintf(&buf, "%d=%d/%s,", v, b.Owner, b.Kind)
		}
	}
	buf.WriteString("\nROADS:")
	for e, owner := range snap.Occupancy.Roads {
		if owner != board.Nobody {
			fmt.Fprintf(&buf, "%d=%d,", e, owner)
		}
	}
	fmt.Fprintf(&buf, "\nROBBER:%d\n", snap.Occupancy.Robber)

	st := snap.Ledger
	fmt.Fprintf(&buf, "BANK:%v\n", [5]int(st.Bank))
	fmt.Fprintf(&buf, "PILE:%v|%d\n", st.Pile, st.Cursor)
	fmt.Fprintf(&buf, "TITLES:%d|%d\n", st.LongestRoad, st.LargestArmy)
	for seat, acct := range st.Accounts {
		fmt.Fprintf(&buf, "SEAT:%d|%v|%v|%v|%v|%t|%d|%d|%d|%d\n",
			seat,
			[5]int(acct.Hand),
			[5]int(acct.Cards),
			[5]int(acct.Fresh),
			[5]int(acct.Played),
			acct.PlayedThisTurn,
			acct.Settlements,
			acct.Cities,
			acct.Roads,
			acct.VictoryPoints,
		)
	}

	f := snap.Frame
	fmt.Fprintf(&buf, "FRAME:%s|%d|%d|%d|%v|%d|%s|%d|%d|%v|%d\n",
		f.Phase,
		f.Order.Current,
		f.Order.Turn,
		f.Order.Seats,
		f.Dice,
		f.Robber,
		f.SetupStep,
		f.SetupAnchor,
		f.FreeRoads,
		f.Discards,
		f.Winner,
	)
	if f.Offer != nil {
		o := f.Offer
		fmt.Fprintf(&buf, "OFFER:%s|%d|%d|%v|%v|%d\n", o.ID, o.From, o.To, [5]int(o.Give), [5]int(o.Want), o.Round)
	}
	fmt.Fprintf(&buf, "RNG:%s\n", hex.EncodeToString(f.RNG))
	return buf.String()
}

// SerializeToBytes gob-encodes the snapshot.
func (snap *Snapshot) SerializeToBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeFromBytes decodes a snapshot written by SerializeToBytes.
func DeserializeFromBytes(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

// ValidateSerializationRoundtrip checks that a snapshot survives encoding
// with an unchanged checksum.
func ValidateSerializationRoundtrip(snap *Snapshot) error {
	original, err := snap.ComputeChecksum()
	if err != nil {
		return fmt.Errorf("failed to compute original checksum: %w", err)
	}
	data, err := snap.SerializeToBytes()
	if err != nil {
		return fmt.Errorf("failed to serialize: %w", err)
	}
	decoded, err := DeserializeFromBytes(data)
	if err != nil {
		return fmt.Errorf("failed to deserialize: %w", err)
	}
	roundtrip, err := decoded.ComputeChecksum()
	if err != nil {
		return fmt.Errorf("failed to compute deserialized checksum: %w", err)
	}
	if original.Hash != roundtrip.Hash {
		return fmt.Errorf("checksum mismatch: original=%s, deserialized=%s", original.Hash, roundtrip.Hash)
	}
	return nil
}
