package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hexlog/catan-server-go/internal/game/board"
	"github.com/hexlog/catan-server-go/internal/game/resource"
	"github.com/hexlog/catan-server-go/internal/game/rules"
)

func TestSnapshotSerializationRoundtrip(t *testing.T) {
	s := newTestSession(t, Config{Shuffle: true, Seed: [2]uint64{3, 5}})
	completeSetup(t, s)

	snap := s.Snapshot()
	require.NoError(t, ValidateSerializationRoundtrip(snap))

	data, err := snap.SerializeToBytes()
	require.NoError(t, err)
	decoded, err := DeserializeFromBytes(data)
	require.NoError(t, err)

	assert.Equal(t, snap.GameID, decoded.GameID)
	assert.Equal(t, snap.Layout, decoded.Layout)
	assert.Equal(t, snap.Frame.Phase, decoded.Frame.Phase)
	assert.Equal(t, int64(16), decoded.Seq)
}

func TestRestoreSessionContinuesIdentically(t *testing.T) {
	s := newTestSession(t, Config{Seed: [2]uint64{42, 1}})
	completeSetup(t, s)

	restored, err := RestoreSession(s.Snapshot(), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, checksum(t, s), checksum(t, restored))
	assert.Equal(t, s.ID(), restored.ID())
	assert.Equal(t, s.Players(), restored.Players())
	assert.Equal(t, rules.PhasePreRoll, restored.Phase())
	assert.Zero(t, restored.HistoryDepth(), "history is not part of a snapshot")
	assert.Equal(t, s.HistoryDepth(), restored.RestoredDepth())
	assert.Zero(t, s.RestoredDepth())

	// Random dice come from the restored generator.
	a, err := s.Roll(0, [2]int{})
	require.NoError(t, err)
	b, err := restored.Roll(0, [2]int{})
	require.NoError(t, err)
	assert.Equal(t, a.Effect.(Rolled).Dice, b.Effect.(Rolled).Dice)
	assert.Equal(t, checksum(t, s), checksum(t, restored))
}

func TestRestoreSessionKeepsPendingState(t *testing.T) {
	s := newTestSession(t, Config{})
	startPlay(s)
	grant(t, s, 0, resource.Single(resource.Wood, 1))
	_, err := s.Roll(0, [2]int{1, 1})
	require.NoError(t, err)
	_, err = s.ProposeTrade(0, 2, resource.Single(resource.Wood, 1), resource.Single(resource.Ore, 1))
	require.NoError(t, err)

	restored, err := RestoreSession(s.Snapshot(), nil)
	require.NoError(t, err)
	assert.Equal(t, rules.PhaseTrading, restored.Phase())
	want, _ := s.PendingTrade()
	got, ok := restored.PendingTrade()
	require.True(t, ok)
	assert.Equal(t, want, got)

	_, err = restored.RejectTrade(2)
	require.NoError(t, err)
	assert.Equal(t, rules.PhasePostRoll, restored.Phase())
}

func TestChecksumIgnoresTimestampAndDepth(t *testing.T) {
	s := newTestSession(t, Config{})
	_, err := s.BuildSettlement(0, vertexAt(t, s, 19, board.VertexN))
	require.NoError(t, err)

	snap := s.Snapshot()
	other := *snap
	other.Timestamp = snap.Timestamp.Add(time.Hour)
	other.Depth = 99

	first, err := snap.ComputeChecksum()
	require.NoError(t, err)
	second, err := other.ComputeChecksum()
	require.NoError(t, err)
	assert.Equal(t, first.Hash, second.Hash)
	assert.Len(t, first.Hash, 64)

	ok, err := other.VerifyChecksum(first)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestChecksumDetectsChanges(t *testing.T) {
	s := newTestSession(t, Config{})
	before, err := s.Checksum()
	require.NoError(t, err)

	_, err = s.BuildSettlement(0, vertexAt(t, s, 19, board.VertexN))
	require.NoError(t, err)

	ok, err := s.Snapshot().VerifyChecksum(before)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRestoreSessionRejectsBadSnapshots(t *testing.T) {
	s := newTestSession(t, Config{})

	_, err := RestoreSession(nil, nil)
	assert.Error(t, err)

	snap := s.Snapshot()
	snap.Version = SnapshotVersion + 1
	_, err = RestoreSession(snap, nil)
	assert.ErrorContains(t, err, "unsupported snapshot version")

	snap = s.Snapshot()
	snap.Ledger.Bank[resource.Ore]--
	_, err = RestoreSession(snap, nil)
	assert.ErrorContains(t, err, "inconsistent")

	snap = s.Snapshot()
	snap.Config.Players = snap.Config.Players[:2]
	_, err = RestoreSession(snap, nil)
	assert.Error(t, err)
}
