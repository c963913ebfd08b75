package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexlog/catan-server-go/internal/game/board"
	"github.com/hexlog/catan-server-go/internal/game/gameerr"
	"github.com/hexlog/catan-server-go/internal/game/resource"
	"github.com/hexlog/catan-server-go/internal/game/rules"
)

func TestHistoryStacks(t *testing.T) {
	h := NewHistory(2)
	a, b, c := &Record{Seq: 1}, &Record{Seq: 2}, &Record{Seq: 3}

	h.Push(a)
	h.Push(b)
	h.Push(c)
	assert.Equal(t, 2, h.Depth(), "oldest record is evicted")
	assert.Equal(t, []*Record{b, c}, h.Records())

	rec, ok := h.PopUndo()
	require.True(t, ok)
	assert.Same(t, c, rec)
	h.PushRedo(rec)
	assert.Equal(t, 1, h.RedoDepth())

	rec, ok = h.PopRedo()
	require.True(t, ok)
	h.Reapply(rec)
	assert.Equal(t, 2, h.Depth())

	h.PopUndo()
	h.PushRedo(c)
	h.Push(&Record{Seq: 4})
	assert.Zero(t, h.RedoDepth(), "a new record clears redo")

	h.Clear()
	_, ok = h.PopUndo()
	assert.False(t, ok)
	_, ok = h.PopRedo()
	assert.False(t, ok)
}

func TestHistoryUnbounded(t *testing.T) {
	h := NewHistory(0)
	for i := 1; i <= 500; i++ {
		h.Push(&Record{Seq: int64(i)})
	}
	assert.Equal(t, 500, h.Depth())
}

// settleSeven resolves discards and the robber after a seven.
func settleSeven(t *testing.T, s *Session, roller int, step func(*Record, error)) {
	t.Helper()
	for s.Phase() == rules.PhaseDiscarding {
		for seat, owed := range s.PendingDiscards() {
			if owed == 0 {
				continue
			}
			hand := s.ledger.Hand(seat)
			var cards resource.Bundle
			for range owed {
				r, ok := hand.Minus(cards).Nth(0)
				require.True(t, ok)
				cards[r]++
			}
			step(s.Discard(seat, cards))
		}
	}
	if s.Phase() == rules.PhaseMovingRobber {
		tile, victim := robTarget(s, roller)
		step(s.MoveRobber(roller, tile, victim))
	}
}

func TestUndoRedoRestoresEveryState(t *testing.T) {
	s := newTestSession(t, Config{Layout: portlessLayout(), Seed: [2]uint64{7, 11}})
	grant(t, s, 0, resource.Of(5, resource.Wheat, resource.Ore, resource.Sheep))
	grant(t, s, 1, resource.Of(2, resource.Brick, resource.Wood))

	sums := []string{checksum(t, s)}
	step := func(rec *Record, err error) {
		t.Helper()
		require.NoError(t, err)
		require.Equal(t, int64(len(sums)), rec.Seq)
		sums = append(sums, checksum(t, s))
	}

	for s.Phase().IsSetup() {
		step(s.Apply(nextSetupAction(t, s)))
	}
	step(s.Roll(0, [2]int{2, 2}))
	step(s.TradeBank(0, resource.Single(resource.Ore, 4), resource.Single(resource.Brick, 1)))
	step(s.BuyDevCard(0))
	step(s.ProposeTrade(0, 1, resource.Single(resource.Wheat, 1), resource.Single(resource.Brick, 1)))
	step(s.AcceptTrade(1))
	step(s.EndTurn(0))

	step(s.Roll(1, [2]int{3, 4}))
	settleSeven(t, s, 1, step)
	for e := 0; e < s.board.NumEdges(); e++ {
		if s.board.CanPlaceRoad(board.EdgeID(e), 1) == nil {
			step(s.BuildRoad(1, board.EdgeID(e)))
			break
		}
	}
	step(s.EndTurn(1))

	step(s.Roll(2, [2]int{}))
	settleSeven(t, s, 2, step)
	step(s.EndTurn(2))

	n := len(sums) - 1
	require.Equal(t, n, s.HistoryDepth())

	for i := n; i > 0; i-- {
		rec, err := s.Undo()
		require.NoError(t, err)
		assert.Equal(t, int64(i), rec.Seq)
		require.Equal(t, sums[i-1], checksum(t, s), "undo of action %d (%s)", i, rec.Kind)
	}
	assert.False(t, s.CanUndo())
	_, err := s.Undo()
	requireCode(t, err, gameerr.NothingToUndo)

	for i := 1; i <= n; i++ {
		rec, err := s.Redo()
		require.NoError(t, err)
		assert.Equal(t, int64(i), rec.Seq)
		require.Equal(t, sums[i], checksum(t, s), "redo of action %d (%s)", i, rec.Kind)
	}
	assert.False(t, s.CanRedo())
	_, err = s.Redo()
	requireCode(t, err, gameerr.NothingToRedo)
	assert.Equal(t, rules.PhasePreRoll, s.Phase())
	assert.Equal(t, 3, s.Current())
}

func TestUndoRedoOnFreshSession(t *testing.T) {
	s := newTestSession(t, Config{})

	_, err := s.Undo()
	requireCode(t, err, gameerr.NothingToUndo)
	assert.True(t, gameerr.Recoverable(err))

	_, err = s.Redo()
	requireCode(t, err, gameerr.NothingToRedo)
	assert.False(t, s.Aborted())
}

func TestNewActionClearsRedo(t *testing.T) {
	s := newTestSession(t, Config{})
	_, err := s.BuildSettlement(0, vertexAt(t, s, 19, board.VertexN))
	require.NoError(t, err)

	_, err = s.Undo()
	require.NoError(t, err)
	assert.True(t, s.CanRedo())
	assert.True(t, s.board.IsVertexFree(vertexAt(t, s, 19, board.VertexN)))

	_, err = s.BuildSettlement(0, vertexAt(t, s, 19, board.VertexS))
	require.NoError(t, err)
	assert.False(t, s.CanRedo())
	_, err = s.Redo()
	requireCode(t, err, gameerr.NothingToRedo)
}

func TestUndoRestoresRobberyAndPhase(t *testing.T) {
	s := newTestSession(t, Config{})
	seed(t, s, 1, vertexAt(t, s, 5, board.VertexS))
	startPlay(s)
	grant(t, s, 1, resource.Single(resource.Sheep, 3))

	_, err := s.Roll(0, [2]int{5, 2})
	require.NoError(t, err)
	before := checksum(t, s)

	rec, err := s.MoveRobber(0, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, resource.Sheep, rec.Effect.(RobberMoved).Stolen)
	assert.Equal(t, rules.PhasePostRoll, s.Phase())

	_, err = s.Undo()
	require.NoError(t, err)
	assert.Equal(t, before, checksum(t, s))
	assert.Equal(t, rules.PhaseMovingRobber, s.Phase())
	assert.Equal(t, 3, s.ledger.Hand(1).Get(resource.Sheep))
	assert.Equal(t, board.TileID(19), s.Robber())
}

func TestHistoryEvictionLimitsUndo(t *testing.T) {
	s := newTestSession(t, Config{MaxHistory: 3})
	completeSetup(t, s)
	assert.Equal(t, 3, s.HistoryDepth())

	for range 3 {
		_, err := s.Undo()
		require.NoError(t, err)
	}
	_, err := s.Undo()
	requireCode(t, err, gameerr.NothingToUndo)
	assert.Equal(t, rules.PhaseSetupBackward, s.Phase())
}
