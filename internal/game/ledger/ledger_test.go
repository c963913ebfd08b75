package ledger

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/hexlog/catan-server-go/internal/game/gameerr"
	"github.com/hexlog/catan-server-go/internal/game/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger(seats int) *Ledger {
	return New(seats, rand.New(rand.NewPCG(1, 2)))
}

func assertConserved(t *testing.T, l *Ledger) {
	t.Helper()
	for _, r := range resource.All() {
		assert.Equal(t, BankSupply, l.Total(r), "total %s", r)
	}
}

func TestNewLedger(t *testing.T) {
	l := newLedger(4)

	assert.Equal(t, 4, l.Seats())
	assert.Equal(t, 25, l.PileRemaining())
	assert.Equal(t, Nobody, l.LongestRoad())
	assert.Equal(t, Nobody, l.LargestArmy())
	assertConserved(t, l)

	var counts DevCards
	for _, card := range l.State().Pile {
		counts[card]++
	}
	assert.Equal(t, DevCards(pileComposition), counts)
}

func TestCreditAndDebit(t *testing.T) {
	l := newLedger(3)

	require.NoError(t, l.Credit(0, resource.Wheat, 4))
	assert.Equal(t, 4, l.Hand(0)[resource.Wheat])
	assert.Equal(t, 15, l.Bank()[resource.Wheat])

	err := l.Debit(0, resource.Wheat, 5)
	assert.True(t, errors.Is(err, gameerr.InsufficientResource))
	assert.Equal(t, 4, l.Hand(0)[resource.Wheat])

	require.NoError(t, l.Debit(0, resource.Wheat, 4))
	assert.True(t, l.Hand(0).IsZero())

	err = l.Credit(1, resource.Ore, BankSupply+1)
	assert.True(t, errors.Is(err, gameerr.InsufficientResource))
	assert.True(t, errors.Is(l.Credit(7, resource.Ore, 1), gameerr.InvalidArgument))
	assertConserved(t, l)
}

func TestPayIsAtomic(t *testing.T) {
	l := newLedger(2)
	require.NoError(t, l.Grant(0, resource.Bundle{resource.Brick: 1, resource.Wood: 1, resource.Sheep: 1}))

	err := l.Pay(0, resource.SettlementCost)
	assert.True(t, errors.Is(err, gameerr.InsufficientResource))
	assert.Equal(t, 3, l.Hand(0).Total())

	require.NoError(t, l.Pay(0, resource.RoadCost))
	assert.Equal(t, resource.Bundle{resource.Sheep: 1}, l.Hand(0))
	assertConserved(t, l)
}

func TestExchange(t *testing.T) {
	l := newLedger(2)
	require.NoError(t, l.Grant(0, resource.Single(resource.Wheat, 2)))
	require.NoError(t, l.Grant(1, resource.Single(resource.Ore, 1)))

	err := l.Exchange(0, 1, resource.Single(resource.Wheat, 2), resource.Single(resource.Ore, 2))
	assert.True(t, errors.Is(err, gameerr.InsufficientResource))
	assert.Equal(t, 2, l.Hand(0)[resource.Wheat])
	assert.Equal(t, 1, l.Hand(1)[resource.Ore])

	require.NoError(t, l.Exchange(0, 1, resource.Single(resource.Wheat, 2), resource.Single(resource.Ore, 1)))
	assert.Equal(t, resource.Single(resource.Ore, 1), l.Hand(0))
	assert.Equal(t, resource.Single(resource.Wheat, 2), l.Hand(1))

	require.NoError(t, l.Transfer(1, 0, resource.Wheat, 1))
	assert.Equal(t, 1, l.Hand(0)[resource.Wheat])
	assert.True(t, errors.Is(l.Transfer(0, 0, resource.Wheat, 1), gameerr.InvalidArgument))
	assertConserved(t, l)
}

func TestDrawDevCardEmptiesPile(t *testing.T) {
	l := newLedger(2)

	for i := 0; i < 25; i++ {
		_, err := l.DrawDevCard(i % 2)
		require.NoError(t, err)
	}
	_, err := l.DrawDevCard(0)
	assert.True(t, errors.Is(err, gameerr.EmptyPile))
	assert.Equal(t, 0, l.PileRemaining())
	assert.Equal(t, 25, l.Account(0).Fresh.Total()+l.Account(1).Fresh.Total())
}

func TestPlayDevCardRules(t *testing.T) {
	l := newLedger(2)
	state := l.State()
	state.Pile = []DevCard{Knight, VictoryPoint, Monopoly}
	l, err := FromState(state)
	require.NoError(t, err)

	card, err := l.DrawDevCard(0)
	require.NoError(t, err)
	require.Equal(t, Knight, card)

	err = l.PlayDevCard(0, Knight, false)
	assert.True(t, errors.Is(err, gameerr.NotPlayable), "fresh card")
	require.NoError(t, l.CanPlay(0, Knight, true))
	assert.Equal(t, 1, l.Account(0).Fresh[Knight], "CanPlay must not mutate")

	_, err = l.DrawDevCard(0)
	require.NoError(t, err)
	l.EndTurn(0)

	require.NoError(t, l.PlayDevCard(0, Knight, false))
	assert.Equal(t, 1, l.Account(0).Knights())
	require.NoError(t, l.PlayDevCard(0, VictoryPoint, false), "victory points ignore the per-turn limit")
	assert.Equal(t, 1, l.Account(0).VictoryPoints)

	_, err = l.DrawDevCard(0)
	require.NoError(t, err)
	l.EndTurn(0)
	require.NoError(t, l.CanPlay(0, Monopoly, false))

	require.NoError(t, l.PlayDevCard(0, Monopoly, false))
	err = l.PlayDevCard(0, Knight, false)
	assert.True(t, errors.Is(err, gameerr.NotPlayable), "no knight left")
	err = l.PlayDevCard(0, YearOfPlenty, false)
	assert.True(t, errors.Is(err, gameerr.NotPlayable), "second card in a turn")
}

func TestPiecesAndVictoryPoints(t *testing.T) {
	l := newLedger(2)

	require.NoError(t, l.BuildPiece(0, PieceSettlement))
	require.NoError(t, l.BuildPiece(0, PieceSettlement))
	require.NoError(t, l.BuildPiece(0, PieceCity))
	require.NoError(t, l.BuildPiece(0, PieceRoad))

	acct := l.Account(0)
	assert.Equal(t, 1, acct.Settlements)
	assert.Equal(t, 1, acct.Cities)
	assert.Equal(t, 3, acct.VictoryPoints)

	vp, err := l.RecomputeVictoryPoints(0)
	require.NoError(t, err)
	assert.Equal(t, 3, vp)

	l.SetLongestRoad(0)
	l.SetLargestArmy(1)
	assert.Equal(t, 5, l.Account(0).VictoryPoints)
	assert.Equal(t, 2, l.Account(1).VictoryPoints)

	l.SetLongestRoad(1)
	assert.Equal(t, 3, l.Account(0).VictoryPoints)
	assert.Equal(t, 4, l.Account(1).VictoryPoints)
	for seat := 0; seat < 2; seat++ {
		_, err := l.RecomputeVictoryPoints(seat)
		assert.NoError(t, err)
	}

	l.RemovePiece(0, PieceCity)
	acct = l.Account(0)
	assert.Equal(t, 2, acct.Settlements)
	assert.Equal(t, 0, acct.Cities)
	assert.Equal(t, 2, acct.VictoryPoints)
	l.AddPiece(0, PieceCity)
	assert.Equal(t, 3, l.Account(0).VictoryPoints)
}

func TestPieceLimits(t *testing.T) {
	l := newLedger(1)
	for i := 0; i < MaxSettlements; i++ {
		require.NoError(t, l.BuildPiece(0, PieceSettlement))
	}
	assert.True(t, errors.Is(l.BuildPiece(0, PieceSettlement), gameerr.IllegalAction))
	assert.Equal(t, 0, l.PiecesLeft(0, PieceSettlement))
	assert.Equal(t, MaxRoads, l.PiecesLeft(0, PieceRoad))

	require.NoError(t, l.BuildPiece(0, PieceCity))
	assert.Equal(t, 1, l.PiecesLeft(0, PieceSettlement))
}

func TestRecomputeDetectsDrift(t *testing.T) {
	l := newLedger(2)
	require.NoError(t, l.BuildPiece(1, PieceSettlement))

	marks := l.Marks()
	marks.Seats[1].VictoryPoints = 4
	l.RestoreMarks(marks)

	_, err := l.RecomputeVictoryPoints(1)
	assert.True(t, errors.Is(err, gameerr.InvariantViolation))
	assert.False(t, gameerr.Recoverable(err))
}

func TestStateRoundTrip(t *testing.T) {
	l := newLedger(3)
	require.NoError(t, l.Grant(2, resource.Bundle{resource.Ore: 3}))
	_, err := l.DrawDevCard(1)
	require.NoError(t, err)
	l.SetLargestArmy(2)

	restored, err := FromState(l.State())
	require.NoError(t, err)
	assert.Equal(t, l.State(), restored.State())

	bad := l.State()
	bad.Cursor = 99
	_, err = FromState(bad)
	assert.Error(t, err)
}
