package spectate

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexlog/catan-server-go/internal/game"
	"github.com/hexlog/catan-server-go/internal/game/board"
	"github.com/hexlog/catan-server-go/internal/game/gameerr"
	"github.com/hexlog/catan-server-go/internal/game/resource"
	"github.com/hexlog/catan-server-go/internal/game/rules"
)

func intp(v int) *int { return &v }

func TestDecodeAction(t *testing.T) {
	tests := []struct {
		name   string
		kind   rules.ActionKind
		params ActionParams
		want   game.Action
	}{
		{"settlement", rules.ActionBuildSettlement, ActionParams{Vertex: intp(7)}, game.BuildSettlement{By: 1, Vertex: 7}},
		{"city", rules.ActionBuildCity, ActionParams{Vertex: intp(7)}, game.BuildCity{By: 1, Vertex: 7}},
		{"road", rules.ActionBuildRoad, ActionParams{Edge: intp(12)}, game.BuildRoad{By: 1, Edge: 12}},
		{"roll", rules.ActionRoll, ActionParams{Dice: [2]int{3, 4}}, game.Roll{By: 1, Dice: [2]int{3, 4}}},
		{"random roll", rules.ActionRoll, ActionParams{}, game.Roll{By: 1}},
		{"discard", rules.ActionDiscard, ActionParams{Cards: map[string]int{"ore": 2, "wood": 1}},
			game.Discard{By: 1, Cards: resource.Of(2, resource.Ore).Plus(resource.Of(1, resource.Wood))}},
		{"robber with victim", rules.ActionMoveRobber, ActionParams{Tile: intp(4), Victim: intp(2)},
			game.MoveRobber{By: 1, Tile: 4, Victim: 2}},
		{"robber without victim", rules.ActionMoveRobber, ActionParams{Tile: intp(4)},
			game.MoveRobber{By: 1, Tile: 4, Victim: board.Nobody}},
		{"knight", rules.ActionPlayKnight, ActionParams{Tile: intp(9), Victim: intp(0)},
			game.PlayKnight{By: 1, Tile: 9, Victim: 0}},
		{"buy", rules.ActionBuyDevCard, ActionParams{}, game.BuyDevCard{By: 1}},
		{"monopoly", rules.ActionPlayMonopoly, ActionParams{Resource: "wheat"},
			game.PlayMonopoly{By: 1, Resource: resource.Wheat}},
		{"road building", rules.ActionPlayRoadBuilding, ActionParams{}, game.PlayRoadBuilding{By: 1}},
		{"year of plenty", rules.ActionPlayYearOfPlenty, ActionParams{First: "brick", Second: "ore"},
			game.PlayYearOfPlenty{By: 1, First: resource.Brick, Second: resource.Ore}},
		{"reveal", rules.ActionRevealVictoryPoint, ActionParams{}, game.RevealVictoryPoint{By: 1}},
		{"bank trade", rules.ActionTradeBank, ActionParams{Give: map[string]int{"sheep": 4}, Want: map[string]int{"ore": 1}},
			game.TradeBank{By: 1, Give: resource.Of(4, resource.Sheep), Want: resource.Of(1, resource.Ore)}},
		{"propose", rules.ActionProposeTrade, ActionParams{To: intp(2), Give: map[string]int{"brick": 1}, Want: map[string]int{"wood": 1}},
			game.ProposeTrade{By: 1, To: 2, Give: resource.Of(1, resource.Brick), Want: resource.Of(1, resource.Wood)}},
		{"counter", rules.ActionCounterTrade, ActionParams{Give: map[string]int{"wood": 2}, Want: map[string]int{"brick": 1}},
			game.CounterTrade{By: 1, Give: resource.Of(2, resource.Wood), Want: resource.Of(1, resource.Brick)}},
		{"accept", rules.ActionAcceptTrade, ActionParams{}, game.AcceptTrade{By: 1}},
		{"reject", rules.ActionRejectTrade, ActionParams{}, game.RejectTrade{By: 1}},
		{"end turn", rules.ActionEndTurn, ActionParams{}, game.EndTurn{By: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeAction(tt.kind, 1, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.kind, got.Kind())
			assert.Equal(t, 1, got.Actor())
		})
	}
}

func TestDecodeActionRejectsBadParams(t *testing.T) {
	tests := []struct {
		name   string
		kind   rules.ActionKind
		params ActionParams
	}{
		{"settlement without vertex", rules.ActionBuildSettlement, ActionParams{}},
		{"road without edge", rules.ActionBuildRoad, ActionParams{}},
		{"robber without tile", rules.ActionMoveRobber, ActionParams{}},
		{"unknown resource", rules.ActionPlayMonopoly, ActionParams{Resource: "gold"}},
		{"missing second", rules.ActionPlayYearOfPlenty, ActionParams{First: "ore"}},
		{"unknown card resource", rules.ActionDiscard, ActionParams{Cards: map[string]int{"gold": 1}}},
		{"propose without target", rules.ActionProposeTrade, ActionParams{Give: map[string]int{"ore": 1}}},
		{"unknown kind", rules.ActionKind("DANCE"), ActionParams{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeAction(tt.kind, 0, tt.params)
			require.Error(t, err)
			assert.True(t, errors.Is(err, gameerr.InvalidArgument))
		})
	}
}

func TestCommandJSON(t *testing.T) {
	raw := `{"type":"action","request_id":"r-1","game_id":"g","seat":2,"action":"build_road","params":{"edge":5}}`
	var cmd Command
	require.NoError(t, json.Unmarshal([]byte(raw), &cmd))

	assert.Equal(t, CommandAction, cmd.Type)
	assert.Equal(t, 2, cmd.Seat)
	require.NotNil(t, cmd.Params.Edge)
	assert.Equal(t, 5, *cmd.Params.Edge)

	kind, err := rules.ParseActionKind(cmd.Action)
	require.NoError(t, err)
	action, err := DecodeAction(kind, cmd.Seat, cmd.Params)
	require.NoError(t, err)
	assert.Equal(t, game.BuildRoad{By: 2, Edge: 5}, action)
}
