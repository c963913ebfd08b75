// Package spectate serves games over websocket: clients create or join a
// game, issue commands and receive every history event as it happens.
package spectate

import (
	"github.com/hexlog/catan-server-go/internal/game"
	"github.com/hexlog/catan-server-go/internal/game/board"
	"github.com/hexlog/catan-server-go/internal/game/gameerr"
	"github.com/hexlog/catan-server-go/internal/game/resource"
	"github.com/hexlog/catan-server-go/internal/game/rules"
)

// Command types accepted from clients.
const (
	CommandCreate = "create"
	CommandJoin   = "join"
	CommandLeave  = "leave"
	CommandState  = "state"
	CommandAction = "action"
	CommandUndo   = "undo"
	CommandRedo   = "redo"
	CommandSave   = "save"
	CommandList   = "list"
	CommandReplay = "replay"
)

// Message types sent to clients.
const (
	MessageState = "state"
	MessageEvent = "event"
	MessageAck   = "ack"
	MessageError = "error"
)

// Command is one inbound client message.
type Command struct {
	Type      string       `json:"type"`
	RequestID string       `json:"request_id,omitempty"`
	GameID    string       `json:"game_id,omitempty"`
	Seat      int          `json:"seat"`
	Action    string       `json:"action,omitempty"`
	Params    ActionParams `json:"params"`
	Players   []string     `json:"players,omitempty"`
	Seed      []uint64     `json:"seed,omitempty"`
	Frame     int          `json:"frame"`
}

// ActionParams carries the arguments of every action kind; each kind reads
// the fields it needs.
type ActionParams struct {
	Vertex   *int           `json:"vertex,omitempty"`
	Edge     *int           `json:"edge,omitempty"`
	Tile     *int           `json:"tile,omitempty"`
	Victim   *int           `json:"victim,omitempty"`
	To       *int           `json:"to,omitempty"`
	Dice     [2]int         `json:"dice"`
	Resource string         `json:"resource,omitempty"`
	First    string         `json:"first,omitempty"`
	Second   string         `json:"second,omitempty"`
	Cards    map[string]int `json:"cards,omitempty"`
	Give     map[string]int `json:"give,omitempty"`
	Want     map[string]int `json:"want,omitempty"`
}

func requiredInt(name string, v *int) (int, error) {
	if v == nil {
		return 0, gameerr.Invalid("missing %s", name)
	}
	return *v, nil
}

func bundle(name string, m map[string]int) (resource.Bundle, error) {
	b, err := resource.FromMap(m)
	if err != nil {
		return resource.Bundle{}, gameerr.Invalid("%s: %v", name, err)
	}
	return b, nil
}

func resourceOf(name, value string) (resource.Type, error) {
	r, err := resource.Parse(value)
	if err != nil {
		return resource.None, gameerr.Invalid("%s: %v", name, err)
	}
	return r, nil
}

// DecodeAction builds the engine action for kind from the wire parameters.
func DecodeAction(kind rules.ActionKind, seat int, p ActionParams) (game.Action, error) {
	switch kind {
	case rules.ActionBuildSettlement, rules.ActionBuildCity:
		v, err := requiredInt("vertex", p.Vertex)
		if err != nil {
			return nil, err
		}
		if kind == rules.ActionBuildCity {
			return game.BuildCity{By: seat, Vertex: board.VertexID(v)}, nil
		}
		return game.BuildSettlement{By: seat, Vertex: board.VertexID(v)}, nil

	case rules.ActionBuildRoad:
		e, err := requiredInt("edge", p.Edge)
		if err != nil {
			return nil, err
		}
		return game.BuildRoad{By: seat, Edge: board.EdgeID(e)}, nil

	case rules.ActionRoll:
		return game.Roll{By: seat, Dice: p.Dice}, nil

	case rules.ActionDiscard:
		cards, err := bundle("cards", p.Cards)
		if err != nil {
			return nil, err
		}
		return game.Discard{By: seat, Cards: cards}, nil

	case rules.ActionMoveRobber, rules.ActionPlayKnight:
		tile, err := requiredInt("tile", p.Tile)
		if err != nil {
			return nil, err
		}
		victim := board.Nobody
		if p.Victim != nil {
			victim = *p.Victim
		}
		if kind == rules.ActionPlayKnight {
			return game.PlayKnight{By: seat, Tile: board.TileID(tile), Victim: victim}, nil
		}
		return game.MoveRobber{By: seat, Tile: board.TileID(tile), Victim: victim}, nil

	case rules.ActionBuyDevCard:
		return game.BuyDevCard{By: seat}, nil

	case rules.ActionPlayMonopoly:
		r, err := resourceOf("resource", p.Resource)
		if err != nil {
			return nil, err
		}
		return game.PlayMonopoly{By: seat, Resource: r}, nil

	case rules.ActionPlayRoadBuilding:
		return game.PlayRoadBuilding{By: seat}, nil

	case rules.ActionPlayYearOfPlenty:
		first, err := resourceOf("first", p.First)
		if err != nil {
			return nil, err
		}
		second, err := resourceOf("second", p.Second)
		if err != nil {
			return nil, err
		}
		return game.PlayYearOfPlenty{By: seat, First: first, Second: second}, nil

	case rules.ActionRevealVictoryPoint:
		return game.RevealVictoryPoint{By: seat}, nil

	case rules.ActionTradeBank, rules.ActionProposeTrade, rules.ActionCounterTrade:
		give, err := bundle("give", p.Give)
		if err != nil {
			return nil, err
		}
		want, err := bundle("want", p.Want)
		if err != nil {
			return nil, err
		}
		switch kind {
		case rules.ActionTradeBank:
			return game.TradeBank{By: seat, Give: give, Want: want}, nil
		case rules.ActionCounterTrade:
			return game.CounterTrade{By: seat, Give: give, Want: want}, nil
		}
		to, err := requiredInt("to", p.To)
		if err != nil {
			return nil, err
		}
		return game.ProposeTrade{By: seat, To: to, Give: give, Want: want}, nil

	case rules.ActionAcceptTrade:
		return game.AcceptTrade{By: seat}, nil
	case rules.ActionRejectTrade:
		return game.RejectTrade{By: seat}, nil
	case rules.ActionEndTurn:
		return game.EndTurn{By: seat}, nil
	default:
		return nil, gameerr.Invalid("unknown action %q", kind)
	}
}
