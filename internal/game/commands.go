package game

import (
	"github.com/hexlog/catan-server-go/internal/game/board"
	"github.com/hexlog/catan-server-go/internal/game/resource"
)

// BuildSettlement places a settlement for seat at v.
func (s *Session) BuildSettlement(seat int, v board.VertexID) (*Record, error) {
	return s.Apply(BuildSettlement{By: seat, Vertex: v})
}

// BuildCity upgrades seat's settlement at v.
func (s *Session) BuildCity(seat int, v board.VertexID) (*Record, error) {
	return s.Apply(BuildCity{By: seat, Vertex: v})
}

// BuildRoad places a road for seat on e.
func (s *Session) BuildRoad(seat int, e board.EdgeID) (*Record, error) {
	return s.Apply(BuildRoad{By: seat, Edge: e})
}

// Roll rolls the given dice, or random dice when dice is zero.
func (s *Session) Roll(seat int, dice [2]int) (*Record, error) {
	return s.Apply(Roll{By: seat, Dice: dice})
}

// Discard returns cards to the bank after a seven.
func (s *Session) Discard(seat int, cards resource.Bundle) (*Record, error) {
	return s.Apply(Discard{By: seat, Cards: cards})
}

// MoveRobber moves the robber to tile and robs victim.
func (s *Session) MoveRobber(seat int, tile board.TileID, victim int) (*Record, error) {
	return s.Apply(MoveRobber{By: seat, Tile: tile, Victim: victim})
}

// BuyDevCard buys a development card.
func (s *Session) BuyDevCard(seat int) (*Record, error) {
	return s.Apply(BuyDevCard{By: seat})
}

// PlayKnight plays a knight, moving the robber to tile and robbing victim.
func (s *Session) PlayKnight(seat int, tile board.TileID, victim int) (*Record, error) {
	return s.Apply(PlayKnight{By: seat, Tile: tile, Victim: victim})
}

// PlayMonopoly claims every unit of r held by the other seats.
func (s *Session) PlayMonopoly(seat int, r resource.Type) (*Record, error) {
	return s.Apply(PlayMonopoly{By: seat, Resource: r})
}

// PlayRoadBuilding grants two free roads.
func (s *Session) PlayRoadBuilding(seat int) (*Record, error) {
	return s.Apply(PlayRoadBuilding{By: seat})
}

// PlayYearOfPlenty takes first and second from the bank.
func (s *Session) PlayYearOfPlenty(seat int, first, second resource.Type) (*Record, error) {
	return s.Apply(PlayYearOfPlenty{By: seat, First: first, Second: second})
}

// RevealVictoryPoint reveals a victory point card.
func (s *Session) RevealVictoryPoint(seat int) (*Record, error) {
	return s.Apply(RevealVictoryPoint{By: seat})
}

// TradeBank trades give for want with the bank.
func (s *Session) TradeBank(seat int, give, want resource.Bundle) (*Record, error) {
	return s.Apply(TradeBank{By: seat, Give: give, Want: want})
}

// ProposeTrade offers give to seat to in exchange for want.
func (s *Session) ProposeTrade(seat, to int, give, want resource.Bundle) (*Record, error) {
	return s.Apply(ProposeTrade{By: seat, To: to, Give: give, Want: want})
}

// CounterTrade answers the pending offer.
func (s *Session) CounterTrade(seat int, give, want resource.Bundle) (*Record, error) {
	return s.Apply(CounterTrade{By: seat, Give: give, Want: want})
}

// AcceptTrade settles the pending offer.
func (s *Session) AcceptTrade(seat int) (*Record, error) {
	return s.Apply(AcceptTrade{By: seat})
}

// RejectTrade discards the pending offer.
func (s *Session) RejectTrade(seat int) (*Record, error) {
	return s.Apply(RejectTrade{By: seat})
}

// EndTurn ends seat's turn.
func (s *Session) EndTurn(seat int) (*Record, error) {
	return s.Apply(EndTurn{By: seat})
}
