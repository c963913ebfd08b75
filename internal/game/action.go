package game

import (
	"fmt"
	"strconv"

	"github.com/hexlog/catan-server-go/internal/game/board"
	"github.com/hexlog/catan-server-go/internal/game/resource"
	"github.com/hexlog/catan-server-go/internal/game/rules"
)

// Action is a command issued by one seat. The set is closed: every action
// kind has exactly one type below.
type Action interface {
	Kind() rules.ActionKind
	Actor() int
	params() map[string]string
}

// BuildSettlement places a settlement; free during setup.
type BuildSettlement struct {
	By     int
	Vertex board.VertexID
}

// BuildCity upgrades one of the actor's settlements.
type BuildCity struct {
	By     int
	Vertex board.VertexID
}

// BuildRoad places a road; free during setup and after road building.
type BuildRoad struct {
	By   int
	Edge board.EdgeID
}

// Roll rolls the dice. A zero Dice value rolls with the session RNG.
type Roll struct {
	By   int
	Dice [2]int
}

// Discard returns half a hand to the bank after a seven.
type Discard struct {
	By    int
	Cards resource.Bundle
}

// MoveRobber moves the robber after a seven and steals from Victim, or
// board.Nobody when nobody can be robbed.
type MoveRobber struct {
	By     int
	Tile   board.TileID
	Victim int
}

// BuyDevCard draws a development card.
type BuyDevCard struct {
	By int
}

// PlayKnight moves the robber like MoveRobber and grows the army.
type PlayKnight struct {
	By     int
	Tile   board.TileID
	Victim int
}

// PlayMonopoly takes every unit of Resource from the other seats.
type PlayMonopoly struct {
	By       int
	Resource resource.Type
}

// PlayRoadBuilding makes the next two roads free.
type PlayRoadBuilding struct {
	By int
}

// PlayYearOfPlenty takes two resources from the bank.
type PlayYearOfPlenty struct {
	By     int
	First  resource.Type
	Second resource.Type
}

// RevealVictoryPoint turns a victory point card face up.
type RevealVictoryPoint struct {
	By int
}

// TradeBank trades with the bank at the actor's port ratios.
type TradeBank struct {
	By   int
	Give resource.Bundle
	Want resource.Bundle
}

// ProposeTrade opens a negotiation with another seat.
type ProposeTrade struct {
	By   int
	To   int
	Give resource.Bundle
	Want resource.Bundle
}

// CounterTrade answers the pending offer with new terms.
type CounterTrade struct {
	By   int
	Give resource.Bundle
	Want resource.Bundle
}

// AcceptTrade settles the pending offer.
type AcceptTrade struct {
	By int
}

// RejectTrade discards the pending offer.
type RejectTrade struct {
	By int
}

// EndTurn passes play to the next seat.
type EndTurn struct {
	By int
}

func (a BuildSettlement) Kind() rules.ActionKind    { return rules.ActionBuildSettlement }
func (a BuildCity) Kind() rules.ActionKind          { return rules.ActionBuildCity }
func (a BuildRoad) Kind() rules.ActionKind          { return rules.ActionBuildRoad }
func (a Roll) Kind() rules.ActionKind               { return rules.ActionRoll }
func (a Discard) Kind() rules.ActionKind            { return rules.ActionDiscard }
func (a MoveRobber) Kind() rules.ActionKind         { return rules.ActionMoveRobber }
func (a BuyDevCard) Kind() rules.ActionKind         { return rules.ActionBuyDevCard }
func (a PlayKnight) Kind() rules.ActionKind         { return rules.ActionPlayKnight }
func (a PlayMonopoly) Kind() rules.ActionKind       { return rules.ActionPlayMonopoly }
func (a PlayRoadBuilding) Kind() rules.ActionKind   { return rules.ActionPlayRoadBuilding }
func (a PlayYearOfPlenty) Kind() rules.ActionKind   { return rules.ActionPlayYearOfPlenty }
func (a RevealVictoryPoint) Kind() rules.ActionKind { return rules.ActionRevealVictoryPoint }
func (a TradeBank) Kind() rules.ActionKind          { return rules.ActionTradeBank }
func (a ProposeTrade) Kind() rules.ActionKind       { return rules.ActionProposeTrade }
func (a CounterTrade) Kind() rules.ActionKind       { return rules.ActionCounterTrade }
func (a AcceptTrade) Kind() rules.ActionKind        { return rules.ActionAcceptTrade }
func (a RejectTrade) Kind() rules.ActionKind        { return rules.ActionRejectTrade }
func (a EndTurn) Kind() rules.ActionKind            { return rules.ActionEndTurn }

func (a BuildSettlement) Actor() int    { return a.By }
func (a BuildCity) Actor() int          { return a.By }
func (a BuildRoad) Actor() int          { return a.By }
func (a Roll) Actor() int               { return a.By }
func (a Discard) Actor() int            { return a.By }
func (a MoveRobber) Actor() int         { return a.By }
func (a BuyDevCard) Actor() int         { return a.By }
func (a PlayKnight) Actor() int         { return a.By }
func (a PlayMonopoly) Actor() int       { return a.By }
func (a PlayRoadBuilding) Actor() int   { return a.By }
func (a PlayYearOfPlenty) Actor() int   { return a.By }
func (a RevealVictoryPoint) Actor() int { return a.By }
func (a TradeBank) Actor() int          { return a.By }
func (a ProposeTrade) Actor() int       { return a.By }
func (a CounterTrade) Actor() int       { return a.By }
func (a AcceptTrade) Actor() int        { return a.By }
func (a RejectTrade) Actor() int        { return a.By }
func (a EndTurn) Actor() int            { return a.By }

func bundleParams(p map[string]string, prefix string, b resource.Bundle) {
	for _, r := range resource.All() {
		if b[r] != 0 {
			p[prefix+"_"+r.String()] = strconv.Itoa(b[r])
		}
	}
}

func (a BuildSettlement) params() map[string]string {
	return map[string]string{"vertex": strconv.Itoa(int(a.Vertex))}
}

func (a BuildCity) params() map[string]string {
	return map[string]string{"vertex": strconv.Itoa(int(a.Vertex))}
}

func (a BuildRoad) params() map[string]string {
	return map[string]string{"edge": strconv.Itoa(int(a.Edge))}
}

func (a Roll) params() map[string]string {
	if a.Dice == [2]int{} {
		return map[string]string{}
	}
	return map[string]string{"dice": fmt.Sprintf("%d+%d", a.Dice[0], a.Dice[1])}
}

func (a Discard) params() map[string]string {
	p := map[string]string{}
	bundleParams(p, "discard", a.Cards)
	return p
}

func robberParams(tile board.TileID, victim int) map[string]string {
	p := map[string]string{"tile": strconv.Itoa(int(tile))}
	if victim != board.Nobody {
		p["victim"] = strconv.Itoa(victim)
	}
	return p
}

func (a MoveRobber) params() map[string]string { return robberParams(a.Tile, a.Victim) }
func (a PlayKnight) params() map[string]string { return robberParams(a.Tile, a.Victim) }
func (a BuyDevCard) params() map[string]string { return map[string]string{} }

func (a PlayMonopoly) params() map[string]string {
	return map[string]string{"resource": a.Resource.String()}
}

func (a PlayRoadBuilding) params() map[string]string { return map[string]string{} }

func (a PlayYearOfPlenty) params() map[string]string {
	return map[string]string{"first": a.First.String(), "second": a.Second.String()}
}

func (a RevealVictoryPoint) params() map[string]string { return map[string]string{} }

func (a TradeBank) params() map[string]string {
	p := map[string]string{}
	bundleParams(p, "give", a.Give)
	bundleParams(p, "want", a.Want)
	return p
}

func (a ProposeTrade) params() map[string]string {
	p := map[string]string{"to": strconv.Itoa(a.To)}
	bundleParams(p, "give", a.Give)
	bundleParams(p, "want", a.Want)
	return p
}

func (a CounterTrade) params() map[string]string {
	p := map[string]string{}
	bundleParams(p, "give", a.Give)
	bundleParams(p, "want", a.Want)
	return p
}

func (a AcceptTrade) params() map[string]string { return map[string]string{} }
func (a RejectTrade) params() map[string]string { return map[string]string{} }
func (a EndTurn) params() map[string]string     { return map[string]string{} }
