package game

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/hexlog/catan-server-go/internal/game/board"
	"github.com/hexlog/catan-server-go/internal/game/ledger"
	"github.com/hexlog/catan-server-go/internal/game/resource"
	"github.com/hexlog/catan-server-go/internal/game/rules"
	"github.com/hexlog/catan-server-go/internal/game/trade"
)

// Frame is the scalar game state restored wholesale by undo and redo: phase,
// turn order, dice, robber, setup progress, pending discards and offer,
// winner, card marks, titles and the RNG.
type Frame struct {
	Phase       rules.Phase
	Order       rules.TurnOrder
	Dice        [2]int
	Robber      board.TileID
	SetupStep   rules.SetupStep
	SetupAnchor board.VertexID
	FreeRoads   int
	Discards    []int
	Offer       *trade.Offer
	Winner      int
	Marks       ledger.Marks
	RNG         []byte
}

// Effect holds the structural deltas of one applied action: resource flows
// and piece placements. Each action kind has its own effect type.
type Effect interface {
	effect()
}

// SettlementBuilt records a settlement and, for the second setup
// settlement, the resources it produced.
type SettlementBuilt struct {
	Seat       int
	Vertex     board.VertexID
	Paid       resource.Bundle
	Production resource.Bundle
}

// CityBuilt records a settlement upgraded to a city.
type CityBuilt struct {
	Seat   int
	Vertex board.VertexID
	Paid   resource.Bundle
}

// RoadBuilt records a road; Paid is empty for free roads.
type RoadBuilt struct {
	Seat int
	Edge board.EdgeID
	Paid resource.Bundle
}

// Rolled records the dice and what each seat received.
type Rolled struct {
	Dice       [2]int
	Production []resource.Bundle
}

// Discarded records cards returned to the bank after a seven.
type Discarded struct {
	Seat  int
	Cards resource.Bundle
}

// RobberMoved records a robber move and the unit stolen, if any.
type RobberMoved struct {
	From   board.TileID
	To     board.TileID
	Thief  int
	Victim int
	Stolen resource.Type
}

// DevCardBought records a purchase. The card itself lives in the marks.
type DevCardBought struct {
	Seat int
	Card ledger.DevCard
	Paid resource.Bundle
}

// KnightPlayed records a knight's robber move.
type KnightPlayed struct {
	Robbery RobberMoved
}

// MonopolyPlayed records how much each seat surrendered.
type MonopolyPlayed struct {
	Seat     int
	Resource resource.Type
	Taken    []int
}

// RoadBuildingPlayed records the free roads granted.
type RoadBuildingPlayed struct {
	Seat      int
	FreeRoads int
}

// YearOfPlentyPlayed records the resources taken from the bank.
type YearOfPlentyPlayed struct {
	Seat   int
	Gained resource.Bundle
}

// VictoryPointRevealed records a revealed victory point card.
type VictoryPointRevealed struct {
	Seat int
}

// BankTraded records a maritime trade.
type BankTraded struct {
	Seat int
	Give resource.Bundle
	Want resource.Bundle
}

// TradeProposed records a new offer.
type TradeProposed struct {
	Offer trade.Offer
}

// TradeCountered records a counter-offer.
type TradeCountered struct {
	Offer trade.Offer
}

// TradeAccepted records a settled offer.
type TradeAccepted struct {
	Offer trade.Offer
}

// TradeRejected records a discarded offer.
type TradeRejected struct {
	Offer trade.Offer
	By    int
}

// TurnEnded records the end of a turn.
type TurnEnded struct {
	Seat int
	Won  bool
}

func (SettlementBuilt) effect()      {}
func (CityBuilt) effect()            {}
func (RoadBuilt) effect()            {}
func (Rolled) effect()               {}
func (Discarded) effect()            {}
func (RobberMoved) effect()          {}
func (DevCardBought) effect()        {}
func (KnightPlayed) effect()         {}
func (MonopolyPlayed) effect()       {}
func (RoadBuildingPlayed) effect()   {}
func (YearOfPlentyPlayed) effect()   {}
func (VictoryPointRevealed) effect() {}
func (BankTraded) effect()           {}
func (TradeProposed) effect()        {}
func (TradeCountered) effect()       {}
func (TradeAccepted) effect()        {}
func (TradeRejected) effect()        {}
func (TurnEnded) effect()            {}

// Record is the immutable history entry of one successful action.
type Record struct {
	ID      uuid.UUID
	Seq     int64
	Kind    rules.ActionKind
	Actor   int
	Params  map[string]string
	Summary string
	Pre     Frame
	Post    Frame
	Effect  Effect
}

func negate(b resource.Bundle) resource.Bundle {
	return resource.Bundle{}.Minus(b)
}

// revert undoes the structural deltas of an effect without legality checks.
// The caller restores the pre-action frame afterwards.
func (s *Session) revert(effect Effect) error {
	switch e := effect.(type) {
	case SettlementBuilt:
		s.board.SetBuilding(e.Vertex, board.Building{Owner: board.Nobody})
		s.ledger.RemovePiece(e.Seat, ledger.PieceSettlement)
		s.ledger.Move(e.Seat, e.Paid.Minus(e.Production))
	case CityBuilt:
		s.board.SetBuilding(e.Vertex, board.Building{Owner: e.Seat, Kind: board.Settlement})
		s.ledger.RemovePiece(e.Seat, ledger.PieceCity)
		s.ledger.Move(e.Seat, e.Paid)
	case RoadBuilt:
		s.board.SetRoad(e.Edge, board.Nobody)
		s.ledger.RemovePiece(e.Seat, ledger.PieceRoad)
		s.ledger.Move(e.Seat, e.Paid)
	case Rolled:
		for seat, got := range e.Production {
			s.ledger.Move(seat, negate(got))
		}
	case Discarded:
		s.ledger.Move(e.Seat, e.Cards)
	case RobberMoved:
		s.revertRobbery(e)
	case KnightPlayed:
		s.revertRobbery(e.Robbery)
	case DevCardBought:
		s.ledger.Move(e.Seat, e.Paid)
	case MonopolyPlayed:
		for seat, n := range e.Taken {
			if n == 0 {
				continue
			}
			s.ledger.Move(seat, resource.Single(e.Resource, n))
			s.ledger.Move(e.Seat, resource.Single(e.Resource, -n))
		}
	case YearOfPlentyPlayed:
		s.ledger.Move(e.Seat, negate(e.Gained))
	case BankTraded:
		s.ledger.Move(e.Seat, e.Give.Minus(e.Want))
	case TradeAccepted:
		s.ledger.Move(e.Offer.From, e.Offer.Give.Minus(e.Offer.Want))
		s.ledger.Move(e.Offer.To, e.Offer.Want.Minus(e.Offer.Give))
	case RoadBuildingPlayed, VictoryPointRevealed, TradeProposed, TradeCountered, TradeRejected, TurnEnded:
		// frame only
	default:
		return fmt.Errorf("cannot revert effect %T", effect)
	}
	return nil
}

// replay re-applies the structural deltas of an effect without legality
// checks. The caller restores the post-action frame afterwards.
func (s *Session) replay(effect Effect) error {
	switch e := effect.(type) {
	case SettlementBuilt:
		s.board.SetBuilding(e.Vertex, board.Building{Owner: e.Seat, Kind: board.Settlement})
		s.ledger.AddPiece(e.Seat, ledger.PieceSettlement)
		s.ledger.Move(e.Seat, e.Production.Minus(e.Paid))
	case CityBuilt:
		s.board.SetBuilding(e.Vertex, board.Building{Owner: e.Seat, Kind: board.City})
		s.ledger.AddPiece(e.Seat, ledger.PieceCity)
		s.ledger.Move(e.Seat, negate(e.Paid))
	case RoadBuilt:
		s.board.SetRoad(e.Edge, e.Seat)
		s.ledger.AddPiece(e.Seat, ledger.PieceRoad)
		s.ledger.Move(e.Seat, negate(e.Paid))
	case Rolled:
		for seat, got := range e.Production {
			s.ledger.Move(seat, got)
		}
	case Discarded:
		s.ledger.Move(e.Seat, negate(e.Cards))
	case RobberMoved:
		s.replayRobbery(e)
	case KnightPlayed:
		s.replayRobbery(e.Robbery)
	case DevCardBought:
		s.ledger.Move(e.Seat, negate(e.Paid))
	case MonopolyPlayed:
		for seat, n := range e.Taken {
			if n == 0 {
				continue
			}
			s.ledger.Move(seat, resource.Single(e.Resource, -n))
			s.ledger.Move(e.Seat, resource.Single(e.Resource, n))
		}
	case YearOfPlentyPlayed:
		s.ledger.Move(e.Seat, e.Gained)
	case BankTraded:
		s.ledger.Move(e.Seat, e.Want.Minus(e.Give))
	case TradeAccepted:
		s.ledger.Move(e.Offer.From, e.Offer.Want.Minus(e.Offer.Give))
		s.ledger.Move(e.Offer.To, e.Offer.Give.Minus(e.Offer.Want))
	case RoadBuildingPlayed, VictoryPointRevealed, TradeProposed, TradeCountered, TradeRejected, TurnEnded:
		// frame only
	default:
		return fmt.Errorf("cannot replay effect %T", effect)
	}
	return nil
}

func (s *Session) revertRobbery(e RobberMoved) {
	if e.Stolen.Valid() {
		s.ledger.Move(e.Thief, resource.Single(e.Stolen, -1))
		s.ledger.Move(e.Victim, resource.Single(e.Stolen, 1))
	}
}

func (s *Session) replayRobbery(e RobberMoved) {
	if e.Stolen.Valid() {
		s.ledger.Move(e.Victim, resource.Single(e.Stolen, -1))
		s.ledger.Move(e.Thief, resource.Single(e.Stolen, 1))
	}
}

// describe renders the public outcome of an effect for log sinks.
func describe(effect Effect) string {
	switch e := effect.(type) {
	case SettlementBuilt:
		if e.Production.IsZero() {
			return fmt.Sprintf("settlement at vertex %d", e.Vertex)
		}
		return fmt.Sprintf("settlement at vertex %d, received %s", e.Vertex, e.Production)
	case CityBuilt:
		return fmt.Sprintf("city at vertex %d", e.Vertex)
	case RoadBuilt:
		return fmt.Sprintf("road at edge %d", e.Edge)
	case Rolled:
		return fmt.Sprintf("rolled %d", e.Dice[0]+e.Dice[1])
	case Discarded:
		return fmt.Sprintf("discarded %s", e.Cards)
	case RobberMoved:
		return describeRobbery(e)
	case KnightPlayed:
		return "knight: " + describeRobbery(e.Robbery)
	case DevCardBought:
		return "bought a development card"
	case MonopolyPlayed:
		total := 0
		for _, n := range e.Taken {
			total += n
		}
		return fmt.Sprintf("monopoly on %s took %d", e.Resource, total)
	case RoadBuildingPlayed:
		return fmt.Sprintf("road building: %d free roads", e.FreeRoads)
	case YearOfPlentyPlayed:
		return fmt.Sprintf("year of plenty: %s", e.Gained)
	case VictoryPointRevealed:
		return "revealed a victory point"
	case BankTraded:
		return fmt.Sprintf("traded %s with the bank for %s", e.Give, e.Want)
	case TradeProposed:
		return e.Offer.String()
	case TradeCountered:
		return "counter: " + e.Offer.String()
	case TradeAccepted:
		return "accepted: " + e.Offer.String()
	case TradeRejected:
		return fmt.Sprintf("seat %d rejected offer %s", e.By, e.Offer.ID)
	case TurnEnded:
		if e.Won {
			return fmt.Sprintf("seat %d wins", e.Seat)
		}
		return "ended turn"
	}
	return ""
}

func describeRobbery(e RobberMoved) string {
	if e.Stolen.Valid() {
		return fmt.Sprintf("robber to tile %d, stole from seat %d", e.To, e.Victim)
	}
	return fmt.Sprintf("robber to tile %d", e.To)
}
