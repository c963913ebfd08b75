package game

import (
	"slices"

	"github.com/hexlog/catan-server-go/internal/game/board"
	"github.com/hexlog/catan-server-go/internal/game/gameerr"
	"github.com/hexlog/catan-server-go/internal/game/ledger"
	"github.com/hexlog/catan-server-go/internal/game/resource"
	"github.com/hexlog/catan-server-go/internal/game/rules"
	"github.com/hexlog/catan-server-go/internal/game/trade"
)

// discardThreshold is the hand size above which a seven costs half a hand.
const discardThreshold = 7

// dispatch routes an action to its handler. Handlers may leave partial
// changes behind on error; Apply restores the bookmark.
func (s *Session) dispatch(action Action) (Effect, error) {
	switch a := action.(type) {
	case BuildSettlement:
		return s.buildSettlement(a)
	case BuildCity:
		return s.buildCity(a)
	case BuildRoad:
		return s.buildRoad(a)
	case Roll:
		return s.roll(a)
	case Discard:
		return s.discard(a)
	case MoveRobber:
		return s.moveRobber(a)
	case BuyDevCard:
		return s.buyDevCard(a)
	case PlayKnight:
		return s.playKnight(a)
	case PlayMonopoly:
		return s.playMonopoly(a)
	case PlayRoadBuilding:
		return s.playRoadBuilding(a)
	case PlayYearOfPlenty:
		return s.playYearOfPlenty(a)
	case RevealVictoryPoint:
		return s.revealVictoryPoint(a)
	case TradeBank:
		return s.tradeBank(a)
	case ProposeTrade:
		return s.proposeTrade(a)
	case CounterTrade:
		return s.counterTrade(a)
	case AcceptTrade:
		return s.acceptTrade(a)
	case RejectTrade:
		return s.rejectTrade(a)
	case EndTurn:
		return s.endTurn(a)
	default:
		return nil, gameerr.Invalid("unsupported action %T", action)
	}
}

func (s *Session) requireCurrent(seat int) error {
	if seat != s.order.Current {
		return gameerr.Illegal("it is seat %d's turn, not seat %d's", s.order.Current, seat)
	}
	return nil
}

func (s *Session) requirePieces(seat int, piece ledger.Piece) error {
	if s.ledger.PiecesLeft(seat, piece) <= 0 {
		return gameerr.Illegal("seat %d has no %ss left", seat, piece)
	}
	return nil
}

func (s *Session) buildSettlement(a BuildSettlement) (Effect, error) {
	if err := s.requireCurrent(a.By); err != nil {
		return nil, err
	}
	if !s.board.ValidVertex(a.Vertex) {
		return nil, gameerr.Invalid("unknown vertex %d", a.Vertex)
	}
	effect := SettlementBuilt{Seat: a.By, Vertex: a.Vertex}

	if s.phase.IsSetup() {
		if s.setupStep != rules.SetupSettlement {
			return nil, gameerr.Illegal("seat %d must place a road next", a.By)
		}
		if err := s.board.PlaceSettlement(a.Vertex, a.By, true); err != nil {
			return nil, err
		}
		if err := s.ledger.BuildPiece(a.By, ledger.PieceSettlement); err != nil {
			return nil, err
		}
		if s.phase == rules.PhaseSetupBackward {
			for _, t := range s.board.TilesOf(a.Vertex) {
				tile, _ := s.board.Tile(t)
				if r := tile.Terrain.Resource(); r.Valid() {
					effect.Production[r]++
				}
			}
			if err := s.ledger.Grant(a.By, effect.Production); err != nil {
				return nil, err
			}
		}
		s.setupStep = rules.SetupRoad
		s.setupAnchor = a.Vertex
		s.updateLongestRoad()
		return effect, nil
	}

	if err := s.board.CanPlaceSettlement(a.Vertex, a.By, false); err != nil {
		return nil, err
	}
	if err := s.requirePieces(a.By, ledger.PieceSettlement); err != nil {
		return nil, err
	}
	if err := s.ledger.Pay(a.By, resource.SettlementCost); err != nil {
		return nil, err
	}
	effect.Paid = resource.SettlementCost
	if err := s.board.PlaceSettlement(a.Vertex, a.By, false); err != nil {
		return nil, err
	}
	if err := s.ledger.BuildPiece(a.By, ledger.PieceSettlement); err != nil {
		return nil, err
	}
	s.updateLongestRoad()
	return effect, nil
}

func (s *Session) buildCity(a BuildCity) (Effect, error) {
	if err := s.requireCurrent(a.By); err != nil {
		return nil, err
	}
	if !s.board.ValidVertex(a.Vertex) {
		return nil, gameerr.Invalid("unknown vertex %d", a.Vertex)
	}
	if err := s.board.CanUpgradeToCity(a.Vertex, a.By); err != nil {
		return nil, err
	}
	if err := s.requirePieces(a.By, ledger.PieceCity); err != nil {
		return nil, err
	}
	if err := s.ledger.Pay(a.By, resource.CityCost); err != nil {
		return nil, err
	}
	if err := s.board.UpgradeToCity(a.Vertex, a.By); err != nil {
		return nil, err
	}
	if err := s.ledger.BuildPiece(a.By, ledger.PieceCity); err != nil {
		return nil, err
	}
	return CityBuilt{Seat: a.By, Vertex: a.Vertex, Paid: resource.CityCost}, nil
}

func (s *Session) buildRoad(a BuildRoad) (Effect, error) {
	if err := s.requireCurrent(a.By); err != nil {
		return nil, err
	}
	if !s.board.ValidEdge(a.Edge) {
		return nil, gameerr.Invalid("unknown edge %d", a.Edge)
	}
	effect := RoadBuilt{Seat: a.By, Edge: a.Edge}

	if s.phase.IsSetup() {
		if s.setupStep != rules.SetupRoad {
			return nil, gameerr.Illegal("seat %d must place a settlement next", a.By)
		}
		ends := s.board.EdgeEnds(a.Edge)
		if ends[0] != s.setupAnchor && ends[1] != s.setupAnchor {
			return nil, gameerr.New(gameerr.CodeAdjacency,
				"setup road %d must touch the settlement at vertex %d", a.Edge, s.setupAnchor)
		}
		if err := s.board.PlaceRoad(a.Edge, a.By); err != nil {
			return nil, err
		}
		if err := s.ledger.BuildPiece(a.By, ledger.PieceRoad); err != nil {
			return nil, err
		}
		s.setupStep = rules.SetupSettlement
		s.setupAnchor = -1
		s.phase = s.order.AdvanceSetup(s.phase)
		s.updateLongestRoad()
		return effect, nil
	}

	if err := s.board.CanPlaceRoad(a.Edge, a.By); err != nil {
		return nil, err
	}
	if err := s.requirePieces(a.By, ledger.PieceRoad); err != nil {
		return nil, err
	}
	if s.freeRoads > 0 {
		s.freeRoads--
	} else {
		if err := s.ledger.Pay(a.By, resource.RoadCost); err != nil {
			return nil, err
		}
		effect.Paid = resource.RoadCost
	}
	if err := s.board.PlaceRoad(a.Edge, a.By); err != nil {
		return nil, err
	}
	if err := s.ledger.BuildPiece(a.By, ledger.PieceRoad); err != nil {
		return nil, err
	}
	s.updateLongestRoad()
	return effect, nil
}

func (s *Session) roll(a Roll) (Effect, error) {
	if err := s.requireCurrent(a.By); err != nil {
		return nil, err
	}
	dice := a.Dice
	if dice == [2]int{} {
		dice = [2]int{s.rng.IntN(6) + 1, s.rng.IntN(6) + 1}
	}
	for _, d := range dice {
		if d < 1 || d > 6 {
			return nil, gameerr.Invalid("die value %d outside 1..6", d)
		}
	}
	s.dice = dice
	seats := len(s.cfg.Players)
	effect := Rolled{Dice: dice, Production: make([]resource.Bundle, seats)}

	if dice[0]+dice[1] == 7 {
		owed := make([]int, seats)
		owing := false
		for seat := range owed {
			if n := s.ledger.Hand(seat).Total(); n > discardThreshold {
				owed[seat] = n / 2
				owing = true
			}
		}
		if owing {
			s.discards = owed
			s.phase = rules.PhaseDiscarding
		} else {
			s.phase = rules.PhaseMovingRobber
		}
		return effect, nil
	}

	effect.Production = s.production(dice[0] + dice[1])
	for seat, got := range effect.Production {
		if err := s.ledger.Grant(seat, got); err != nil {
			return nil, err
		}
	}
	s.phase = rules.PhasePostRoll
	return effect, nil
}

// production computes what each seat receives for a roll. A resource the
// bank cannot pay out to every claimant in full goes to nobody.
func (s *Session) production(number int) []resource.Bundle {
	claims := make([]resource.Bundle, len(s.cfg.Players))
	for _, tile := range s.board.Tiles() {
		if tile.Token != number || tile.ID == s.board.Robber() {
			continue
		}
		r := tile.Terrain.Resource()
		if !r.Valid() {
			continue
		}
		for _, v := range tile.Vertices {
			building := s.board.Building(v)
			switch building.Kind {
			case board.Settlement:
				claims[building.Owner][r]++
			case board.City:
				claims[building.Owner][r] += 2
			}
		}
	}
	bank := s.ledger.Bank()
	for _, r := range resource.All() {
		demand := 0
		for _, c := range claims {
			demand += c[r]
		}
		if demand > bank[r] {
			for seat := range claims {
				claims[seat][r] = 0
			}
		}
	}
	return claims
}

func (s *Session) discard(a Discard) (Effect, error) {
	if s.discards == nil || s.discards[a.By] == 0 {
		return nil, gameerr.Illegal("seat %d owes no discard", a.By)
	}
	if !a.Cards.NonNegative() {
		return nil, gameerr.Invalid("cannot discard %v", a.Cards)
	}
	if owed := s.discards[a.By]; a.Cards.Total() != owed {
		return nil, gameerr.Invalid("seat %d must discard %d cards, not %d", a.By, owed, a.Cards.Total())
	}
	if err := s.ledger.Pay(a.By, a.Cards); err != nil {
		return nil, err
	}
	s.discards[a.By] = 0
	if !slices.ContainsFunc(s.discards, func(n int) bool { return n > 0 }) {
		s.discards = nil
		s.phase = rules.PhaseMovingRobber
	}
	return Discarded{Seat: a.By, Cards: a.Cards}, nil
}

func (s *Session) moveRobber(a MoveRobber) (Effect, error) {
	if err := s.requireCurrent(a.By); err != nil {
		return nil, err
	}
	effect, err := s.rob(a.By, a.Tile, a.Victim)
	if err != nil {
		return nil, err
	}
	s.phase = rules.PhasePostRoll
	return effect, nil
}

// rob moves the robber and steals one uniformly random card from the
// victim. A victim must be named whenever an opponent with cards has a
// building on the tile.
func (s *Session) rob(thief int, tile board.TileID, victim int) (RobberMoved, error) {
	effect := RobberMoved{From: s.board.Robber(), To: tile, Thief: thief, Victim: board.Nobody, Stolen: resource.None}
	if !s.board.ValidTile(tile) {
		return effect, gameerr.Invalid("unknown tile %d", tile)
	}
	if err := s.board.MoveRobber(tile); err != nil {
		return effect, err
	}

	onTile := s.board.SeatsOnTile(tile)
	var eligible []int
	for _, seat := range onTile {
		if seat != thief && s.ledger.Hand(seat).Total() > 0 {
			eligible = append(eligible, seat)
		}
	}
	if victim == board.Nobody {
		if len(eligible) > 0 {
			return effect, gameerr.Invalid("choose a seat to rob among %v", eligible)
		}
		return effect, nil
	}
	if victim == thief {
		return effect, gameerr.Invalid("seat %d cannot rob itself", thief)
	}
	if !slices.Contains(onTile, victim) {
		return effect, gameerr.Invalid("seat %d has no building on tile %d", victim, tile)
	}
	effect.Victim = victim
	hand := s.ledger.Hand(victim)
	if hand.Total() == 0 {
		return effect, nil
	}
	stolen, _ := hand.Nth(s.rng.IntN(hand.Total()))
	if err := s.ledger.Transfer(victim, thief, stolen, 1); err != nil {
		return effect, err
	}
	effect.Stolen = stolen
	return effect, nil
}

func (s *Session) buyDevCard(a BuyDevCard) (Effect, error) {
	if err := s.requireCurrent(a.By); err != nil {
		return nil, err
	}
	if s.ledger.PileRemaining() == 0 {
		return nil, gameerr.New(gameerr.CodeEmptyPile, "development pile is empty")
	}
	if err := s.ledger.Pay(a.By, resource.DevCardCost); err != nil {
		return nil, err
	}
	card, err := s.ledger.DrawDevCard(a.By)
	if err != nil {
		return nil, err
	}
	return DevCardBought{Seat: a.By, Card: card, Paid: resource.DevCardCost}, nil
}

func (s *Session) playCard(seat int, card ledger.DevCard) error {
	if err := s.requireCurrent(seat); err != nil {
		return err
	}
	return s.ledger.PlayDevCard(seat, card, s.phase.IsSetup())
}

func (s *Session) playKnight(a PlayKnight) (Effect, error) {
	if err := s.playCard(a.By, ledger.Knight); err != nil {
		return nil, err
	}
	robbery, err := s.rob(a.By, a.Tile, a.Victim)
	if err != nil {
		return nil, err
	}
	s.updateLargestArmy()
	return KnightPlayed{Robbery: robbery}, nil
}

func (s *Session) playMonopoly(a PlayMonopoly) (Effect, error) {
	if !a.Resource.Valid() {
		return nil, gameerr.Invalid("unknown resource %d", a.Resource)
	}
	if err := s.playCard(a.By, ledger.Monopoly); err != nil {
		return nil, err
	}
	effect := MonopolyPlayed{Seat: a.By, Resource: a.Resource, Taken: make([]int, len(s.cfg.Players))}
	for seat := range s.cfg.Players {
		if seat == a.By {
			continue
		}
		n := s.ledger.Hand(seat).Get(a.Resource)
		if n == 0 {
			continue
		}
		if err := s.ledger.Transfer(seat, a.By, a.Resource, n); err != nil {
			return nil, err
		}
		effect.Taken[seat] = n
	}
	return effect, nil
}

func (s *Session) playRoadBuilding(a PlayRoadBuilding) (Effect, error) {
	if err := s.playCard(a.By, ledger.RoadBuilding); err != nil {
		return nil, err
	}
	s.freeRoads = min(2, s.ledger.PiecesLeft(a.By, ledger.PieceRoad))
	return RoadBuildingPlayed{Seat: a.By, FreeRoads: s.freeRoads}, nil
}

func (s *Session) playYearOfPlenty(a PlayYearOfPlenty) (Effect, error) {
	if !a.First.Valid() || !a.Second.Valid() {
		return nil, gameerr.Invalid("unknown resource %d/%d", a.First, a.Second)
	}
	if err := s.playCard(a.By, ledger.YearOfPlenty); err != nil {
		return nil, err
	}
	gained := resource.Single(a.First, 1).Plus(resource.Single(a.Second, 1))
	if err := s.ledger.Grant(a.By, gained); err != nil {
		return nil, err
	}
	return YearOfPlentyPlayed{Seat: a.By, Gained: gained}, nil
}

func (s *Session) revealVictoryPoint(a RevealVictoryPoint) (Effect, error) {
	if err := s.playCard(a.By, ledger.VictoryPoint); err != nil {
		return nil, err
	}
	return VictoryPointRevealed{Seat: a.By}, nil
}

func (s *Session) tradeBank(a TradeBank) (Effect, error) {
	if err := s.requireCurrent(a.By); err != nil {
		return nil, err
	}
	ratio := func(r resource.Type) int { return s.board.PortRatio(a.By, r) }
	if err := trade.QuoteBank(a.Give, a.Want, ratio, s.ledger.Bank()); err != nil {
		return nil, err
	}
	if err := s.ledger.Pay(a.By, a.Give); err != nil {
		return nil, err
	}
	if err := s.ledger.Grant(a.By, a.Want); err != nil {
		return nil, err
	}
	return BankTraded{Seat: a.By, Give: a.Give, Want: a.Want}, nil
}

func (s *Session) proposeTrade(a ProposeTrade) (Effect, error) {
	if err := s.requireCurrent(a.By); err != nil {
		return nil, err
	}
	if err := s.checkSeat(a.To); err != nil {
		return nil, err
	}
	offer, err := s.negotiation.Propose(a.By, a.To, a.Give, a.Want)
	if err != nil {
		return nil, err
	}
	if !s.ledger.Hand(a.By).Covers(a.Give) {
		return nil, gameerr.New(gameerr.CodeInsufficientResource, "seat %d cannot offer %s", a.By, a.Give)
	}
	s.phase = rules.PhaseTrading
	return TradeProposed{Offer: offer}, nil
}

func (s *Session) counterTrade(a CounterTrade) (Effect, error) {
	offer, err := s.negotiation.Counter(a.By, a.Give, a.Want)
	if err != nil {
		return nil, err
	}
	if !s.ledger.Hand(a.By).Covers(a.Give) {
		return nil, gameerr.New(gameerr.CodeInsufficientResource, "seat %d cannot offer %s", a.By, a.Give)
	}
	return TradeCountered{Offer: offer}, nil
}

func (s *Session) acceptTrade(a AcceptTrade) (Effect, error) {
	offer, err := s.negotiation.Accept(a.By)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.Exchange(offer.From, offer.To, offer.Give, offer.Want); err != nil {
		return nil, err
	}
	s.phase = rules.PhasePostRoll
	return TradeAccepted{Offer: offer}, nil
}

func (s *Session) rejectTrade(a RejectTrade) (Effect, error) {
	offer, err := s.negotiation.Reject(a.By)
	if err != nil {
		return nil, err
	}
	s.phase = rules.PhasePostRoll
	return TradeRejected{Offer: offer, By: a.By}, nil
}

func (s *Session) endTurn(a EndTurn) (Effect, error) {
	if err := s.requireCurrent(a.By); err != nil {
		return nil, err
	}
	s.ledger.EndTurn(a.By)
	s.freeRoads = 0
	if s.ledger.Account(a.By).VictoryPoints >= s.cfg.VictoryTarget {
		s.winner = a.By
		s.phase = rules.PhaseGameOver
		return TurnEnded{Seat: a.By, Won: true}, nil
	}
	s.order.AdvanceTurn()
	s.dice = [2]int{}
	s.phase = rules.PhasePreRoll
	return TurnEnded{Seat: a.By}, nil
}

func (s *Session) updateLongestRoad() {
	scores := make([]int, len(s.cfg.Players))
	for seat := range scores {
		scores[seat] = s.board.LongestRoad(seat)
	}
	s.ledger.SetLongestRoad(rules.AwardTitle(s.ledger.LongestRoad(), scores, s.cfg.MinLongestRoad))
}

func (s *Session) updateLargestArmy() {
	scores := make([]int, len(s.cfg.Players))
	for seat := range scores {
		scores[seat] = s.ledger.Account(seat).Knights()
	}
	s.ledger.SetLargestArmy(rules.AwardTitle(s.ledger.LargestArmy(), scores, s.cfg.MinLargestArmy))
}
