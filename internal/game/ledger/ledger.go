// Package ledger keeps the books of a game: every seat's hand, development
// cards and built pieces, the bank, the development pile and the two titles.
//
// All checked operations are atomic: they either apply completely or return a
// *gameerr.Error and leave the ledger untouched. Resources only ever move
// between the bank and the seats, so Total(r) is constant for a game.
package ledger

import (
	"fmt"

	"github.com/hexlog/catan-server-go/internal/game/gameerr"
	"github.com/hexlog/catan-server-go/internal/game/resource"
)

// Nobody marks an unheld title.
const Nobody = -1

// BankSupply is the starting bank stock of each resource.
const BankSupply = 19

// Piece limits per seat.
const (
	MaxSettlements = 5
	MaxCities      = 4
	MaxRoads       = 15
)

// Piece is a kind of building piece.
type Piece int

const (
	PieceRoad Piece = iota
	PieceSettlement
	PieceCity
)

func (p Piece) String() string {
	switch p {
	case PieceRoad:
		return "road"
	case PieceSettlement:
		return "settlement"
	case PieceCity:
		return "city"
	default:
		return fmt.Sprintf("piece_%d", int(p))
	}
}

// Account is one seat's holdings.
type Account struct {
	Hand resource.Bundle
	// Cards are playable; Fresh were drawn this turn.
	Cards          DevCards
	Fresh          DevCards
	Played         DevCards
	PlayedThisTurn bool
	Settlements    int
	Cities         int
	Roads          int
	VictoryPoints  int
}

// Knights returns the army size.
func (a Account) Knights() int {
	return a.Played[Knight]
}

// Shuffler is satisfied by *rand.Rand.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// Ledger is the game's book of accounts.
type Ledger struct {
	accounts    []Account
	bank        resource.Bundle
	pile        []DevCard
	cursor      int
	longestRoad int
	largestArmy int
}

// New opens a ledger for the given number of seats and shuffles the
// development pile once.
func New(seats int, rng Shuffler) *Ledger {
	l := &Ledger{
		accounts:    make([]Account, seats),
		longestRoad: Nobody,
		largestArmy: Nobody,
	}
	for _, r := range resource.All() {
		l.bank[r] = BankSupply
	}
	for card, n := range pileComposition {
		for i := 0; i < n; i++ {
			l.pile = append(l.pile, DevCard(card))
		}
	}
	if rng != nil {
		rng.Shuffle(len(l.pile), func(i, j int) {
			l.pile[i], l.pile[j] = l.pile[j], l.pile[i]
		})
	}
	return l
}

// Seats returns the number of accounts.
func (l *Ledger) Seats() int { return len(l.accounts) }

// Account returns a copy of seat's account.
func (l *Ledger) Account(seat int) Account { return l.accounts[seat] }

// Hand returns seat's resources.
func (l *Ledger) Hand(seat int) resource.Bundle { return l.accounts[seat].Hand }

// Bank returns the bank's stock.
func (l *Ledger) Bank() resource.Bundle { return l.bank }

// PileRemaining returns the number of undrawn development cards.
func (l *Ledger) PileRemaining() int { return len(l.pile) - l.cursor }

// LongestRoad returns the longest-road holder or Nobody.
func (l *Ledger) LongestRoad() int { return l.longestRoad }

// LargestArmy returns the largest-army holder or Nobody.
func (l *Ledger) LargestArmy() int { return l.largestArmy }

// Total returns the bank stock of r plus every seat's holding of r.
func (l *Ledger) Total(r resource.Type) int {
	total := l.bank[r]
	for _, acct := range l.accounts {
		total += acct.Hand[r]
	}
	return total
}

func (l *Ledger) checkSeat(seat int) error {
	if seat < 0 || seat >= len(l.accounts) {
		return gameerr.Invalid("unknown seat %d", seat)
	}
	return nil
}

// Credit moves n of r from the bank to seat.
func (l *Ledger) Credit(seat int, r resource.Type, n int) error {
	if !r.Valid() || n < 0 {
		return gameerr.Invalid("cannot credit %d %s", n, r)
	}
	return l.Grant(seat, resource.Single(r, n))
}

// Debit moves n of r from seat to the bank.
func (l *Ledger) Debit(seat int, r resource.Type, n int) error {
	if !r.Valid() || n < 0 {
		return gameerr.Invalid("cannot debit %d %s", n, r)
	}
	return l.Pay(seat, resource.Single(r, n))
}

// Grant moves a bundle from the bank to seat.
func (l *Ledger) Grant(seat int, b resource.Bundle) error {
	if err := l.checkSeat(seat); err != nil {
		return err
	}
	if !b.NonNegative() {
		return gameerr.Invalid("negative grant %v", b)
	}
	if !l.bank.Covers(b) {
		return gameerr.New(gameerr.CodeInsufficientResource, "bank cannot pay %s", b)
	}
	l.Move(seat, b)
	return nil
}

// Pay moves a bundle from seat to the bank.
func (l *Ledger) Pay(seat int, b resource.Bundle) error {
	if err := l.checkSeat(seat); err != nil {
		return err
	}
	if !b.NonNegative() {
		return gameerr.Invalid("negative payment %v", b)
	}
	if !l.accounts[seat].Hand.Covers(b) {
		return gameerr.New(gameerr.CodeInsufficientResource, "seat %d cannot pay %s", seat, b)
	}
	l.Move(seat, resource.Bundle{}.Minus(b))
	return nil
}

// Transfer moves n of r from one seat to another.
func (l *Ledger) Transfer(from, to int, r resource.Type, n int) error {
	if !r.Valid() || n < 0 {
		return gameerr.Invalid("cannot transfer %d %s", n, r)
	}
	return l.Exchange(from, to, resource.Single(r, n), resource.Bundle{})
}

// Exchange swaps aGives from a to b and bGives from b to a in one step.
func (l *Ledger) Exchange(a, b int, aGives, bGives resource.Bundle) error {
	if err := l.checkSeat(a); err != nil {
		return err
	}
	if err := l.checkSeat(b); err != nil {
		return err
	}
	if a == b {
		return gameerr.Invalid("seat %d cannot trade with itself", a)
	}
	if !aGives.NonNegative() || !bGives.NonNegative() {
		return gameerr.Invalid("negative exchange %v / %v", aGives, bGives)
	}
	if !l.accounts[a].Hand.Covers(aGives) {
		return gameerr.New(gameerr.CodeInsufficientResource, "seat %d cannot give %s", a, aGives)
	}
	if !l.accounts[b].Hand.Covers(bGives) {
		return gameerr.New(gameerr.CodeInsufficientResource, "seat %d cannot give %s", b, bGives)
	}
	delta := bGives.Minus(aGives)
	l.Move(a, delta)
	l.Move(b, resource.Bundle{}.Minus(delta))
	return nil
}

// Move adds delta to seat's hand and takes it from the bank without checks.
// A negative delta returns resources to the bank. Used to replay and rewind
// history.
func (l *Ledger) Move(seat int, delta resource.Bundle) {
	l.accounts[seat].Hand = l.accounts[seat].Hand.Plus(delta)
	l.bank = l.bank.Minus(delta)
}

// DrawDevCard gives seat the next card from the pile. The card is fresh
// until EndTurn.
func (l *Ledger) DrawDevCard(seat int) (DevCard, error) {
	if err := l.checkSeat(seat); err != nil {
		return 0, err
	}
	if l.cursor >= len(l.pile) {
		return 0, gameerr.New(gameerr.CodeEmptyPile, "development pile is empty")
	}
	card := l.pile[l.cursor]
	l.cursor++
	l.accounts[seat].Fresh[card]++
	return card, nil
}

// PlayDevCard moves a card from seat's hand to its played pile. Outside
// setup a card drawn this turn cannot be played, and only one non victory
// point card may be played per turn.
func (l *Ledger) PlayDevCard(seat int, card DevCard, setup bool) error {
	if err := l.checkSeat(seat); err != nil {
		return err
	}
	if !card.Valid() {
		return gameerr.Invalid("unknown development card %d", card)
	}
	acct := &l.accounts[seat]
	if card != VictoryPoint && acct.PlayedThisTurn {
		return gameerr.New(gameerr.CodeNotPlayable, "seat %d already played a card this turn", seat)
	}
	switch {
	case acct.Cards[card] > 0:
		acct.Cards[card]--
	case setup && acct.Fresh[card] > 0:
		acct.Fresh[card]--
	case acct.Fresh[card] > 0:
		return gameerr.New(gameerr.CodeNotPlayable, "%s was drawn this turn", card)
	default:
		return gameerr.New(gameerr.CodeNotPlayable, "seat %d holds no %s", seat, card)
	}
	acct.Played[card]++
	if card == VictoryPoint {
		acct.VictoryPoints++
	} else {
		acct.PlayedThisTurn = true
	}
	return nil
}

// CanPlay reports whether PlayDevCard would succeed, without mutating.
func (l *Ledger) CanPlay(seat int, card DevCard, setup bool) error {
	saved := l.accounts[seat]
	err := l.PlayDevCard(seat, card, setup)
	l.accounts[seat] = saved
	return err
}

// BuildPiece takes a piece from seat's supply and adds its victory points.
// A city returns the settlement it replaces to the supply.
func (l *Ledger) BuildPiece(seat int, piece Piece) error {
	if err := l.checkSeat(seat); err != nil {
		return err
	}
	acct := &l.accounts[seat]
	switch piece {
	case PieceRoad:
		if acct.Roads >= MaxRoads {
			return gameerr.Illegal("seat %d has no roads left", seat)
		}
		acct.Roads++
	case PieceSettlement:
		if acct.Settlements >= MaxSettlements {
			return gameerr.Illegal("seat %d has no settlements left", seat)
		}
		acct.Settlements++
		acct.VictoryPoints++
	case PieceCity:
		if acct.Cities >= MaxCities {
			return gameerr.Illegal("seat %d has no cities left", seat)
		}
		if acct.Settlements == 0 {
			return gameerr.Illegal("seat %d has no settlement to upgrade", seat)
		}
		acct.Settlements--
		acct.Cities++
		acct.VictoryPoints++
	default:
		return gameerr.Invalid("unknown piece %d", piece)
	}
	return nil
}

// RemovePiece reverses BuildPiece without checks. Used to rewind history.
func (l *Ledger) RemovePiece(seat int, piece Piece) {
	acct := &l.accounts[seat]
	switch piece {
	case PieceRoad:
		acct.Roads--
	case PieceSettlement:
		acct.Settlements--
		acct.VictoryPoints--
	case PieceCity:
		acct.Cities--
		acct.Settlements++
		acct.VictoryPoints--
	}
}

// AddPiece repeats BuildPiece without checks. Used to replay history.
func (l *Ledger) AddPiece(seat int, piece Piece) {
	acct := &l.accounts[seat]
	switch piece {
	case PieceRoad:
		acct.Roads++
	case PieceSettlement:
		acct.Settlements++
		acct.VictoryPoints++
	case PieceCity:
		acct.Cities++
		acct.Settlements--
		acct.VictoryPoints++
	}
}

// PiecesLeft returns how many of piece seat can still build.
func (l *Ledger) PiecesLeft(seat int, piece Piece) int {
	acct := l.accounts[seat]
	switch piece {
	case PieceRoad:
		return MaxRoads - acct.Roads
	case PieceSettlement:
		return MaxSettlements - acct.Settlements
	case PieceCity:
		return MaxCities - acct.Cities
	}
	return 0
}

// ComputeVictoryPoints derives seat's points from its pieces, revealed
// victory point cards and titles.
func (l *Ledger) ComputeVictoryPoints(seat int) int {
	acct := l.accounts[seat]
	vp := acct.Settlements + 2*acct.Cities + acct.Played[VictoryPoint]
	if l.longestRoad == seat {
		vp += 2
	}
	if l.largestArmy == seat {
		vp += 2
	}
	return vp
}

// RecomputeVictoryPoints checks the tracked points of seat against a fresh
// derivation and returns the derived value.
func (l *Ledger) RecomputeVictoryPoints(seat int) (int, error) {
	if err := l.checkSeat(seat); err != nil {
		return 0, err
	}
	vp := l.ComputeVictoryPoints(seat)
	if tracked := l.accounts[seat].VictoryPoints; tracked != vp {
		return vp, gameerr.WithMetadata(gameerr.CodeInvariantViolation,
			fmt.Sprintf("seat %d tracks %d victory points, derived %d", seat, tracked, vp),
			map[string]string{"seat": fmt.Sprint(seat)})
	}
	return vp, nil
}

// SetLongestRoad hands the longest-road title to seat (or Nobody) and moves
// its two points.
func (l *Ledger) SetLongestRoad(seat int) {
	l.longestRoad = l.moveTitle(l.longestRoad, seat)
}

// SetLargestArmy hands the largest-army title to seat (or Nobody) and moves
// its two points.
func (l *Ledger) SetLargestArmy(seat int) {
	l.largestArmy = l.moveTitle(l.largestArmy, seat)
}

func (l *Ledger) moveTitle(from, to int) int {
	if from == to {
		return to
	}
	if from != Nobody {
		l.accounts[from].VictoryPoints -= 2
	}
	if to != Nobody {
		l.accounts[to].VictoryPoints += 2
	}
	return to
}

// EndTurn makes seat's fresh cards playable and clears its per-turn flag.
func (l *Ledger) EndTurn(seat int) {
	acct := &l.accounts[seat]
	for i, n := range acct.Fresh {
		acct.Cards[i] += n
	}
	acct.Fresh = DevCards{}
	acct.PlayedThisTurn = false
}
