package ledger

import (
	"fmt"

	"github.com/hexlog/catan-server-go/internal/game/resource"
)

// Mark is the card and score state of one seat that history restores
// wholesale instead of replaying.
type Mark struct {
	Cards          DevCards
	Fresh          DevCards
	Played         DevCards
	PlayedThisTurn bool
	VictoryPoints  int
}

// Marks is the wholesale-restored part of the ledger.
type Marks struct {
	Seats       []Mark
	Cursor      int
	LongestRoad int
	LargestArmy int
}

// Marks captures card state, scores, titles and the pile cursor.
func (l *Ledger) Marks() Marks {
	m := Marks{
		Seats:       make([]Mark, len(l.accounts)),
		Cursor:      l.cursor,
		LongestRoad: l.longestRoad,
		LargestArmy: l.largestArmy,
	}
	for i, acct := range l.accounts {
		m.Seats[i] = Mark{
			Cards:          acct.Cards,
			Fresh:          acct.Fresh,
			Played:         acct.Played,
			PlayedThisTurn: acct.PlayedThisTurn,
			VictoryPoints:  acct.VictoryPoints,
		}
	}
	return m
}

// RestoreMarks overwrites card state, scores, titles and the pile cursor.
func (l *Ledger) RestoreMarks(m Marks) {
	for i, mark := range m.Seats {
		acct := &l.accounts[i]
		acct.Cards = mark.Cards
		acct.Fresh = mark.Fresh
		acct.Played = mark.Played
		acct.PlayedThisTurn = mark.PlayedThisTurn
		acct.VictoryPoints = mark.VictoryPoints
	}
	l.cursor = m.Cursor
	l.longestRoad = m.LongestRoad
	l.largestArmy = m.LargestArmy
}

// State is a complete copy of the ledger.
type State struct {
	Accounts    []Account
	Bank        resource.Bundle
	Pile        []DevCard
	Cursor      int
	LongestRoad int
	LargestArmy int
}

// State copies the ledger.
func (l *Ledger) State() State {
	return State{
		Accounts:    append([]Account(nil), l.accounts...),
		Bank:        l.bank,
		Pile:        append([]DevCard(nil), l.pile...),
		Cursor:      l.cursor,
		LongestRoad: l.longestRoad,
		LargestArmy: l.largestArmy,
	}
}

// FromState rebuilds a ledger from a copy taken with State.
func FromState(s State) (*Ledger, error) {
	if len(s.Accounts) == 0 {
		return nil, fmt.Errorf("ledger state has no accounts")
	}
	if s.Cursor < 0 || s.Cursor > len(s.Pile) {
		return nil, fmt.Errorf("pile cursor %d outside pile of %d", s.Cursor, len(s.Pile))
	}
	for _, holder := range []int{s.LongestRoad, s.LargestArmy} {
		if holder != Nobody && (holder < 0 || holder >= len(s.Accounts)) {
			return nil, fmt.Errorf("title held by unknown seat %d", holder)
		}
	}
	if !s.Bank.NonNegative() {
		return nil, fmt.Errorf("negative bank %v", s.Bank)
	}
	return &Ledger{
		accounts:    append([]Account(nil), s.Accounts...),
		bank:        s.Bank,
		pile:        append([]DevCard(nil), s.Pile...),
		cursor:      s.Cursor,
		longestRoad: s.LongestRoad,
		largestArmy: s.LargestArmy,
	}, nil
}
