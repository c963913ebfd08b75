package rules

import (
	"fmt"
)

// Phase is the state of the turn state machine.
type Phase int

const (
	PhaseSetupForward Phase = iota
	PhaseSetupBackward
	PhasePreRoll
	PhasePostRoll
	PhaseTrading
	PhaseMovingRobber
	PhaseDiscarding
	PhaseGameOver
)

var phaseNames = map[Phase]string{
	PhaseSetupForward:  "SETUP_FORWARD",
	PhaseSetupBackward: "SETUP_BACKWARD",
	PhasePreRoll:       "PRE_ROLL",
	PhasePostRoll:      "POST_ROLL",
	PhaseTrading:       "TRADING",
	PhaseMovingRobber:  "MOVING_ROBBER",
	PhaseDiscarding:    "DISCARDING",
	PhaseGameOver:      "GAME_OVER",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// Phases returns every phase in declaration order.
func Phases() []Phase {
	return []Phase{
		PhaseSetupForward,
		PhaseSetupBackward,
		PhasePreRoll,
		PhasePostRoll,
		PhaseTrading,
		PhaseMovingRobber,
		PhaseDiscarding,
		PhaseGameOver,
	}
}

// IsSetup reports whether pieces are still being placed for free.
func (p Phase) IsSetup() bool {
	return p == PhaseSetupForward || p == PhaseSetupBackward
}

// SetupStep is the piece a seat places next during setup.
type SetupStep int

const (
	SetupSettlement SetupStep = iota
	SetupRoad
)

func (s SetupStep) String() string {
	if s == SetupRoad {
		return "ROAD"
	}
	return "SETTLEMENT"
}

// TurnOrder tracks whose turn it is. During setup seats place forward
// 0..n-1, then backward n-1..0, so the last seat places twice in a row.
type TurnOrder struct {
	Seats   int
	Current int
	Turn    int
}

// NewTurnOrder starts setup with seat 0.
func NewTurnOrder(seats int) TurnOrder {
	return TurnOrder{Seats: seats}
}

// AdvanceSetup moves to the next seat after a setup road and returns the
// phase that follows. Turn numbering starts at 1 once setup ends.
func (t *TurnOrder) AdvanceSetup(phase Phase) Phase {
	switch phase {
	case PhaseSetupForward:
		if t.Current == t.Seats-1 {
			return PhaseSetupBackward
		}
		t.Current++
		return PhaseSetupForward
	case PhaseSetupBackward:
		if t.Current == 0 {
			t.Turn = 1
			return PhasePreRoll
		}
		t.Current--
		return PhaseSetupBackward
	}
	return phase
}

// AdvanceTurn passes the turn to the next seat.
func (t *TurnOrder) AdvanceTurn() {
	t.Current = (t.Current + 1) % t.Seats
	t.Turn++
}
