package rules

import (
	"fmt"
	"strings"

	"github.com/hexlog/catan-server-go/internal/game/gameerr"
)

// ActionKind names a state-mutating command.
type ActionKind string

const (
	ActionBuildSettlement    ActionKind = "BUILD_SETTLEMENT"
	ActionBuildCity          ActionKind = "BUILD_CITY"
	ActionBuildRoad          ActionKind = "BUILD_ROAD"
	ActionRoll               ActionKind = "ROLL"
	ActionDiscard            ActionKind = "DISCARD"
	ActionMoveRobber         ActionKind = "MOVE_ROBBER"
	ActionBuyDevCard         ActionKind = "BUY_DEV_CARD"
	ActionPlayKnight         ActionKind = "PLAY_KNIGHT"
	ActionPlayMonopoly       ActionKind = "PLAY_MONOPOLY"
	ActionPlayRoadBuilding   ActionKind = "PLAY_ROAD_BUILDING"
	ActionPlayYearOfPlenty   ActionKind = "PLAY_YEAR_OF_PLENTY"
	ActionRevealVictoryPoint ActionKind = "REVEAL_VICTORY_POINT"
	ActionTradeBank          ActionKind = "TRADE_BANK"
	ActionProposeTrade       ActionKind = "PROPOSE_TRADE"
	ActionCounterTrade       ActionKind = "COUNTER_TRADE"
	ActionAcceptTrade        ActionKind = "ACCEPT_TRADE"
	ActionRejectTrade        ActionKind = "REJECT_TRADE"
	ActionEndTurn            ActionKind = "END_TURN"
)

// ActionKinds returns every action kind.
func ActionKinds() []ActionKind {
	return []ActionKind{
		ActionBuildSettlement,
		ActionBuildCity,
		ActionBuildRoad,
		ActionRoll,
		ActionDiscard,
		ActionMoveRobber,
		ActionBuyDevCard,
		ActionPlayKnight,
		ActionPlayMonopoly,
		ActionPlayRoadBuilding,
		ActionPlayYearOfPlenty,
		ActionRevealVictoryPoint,
		ActionTradeBank,
		ActionProposeTrade,
		ActionCounterTrade,
		ActionAcceptTrade,
		ActionRejectTrade,
		ActionEndTurn,
	}
}

// ParseActionKind accepts "build_road", "BUILD_ROAD" and so on.
func ParseActionKind(s string) (ActionKind, error) {
	kind := ActionKind(strings.ToUpper(strings.TrimSpace(s)))
	for _, k := range ActionKinds() {
		if k == kind {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", s)
}

type phaseSet []Phase

func (s phaseSet) contains(p Phase) bool {
	for _, q := range s {
		if q == p {
			return true
		}
	}
	return false
}

// inTurn lists the actions available to the current seat in PreRoll and
// PostRoll that never change the phase.
var inTurn = []ActionKind{
	ActionBuildSettlement,
	ActionBuildCity,
	ActionBuildRoad,
	ActionBuyDevCard,
	ActionPlayKnight,
	ActionPlayMonopoly,
	ActionPlayRoadBuilding,
	ActionPlayYearOfPlenty,
	ActionRevealVictoryPoint,
}

// transitions maps phase and action to the phases the action may land in.
// An action missing from a phase's row is illegal in that phase.
var transitions = buildTransitions()

func buildTransitions() map[Phase]map[ActionKind]phaseSet {
	t := map[Phase]map[ActionKind]phaseSet{
		PhaseSetupForward: {
			ActionBuildSettlement: {PhaseSetupForward},
			ActionBuildRoad:       {PhaseSetupForward, PhaseSetupBackward},
		},
		PhaseSetupBackward: {
			ActionBuildSettlement: {PhaseSetupBackward},
			ActionBuildRoad:       {PhaseSetupBackward, PhasePreRoll},
		},
		PhasePreRoll: {
			ActionRoll: {PhasePostRoll, PhaseDiscarding, PhaseMovingRobber},
		},
		PhasePostRoll: {
			ActionTradeBank:    {PhasePostRoll},
			ActionProposeTrade: {PhaseTrading},
			ActionEndTurn:      {PhasePreRoll, PhaseGameOver},
		},
		PhaseTrading: {
			ActionTradeBank:    {PhaseTrading},
			ActionProposeTrade: {PhaseTrading},
			ActionCounterTrade: {PhaseTrading},
			ActionAcceptTrade:  {PhasePostRoll},
			ActionRejectTrade:  {PhasePostRoll},
		},
		PhaseMovingRobber: {
			ActionMoveRobber: {PhasePostRoll},
		},
		PhaseDiscarding: {
			ActionDiscard: {PhaseDiscarding, PhaseMovingRobber},
		},
		PhaseGameOver: {},
	}
	for _, phase := range []Phase{PhasePreRoll, PhasePostRoll} {
		for _, kind := range inTurn {
			t[phase][kind] = phaseSet{phase}
		}
	}
	return t
}

// Allowed reports whether kind may be issued in phase.
func Allowed(phase Phase, kind ActionKind) bool {
	_, ok := transitions[phase][kind]
	return ok
}

// CanTransition reports whether kind issued in from may land in to.
func CanTransition(from Phase, kind ActionKind, to Phase) bool {
	return transitions[from][kind].contains(to)
}

// AllowedActions lists the actions legal in phase, in ActionKinds order.
func AllowedActions(phase Phase) []ActionKind {
	var out []ActionKind
	for _, kind := range ActionKinds() {
		if Allowed(phase, kind) {
			out = append(out, kind)
		}
	}
	return out
}

// CheckAction rejects an action that the phase does not accept.
func CheckAction(phase Phase, kind ActionKind) error {
	if !Allowed(phase, kind) {
		return gameerr.WithMetadata(gameerr.CodeIllegalAction,
			fmt.Sprintf("%s is not allowed during %s", kind, phase),
			map[string]string{"phase": phase.String(), "action": string(kind)})
	}
	return nil
}

// CheckLanding verifies that an applied action ended in a phase the table
// allows. Anything else is an engine bug.
func CheckLanding(from Phase, kind ActionKind, to Phase) error {
	if !CanTransition(from, kind, to) {
		return gameerr.WithMetadata(gameerr.CodeInvariantViolation,
			fmt.Sprintf("%s from %s landed in %s", kind, from, to),
			map[string]string{"from": from.String(), "action": string(kind), "to": to.String()})
	}
	return nil
}
