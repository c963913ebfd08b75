package rules

import "testing"

func TestSetupOrderSnakes(t *testing.T) {
	order := NewTurnOrder(4)
	phase := PhaseSetupForward

	expected := []struct {
		seat  int
		phase Phase
	}{
		{0, PhaseSetupForward},
		{1, PhaseSetupForward},
		{2, PhaseSetupForward},
		{3, PhaseSetupForward},
		{3, PhaseSetupBackward},
		{2, PhaseSetupBackward},
		{1, PhaseSetupBackward},
		{0, PhaseSetupBackward},
	}

	for i, exp := range expected {
		if order.Current != exp.seat {
			t.Fatalf("placement %d: expected seat %d, got %d", i, exp.seat, order.Current)
		}
		if phase != exp.phase {
			t.Fatalf("placement %d: expected phase %s, got %s", i, exp.phase, phase)
		}
		phase = order.AdvanceSetup(phase)
	}

	if phase != PhasePreRoll {
		t.Fatalf("expected PRE_ROLL after setup, got %s", phase)
	}
	if order.Current != 0 || order.Turn != 1 {
		t.Fatalf("expected seat 0 on turn 1, got seat %d turn %d", order.Current, order.Turn)
	}
}

func TestAdvanceTurnWraps(t *testing.T) {
	order := TurnOrder{Seats: 3, Current: 2, Turn: 5}
	order.AdvanceTurn()
	if order.Current != 0 {
		t.Fatalf("expected seat 0 after wrap, got %d", order.Current)
	}
	if order.Turn != 6 {
		t.Fatalf("expected turn 6, got %d", order.Turn)
	}
}

func TestPhaseNames(t *testing.T) {
	for _, phase := range Phases() {
		if _, ok := phaseNames[phase]; !ok {
			t.Errorf("phase %d has no name", int(phase))
		}
	}
	if got := Phase(42).String(); got != "PHASE_42" {
		t.Errorf("unexpected fallback name %q", got)
	}
	if !PhaseSetupBackward.IsSetup() || PhasePreRoll.IsSetup() {
		t.Error("IsSetup misclassifies phases")
	}
}
