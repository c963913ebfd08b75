package resource

import (
	"testing"
)

func TestBundleArithmetic(t *testing.T) {
	hand := Bundle{Brick: 2, Wood: 1, Wheat: 3}

	if hand.Total() != 6 {
		t.Errorf("Expected total 6, got %d", hand.Total())
	}
	if !hand.Covers(RoadCost) {
		t.Error("Expected hand to cover a road")
	}
	if hand.Covers(SettlementCost) {
		t.Error("Expected hand not to cover a settlement without sheep")
	}

	after := hand.Minus(RoadCost)
	if after != (Bundle{Brick: 1, Wheat: 3}) {
		t.Errorf("Unexpected bundle after paying for a road: %v", after)
	}
	if after.Plus(RoadCost) != hand {
		t.Error("Expected Plus to undo Minus")
	}
	if after.Minus(CityCost).NonNegative() {
		t.Error("Expected paying for a city to overdraw the hand")
	}
}

func TestBundleNth(t *testing.T) {
	b := Bundle{Wood: 2, Ore: 1}

	expected := []Type{Wood, Wood, Ore}
	for i, want := range expected {
		got, ok := b.Nth(i)
		if !ok || got != want {
			t.Errorf("Nth(%d) = %v, %v; want %v", i, got, ok, want)
		}
	}
	if _, ok := b.Nth(3); ok {
		t.Error("Expected Nth past the end to fail")
	}
	if _, ok := b.Nth(-1); ok {
		t.Error("Expected negative Nth to fail")
	}
}

func TestBundleDisjoint(t *testing.T) {
	if !(Bundle{Wheat: 4}).Disjoint(Bundle{Ore: 1}) {
		t.Error("Expected wheat and ore bundles to be disjoint")
	}
	if (Bundle{Wheat: 4, Ore: 1}).Disjoint(Bundle{Ore: 1}) {
		t.Error("Expected bundles sharing ore not to be disjoint")
	}
}

func TestParseAndMapRoundTrip(t *testing.T) {
	for _, typ := range All() {
		parsed, err := Parse(typ.String())
		if err != nil || parsed != typ {
			t.Errorf("Parse(%q) = %v, %v", typ.String(), parsed, err)
		}
	}
	if _, err := Parse("gold"); err == nil {
		t.Error("Expected unknown resource to fail")
	}

	b := Bundle{Sheep: 2, Ore: 1}
	back, err := FromMap(b.Map())
	if err != nil || back != b {
		t.Errorf("FromMap(Map()) = %v, %v; want %v", back, err, b)
	}
	if _, err := FromMap(map[string]int{"ore": -1}); err == nil {
		t.Error("Expected negative counts to be rejected")
	}
}

func TestBundleString(t *testing.T) {
	if got := (Bundle{Wheat: 2, Ore: 3}).String(); got != "2 wheat, 3 ore" {
		t.Errorf("Unexpected string %q", got)
	}
	if got := (Bundle{}).String(); got != "nothing" {
		t.Errorf("Unexpected empty string %q", got)
	}
}
