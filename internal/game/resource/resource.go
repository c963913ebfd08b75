// Package resource defines the five Catan resource kinds and Bundle, a fixed
// size multiset of them used for hands, costs, trades and the bank.
package resource

import (
	"fmt"
	"strings"
)

// Type is one of the five resource kinds.
type Type int

const (
	Brick Type = iota
	Wood
	Sheep
	Wheat
	Ore

	// NumTypes is the number of resource kinds.
	NumTypes = 5
)

// None marks the absence of a resource (desert tiles, generic ports).
const None Type = -1

var typeNames = [NumTypes]string{
	Brick: "brick",
	Wood:  "wood",
	Sheep: "sheep",
	Wheat: "wheat",
	Ore:   "ore",
}

func (t Type) String() string {
	if t.Valid() {
		return typeNames[t]
	}
	if t == None {
		return "none"
	}
	return fmt.Sprintf("resource_%d", int(t))
}

// Valid reports whether t is one of the five resource kinds.
func (t Type) Valid() bool {
	return t >= 0 && t < NumTypes
}

// Parse converts a resource name to its Type.
func Parse(name string) (Type, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range typeNames {
		if n == name {
			return Type(i), nil
		}
	}
	return None, fmt.Errorf("unknown resource %q", name)
}

// All returns every resource kind in canonical order.
func All() []Type {
	return []Type{Brick, Wood, Sheep, Wheat, Ore}
}

// Bundle counts resources by kind. The zero value is empty.
type Bundle [NumTypes]int

// Of builds a bundle with n units of each listed type.
func Of(n int, types ...Type) Bundle {
	var b Bundle
	for _, t := range types {
		b[t] += n
	}
	return b
}

// Single builds a bundle holding n units of t.
func Single(t Type, n int) Bundle {
	var b Bundle
	b[t] = n
	return b
}

// Get returns the count of t.
func (b Bundle) Get(t Type) int {
	if !t.Valid() {
		return 0
	}
	return b[t]
}

// Total returns the number of units across all kinds.
func (b Bundle) Total() int {
	total := 0
	for _, n := range b {
		total += n
	}
	return total
}

// IsZero reports whether the bundle is empty.
func (b Bundle) IsZero() bool {
	return b == Bundle{}
}

// Plus returns b + o.
func (b Bundle) Plus(o Bundle) Bundle {
	for i := range b {
		b[i] += o[i]
	}
	return b
}

// Minus returns b - o. The result may contain negative counts.
func (b Bundle) Minus(o Bundle) Bundle {
	for i := range b {
		b[i] -= o[i]
	}
	return b
}

// Covers reports whether b holds at least o of every kind.
func (b Bundle) Covers(o Bundle) bool {
	for i := range b {
		if b[i] < o[i] {
			return false
		}
	}
	return true
}

// NonNegative reports whether every count is >= 0.
func (b Bundle) NonNegative() bool {
	for _, n := range b {
		if n < 0 {
			return false
		}
	}
	return true
}

// Disjoint reports whether b and o share no kind with a positive count.
func (b Bundle) Disjoint(o Bundle) bool {
	for i := range b {
		if b[i] > 0 && o[i] > 0 {
			return false
		}
	}
	return true
}

// Nth returns the resource type of the n-th unit (0-based) when the bundle is
// laid out in canonical order. Used for uniform random selection.
func (b Bundle) Nth(n int) (Type, bool) {
	if n < 0 {
		return None, false
	}
	for i, count := range b {
		if n < count {
			return Type(i), true
		}
		n -= count
	}
	return None, false
}

// String renders non-zero counts, e.g. "2 wheat, 3 ore".
func (b Bundle) String() string {
	parts := make([]string, 0, NumTypes)
	for i, n := range b {
		if n != 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, Type(i)))
		}
	}
	if len(parts) == 0 {
		return "nothing"
	}
	return strings.Join(parts, ", ")
}

// Map returns the non-zero counts keyed by resource name.
func (b Bundle) Map() map[string]int {
	out := make(map[string]int, NumTypes)
	for i, n := range b {
		if n != 0 {
			out[Type(i).String()] = n
		}
	}
	return out
}

// FromMap builds a bundle from counts keyed by resource name.
func FromMap(m map[string]int) (Bundle, error) {
	var b Bundle
	for name, n := range m {
		t, err := Parse(name)
		if err != nil {
			return Bundle{}, err
		}
		if n < 0 {
			return Bundle{}, fmt.Errorf("negative count %d for %s", n, t)
		}
		b[t] += n
	}
	return b, nil
}

// Standard building costs.
var (
	RoadCost       = Bundle{Brick: 1, Wood: 1}
	SettlementCost = Bundle{Brick: 1, Wood: 1, Sheep: 1, Wheat: 1}
	CityCost       = Bundle{Wheat: 2, Ore: 3}
	DevCardCost    = Bundle{Sheep: 1, Wheat: 1, Ore: 1}
)
