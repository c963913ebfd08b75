package ledger

import (
	"fmt"
	"strings"
)

// DevCard is a development card kind.
type DevCard int

const (
	Knight DevCard = iota
	VictoryPoint
	RoadBuilding
	YearOfPlenty
	Monopoly

	// NumDevCards is the number of development card kinds.
	NumDevCards = 5
)

var devCardNames = map[DevCard]string{
	Knight:       "KNIGHT",
	VictoryPoint: "VICTORY_POINT",
	RoadBuilding: "ROAD_BUILDING",
	YearOfPlenty: "YEAR_OF_PLENTY",
	Monopoly:     "MONOPOLY",
}

func (c DevCard) String() string {
	if name, ok := devCardNames[c]; ok {
		return name
	}
	return fmt.Sprintf("DEV_CARD_%d", int(c))
}

// Valid reports whether c is a known card kind.
func (c DevCard) Valid() bool {
	return c >= 0 && c < NumDevCards
}

// ParseDevCard converts a card name such as "year_of_plenty" to a DevCard.
func ParseDevCard(s string) (DevCard, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for card, name := range devCardNames {
		if name == s {
			return card, nil
		}
	}
	return 0, fmt.Errorf("unknown development card %q", s)
}

// pileComposition is the standard 25-card development deck.
var pileComposition = [NumDevCards]int{
	Knight:       14,
	VictoryPoint: 5,
	RoadBuilding: 2,
	YearOfPlenty: 2,
	Monopoly:     2,
}

// DevCards counts development cards by kind.
type DevCards [NumDevCards]int

// Total returns the number of cards.
func (d DevCards) Total() int {
	total := 0
	for _, n := range d {
		total += n
	}
	return total
}
