package rules

// NoHolder marks an unheld title.
const NoHolder = -1

// Default title minimums.
const (
	DefaultMinLongestRoad = 5
	DefaultMinLargestArmy = 3
)

// AwardTitle decides who holds a title given each seat's score. The holder
// keeps it unless another seat strictly beats them; a holder who drops below
// the minimum or below a rival loses it. When the best score is shared by
// seats other than the holder, nobody holds the title.
func AwardTitle(holder int, scores []int, minimum int) int {
	best, bestSeat, tied := 0, NoHolder, false
	for seat, score := range scores {
		switch {
		case score > best:
			best, bestSeat, tied = score, seat, false
		case score == best && score > 0:
			tied = true
		}
	}
	if best < minimum {
		return NoHolder
	}
	if holder != NoHolder && holder < len(scores) && scores[holder] == best {
		return holder
	}
	if tied {
		return NoHolder
	}
	return bestSeat
}
