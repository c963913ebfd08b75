package board

// LongestRoad returns the length of seat's longest simple trail of roads.
// Edges are not reused; vertices may be revisited. A trail cannot pass
// through a vertex holding another seat's building.
func (b *Board) LongestRoad(seat int) int {
	used := make([]bool, len(b.edges))
	best := 0
	for e, owner := range b.roads {
		if owner != seat {
			continue
		}
		used[e] = true
		for _, end := range b.edges[e].Ends {
			if n := 1 + b.walk(end, seat, used); n > best {
				best = n
			}
		}
		used[e] = false
	}
	return best
}

func (b *Board) walk(v VertexID, seat int, used []bool) int {
	if building := b.buildings[v]; !building.Empty() && building.Owner != seat {
		return 0
	}
	best := 0
	for _, e := range b.vertices[v].Edges {
		if used[e] || b.roads[e] != seat {
			continue
		}
		used[e] = true
		next := b.edges[e].Ends[0]
		if next == v {
			next = b.edges[e].Ends[1]
		}
		if n := 1 + b.walk(next, seat, used); n > best {
			best = n
		}
		used[e] = false
	}
	return best
}
