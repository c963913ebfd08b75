package board

import (
	"fmt"

	"github.com/hexlog/catan-server-go/internal/game/resource"
)

// Terrain is the land type of a tile.
type Terrain int

const (
	Desert Terrain = iota
	Hills
	Forest
	Pasture
	Fields
	Mountains
)

var terrainNames = map[Terrain]string{
	Desert:    "DESERT",
	Hills:     "HILLS",
	Forest:    "FOREST",
	Pasture:   "PASTURE",
	Fields:    "FIELDS",
	Mountains: "MOUNTAINS",
}

func (t Terrain) String() string {
	if name, ok := terrainNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TERRAIN_%d", int(t))
}

// Resource returns the resource the terrain produces, or resource.None.
func (t Terrain) Resource() resource.Type {
	switch t {
	case Hills:
		return resource.Brick
	case Forest:
		return resource.Wood
	case Pasture:
		return resource.Sheep
	case Fields:
		return resource.Wheat
	case Mountains:
		return resource.Ore
	default:
		return resource.None
	}
}

// PortSpec places a harbor on one coastal side of a tile. Resource is
// resource.None for a generic 3:1 port.
type PortSpec struct {
	Tile     TileID
	Side     EdgeDir
	Resource resource.Type
}

// Layout fixes the terrain, production tokens and ports of a board.
// Terrains and Tokens are indexed by TileID; index 0 is unused.
type Layout struct {
	Terrains [NumTiles + 1]Terrain
	Tokens   [NumTiles + 1]int
	Ports    []PortSpec
}

// tokenSequence is laid along the spiral of tile ids, skipping the desert.
var tokenSequence = []int{5, 2, 6, 3, 8, 10, 9, 12, 11, 4, 8, 10, 9, 4, 5, 6, 3, 11}

var terrainPool = []Terrain{
	Hills, Hills, Hills,
	Forest, Forest, Forest, Forest,
	Pasture, Pasture, Pasture, Pasture,
	Fields, Fields, Fields, Fields,
	Mountains, Mountains, Mountains,
	Desert,
}

var standardPorts = []PortSpec{
	{Tile: 1, Side: EdgeNW, Resource: resource.None},
	{Tile: 12, Side: EdgeNE, Resource: resource.Wheat},
	{Tile: 10, Side: EdgeNE, Resource: resource.Ore},
	{Tile: 9, Side: EdgeE, Resource: resource.None},
	{Tile: 8, Side: EdgeSE, Resource: resource.Sheep},
	{Tile: 7, Side: EdgeSW, Resource: resource.None},
	{Tile: 5, Side: EdgeSW, Resource: resource.Brick},
	{Tile: 4, Side: EdgeW, Resource: resource.None},
	{Tile: 2, Side: EdgeW, Resource: resource.Wood},
}

// StandardLayout returns the fixed starting layout with the desert in the
// centre.
func StandardLayout() Layout {
	terrains := []Terrain{
		Mountains, Pasture, Forest, Fields, Hills, Pasture,
		Hills, Fields, Forest, Hills, Forest, Fields,
		Forest, Mountains, Pasture, Fields, Mountains, Pasture,
		Desert,
	}
	return layoutFrom(terrains)
}

// Shuffler is satisfied by *rand.Rand from math/rand and math/rand/v2.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// ShuffledLayout shuffles the terrain tiles and lays number tokens along the
// spiral, skipping the desert. Ports keep their standard positions.
func ShuffledLayout(rng Shuffler) Layout {
	terrains := append([]Terrain(nil), terrainPool...)
	rng.Shuffle(len(terrains), func(i, j int) {
		terrains[i], terrains[j] = terrains[j], terrains[i]
	})
	return layoutFrom(terrains)
}

func layoutFrom(terrains []Terrain) Layout {
	var l Layout
	next := 0
	for i, terrain := range terrains {
		id := i + 1
		l.Terrains[id] = terrain
		if terrain == Desert {
			continue
		}
		l.Tokens[id] = tokenSequence[next]
		next++
	}
	l.Ports = append([]PortSpec(nil), standardPorts...)
	return l
}

// Validate checks tile counts and token ranges.
func (l Layout) Validate() error {
	deserts := 0
	for id := TileID(1); id <= NumTiles; id++ {
		terrain, token := l.Terrains[id], l.Tokens[id]
		if _, ok := terrainNames[terrain]; !ok {
			return fmt.Errorf("tile %d: unknown terrain %d", id, terrain)
		}
		if terrain == Desert {
			deserts++
			if token != 0 {
				return fmt.Errorf("tile %d: desert cannot carry token %d", id, token)
			}
			continue
		}
		if token < 2 || token > 12 || token == 7 {
			return fmt.Errorf("tile %d: invalid token %d", id, token)
		}
	}
	if deserts != 1 {
		return fmt.Errorf("layout needs exactly one desert, got %d", deserts)
	}
	return nil
}
