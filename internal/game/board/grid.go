package board

import (
	"fmt"
	"strings"
)

// Coord is a position in the doubled 2-d grid shared by tiles, vertices and
// edges. Tiles sit on odd rows, vertices on even rows; edges sit between.
type Coord struct {
	X int
	Y int
}

func (c Coord) add(o Coord) Coord {
	return Coord{X: c.X + o.X, Y: c.Y + o.Y}
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// TileID identifies a tile, 1-19, numbered counter-clockwise from the top-left.
type TileID int

// NumTiles is the number of land tiles on the standard board.
const NumTiles = 19

var tileCoords = [NumTiles + 1]Coord{
	1: {9, 3}, 12: {13, 3}, 11: {17, 3},
	2: {7, 5}, 13: {11, 5}, 18: {15, 5}, 10: {19, 5},
	3: {5, 7}, 14: {9, 7}, 19: {13, 7}, 17: {17, 7}, 9: {21, 7},
	4: {7, 9}, 15: {11, 9}, 16: {15, 9}, 8: {19, 9},
	5: {9, 11}, 6: {13, 11}, 7: {17, 11},
}

// VertexDir names a corner of a tile.
type VertexDir int

const (
	VertexN VertexDir = iota
	VertexNE
	VertexSE
	VertexS
	VertexSW
	VertexNW
)

var vertexDirNames = [...]string{"N", "NE", "SE", "S", "SW", "NW"}

var vertexOffsets = [...]Coord{
	VertexN:  {0, -1},
	VertexNE: {2, -1},
	VertexSE: {2, 1},
	VertexS:  {0, 1},
	VertexSW: {-2, 1},
	VertexNW: {-2, -1},
}

func (d VertexDir) String() string {
	if d >= 0 && int(d) < len(vertexDirNames) {
		return vertexDirNames[d]
	}
	return fmt.Sprintf("VERTEX_DIR_%d", int(d))
}

// ParseVertexDir converts "N", "NE", ... to a VertexDir.
func ParseVertexDir(s string) (VertexDir, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range vertexDirNames {
		if name == s {
			return VertexDir(i), nil
		}
	}
	return 0, fmt.Errorf("unknown vertex direction %q", s)
}

// EdgeDir names a side of a tile.
type EdgeDir int

const (
	EdgeNE EdgeDir = iota
	EdgeE
	EdgeSE
	EdgeSW
	EdgeW
	EdgeNW
)

var edgeDirNames = [...]string{"NE", "E", "SE", "SW", "W", "NW"}

var edgeOffsets = [...]Coord{
	EdgeNE: {1, -1},
	EdgeE:  {2, 0},
	EdgeSE: {1, 1},
	EdgeSW: {-1, 1},
	EdgeW:  {-2, 0},
	EdgeNW: {-1, -1},
}

func (d EdgeDir) String() string {
	if d >= 0 && int(d) < len(edgeDirNames) {
		return edgeDirNames[d]
	}
	return fmt.Sprintf("EDGE_DIR_%d", int(d))
}

// ParseEdgeDir converts "NE", "E", ... to an EdgeDir.
func ParseEdgeDir(s string) (EdgeDir, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range edgeDirNames {
		if name == s {
			return EdgeDir(i), nil
		}
	}
	return 0, fmt.Errorf("unknown edge direction %q", s)
}

// edgeEnds returns the two vertex coordinates joined by an edge coordinate.
func edgeEnds(c Coord) [2]Coord {
	if c.X%2 == 0 {
		return [2]Coord{{c.X + 1, c.Y}, {c.X - 1, c.Y}}
	}
	return [2]Coord{{c.X, c.Y - 1}, {c.X, c.Y + 1}}
}
