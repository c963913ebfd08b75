// Package board models the hex grid of a standard Catan board: tiles,
// vertices (settlement sites), edges (road sites), ports and the robber.
//
// The topology is an arena of integer handles built once by New and never
// mutated afterwards. Only occupancy changes. The board knows placement
// geometry but nothing about resources or victory points.
package board

import (
	"fmt"
	"sort"

	"github.com/hexlog/catan-server-go/internal/game/gameerr"
	"github.com/hexlog/catan-server-go/internal/game/resource"
)

// Nobody marks an unowned site.
const Nobody = -1

// NoVertex is returned in place of a vertex for an unknown tile or edge.
const NoVertex VertexID = -1

// VertexID is a handle to a settlement/city site.
type VertexID int

// EdgeID is a handle to a road site.
type EdgeID int

// BuildingKind is the piece standing on a vertex.
type BuildingKind int

const (
	NoBuilding BuildingKind = iota
	Settlement
	City
)

func (k BuildingKind) String() string {
	switch k {
	case Settlement:
		return "settlement"
	case City:
		return "city"
	default:
		return "none"
	}
}

// Building is the occupancy of a vertex.
type Building struct {
	Owner int
	Kind  BuildingKind
}

// Empty reports whether nothing stands on the vertex.
func (b Building) Empty() bool {
	return b.Kind == NoBuilding
}

// Tile is one land hex.
type Tile struct {
	ID       TileID
	Coord    Coord
	Terrain  Terrain
	Token    int
	Vertices [6]VertexID
	Edges    [6]EdgeID
}

// Vertex is a junction of up to three tiles and up to three edges.
type Vertex struct {
	ID        VertexID
	Coord     Coord
	Tiles     []TileID
	Edges     []EdgeID
	Neighbors []VertexID
}

// Edge joins two vertices and borders one or two tiles.
type Edge struct {
	ID    EdgeID
	Coord Coord
	Ends  [2]VertexID
	Tiles []TileID
}

// Port grants a trade ratio to whoever builds on either end of its edge.
type Port struct {
	Edge     EdgeID
	Resource resource.Type
	Ratio    int
}

// Occupancy is the mutable part of a board, copied for snapshots.
type Occupancy struct {
	Buildings []Building
	Roads     []int
	Robber    TileID
}

// Board is the standard 19-tile board.
type Board struct {
	layout   Layout
	tiles    [NumTiles + 1]Tile
	vertices []Vertex
	edges    []Edge
	ports    []Port

	buildings []Building
	roads     []int
	robber    TileID
}

// New builds the topology for a layout and places the robber on the desert.
func New(layout Layout) (*Board, error) {
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("invalid layout: %w", err)
	}

	b := &Board{layout: layout}
	vertexByCoord := make(map[Coord]VertexID)
	edgeByCoord := make(map[Coord]EdgeID)

	for id := TileID(1); id <= NumTiles; id++ {
		tile := Tile{
			ID:      id,
			Coord:   tileCoords[id],
			Terrain: layout.Terrains[id],
			Token:   layout.Tokens[id],
		}
		for dir, offset := range vertexOffsets {
			c := tile.Coord.add(offset)
			v, ok := vertexByCoord[c]
			if !ok {
				v = VertexID(len(b.vertices))
				vertexByCoord[c] = v
				b.vertices = append(b.vertices, Vertex{ID: v, Coord: c})
			}
			b.vertices[v].Tiles = append(b.vertices[v].Tiles, id)
			tile.Vertices[dir] = v
		}
		for dir, offset := range edgeOffsets {
			c := tile.Coord.add(offset)
			e, ok := edgeByCoord[c]
			if !ok {
				e = EdgeID(len(b.edges))
				edgeByCoord[c] = e
				edge := Edge{ID: e, Coord: c}
				for i, end := range edgeEnds(c) {
					v, found := vertexByCoord[end]
					if !found {
						return nil, fmt.Errorf("edge %v: end %v is not a tile corner", c, end)
					}
					edge.Ends[i] = v
				}
				b.edges = append(b.edges, edge)
			}
			b.edges[e].Tiles = append(b.edges[e].Tiles, id)
			tile.Edges[dir] = e
		}
		if tile.Terrain == Desert {
			b.robber = id
		}
		b.tiles[id] = tile
	}

	for _, edge := range b.edges {
		a, c := edge.Ends[0], edge.Ends[1]
		b.vertices[a].Edges = append(b.vertices[a].Edges, edge.ID)
		b.vertices[c].Edges = append(b.vertices[c].Edges, edge.ID)
		b.vertices[a].Neighbors = append(b.vertices[a].Neighbors, c)
		b.vertices[c].Neighbors = append(b.vertices[c].Neighbors, a)
	}

	for _, port := range layout.Ports {
		if port.Tile < 1 || port.Tile > NumTiles {
			return nil, fmt.Errorf("port on unknown tile %d", port.Tile)
		}
		e := b.tiles[port.Tile].Edges[port.Side]
		if len(b.edges[e].Tiles) != 1 {
			return nil, fmt.Errorf("port at tile %d %s is not on the coast", port.Tile, port.Side)
		}
		ratio := 3
		if port.Resource.Valid() {
			ratio = 2
		}
		b.ports = append(b.ports, Port{Edge: e, Resource: port.Resource, Ratio: ratio})
	}

	b.buildings = make([]Building, len(b.vertices))
	for i := range b.buildings {
		b.buildings[i] = Building{Owner: Nobody}
	}
	b.roads = make([]int, len(b.edges))
	for i := range b.roads {
		b.roads[i] = Nobody
	}
	return b, nil
}

// Layout returns the layout the board was built from.
func (b *Board) Layout() Layout {
	l := b.layout
	l.Ports = append([]PortSpec(nil), b.layout.Ports...)
	return l
}

// NumVertices returns the number of settlement sites.
func (b *Board) NumVertices() int { return len(b.vertices) }

// NumEdges returns the number of road sites.
func (b *Board) NumEdges() int { return len(b.edges) }

// ValidTile reports whether t names a tile.
func (b *Board) ValidTile(t TileID) bool { return t >= 1 && t <= NumTiles }

// ValidVertex reports whether v names a vertex.
func (b *Board) ValidVertex(v VertexID) bool { return v >= 0 && int(v) < len(b.vertices) }

// ValidEdge reports whether e names an edge.
func (b *Board) ValidEdge(e EdgeID) bool { return e >= 0 && int(e) < len(b.edges) }

// Tile returns the tile with the given id.
func (b *Board) Tile(t TileID) (Tile, bool) {
	if !b.ValidTile(t) {
		return Tile{}, false
	}
	return b.tiles[t], true
}

// Tiles returns all tiles in id order.
func (b *Board) Tiles() []Tile {
	out := make([]Tile, 0, NumTiles)
	for id := TileID(1); id <= NumTiles; id++ {
		out = append(out, b.tiles[id])
	}
	return out
}

// Vertex returns the vertex with the given handle.
func (b *Board) Vertex(v VertexID) (Vertex, bool) {
	if !b.ValidVertex(v) {
		return Vertex{}, false
	}
	return b.vertices[v], true
}

// Edge returns the edge with the given handle.
func (b *Board) Edge(e EdgeID) (Edge, bool) {
	if !b.ValidEdge(e) {
		return Edge{}, false
	}
	return b.edges[e], true
}

// Ports returns the harbors.
func (b *Board) Ports() []Port { return append([]Port(nil), b.ports...) }

// VertexAt returns the vertex at a tile corner.
func (b *Board) VertexAt(t TileID, dir VertexDir) (VertexID, error) {
	if !b.ValidTile(t) || dir < 0 || int(dir) >= len(vertexOffsets) {
		return 0, gameerr.Invalid("no vertex at tile %d %s", t, dir)
	}
	return b.tiles[t].Vertices[dir], nil
}

// EdgeAt returns the edge on a tile side.
func (b *Board) EdgeAt(t TileID, dir EdgeDir) (EdgeID, error) {
	if !b.ValidTile(t) || dir < 0 || int(dir) >= len(edgeOffsets) {
		return 0, gameerr.Invalid("no edge at tile %d %s", t, dir)
	}
	return b.tiles[t].Edges[dir], nil
}

// Query methods below return nil, Nobody, NoVertex or false for ids
// outside the board.

// VertexNeighbors returns the vertices one edge away from v.
func (b *Board) VertexNeighbors(v VertexID) []VertexID {
	if !b.ValidVertex(v) {
		return nil
	}
	return append([]VertexID(nil), b.vertices[v].Neighbors...)
}

// EdgeNeighbors returns the edges sharing an end with e.
func (b *Board) EdgeNeighbors(e EdgeID) []EdgeID {
	if !b.ValidEdge(e) {
		return nil
	}
	var out []EdgeID
	for _, end := range b.edges[e].Ends {
		for _, other := range b.vertices[end].Edges {
			if other != e {
				out = append(out, other)
			}
		}
	}
	return out
}

// TilesOf returns the tiles touching v.
func (b *Board) TilesOf(v VertexID) []TileID {
	if !b.ValidVertex(v) {
		return nil
	}
	return append([]TileID(nil), b.vertices[v].Tiles...)
}

// EdgesOf returns the edges touching v.
func (b *Board) EdgesOf(v VertexID) []EdgeID {
	if !b.ValidVertex(v) {
		return nil
	}
	return append([]EdgeID(nil), b.vertices[v].Edges...)
}

// EdgeEnds returns the two vertices joined by e.
func (b *Board) EdgeEnds(e EdgeID) [2]VertexID {
	if !b.ValidEdge(e) {
		return [2]VertexID{NoVertex, NoVertex}
	}
	return b.edges[e].Ends
}

// VerticesOf returns the six corners of a tile.
func (b *Board) VerticesOf(t TileID) [6]VertexID {
	if !b.ValidTile(t) {
		return [6]VertexID{NoVertex, NoVertex, NoVertex, NoVertex, NoVertex, NoVertex}
	}
	return b.tiles[t].Vertices
}

// CoastalEdges returns the edges bordering a single tile.
func (b *Board) CoastalEdges() []EdgeID {
	var out []EdgeID
	for _, edge := range b.edges {
		if len(edge.Tiles) == 1 {
			out = append(out, edge.ID)
		}
	}
	return out
}

// Building returns what stands on v.
func (b *Board) Building(v VertexID) Building {
	if !b.ValidVertex(v) {
		return Building{Owner: Nobody}
	}
	return b.buildings[v]
}

// Road returns the owner of the road on e, or Nobody.
func (b *Board) Road(e EdgeID) int {
	if !b.ValidEdge(e) {
		return Nobody
	}
	return b.roads[e]
}

// Robber returns the tile holding the robber.
func (b *Board) Robber() TileID { return b.robber }

// IsVertexFree reports whether v is empty.
func (b *Board) IsVertexFree(v VertexID) bool {
	return b.ValidVertex(v) && b.buildings[v].Empty()
}

// IsEdgeFree reports whether e has no road.
func (b *Board) IsEdgeFree(e EdgeID) bool {
	return b.ValidEdge(e) && b.roads[e] == Nobody
}

// CanPlaceSettlement checks the placement rules without mutating the board.
// Outside setup the vertex must touch one of the seat's roads.
func (b *Board) CanPlaceSettlement(v VertexID, seat int, setup bool) error {
	if !b.ValidVertex(v) {
		return gameerr.Invalid("unknown vertex %d", v)
	}
	if !b.IsVertexFree(v) {
		return gameerr.New(gameerr.CodeOccupied, "vertex %d is occupied", v)
	}
	for _, n := range b.vertices[v].Neighbors {
		if !b.IsVertexFree(n) {
			return gameerr.New(gameerr.CodeAdjacency, "vertex %d is next to a building at %d", v, n)
		}
	}
	if !setup && !b.touchesRoad(v, seat) {
		return gameerr.New(gameerr.CodeAdjacency, "vertex %d is not connected to a road of seat %d", v, seat)
	}
	return nil
}

// PlaceSettlement puts a settlement of seat on v.
func (b *Board) PlaceSettlement(v VertexID, seat int, setup bool) error {
	if err := b.CanPlaceSettlement(v, seat, setup); err != nil {
		return err
	}
	b.buildings[v] = Building{Owner: seat, Kind: Settlement}
	return nil
}

// CanUpgradeToCity checks that v holds a settlement of seat.
func (b *Board) CanUpgradeToCity(v VertexID, seat int) error {
	if !b.ValidVertex(v) {
		return gameerr.Invalid("unknown vertex %d", v)
	}
	building := b.buildings[v]
	switch {
	case building.Empty():
		return gameerr.Illegal("no settlement at vertex %d", v)
	case building.Owner != seat:
		return gameerr.New(gameerr.CodeOccupied, "vertex %d belongs to seat %d", v, building.Owner)
	case building.Kind == City:
		return gameerr.New(gameerr.CodeOccupied, "vertex %d is already a city", v)
	}
	return nil
}

// UpgradeToCity replaces seat's settlement on v with a city.
func (b *Board) UpgradeToCity(v VertexID, seat int) error {
	if err := b.CanUpgradeToCity(v, seat); err != nil {
		return err
	}
	b.buildings[v] = Building{Owner: seat, Kind: City}
	return nil
}

// CanPlaceRoad checks that e is free and connects to seat's network.
func (b *Board) CanPlaceRoad(e EdgeID, seat int) error {
	if !b.ValidEdge(e) {
		return gameerr.Invalid("unknown edge %d", e)
	}
	if !b.IsEdgeFree(e) {
		return gameerr.New(gameerr.CodeOccupied, "edge %d already has a road", e)
	}
	for _, end := range b.edges[e].Ends {
		if b.connectsAt(end, e, seat) {
			return nil
		}
	}
	return gameerr.New(gameerr.CodeAdjacency, "edge %d is not connected to seat %d", e, seat)
}

// PlaceRoad puts a road of seat on e.
func (b *Board) PlaceRoad(e EdgeID, seat int) error {
	if err := b.CanPlaceRoad(e, seat); err != nil {
		return err
	}
	b.roads[e] = seat
	return nil
}

// MoveRobber moves the robber to t.
func (b *Board) MoveRobber(t TileID) error {
	if !b.ValidTile(t) {
		return gameerr.Invalid("unknown tile %d", t)
	}
	if t == b.robber {
		return gameerr.New(gameerr.CodeSameLocation, "robber is already on tile %d", t)
	}
	b.robber = t
	return nil
}

// SetBuilding overwrites a vertex without rule checks. Used to rewind history.
func (b *Board) SetBuilding(v VertexID, building Building) {
	if building.Kind == NoBuilding {
		building.Owner = Nobody
	}
	b.buildings[v] = building
}

// SetRoad overwrites an edge without rule checks. Used to rewind history.
func (b *Board) SetRoad(e EdgeID, seat int) {
	b.roads[e] = seat
}

// SetRobber moves the robber without rule checks. Used to rewind history.
func (b *Board) SetRobber(t TileID) {
	b.robber = t
}

// PortRatio returns the best bank ratio seat has for r: 4 by default, 3 with
// a generic port, 2 with a matching resource port.
func (b *Board) PortRatio(seat int, r resource.Type) int {
	ratio := 4
	for _, port := range b.ports {
		if !b.ownsEnd(port.Edge, seat) {
			continue
		}
		if port.Resource == resource.None && ratio > 3 {
			ratio = 3
		}
		if port.Resource == r {
			ratio = 2
		}
	}
	return ratio
}

// SeatsOnTile returns the distinct owners of buildings on t's corners, sorted.
func (b *Board) SeatsOnTile(t TileID) []int {
	if !b.ValidTile(t) {
		return nil
	}
	seen := make(map[int]bool)
	var out []int
	for _, v := range b.tiles[t].Vertices {
		building := b.buildings[v]
		if building.Empty() || seen[building.Owner] {
			continue
		}
		seen[building.Owner] = true
		out = append(out, building.Owner)
	}
	sort.Ints(out)
	return out
}

// Count returns the number of settlements, cities and roads seat has placed.
func (b *Board) Count(seat int) (settlements, cities, roads int) {
	for _, building := range b.buildings {
		if building.Owner != seat {
			continue
		}
		switch building.Kind {
		case Settlement:
			settlements++
		case City:
			cities++
		}
	}
	for _, owner := range b.roads {
		if owner == seat {
			roads++
		}
	}
	return settlements, cities, roads
}

// Clone returns a board sharing the immutable topology with b and owning a
// copy of its occupancy.
func (b *Board) Clone() *Board {
	c := *b
	c.buildings = append([]Building(nil), b.buildings...)
	c.roads = append([]int(nil), b.roads...)
	return &c
}

// Occupancy copies the mutable state.
func (b *Board) Occupancy() Occupancy {
	return Occupancy{
		Buildings: append([]Building(nil), b.buildings...),
		Roads:     append([]int(nil), b.roads...),
		Robber:    b.robber,
	}
}

// RestoreOccupancy replaces the mutable state with o.
func (b *Board) RestoreOccupancy(o Occupancy) error {
	if len(o.Buildings) != len(b.vertices) || len(o.Roads) != len(b.edges) {
		return fmt.Errorf("occupancy shape %d/%d does not match board %d/%d",
			len(o.Buildings), len(o.Roads), len(b.vertices), len(b.edges))
	}
	if !b.ValidTile(o.Robber) {
		return fmt.Errorf("robber on unknown tile %d", o.Robber)
	}
	copy(b.buildings, o.Buildings)
	copy(b.roads, o.Roads)
	b.robber = o.Robber
	return nil
}

func (b *Board) touchesRoad(v VertexID, seat int) bool {
	for _, e := range b.vertices[v].Edges {
		if b.roads[e] == seat {
			return true
		}
	}
	return false
}

// connectsAt reports whether a road on e would join seat's network at v.
// An opponent's building on v cuts the network.
func (b *Board) connectsAt(v VertexID, e EdgeID, seat int) bool {
	building := b.buildings[v]
	if !building.Empty() {
		return building.Owner == seat
	}
	for _, other := range b.vertices[v].Edges {
		if other != e && b.roads[other] == seat {
			return true
		}
	}
	return false
}

func (b *Board) ownsEnd(e EdgeID, seat int) bool {
	for _, end := range b.edges[e].Ends {
		if building := b.buildings[end]; !building.Empty() && building.Owner == seat {
			return true
		}
	}
	return false
}

// Reader is the read-only view of a board handed to callers outside the
// engine.
type Reader interface {
	Layout() Layout
	NumVertices() int
	NumEdges() int
	Tile(t TileID) (Tile, bool)
	Tiles() []Tile
	Vertex(v VertexID) (Vertex, bool)
	Edge(e EdgeID) (Edge, bool)
	Ports() []Port
	VertexAt(t TileID, dir VertexDir) (VertexID, error)
	EdgeAt(t TileID, dir EdgeDir) (EdgeID, error)
	VertexNeighbors(v VertexID) []VertexID
	EdgeNeighbors(e EdgeID) []EdgeID
	TilesOf(v VertexID) []TileID
	EdgesOf(v VertexID) []EdgeID
	EdgeEnds(e EdgeID) [2]VertexID
	VerticesOf(t TileID) [6]VertexID
	Building(v VertexID) Building
	Road(e EdgeID) int
	Robber() TileID
	IsVertexFree(v VertexID) bool
	IsEdgeFree(e EdgeID) bool
	CanPlaceSettlement(v VertexID, seat int, setup bool) error
	CanPlaceRoad(e EdgeID, seat int) error
	PortRatio(seat int, r resource.Type) int
	SeatsOnTile(t TileID) []int
	LongestRoad(seat int) int
	Occupancy() Occupancy
}

var _ Reader = (*Board)(nil)
