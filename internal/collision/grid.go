package collision

import (
	"math"

	"waypoint-walk/server/internal/geom"
)

const (
	// DefaultGridCellSize suits room-scale scenes measured in metres.
	DefaultGridCellSize = 2.0
	// MaxCellsPerRect bounds how many cells one rectangle may occupy. Larger
	// rectangles, such as ground planes or boundary walls, are kept in a
	// short list that every query scans.
	MaxCellsPerRect = 256

	maxCellIndex = 1 << 30
)

type gridCellKey struct {
	X int
	Z int
}

// Grid buckets obstacles into uniform cells so that a query only tests the
// rectangles near the actor. It answers exactly like Obstacles and is never
// mutated after NewGrid returns.
type Grid struct {
	cellSize    float64
	invCellSize float64
	rects       []geom.Rect
	cells       map[gridCellKey][]int
	large       []int
}

// NewGrid indexes rects. Rects are normalized on the way in.
func NewGrid(rects []geom.Rect, cellSize float64) *Grid {
	if cellSize <= 0 || !geom.Finite(cellSize) {
		cellSize = DefaultGridCellSize
	}
	g := &Grid{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		rects:       make([]geom.Rect, 0, len(rects)),
		cells:       make(map[gridCellKey][]int),
	}
	for _, rect := range rects {
		rect = rect.Normalize()
		idx := len(g.rects)
		g.rects = append(g.rects, rect)
		minX, maxX, minZ, maxZ, ok := g.cellRange(rect.MinX, rect.MaxX, rect.MinZ, rect.MaxZ)
		if !ok {
			g.large = append(g.large, idx)
			continue
		}
		for z := minZ; z <= maxZ; z++ {
			for x := minX; x <= maxX; x++ {
				key := gridCellKey{X: x, Z: z}
				g.cells[key] = append(g.cells[key], idx)
			}
		}
	}
	return g
}

// Len reports how many rectangles are indexed.
func (g *Grid) Len() int {
	if g == nil {
		return 0
	}
	return len(g.rects)
}

// Cells reports how many cells hold at least one rectangle.
func (g *Grid) Cells() int {
	if g == nil {
		return 0
	}
	return len(g.cells)
}

// Rects returns a copy of the indexed rectangles.
func (g *Grid) Rects() []geom.Rect {
	if g == nil {
		return nil
	}
	out := make([]geom.Rect, len(g.rects))
	copy(out, g.rects)
	return out
}

// Blocked implements ObstacleSet.
func (g *Grid) Blocked(center geom.Vec2, radius float64) bool {
	if g == nil || len(g.rects) == 0 {
		return false
	}
	for _, idx := range g.large {
		if Overlaps(center, radius, g.rects[idx]) {
			return true
		}
	}
	reach := math.Abs(radius)
	minX, maxX, minZ, maxZ, ok := g.cellRange(center.X-reach, center.X+reach, center.Z-reach, center.Z+reach)
	if !ok {
		return Obstacles(g.rects).Blocked(center, radius)
	}
	for z := minZ; z <= maxZ; z++ {
		for x := minX; x <= maxX; x++ {
			for _, idx := range g.cells[gridCellKey{X: x, Z: z}] {
				if Overlaps(center, radius, g.rects[idx]) {
					return true
				}
			}
		}
	}
	return false
}

// cellRange maps an extent to cell coordinates. It fails for non-finite
// extents and for extents covering more than MaxCellsPerRect cells.
func (g *Grid) cellRange(minX, maxX, minZ, maxZ float64) (int, int, int, int, bool) {
	fx0, fx1 := math.Floor(minX*g.invCellSize), math.Floor(maxX*g.invCellSize)
	fz0, fz1 := math.Floor(minZ*g.invCellSize), math.Floor(maxZ*g.invCellSize)
	for _, v := range [...]float64{fx0, fx1, fz0, fz1} {
		if !geom.Finite(v) || math.Abs(v) > maxCellIndex {
			return 0, 0, 0, 0, false
		}
	}
	if (fx1-fx0+1)*(fz1-fz0+1) > MaxCellsPerRect {
		return 0, 0, 0, 0, false
	}
	return int(fx0), int(fx1), int(fz0), int(fz1), true
}
