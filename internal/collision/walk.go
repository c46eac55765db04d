package collision

import (
	"math"

	"toutuo/server/internal/geom"
)

// CellWalker is a supercover DDA iterator over the grid cells a segment
// passes through. When the segment crosses a cell corner exactly, the
// horizontal neighbour is visited before the diagonal one, so no touched
// cell is skipped.
type CellWalker struct {
	cx, cy           int
	tx, ty           int
	stepX, stepY     int
	tMaxX, tMaxY     float64
	tDeltaX, tDeltaY float64
	started, done    bool
}

// NewCellWalker walks from a to b, both in world units.
func NewCellWalker(a, b geom.Vec2) CellWalker {
	ax, ay := a[0]/TileSize, a[1]/TileSize
	bx, by := b[0]/TileSize, b[1]/TileSize
	w := CellWalker{
		cx: int(math.Floor(ax)), cy: int(math.Floor(ay)),
		tx: int(math.Floor(bx)), ty: int(math.Floor(by)),
		stepX: 1, stepY: 1,
	}
	dx, dy := bx-ax, by-ay
	if dx < 0 {
		w.stepX = -1
		dx = -dx
	}
	if dy < 0 {
		w.stepY = -1
		dy = -dy
	}
	if dx == 0 {
		w.tMaxX = math.Inf(1)
	} else {
		w.tDeltaX = 1 / dx
		if w.stepX > 0 {
			w.tMaxX = (math.Floor(ax) + 1 - ax) * w.tDeltaX
		} else {
			w.tMaxX = (ax - math.Floor(ax)) * w.tDeltaX
		}
	}
	if dy == 0 {
		w.tMaxY = math.Inf(1)
	} else {
		w.tDeltaY = 1 / dy
		if w.stepY > 0 {
			w.tMaxY = (math.Floor(ay) + 1 - ay) * w.tDeltaY
		} else {
			w.tMaxY = (ay - math.Floor(ay)) * w.tDeltaY
		}
	}
	return w
}

// Next advances to the next cell; false once the end cell was reported.
func (w *CellWalker) Next() bool {
	if w.done {
		return false
	}
	if !w.started {
		w.started = true
		return true
	}
	if w.cx == w.tx && w.cy == w.ty {
		w.done = true
		return false
	}
	stepX := w.tMaxX <= w.tMaxY
	if stepX && w.cx == w.tx {
		stepX = false
	} else if !stepX && w.cy == w.ty {
		stepX = true
	}
	if stepX {
		w.cx += w.stepX
		w.tMaxX += w.tDeltaX
	} else {
		w.cy += w.stepY
		w.tMaxY += w.tDeltaY
	}
	return true
}

// Cell returns the current cell coordinates.
func (w *CellWalker) Cell() (int, int) {
	return w.cx, w.cy
}

// Indices lists, in path order, every cell index between prev and cur that
// holds a tile. Consecutive repeats (from clamping at the map edge) are
// collapsed. A zero-length move yields at most the current cell.
func (m *Map) Indices(prev, cur geom.Vec2) []int {
	if prev == cur {
		if index := m.MapIndex(cur); index >= 0 {
			return []int{index}
		}
		return nil
	}
	var out []int
	last := -1
	walker := NewCellWalker(prev, cur)
	for walker.Next() {
		x, y := walker.Cell()
		index := geom.ClampInt(y, 0, m.height-1)*m.width + geom.ClampInt(x, 0, m.width-1)
		if index == last || !m.TileExists(index) {
			continue
		}
		out = append(out, index)
		last = index
	}
	return out
}
