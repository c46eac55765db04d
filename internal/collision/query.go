package collision

import (
	"math"

	"toutuo/server/internal/geom"
)

// PureMapIndex maps a world position to its clamped cell index.
func (m *Map) PureMapIndex(pos geom.Vec2) int {
	nx := geom.ClampInt(int(pos[0])/TileSize, 0, m.width-1)
	ny := geom.ClampInt(int(pos[1])/TileSize, 0, m.height-1)
	return ny*m.width + nx
}

// MapIndex is PureMapIndex restricted to cells holding a tile; -1 otherwise.
func (m *Map) MapIndex(pos geom.Vec2) int {
	index := m.PureMapIndex(pos)
	if m.TileExists(index) {
		return index
	}
	return -1
}

func (m *Map) valid(index int) bool {
	return index >= 0 && index < len(m.game)
}

// TileExists reports whether any layer holds something a character can
// interact with at index.
func (m *Map) TileExists(index int) bool {
	if !m.valid(index) {
		return false
	}
	if isInteractive(m.game[index].Index) || isInteractive(m.front[index].Index) {
		return true
	}
	return m.tele[index].Type != 0 ||
		m.speedup[index].Force != 0 ||
		m.switches[index].Type != 0 ||
		m.tune[index] != 0
}

func (m *Map) TileIndex(index int) int {
	if !m.valid(index) {
		return 0
	}
	return int(m.game[index].Index)
}

func (m *Map) FrontTileIndex(index int) int {
	if !m.valid(index) {
		return 0
	}
	return int(m.front[index].Index)
}

// solidAt returns the collision tile at integer world coordinates, 0 for
// anything that does not block movement.
func (m *Map) solidAt(x, y int) int {
	nx := geom.ClampInt(x/TileSize, 0, m.width-1)
	ny := geom.ClampInt(y/TileSize, 0, m.height-1)
	index := m.game[ny*m.width+nx].Index
	if index == TileSolid || index == TileNoHook {
		return int(index)
	}
	return 0
}

func (m *Map) CheckPoint(x, y float64) bool {
	return m.solidAt(geom.RoundToInt(x), geom.RoundToInt(y)) != 0
}

func (m *Map) CheckPointVec(pos geom.Vec2) bool {
	return m.CheckPoint(pos[0], pos[1])
}

// TestBox reports whether a box of the given size centered at pos touches
// solid ground with any corner.
func (m *Map) TestBox(pos, size geom.Vec2) bool {
	hx, hy := size[0]*0.5, size[1]*0.5
	return m.CheckPoint(pos[0]-hx, pos[1]-hy) ||
		m.CheckPoint(pos[0]+hx, pos[1]-hy) ||
		m.CheckPoint(pos[0]-hx, pos[1]+hy) ||
		m.CheckPoint(pos[0]+hx, pos[1]+hy)
}

// MoveBox moves a box along vel in unit steps, resolving each axis
// separately on contact. Elasticity scales the reflected velocity.
func (m *Map) MoveBox(pos, vel, size geom.Vec2, elasticity float64) (geom.Vec2, geom.Vec2) {
	distance := vel.Len()
	if distance <= 0.00001 {
		return pos, vel
	}
	steps := int(distance)
	fraction := 1.0 / float64(steps+1)
	for i := 0; i <= steps; i++ {
		next := pos.Add(vel.Mul(fraction))
		if m.TestBox(next, size) {
			hits := 0
			if m.TestBox(geom.V(pos[0], next[1]), size) {
				next[1] = pos[1]
				vel[1] *= -elasticity
				hits++
			}
			if m.TestBox(geom.V(next[0], pos[1]), size) {
				next[0] = pos[0]
				vel[0] *= -elasticity
				hits++
			}
			// corner case: only the diagonal cell is solid
			if hits == 0 {
				next = pos
				vel[0] *= -elasticity
				vel[1] *= -elasticity
			}
		}
		pos = next
	}
	return pos, vel
}

// LineHit describes the first solid cell met by IntersectLine.
type LineHit struct {
	Tile   int
	At     geom.Vec2
	Before geom.Vec2
}

// IntersectLine samples the segment once per world unit and reports the
// first solid point. Tile is 0 when the segment is clear.
func (m *Map) IntersectLine(from, to geom.Vec2) LineHit {
	end := int(geom.Distance(from, to) + 1)
	last := from
	for i := 0; i <= end; i++ {
		p := geom.Mix(from, to, float64(i)/float64(end))
		ix, iy := geom.RoundToInt(p[0]), geom.RoundToInt(p[1])
		if tile := m.solidAt(ix, iy); tile != 0 {
			return LineHit{Tile: tile, At: p, Before: last}
		}
		last = p
	}
	return LineHit{At: to, Before: to}
}

// GameLayerClipped reports positions far outside the map where nothing can
// exist anymore.
func (m *Map) GameLayerClipped(pos geom.Vec2) bool {
	x := geom.RoundToInt(pos[0]) / TileSize
	y := geom.RoundToInt(pos[1]) / TileSize
	return x < -200 || x > m.width+200 || y < -200 || y > m.height+200
}

// Teleporter lookups return the group/checkpoint number, 0 for none.

func (m *Map) teleOf(index int, typ uint8) int {
	if !m.valid(index) || m.tele[index].Type != typ {
		return 0
	}
	return int(m.tele[index].Number)
}

func (m *Map) IsTeleport(index int) int          { return m.teleOf(index, TileTeleIn) }
func (m *Map) IsEvilTeleport(index int) int      { return m.teleOf(index, TileTeleInEvil) }
func (m *Map) IsCheckTeleport(index int) int     { return m.teleOf(index, TileTeleCheckIn) }
func (m *Map) IsCheckEvilTeleport(index int) int { return m.teleOf(index, TileTeleCheckInEvil) }
func (m *Map) IsTeleCheckpoint(index int) int    { return m.teleOf(index, TileTeleCheck) }

// Speedup reports the boost at index. ok is false when the cell has none.
func (m *Map) Speedup(index int) (dir geom.Vec2, force, maxSpeed int, ok bool) {
	if !m.valid(index) || m.speedup[index].Force == 0 {
		return geom.Vec2{}, 0, 0, false
	}
	s := m.speedup[index]
	return geom.Direction(float64(s.Angle) * math.Pi / 180), int(s.Force), int(s.MaxSpeed), true
}

// Switch reports the switch tile at index. ok is false for empty cells.
func (m *Map) Switch(index int) (SwitchTile, bool) {
	if !m.valid(index) || m.switches[index].Type == 0 {
		return SwitchTile{}, false
	}
	return m.switches[index], true
}

// TuneZone returns the tuning zone of index, 0 for the global zone.
func (m *Map) TuneZone(index int) int {
	if !m.valid(index) {
		return 0
	}
	return int(m.tune[index])
}

var restrictionDirs = [...]geom.Vec2{{0, 0}, {1, 0}, {0, 1}, {-1, 0}, {0, -1}}

const dirHere = 0

func stopperRestrictions(tile Tile) int {
	switch tile.Index {
	case TileStop:
		switch tile.Rotation {
		case Rotation0:
			return CantMoveDown
		case Rotation90:
			return CantMoveLeft
		case Rotation180:
			return CantMoveUp
		case Rotation270:
			return CantMoveRight
		}
	case TileStopS:
		if tile.Rotation == Rotation90 || tile.Rotation == Rotation270 {
			return CantMoveLeft | CantMoveRight
		}
		return CantMoveUp | CantMoveDown
	case TileStopA:
		return CantMoveLeft | CantMoveRight | CantMoveUp | CantMoveDown
	}
	return 0
}

func directionMask(dir int) int {
	switch dir {
	case 1:
		return CantMoveRight
	case 2:
		return CantMoveDown
	case 3:
		return CantMoveLeft
	case 4:
		return CantMoveUp
	}
	return 0
}

func restrictionFor(dir int, tile Tile) int {
	r := stopperRestrictions(tile)
	// One-way stoppers also hold a character standing on them.
	if dir == dirHere && tile.Index == TileStop {
		return r
	}
	return r & directionMask(dir)
}

// MoveRestrictions collects stopper restrictions around pos. Stoppers block
// moving onto them, probed distance units away in each direction.
func (m *Map) MoveRestrictions(pos geom.Vec2, distance float64) int {
	restrictions := 0
	for d, dir := range restrictionDirs {
		index := m.PureMapIndex(pos.Add(dir.Mul(distance)))
		restrictions |= restrictionFor(d, m.game[index])
		restrictions |= restrictionFor(d, m.front[index])
	}
	return restrictions
}

// ClampVel zeroes velocity components pointing into a restricted direction.
func ClampVel(restrictions int, vel geom.Vec2) geom.Vec2 {
	if vel[0] > 0 && restrictions&CantMoveRight != 0 {
		vel[0] = 0
	}
	if vel[0] < 0 && restrictions&CantMoveLeft != 0 {
		vel[0] = 0
	}
	if vel[1] > 0 && restrictions&CantMoveDown != 0 {
		vel[1] = 0
	}
	if vel[1] < 0 && restrictions&CantMoveUp != 0 {
		vel[1] = 0
	}
	return vel
}

// MovePoint advances a point by vel, reflecting vel off solid cells instead
// of entering them. bounces counts the reflected axes.
func (m *Map) MovePoint(pos, vel geom.Vec2, elasticity float64) (geom.Vec2, geom.Vec2, int) {
	next := pos.Add(vel)
	if !m.CheckPointVec(next) {
		return next, vel, 0
	}
	bounces := 0
	if m.CheckPoint(pos[0]+vel[0], pos[1]) {
		vel[0] *= -elasticity
		bounces++
	}
	if m.CheckPoint(pos[0], pos[1]+vel[1]) {
		vel[1] *= -elasticity
		bounces++
	}
	if bounces == 0 {
		vel = vel.Mul(-elasticity)
	}
	return pos, vel, bounces
}

// NearestAirPos backs pos out of solid ground towards prev and returns a
// spot next to the hit cell where a box of size fits.
func (m *Map) NearestAirPos(pos, prev, size geom.Vec2) (geom.Vec2, bool) {
	back := geom.Normalize(prev.Sub(pos))
	for k := 0; k < 16 && m.CheckPointVec(pos); k++ {
		pos = pos.Add(back)
	}

	px, py := geom.RoundToInt(pos[0]), geom.RoundToInt(pos[1])
	inX, inY := px%TileSize, py%TileSize
	centerX := float64(px-inX) + TileSize/2
	centerY := float64(py-inY) + TileSize/2
	offX, offY := 1.0, 1.0
	if inX < TileSize/2 {
		offX = -2
	}
	if inY < TileSize/2 {
		offY = -2
	}

	for _, candidate := range []geom.Vec2{
		geom.V(centerX+offX, pos[1]),
		geom.V(pos[0], centerY+offY),
		geom.V(centerX+offX, centerY+offY),
	} {
		if !m.TestBox(candidate, size) {
			return candidate, true
		}
	}
	return geom.Vec2{}, false
}

// NearestAirPosPlayer looks for a free spot at most five units above a
// character's position.
func (m *Map) NearestAirPosPlayer(pos, size geom.Vec2) (geom.Vec2, bool) {
	for dist := 5; dist >= -1; dist-- {
		candidate := geom.V(pos[0], pos[1]-float64(dist))
		if !m.TestBox(candidate, size) {
			return candidate, true
		}
	}
	return geom.Vec2{}, false
}
