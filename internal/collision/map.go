// Package collision answers every map query the tick core needs: solidity,
// per-layer tile lookups, movement against the tile grid and the list of
// cells a fast mover crossed.
package collision

import (
	"errors"
	"fmt"

	"toutuo/server/internal/geom"
)

// TileSize is the edge length of one cell in world units.
const TileSize = 32

// ErrBadMap reports an unusable map description.
var ErrBadMap = errors.New("collision: bad map")

// Map is the read-only tile world. It is built once and then only queried.
type Map struct {
	width, height int

	game     []Tile
	front    []Tile
	tele     []TeleTile
	speedup  []SpeedupTile
	switches []SwitchTile
	tune     []uint8

	spawns []geom.Vec2

	tablesBuilt   bool
	teleOuts      map[int][]geom.Vec2
	teleCheckOuts map[int][]geom.Vec2
	highestSwitch int
}

// NewMap allocates an empty map of w*h cells with every layer present.
func NewMap(w, h int) (*Map, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrBadMap, w, h)
	}
	n := w * h
	return &Map{
		width:    w,
		height:   h,
		game:     make([]Tile, n),
		front:    make([]Tile, n),
		tele:     make([]TeleTile, n),
		speedup:  make([]SpeedupTile, n),
		switches: make([]SwitchTile, n),
		tune:     make([]uint8, n),
	}, nil
}

func (m *Map) Width() int  { return m.width }
func (m *Map) Height() int { return m.height }

func (m *Map) index(x, y int) int {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return -1
	}
	return y*m.width + x
}

// CellCenter returns the world position of the center of cell (x, y).
func CellCenter(x, y int) geom.Vec2 {
	return geom.V(float64(x)*TileSize+TileSize/2, float64(y)*TileSize+TileSize/2)
}

// IndexCenter returns the world position of the center of a map index.
func (m *Map) IndexCenter(index int) geom.Vec2 {
	return CellCenter(index%m.width, index/m.width)
}

func (m *Map) SetGame(x, y int, index uint8) {
	if i := m.index(x, y); i >= 0 {
		m.game[i] = Tile{Index: index}
	}
}

func (m *Map) SetFront(x, y int, index uint8) {
	if i := m.index(x, y); i >= 0 {
		m.front[i] = Tile{Index: index}
	}
}

// SetStopper places a stopper tile with the given rotation on the game layer.
func (m *Map) SetStopper(x, y int, index, rotation uint8) {
	if i := m.index(x, y); i >= 0 {
		m.game[i] = Tile{Index: index, Rotation: rotation}
	}
}

func (m *Map) SetTele(x, y int, typ, number uint8) {
	if i := m.index(x, y); i >= 0 {
		m.tele[i] = TeleTile{Type: typ, Number: number}
		m.tablesBuilt = false
	}
}

func (m *Map) SetSpeedup(x, y int, force, maxSpeed uint8, angle int16) {
	if i := m.index(x, y); i >= 0 {
		m.speedup[i] = SpeedupTile{Force: force, MaxSpeed: maxSpeed, Angle: angle}
	}
}

func (m *Map) SetSwitch(x, y int, typ, number, delay uint8) {
	if i := m.index(x, y); i >= 0 {
		m.switches[i] = SwitchTile{Type: typ, Number: number, Delay: delay}
		m.tablesBuilt = false
	}
}

func (m *Map) SetTune(x, y int, zone uint8) {
	if i := m.index(x, y); i >= 0 {
		m.tune[i] = zone
	}
}

// AddSpawn registers a spawn point at the center of cell (x, y).
func (m *Map) AddSpawn(x, y int) {
	m.spawns = append(m.spawns, CellCenter(x, y))
}

func (m *Map) SpawnPoints() []geom.Vec2 {
	return m.spawns
}

// buildTables scans the tele and switch layers row-major, which fixes the
// order of exits inside each teleporter group.
func (m *Map) buildTables() {
	if m.tablesBuilt {
		return
	}
	m.teleOuts = make(map[int][]geom.Vec2)
	m.teleCheckOuts = make(map[int][]geom.Vec2)
	m.highestSwitch = 0
	for i, t := range m.tele {
		if t.Number == 0 {
			continue
		}
		switch t.Type {
		case TileTeleOut:
			m.teleOuts[int(t.Number)-1] = append(m.teleOuts[int(t.Number)-1], m.IndexCenter(i))
		case TileTeleCheckOut:
			m.teleCheckOuts[int(t.Number)-1] = append(m.teleCheckOuts[int(t.Number)-1], m.IndexCenter(i))
		}
	}
	for _, s := range m.switches {
		if int(s.Number) > m.highestSwitch {
			m.highestSwitch = int(s.Number)
		}
	}
	m.tablesBuilt = true
}

// TeleOuts maps teleporter group (number-1) to its exits.
func (m *Map) TeleOuts() map[int][]geom.Vec2 {
	m.buildTables()
	return m.teleOuts
}

// TeleCheckOuts maps checkpoint ordinal (number-1) to its exits.
func (m *Map) TeleCheckOuts() map[int][]geom.Vec2 {
	m.buildTables()
	return m.teleCheckOuts
}

// HighestSwitch is the largest switch number placed on the map.
func (m *Map) HighestSwitch() int {
	m.buildTables()
	return m.highestSwitch
}
