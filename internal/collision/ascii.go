package collision

import "fmt"

// ASCII legend for ParseASCII. Every other layer is set with the Set* methods.
var asciiTiles = map[rune]uint8{
	'.': TileAir,
	' ': TileAir,
	'#': TileSolid,
	'N': TileNoHook,
	'X': TileDeath,
	'*': TileFreeze,
	'~': TileUnfreeze,
	'D': TileDFreeze,
	'd': TileDUnfreeze,
	'W': TileWalljump,
	'R': TileRefillJumps,
	'S': TileAir,
}

// ParseASCII builds a game layer from equal-length rows. 'S' marks a spawn
// point on an air cell.
func ParseASCII(rows []string) (*Map, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrBadMap)
	}
	width := len([]rune(rows[0]))
	m, err := NewMap(width, len(rows))
	if err != nil {
		return nil, err
	}
	for y, row := range rows {
		cells := []rune(row)
		if len(cells) != width {
			return nil, fmt.Errorf("%w: row %d has width %d, want %d", ErrBadMap, y, len(cells), width)
		}
		for x, r := range cells {
			tile, ok := asciiTiles[r]
			if !ok {
				return nil, fmt.Errorf("%w: unknown tile %q at %d,%d", ErrBadMap, r, x, y)
			}
			m.SetGame(x, y, tile)
			if r == 'S' {
				m.AddSpawn(x, y)
			}
		}
	}
	return m, nil
}

// MustParseASCII is ParseASCII for fixtures known to be valid.
func MustParseASCII(rows ...string) *Map {
	m, err := ParseASCII(rows)
	if err != nil {
		panic(err)
	}
	return m
}
