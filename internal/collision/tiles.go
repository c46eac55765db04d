package collision

// Tile indexes shared by the game, front and special layers.
const (
	TileAir               = 0
	TileSolid             = 1
	TileDeath             = 2
	TileNoHook            = 3
	TileNoLaser           = 4
	TileThroughCut        = 5
	TileThrough           = 6
	TileJump              = 7
	TileFreeze            = 9
	TileTeleInEvil        = 10
	TileUnfreeze          = 11
	TileDFreeze           = 12
	TileDUnfreeze         = 13
	TileTeleInWeapon      = 14
	TileTeleInHook        = 15
	TileWalljump          = 16
	TileEHookEnable       = 17
	TileEHookDisable      = 18
	TileHitEnable         = 19
	TileHitDisable        = 20
	TileSwitchTimedOpen   = 22
	TileSwitchTimedClose  = 23
	TileSwitchOpen        = 24
	TileSwitchClose       = 25
	TileTeleIn            = 26
	TileTeleOut           = 27
	TileBoost             = 28
	TileTeleCheck         = 29
	TileTeleCheckOut      = 30
	TileTeleCheckIn       = 31
	TileRefillJumps       = 32
	TileStart             = 33
	TileFinish            = 34
	TileStop              = 60
	TileStopS             = 61
	TileStopA             = 62
	TileTeleCheckInEvil   = 63
	TileTune              = 68
	TileNPC               = 72
	TileEHook             = 73
	TileNoHit             = 74
	TileNPH               = 75
	TileNPCDisable        = 88
	TileUnlimitedJumpsOff = 89
	TileJetpackDisable    = 90
	TileNPHDisable        = 91
	TileTeleGunEnable     = 96
	TileTeleGunDisable    = 97
	TileNPCEnable         = 104
	TileUnlimitedJumpsOn  = 105
	TileJetpackEnable     = 106
	TileNPHEnable         = 107
	TileTeleGrenadeOn     = 112
	TileTeleGrenadeOff    = 113
	TileTeleLaserOn       = 128
	TileTeleLaserOff      = 129
	TileLFreeze           = 144
	TileLUnfreeze         = 145
)

// Stopper rotations, in quarter turns clockwise.
const (
	Rotation0 = iota
	Rotation90
	Rotation180
	Rotation270
)

// Move restriction bits.
const (
	CantMoveLeft = 1 << iota
	CantMoveRight
	CantMoveUp
	CantMoveDown
)

// Tile is one cell of the game or front layer.
type Tile struct {
	Index    uint8
	Rotation uint8
}

// TeleTile binds a cell to a teleporter group or checkpoint number.
type TeleTile struct {
	Type   uint8
	Number uint8
}

// SpeedupTile accelerates characters along Angle (degrees).
type SpeedupTile struct {
	Force    uint8
	MaxSpeed uint8
	Angle    int16
}

// SwitchTile binds a cell to a switch number. Delay is seconds for timed
// switches and freeze tiles, the weapon for hit toggles and the jump count
// for jump tiles.
type SwitchTile struct {
	Type   uint8
	Number uint8
	Delay  uint8
}

func isInteractive(index uint8) bool {
	switch index {
	case TileAir, TileSolid, TileNoHook, TileNoLaser:
		return false
	}
	return true
}
