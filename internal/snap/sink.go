// Package snap defines the snapshot items the tick core publishes and the
// sink they are published into.
package snap

import (
	"encoding/binary"
	"math"

	"toutuo/server/internal/geom"
)

// ItemKind identifies the layout of a snapshot item.
type ItemKind int

const (
	ItemCharacter ItemKind = iota + 1
	ItemDDNetCharacter
	ItemProjectile
	ItemLaser
	ItemSound
	ItemDamageInd
	ItemHammerHit
	ItemDeath
	ItemSpawn
	ItemExplosion
)

func (k ItemKind) String() string {
	switch k {
	case ItemCharacter:
		return "character"
	case ItemDDNetCharacter:
		return "ddnet_character"
	case ItemProjectile:
		return "projectile"
	case ItemLaser:
		return "laser"
	case ItemSound:
		return "sound"
	case ItemDamageInd:
		return "damage_ind"
	case ItemHammerHit:
		return "hammer_hit"
	case ItemDeath:
		return "death"
	case ItemSpawn:
		return "spawn"
	case ItemExplosion:
		return "explosion"
	}
	return "unknown"
}

// Sink hands out item buffers. A nil buffer means the item is not part of
// this snapshot; callers skip it and never retry.
type Sink interface {
	NewItem(kind ItemKind, id, size int) []byte
}

// Put allocates an item sized for obj and encodes obj into it as
// little-endian int32 fields. It reports whether the sink accepted the item.
func Put(sink Sink, kind ItemKind, id int, obj any) bool {
	if sink == nil {
		return false
	}
	size := binary.Size(obj)
	if size <= 0 {
		return false
	}
	buf := sink.NewItem(kind, id, size)
	if buf == nil {
		return false
	}
	_, err := binary.Encode(buf, binary.LittleEndian, obj)
	return err == nil
}

// Decode reads an item payload back into obj.
func Decode(data []byte, obj any) error {
	_, err := binary.Decode(data, binary.LittleEndian, obj)
	return err
}

// DemoClient is the pseudo client id of the demo recorder. It sees
// everything.
const DemoClient = -1

// DefaultShowDistance is the view extent of a client that never sent one.
var DefaultShowDistance = geom.V(1000, 800)

// View is what a snapping client can see.
type View struct {
	Pos          geom.Vec2
	ShowDistance geom.Vec2
	ShowAll      bool
}

// Clipped reports whether pos is outside the view of clientID.
func (v View) Clipped(clientID int, pos geom.Vec2) bool {
	if clientID == DemoClient || v.ShowAll {
		return false
	}
	show := v.ShowDistance
	if show == (geom.Vec2{}) {
		show = DefaultShowDistance
	}
	d := pos.Sub(v.Pos)
	return math.Abs(d[0]) > show[0] || math.Abs(d[1]) > show[1]
}
