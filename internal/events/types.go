package events

import (
	"math"

	"toutuo/server/internal/geom"
	"toutuo/server/internal/snap"
)

// Sound ids.
const (
	SoundGunFire = iota
	SoundShotgunFire
	SoundGrenadeFire
	SoundHammerFire
	SoundHammerHit
	SoundNinjaFire
	SoundGrenadeExplode
	SoundNinjaHit
	SoundLaserFire
	SoundLaserBounce
	SoundWeaponSwitch
	SoundPlayerPainShort
	SoundPlayerPainLong
	SoundBodyLand
	SoundPlayerAirjump
	SoundPlayerJump
	SoundPlayerDie
	SoundPlayerSpawn
	SoundPlayerSkid
	SoundTeeCry
	SoundHookLoop
	SoundHookAttachGround
	SoundHookAttachPlayer
	SoundHookNoAttach
	SoundPickupHealth
	SoundPickupArmor
	SoundPickupGrenade
	SoundPickupShotgun
	SoundPickupNinja
	SoundWeaponSpawn
	SoundWeaponNoAmmo
	SoundHit
)

func common(pos geom.Vec2) snap.EventCommon {
	return snap.EventCommon{X: int32(pos[0]), Y: int32(pos[1])}
}

// put encodes obj into a fresh event. Dropped events are silently ignored.
func (l *Log) put(kind snap.ItemKind, mask Mask, obj any) {
	snap.Put(sinkFunc(func(k snap.ItemKind, _, size int) []byte {
		return l.Create(k, size, mask)
	}), kind, 0, obj)
}

type sinkFunc func(kind snap.ItemKind, id, size int) []byte

func (f sinkFunc) NewItem(kind snap.ItemKind, id, size int) []byte {
	return f(kind, id, size)
}

func (l *Log) CreateSound(pos geom.Vec2, sound int, mask Mask) {
	if sound < 0 {
		return
	}
	l.put(snap.ItemSound, mask, snap.Sound{EventCommon: common(pos), SoundID: int32(sound)})
}

// CreateDamageInd spreads amount indicators over a 120 degree arc centered
// on angle.
func (l *Log) CreateDamageInd(pos geom.Vec2, angle float64, amount int, mask Mask) {
	a := 3*math.Pi/2 + angle
	s := a - math.Pi/3
	e := a + math.Pi/3
	for i := 0; i < amount; i++ {
		f := geom.MixScalar(s, e, float64(i+1)/float64(amount+2))
		l.put(snap.ItemDamageInd, mask, snap.DamageInd{EventCommon: common(pos), Angle: int32(f * 256)})
	}
}

func (l *Log) CreateHammerHit(pos geom.Vec2, mask Mask) {
	l.put(snap.ItemHammerHit, mask, snap.HammerHit{EventCommon: common(pos)})
}

func (l *Log) CreateDeath(pos geom.Vec2, clientID int, mask Mask) {
	l.put(snap.ItemDeath, mask, snap.Death{EventCommon: common(pos), ClientID: int32(clientID)})
}

func (l *Log) CreatePlayerSpawn(pos geom.Vec2, mask Mask) {
	l.put(snap.ItemSpawn, mask, snap.Spawn{EventCommon: common(pos)})
}

// CreateExplosion records the explosion effect only; knockback is applied by
// the world.
func (l *Log) CreateExplosion(pos geom.Vec2, mask Mask) {
	l.put(snap.ItemExplosion, mask, snap.Explosion{EventCommon: common(pos)})
}
