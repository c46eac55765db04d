package world

import (
	"toutuo/server/internal/collision"
	"toutuo/server/internal/events"
	"toutuo/server/internal/gamecore"
	"toutuo/server/internal/geom"
	"toutuo/server/internal/snap"
	"toutuo/server/internal/snapid"
	"toutuo/server/internal/tuning"
)

// Laser is a laser or shotgun beam. It travels energy units per bounce
// step and stops at the first character it touches.
type Laser struct {
	world *World

	typ      int
	owner    int
	pos      geom.Vec2
	from     geom.Vec2
	prevPos  geom.Vec2
	dir      geom.Vec2
	energy   float64
	bounces  int
	evalTick int
	tuneZone int

	zeroBounceLastTick bool

	snapID    int
	destroyed bool
}

func newLaser(w *World, pos, dir geom.Vec2, energy float64, owner, typ int) *Laser {
	l := &Laser{
		world:    w,
		typ:      typ,
		owner:    owner,
		pos:      pos,
		from:     pos,
		dir:      dir,
		energy:   energy,
		tuneZone: w.coll.TuneZone(w.coll.MapIndex(pos)),
	}
	l.bounce()
	return l
}

func (w *World) addLaser(l *Laser) {
	l.snapID = w.newSnapID()
	w.lasers = append(w.lasers, l)
}

func (l *Laser) params() tuning.Params {
	return l.world.zones.Get(l.tuneZone)
}

func (l *Laser) hitDisabled(owner *Character) bool {
	if owner == nil {
		return l.world.policy().HitDisabled
	}
	if l.typ == tuning.WeaponShotgun {
		return owner.shotgunHitDisabled()
	}
	return owner.laserHitDisabled()
}

// target returns the first character on the segment from the laser to to.
// The owner is only hit after the beam bounced.
func (l *Laser) target(to geom.Vec2) (*Character, geom.Vec2) {
	w := l.world
	owner := w.Character(l.owner)
	var notThis *Character
	if l.bounces == 0 {
		notThis = owner
	}
	var onlyThis *Character
	if l.hitDisabled(owner) {
		onlyThis = owner
	}
	return w.intersectCharacter(l.pos, to, 0, notThis, onlyThis, l.owner)
}

func (l *Laser) hitCharacter(from, to geom.Vec2) bool {
	hit, at := l.target(to)
	if hit == nil {
		return false
	}
	l.from = from
	l.pos = at
	l.energy = -1

	switch l.typ {
	case tuning.WeaponShotgun:
		if l.prevPos != hit.core.Pos {
			pull := hit.core.Vel.Add(geom.Normalize(l.prevPos.Sub(hit.core.Pos)).Mul(l.params().ShotgunStrength))
			hit.core.Vel = collision.ClampVel(hit.moveRestrictions, pull)
		}
	case tuning.WeaponLaser:
		hit.UnFreeze()
	}
	hit.TakeDamage(geom.Vec2{}, 0, l.owner, l.typ)
	return true
}

func (l *Laser) bounce() {
	w := l.world
	l.evalTick = w.now()

	if l.energy < 0 {
		l.destroyed = true
		return
	}
	l.prevPos = l.pos

	to := l.pos.Add(l.dir.Mul(l.energy))
	hit := w.coll.IntersectLine(l.pos, to)
	if hit.Tile != 0 {
		to = hit.Before
		if !l.hitCharacter(l.pos, to) {
			l.from = l.pos
			l.pos = to

			pos, dir, _ := w.coll.MovePoint(l.pos, l.dir.Mul(4), 1)
			l.pos = pos
			l.dir = geom.Normalize(dir)

			params := l.params()
			dist := geom.Distance(l.from, l.pos)
			if dist == 0 && l.zeroBounceLastTick {
				l.energy = -1
			} else {
				l.energy -= dist + params.LaserBounceCost
			}
			l.zeroBounceLastTick = dist == 0

			l.bounces++
			if float64(l.bounces) > params.LaserBounceNum {
				l.energy = -1
			}
			w.events.CreateSound(l.pos, events.SoundLaserBounce, events.MaskAll)
		}
	} else if !l.hitCharacter(l.pos, to) {
		l.from = l.pos
		l.pos = to
		l.energy = -1
	}

	l.teleportOwner(to)
}

// teleportOwner moves the owner of a spent telelaser next to where the
// beam ended.
func (l *Laser) teleportOwner(to geom.Vec2) {
	if l.typ != tuning.WeaponLaser || l.energy > 0 {
		return
	}
	w := l.world
	owner := w.Character(l.owner)
	if owner == nil || !owner.core.HasTelegunLaser {
		return
	}

	size := geom.V(gamecore.PhysSize, gamecore.PhysSize)
	var (
		pos   geom.Vec2
		found bool
	)
	if hit, _ := l.target(to); hit != nil {
		pos, found = w.coll.NearestAirPosPlayer(hit.pos, size)
	} else {
		pos, found = w.coll.NearestAirPos(l.pos, l.from, size)
	}
	if found {
		owner.teleGunPos = pos
		owner.teleGunTeleport = true
		owner.isBlueTeleGunTeleport = false
	}
}

func (l *Laser) Tick() {
	if l.destroyed {
		return
	}
	w := l.world
	delay := float64(w.tickSpeed()) * l.params().LaserBounceDelay / 1000
	if float64(w.now()-l.evalTick) > delay {
		l.bounce()
	}
}

func (l *Laser) Snap(clientID int, view snap.View, sink snap.Sink) {
	if l.destroyed || l.snapID == snapid.Invalid {
		return
	}
	if view.Clipped(clientID, l.pos) && view.Clipped(clientID, l.from) {
		return
	}
	snap.Put(sink, snap.ItemLaser, l.snapID, snap.Laser{
		X:         int32(l.pos[0]),
		Y:         int32(l.pos[1]),
		FromX:     int32(l.from[0]),
		FromY:     int32(l.from[1]),
		StartTick: int32(l.evalTick),
	})
}
