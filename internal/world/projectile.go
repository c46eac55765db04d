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

// Explosion reach. Characters inside the inner radius get the full push.
const (
	explosionRadius      = 135.0
	explosionInnerRadius = 48.0
)

// Projectile is a gun bullet or grenade flying along a parabola fixed at
// launch. Its position is a function of the tick, so clients predict it
// from the launch parameters alone.
type Projectile struct {
	world *World

	typ       int
	owner     int
	pos       geom.Vec2
	dir       geom.Vec2
	startTick int
	lifespan  int
	explosive bool
	sound     int
	tuneZone  int

	snapID    int
	destroyed bool
}

func newProjectile(w *World, typ, owner int, pos, dir geom.Vec2, lifespan int, explosive bool, sound int) *Projectile {
	return &Projectile{
		world:     w,
		typ:       typ,
		owner:     owner,
		pos:       pos,
		dir:       dir,
		startTick: w.now(),
		lifespan:  lifespan,
		explosive: explosive,
		sound:     sound,
		tuneZone:  w.coll.TuneZone(w.coll.MapIndex(pos)),
	}
}

func (w *World) addProjectile(p *Projectile) {
	p.snapID = w.newSnapID()
	w.projectiles = append(w.projectiles, p)
}

// posAt returns where the projectile is t seconds after launch.
func (p *Projectile) posAt(t float64) geom.Vec2 {
	params := p.world.zones.Get(p.tuneZone)
	curvature, speed := params.GunCurvature, params.GunSpeed
	if p.typ == tuning.WeaponGrenade {
		curvature, speed = params.GrenadeCurvature, params.GrenadeSpeed
	}
	t *= speed
	return geom.V(
		p.pos[0]+p.dir[0]*t,
		p.pos[1]+p.dir[1]*t+curvature/10000*t*t,
	)
}

func (p *Projectile) Tick() {
	if p.destroyed {
		return
	}
	w := p.world
	ts := float64(w.tickSpeed())
	prevPos := p.posAt(float64(w.now()-p.startTick-1) / ts)
	curPos := p.posAt(float64(w.now()-p.startTick) / ts)

	hit := w.coll.IntersectLine(prevPos, curPos)
	colPos := hit.At
	collide := hit.Tile != 0

	owner := w.Character(p.owner)
	hitAllowed := owner == nil || !owner.grenadeHitDisabled()

	var target *Character
	if hitAllowed {
		var at geom.Vec2
		target, at = w.intersectCharacter(prevPos, colPos, 6, owner, nil, p.owner)
		if target != nil {
			colPos = at
		}
	}

	if p.lifespan > -1 {
		p.lifespan--
	}

	if target != nil || collide || w.coll.GameLayerClipped(curPos) {
		if p.explosive {
			w.createExplosion(colPos, p.owner, p.typ)
			w.events.CreateSound(colPos, p.sound, events.MaskAll)
		}

		if owner != nil && !w.coll.GameLayerClipped(colPos) && p.teleports(owner) {
			p.teleportOwner(owner, target, collide, hit.Before, curPos, colPos)
		}

		if p.typ == tuning.WeaponGun {
			w.events.CreateDamageInd(curPos, projectileAngle(p.dir), 10, events.MaskAll)
		}
		p.destroyed = true
		return
	}

	if p.lifespan == -1 {
		if p.explosive {
			w.createExplosion(colPos, p.owner, p.typ)
			w.events.CreateSound(colPos, p.sound, events.MaskAll)
		}
		p.destroyed = true
	}
}

func (p *Projectile) teleports(owner *Character) bool {
	switch p.typ {
	case tuning.WeaponGun:
		return owner.core.HasTelegunGun
	case tuning.WeaponGrenade:
		return owner.core.HasTelegunGrenade
	}
	return false
}

// teleportOwner moves the owner next to whatever the shot hit, unless the
// hit cell is a weapon teleporter.
func (p *Projectile) teleportOwner(owner, target *Character, collide bool, before, curPos, colPos geom.Vec2) {
	w := p.world
	at := colPos
	if target != nil {
		at = target.pos
	}
	index := w.coll.PureMapIndex(at)
	if w.coll.TileIndex(index) == collision.TileTeleInWeapon || w.coll.FrontTileIndex(index) == collision.TileTeleInWeapon {
		return
	}

	size := geom.V(gamecore.PhysSize, gamecore.PhysSize)
	var (
		found bool
		pos   geom.Vec2
	)
	if !collide {
		pos, found = w.coll.NearestAirPosPlayer(at, size)
	} else {
		pos, found = w.coll.NearestAirPos(before, curPos, size)
	}
	if !found {
		return
	}
	owner.teleGunPos = pos
	owner.teleGunTeleport = true
	owner.isBlueTeleGunTeleport = false
}

func (p *Projectile) Snap(clientID int, view snap.View, sink snap.Sink) {
	if p.destroyed || p.snapID == snapid.Invalid {
		return
	}
	w := p.world
	pos := p.posAt(float64(w.now()-p.startTick) / float64(w.tickSpeed()))
	if view.Clipped(clientID, pos) {
		return
	}
	snap.Put(sink, snap.ItemProjectile, p.snapID, snap.Projectile{
		X:         int32(p.pos[0]),
		Y:         int32(p.pos[1]),
		VelX:      int32(p.dir[0] * 100),
		VelY:      int32(p.dir[1] * 100),
		Type:      int32(p.typ),
		StartTick: int32(p.startTick),
	})
}

// createExplosion pushes every character around pos away from it and
// records the explosion event.
func (w *World) createExplosion(pos geom.Vec2, owner, weapon int) {
	w.events.CreateExplosion(pos, events.MaskAll)

	ownerChar := w.Character(owner)
	strength := w.zones.Global().ExplosionStrength
	hitAllowed := !w.policy().HitDisabled
	if ownerChar != nil {
		strength = ownerChar.zoneTuning().ExplosionStrength
		hitAllowed = !ownerChar.grenadeHitDisabled()
	}

	for _, c := range w.charactersNear(pos, explosionRadius) {
		diff := c.pos.Sub(pos)
		forceDir := geom.V(0, 1)
		l := diff.Len()
		if l > 0 {
			forceDir = geom.Normalize(diff)
		}
		l = 1 - geom.Clamp((l-explosionInnerRadius)/(explosionRadius-explosionInnerRadius), 0, 1)
		dmg := strength * l
		if int(dmg) == 0 {
			continue
		}
		if !hitAllowed && owner != c.id {
			continue
		}
		if owner >= 0 && owner != c.id && !w.teams.CanCollide(owner, c.id) {
			continue
		}
		c.TakeDamage(forceDir.Mul(dmg*2), int(dmg), owner, weapon)
	}
}
