package world

import (
	"fmt"
	"math"

	"toutuo/server/internal/collision"
	"toutuo/server/internal/gamecore"
	"toutuo/server/internal/geom"
	"toutuo/server/internal/switches"
	"toutuo/server/internal/tuning"
)

// handleSkippableTiles resolves what must apply at the final position even
// when the tile walk would skip it: death around the body, leaving the map
// and speedups.
func (c *Character) handleSkippableTiles(index int) {
	w := c.world
	m := w.coll

	const r = gamecore.PhysSize / 3
	if !c.core.Super {
		for _, corner := range [...]geom.Vec2{
			geom.V(c.pos[0]+r, c.pos[1]-r),
			geom.V(c.pos[0]+r, c.pos[1]+r),
			geom.V(c.pos[0]-r, c.pos[1]-r),
			geom.V(c.pos[0]-r, c.pos[1]+r),
		} {
			cell := m.PureMapIndex(corner)
			if m.TileIndex(cell) == collision.TileDeath || m.FrontTileIndex(cell) == collision.TileDeath {
				c.Die(c.id, WeaponWorld)
				return
			}
		}
	}

	if m.GameLayerClipped(c.pos) {
		c.Die(c.id, WeaponWorld)
		return
	}

	if index < 0 {
		return
	}

	dir, force, maxSpeed, ok := m.Speedup(index)
	if !ok {
		return
	}
	if force == 255 && maxSpeed != 0 {
		c.core.Vel = dir.Mul(float64(maxSpeed) / 5)
		return
	}

	vel := c.core.Vel
	if maxSpeed > 0 && maxSpeed < 5 {
		maxSpeed = 5
	}
	if maxSpeed > 0 {
		speederAngle := boostAngle(dir)
		teeAngle := boostAngle(vel)
		teeSpeed := vel.Len()
		speedLeft := float64(maxSpeed)/5 - math.Cos(speederAngle-teeAngle)*teeSpeed
		switch {
		case abs(int(speedLeft)) > force && speedLeft > 0.0000001:
			vel = vel.Add(dir.Mul(float64(force)))
		case abs(int(speedLeft)) > force:
			vel = vel.Add(dir.Mul(float64(-force)))
		default:
			vel = vel.Add(dir.Mul(speedLeft))
		}
	} else {
		vel = vel.Add(dir.Mul(float64(force)))
	}
	c.core.Vel = collision.ClampVel(c.moveRestrictions, vel)
}

// boostAngle is the angle of v measured counter-clockwise with y pointing
// down, in [0, 2pi).
func boostAngle(v geom.Vec2) float64 {
	var a float64
	switch {
	case v[0] > 0.0000001:
		a = -math.Atan(v[1] / v[0])
	case v[0] < 0.0000001:
		a = math.Atan(v[1]/v[0]) + math.Pi
	case v[1] > 0.0000001:
		a = math.Pi / 2
	default:
		a = -math.Pi / 2
	}
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// handleTiles applies the tiles of one map index in a fixed order. Death and
// teleports end the pass for this index.
func (c *Character) handleTiles(index int) {
	w := c.world
	m := w.coll
	policy := w.policy()

	c.tileIndex = m.TileIndex(index)
	c.tileFIndex = m.FrontTileIndex(index)
	c.moveRestrictions = m.MoveRestrictions(c.pos, 18)
	if index < 0 {
		c.lastRefillJumps = false
		return
	}

	on := func(tile int) bool { return c.tileIndex == tile || c.tileFIndex == tile }

	if on(collision.TileDeath) && !c.core.Super {
		c.Die(c.id, WeaponWorld)
		return
	}

	if tcp := m.IsTeleCheckpoint(index); tcp != 0 {
		c.teleCheckpoint = tcp
	}

	// freeze
	if on(collision.TileFreeze) && !c.core.Super && !c.core.DeepFrozen {
		c.Freeze()
	} else if on(collision.TileUnfreeze) && !c.core.DeepFrozen {
		c.UnFreeze()
	}

	// deep freeze
	if on(collision.TileDFreeze) && !c.core.Super && !c.core.DeepFrozen {
		c.setDeepFreeze(true)
	} else if on(collision.TileDUnfreeze) && !c.core.Super && c.core.DeepFrozen {
		c.setDeepFreeze(false)
	}

	// endless hook
	if on(collision.TileEHookEnable) {
		c.SetEndlessHook(true)
	} else if on(collision.TileEHookDisable) {
		c.SetEndlessHook(false)
	}

	// hit others
	if on(collision.TileHitDisable) && c.hit != DisableHit {
		w.chat(c.id, "You can't hit others")
		c.setHit(DisableHit)
		c.setFaketune(c.neededFaketune | tuning.FakeNoHammer)
	} else if on(collision.TileHitEnable) && c.hit != HitAll {
		w.chat(c.id, "You can hit others")
		c.setHit(HitAll)
		c.setFaketune(c.neededFaketune &^ tuning.FakeNoHammer)
	}

	// collide with others
	if on(collision.TileNPCDisable) && !c.core.NoCollision {
		w.chat(c.id, "You can't collide with others")
		c.core.NoCollision = true
		c.setFaketune(c.neededFaketune | tuning.FakeNoColl)
	} else if on(collision.TileNPCEnable) && c.core.NoCollision {
		w.chat(c.id, "You can collide with others")
		c.core.NoCollision = false
		c.setFaketune(c.neededFaketune &^ tuning.FakeNoColl)
	}

	// hook others
	if on(collision.TileNPHDisable) && !c.core.NoHookHit {
		w.chat(c.id, "You can't hook others")
		c.core.NoHookHit = true
		c.setFaketune(c.neededFaketune | tuning.FakeNoHook)
	} else if on(collision.TileNPHEnable) && c.core.NoHookHit {
		w.chat(c.id, "You can hook others")
		c.core.NoHookHit = false
		c.setFaketune(c.neededFaketune &^ tuning.FakeNoHook)
	}

	// unlimited air jumps
	if on(collision.TileUnlimitedJumpsOn) && !c.superJump {
		w.chat(c.id, "You have unlimited air jumps")
		c.superJump = true
		c.core.EndlessJump = true
		if c.core.Jumps == 0 {
			c.setFaketune(c.neededFaketune &^ tuning.FakeNoJump)
		}
	} else if on(collision.TileUnlimitedJumpsOff) && c.superJump {
		w.chat(c.id, "You don't have unlimited air jumps")
		c.superJump = false
		c.core.EndlessJump = false
		if c.core.Jumps == 0 {
			c.setFaketune(c.neededFaketune | tuning.FakeNoJump)
		}
	}

	if on(collision.TileWalljump) && c.core.Vel[1] > 0 && c.core.Colliding != 0 && c.core.LeftWall {
		c.core.LeftWall = false
		c.core.JumpedTotal = 0
		if c.core.Jumps >= 2 {
			c.core.JumpedTotal = c.core.Jumps - 2
		}
		c.core.Jumped = 1
	}

	// jetpack gun
	if on(collision.TileJetpackEnable) && !c.core.Jetpack {
		w.chat(c.id, "You have a jetpack gun")
		c.core.Jetpack = true
	} else if on(collision.TileJetpackDisable) && c.core.Jetpack {
		w.chat(c.id, "You lost your jetpack gun")
		c.core.Jetpack = false
	}

	// refill jumps
	if on(collision.TileRefillJumps) && !c.lastRefillJumps {
		c.core.JumpedTotal = 0
		c.core.Jumped = 0
		c.lastRefillJumps = true
	}
	if !on(collision.TileRefillJumps) {
		c.lastRefillJumps = false
	}

	// teleport weapons
	if on(collision.TileTeleGunEnable) && !c.core.HasTelegunGun {
		c.core.HasTelegunGun = true
		w.chat(c.id, "Teleport gun enabled")
	} else if on(collision.TileTeleGunDisable) && c.core.HasTelegunGun {
		c.core.HasTelegunGun = false
		w.chat(c.id, "Teleport gun disabled")
	}
	if on(collision.TileTeleGrenadeOn) && !c.core.HasTelegunGrenade {
		c.core.HasTelegunGrenade = true
		w.chat(c.id, "Teleport grenade enabled")
	} else if on(collision.TileTeleGrenadeOff) && c.core.HasTelegunGrenade {
		c.core.HasTelegunGrenade = false
		w.chat(c.id, "Teleport grenade disabled")
	}
	if on(collision.TileTeleLaserOn) && !c.core.HasTelegunLaser {
		c.core.HasTelegunLaser = true
		w.chat(c.id, "Teleport laser enabled")
	} else if on(collision.TileTeleLaserOff) && c.core.HasTelegunLaser {
		c.core.HasTelegunLaser = false
		w.chat(c.id, "Teleport laser disabled")
	}

	// stopper
	if c.core.Vel[1] > 0 && c.moveRestrictions&collision.CantMoveDown != 0 {
		c.core.Jumped = 0
		c.core.JumpedTotal = 0
	}
	c.core.Vel = collision.ClampVel(c.moveRestrictions, c.core.Vel)

	c.handleSwitchTile(index)
	c.handleTeleport(index, policy)
}

// handleSwitchTile applies the switch layer cell at index: switch triggers
// write the register, every other tile only applies while its switch is on
// for the character's group (switch 0 is always on).
func (c *Character) handleSwitchTile(index int) {
	w := c.world
	sw, ok := w.coll.Switch(index)
	if !ok {
		return
	}
	group := c.eventGroup()
	number := int(sw.Number)
	delay := int(sw.Delay)
	active := func() bool { return w.switches.Status(number, group, w.tick) }
	weaponHit := func(weapon int) bool { return delay == weapon && active() }

	switch {
	case int(sw.Type) == collision.TileSwitchOpen && number > 0:
		w.switches.Trigger(number, group, switches.Open, 0, w.tick, w.tickSpeed())
	case int(sw.Type) == collision.TileSwitchTimedOpen && number > 0:
		w.switches.Trigger(number, group, switches.TimedOpen, delay, w.tick, w.tickSpeed())
	case int(sw.Type) == collision.TileSwitchTimedClose && number > 0:
		w.switches.Trigger(number, group, switches.TimedClose, delay, w.tick, w.tickSpeed())
	case int(sw.Type) == collision.TileSwitchClose && number > 0:
		w.switches.Trigger(number, group, switches.Close, 0, w.tick, w.tickSpeed())
	case int(sw.Type) == collision.TileFreeze:
		if active() {
			c.FreezeFor(delay)
		}
	case int(sw.Type) == collision.TileDFreeze:
		if active() {
			c.setDeepFreeze(true)
		}
	case int(sw.Type) == collision.TileDUnfreeze:
		if active() {
			c.setDeepFreeze(false)
		}
	case int(sw.Type) == collision.TileLFreeze:
		if active() {
			c.setLiveFreeze(true)
		}
	case int(sw.Type) == collision.TileLUnfreeze:
		if active() {
			c.setLiveFreeze(false)
		}
	case int(sw.Type) == collision.TileHitEnable && c.hammerHitDisabled() && weaponHit(tuning.WeaponHammer):
		w.chat(c.id, "You can hammer hit others")
		c.setHit(c.hit &^ DisableHitHammer)
		c.setFaketune(c.neededFaketune &^ tuning.FakeNoHammer)
	case int(sw.Type) == collision.TileHitDisable && !c.hammerHitDisabled() && weaponHit(tuning.WeaponHammer):
		w.chat(c.id, "You can't hammer hit others")
		c.setHit(c.hit | DisableHitHammer)
		c.setFaketune(c.neededFaketune | tuning.FakeNoHammer)
	case int(sw.Type) == collision.TileHitEnable && c.shotgunHitDisabled() && weaponHit(tuning.WeaponShotgun):
		w.chat(c.id, "You can shoot others with shotgun")
		c.setHit(c.hit &^ DisableHitShotgun)
	case int(sw.Type) == collision.TileHitDisable && !c.shotgunHitDisabled() && weaponHit(tuning.WeaponShotgun):
		w.chat(c.id, "You can't shoot others with shotgun")
		c.setHit(c.hit | DisableHitShotgun)
	case int(sw.Type) == collision.TileHitEnable && c.grenadeHitDisabled() && weaponHit(tuning.WeaponGrenade):
		w.chat(c.id, "You can shoot others with grenade")
		c.setHit(c.hit &^ DisableHitGrenade)
	case int(sw.Type) == collision.TileHitDisable && !c.grenadeHitDisabled() && weaponHit(tuning.WeaponGrenade):
		w.chat(c.id, "You can't shoot others with grenade")
		c.setHit(c.hit | DisableHitGrenade)
	case int(sw.Type) == collision.TileHitEnable && c.laserHitDisabled() && weaponHit(tuning.WeaponLaser):
		w.chat(c.id, "You can shoot others with laser")
		c.setHit(c.hit &^ DisableHitLaser)
	case int(sw.Type) == collision.TileHitDisable && !c.laserHitDisabled() && weaponHit(tuning.WeaponLaser):
		w.chat(c.id, "You can't shoot others with laser")
		c.setHit(c.hit | DisableHitLaser)
	case int(sw.Type) == collision.TileJump && active():
		c.setJumps(delay)
	}
}

// setJumps applies a jump tile. 255 means ground jump only.
func (c *Character) setJumps(jumps int) {
	w := c.world
	if jumps == 255 {
		jumps = -1
	}
	if jumps == c.core.Jumps {
		return
	}
	switch jumps {
	case -1:
		w.chat(c.id, "You only have your ground jump now")
	case 1:
		w.chat(c.id, "You can jump 1 time")
	default:
		w.chat(c.id, fmt.Sprintf("You can jump %d times", jumps))
	}
	if jumps == 0 && !c.superJump {
		c.setFaketune(c.neededFaketune | tuning.FakeNoJump)
	} else if c.core.Jumps == 0 {
		c.setFaketune(c.neededFaketune &^ tuning.FakeNoJump)
	}
	c.core.Jumps = jumps
}

// handleTeleport resolves the teleporter layer at index and reports whether
// the character was moved or stopped by one.
func (c *Character) handleTeleport(index int, policy Policy) bool {
	w := c.world
	m := w.coll

	if z := m.IsTeleport(index); !policy.OldTeleportHook && !policy.OldTeleportWeapons && z != 0 && len(w.teleOuts[z-1]) > 0 {
		if c.core.Super {
			return true
		}
		outs := w.teleOuts[z-1]
		c.core.Pos = outs[w.ctx.RandomOr0(len(outs))]
		if !policy.TeleportHoldHook {
			c.core.ResetHook()
		}
		if policy.TeleportLoseWeapons {
			c.ResetPickups()
		}
		c.core.NeedsResync = true
		return true
	}

	if z := m.IsEvilTeleport(index); z != 0 && len(w.teleOuts[z-1]) > 0 {
		if c.core.Super {
			return true
		}
		outs := w.teleOuts[z-1]
		c.core.Pos = outs[w.ctx.RandomOr0(len(outs))]
		if !policy.OldTeleportHook && !policy.OldTeleportWeapons {
			c.core.Vel = geom.Vec2{}
			if !policy.TeleportHoldHook {
				c.core.ResetHook()
				w.ctx.ReleaseHooked(c.id)
			}
			if policy.TeleportLoseWeapons {
				c.ResetPickups()
			}
		}
		c.core.NeedsResync = true
		return true
	}

	evil := m.IsCheckEvilTeleport(index) != 0
	if !evil && m.IsCheckTeleport(index) == 0 {
		return false
	}
	if c.core.Super {
		return true
	}

	dest, ok := c.checkpointExit()
	if !ok {
		dest, ok = w.spawnPoint()
	}
	if !ok {
		return true
	}
	c.core.Pos = dest
	if evil {
		c.core.Vel = geom.Vec2{}
	}
	if !policy.TeleportHoldHook {
		c.core.ResetHook()
		if evil {
			w.ctx.ReleaseHooked(c.id)
		}
	}
	c.core.NeedsResync = true
	return true
}

// checkpointExit picks an exit of the latest recorded checkpoint that has
// one, searching backwards.
func (c *Character) checkpointExit() (geom.Vec2, bool) {
	w := c.world
	for k := c.teleCheckpoint - 1; k >= 0; k-- {
		if outs := w.teleCheckOuts[k]; len(outs) > 0 {
			return outs[w.ctx.RandomOr0(len(outs))], true
		}
	}
	return geom.Vec2{}, false
}
