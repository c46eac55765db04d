package world

import (
	"math"

	"toutuo/server/internal/collision"
	"toutuo/server/internal/events"
	"toutuo/server/internal/gamecore"
	"toutuo/server/internal/geom"
	"toutuo/server/internal/tuning"
)

// Ninja timing in milliseconds and dash speed in units per tick.
const (
	ninjaDuration = 15000
	ninjaMoveTime = 200
	ninjaVelocity = 50
)

// Base damage per weapon. Race characters never lose health, the value only
// stamps damageTakenTick.
const (
	hammerDamage = 3
	ninjaDamage  = 9
)

// noAmmoReloadMillis is the pause after pulling the trigger on an empty
// weapon.
const noAmmoReloadMillis = 125

// inputStateMask bounds the press counters clients send for fire and
// weapon selection.
const inputStateMask = 0x3f

// countPresses returns how many presses happened between two samples of a
// wrapping press counter.
func countPresses(prev, cur int) int {
	prev &= inputStateMask
	cur &= inputStateMask
	presses := 0
	for i := prev; i != cur; {
		i = (i + 1) & inputStateMask
		if i&1 != 0 {
			presses++
		}
	}
	return presses
}

func (c *Character) handleWeapons() {
	c.handleNinja()
	c.handleJetpack()

	if c.painSoundTimer > 0 {
		c.painSoundTimer--
	}

	if c.reloadTimer != 0 {
		c.reloadTimer--
		return
	}

	c.fireWeapon()
}

func (c *Character) aimDirection() geom.Vec2 {
	return geom.Normalize(geom.V(float64(c.latestInput.TargetX), float64(c.latestInput.TargetY)))
}

func (c *Character) fullAuto() bool {
	switch c.core.ActiveWeapon {
	case tuning.WeaponGrenade, tuning.WeaponShotgun, tuning.WeaponLaser:
		return true
	case tuning.WeaponGun:
		return c.core.Jetpack
	}
	return false
}

// wantsFire reports whether the latest input asks for a shot.
func (c *Character) wantsFire(fullAuto bool) bool {
	if countPresses(c.latestPrevInput.Fire, c.latestInput.Fire) > 0 {
		return true
	}
	return fullAuto && c.latestInput.Fire&1 != 0 && c.core.Weapons[c.core.ActiveWeapon].Ammo != 0
}

func (c *Character) handleJetpack() {
	if !c.wantsFire(c.fullAuto()) {
		return
	}
	if c.core.Weapons[c.core.ActiveWeapon].Ammo == 0 || c.freezeTime != 0 {
		return
	}
	if c.core.ActiveWeapon == tuning.WeaponGun && c.core.Jetpack {
		strength := c.zoneTuning().JetpackStrength
		c.TakeDamage(c.aimDirection().Mul(-strength/100/6.11), 0, c.id, tuning.WeaponGun)
	}
}

func (c *Character) zoneTuning() tuning.Params {
	return c.world.zones.Get(c.tuneZone)
}

func (c *Character) handleNinja() {
	if c.core.ActiveWeapon != tuning.WeaponNinja {
		return
	}
	w := c.world
	ts := w.tickSpeed()
	now := w.now()

	duration := ninjaDuration * ts / 1000
	if now-c.core.Ninja.ActivationTick > duration {
		c.RemoveNinja()
		return
	}

	left := c.core.Ninja.ActivationTick + duration - now
	if left%ts == 0 && left/ts <= 5 {
		w.events.CreateDamageInd(c.pos, 0, left/ts, c.mask())
	}
	c.armor = geom.ClampInt(10-left/15, 0, 10)

	c.SetWeapon(tuning.WeaponNinja)

	c.core.Ninja.CurrentMoveTime--
	if c.core.Ninja.CurrentMoveTime == 0 {
		c.core.Vel = c.core.Ninja.ActivationDir.Mul(c.core.Ninja.OldVelAmount)
	}
	if c.core.Ninja.CurrentMoveTime <= 0 {
		return
	}

	c.core.Vel = c.core.Ninja.ActivationDir.Mul(ninjaVelocity)
	oldPos := c.pos
	size := geom.V(gamecore.PhysSize, gamecore.PhysSize)
	c.core.Pos, _ = w.coll.MoveBox(c.core.Pos, c.core.Vel, size, 0)
	// zero velocity so the client does not predict the dash
	c.core.Vel = geom.Vec2{}

	dir := c.core.Pos.Sub(oldPos)
	radius := gamecore.PhysSize * 2
	center := oldPos.Add(dir.Mul(0.5))
	for _, target := range w.charactersNear(center, radius) {
		if target == c || c.alreadyHit(target.id) {
			continue
		}
		if geom.Distance(target.pos, c.core.Pos) > radius {
			continue
		}
		w.events.CreateSound(target.pos, events.SoundNinjaHit, c.mask())
		if c.numObjectsHit < len(c.hitObjects) {
			c.hitObjects[c.numObjectsHit] = target.id
			c.numObjectsHit++
		}
		target.TakeDamage(geom.V(0, -10), ninjaDamage, c.id, tuning.WeaponNinja)
	}
}

func (c *Character) alreadyHit(id int) bool {
	for _, hit := range c.hitObjects[:c.numObjectsHit] {
		if hit == id {
			return true
		}
	}
	return false
}

// SetWeapon makes w the active weapon and plays the switch sound.
func (c *Character) SetWeapon(w int) {
	if w == c.core.ActiveWeapon {
		return
	}
	c.lastWeapon = c.core.ActiveWeapon
	c.queuedWeapon = -1
	c.core.ActiveWeapon = w
	c.world.events.CreateSound(c.pos, events.SoundWeaponSwitch, c.mask())

	if c.core.ActiveWeapon < 0 || c.core.ActiveWeapon >= tuning.NumWeapons {
		c.core.ActiveWeapon = tuning.WeaponHammer
	}
}

func (c *Character) doWeaponSwitch() {
	if c.reloadTimer != 0 || c.queuedWeapon == -1 || c.core.Weapons[tuning.WeaponNinja].Got || !c.core.Weapons[c.queuedWeapon].Got {
		return
	}
	c.SetWeapon(c.queuedWeapon)
}

func (c *Character) handleWeaponSwitch() {
	wanted := c.core.ActiveWeapon
	if c.queuedWeapon != -1 {
		wanted = c.queuedWeapon
	}

	anything := false
	for i := 0; i < tuning.NumWeapons-1; i++ {
		if c.core.Weapons[i].Got {
			anything = true
		}
	}
	if !anything {
		return
	}

	next := countPresses(c.latestPrevInput.NextWeapon, c.latestInput.NextWeapon)
	prev := countPresses(c.latestPrevInput.PrevWeapon, c.latestInput.PrevWeapon)

	for next > 0 {
		wanted = (wanted + 1) % tuning.NumWeapons
		if c.core.Weapons[wanted].Got {
			next--
		}
	}
	for prev > 0 {
		wanted--
		if wanted < 0 {
			wanted = tuning.NumWeapons - 1
		}
		if c.core.Weapons[wanted].Got {
			prev--
		}
	}

	if c.latestInput.WantedWeapon != 0 {
		wanted = c.input.WantedWeapon - 1
	}

	if wanted >= 0 && wanted < tuning.NumWeapons && wanted != c.core.ActiveWeapon && c.core.Weapons[wanted].Got {
		c.queuedWeapon = wanted
	}

	c.doWeaponSwitch()
}

func (c *Character) fireWeapon() {
	w := c.world
	if c.reloadTimer != 0 {
		if c.latestInput.Fire&1 != 0 {
			w.antibot.OnHammerFireReloading(c.id)
		}
		return
	}

	c.doWeaponSwitch()
	dir := c.aimDirection()

	// firing right after an unfreeze is always allowed
	fullAuto := c.fullAuto() || c.frozenLastTick

	if w.policy().DeepflyDisabled && c.core.ActiveWeapon == tuning.WeaponHammer && c.core.DeepFrozen {
		return
	}

	if !c.wantsFire(fullAuto) {
		return
	}

	if c.freezeTime != 0 {
		if c.painSoundTimer <= 0 && c.latestPrevInput.Fire&1 == 0 {
			c.painSoundTimer = w.tickSpeed()
			w.events.CreateSound(c.pos, events.SoundPlayerPainLong, c.mask())
		}
		return
	}

	params := c.zoneTuning()
	if c.core.Weapons[c.core.ActiveWeapon].Ammo == 0 {
		if c.latestPrevInput.Fire&1 == 0 {
			w.events.CreateSound(c.pos, events.SoundWeaponNoAmmo, c.mask())
		}
		c.reloadTimer = noAmmoReloadMillis * w.tickSpeed() / 1000
		return
	}

	projStart := c.pos.Add(dir.Mul(gamecore.PhysSize * 0.75))

	switch c.core.ActiveWeapon {
	case tuning.WeaponHammer:
		c.fireHammer(projStart, params)

	case tuning.WeaponGun:
		lifetime := int(float64(w.tickSpeed()) * params.GunLifetime)
		w.addProjectile(newProjectile(w, tuning.WeaponGun, c.id, projStart, dir, lifetime, false, -1))
		w.events.CreateSound(c.pos, events.SoundGunFire, c.mask())

	case tuning.WeaponShotgun:
		w.addLaser(newLaser(w, c.pos, dir, params.LaserReach, c.id, tuning.WeaponShotgun))
		w.events.CreateSound(c.pos, events.SoundShotgunFire, c.mask())

	case tuning.WeaponGrenade:
		lifetime := int(float64(w.tickSpeed()) * params.GrenadeLifetime)
		w.addProjectile(newProjectile(w, tuning.WeaponGrenade, c.id, projStart, dir, lifetime, true, events.SoundGrenadeExplode))
		w.events.CreateSound(c.pos, events.SoundGrenadeFire, c.mask())

	case tuning.WeaponLaser:
		w.addLaser(newLaser(w, c.pos, dir, params.LaserReach, c.id, tuning.WeaponLaser))
		w.events.CreateSound(c.pos, events.SoundLaserFire, c.mask())

	case tuning.WeaponNinja:
		c.numObjectsHit = 0
		c.core.Ninja.ActivationDir = dir
		c.core.Ninja.CurrentMoveTime = ninjaMoveTime * w.tickSpeed() / 1000
		c.core.Ninja.OldVelAmount = c.core.Vel.Len()
		w.events.CreateSound(c.pos, events.SoundNinjaFire, c.mask())
	}

	c.attackTick = w.now()
	// negative ammo is unlimited
	if ammo := &c.core.Weapons[c.core.ActiveWeapon].Ammo; *ammo > 0 {
		*ammo--
	}

	if c.reloadTimer == 0 {
		c.reloadTimer = int(params.FireDelay(c.core.ActiveWeapon) * float64(w.tickSpeed()) / 1000)
	}
}

func (c *Character) fireHammer(projStart geom.Vec2, params tuning.Params) {
	w := c.world
	c.numObjectsHit = 0
	w.events.CreateSound(c.pos, events.SoundHammerFire, c.mask())
	w.antibot.OnHammerFire(c.id)

	if c.hammerHitDisabled() {
		return
	}

	hits := 0
	for _, target := range w.charactersNear(projStart, gamecore.PhysSize*0.5) {
		if target == c || !w.teams.CanCollide(c.id, target.id) {
			continue
		}

		if target.pos != projStart {
			w.events.CreateHammerHit(target.pos.Sub(geom.Normalize(target.pos.Sub(projStart)).Mul(gamecore.PhysSize*0.5)), c.mask())
		} else {
			w.events.CreateHammerHit(projStart, c.mask())
		}

		dir := geom.V(0, -1)
		if target.pos != c.pos {
			dir = geom.Normalize(target.pos.Sub(c.pos))
		}

		push := target.core.Vel.Add(geom.Normalize(dir.Add(geom.V(0, -1.1))).Mul(10))
		push = collision.ClampVel(target.moveRestrictions, push).Sub(target.core.Vel)
		target.TakeDamage(geom.V(0, -1).Add(push).Mul(params.HammerStrength), hammerDamage, c.id, tuning.WeaponHammer)
		target.UnFreeze()

		w.antibot.OnHammerHit(c.id, target.id)
		hits++
	}

	if hits > 0 {
		c.reloadTimer = int(params.HammerHitFireDelay * float64(w.tickSpeed()) / 1000)
	}
}

// GiveWeaponAmmo hands out weapon w with ammo shots; a negative count is
// unlimited. Ninja ignores the count.
func (c *Character) GiveWeaponAmmo(w, ammo int) {
	if w < 0 || w >= tuning.NumWeapons {
		return
	}
	c.GiveWeapon(w, false)
	if w != tuning.WeaponNinja {
		c.core.Weapons[w].Ammo = ammo
	}
}

// Ammo reports the shots left in weapon w, -1 when unlimited.
func (c *Character) Ammo(w int) int {
	if w < 0 || w >= tuning.NumWeapons {
		return 0
	}
	return c.core.Weapons[w].Ammo
}

// GiveWeapon hands out weapon w with unlimited ammo, or takes it away.
func (c *Character) GiveWeapon(w int, remove bool) {
	if w == tuning.WeaponNinja {
		if remove {
			c.RemoveNinja()
		} else {
			c.GiveNinja()
		}
		return
	}

	if remove {
		if c.core.ActiveWeapon == w {
			c.core.ActiveWeapon = tuning.WeaponGun
		}
	} else {
		c.core.Weapons[w].Ammo = -1
	}
	c.core.Weapons[w].Got = !remove
}

// GiveNinja starts a ninja period from the current tick.
func (c *Character) GiveNinja() {
	had := c.core.Weapons[tuning.WeaponNinja].Got
	c.core.Ninja.ActivationTick = c.world.now()
	c.core.Weapons[tuning.WeaponNinja].Got = true
	c.core.Weapons[tuning.WeaponNinja].Ammo = -1
	if c.core.ActiveWeapon != tuning.WeaponNinja {
		c.lastWeapon = c.core.ActiveWeapon
	}
	c.core.ActiveWeapon = tuning.WeaponNinja

	if !had {
		c.world.events.CreateSound(c.pos, events.SoundPickupNinja, c.mask())
	}
}

// RemoveNinja ends the ninja period and restores the previous weapon.
func (c *Character) RemoveNinja() {
	c.core.Ninja.CurrentMoveTime = 0
	c.core.Weapons[tuning.WeaponNinja].Got = false
	c.core.ActiveWeapon = c.lastWeapon
	c.SetWeapon(c.core.ActiveWeapon)
}

// ResetPickups takes away every weapon except hammer, gun and ninja.
func (c *Character) ResetPickups() {
	for i := tuning.WeaponShotgun; i < tuning.NumWeapons-1; i++ {
		c.core.Weapons[i].Got = false
		if c.core.ActiveWeapon == i {
			c.core.ActiveWeapon = tuning.WeaponGun
		}
	}
}

// projectileAngle is the angle damage indicators use for a shot direction.
func projectileAngle(dir geom.Vec2) float64 {
	return -math.Atan2(dir[0], dir[1])
}
