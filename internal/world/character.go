package world

import (
	"context"
	"math"

	"toutuo/server/internal/collision"
	"toutuo/server/internal/events"
	"toutuo/server/internal/gamecore"
	"toutuo/server/internal/geom"
	"toutuo/server/internal/snap"
	"toutuo/server/internal/snapid"
	"toutuo/server/internal/tuning"
	"toutuo/server/logging"
	"toutuo/server/logging/lifecycle"
	"toutuo/server/logging/physics"
)

// Kill causes that are not weapons.
const (
	WeaponGame  = -3
	WeaponSelf  = -2
	WeaponWorld = -1
)

// Hit disable bits. A set bit means the weapon does not affect others.
const (
	DisableHitHammer = 1 << iota
	DisableHitShotgun
	DisableHitGrenade
	DisableHitLaser

	HitAll     = 0
	DisableHit = DisableHitHammer | DisableHitShotgun | DisableHitGrenade | DisableHitLaser
)

// resyncInterval is how many seconds a dead-reckoned core may go without
// being resent.
const resyncInterval = 3

// Character is a player's body in the world: the physics core, weapons and
// the race state tiles modify.
type Character struct {
	world  *World
	player *Player
	id     int
	snapID int

	alive  bool
	paused bool

	core          gamecore.Core
	reckoning     gamecore.Core
	sent          gamecore.Core
	reckoningTick int

	pos     geom.Vec2
	prevPos geom.Vec2

	input               gamecore.Input
	savedInput          gamecore.Input
	prevInput           gamecore.Input
	latestInput         gamecore.Input
	latestPrevInput     gamecore.Input
	latestPrevPrevInput gamecore.Input
	numInputs           int
	lastAction          int
	lastMove            int

	health int
	armor  int

	reloadTimer     int
	attackTick      int
	damageTakenTick int
	queuedWeapon    int
	lastWeapon      int
	painSoundTimer  int
	numObjectsHit   int
	hitObjects      [10]int
	frozenLastTick  bool

	freezeTime      int
	freezeTick      int
	liveFreeze      bool
	isInFreeze      bool
	superJump       bool
	endlessHook     bool
	hit             int
	neededFaketune  int
	teleCheckpoint  int
	lastRefillJumps bool
	tuneZone        int
	tuneZoneOld     int

	teleGunTeleport       bool
	teleGunPos            geom.Vec2
	isBlueTeleGunTeleport bool

	moveRestrictions int
	tileIndex        int
	tileFIndex       int
	spawnTick        int
}

func newCharacter(w *World, p *Player) *Character {
	return &Character{world: w, player: p, id: p.id, snapID: snapid.Invalid}
}

// Spawn places the character at pos with the starting loadout and race
// state and registers its core with the world.
func (c *Character) Spawn(pos geom.Vec2) {
	w := c.world
	now := w.now()

	c.core.Init(w.ctx, w.coll, c.id)
	c.reckoning.Init(w.isolated, w.coll, c.id)
	c.sent.Init(nil, w.coll, -1)
	c.reckoningTick = 0

	c.pos = pos
	c.prevPos = pos
	c.core.Pos = pos
	c.core.Tuning = w.zones.Get(0)
	w.ctx.Cores[c.id] = &c.core

	c.health = 10
	c.armor = 10
	c.lastWeapon = tuning.WeaponHammer
	c.queuedWeapon = -1
	c.lastAction = -1
	c.lastMove = now
	c.spawnTick = now
	c.attackTick = now
	c.damageTakenTick = 0
	c.alive = true
	c.paused = false

	c.GiveWeapon(tuning.WeaponHammer, false)
	c.GiveWeapon(tuning.WeaponGun, false)
	c.core.ActiveWeapon = tuning.WeaponGun

	c.ddraceInit()

	c.snapID = w.newSnapID()
	w.antibot.OnSpawn(c.id)
	lifecycle.CharacterSpawned(context.Background(), w.publisher, w.tick, logging.CharacterRef(c.id), lifecycle.CharacterSpawnedPayload{
		X:      pos[0],
		Y:      pos[1],
		SnapID: c.snapID,
		Zone:   c.tuneZone,
	}, nil)
}

func (c *Character) ddraceInit() {
	w := c.world
	policy := w.policy()

	c.paused = false
	c.teleCheckpoint = 0
	c.SetEndlessHook(policy.EndlessDrag)
	if policy.HitDisabled {
		c.setHit(DisableHit)
	} else {
		c.setHit(HitAll)
	}
	c.superJump = false
	c.core.Jumps = 2
	c.neededFaketune = 0

	c.tuneZone = w.coll.TuneZone(w.coll.MapIndex(c.pos))
	c.tuneZoneOld = -1
	c.core.Tuning = w.zones.Get(c.tuneZone)
	c.sendZoneMsgs()
	w.sendTuning(c.id, c.tuneZone, c.neededFaketune)
}

// mask is the set of clients that see this character's events.
func (c *Character) mask() events.Mask { return events.MaskAll }

// eventGroup is the switch group the character triggers and reads.
func (c *Character) eventGroup() int {
	return c.world.teams.Team(c.id) % gamecore.MaxClients
}

func (c *Character) ID() int              { return c.id }
func (c *Character) SnapID() int          { return c.snapID }
func (c *Character) Alive() bool          { return c.alive }
func (c *Character) Paused() bool         { return c.paused }
func (c *Character) Core() *gamecore.Core { return &c.core }

// Pos is the current position of the core.
func (c *Character) Pos() geom.Vec2 { return c.core.Pos }

func (c *Character) FreezeTime() int     { return c.freezeTime }
func (c *Character) DeepFrozen() bool    { return c.core.DeepFrozen }
func (c *Character) LiveFrozen() bool    { return c.liveFreeze }
func (c *Character) IsInFreeze() bool    { return c.isInFreeze }
func (c *Character) TeleCheckpoint() int { return c.teleCheckpoint }
func (c *Character) TuneZone() int       { return c.tuneZone }
func (c *Character) Hit() int            { return c.hit }
func (c *Character) ReckoningTick() int  { return c.reckoningTick }
func (c *Character) Super() bool         { return c.core.Super }
func (c *Character) ActiveWeapon() int   { return c.core.ActiveWeapon }

// Tick runs the input half of the character: race bookkeeping, the core's
// input tick and weapons.
func (c *Character) Tick() {
	w := c.world

	// tiles are walked from where the core started this tick
	c.prevPos = c.core.Pos

	c.ddraceTick()
	w.antibot.OnCharacterTick(c.id)

	c.core.Input = c.input
	c.core.Tick(true, true)

	if c.prevInput.Hook == 0 && c.input.Hook != 0 && c.core.TriggeredEvents&gamecore.EventHookAttachPlayer == 0 {
		w.antibot.OnHookAttach(c.id, false)
	}
	if c.core.TriggeredEvents&gamecore.EventHookAttachPlayer != 0 && c.core.HookedPlayer() != -1 {
		w.antibot.OnHookAttach(c.id, true)
	}

	c.handleWeapons()
	c.prevInput = c.input
}

func (c *Character) ddraceTick() {
	w := c.world
	ts := w.tickSpeed()
	now := w.now()

	c.input = c.savedInput

	if c.freezeTime >= 0 {
		c.armor = geom.ClampInt(10-c.freezeTime/15, 0, 10)
	} else {
		c.armor = 0
	}
	if c.input.Direction != 0 || c.input.Jump != 0 {
		c.lastMove = now
	}

	if c.liveFreeze && !c.core.Super {
		c.input.Direction = 0
		c.input.Jump = 0
	}

	if c.freezeTime > 0 || c.freezeTime == -1 {
		if c.freezeTime%ts == ts-1 || c.freezeTime == -1 {
			w.events.CreateDamageInd(c.pos, 0, (c.freezeTime+1)/ts, c.mask())
		}
		if c.freezeTime > 0 {
			c.freezeTime--
		} else {
			c.core.Ninja.ActivationTick = now
		}
		c.input.Direction = 0
		c.input.Jump = 0
		c.input.Hook = 0
		if c.freezeTime == 1 {
			c.UnFreeze()
		}
	}

	c.handleTuneLayer()

	index := w.coll.PureMapIndex(c.pos)
	c.isInFreeze = false
	for _, tile := range [...]int{w.coll.TileIndex(index), w.coll.FrontTileIndex(index), switchTypeAt(w.coll, index)} {
		if tile == collision.TileFreeze || tile == collision.TileDFreeze || tile == collision.TileLFreeze {
			c.isInFreeze = true
			break
		}
	}
}

func switchTypeAt(m *collision.Map, index int) int {
	sw, ok := m.Switch(index)
	if !ok {
		return 0
	}
	return int(sw.Type)
}

// TickDeferred runs the movement half: dead reckoning, the core move,
// sounds, the resync decision and the tile pass.
func (c *Character) TickDeferred() {
	w := c.world
	now := w.now()

	c.reckoning.Tick(false, true)
	c.reckoning.Move()
	c.reckoning.Quantize()

	size := geom.V(gamecore.PhysSize, gamecore.PhysSize)
	before := stuckSample(c.core.Pos, c.core.Vel)
	stuckBefore := w.coll.TestBox(c.core.Pos, size)

	c.core.Move()
	afterMove := stuckSample(c.core.Pos, c.core.Vel)
	stuckAfterMove := w.coll.TestBox(c.core.Pos, size)

	c.core.Quantize()
	afterQuant := stuckSample(c.core.Pos, c.core.Vel)
	stuckAfterQuant := w.coll.TestBox(c.core.Pos, size)
	c.pos = c.core.Pos

	if !stuckBefore && (stuckAfterMove || stuckAfterQuant) {
		physics.CharacterStuck(context.Background(), w.publisher, w.tick, logging.CharacterRef(c.id), physics.CharacterStuckPayload{
			Before:     before,
			AfterMove:  afterMove,
			AfterQuant: afterQuant,
		}, nil)
	}

	others := events.MaskAllExceptOne(c.id)
	ev := c.core.TriggeredEvents
	if ev&gamecore.EventGroundJump != 0 {
		w.events.CreateSound(c.pos, events.SoundPlayerJump, others)
	}
	if ev&gamecore.EventHookAttachPlayer != 0 {
		w.events.CreateSound(c.pos, events.SoundHookAttachPlayer, others)
	}
	if ev&gamecore.EventHookAttachGround != 0 {
		w.events.CreateSound(c.pos, events.SoundHookAttachGround, others)
	}
	if ev&gamecore.EventHookHitNoHook != 0 {
		w.events.CreateSound(c.pos, events.SoundHookNoAttach, others)
	}

	if c.core.NeedsResync || c.reckoningTick+w.tickSpeed()*resyncInterval < now || c.reckoning.Write() != c.core.Write() {
		c.reckoningTick = now
		c.core.NeedsResync = false
		c.core.CloneInto(&c.sent)
		c.core.CloneInto(&c.reckoning)
	}

	c.postCoreTick()
}

func stuckSample(pos, vel geom.Vec2) physics.Sample {
	return physics.Sample{
		X:     pos[0],
		Y:     pos[1],
		VelX:  vel[0],
		VelY:  vel[1],
		XBits: math.Float64bits(pos[0]),
		YBits: math.Float64bits(pos[1]),
	}
}

func (c *Character) postCoreTick() {
	w := c.world

	if c.endlessHook || (c.core.Super && w.policy().EndlessSuperHook) {
		c.core.HookTick = 0
	}

	c.frozenLastTick = false

	if c.core.DeepFrozen && !c.core.Super {
		c.Freeze()
	}

	// tiles like refill jumps, stoppers and walljumps may override these
	switch {
	case c.core.Jumps == -1:
		c.core.Jumped |= 2
	case c.core.Jumps == 0:
		c.core.Jumped |= 2
	case c.core.Jumps == 1 && c.core.Jumped > 0:
		c.core.Jumped |= 2
	case c.core.JumpedTotal < c.core.Jumps-1 && c.core.Jumped > 1:
		c.core.Jumped = 1
	}
	if (c.core.Super || c.superJump) && c.core.Jumped > 1 {
		c.core.Jumped = 1
	}

	current := w.coll.MapIndex(c.pos)
	c.handleSkippableTiles(current)
	if !c.alive {
		return
	}

	indices := w.coll.Indices(c.prevPos, c.pos)
	if len(indices) == 0 {
		indices = []int{current}
	}
	for _, index := range indices {
		c.handleTiles(index)
		if !c.alive {
			return
		}
	}

	if c.teleGunTeleport {
		w.events.CreateDeath(c.pos, c.id, c.mask())
		c.core.Pos = c.teleGunPos
		if !c.isBlueTeleGunTeleport {
			c.core.Vel = geom.Vec2{}
		}
		c.core.NeedsResync = true
		w.events.CreateDeath(c.teleGunPos, c.id, c.mask())
		w.events.CreateSound(c.teleGunPos, events.SoundWeaponSpawn, c.mask())
		c.teleGunTeleport = false
		c.isBlueTeleGunTeleport = false
	}
}

// TickPaused keeps the tick-stamped timers of a paused character from
// running out while it is frozen in time.
func (c *Character) TickPaused() {
	c.attackTick++
	c.damageTakenTick++
	c.core.Ninja.ActivationTick++
	c.reckoningTick++
	if c.lastAction != -1 {
		c.lastAction++
	}
	if c.freezeTick > 0 {
		c.freezeTick++
	}
}

// Pause takes the core out of the world or puts it back.
func (c *Character) Pause(pause bool) {
	w := c.world
	c.paused = pause
	if pause {
		w.ctx.Cores[c.id] = nil
		if c.core.HookedPlayer() != -1 {
			c.core.ResetHook()
		}
		w.ctx.ReleaseHooked(c.id)
		return
	}
	c.core.Vel = geom.Vec2{}
	w.ctx.Cores[c.id] = &c.core
}

// OnPredictedInput stores the input the next tick simulates.
func (c *Character) OnPredictedInput(in gamecore.Input) {
	if in != c.savedInput {
		c.lastAction = c.world.now()
	}
	if in.TargetX == 0 && in.TargetY == 0 {
		in.TargetY = -1
	}
	c.input = in
	c.savedInput = in
}

// OnDirectInput tracks raw input edges and fires immediately.
func (c *Character) OnDirectInput(in gamecore.Input) {
	c.latestPrevInput = c.latestInput
	c.latestInput = in
	c.numInputs++
	if c.latestInput.TargetX == 0 && c.latestInput.TargetY == 0 {
		c.latestInput.TargetY = -1
	}
	c.world.antibot.OnDirectInput(c.id)

	if c.numInputs > 1 {
		c.handleWeaponSwitch()
		c.fireWeapon()
	}
	c.latestPrevPrevInput = c.latestPrevInput
	c.latestPrevInput = c.latestInput
}

// Freeze freezes the character for the configured freeze delay.
func (c *Character) Freeze() bool {
	return c.FreezeFor(c.world.policy().FreezeDelay)
}

// FreezeFor freezes the character for s seconds, -1 meaning until
// unfrozen. It refuses while a longer freeze is running and refreshes at
// most once per second.
func (c *Character) FreezeFor(s int) bool {
	w := c.world
	ts := w.tickSpeed()
	now := w.now()

	if (s <= 0 || c.core.Super || c.freezeTime == -1 || c.freezeTime > s*ts) && s != -1 {
		return false
	}
	if c.freezeTick == 0 || c.freezeTick < now-ts || s == -1 {
		c.armor = 0
		if s == -1 {
			c.freezeTime = -1
		} else {
			c.freezeTime = s * ts
		}
		c.freezeTick = now
		return true
	}
	return false
}

// UnFreeze ends a running timed freeze.
func (c *Character) UnFreeze() bool {
	if c.freezeTime <= 0 {
		return false
	}
	c.armor = 10
	if !c.core.Weapons[c.core.ActiveWeapon].Got {
		c.core.ActiveWeapon = tuning.WeaponGun
	}
	c.freezeTime = 0
	c.freezeTick = 0
	c.frozenLastTick = true
	return true
}

func (c *Character) setDeepFreeze(on bool) {
	c.core.DeepFrozen = on
}

func (c *Character) setLiveFreeze(on bool) {
	c.liveFreeze = on
	c.core.LiveFrozen = on
}

func (c *Character) SetEndlessHook(on bool) {
	c.endlessHook = on
	c.core.EndlessHook = on
}

func (c *Character) SetSuper(on bool) {
	c.core.Super = on
	if on {
		c.world.teams.SetTeam(c.id, gamecore.TeamSuper)
	} else {
		c.world.teams.SetTeam(c.id, c.player.team)
	}
}

func (c *Character) setHit(bits int) {
	c.hit = bits
	c.core.NoHammerHit = bits&DisableHitHammer != 0
	c.core.NoShotgunHit = bits&DisableHitShotgun != 0
	c.core.NoGrenadeHit = bits&DisableHitGrenade != 0
	c.core.NoLaserHit = bits&DisableHitLaser != 0
}

func (c *Character) hammerHitDisabled() bool  { return c.hit&DisableHitHammer != 0 }
func (c *Character) shotgunHitDisabled() bool { return c.hit&DisableHitShotgun != 0 }
func (c *Character) grenadeHitDisabled() bool { return c.hit&DisableHitGrenade != 0 }
func (c *Character) laserHitDisabled() bool   { return c.hit&DisableHitLaser != 0 }

// setFaketune updates the fake tuning bits and tells the client when they
// changed.
func (c *Character) setFaketune(bits int) {
	if bits == c.neededFaketune {
		return
	}
	c.neededFaketune = bits
	c.world.sendTuning(c.id, c.tuneZone, bits)
}

// TakeDamage applies the knockback of a hit. Race characters have no
// health to lose.
func (c *Character) TakeDamage(force geom.Vec2, dmg, from, weapon int) bool {
	c.core.Vel = collision.ClampVel(c.moveRestrictions, c.core.Vel.Add(force))
	if dmg > 0 {
		c.damageTakenTick = c.world.now()
	}
	return true
}

// Die removes the character from the world. The player respawns it later.
func (c *Character) Die(killer, weapon int) {
	if !c.alive {
		return
	}
	w := c.world

	lifecycle.CharacterDied(context.Background(), w.publisher, w.tick, logging.CharacterRef(c.id), lifecycle.CharacterDiedPayload{
		Killer: killer,
		Weapon: weapon,
		X:      c.pos[0],
		Y:      c.pos[1],
	}, nil)
	w.events.CreateSound(c.pos, events.SoundPlayerDie, c.mask())

	c.player.previousDieTick = c.player.dieTick
	c.player.dieTick = w.now()

	c.alive = false
	if c.core.HookedPlayer() != -1 {
		c.core.ResetHook()
	}
	w.ctx.Cores[c.id] = nil
	w.events.CreateDeath(c.pos, c.id, c.mask())
	w.freeSnapID(c.snapID)
	c.snapID = snapid.Invalid
}

func (c *Character) handleTuneLayer() {
	w := c.world
	c.tuneZoneOld = c.tuneZone
	c.tuneZone = w.coll.TuneZone(w.coll.MapIndex(c.pos))
	c.core.Tuning = w.zones.Get(c.tuneZone)
	if c.tuneZone != c.tuneZoneOld {
		c.sendZoneMsgs()
		w.sendTuning(c.id, c.tuneZone, c.neededFaketune)
	}
}

// sendZoneMsgs sends the leave text of the old zone and the enter text of
// the new one. A literal \n in a text starts a new line.
func (c *Character) sendZoneMsgs() {
	w := c.world
	if c.tuneZoneOld >= 0 {
		if _, leave := w.zones.Messages(c.tuneZoneOld); leave != "" {
			w.chatLines(c.id, leave)
		}
	}
	if enter, _ := w.zones.Messages(c.tuneZone); enter != "" {
		w.chatLines(c.id, enter)
	}
}

// Snap publishes the character to clientID unless it is out of view and no
// hook line involving it is visible.
func (c *Character) Snap(clientID int, view snap.View, sink snap.Sink) {
	if c.snapID == snapid.Invalid {
		return
	}
	w := c.world
	now := w.now()

	if c.clipped(clientID, view) {
		return
	}

	var core snap.CharacterCore
	if c.reckoningTick == 0 {
		core = c.core.Write()
		core.Tick = 0
	} else {
		core = c.sent.Write()
		core.Tick = int32(c.reckoningTick)
	}

	self := clientID == c.id || clientID == snap.DemoClient

	if self && c.core.Jetpack && c.core.ActiveWeapon == tuning.WeaponGun {
		c.setFaketune(c.neededFaketune | tuning.FakeJetpack)
	} else if self {
		c.setFaketune(c.neededFaketune &^ tuning.FakeJetpack)
	}

	obj := snap.Character{
		CharacterCore: core,
		PlayerFlags:   int32(c.input.PlayerFlags),
		Weapon:        int32(c.core.ActiveWeapon),
		AttackTick:    int32(c.attackTick),
	}
	obj.Direction = int32(c.input.Direction)
	if self {
		obj.Health = int32(c.health)
		obj.Armor = int32(c.armor)
		if ammo := c.core.Weapons[c.core.ActiveWeapon].Ammo; ammo > 0 && c.freezeTime == 0 {
			obj.AmmoCount = int32(ammo)
		}
	}
	snap.Put(sink, snap.ItemCharacter, c.snapID, obj)

	freezeEnd := int32(0)
	switch {
	case c.core.DeepFrozen:
		freezeEnd = -1
	case c.freezeTime > 0:
		freezeEnd = int32(now + c.freezeTime)
	}
	snap.Put(sink, snap.ItemDDNetCharacter, c.snapID, snap.DDNetCharacter{
		Flags:               int32(c.ddnetFlags()),
		FreezeEnd:           freezeEnd,
		Jumps:               int32(c.core.Jumps),
		TeleCheckpoint:      int32(c.teleCheckpoint),
		StrongWeakID:        int32(c.id),
		JumpedTotal:         int32(c.core.JumpedTotal),
		NinjaActivationTick: int32(c.core.Ninja.ActivationTick),
		FreezeStart:         int32(c.freezeTick),
		TargetX:             int32(c.core.Input.TargetX),
		TargetY:             int32(c.core.Input.TargetY),
	})
}

func (c *Character) clipped(clientID int, view snap.View) bool {
	if !view.Clipped(clientID, c.pos) {
		return false
	}
	if c.core.HookState != gamecore.HookIdle && c.core.HookState != gamecore.HookRetracted {
		if !clippedLine(view, clientID, c.pos, c.core.HookPos) {
			return false
		}
	}
	for _, id := range c.core.AttachedPlayers() {
		if other := c.world.characterAt(id); other != nil {
			if !clippedLine(view, clientID, c.pos, other.pos) {
				return false
			}
		}
	}
	return true
}

// clippedLine reports whether the segment a-b lies entirely outside view.
func clippedLine(view snap.View, clientID int, a, b geom.Vec2) bool {
	closest, _ := geom.ClosestPointOnLine(a, b, view.Pos)
	return view.Clipped(clientID, closest)
}

func (c *Character) ddnetFlags() int {
	flags := 0
	if c.world.teams.Solo(c.id) {
		flags |= snap.FlagSolo
	}
	if c.core.Super {
		flags |= snap.FlagSuper
	}
	if c.endlessHook {
		flags |= snap.FlagEndlessHook
	}
	if c.core.NoCollision || c.core.Tuning.PlayerCollision == 0 {
		flags |= snap.FlagCollisionDisabled
	}
	if c.core.NoHookHit || c.core.Tuning.PlayerHooking == 0 {
		flags |= snap.FlagHookHitDisabled
	}
	if c.superJump {
		flags |= snap.FlagEndlessJump
	}
	if c.core.Jetpack {
		flags |= snap.FlagJetpack
	}
	if c.hammerHitDisabled() {
		flags |= snap.FlagHammerHitDisabled
	}
	if c.shotgunHitDisabled() {
		flags |= snap.FlagShotgunHitDisabled
	}
	if c.grenadeHitDisabled() {
		flags |= snap.FlagGrenadeHitDisabled
	}
	if c.laserHitDisabled() {
		flags |= snap.FlagLaserHitDisabled
	}
	if c.core.HasTelegunGun {
		flags |= snap.FlagTeleGun
	}
	if c.core.HasTelegunGrenade {
		flags |= snap.FlagTeleGrenade
	}
	if c.core.HasTelegunLaser {
		flags |= snap.FlagTeleLaser
	}
	weaponFlags := [tuning.NumWeapons]int{
		snap.FlagWeaponHammer,
		snap.FlagWeaponGun,
		snap.FlagWeaponShotgun,
		snap.FlagWeaponGrenade,
		snap.FlagWeaponLaser,
		snap.FlagWeaponNinja,
	}
	for w, flag := range weaponFlags {
		if c.core.Weapons[w].Got {
			flags |= flag
		}
	}
	if c.liveFreeze {
		flags |= snap.FlagMovementsDisabled
	}
	if c.isInFreeze {
		flags |= snap.FlagInFreeze
	}
	return flags
}
