package gamecore

import (
	"math"
	"math/bits"

	"toutuo/server/internal/collision"
	"toutuo/server/internal/geom"
	"toutuo/server/internal/snap"
	"toutuo/server/internal/tuning"
)

// PhysSize is the side of a character's collision box.
const PhysSize = 28.0

// MaxVelocity bounds the length of a core's velocity after every deferred
// tick.
const MaxVelocity = 6000.0

// Hook states.
const (
	HookRetracted    = -1
	HookIdle         = 0
	HookRetractStart = 1
	HookRetractEnd   = 3
	HookFlying       = 4
	HookGrabbed      = 5
)

// Triggered event bits, collected during Tick and consumed by the character
// for sounds.
const (
	EventGroundJump = 1 << iota
	EventAirJump
	EventHookLaunch
	EventHookAttachPlayer
	EventHookAttachGround
	EventHookHitNoHook
	EventHookRetract
)

// Input is one tick of player input.
type Input struct {
	Direction    int `json:"direction"`
	TargetX      int `json:"targetX"`
	TargetY      int `json:"targetY"`
	Jump         int `json:"jump"`
	Fire         int `json:"fire"`
	Hook         int `json:"hook"`
	PlayerFlags  int `json:"playerFlags"`
	WantedWeapon int `json:"wantedWeapon"`
	NextWeapon   int `json:"nextWeapon"`
	PrevWeapon   int `json:"prevWeapon"`
}

// Weapon is the ownership and ammo state of one weapon slot. Ammo -1 means
// unlimited.
type Weapon struct {
	Got  bool
	Ammo int
}

// Ninja is the dash state while the ninja weapon is active.
type Ninja struct {
	ActivationDir   geom.Vec2
	ActivationTick  int
	CurrentMoveTime int
	OldVelAmount    float64
}

// Core is the part of a character that the client predicts: movement,
// jumping and the hook.
type Core struct {
	Pos     geom.Vec2
	Vel     geom.Vec2
	HookPos geom.Vec2
	HookDir geom.Vec2

	HookTick  int
	HookState int

	Jumped      int
	JumpedTotal int
	Jumps       int

	Direction int
	Angle     int
	Input     Input

	TriggeredEvents  int
	MoveRestrictions int
	Colliding        int
	LeftWall         bool

	ActiveWeapon int
	Weapons      [tuning.NumWeapons]Weapon
	Ninja        Ninja

	Super       bool
	EndlessHook bool
	EndlessJump bool
	Jetpack     bool
	NoCollision bool
	NoHookHit   bool

	NoHammerHit  bool
	NoShotgunHit bool
	NoGrenadeHit bool
	NoLaserHit   bool

	HasTelegunGun     bool
	HasTelegunGrenade bool
	HasTelegunLaser   bool

	DeepFrozen bool
	LiveFrozen bool

	// NeedsResync forces the owner to resend the core instead of letting
	// clients dead-reckon it.
	NeedsResync bool

	Tuning tuning.Params

	id           int
	hookedPlayer int
	attached     uint64
	world        *SharedContext
	coll         *collision.Map
}

// Init binds the core to a context and a map, and resets it. id is the slot
// the core occupies in ctx.Cores, or -1 for cores living outside any slot.
func (c *Core) Init(ctx *SharedContext, coll *collision.Map, id int) {
	c.Bind(ctx, coll, id)
	c.hookedPlayer = -1
	c.Reset()
}

// Bind attaches the core to a context and a map without touching its state.
func (c *Core) Bind(ctx *SharedContext, coll *collision.Map, id int) {
	c.world = ctx
	c.coll = coll
	c.id = id
}

// ID returns the slot of the core.
func (c *Core) ID() int { return c.id }

// HookedPlayer returns the slot of the core being hooked, -1 for none.
func (c *Core) HookedPlayer() int { return c.hookedPlayer }

// Context returns the shared context the core lives in.
func (c *Core) Context() *SharedContext { return c.world }

// Reset clears every movement and modifier field. The tuning and the bindings
// survive.
func (c *Core) Reset() {
	c.Pos = geom.Vec2{}
	c.Vel = geom.Vec2{}
	c.HookPos = geom.Vec2{}
	c.HookDir = geom.Vec2{}
	c.HookTick = 0
	c.HookState = HookIdle
	c.SetHookedPlayer(-1)
	c.attached = 0
	c.Jumped = 0
	c.JumpedTotal = 0
	c.Jumps = 1
	c.TriggeredEvents = 0
	c.MoveRestrictions = 0
	c.Colliding = 0
	c.LeftWall = false
	c.ActiveWeapon = 0
	c.Weapons = [tuning.NumWeapons]Weapon{}
	c.Ninja = Ninja{}

	c.Super = false
	c.EndlessHook = false
	c.EndlessJump = false
	c.Jetpack = false
	c.NoCollision = false
	c.NoHookHit = false
	c.NoHammerHit = false
	c.NoShotgunHit = false
	c.NoGrenadeHit = false
	c.NoLaserHit = false
	c.HasTelegunGun = false
	c.HasTelegunGrenade = false
	c.HasTelegunLaser = false
	c.DeepFrozen = false
	c.LiveFrozen = false
	c.NeedsResync = false

	// A zero target has no direction; aim up.
	c.Input = Input{TargetY: -1}
	c.Direction = 0
	c.Angle = 0
}

// SetHookedPlayer switches the hook target, keeping the attached set of the
// old and new target in sync.
func (c *Core) SetHookedPlayer(id int) {
	if id == c.hookedPlayer {
		return
	}
	if valid(c.id) {
		if prev := c.world.core(c.hookedPlayer); prev != nil {
			prev.attached &^= 1 << uint(c.id)
		}
		if next := c.world.core(id); next != nil {
			next.attached |= 1 << uint(c.id)
		}
	}
	c.hookedPlayer = id
}

// AttachedPlayers returns the slots hooking this core, in ascending order.
func (c *Core) AttachedPlayers() []int {
	var out []int
	for m := c.attached; m != 0; m &= m - 1 {
		out = append(out, bits.TrailingZeros64(m))
	}
	return out
}

// ResetHook retracts the hook immediately.
func (c *Core) ResetHook() {
	c.SetHookedPlayer(-1)
	c.HookState = HookRetracted
	c.TriggeredEvents |= EventHookRetract
	c.HookPos = c.Pos
}

func (c *Core) solo() bool {
	return c.world != nil && c.world.Teams.Solo(c.id)
}

// interacts reports whether c and the core in slot i see each other at all.
func (c *Core) interacts(i int, other *Core) bool {
	if c.Super || other.Super {
		return true
	}
	if c.solo() || other.solo() {
		return false
	}
	return !valid(c.id) || c.world.Teams.CanCollide(c.id, i)
}

// Tick integrates input, gravity and the hook for one tick. doDeferred runs
// TickDeferred right away for cores that have no deferred pass of their own.
func (c *Core) Tick(useInput, doDeferred bool) {
	c.MoveRestrictions = c.coll.MoveRestrictions(c.Pos, 0)
	c.TriggeredEvents = 0

	const half = PhysSize / 2
	grounded := c.coll.CheckPoint(c.Pos[0]+half, c.Pos[1]+half+5) ||
		c.coll.CheckPoint(c.Pos[0]-half, c.Pos[1]+half+5)

	targetDir := geom.Normalize(geom.V(float64(c.Input.TargetX), float64(c.Input.TargetY)))

	c.Vel[1] += c.Tuning.Gravity

	maxSpeed, accel, friction := c.Tuning.AirControlSpeed, c.Tuning.AirControlAccel, c.Tuning.AirFriction
	if grounded {
		maxSpeed, accel, friction = c.Tuning.GroundControlSpeed, c.Tuning.GroundControlAccel, c.Tuning.GroundFriction
	}

	if useInput {
		c.applyInput(grounded, targetDir)
	}

	switch {
	case c.Direction < 0:
		c.Vel[0] = geom.SaturatedAdd(-maxSpeed, maxSpeed, c.Vel[0], -accel)
	case c.Direction > 0:
		c.Vel[0] = geom.SaturatedAdd(-maxSpeed, maxSpeed, c.Vel[0], accel)
	default:
		c.Vel[0] *= friction
	}

	if grounded {
		c.Jumped &^= 2
		c.JumpedTotal = 0
	}

	c.tickHook()

	if doDeferred {
		c.TickDeferred()
	}
}

func (c *Core) applyInput(grounded bool, targetDir geom.Vec2) {
	c.Direction = c.Input.Direction

	a := math.Atan2(float64(c.Input.TargetY), float64(c.Input.TargetX))
	if a < -math.Pi/2 {
		a += 2 * math.Pi
	}
	c.Angle = int(a * 256)

	// Jumped bit 1: this press was already used. Bit 2: air jumps spent.
	if c.Input.Jump != 0 {
		if c.Jumped&1 == 0 {
			switch {
			case grounded && (c.Jumped&2 == 0 || c.Jumps != 0):
				c.TriggeredEvents |= EventGroundJump
				c.Vel[1] = -c.Tuning.GroundJumpImpulse
				if c.Jumps > 1 {
					c.Jumped |= 1
				} else {
					c.Jumped |= 3
				}
				c.JumpedTotal = 0
			case c.Jumped&2 == 0:
				c.TriggeredEvents |= EventAirJump
				c.Vel[1] = -c.Tuning.AirJumpImpulse
				c.Jumped |= 3
				c.JumpedTotal++
			}
		}
	} else {
		c.Jumped &^= 1
	}

	if c.Input.Hook != 0 {
		if c.HookState == HookIdle {
			c.HookState = HookFlying
			c.HookPos = c.Pos.Add(targetDir.Mul(PhysSize * 1.5))
			c.HookDir = targetDir
			c.SetHookedPlayer(-1)
			c.HookTick = int(float64(c.tickSpeed()) * (1.25 - c.Tuning.HookDuration))
			c.TriggeredEvents |= EventHookLaunch
		}
	} else {
		c.SetHookedPlayer(-1)
		c.HookState = HookIdle
		c.HookPos = c.Pos
	}
}

func (c *Core) tickSpeed() int {
	if c.world == nil {
		return 50
	}
	return c.world.TickSpeed
}

func (c *Core) tickHook() {
	switch {
	case c.HookState == HookIdle:
		c.SetHookedPlayer(-1)
		c.HookPos = c.Pos
	case c.HookState >= HookRetractStart && c.HookState < HookRetractEnd:
		c.HookState++
	case c.HookState == HookRetractEnd:
		c.TriggeredEvents |= EventHookRetract
		c.HookState = HookRetracted
	case c.HookState == HookFlying:
		c.tickFlyingHook()
	}

	if c.HookState == HookGrabbed {
		c.tickGrabbedHook()
	}
}

func (c *Core) tickFlyingHook() {
	newPos := c.HookPos.Add(c.HookDir.Mul(c.Tuning.HookFireSpeed))
	if geom.Distance(c.Pos, newPos) > c.Tuning.HookLength {
		c.HookState = HookRetractStart
		newPos = c.Pos.Add(geom.Normalize(newPos.Sub(c.Pos)).Mul(c.Tuning.HookLength))
		c.NeedsResync = true
	}

	hitGround, hitNoHook := false, false
	if hit := c.coll.IntersectLine(c.HookPos, newPos); hit.Tile != 0 {
		newPos = hit.At
		c.NeedsResync = true
		if hit.Tile == collision.TileNoHook {
			hitNoHook = true
		} else {
			hitGround = true
		}
	}

	if c.world != nil && c.Tuning.PlayerHooking != 0 && !c.NoHookHit {
		nearest := 0.0
		for i, other := range c.world.Cores {
			if other == nil || other == c || !c.interacts(i, other) {
				continue
			}
			closest, ok := geom.ClosestPointOnLine(c.HookPos, newPos, other.Pos)
			if !ok || geom.Distance(other.Pos, closest) >= PhysSize+2 {
				continue
			}
			d := geom.Distance(c.HookPos, other.Pos)
			if c.hookedPlayer == -1 || d < nearest {
				c.TriggeredEvents |= EventHookAttachPlayer
				c.HookState = HookGrabbed
				c.SetHookedPlayer(i)
				nearest = d
			}
		}
	}

	if c.HookState == HookFlying {
		switch {
		case hitGround:
			c.TriggeredEvents |= EventHookAttachGround
			c.HookState = HookGrabbed
		case hitNoHook:
			c.TriggeredEvents |= EventHookHitNoHook
			c.HookState = HookRetractStart
		}
		c.HookPos = newPos
	}
}

func (c *Core) tickGrabbedHook() {
	if c.hookedPlayer != -1 {
		if target := c.world.core(c.hookedPlayer); target != nil {
			c.HookPos = target.Pos
		} else {
			c.SetHookedPlayer(-1)
			c.HookState = HookRetracted
			c.HookPos = c.Pos
		}
	}

	if c.hookedPlayer == -1 && geom.Distance(c.HookPos, c.Pos) > 46 {
		hookVel := geom.Normalize(c.HookPos.Sub(c.Pos)).Mul(c.Tuning.HookDragAccel)
		if hookVel[1] > 0 {
			hookVel[1] *= 0.3
		}
		if (hookVel[0] < 0 && c.Direction < 0) || (hookVel[0] > 0 && c.Direction > 0) {
			hookVel[0] *= 0.95
		} else {
			hookVel[0] *= 0.75
		}
		newVel := c.Vel.Add(hookVel)
		if newVel.Len() < c.Tuning.HookDragSpeed || newVel.Len() < c.Vel.Len() {
			c.Vel = newVel
		}
	}

	c.HookTick++
	ts := c.tickSpeed()
	if c.hookedPlayer != -1 && (c.HookTick > ts+ts/5 || c.world.core(c.hookedPlayer) == nil) {
		c.SetHookedPlayer(-1)
		c.HookState = HookRetracted
		c.HookPos = c.Pos
	}
}

// TickDeferred applies the interactions with the other cores: collision push
// and the pull of a player hook. It runs after every core has ticked.
func (c *Core) TickDeferred() {
	if c.world != nil {
		for i, other := range c.world.Cores {
			if other == nil || other == c || !c.interacts(i, other) {
				continue
			}
			dist := geom.Distance(c.Pos, other.Pos)
			if dist <= 0 {
				continue
			}
			dir := geom.Normalize(c.Pos.Sub(other.Pos))

			canCollide := c.Super || other.Super ||
				(!c.NoCollision && !other.NoCollision && c.Tuning.PlayerCollision != 0)
			if canCollide && dist < PhysSize*1.25 {
				a := PhysSize*1.45 - dist
				velocity := 0.5
				if c.Vel.Len() > 0.0001 {
					velocity = 1 - (geom.Normalize(c.Vel).Dot(dir)+1)/2
				}
				c.Vel = c.Vel.Add(dir.Mul(a * velocity * 0.75)).Mul(0.85)
			}

			if !c.NoHookHit && c.hookedPlayer == i && c.Tuning.PlayerHooking != 0 && dist > PhysSize*1.5 {
				accel := c.Tuning.HookDragAccel * (dist / c.Tuning.HookLength)
				drag := c.Tuning.HookDragSpeed

				pulled := geom.V(
					geom.SaturatedAdd(-drag, drag, other.Vel[0], accel*dir[0]*1.5),
					geom.SaturatedAdd(-drag, drag, other.Vel[1], accel*dir[1]*1.5),
				)
				other.Vel = collision.ClampVel(other.MoveRestrictions, pulled)

				self := geom.V(
					geom.SaturatedAdd(-drag, drag, c.Vel[0], -accel*dir[0]*0.25),
					geom.SaturatedAdd(-drag, drag, c.Vel[1], -accel*dir[1]*0.25),
				)
				c.Vel = collision.ClampVel(c.MoveRestrictions, self)
			}
		}
	}

	if c.Vel.Len() > MaxVelocity {
		c.Vel = geom.Normalize(c.Vel).Mul(MaxVelocity)
	}
}

// VelocityRamp scales high speeds down so horizontal velocity converges.
func VelocityRamp(value, start, rng, curvature float64) float64 {
	if value < start {
		return 1
	}
	return 1 / math.Pow(curvature, (value-start)/rng)
}

// Move advances the position by the velocity through the map and, when
// player collision applies, stops in front of the first core on the path.
func (c *Core) Move() {
	ramp := VelocityRamp(c.Vel.Len()*50, c.Tuning.VelrampStart, c.Tuning.VelrampRange, c.Tuning.VelrampCurvature)
	c.Vel[0] *= ramp

	oldVel := c.Vel
	newPos, vel := c.coll.MoveBox(c.Pos, c.Vel, geom.V(PhysSize, PhysSize), 0)
	c.Vel = vel

	c.Colliding = 0
	if c.Vel[0] < 0.001 && c.Vel[0] > -0.001 {
		if oldVel[0] > 0 {
			c.Colliding = 1
		} else if oldVel[0] < 0 {
			c.Colliding = 2
		}
	} else {
		c.LeftWall = true
	}

	c.Vel[0] *= 1 / ramp

	if c.world != nil && (c.Super || (c.Tuning.PlayerCollision != 0 && !c.NoCollision && !c.solo())) {
		if dist := geom.Distance(c.Pos, newPos); dist > 0 {
			end := int(dist + 1)
			last := c.Pos
			for i := 0; i < end; i++ {
				a := float64(i) / dist
				p := geom.Mix(c.Pos, newPos, a)
				for j, other := range c.world.Cores {
					if other == nil || other == c {
						continue
					}
					if !(c.Super || other.Super) && (other.NoCollision || !c.interacts(j, other)) {
						continue
					}
					d := geom.Distance(p, other.Pos)
					if d < PhysSize {
						if a > 0 {
							c.Pos = last
						} else if geom.Distance(newPos, other.Pos) > d {
							c.Pos = newPos
						}
						return
					}
				}
				last = p
			}
		}
	}

	c.Pos = newPos
}

// Write encodes the network-visible part of the core.
func (c *Core) Write() snap.CharacterCore {
	return snap.CharacterCore{
		X:            int32(geom.RoundToInt(c.Pos[0])),
		Y:            int32(geom.RoundToInt(c.Pos[1])),
		VelX:         int32(geom.RoundToInt(c.Vel[0] * 256)),
		VelY:         int32(geom.RoundToInt(c.Vel[1] * 256)),
		HookState:    int32(c.HookState),
		HookTick:     int32(c.HookTick),
		HookX:        int32(geom.RoundToInt(c.HookPos[0])),
		HookY:        int32(geom.RoundToInt(c.HookPos[1])),
		HookDx:       int32(geom.RoundToInt(c.HookDir[0] * 256)),
		HookDy:       int32(geom.RoundToInt(c.HookDir[1] * 256)),
		HookedPlayer: int32(c.hookedPlayer),
		Jumped:       int32(c.Jumped),
		Direction:    int32(c.Direction),
		Angle:        int32(c.Angle),
	}
}

// Read loads the fields Write produced.
func (c *Core) Read(obj snap.CharacterCore) {
	c.Pos = geom.V(float64(obj.X), float64(obj.Y))
	c.Vel = geom.V(float64(obj.VelX)/256, float64(obj.VelY)/256)
	c.HookState = int(obj.HookState)
	c.HookTick = int(obj.HookTick)
	c.HookPos = geom.V(float64(obj.HookX), float64(obj.HookY))
	c.HookDir = geom.V(float64(obj.HookDx)/256, float64(obj.HookDy)/256)
	c.SetHookedPlayer(int(obj.HookedPlayer))
	c.Jumped = int(obj.Jumped)
	c.Direction = int(obj.Direction)
	c.Angle = int(obj.Angle)
}

// Quantize rounds the core to what the network can carry, so the server
// simulates exactly what clients predict from.
func (c *Core) Quantize() {
	c.Read(c.Write())
}

// CloneInto copies the simulation state of c into dst, keeping dst's own
// bindings (context, slot and attachments).
func (c *Core) CloneInto(dst *Core) {
	world, coll, id, attached := dst.world, dst.coll, dst.id, dst.attached
	*dst = *c
	dst.world, dst.coll, dst.id, dst.attached = world, coll, id, attached
}
