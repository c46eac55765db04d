package snap

// CharacterCore is the physics part of a character as sent to clients.
// Velocities and hook direction are fixed point with 8 fractional bits.
type CharacterCore struct {
	Tick         int32
	X            int32
	Y            int32
	VelX         int32
	VelY         int32
	Angle        int32
	Direction    int32
	Jumped       int32
	HookedPlayer int32
	HookState    int32
	HookTick     int32
	HookX        int32
	HookY        int32
	HookDx       int32
	HookDy       int32
}

type Character struct {
	CharacterCore
	PlayerFlags int32
	Health      int32
	Armor       int32
	AmmoCount   int32
	Weapon      int32
	Emote       int32
	AttackTick  int32
}

// DDNet character flags.
const (
	FlagSolo = 1 << iota
	FlagJetpack
	FlagCollisionDisabled
	FlagEndlessHook
	FlagEndlessJump
	FlagSuper
	FlagHammerHitDisabled
	FlagShotgunHitDisabled
	FlagGrenadeHitDisabled
	FlagLaserHitDisabled
	FlagHookHitDisabled
	FlagTeleGun
	FlagTeleGrenade
	FlagTeleLaser
	FlagWeaponHammer
	FlagWeaponGun
	FlagWeaponShotgun
	FlagWeaponGrenade
	FlagWeaponLaser
	FlagWeaponNinja
	FlagMovementsDisabled
	FlagInFreeze
)

type DDNetCharacter struct {
	Flags               int32
	FreezeEnd           int32
	Jumps               int32
	TeleCheckpoint      int32
	StrongWeakID        int32
	JumpedTotal         int32
	NinjaActivationTick int32
	FreezeStart         int32
	TargetX             int32
	TargetY             int32
}

type Projectile struct {
	X         int32
	Y         int32
	VelX      int32
	VelY      int32
	Type      int32
	StartTick int32
}

type Laser struct {
	X         int32
	Y         int32
	FromX     int32
	FromY     int32
	StartTick int32
}

// Event payloads. Every event starts with the position it is clipped by.

type EventCommon struct {
	X int32
	Y int32
}

type Sound struct {
	EventCommon
	SoundID int32
}

type DamageInd struct {
	EventCommon
	Angle int32
}

type HammerHit struct {
	EventCommon
}

type Death struct {
	EventCommon
	ClientID int32
}

type Spawn struct {
	EventCommon
}

type Explosion struct {
	EventCommon
}
