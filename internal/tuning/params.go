// Package tuning holds the physics and weapon constants a character runs
// with, the per-zone overrides and the fake tuning a client is told.
package tuning

// Params is one complete tuning table. Field order matches the order in which
// the table is transmitted to clients.
type Params struct {
	GroundControlSpeed float64 `json:"groundControlSpeed"`
	GroundControlAccel float64 `json:"groundControlAccel"`
	GroundFriction     float64 `json:"groundFriction"`
	GroundJumpImpulse  float64 `json:"groundJumpImpulse"`
	AirJumpImpulse     float64 `json:"airJumpImpulse"`
	AirControlSpeed    float64 `json:"airControlSpeed"`
	AirControlAccel    float64 `json:"airControlAccel"`
	AirFriction        float64 `json:"airFriction"`
	HookLength         float64 `json:"hookLength"`
	HookFireSpeed      float64 `json:"hookFireSpeed"`
	HookDragAccel      float64 `json:"hookDragAccel"`
	HookDragSpeed      float64 `json:"hookDragSpeed"`
	Gravity            float64 `json:"gravity"`
	VelrampStart       float64 `json:"velrampStart"`
	VelrampRange       float64 `json:"velrampRange"`
	VelrampCurvature   float64 `json:"velrampCurvature"`
	GunCurvature       float64 `json:"gunCurvature"`
	GunSpeed           float64 `json:"gunSpeed"`
	GunLifetime        float64 `json:"gunLifetime"`
	ShotgunCurvature   float64 `json:"shotgunCurvature"`
	ShotgunSpeed       float64 `json:"shotgunSpeed"`
	ShotgunSpeeddiff   float64 `json:"shotgunSpeeddiff"`
	ShotgunLifetime    float64 `json:"shotgunLifetime"`
	GrenadeCurvature   float64 `json:"grenadeCurvature"`
	GrenadeSpeed       float64 `json:"grenadeSpeed"`
	GrenadeLifetime    float64 `json:"grenadeLifetime"`
	LaserReach         float64 `json:"laserReach"`
	LaserBounceDelay   float64 `json:"laserBounceDelay"`
	LaserBounceNum     float64 `json:"laserBounceNum"`
	LaserBounceCost    float64 `json:"laserBounceCost"`
	LaserDamage        float64 `json:"laserDamage"`
	PlayerCollision    float64 `json:"playerCollision"`
	PlayerHooking      float64 `json:"playerHooking"`
	JetpackStrength    float64 `json:"jetpackStrength"`
	ShotgunStrength    float64 `json:"shotgunStrength"`
	ExplosionStrength  float64 `json:"explosionStrength"`
	HammerStrength     float64 `json:"hammerStrength"`
	HookDuration       float64 `json:"hookDuration"`
	HammerFireDelay    float64 `json:"hammerFireDelay"`
	GunFireDelay       float64 `json:"gunFireDelay"`
	ShotgunFireDelay   float64 `json:"shotgunFireDelay"`
	GrenadeFireDelay   float64 `json:"grenadeFireDelay"`
	LaserFireDelay     float64 `json:"laserFireDelay"`
	NinjaFireDelay     float64 `json:"ninjaFireDelay"`
	HammerHitFireDelay float64 `json:"hammerHitFireDelay"`
}

// Default returns the race tuning every zone starts from.
func Default() Params {
	return Params{
		GroundControlSpeed: 10,
		GroundControlAccel: 2,
		GroundFriction:     0.5,
		GroundJumpImpulse:  13.2,
		AirJumpImpulse:     12,
		AirControlSpeed:    5,
		AirControlAccel:    1.5,
		AirFriction:        0.95,
		HookLength:         380,
		HookFireSpeed:      80,
		HookDragAccel:      3,
		HookDragSpeed:      15,
		Gravity:            0.5,
		VelrampStart:       550,
		VelrampRange:       2000,
		VelrampCurvature:   1.4,
		GunCurvature:       0,
		GunSpeed:           1400,
		GunLifetime:        2,
		ShotgunCurvature:   0,
		ShotgunSpeed:       500,
		ShotgunSpeeddiff:   0,
		ShotgunLifetime:    0.2,
		GrenadeCurvature:   7,
		GrenadeSpeed:       1000,
		GrenadeLifetime:    2,
		LaserReach:         800,
		LaserBounceDelay:   150,
		LaserBounceNum:     1000,
		LaserBounceCost:    0,
		LaserDamage:        5,
		PlayerCollision:    1,
		PlayerHooking:      1,
		JetpackStrength:    400,
		ShotgunStrength:    10,
		ExplosionStrength:  6,
		HammerStrength:     1,
		HookDuration:       1.25,
		HammerFireDelay:    125,
		GunFireDelay:       125,
		ShotgunFireDelay:   500,
		GrenadeFireDelay:   500,
		LaserFireDelay:     800,
		NinjaFireDelay:     800,
		HammerHitFireDelay: 320,
	}
}

// Weapon ids index the fire delay table.
const (
	WeaponHammer = iota
	WeaponGun
	WeaponShotgun
	WeaponGrenade
	WeaponLaser
	WeaponNinja
	NumWeapons
)

// FireDelay returns the reload time of weapon in milliseconds.
func (p Params) FireDelay(weapon int) float64 {
	switch weapon {
	case WeaponHammer:
		return p.HammerFireDelay
	case WeaponGun:
		return p.GunFireDelay
	case WeaponShotgun:
		return p.ShotgunFireDelay
	case WeaponGrenade:
		return p.GrenadeFireDelay
	case WeaponLaser:
		return p.LaserFireDelay
	case WeaponNinja:
		return p.NinjaFireDelay
	}
	return 0
}
