package world

import (
	"strings"

	"toutuo/server/internal/tuning"
)

const (
	DefaultSeed        = "prototype"
	DefaultTickSpeed   = 50
	DefaultFreezeDelay = 3
	DefaultRespawnWait = 3

	// snap ids rest this many seconds before reuse
	defaultSnapIDGraceSeconds = 5
)

// Policy holds the server rules the tile and weapon code consults. The zero
// value is the stock race ruleset.
type Policy struct {
	// FreezeDelay is the freeze length in seconds of plain freeze tiles.
	FreezeDelay int `json:"freezeDelay"`
	// RespawnWait is the minimum number of seconds between two deaths'
	// respawns.
	RespawnWait int `json:"respawnWait"`

	TeleportHoldHook    bool `json:"teleportHoldHook"`
	TeleportLoseWeapons bool `json:"teleportLoseWeapons"`
	OldTeleportHook     bool `json:"oldTeleportHook"`
	OldTeleportWeapons  bool `json:"oldTeleportWeapons"`
	DeepflyDisabled     bool `json:"deepflyDisabled"`
	EndlessDrag         bool `json:"endlessDrag"`
	EndlessSuperHook    bool `json:"endlessSuperHook"`
	HitDisabled         bool `json:"hitDisabled"`
}

type Config struct {
	Seed             string              `json:"seed"`
	TickSpeed        int                 `json:"tickSpeed"`
	SnapIDGraceTicks int                 `json:"snapIdGraceTicks"`
	Policy           Policy              `json:"policy"`
	Tuning           tuning.Params       `json:"tuning"`
	Zones            []tuning.ZoneConfig `json:"zones,omitempty"`
}

func (cfg Config) normalized() Config {
	normalized := cfg
	normalized.Seed = strings.TrimSpace(normalized.Seed)
	if normalized.Seed == "" {
		normalized.Seed = DefaultSeed
	}
	if normalized.TickSpeed <= 0 {
		normalized.TickSpeed = DefaultTickSpeed
	}
	if normalized.SnapIDGraceTicks <= 0 {
		normalized.SnapIDGraceTicks = defaultSnapIDGraceSeconds * normalized.TickSpeed
	}
	if normalized.Policy.FreezeDelay <= 0 {
		normalized.Policy.FreezeDelay = DefaultFreezeDelay
	}
	if normalized.Policy.RespawnWait < 0 {
		normalized.Policy.RespawnWait = 0
	} else if normalized.Policy.RespawnWait == 0 {
		normalized.Policy.RespawnWait = DefaultRespawnWait
	}
	if normalized.Tuning == (tuning.Params{}) {
		normalized.Tuning = tuning.Default()
	}

	// zones without their own table inherit the global one
	zones := make([]tuning.ZoneConfig, 0, len(cfg.Zones))
	for _, zone := range cfg.Zones {
		if zone.Zone <= 0 || zone.Zone >= tuning.NumZones {
			continue
		}
		if zone.Params == (tuning.Params{}) {
			zone.Params = normalized.Tuning
		}
		zones = append(zones, zone)
	}
	normalized.Zones = zones
	return normalized
}

func (cfg Config) Normalized() Config {
	return cfg.normalized()
}

func DefaultConfig() Config {
	return Config{
		Seed:             DefaultSeed,
		TickSpeed:        DefaultTickSpeed,
		SnapIDGraceTicks: defaultSnapIDGraceSeconds * DefaultTickSpeed,
		Policy: Policy{
			FreezeDelay: DefaultFreezeDelay,
			RespawnWait: DefaultRespawnWait,
		},
		Tuning: tuning.Default(),
		Zones:  []tuning.ZoneConfig{},
	}
}
