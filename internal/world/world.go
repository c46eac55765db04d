package world

import (
	"context"
	"errors"
	"math/rand"

	"toutuo/server/internal/antibot"
	"toutuo/server/internal/collision"
	"toutuo/server/internal/events"
	"toutuo/server/internal/gamecore"
	"toutuo/server/internal/geom"
	"toutuo/server/internal/snap"
	"toutuo/server/internal/snapid"
	"toutuo/server/internal/switches"
	"toutuo/server/internal/telemetry"
	"toutuo/server/internal/tuning"
	"toutuo/server/logging"
	"toutuo/server/logging/lifecycle"
)

var (
	// ErrUnknownClient is returned for a client id without a player.
	ErrUnknownClient = errors.New("world: unknown client")
	// ErrSlotTaken is returned when joining into an occupied slot.
	ErrSlotTaken = errors.New("world: slot taken")
)

const (
	metricCharactersAlive = "world_characters_alive"
	metricProjectiles     = "world_projectiles"
	metricLasers          = "world_lasers"
)

// Deps bundles runtime dependencies required to construct a World instance.
type Deps struct {
	Publisher logging.Publisher
	RNG       RNGFactory
	Metrics   telemetry.Metrics
	Antibot   antibot.Observer
	// InstanceID tags every log event of this world.
	InstanceID string
}

// World owns one map, the characters playing on it and every per-tick
// subsystem they share. It is not safe for concurrent use; the simulation
// loop serializes access.
type World struct {
	config Config
	seed   string
	id     string

	publisher  logging.Publisher
	metrics    telemetry.Metrics
	antibot    antibot.Observer
	rngFactory RNGFactory
	rng        *rand.Rand

	tick uint64

	coll          *collision.Map
	zones         *tuning.Zones
	teams         *gamecore.Teams
	ctx           *gamecore.SharedContext
	isolated      *gamecore.SharedContext
	ids           *snapid.Pool
	events        *events.Log
	switches      *switches.Register
	teleOuts      map[int][]geom.Vec2
	teleCheckOuts map[int][]geom.Vec2

	players     [gamecore.MaxClients]*Player
	projectiles []*Projectile
	lasers      []*Laser

	notices []Notice
}

// New constructs a world instance with normalized configuration and seeded RNG.
func New(cfg Config, m *collision.Map, deps Deps) (*World, error) {
	if m == nil {
		return nil, collision.ErrBadMap
	}
	normalized := cfg.normalized()

	factory := deps.RNG
	if factory == nil {
		factory = NewDeterministicRNG
	}

	publisher := deps.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	if deps.InstanceID != "" {
		publisher = logging.WithTrace(logging.WithFields(publisher, map[string]any{"world": deps.InstanceID}), deps.InstanceID)
	}

	seed := normalized.Seed
	if seed == "" {
		seed = DefaultSeed
	}

	w := &World{
		config:        normalized,
		seed:          seed,
		id:            deps.InstanceID,
		publisher:     publisher,
		metrics:       deps.Metrics,
		rngFactory:    factory,
		rng:           factory(seed, "world"),
		coll:          m,
		zones:         tuning.NewZones(normalized.Tuning, normalized.Zones),
		teams:         &gamecore.Teams{},
		switches:      switches.New(m.HighestSwitch(), true),
		teleOuts:      m.TeleOuts(),
		teleCheckOuts: m.TeleCheckOuts(),
	}
	w.antibot = antibot.Safe(deps.Antibot, publisher, w.Tick64)
	w.ctx = gamecore.NewSharedContext(normalized.TickSpeed, w.teams, w.rng)
	w.isolated = w.ctx.Isolated()
	w.ids = snapid.New(uint64(normalized.SnapIDGraceTicks), snapid.Deps{Publisher: publisher, Metrics: deps.Metrics})
	w.events = events.New(events.Deps{Publisher: publisher, Metrics: deps.Metrics, Tick: w.Tick64})

	return w, nil
}

// Config returns the normalized configuration captured at construction time.
func (w *World) Config() Config {
	if w == nil {
		return Config{}
	}
	return w.config
}

// Seed reports the deterministic seed applied to the world RNG hierarchy.
func (w *World) Seed() string {
	if w == nil {
		return ""
	}
	return w.seed
}

// RNG exposes the root RNG instance seeded for the world. Teleport exits are
// drawn from it.
func (w *World) RNG() *rand.Rand {
	if w == nil {
		return nil
	}
	if w.rng == nil {
		w.rng = w.ensureFactory()(w.seed, "world")
	}
	return w.rng
}

// SubsystemRNG returns a deterministic RNG derived from the world seed.
func (w *World) SubsystemRNG(label string) *rand.Rand {
	if w == nil {
		return NewDeterministicRNG(DefaultSeed, label)
	}
	seed := w.seed
	if seed == "" {
		seed = DefaultSeed
	}
	return w.ensureFactory()(seed, label)
}

func (w *World) ensureFactory() RNGFactory {
	if w == nil || w.rngFactory == nil {
		return NewDeterministicRNG
	}
	return w.rngFactory
}

// Tick64 is the number of completed ticks.
func (w *World) Tick64() uint64 {
	if w == nil {
		return 0
	}
	return w.tick
}

func (w *World) now() int { return int(w.tick) }

func (w *World) tickSpeed() int { return w.config.TickSpeed }

func (w *World) policy() Policy { return w.config.Policy }

// Map returns the collision map the world runs on.
func (w *World) Map() *collision.Map { return w.coll }

// Events exposes the current tick's event log.
func (w *World) Events() *events.Log { return w.events }

// Switches exposes the switch register.
func (w *World) Switches() *switches.Register { return w.switches }

// SnapIDs exposes the snapshot id pool.
func (w *World) SnapIDs() *snapid.Pool { return w.ids }

// Teams exposes the collision team table.
func (w *World) Teams() *gamecore.Teams { return w.teams }

func validClient(clientID int) bool {
	return clientID >= 0 && clientID < gamecore.MaxClients
}

// Player returns the player in slot clientID, nil when the slot is empty.
func (w *World) Player(clientID int) *Player {
	if w == nil || !validClient(clientID) {
		return nil
	}
	return w.players[clientID]
}

// Character returns the live character of clientID, nil when dead or absent.
func (w *World) Character(clientID int) *Character {
	p := w.Player(clientID)
	if p == nil || p.character == nil || !p.character.alive {
		return nil
	}
	return p.character
}

// Join seats a new player in slot clientID. The first character spawns on
// a following tick.
func (w *World) Join(clientID int) (*Player, error) {
	if !validClient(clientID) {
		return nil, ErrUnknownClient
	}
	if w.players[clientID] != nil {
		return nil, ErrSlotTaken
	}
	p := newPlayer(w, clientID)
	w.players[clientID] = p
	w.teams.SetTeam(clientID, 0)
	w.teams.SetSolo(clientID, false)
	lifecycle.PlayerJoined(context.Background(), w.publisher, w.tick, logging.ClientRef(clientID), lifecycle.PlayerJoinedPayload{Team: 0}, nil)
	return p, nil
}

// Leave removes the player of clientID and its character.
func (w *World) Leave(clientID int, reason string) error {
	p := w.Player(clientID)
	if p == nil {
		return ErrUnknownClient
	}
	if c := p.character; c != nil && c.alive {
		c.Die(clientID, WeaponGame)
	}
	w.ctx.ReleaseHooked(clientID)
	w.players[clientID] = nil
	w.teams.SetTeam(clientID, 0)
	w.teams.SetSolo(clientID, false)
	lifecycle.PlayerLeft(context.Background(), w.publisher, w.tick, logging.ClientRef(clientID), lifecycle.PlayerLeftPayload{Reason: reason}, nil)
	return nil
}

// SetInput hands one input packet of clientID to the world. Direct input is
// applied as it arrives and drives firing; predicted input is what the next
// character tick simulates.
func (w *World) SetInput(clientID int, in gamecore.Input, direct bool) error {
	p := w.Player(clientID)
	if p == nil {
		return ErrUnknownClient
	}
	if direct {
		p.onDirectInput(in)
	} else {
		p.onPredictedInput(in)
	}
	return nil
}

// SetTeam moves clientID into a collision team. The team also selects the
// switch group the character triggers.
func (w *World) SetTeam(clientID, team int) error {
	if w.Player(clientID) == nil {
		return ErrUnknownClient
	}
	if team < 0 || team > gamecore.TeamSuper {
		team = 0
	}
	w.teams.SetTeam(clientID, team)
	w.Player(clientID).team = team
	return nil
}

// SetPaused pauses or resumes the character of clientID.
func (w *World) SetPaused(clientID int, paused bool) error {
	p := w.Player(clientID)
	if p == nil {
		return ErrUnknownClient
	}
	p.setPaused(paused)
	return nil
}

// SetSuper toggles super mode for the character of clientID.
func (w *World) SetSuper(clientID int, on bool) error {
	c := w.Character(clientID)
	if c == nil {
		return ErrUnknownClient
	}
	c.SetSuper(on)
	return nil
}

// SetView sets where clientID looks from and how far it sees.
func (w *World) SetView(clientID int, showDistance geom.Vec2, showAll bool) error {
	p := w.Player(clientID)
	if p == nil {
		return ErrUnknownClient
	}
	p.view.ShowDistance = showDistance
	p.view.ShowAll = showAll
	return nil
}

// Tick advances the world by one tick. Projectiles and lasers move first,
// then every character runs its input pass, then its deferred pass in slot
// order, then the switch register ages and players respawn.
func (w *World) Tick() {
	w.tick++
	w.ids.TimeoutIDs()

	for _, proj := range w.projectiles {
		proj.Tick()
	}
	for _, laser := range w.lasers {
		laser.Tick()
	}

	for _, p := range w.players {
		if p == nil || p.character == nil || !p.character.alive {
			continue
		}
		if p.character.paused {
			p.character.TickPaused()
			continue
		}
		p.character.Tick()
	}
	for _, p := range w.players {
		if p == nil || p.character == nil || !p.character.alive || p.character.paused {
			continue
		}
		p.character.TickDeferred()
	}

	w.removeDestroyed()
	w.switches.Tick(w.tick)

	alive := 0
	for _, p := range w.players {
		if p == nil {
			continue
		}
		p.tick()
		if p.character != nil && p.character.alive {
			alive++
		}
	}

	if w.metrics != nil {
		w.metrics.Store(metricCharactersAlive, uint64(alive))
		w.metrics.Store(metricProjectiles, uint64(len(w.projectiles)))
		w.metrics.Store(metricLasers, uint64(len(w.lasers)))
	}
}

func (w *World) removeDestroyed() {
	projectiles := w.projectiles[:0]
	for _, proj := range w.projectiles {
		if proj.destroyed {
			w.freeSnapID(proj.snapID)
			continue
		}
		projectiles = append(projectiles, proj)
	}
	clear(w.projectiles[len(projectiles):])
	w.projectiles = projectiles

	lasers := w.lasers[:0]
	for _, laser := range w.lasers {
		if laser.destroyed {
			w.freeSnapID(laser.snapID)
			continue
		}
		lasers = append(lasers, laser)
	}
	clear(w.lasers[len(lasers):])
	w.lasers = lasers
}

// newSnapID returns snapid.Invalid when the pool is exhausted; the object
// then simulates but is never published.
func (w *World) newSnapID() int {
	id, err := w.ids.NewID()
	if err != nil {
		return snapid.Invalid
	}
	return id
}

func (w *World) freeSnapID(id int) {
	if id == snapid.Invalid {
		return
	}
	w.ids.FreeID(id)
}

// Snap writes everything clientID can see into sink: characters,
// projectiles, lasers and this tick's events. snap.DemoClient sees all.
func (w *World) Snap(clientID int, sink snap.Sink) {
	view := snap.View{ShowAll: true}
	if clientID != snap.DemoClient {
		p := w.Player(clientID)
		if p == nil {
			return
		}
		view = p.view
	}

	for _, p := range w.players {
		if p == nil || p.character == nil || !p.character.alive || p.character.paused {
			continue
		}
		p.character.Snap(clientID, view, sink)
	}
	for _, proj := range w.projectiles {
		proj.Snap(clientID, view, sink)
	}
	for _, laser := range w.lasers {
		laser.Snap(clientID, view, sink)
	}
	w.events.Snap(clientID, view, sink)
}

// PostSnap drops this tick's events once every client has been snapped.
func (w *World) PostSnap() {
	w.events.Clear()
}

// characterAt returns the live, unpaused character in slot id.
func (w *World) characterAt(id int) *Character {
	c := w.Character(id)
	if c == nil || c.paused {
		return nil
	}
	return c
}

// intersectCharacter returns the character closest to from whose body the
// segment from-to passes within radius of, and the point of contact.
// notThis is skipped; when onlyThis is set nobody else is considered.
func (w *World) intersectCharacter(from, to geom.Vec2, radius float64, notThis, onlyThis *Character, collideWith int) (*Character, geom.Vec2) {
	var closest *Character
	var closestAt geom.Vec2
	closestLen := geom.Distance(from, to) * 100
	for _, p := range w.players {
		if p == nil {
			continue
		}
		c := p.character
		if c == nil || !c.alive || c.paused || c == notThis {
			continue
		}
		if onlyThis != nil && c != onlyThis {
			continue
		}
		if collideWith != -1 && !w.teams.CanCollide(collideWith, c.id) {
			continue
		}
		at, ok := geom.ClosestPointOnLine(from, to, c.pos)
		if !ok {
			continue
		}
		if geom.Distance(c.pos, at) >= gamecore.PhysSize+radius {
			continue
		}
		if l := geom.Distance(from, at); l < closestLen {
			closest, closestLen, closestAt = c, l, at
		}
	}
	return closest, closestAt
}

// charactersNear returns every live character whose body is within radius
// of pos, in slot order.
func (w *World) charactersNear(pos geom.Vec2, radius float64) []*Character {
	var out []*Character
	for _, p := range w.players {
		if p == nil {
			continue
		}
		c := p.character
		if c == nil || !c.alive || c.paused {
			continue
		}
		if geom.Distance(c.pos, pos) < radius+gamecore.PhysSize {
			out = append(out, c)
		}
	}
	return out
}

// spawnPoint returns the first spawn point no character stands on.
func (w *World) spawnPoint() (geom.Vec2, bool) {
	for _, pos := range w.coll.SpawnPoints() {
		if len(w.charactersNear(pos, 0)) == 0 {
			return pos, true
		}
	}
	return geom.Vec2{}, false
}
