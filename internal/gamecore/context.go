// Package gamecore is the physics core of a character: movement, jumping,
// the hook and interaction with the other cores of the same world.
package gamecore

import "math/rand"

// MaxClients is the number of client slots of a world.
const MaxClients = 64

// TeamSuper collides with everyone.
const TeamSuper = MaxClients

// Teams decides which cores interact. Cores in the same team collide and
// hook each other; solo cores interact with nobody but super ones.
type Teams struct {
	team [MaxClients]int
	solo [MaxClients]bool
}

func valid(id int) bool { return id >= 0 && id < MaxClients }

func (t *Teams) Team(id int) int {
	if t == nil || !valid(id) {
		return 0
	}
	return t.team[id]
}

func (t *Teams) SetTeam(id, team int) {
	if t == nil || !valid(id) {
		return
	}
	t.team[id] = team
}

func (t *Teams) SetSolo(id int, solo bool) {
	if t == nil || !valid(id) {
		return
	}
	t.solo[id] = solo
}

func (t *Teams) Solo(id int) bool {
	if t == nil || !valid(id) {
		return false
	}
	return t.solo[id]
}

// CanCollide reports whether the cores a and b interact.
func (t *Teams) CanCollide(a, b int) bool {
	if t == nil || !valid(a) || !valid(b) {
		return true
	}
	if t.team[a] == TeamSuper || t.team[b] == TeamSuper || a == b {
		return true
	}
	if t.solo[a] || t.solo[b] {
		return false
	}
	return t.team[a] == t.team[b]
}

// SharedContext is what every core of one world shares: the slot table of
// live cores, the team table and the world's random source. Cores hold
// only slot indices into it.
type SharedContext struct {
	Cores     [MaxClients]*Core
	Teams     *Teams
	TickSpeed int

	rng *rand.Rand
}

// NewSharedContext returns a context drawing randomness from rng. A nil rng
// makes RandomOr0 always return 0.
func NewSharedContext(tickSpeed int, teams *Teams, rng *rand.Rand) *SharedContext {
	if tickSpeed <= 0 {
		tickSpeed = 50
	}
	if teams == nil {
		teams = &Teams{}
	}
	return &SharedContext{Teams: teams, TickSpeed: tickSpeed, rng: rng}
}

// Isolated returns an empty context with the same tick speed and teams, used
// to advance a core without touching anyone else.
func (s *SharedContext) Isolated() *SharedContext {
	if s == nil {
		return NewSharedContext(0, nil, nil)
	}
	return &SharedContext{Teams: s.Teams, TickSpeed: s.TickSpeed}
}

// RandomOr0 returns a value in [0, n), or 0 when n is below 2.
func (s *SharedContext) RandomOr0(n int) int {
	if s == nil || s.rng == nil || n <= 1 {
		return 0
	}
	return s.rng.Intn(n)
}

func (s *SharedContext) core(id int) *Core {
	if s == nil || !valid(id) {
		return nil
	}
	return s.Cores[id]
}

// ReleaseHooked drops every hook holding id.
func (s *SharedContext) ReleaseHooked(id int) {
	if s == nil {
		return
	}
	for _, c := range s.Cores {
		if c != nil && c.hookedPlayer == id {
			c.ResetHook()
		}
	}
}
