package world

import (
	"toutuo/server/internal/events"
	"toutuo/server/internal/gamecore"
	"toutuo/server/internal/snap"
)

// Player is a client's seat in the world. It outlives its characters and
// decides when the next one spawns.
type Player struct {
	world *World
	id    int
	team  int

	character *Character

	dieTick         int
	previousDieTick int
	paused          bool

	view      snap.View
	lastInput gamecore.Input
}

func newPlayer(w *World, id int) *Player {
	now := w.now()
	wait := w.policy().RespawnWait * w.tickSpeed()
	return &Player{
		world:           w,
		id:              id,
		dieTick:         now,
		previousDieTick: now - wait,
	}
}

func (p *Player) ID() int                   { return p.id }
func (p *Player) Team() int                 { return p.team }
func (p *Player) Paused() bool              { return p.paused }
func (p *Player) View() snap.View           { return p.view }
func (p *Player) LastInput() gamecore.Input { return p.lastInput }

// Character returns the player's current character, alive or not.
func (p *Player) Character() *Character { return p.character }

// DieTick is the tick the last character died on.
func (p *Player) DieTick() int { return p.dieTick }

func (p *Player) alive() bool {
	return p.character != nil && p.character.alive
}

// respawnTick is the first tick a new character may spawn on: the respawn
// wait after the death before the last one, and never sooner than two
// ticks after the last death.
func (p *Player) respawnTick() int {
	earliest := p.previousDieTick + p.world.policy().RespawnWait*p.world.tickSpeed()
	return max(p.dieTick, earliest) + 2
}

func (p *Player) tick() {
	w := p.world
	if p.alive() {
		p.view.Pos = p.character.pos
		return
	}
	if p.respawnTick() <= w.now() {
		p.tryRespawn()
	}
}

func (p *Player) tryRespawn() {
	w := p.world
	pos, ok := w.spawnPoint()
	if !ok {
		return
	}
	p.character = newCharacter(w, p)
	p.character.Spawn(pos)
	p.view.Pos = pos
	w.events.CreatePlayerSpawn(pos, events.MaskAll)
}

// onDirectInput forwards raw input to the character. Input of a dead
// player only updates lastInput; respawns follow respawnTick alone.
func (p *Player) onDirectInput(in gamecore.Input) {
	p.lastInput = in
	if p.alive() && !p.paused {
		p.character.OnDirectInput(in)
	}
}

func (p *Player) onPredictedInput(in gamecore.Input) {
	p.lastInput = in
	if p.alive() && !p.paused {
		p.character.OnPredictedInput(in)
	}
}

// setPaused takes the character out of the world while paused. The death
// and spawn effects mark where it left and came back.
func (p *Player) setPaused(paused bool) {
	if p.paused == paused {
		return
	}
	p.paused = paused
	if !p.alive() {
		return
	}
	w := p.world
	c := p.character
	c.Pause(paused)
	if paused {
		w.events.CreateDeath(c.pos, p.id, events.MaskAll)
		w.events.CreateSound(c.pos, events.SoundPlayerDie, events.MaskAll)
		return
	}
	w.events.CreatePlayerSpawn(c.pos, events.MaskAll)
}
