package sim

import (
	"errors"
	"fmt"

	"toutuo/server/internal/geom"
	"toutuo/server/internal/world"
)

// Engine defines the surface the transport and app use to drive the
// simulation.
type Engine interface {
	Deps() Deps
	Enqueue(Command) (bool, string)
	Advance(LoopTickContext) LoopStepResult
	Run(stop <-chan struct{})
	Pending() int
}

// EngineCore applies drained commands and steps the world. It is only
// called from the loop goroutine.
type EngineCore interface {
	Deps() Deps
	Apply([]Command) error
	Step()
	Tick() uint64
}

// worldCore adapts *world.World to EngineCore.
type worldCore struct {
	world *world.World
	deps  Deps
}

func newWorldCore(w *world.World, deps Deps) *worldCore {
	return &worldCore{world: w, deps: deps}
}

func (c *worldCore) Deps() Deps   { return c.deps }
func (c *worldCore) Step()        { c.world.Tick() }
func (c *worldCore) Tick() uint64 { return c.world.Tick64() }

// Apply hands every command to the world in arrival order. A failing
// command does not stop the rest; the failures are joined.
func (c *worldCore) Apply(cmds []Command) error {
	var errs []error
	for _, cmd := range cmds {
		if err := c.apply(cmd); err != nil {
			errs = append(errs, fmt.Errorf("%s client=%d: %w", cmd.Type, cmd.ClientID, err))
		}
	}
	return errors.Join(errs...)
}

func (c *worldCore) apply(cmd Command) error {
	w := c.world
	switch cmd.Type {
	case CommandJoin:
		_, err := w.Join(cmd.ClientID)
		return err
	case CommandLeave:
		reason := ""
		if cmd.Leave != nil {
			reason = cmd.Leave.Reason
		}
		return w.Leave(cmd.ClientID, reason)
	case CommandInput:
		if cmd.Input == nil {
			return ErrMissingPayload
		}
		return w.SetInput(cmd.ClientID, cmd.Input.Input, cmd.Input.Direct)
	case CommandTeam:
		if cmd.Team == nil {
			return ErrMissingPayload
		}
		return w.SetTeam(cmd.ClientID, cmd.Team.Team)
	case CommandPause:
		if cmd.Toggle == nil {
			return ErrMissingPayload
		}
		return w.SetPaused(cmd.ClientID, cmd.Toggle.On)
	case CommandSuper:
		if cmd.Toggle == nil {
			return ErrMissingPayload
		}
		return w.SetSuper(cmd.ClientID, cmd.Toggle.On)
	case CommandView:
		if cmd.View == nil {
			return ErrMissingPayload
		}
		return w.SetView(cmd.ClientID, geom.V(cmd.View.ShowDistanceX, cmd.View.ShowDistanceY), cmd.View.ShowAll)
	}
	return ErrUnknownCommand
}
