package sim

import (
	"errors"

	"toutuo/server/internal/world"
)

var (
	// ErrMissingWorld indicates NewEngine was invoked without a world instance.
	ErrMissingWorld = errors.New("sim: world is nil")
	// ErrMissingPayload indicates a command arrived without the payload its type needs.
	ErrMissingPayload = errors.New("sim: command payload missing")
	// ErrUnknownCommand indicates a command type the engine does not handle.
	ErrUnknownCommand = errors.New("sim: unknown command type")
)

// EngineOption configures NewEngine behaviour. Options are applied in
// order; later options override earlier ones.
type EngineOption interface {
	apply(*engineConfig)
}

type engineOptionFunc func(*engineConfig)

func (f engineOptionFunc) apply(cfg *engineConfig) {
	if f != nil {
		f(cfg)
	}
}

type engineConfig struct {
	deps       Deps
	loopConfig LoopConfig
	loopHooks  LoopHooks
}

// WithDeps injects shared infrastructure dependencies used by the loop.
func WithDeps(deps Deps) EngineOption {
	return engineOptionFunc(func(cfg *engineConfig) {
		cfg.deps = deps
	})
}

// WithLoopConfig overrides the default command queue and tick loop sizing.
func WithLoopConfig(config LoopConfig) EngineOption {
	return engineOptionFunc(func(cfg *engineConfig) {
		cfg.loopConfig = config
	})
}

// WithLoopHooks supplies custom loop callbacks.
func WithLoopHooks(hooks LoopHooks) EngineOption {
	return engineOptionFunc(func(cfg *engineConfig) {
		cfg.loopHooks = hooks
	})
}

// NewEngine constructs a loop that drives w. When no tick rate is
// configured the loop runs at the world's tick speed.
func NewEngine(w *world.World, opts ...EngineOption) (*Loop, error) {
	if w == nil {
		return nil, ErrMissingWorld
	}

	cfg := engineConfig{loopConfig: DefaultLoopConfig()}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(&cfg)
		}
	}
	if cfg.loopConfig.TickRate <= 0 {
		cfg.loopConfig.TickRate = w.Config().TickSpeed
	}

	return NewLoop(newWorldCore(w, cfg.deps), cfg.loopConfig, cfg.loopHooks), nil
}
