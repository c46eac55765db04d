package observability

import (
	"fmt"
	"strconv"
)

// EnvPprofTrace toggles the /debug/pprof endpoints.
const EnvPprofTrace = "ENABLE_PPROF_TRACE"

// Config captures opt-in observability toggles that wire into the server.
type Config struct {
	EnablePprofTrace bool
}

// FromEnv overrides cfg with the environment read through lookup.
func FromEnv(cfg Config, lookup func(string) (string, bool)) (Config, error) {
	raw, ok := lookup(EnvPprofTrace)
	if !ok || raw == "" {
		return cfg, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return cfg, fmt.Errorf("invalid %s=%q: %w", EnvPprofTrace, raw, err)
	}
	cfg.EnablePprofTrace = value
	return cfg, nil
}
