package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"toutuo/server/internal/telemetry"
	"toutuo/server/logging"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(lookupFrom(nil))
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Addr != defaultAddr {
		t.Fatalf("expected addr %q, got %q", defaultAddr, cfg.Addr)
	}
	if cfg.World.TickSpeed != 50 || cfg.World.Seed == "" {
		t.Fatalf("expected normalized world config, got %+v", cfg.World)
	}
	if !cfg.Logging.HasSink(logging.SinkZap) {
		t.Fatalf("expected the zap sink by default, got %v", cfg.Logging.EnabledSinks)
	}
}

func TestLoadConfigAppliesFileThenEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "world.json")
	body := `{"seed":"from-file","tickSpeed":25,"policy":{"freezeDelay":5}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(lookupFrom(map[string]string{
		EnvConfig:            path,
		EnvSeed:              "from-env",
		EnvAddr:              "127.0.0.1:9000",
		EnvLogSinks:          "console, json",
		EnvLogFile:           "/var/log/toutuo.jsonl",
		EnvLogRoutes:         "json=simulation,capacity; console=*",
		"ENABLE_PPROF_TRACE": "1",
	}))
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.World.Seed != "from-env" {
		t.Fatalf("expected env seed to win, got %q", cfg.World.Seed)
	}
	if cfg.World.TickSpeed != 25 || cfg.World.Policy.FreezeDelay != 5 {
		t.Fatalf("expected file values, got %+v", cfg.World)
	}
	if cfg.World.Policy.RespawnWait == 0 {
		t.Fatalf("expected missing file values to be normalized")
	}
	if cfg.Addr != "127.0.0.1:9000" {
		t.Fatalf("expected env addr, got %q", cfg.Addr)
	}
	if len(cfg.Logging.EnabledSinks) != 2 || !cfg.Logging.HasSink(logging.SinkJSON) {
		t.Fatalf("expected console and json sinks, got %v", cfg.Logging.EnabledSinks)
	}
	if routes := cfg.Logging.Routes; len(routes) != 1 || len(routes[logging.SinkJSON]) != 2 {
		t.Fatalf("expected only the json sink to be routed, got %v", routes)
	}
	if cfg.Logging.JSON.FilePath != "/var/log/toutuo.jsonl" {
		t.Fatalf("expected json log file from env, got %q", cfg.Logging.JSON.FilePath)
	}
	if !cfg.Observability.EnablePprofTrace {
		t.Fatalf("expected pprof to be enabled")
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	if _, err := LoadConfig(lookupFrom(map[string]string{EnvTickRate: "fast"})); err == nil {
		t.Fatalf("expected a bad tick rate to fail")
	}
	if _, err := LoadConfig(lookupFrom(map[string]string{EnvConfig: filepath.Join(t.TempDir(), "missing.json")})); err == nil {
		t.Fatalf("expected a missing config file to fail")
	}
	if _, err := LoadConfig(lookupFrom(map[string]string{EnvLogRoutes: "simulation"})); err == nil {
		t.Fatalf("expected a route without a sink name to fail")
	}
}

func TestLoadMap(t *testing.T) {
	demo, err := LoadMap("")
	if err != nil {
		t.Fatalf("demo map failed to parse: %v", err)
	}
	if len(demo.SpawnPoints()) == 0 {
		t.Fatalf("expected spawn points on the demo map")
	}

	path := filepath.Join(t.TempDir(), "room.map")
	if err := os.WriteFile(path, []byte("####\r\n#S.#\r\n####\r\n"), 0o644); err != nil {
		t.Fatalf("write map: %v", err)
	}
	m, err := LoadMap(path)
	if err != nil {
		t.Fatalf("LoadMap returned error: %v", err)
	}
	if m.Width() != 4 || m.Height() != 3 {
		t.Fatalf("expected a 4x3 map, got %dx%d", m.Width(), m.Height())
	}

	if err := os.WriteFile(path, []byte("##\n#?\n"), 0o644); err != nil {
		t.Fatalf("write map: %v", err)
	}
	if _, err := LoadMap(path); err == nil {
		t.Fatalf("expected an unknown tile to fail")
	}
}

func TestRunStopsWhenContextIsCancelled(t *testing.T) {
	cfg, err := LoadConfig(lookupFrom(map[string]string{EnvAddr: "127.0.0.1:0", EnvLogSinks: "memory"}))
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, cfg, Deps{Logger: telemetry.LoggerFunc(func(string, ...any) {})})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected a clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("expected Run to return after cancel")
	}
}

func TestBuildSinksOpensJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{logging.SinkJSON, logging.SinkMemory}
	cfg.JSON.FilePath = path

	sinks, closeSinks, err := buildSinks(cfg, Deps{})
	if err != nil {
		t.Fatalf("buildSinks returned error: %v", err)
	}
	defer closeSinks()

	if len(sinks) != 2 {
		t.Fatalf("expected 2 sinks, got %d", len(sinks))
	}
	if sinks[0].Name != logging.SinkJSON || sinks[1].Name != logging.SinkMemory {
		t.Fatalf("unexpected sink order: %s, %s", sinks[0].Name, sinks[1].Name)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected json log file to exist: %v", err)
	}
}

func TestBuildSinksReportsUnopenableFile(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{logging.SinkJSON}
	cfg.JSON.FilePath = filepath.Join(t.TempDir(), "missing", "events.jsonl")

	if _, _, err := buildSinks(cfg, Deps{}); err == nil {
		t.Fatalf("expected error for a file in a missing directory")
	}
}
