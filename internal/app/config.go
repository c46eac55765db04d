package app

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"toutuo/server/internal/collision"
	"toutuo/server/internal/observability"
	"toutuo/server/internal/world"
	"toutuo/server/logging"
)

// Environment variables read by LoadConfig.
const (
	EnvConfig    = "TOUTUO_CONFIG"
	EnvMap       = "TOUTUO_MAP"
	EnvSeed      = "TOUTUO_SEED"
	EnvTickRate  = "TOUTUO_TICK_RATE"
	EnvAddr      = "TOUTUO_ADDR"
	EnvLogSinks  = "TOUTUO_LOG_SINKS"
	EnvLogFile   = "TOUTUO_LOG_FILE"
	EnvLogRoutes = "TOUTUO_LOG_ROUTES"
)

const defaultAddr = ":8080"

// demoMap is served when no map file is configured.
var demoMap = []string{
	"##################################",
	"#................................#",
	"#..S.........................S...#",
	"#######.....~~~~......############",
	"#..........................W.....#",
	"#.....######**********######W....#",
	"#..........................W.....#",
	"#....R.....................W..X..#",
	"#NNNNNNNNNN###########NNNNNNNNNNN#",
	"##################################",
}

// Config is the resolved server configuration.
type Config struct {
	Addr          string
	World         world.Config
	MapPath       string
	Logging       logging.Config
	Observability observability.Config
}

// DefaultConfig serves the demo map on :8080 with the zap sink.
func DefaultConfig() Config {
	return Config{
		Addr:    defaultAddr,
		World:   world.DefaultConfig(),
		Logging: logging.DefaultConfig(),
	}
}

// LoadConfig layers the JSON world config file and the environment read
// through lookup on top of DefaultConfig.
func LoadConfig(lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	if path := get(EnvConfig); path != "" {
		wc, err := readWorldConfig(path)
		if err != nil {
			return cfg, err
		}
		cfg.World = wc
	}
	if seed := get(EnvSeed); seed != "" {
		cfg.World.Seed = seed
	}
	if raw := get(EnvTickRate); raw != "" {
		rate, err := strconv.Atoi(raw)
		if err != nil || rate <= 0 {
			return cfg, fmt.Errorf("invalid %s=%q", EnvTickRate, raw)
		}
		cfg.World.TickSpeed = rate
	}
	if addr := get(EnvAddr); addr != "" {
		cfg.Addr = addr
	}
	if raw := get(EnvLogSinks); raw != "" {
		cfg.Logging.EnabledSinks = logging.ParseSinks(raw)
	}
	cfg.Logging.JSON.FilePath = get(EnvLogFile)
	if raw := get(EnvLogRoutes); raw != "" {
		routes, err := logging.ParseRoutes(raw)
		if err != nil {
			return cfg, fmt.Errorf("invalid %s: %w", EnvLogRoutes, err)
		}
		cfg.Logging.Routes = routes
	}
	cfg.MapPath = get(EnvMap)

	obs, err := observability.FromEnv(cfg.Observability, lookup)
	if err != nil {
		return cfg, err
	}
	cfg.Observability = obs
	cfg.World = cfg.World.Normalized()
	return cfg, nil
}

func readWorldConfig(path string) (world.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return world.Config{}, fmt.Errorf("read world config: %w", err)
	}
	var wc world.Config
	if err := json.Unmarshal(data, &wc); err != nil {
		return world.Config{}, fmt.Errorf("parse world config %s: %w", path, err)
	}
	return wc, nil
}

// LoadMap parses the ASCII map at path, or the demo map when path is empty.
func LoadMap(path string) (*collision.Map, error) {
	if path == "" {
		return collision.ParseASCII(demoMap)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open map: %w", err)
	}
	defer f.Close()

	var rows []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line != "" {
			rows = append(rows, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read map: %w", err)
	}
	m, err := collision.ParseASCII(rows)
	if err != nil {
		return nil, fmt.Errorf("parse map %s: %w", path, err)
	}
	return m, nil
}
