package logging

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

const (
	SinkConsole = "console"
	SinkJSON    = "json"
	SinkZap     = "zap"
	SinkMemory  = "memory"
)

type Config struct {
	EnabledSinks     []string
	BufferSize       int
	MinimumSeverity  Severity
	Fields           map[string]any
	JSON             JSONConfig
	Console          ConsoleConfig
	Zap              ZapConfig
	DropWarnInterval time.Duration
	// Routes limits a sink to the listed event categories. Sinks without
	// an entry receive every category.
	Routes map[string][]string
}

type JSONConfig struct {
	FilePath      string
	FlushInterval time.Duration
}

type ConsoleConfig struct {
	UseColor bool
}

// ZapConfig selects the zap encoder preset used by the zap sink.
type ZapConfig struct {
	Development bool
}

func DefaultConfig() Config {
	return Config{
		EnabledSinks:     []string{SinkZap},
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: 5 * time.Second,
		JSON: JSONConfig{
			FlushInterval: 2 * time.Second,
		},
	}
}

func (c Config) HasSink(name string) bool {
	for _, s := range c.EnabledSinks {
		if s == name {
			return true
		}
	}
	return false
}

// ParseSinks splits a comma separated sink list, ignoring blanks.
func ParseSinks(raw string) []string {
	var sinks []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name != "" {
			sinks = append(sinks, name)
		}
	}
	return sinks
}

// ParseRoutes reads sink routes written as "json=simulation,capacity;console=lifecycle".
// A route with no categories or the category "*" is dropped so the sink
// keeps receiving everything.
func ParseRoutes(raw string) (map[string][]string, error) {
	routes := make(map[string][]string)
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		sink, list, ok := strings.Cut(entry, "=")
		sink = strings.TrimSpace(sink)
		if !ok || sink == "" {
			return nil, fmt.Errorf("route %q: expected sink=category[,category]", entry)
		}
		categories := ParseSinks(list)
		if len(categories) == 0 || slices.Contains(categories, "*") {
			delete(routes, sink)
			continue
		}
		routes[sink] = categories
	}
	if len(routes) == 0 {
		return nil, nil
	}
	return routes, nil
}

func (c Config) CloneFields() map[string]any {
	if len(c.Fields) == 0 {
		return nil
	}
	cloned := make(map[string]any, len(c.Fields))
	for k, v := range c.Fields {
		cloned[k] = v
	}
	return cloned
}
