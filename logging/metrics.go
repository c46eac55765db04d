package logging

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Metrics holds named counters and gauges shared by the server components.
// Counters only grow; gauges hold the last stored value. The zero value is
// ready to use.
type Metrics struct {
	mu     sync.RWMutex
	values map[string]*atomic.Uint64
}

func NewMetrics() *Metrics {
	return &Metrics{values: make(map[string]*atomic.Uint64)}
}

func (m *Metrics) slot(key string) *atomic.Uint64 {
	m.mu.RLock()
	v, ok := m.values[key]
	m.mu.RUnlock()
	if ok {
		return v
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]*atomic.Uint64)
	}
	if v, ok = m.values[key]; ok {
		return v
	}
	v = new(atomic.Uint64)
	m.values[key] = v
	return v
}

// TelemetryAdd increments the counter stored under key.
func (m *Metrics) TelemetryAdd(key string, delta uint64) {
	if m == nil || key == "" {
		return
	}
	m.slot(key).Add(delta)
}

// TelemetryStore overwrites the gauge stored under key.
func (m *Metrics) TelemetryStore(key string, value uint64) {
	if m == nil || key == "" {
		return
	}
	m.slot(key).Store(value)
}

// Value reports the current value of key, zero when never written.
func (m *Metrics) Value(key string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	v, ok := m.values[key]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	return v.Load()
}

// Snapshot copies every metric into a plain map.
func (m *Metrics) Snapshot() map[string]uint64 {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]uint64, len(m.values))
	for k, v := range m.values {
		out[k] = v.Load()
	}
	return out
}

// Keys lists metric names in sorted order.
func (m *Metrics) Keys() []string {
	snap := m.Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
