// Package events is the per-tick buffer of one-shot world events (sounds,
// damage indicators, deaths) offered to every client's snapshot and then
// cleared.
package events

import (
	"context"
	"encoding/binary"

	"toutuo/server/internal/geom"
	"toutuo/server/internal/snap"
	"toutuo/server/internal/telemetry"
	"toutuo/server/logging"
	"toutuo/server/logging/capacity"
)

const (
	MaxEvents   = 128
	MaxDataSize = 128 * 64
)

const metricDropped = "events_dropped_total"

// Mask selects the clients an event is visible to, one bit per client id.
type Mask uint64

const MaskAll Mask = ^Mask(0)

func MaskOne(clientID int) Mask {
	if clientID < 0 || clientID >= 64 {
		return 0
	}
	return 1 << uint(clientID)
}

func MaskAllExceptOne(clientID int) Mask {
	return MaskAll &^ MaskOne(clientID)
}

func (m Mask) Has(clientID int) bool {
	return m&MaskOne(clientID) != 0
}

// Deps carries the optional reporting dependencies of a log. Tick supplies
// the current tick for drop reports.
type Deps struct {
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	Tick      func() uint64
}

// Log is a fixed arena of event payloads with parallel metadata arrays.
// It is not safe for concurrent use.
type Log struct {
	kinds   [MaxEvents]snap.ItemKind
	offsets [MaxEvents]int
	sizes   [MaxEvents]int
	masks   [MaxEvents]Mask
	data    [MaxDataSize]byte

	count  int
	offset int

	pub     logging.Publisher
	metrics telemetry.Metrics
	tick    func() uint64
}

func New(deps Deps) *Log {
	return &Log{pub: deps.Publisher, metrics: deps.Metrics, tick: deps.Tick}
}

// Create reserves size zeroed bytes for an event. It returns nil, leaving
// earlier events untouched, when the event would exceed either budget.
func (l *Log) Create(kind snap.ItemKind, size int, mask Mask) []byte {
	if l == nil {
		return nil
	}
	if l.count >= MaxEvents {
		l.drop(kind, size, "count")
		return nil
	}
	if size < 0 || l.offset+size > MaxDataSize {
		l.drop(kind, size, "bytes")
		return nil
	}
	buf := l.data[l.offset : l.offset+size : l.offset+size]
	clear(buf)
	l.kinds[l.count] = kind
	l.offsets[l.count] = l.offset
	l.sizes[l.count] = size
	l.masks[l.count] = mask
	l.offset += size
	l.count++
	return buf
}

func (l *Log) drop(kind snap.ItemKind, size int, reason string) {
	if l.metrics != nil {
		l.metrics.Add(metricDropped, 1)
	}
	var tick uint64
	if l.tick != nil {
		tick = l.tick()
	}
	capacity.EventDropped(context.Background(), l.pub, tick, capacity.EventDroppedPayload{
		EventType: int(kind),
		Size:      size,
		Count:     l.count,
		Bytes:     l.offset,
		Reason:    reason,
	}, nil)
}

// Snap offers every event to clientID's snapshot: events outside the
// client's mask or view are skipped, the rest are copied into the sink.
func (l *Log) Snap(clientID int, view snap.View, sink snap.Sink) {
	if l == nil || sink == nil {
		return
	}
	for i := 0; i < l.count; i++ {
		if clientID != snap.DemoClient && !l.masks[i].Has(clientID) {
			continue
		}
		payload := l.data[l.offsets[i] : l.offsets[i]+l.sizes[i]]
		if pos, ok := position(payload); ok && view.Clipped(clientID, pos) {
			continue
		}
		buf := sink.NewItem(l.kinds[i], i, l.sizes[i])
		if buf == nil {
			continue
		}
		copy(buf, payload)
	}
}

func position(payload []byte) (geom.Vec2, bool) {
	if len(payload) < 8 {
		return geom.Vec2{}, false
	}
	x := int32(binary.LittleEndian.Uint32(payload[0:4]))
	y := int32(binary.LittleEndian.Uint32(payload[4:8]))
	return geom.V(float64(x), float64(y)), true
}

// Clear empties the log. Run it once per tick after every client snapped.
func (l *Log) Clear() {
	if l == nil {
		return
	}
	l.count = 0
	l.offset = 0
}

// Len reports the number of events created since the last Clear.
func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	return l.count
}

// Bytes reports the arena bytes used since the last Clear.
func (l *Log) Bytes() int {
	if l == nil {
		return 0
	}
	return l.offset
}
