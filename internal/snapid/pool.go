// Package snapid allocates the ids network-visible objects are published
// under. Released ids rest in a timed queue before they can be handed out
// again, so a client still holding an older snapshot never sees a recycled id
// attached to a different object.
package snapid

import (
	"context"
	"errors"

	"toutuo/server/internal/telemetry"
	"toutuo/server/logging"
	"toutuo/server/logging/capacity"
)

// MaxIDs is the number of slots in a pool.
const MaxIDs = 32 * 1024

// Invalid is returned by NewID when no id could be allocated.
const Invalid = -1

const (
	metricInUse     = "snapid_in_use"
	metricTimed     = "snapid_timed"
	metricExhausted = "snapid_exhausted_total"
)

// ErrExhausted reports that every slot is either live or cooling down.
var ErrExhausted = errors.New("snapid: pool exhausted")

type state uint8

const (
	stateFree state = iota
	stateAllocated
	stateTimed
)

func (s state) String() string {
	switch s {
	case stateFree:
		return "free"
	case stateAllocated:
		return "allocated"
	case stateTimed:
		return "timed"
	}
	return "unknown"
}

type slot struct {
	next    int
	state   state
	timeout uint64
}

// Deps carries the optional reporting dependencies of a pool.
type Deps struct {
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
}

// Pool is a fixed set of slots threaded onto a LIFO free list and a FIFO
// timed list through their next index. It is not safe for concurrent use.
type Pool struct {
	slots [MaxIDs]slot
	grace uint64
	now   uint64

	firstFree  int
	firstTimed int
	lastTimed  int

	usage int
	timed int
	peak  int

	pub     logging.Publisher
	metrics telemetry.Metrics
}

// New returns a reset pool whose released ids become reusable after
// graceTicks calls to TimeoutIDs.
func New(graceTicks uint64, deps Deps) *Pool {
	p := &Pool{grace: graceTicks, pub: deps.Publisher, metrics: deps.Metrics}
	p.Reset()
	return p
}

// Reset frees every slot and clears the counters.
func (p *Pool) Reset() {
	if p == nil {
		return
	}
	for i := range p.slots {
		p.slots[i] = slot{next: i + 1}
	}
	p.slots[MaxIDs-1].next = -1
	p.firstFree = 0
	p.firstTimed = -1
	p.lastTimed = -1
	p.usage = 0
	p.timed = 0
	p.peak = 0
	p.now = 0
	p.store()
}

// NewID pops an id off the free list.
func (p *Pool) NewID() (int, error) {
	if p == nil {
		return Invalid, ErrExhausted
	}
	id := p.firstFree
	if id == -1 {
		capacity.SnapIDExhausted(context.Background(), p.pub, p.now, capacity.SnapIDExhaustedPayload{
			Capacity: MaxIDs,
			InUse:    p.usage,
			Timed:    p.timed,
		}, nil)
		if p.metrics != nil {
			p.metrics.Add(metricExhausted, 1)
		}
		return Invalid, ErrExhausted
	}
	p.firstFree = p.slots[id].next
	p.slots[id].state = stateAllocated
	p.slots[id].next = -1
	p.usage++
	if p.usage > p.peak {
		p.peak = p.usage
	}
	p.store()
	return id, nil
}

// FreeID moves an allocated id to the tail of the timed list. Releasing an
// id that is not allocated is rejected and reported.
func (p *Pool) FreeID(id int) {
	if p == nil {
		return
	}
	if id < 0 || id >= MaxIDs || p.slots[id].state != stateAllocated {
		s := "out_of_range"
		if id >= 0 && id < MaxIDs {
			s = p.slots[id].state.String()
		}
		capacity.SnapIDInvalidFree(context.Background(), p.pub, p.now, capacity.SnapIDInvalidFreePayload{ID: id, State: s}, nil)
		return
	}
	p.usage--
	p.timed++
	p.slots[id].state = stateTimed
	p.slots[id].timeout = p.now + p.grace
	p.slots[id].next = -1
	if p.lastTimed != -1 {
		p.slots[p.lastTimed].next = id
	} else {
		p.firstTimed = id
	}
	p.lastTimed = id
	p.store()
}

// TimeoutIDs advances the pool clock by one tick and frees every timed id
// whose grace period has passed. Call it once per tick before any NewID.
func (p *Pool) TimeoutIDs() {
	if p == nil {
		return
	}
	p.now++
	for p.firstTimed != -1 && p.slots[p.firstTimed].timeout <= p.now {
		p.removeFirstTimeout()
	}
	p.store()
}

func (p *Pool) removeFirstTimeout() {
	id := p.firstTimed
	p.firstTimed = p.slots[id].next
	if p.firstTimed == -1 {
		p.lastTimed = -1
	}
	p.slots[id].state = stateFree
	p.slots[id].next = p.firstFree
	p.firstFree = id
	p.timed--
}

// InUse reports the number of allocated ids.
func (p *Pool) InUse() int {
	if p == nil {
		return 0
	}
	return p.usage
}

// Timed reports the number of ids cooling down.
func (p *Pool) Timed() int {
	if p == nil {
		return 0
	}
	return p.timed
}

// Peak reports the highest InUse value since the last Reset.
func (p *Pool) Peak() int {
	if p == nil {
		return 0
	}
	return p.peak
}

func (p *Pool) store() {
	if p.metrics == nil {
		return
	}
	p.metrics.Store(metricInUse, uint64(p.usage))
	p.metrics.Store(metricTimed, uint64(p.timed))
}
