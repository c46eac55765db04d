// Package switches holds the shared switch register: numbered world
// conditions toggled per event group by switch tiles and consulted by
// switch-gated tiles.
package switches

// Groups is the number of independent event groups per switch.
const Groups = 64

// Type is the trigger that last wrote an entry.
type Type uint8

const (
	Open Type = iota
	Close
	TimedOpen
	TimedClose
)

func (t Type) String() string {
	switch t {
	case Open:
		return "open"
	case Close:
		return "close"
	case TimedOpen:
		return "timed_open"
	case TimedClose:
		return "timed_close"
	}
	return "unknown"
}

// Entry is the state of one switch for one event group.
type Entry struct {
	Status         bool
	Type           Type
	EndTick        uint64
	LastUpdateTick uint64
}

// expired reports whether a timed entry reached its end tick.
func (e Entry) expired(tick uint64) bool {
	return (e.Type == TimedOpen || e.Type == TimedClose) && e.EndTick <= tick
}

// settled returns the steady entry a timed entry turns into on expiry.
func (e Entry) settled() Entry {
	switch e.Type {
	case TimedOpen:
		e.Status = false
		e.Type = Close
	case TimedClose:
		e.Status = true
		e.Type = Open
	}
	e.EndTick = 0
	return e
}

// Register is indexed [switch][group]. Switch 0 means "no switch" and is
// never written.
type Register struct {
	entries [][Groups]Entry
	initial bool
}

// New sizes a register for switch numbers 0..highest.
func New(highest int, initial bool) *Register {
	r := &Register{}
	r.Reset(highest, initial)
	return r
}

// Reset sizes the register for switch numbers 0..highest and sets every
// entry to the initial status.
func (r *Register) Reset(highest int, initial bool) {
	if r == nil {
		return
	}
	if highest < 0 {
		highest = 0
	}
	r.initial = initial
	r.entries = make([][Groups]Entry, highest+1)
	for i := range r.entries {
		for g := range r.entries[i] {
			r.entries[i][g] = Entry{Status: initial, Type: Open}
			if !initial {
				r.entries[i][g].Type = Close
			}
		}
	}
}

// Len is the number of switch slots including slot 0.
func (r *Register) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

func (r *Register) entry(number, group int) *Entry {
	if r == nil || number <= 0 || number >= len(r.entries) || group < 0 || group >= Groups {
		return nil
	}
	return &r.entries[number][group]
}

// Trigger applies a switch tile. delay is in seconds and only used by the
// timed types. Out of range switches and groups are ignored.
func (r *Register) Trigger(number, group int, typ Type, delay int, tick uint64, tickSpeed int) {
	e := r.entry(number, group)
	if e == nil {
		return
	}
	switch typ {
	case Open:
		*e = Entry{Status: true, Type: Open}
	case Close:
		*e = Entry{Status: false, Type: Close}
	case TimedOpen:
		*e = Entry{Status: true, Type: TimedOpen, EndTick: tick + 1 + uint64(delay*tickSpeed)}
	case TimedClose:
		*e = Entry{Status: false, Type: TimedClose, EndTick: tick + 1 + uint64(delay*tickSpeed)}
	default:
		return
	}
	e.LastUpdateTick = tick
}

// Get returns the entry as seen at tick, with an expired timed entry already
// in its steady state.
func (r *Register) Get(number, group int, tick uint64) Entry {
	e := r.entry(number, group)
	if e == nil {
		return Entry{}
	}
	if e.expired(tick) {
		return e.settled()
	}
	return *e
}

// Status reports whether the switch is active for group at tick. Switch 0
// is always active; unknown switches are not.
func (r *Register) Status(number, group int, tick uint64) bool {
	if number == 0 {
		return true
	}
	if r.entry(number, group) == nil {
		return false
	}
	return r.Get(number, group, tick).Status
}

// Tick materializes every timed entry that expired at or before now.
func (r *Register) Tick(now uint64) {
	if r == nil {
		return
	}
	for i := range r.entries {
		for g := range r.entries[i] {
			if e := &r.entries[i][g]; e.expired(now) {
				*e = e.settled()
			}
		}
	}
}
