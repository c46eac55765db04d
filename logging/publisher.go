package logging

import (
	"context"
	"strconv"
	"time"
)

type EventType string

type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseSeverity maps a config string onto a Severity, falling back to info.
func ParseSeverity(raw string) Severity {
	switch raw {
	case "debug":
		return SeverityDebug
	case "warn":
		return SeverityWarn
	case "error":
		return SeverityError
	default:
		return SeverityInfo
	}
}

type EntityKind string

const (
	EntityKindUnknown    EntityKind = "unknown"
	EntityKindClient     EntityKind = "client"
	EntityKindCharacter  EntityKind = "character"
	EntityKindProjectile EntityKind = "projectile"
	EntityKindLaser      EntityKind = "laser"
	EntityKindWorld      EntityKind = "world"
)

type Event struct {
	Type      EventType      `json:"type"`
	Tick      uint64         `json:"tick"`
	Time      time.Time      `json:"time"`
	Actor     EntityRef      `json:"actor"`
	Targets   []EntityRef    `json:"targets,omitempty"`
	Severity  Severity       `json:"severity"`
	Category  string         `json:"category,omitempty"`
	Payload   any            `json:"payload,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
	TraceID   string         `json:"traceId,omitempty"`
	CommandID string         `json:"commandId,omitempty"`
}

type EntityRef struct {
	ID   string     `json:"id"`
	Kind EntityKind `json:"kind"`
}

// CharacterRef names the character owned by a client slot.
func CharacterRef(clientID int) EntityRef {
	return EntityRef{ID: strconv.Itoa(clientID), Kind: EntityKindCharacter}
}

// ClientRef names a connected client slot.
func ClientRef(clientID int) EntityRef {
	return EntityRef{ID: strconv.Itoa(clientID), Kind: EntityKindClient}
}

// WorldRef names a world instance.
func WorldRef(id string) EntityRef {
	return EntityRef{ID: id, Kind: EntityKindWorld}
}

const (
	CategoryGameplay   = "gameplay"
	CategoryPhysics    = "physics"
	CategoryCapacity   = "capacity"
	CategorySystem     = "system"
	CategorySimulation = "simulation"
	CategoryLifecycle  = "lifecycle"
	CategoryAntibot    = "antibot"
)

type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type PublisherFunc func(ctx context.Context, event Event)

func (f PublisherFunc) Publish(ctx context.Context, event Event) {
	if f == nil {
		return
	}
	f(ctx, event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}

func NopPublisher() Publisher {
	return nopPublisher{}
}

type fieldPublisher struct {
	next   Publisher
	fields map[string]any
}

func (p *fieldPublisher) Publish(ctx context.Context, event Event) {
	if p.next == nil {
		return
	}
	p.next.Publish(ctx, mergeFields(event, p.fields))
}

// mergeFields copies fields into the event's Extra without overwriting keys
// the event already carries.
func mergeFields(event Event, fields map[string]any) Event {
	if len(fields) == 0 {
		return event
	}
	event = cloneEvent(event)
	if event.Extra == nil {
		event.Extra = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		if _, exists := event.Extra[k]; !exists {
			event.Extra[k] = v
		}
	}
	return event
}

func cloneEvent(event Event) Event {
	cloned := event
	if len(event.Targets) > 0 {
		cloned.Targets = append([]EntityRef(nil), event.Targets...)
	}
	if event.Extra != nil {
		copied := make(map[string]any, len(event.Extra))
		for k, v := range event.Extra {
			copied[k] = v
		}
		cloned.Extra = copied
	}
	return cloned
}

// WithFields decorates p so every event carries the given extra fields.
func WithFields(p Publisher, fields map[string]any) Publisher {
	if p == nil {
		return NopPublisher()
	}
	if len(fields) == 0 {
		return p
	}
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return &fieldPublisher{next: p, fields: copied}
}

type tracePublisher struct {
	next    Publisher
	traceID string
}

func (p *tracePublisher) Publish(ctx context.Context, event Event) {
	if p.next == nil {
		return
	}
	if event.TraceID == "" {
		event.TraceID = p.traceID
	}
	p.next.Publish(ctx, event)
}

// WithTrace stamps events lacking a trace id with traceID.
func WithTrace(p Publisher, traceID string) Publisher {
	if p == nil {
		return NopPublisher()
	}
	if traceID == "" {
		return p
	}
	return &tracePublisher{next: p, traceID: traceID}
}

func (e Event) WithExtra(key string, value any) Event {
	if e.Extra == nil {
		e.Extra = make(map[string]any, 1)
	}
	e.Extra[key] = value
	return e
}
