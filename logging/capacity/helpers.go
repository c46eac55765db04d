package capacity

import (
	"context"

	"toutuo/server/logging"
)

const (
	// EventSnapIDExhausted is emitted when the snapshot id pool has no free slot.
	EventSnapIDExhausted logging.EventType = "capacity.snap_id_exhausted"
	// EventSnapIDInvalidFree is emitted when an id is released that is not allocated.
	EventSnapIDInvalidFree logging.EventType = "capacity.snap_id_invalid_free"
	// EventEventDropped is emitted when the per-tick event log rejects an event.
	EventEventDropped logging.EventType = "capacity.event_dropped"
	// EventSnapshotItemsDropped is emitted when a client's snapshot ran out of room.
	EventSnapshotItemsDropped logging.EventType = "capacity.snapshot_items_dropped"
)

// SnapIDExhaustedPayload captures pool usage at the time of failure.
type SnapIDExhaustedPayload struct {
	Capacity int `json:"capacity"`
	InUse    int `json:"inUse"`
	Timed    int `json:"timed"`
}

// SnapIDInvalidFreePayload identifies the rejected id.
type SnapIDInvalidFreePayload struct {
	ID    int    `json:"id"`
	State string `json:"state"`
}

// EventDroppedPayload captures which budget rejected an event.
type EventDroppedPayload struct {
	EventType int    `json:"eventType"`
	Size      int    `json:"size"`
	Count     int    `json:"count"`
	Bytes     int    `json:"bytes"`
	Reason    string `json:"reason"`
}

// SnapshotItemsDroppedPayload reports how much of one frame was refused.
type SnapshotItemsDroppedPayload struct {
	Dropped int `json:"dropped"`
	Items   int `json:"items"`
}

// SnapIDExhausted publishes a pool exhaustion error.
func SnapIDExhausted(ctx context.Context, pub logging.Publisher, tick uint64, payload SnapIDExhaustedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSnapIDExhausted,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindWorld},
		Severity: logging.SeverityError,
		Category: logging.CategoryCapacity,
		Payload:  payload,
		Extra:    extra,
	})
}

// SnapIDInvalidFree publishes a rejected release.
func SnapIDInvalidFree(ctx context.Context, pub logging.Publisher, tick uint64, payload SnapIDInvalidFreePayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSnapIDInvalidFree,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindWorld},
		Severity: logging.SeverityError,
		Category: logging.CategoryCapacity,
		Payload:  payload,
		Extra:    extra,
	})
}

// EventDropped publishes a dropped cosmetic event. Debug severity: drops are
// expected under load.
func EventDropped(ctx context.Context, pub logging.Publisher, tick uint64, payload EventDroppedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventEventDropped,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindWorld},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryCapacity,
		Payload:  payload,
		Extra:    extra,
	})
}

// SnapshotItemsDropped publishes a truncated snapshot frame for one client.
func SnapshotItemsDropped(ctx context.Context, pub logging.Publisher, tick uint64, clientID int, payload SnapshotItemsDroppedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSnapshotItemsDropped,
		Tick:     tick,
		Actor:    logging.ClientRef(clientID),
		Severity: logging.SeverityWarn,
		Category: logging.CategoryCapacity,
		Payload:  payload,
		Extra:    extra,
	})
}
