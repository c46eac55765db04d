package antibot

import (
	"context"

	"toutuo/server/logging"
)

const (
	EventSpawn       logging.EventType = "antibot.spawn"
	EventHammerFire  logging.EventType = "antibot.hammer_fire"
	EventHammerHit   logging.EventType = "antibot.hammer_hit"
	EventHookAttach  logging.EventType = "antibot.hook_attach"
	EventDirectInput logging.EventType = "antibot.direct_input"
	EventHookPanic   logging.EventType = "antibot.hook_panic"
)

// NotificationPayload is shared by all hook notifications.
type NotificationPayload struct {
	Target  int    `json:"target,omitempty"`
	Player  bool   `json:"player,omitempty"`
	Reload  bool   `json:"reload,omitempty"`
	Flags   int    `json:"flags,omitempty"`
	Message string `json:"message,omitempty"`
}

// Notification publishes one hook notification at debug severity.
func Notification(ctx context.Context, pub logging.Publisher, eventType logging.EventType, tick uint64, actor logging.EntityRef, payload NotificationPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	severity := logging.SeverityDebug
	if eventType == EventHookPanic {
		severity = logging.SeverityError
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategoryAntibot,
		Payload:  payload,
		Extra:    extra,
	})
}
