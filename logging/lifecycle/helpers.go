package lifecycle

import (
	"context"

	"toutuo/server/logging"
)

const (
	// EventPlayerJoined is emitted when a client takes a player slot.
	EventPlayerJoined logging.EventType = "lifecycle.player_joined"
	// EventPlayerLeft is emitted when a client releases its slot.
	EventPlayerLeft logging.EventType = "lifecycle.player_left"
	// EventCharacterSpawned is emitted when a character enters the world.
	EventCharacterSpawned logging.EventType = "lifecycle.character_spawned"
	// EventCharacterDied is emitted when a character is removed by death.
	EventCharacterDied logging.EventType = "lifecycle.character_died"
)

// PlayerJoinedPayload captures the slot a client was assigned.
type PlayerJoinedPayload struct {
	Team int `json:"team"`
}

// PlayerLeftPayload captures the reason a client left.
type PlayerLeftPayload struct {
	Reason string `json:"reason"`
}

// CharacterSpawnedPayload captures spawn metadata.
type CharacterSpawnedPayload struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	SnapID int     `json:"snapId"`
	Zone   int     `json:"zone"`
}

// CharacterDiedPayload captures the killer and the weapon responsible.
type CharacterDiedPayload struct {
	Killer int     `json:"killer"`
	Weapon int     `json:"weapon"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// PlayerJoined publishes a player join event.
func PlayerJoined(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerJoinedPayload, extra map[string]any) {
	publish(ctx, pub, EventPlayerJoined, tick, actor, logging.SeverityInfo, payload, extra)
}

// PlayerLeft publishes a player leave event.
func PlayerLeft(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerLeftPayload, extra map[string]any) {
	publish(ctx, pub, EventPlayerLeft, tick, actor, logging.SeverityInfo, payload, extra)
}

// CharacterSpawned publishes a character spawn.
func CharacterSpawned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CharacterSpawnedPayload, extra map[string]any) {
	publish(ctx, pub, EventCharacterSpawned, tick, actor, logging.SeverityDebug, payload, extra)
}

// CharacterDied publishes a character death.
func CharacterDied(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CharacterDiedPayload, extra map[string]any) {
	publish(ctx, pub, EventCharacterDied, tick, actor, logging.SeverityInfo, payload, extra)
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, tick uint64, actor logging.EntityRef, severity logging.Severity, payload any, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}
