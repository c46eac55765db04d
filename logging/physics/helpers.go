package physics

import (
	"context"

	"toutuo/server/logging"
)

// EventCharacterStuck is emitted when a quantized character position ends up
// inside solid geometry it was not inside before the move.
const EventCharacterStuck logging.EventType = "physics.character_stuck"

// Sample is one position/velocity reading with the raw float bits, since the
// interesting cases differ only in the last bits.
type Sample struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	VelX  float64 `json:"velX"`
	VelY  float64 `json:"velY"`
	XBits uint64  `json:"xBits"`
	YBits uint64  `json:"yBits"`
}

// CharacterStuckPayload holds the readings before the move, after the move
// and after quantization.
type CharacterStuckPayload struct {
	Before     Sample `json:"before"`
	AfterMove  Sample `json:"afterMove"`
	AfterQuant Sample `json:"afterQuant"`
}

// CharacterStuck publishes a stuck diagnostic.
func CharacterStuck(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CharacterStuckPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCharacterStuck,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryPhysics,
		Payload:  payload,
		Extra:    extra,
	})
}
