package sim

import (
	"toutuo/server/internal/telemetry"
	"toutuo/server/logging"
)

// Deps carries shared infrastructure dependencies required by the simulation loop.
type Deps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Clock     logging.Clock
	Publisher logging.Publisher
}
