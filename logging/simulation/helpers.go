package simulation

import (
	"context"

	"toutuo/server/logging"
)

const (
	// EventTickBudgetOverrun is emitted for every tick that ran longer than its budget.
	EventTickBudgetOverrun logging.EventType = "simulation.tick_budget_overrun"
	// EventTickBudgetAlarm is emitted once per streak when the loop keeps overrunning.
	EventTickBudgetAlarm logging.EventType = "simulation.tick_budget_alarm"
)

// TickBudgetOverrunPayload describes one slow tick and the streak it
// extends. ClampedDelta is set when the wall clock gap exceeded the loop's
// maximum step, meaning the world fell behind real time.
type TickBudgetOverrunPayload struct {
	DurationMillis int64   `json:"durationMillis"`
	BudgetMillis   int64   `json:"budgetMillis"`
	Ratio          float64 `json:"ratio"`
	Streak         uint64  `json:"streak"`
	ClampedDelta   bool    `json:"clampedDelta,omitempty"`
	Commands       int     `json:"commands"`
}

// TickBudgetAlarmPayload summarizes the streak that reached the loop's
// alarm threshold. FirstTick is the tick that started the streak.
type TickBudgetAlarmPayload struct {
	Streak       uint64  `json:"streak"`
	AlarmStreak  uint64  `json:"alarmStreak"`
	FirstTick    uint64  `json:"firstTick"`
	BudgetMillis int64   `json:"budgetMillis"`
	WorstMillis  int64   `json:"worstMillis"`
	ExcessMillis int64   `json:"excessMillis"`
	AverageRatio float64 `json:"averageRatio"`
}

// TickBudgetOverrun reports a slow tick as a warning.
func TickBudgetOverrun(ctx context.Context, pub logging.Publisher, tick uint64, payload TickBudgetOverrunPayload, extra map[string]any) {
	publish(ctx, pub, EventTickBudgetOverrun, logging.SeverityWarn, tick, payload, extra)
}

// TickBudgetAlarm reports a sustained overrun streak as an error.
func TickBudgetAlarm(ctx context.Context, pub logging.Publisher, tick uint64, payload TickBudgetAlarmPayload, extra map[string]any) {
	publish(ctx, pub, EventTickBudgetAlarm, logging.SeverityError, tick, payload, extra)
}

func publish(ctx context.Context, pub logging.Publisher, typ logging.EventType, severity logging.Severity, tick uint64, payload any, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     typ,
		Tick:     tick,
		Severity: severity,
		Category: logging.CategorySimulation,
		Payload:  payload,
		Extra:    extra,
	})
}
