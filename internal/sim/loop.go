package sim

import (
	"context"
	"time"

	"github.com/sasha-s/go-deadlock"

	"toutuo/server/internal/telemetry"
	"toutuo/server/logging"
	"toutuo/server/logging/simulation"
)

const (
	// CommandRejectQueueLimit indicates a command was dropped due to
	// per-client queue throttling.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectQueueFull indicates the global command buffer is saturated.
	CommandRejectQueueFull = "queue_full"
)

const (
	defaultTickRate = 50

	tickOverrunMetricKey       = "sim_tick_budget_overrun_total"
	tickOverrunStreakMetricKey = "sim_tick_budget_overrun_streak"
	tickMetricKey              = "sim_tick"
)

// LoopConfig tunes the command buffer and tick loop orchestration.
type LoopConfig struct {
	TickRate        int
	CatchupMaxTicks int
	CommandCapacity int
	PerClientLimit  int
	WarningStep     int
	// AlarmStreak raises a tick budget alarm once this many consecutive
	// ticks overran. Zero disables the alarm.
	AlarmStreak uint64
}

// DefaultLoopConfig leaves TickRate unset so NewEngine picks the world's
// tick speed.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		CatchupMaxTicks: 3,
		CommandCapacity: 1024,
		PerClientLimit:  32,
		WarningStep:     256,
		AlarmStreak:     25,
	}
}

// LoopHooks are optional callbacks run on the loop goroutine.
type LoopHooks struct {
	Prepare        func(LoopTickContext)
	AfterStep      func(LoopStepResult)
	NextTick       func() uint64
	OnCommandDrop  func(reason string, cmd Command)
	OnQueueWarning func(length int)
}

// LoopTickContext describes the tick about to run.
type LoopTickContext struct {
	Tick  uint64
	Now   time.Time
	Delta float64
}

// LoopStepResult describes a finished tick.
type LoopStepResult struct {
	Tick         uint64
	Now          time.Time
	Delta        float64
	Duration     time.Duration
	Budget       time.Duration
	ClampedDelta bool
	MaxDelta     float64
	Commands     []Command
	// Err joins the errors of commands the world refused.
	Err error
}

// Loop coordinates command ingestion and the fixed-timestep simulation runner.
type Loop struct {
	core      EngineCore
	buffer    *CommandBuffer
	hooks     LoopHooks
	config    LoopConfig
	logger    telemetry.Logger
	metrics   telemetry.Metrics
	publisher logging.Publisher

	queueMu        deadlock.Mutex
	perClientCount map[int]int
	dropCounts     map[int]uint64

	overrunStreak uint64
	streakStart   uint64
	streakWorst   time.Duration
	streakExcess  time.Duration
	streakRatio   float64
}

// NewLoop wraps the provided engine core with a ring-buffer queue and loop.
func NewLoop(core EngineCore, cfg LoopConfig, hooks LoopHooks) *Loop {
	if core == nil {
		return nil
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = defaultTickRate
	}
	deps := core.Deps()
	publisher := deps.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &Loop{
		core:           core,
		buffer:         NewCommandBuffer(cfg.CommandCapacity, deps.Metrics),
		hooks:          hooks,
		config:         cfg,
		logger:         deps.Logger,
		metrics:        deps.Metrics,
		publisher:      publisher,
		perClientCount: make(map[int]int),
		dropCounts:     make(map[int]uint64),
	}
}

// Deps returns the injected dependencies for the underlying engine.
func (l *Loop) Deps() Deps {
	if l == nil {
		return Deps{}
	}
	return l.core.Deps()
}

// Config returns the loop configuration after defaults were applied.
func (l *Loop) Config() LoopConfig {
	if l == nil {
		return LoopConfig{}
	}
	return l.config
}

// Pending reports the number of staged commands.
func (l *Loop) Pending() int {
	if l == nil {
		return 0
	}
	return l.buffer.Len()
}

// Enqueue stages a command, enforcing per-client throttling and capacity limits.
func (l *Loop) Enqueue(cmd Command) (bool, string) {
	if l == nil {
		return false, CommandRejectQueueFull
	}
	reason := ""
	var dropCount uint64
	l.queueMu.Lock()
	if l.config.PerClientLimit > 0 && cmd.throttled() {
		count := l.perClientCount[cmd.ClientID]
		if count >= l.config.PerClientLimit {
			reason = CommandRejectQueueLimit
			dropCount = l.incrementDropLocked(cmd.ClientID)
		} else {
			l.perClientCount[cmd.ClientID] = count + 1
		}
	}
	if reason == "" {
		if !l.buffer.Push(cmd) {
			reason = CommandRejectQueueFull
			dropCount = l.incrementDropLocked(cmd.ClientID)
		} else if l.config.WarningStep > 0 {
			length := l.buffer.Len()
			if length >= l.config.WarningStep && length%l.config.WarningStep == 0 {
				l.queueMu.Unlock()
				l.warnQueue(length)
				return true, ""
			}
		}
	}
	l.queueMu.Unlock()
	if reason != "" {
		l.reportDrop(reason, cmd, dropCount)
		return false, reason
	}
	return true, ""
}

// Advance executes a single simulation step using the staged commands.
func (l *Loop) Advance(ctx LoopTickContext) LoopStepResult {
	if l == nil {
		return LoopStepResult{}
	}
	commands := l.drainCommands()
	if l.hooks.Prepare != nil {
		l.hooks.Prepare(ctx)
	}
	err := l.core.Apply(commands)
	if err != nil && l.logger != nil {
		l.logger.Printf("[sim] tick=%d rejected commands: %v", ctx.Tick, err)
	}
	l.core.Step()
	tick := l.core.Tick()
	if l.metrics != nil {
		l.metrics.Store(tickMetricKey, tick)
	}
	return LoopStepResult{
		Tick:     tick,
		Now:      ctx.Now,
		Delta:    ctx.Delta,
		Commands: commands,
		Err:      err,
	}
}

// Run drives the fixed-timestep loop until the stop channel closes.
func (l *Loop) Run(stop <-chan struct{}) {
	if l == nil {
		return
	}
	tickRate := l.config.TickRate
	budget := time.Second / time.Duration(tickRate)
	ticker := time.NewTicker(budget)
	defer ticker.Stop()

	clock := l.core.Deps().Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}
	last := clock.Now()
	budgetSeconds := budget.Seconds()
	maxDt := budgetSeconds
	if l.config.CatchupMaxTicks > 1 {
		maxDt = budgetSeconds * float64(l.config.CatchupMaxTicks)
	}

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := clock.Now()
			dt := now.Sub(last).Seconds()
			clamped := false
			if dt <= 0 {
				dt = budgetSeconds
			} else if dt > maxDt {
				dt = maxDt
				clamped = true
			}
			last = now

			tick := l.core.Tick() + 1
			if l.hooks.NextTick != nil {
				tick = l.hooks.NextTick()
			}

			start := clock.Now()
			result := l.Advance(LoopTickContext{Tick: tick, Now: now, Delta: dt})
			result.Duration = clock.Now().Sub(start)
			result.Budget = budget
			result.ClampedDelta = clamped
			result.MaxDelta = maxDt

			l.observeBudget(result)
			if l.hooks.AfterStep != nil {
				l.hooks.AfterStep(result)
			}
		}
	}
}

// observeBudget tracks consecutive ticks that ran longer than their budget
// and reports them. The streak resets on the first tick within budget.
func (l *Loop) observeBudget(result LoopStepResult) {
	if result.Budget <= 0 {
		return
	}
	if result.Duration <= result.Budget {
		if l.overrunStreak > 0 && l.metrics != nil {
			l.metrics.Store(tickOverrunStreakMetricKey, 0)
		}
		l.overrunStreak = 0
		return
	}
	l.overrunStreak++
	ratio := float64(result.Duration) / float64(result.Budget)
	if l.overrunStreak == 1 {
		l.streakStart = result.Tick
		l.streakWorst = 0
		l.streakExcess = 0
		l.streakRatio = 0
	}
	l.streakWorst = max(l.streakWorst, result.Duration)
	l.streakExcess += result.Duration - result.Budget
	l.streakRatio += ratio
	if l.metrics != nil {
		l.metrics.Add(tickOverrunMetricKey, 1)
		l.metrics.Store(tickOverrunStreakMetricKey, l.overrunStreak)
	}

	ctx := context.Background()
	simulation.TickBudgetOverrun(ctx, l.publisher, result.Tick, simulation.TickBudgetOverrunPayload{
		DurationMillis: result.Duration.Milliseconds(),
		BudgetMillis:   result.Budget.Milliseconds(),
		Ratio:          ratio,
		Streak:         l.overrunStreak,
		ClampedDelta:   result.ClampedDelta,
		Commands:       len(result.Commands),
	}, nil)

	if l.config.AlarmStreak > 0 && l.overrunStreak == l.config.AlarmStreak {
		simulation.TickBudgetAlarm(ctx, l.publisher, result.Tick, simulation.TickBudgetAlarmPayload{
			Streak:       l.overrunStreak,
			AlarmStreak:  l.config.AlarmStreak,
			FirstTick:    l.streakStart,
			BudgetMillis: result.Budget.Milliseconds(),
			WorstMillis:  l.streakWorst.Milliseconds(),
			ExcessMillis: l.streakExcess.Milliseconds(),
			AverageRatio: l.streakRatio / float64(l.overrunStreak),
		}, nil)
	}
}

func (l *Loop) drainCommands() []Command {
	l.queueMu.Lock()
	defer l.queueMu.Unlock()
	commands := l.buffer.Drain()
	if len(l.perClientCount) > 0 {
		clear(l.perClientCount)
	}
	return commands
}

func (l *Loop) incrementDropLocked(clientID int) uint64 {
	count := l.dropCounts[clientID] + 1
	l.dropCounts[clientID] = count
	return count
}

func (l *Loop) warnQueue(length int) {
	if l.hooks.OnQueueWarning != nil {
		l.hooks.OnQueueWarning(length)
	}
	if l.logger != nil {
		l.logger.Printf("[backpressure] command queue length=%d capacity=%d", length, l.buffer.Capacity())
	}
}

// reportDrop logs the 1st, 2nd, 4th, 8th... drop of each client.
func (l *Loop) reportDrop(reason string, cmd Command, count uint64) {
	if l.hooks.OnCommandDrop != nil {
		l.hooks.OnCommandDrop(reason, cmd)
	}
	if count > 0 && count&(count-1) == 0 && l.logger != nil {
		l.logger.Printf(
			"[backpressure] dropping command client=%d type=%s reason=%s count=%d limit=%d",
			cmd.ClientID,
			cmd.Type,
			reason,
			count,
			l.config.PerClientLimit,
		)
	}
}

var _ Engine = (*Loop)(nil)
