package sim

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"waypoint-walk/server/internal/telemetry"
	"waypoint-walk/server/logging"
	loggingsimulation "waypoint-walk/server/logging/simulation"
)

const (
	// CommandRejectActorLimit means the actor already staged its share of
	// commands for this tick.
	CommandRejectActorLimit = "actor_limit"
	// CommandRejectQueueFull means the shared command ring is saturated.
	CommandRejectQueueFull = "queue_full"

	metricTicks          = "sim_ticks_total"
	metricTickMicros     = "sim_tick_duration_micros"
	metricBudgetOverruns = "sim_tick_budget_overrun_total"
	metricCommandDrops   = "sim_command_drops_total"
)

// MaxTickRate caps the loop frequency. Above it the per-tick budget is too
// small for the ticker to honour.
const MaxTickRate = 1000

// LoopConfig tunes the command queue and the fixed-timestep runner.
type LoopConfig struct {
	TickRate        int `yaml:"tick_rate"`
	CatchupMaxTicks int `yaml:"catchup_max_ticks"`
	CommandCapacity int `yaml:"command_capacity"`
	PerActorLimit   int `yaml:"per_actor_limit"`
}

func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		TickRate:        30,
		CatchupMaxTicks: 3,
		CommandCapacity: 1024,
		PerActorLimit:   16,
	}
}

// TickContext describes the tick being advanced.
type TickContext struct {
	Tick  uint64
	Now   time.Time
	Delta float64
}

// Stepper consumes the commands staged since the previous tick and advances
// every actor by Delta seconds.
type Stepper interface {
	Step(ctx context.Context, tick TickContext, commands []Command)
}

// StepperFunc adapts a function to Stepper.
type StepperFunc func(ctx context.Context, tick TickContext, commands []Command)

func (f StepperFunc) Step(ctx context.Context, tick TickContext, commands []Command) {
	f(ctx, tick, commands)
}

// LoopDeps carries the loop's infrastructure. Every field is optional.
type LoopDeps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
	Clock     logging.Clock
}

// StepResult summarises one advanced tick.
type StepResult struct {
	Tick         uint64
	Delta        float64
	Commands     int
	Duration     time.Duration
	Budget       time.Duration
	ClampedDelta bool
}

// Loop stages commands from connection goroutines and feeds them to a
// Stepper at a fixed rate.
type Loop struct {
	stepper Stepper
	buffer  *CommandBuffer
	config  LoopConfig
	deps    LoopDeps

	tick atomic.Uint64

	queueMu       sync.Mutex
	perActorCount map[string]int
	dropCounts    map[string]uint64

	overrunStreak uint64
}

// NewLoop wraps stepper with a command ring. Zero config fields take the
// defaults.
func NewLoop(stepper Stepper, cfg LoopConfig, deps LoopDeps) *Loop {
	if stepper == nil {
		return nil
	}
	defaults := DefaultLoopConfig()
	if cfg.TickRate <= 0 {
		cfg.TickRate = defaults.TickRate
	}
	if cfg.TickRate > MaxTickRate {
		cfg.TickRate = MaxTickRate
	}
	if cfg.CatchupMaxTicks <= 0 {
		cfg.CatchupMaxTicks = defaults.CatchupMaxTicks
	}
	if cfg.CommandCapacity <= 0 {
		cfg.CommandCapacity = defaults.CommandCapacity
	}
	if deps.Clock == nil {
		deps.Clock = logging.SystemClock{}
	}
	return &Loop{
		stepper:       stepper,
		buffer:        NewCommandBuffer(cfg.CommandCapacity, deps.Metrics),
		config:        cfg,
		deps:          deps,
		perActorCount: make(map[string]int),
		dropCounts:    make(map[string]uint64),
	}
}

// Config returns the effective configuration.
func (l *Loop) Config() LoopConfig {
	if l == nil {
		return LoopConfig{}
	}
	return l.config
}

// Tick reports the last advanced tick.
func (l *Loop) Tick() uint64 {
	if l == nil {
		return 0
	}
	return l.tick.Load()
}

// Pending reports the number of staged commands.
func (l *Loop) Pending() int {
	if l == nil {
		return 0
	}
	return l.buffer.Len()
}

// Enqueue stages cmd for the next tick. A rejected command reports the reason.
func (l *Loop) Enqueue(cmd Command) (bool, string) {
	if l == nil {
		return false, CommandRejectQueueFull
	}
	if cmd.IssuedAt.IsZero() {
		cmd.IssuedAt = l.deps.Clock.Now()
	}
	reason := ""
	var drops uint64
	l.queueMu.Lock()
	if l.config.PerActorLimit > 0 && cmd.ActorID != "" {
		count := l.perActorCount[cmd.ActorID]
		if count >= l.config.PerActorLimit {
			reason = CommandRejectActorLimit
			drops = l.incrementDropLocked(cmd.ActorID)
		} else {
			l.perActorCount[cmd.ActorID] = count + 1
		}
	}
	if reason == "" && !l.buffer.Push(cmd) {
		reason = CommandRejectQueueFull
		drops = l.incrementDropLocked(cmd.ActorID)
	}
	l.queueMu.Unlock()
	if reason != "" {
		l.reportDrop(reason, cmd, drops)
		return false, reason
	}
	return true, ""
}

// Forget clears the throttling state of a departed actor.
func (l *Loop) Forget(actorID string) {
	if l == nil {
		return
	}
	l.queueMu.Lock()
	delete(l.perActorCount, actorID)
	delete(l.dropCounts, actorID)
	l.queueMu.Unlock()
}

// Advance runs one tick with the staged commands.
func (l *Loop) Advance(ctx context.Context, now time.Time, dt float64) StepResult {
	if l == nil {
		return StepResult{}
	}
	commands := l.drainCommands()
	tick := l.tick.Add(1)
	l.stepper.Step(ctx, TickContext{Tick: tick, Now: now, Delta: dt}, commands)
	return StepResult{Tick: tick, Delta: dt, Commands: len(commands)}
}

// Run drives the fixed-timestep loop until ctx is cancelled. Long pauses are
// clamped to CatchupMaxTicks budgets so actors never jump across the map.
func (l *Loop) Run(ctx context.Context) {
	if l == nil {
		return
	}
	budget := time.Second / time.Duration(l.config.TickRate)
	ticker := time.NewTicker(budget)
	defer ticker.Stop()

	clock := l.deps.Clock
	budgetSeconds := budget.Seconds()
	maxDt := budgetSeconds * float64(l.config.CatchupMaxTicks)
	last := clock.Now()

	for {
		select {
		case <-ctx.Done():
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

			start := clock.Now()
			result := l.Advance(ctx, now, dt)
			result.Duration = clock.Now().Sub(start)
			result.Budget = budget
			result.ClampedDelta = clamped
			l.observe(ctx, result)
		}
	}
}

func (l *Loop) observe(ctx context.Context, result StepResult) {
	if metrics := l.deps.Metrics; metrics != nil {
		metrics.Add(metricTicks, 1)
		metrics.Store(metricTickMicros, uint64(result.Duration.Microseconds()))
		if hist, ok := metrics.(interface{ ObserveTick(float64) }); ok {
			hist.ObserveTick(result.Duration.Seconds())
		}
	}
	if result.Budget <= 0 || result.Duration <= result.Budget {
		l.overrunStreak = 0
		return
	}
	l.overrunStreak++
	if l.deps.Metrics != nil {
		l.deps.Metrics.Add(metricBudgetOverruns, 1)
	}
	loggingsimulation.TickBudgetOverrun(ctx, l.deps.Publisher, result.Tick, loggingsimulation.TickBudgetOverrunPayload{
		DurationMillis: result.Duration.Milliseconds(),
		BudgetMillis:   result.Budget.Milliseconds(),
		Ratio:          float64(result.Duration) / float64(result.Budget),
		Streak:         l.overrunStreak,
	})
}

func (l *Loop) drainCommands() []Command {
	l.queueMu.Lock()
	defer l.queueMu.Unlock()
	commands := l.buffer.Drain()
	if len(l.perActorCount) > 0 {
		l.perActorCount = make(map[string]int)
	}
	return commands
}

func (l *Loop) incrementDropLocked(actorID string) uint64 {
	if actorID == "" {
		return 0
	}
	count := l.dropCounts[actorID] + 1
	l.dropCounts[actorID] = count
	return count
}

func (l *Loop) reportDrop(reason string, cmd Command, count uint64) {
	if l.deps.Metrics != nil {
		l.deps.Metrics.Add(metricCommandDrops, 1)
	}
	// Only powers of two are logged.
	if count > 0 && count&(count-1) == 0 && l.deps.Logger != nil {
		l.deps.Logger.Printf(
			"[backpressure] dropping command actor=%s type=%s reason=%s count=%d limit=%d",
			cmd.ActorID,
			cmd.Type,
			reason,
			count,
			l.config.PerActorLimit,
		)
	}
}
