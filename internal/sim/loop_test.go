package sim

import (
	"context"
	"sync"
	"testing"
	"time"

	"waypoint-walk/server/internal/telemetry"
	"waypoint-walk/server/logging/simulation"
	"waypoint-walk/server/logging/sinks"
)

func TestCommandBufferWraparound(t *testing.T) {
	buffer := NewCommandBuffer(3, nil)
	for _, id := range []string{"a", "b", "c"} {
		if !buffer.Push(Command{ActorID: id}) {
			t.Fatalf("expected push to succeed for %s", id)
		}
	}
	if buffer.Push(Command{ActorID: "overflow"}) {
		t.Fatalf("expected push to fail when buffer full")
	}
	if drained := buffer.Drain(); len(drained) != 3 || drained[0].ActorID != "a" || drained[2].ActorID != "c" {
		t.Fatalf("unexpected drain order: %+v", drained)
	}
	for _, id := range []string{"d", "e"} {
		buffer.Push(Command{ActorID: id})
	}
	wrapped := buffer.Drain()
	if len(wrapped) != 2 || wrapped[0].ActorID != "d" || wrapped[1].ActorID != "e" {
		t.Fatalf("unexpected order after wraparound: %+v", wrapped)
	}
	if buffer.Drain() != nil {
		t.Fatalf("expected empty drain to return nil")
	}
}

func TestCommandBufferMetrics(t *testing.T) {
	counters := &telemetry.Counters{}
	buffer := NewCommandBuffer(1, counters)
	buffer.Push(Command{ActorID: "one"})
	buffer.Push(Command{ActorID: "two"})
	snapshot := counters.Snapshot()
	if snapshot[metricBufferOverflow] != 1 {
		t.Fatalf("expected one overflow, got %d", snapshot[metricBufferOverflow])
	}
	if snapshot[metricBufferOccupancy] != 1 {
		t.Fatalf("expected occupancy 1, got %d", snapshot[metricBufferOccupancy])
	}
}

type recordingStepper struct {
	mu    sync.Mutex
	ticks []TickContext
	cmds  [][]Command
}

func (r *recordingStepper) Step(_ context.Context, tick TickContext, commands []Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, tick)
	r.cmds = append(r.cmds, commands)
}

func (r *recordingStepper) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ticks)
}

func TestLoopEnqueueThrottlesPerActor(t *testing.T) {
	stepper := &recordingStepper{}
	loop := NewLoop(stepper, LoopConfig{PerActorLimit: 2, CommandCapacity: 8}, LoopDeps{})
	for i := 0; i < 2; i++ {
		if ok, reason := loop.Enqueue(Command{ActorID: "a", Type: CommandInput}); !ok {
			t.Fatalf("expected command %d to be accepted, got %s", i, reason)
		}
	}
	if ok, reason := loop.Enqueue(Command{ActorID: "a", Type: CommandInput}); ok || reason != CommandRejectActorLimit {
		t.Fatalf("expected actor limit rejection, got ok=%v reason=%q", ok, reason)
	}
	if ok, _ := loop.Enqueue(Command{ActorID: "b", Type: CommandInteract}); !ok {
		t.Fatalf("expected other actor to be accepted")
	}

	result := loop.Advance(context.Background(), time.Now(), 0.1)
	if result.Tick != 1 || result.Commands != 3 {
		t.Fatalf("unexpected step result %+v", result)
	}
	if loop.Pending() != 0 {
		t.Fatalf("expected queue to be drained")
	}
	if ok, _ := loop.Enqueue(Command{ActorID: "a", Type: CommandInput}); !ok {
		t.Fatalf("expected per-actor budget to reset after a tick")
	}
	if stepper.cmds[0][0].IssuedAt.IsZero() {
		t.Fatalf("expected enqueue to stamp IssuedAt")
	}
}

func TestLoopQueueFull(t *testing.T) {
	loop := NewLoop(&recordingStepper{}, LoopConfig{CommandCapacity: 1}, LoopDeps{})
	loop.Enqueue(Command{ActorID: "a"})
	if ok, reason := loop.Enqueue(Command{ActorID: "b"}); ok || reason != CommandRejectQueueFull {
		t.Fatalf("expected queue full, got ok=%v reason=%q", ok, reason)
	}
}

func TestLoopReportsBudgetOverrun(t *testing.T) {
	memory := sinks.NewMemory()
	counters := &telemetry.Counters{}
	loop := NewLoop(&recordingStepper{}, LoopConfig{}, LoopDeps{Publisher: memory, Metrics: counters})

	ctx := context.Background()
	loop.observe(ctx, StepResult{Tick: 1, Duration: 10 * time.Millisecond, Budget: 33 * time.Millisecond})
	loop.observe(ctx, StepResult{Tick: 2, Duration: 50 * time.Millisecond, Budget: 33 * time.Millisecond})
	loop.observe(ctx, StepResult{Tick: 3, Duration: 70 * time.Millisecond, Budget: 33 * time.Millisecond})

	events := memory.OfType(simulation.EventTickBudgetOverrun)
	if len(events) != 2 {
		t.Fatalf("expected 2 overrun events, got %d", len(events))
	}
	payload := events[1].Payload.(simulation.TickBudgetOverrunPayload)
	if payload.Streak != 2 || events[1].Tick != 3 {
		t.Fatalf("unexpected overrun payload %+v", payload)
	}
	if counters.Snapshot()[metricTicks] != 3 {
		t.Fatalf("expected 3 ticks counted")
	}
}

func TestLoopRunStopsOnCancel(t *testing.T) {
	stepper := &recordingStepper{}
	loop := NewLoop(stepper, LoopConfig{TickRate: 200}, LoopDeps{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for stepper.count() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("loop did not advance")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("loop did not stop after cancel")
	}

	stepper.mu.Lock()
	defer stepper.mu.Unlock()
	maxDt := 3.0 / 200
	for i, tick := range stepper.ticks {
		if tick.Tick != uint64(i+1) {
			t.Fatalf("expected sequential ticks, got %d at %d", tick.Tick, i)
		}
		if tick.Delta <= 0 || tick.Delta > maxDt+1e-9 {
			t.Fatalf("delta %v outside (0, %v]", tick.Delta, maxDt)
		}
	}
}

func TestLoopCapsTickRate(t *testing.T) {
	loop := NewLoop(&recordingStepper{}, LoopConfig{TickRate: 2_000_000_000}, LoopDeps{})
	if got := loop.Config().TickRate; got != MaxTickRate {
		t.Fatalf("expected tick rate capped at %d, got %d", MaxTickRate, got)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	loop.Run(ctx)
}
