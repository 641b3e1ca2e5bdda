package sim

import (
	"sync"

	"waypoint-walk/server/internal/telemetry"
)

const (
	metricBufferOccupancy = "sim_command_buffer_occupancy"
	metricBufferOverflow  = "sim_command_buffer_overflow_total"
)

// CommandBuffer is a fixed-size FIFO ring. Many goroutines may push; one
// drains.
type CommandBuffer struct {
	mu      sync.Mutex
	data    []Command
	head    int
	count   int
	metrics telemetry.Metrics
}

func NewCommandBuffer(capacity int, metrics telemetry.Metrics) *CommandBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &CommandBuffer{data: make([]Command, capacity), metrics: metrics}
}

func (b *CommandBuffer) Capacity() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// Push stages cmd and reports false when the ring is full.
func (b *CommandBuffer) Push(cmd Command) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == len(b.data) {
		if b.metrics != nil {
			b.metrics.Add(metricBufferOverflow, 1)
		}
		return false
	}
	b.data[(b.head+b.count)%len(b.data)] = cmd
	b.count++
	b.reportLocked()
	return true
}

// Drain returns staged commands oldest first and empties the ring.
func (b *CommandBuffer) Drain() []Command {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		return nil
	}
	out := make([]Command, b.count)
	for i := range out {
		idx := (b.head + i) % len(b.data)
		out[i] = b.data[idx]
		b.data[idx] = Command{}
	}
	b.head = (b.head + b.count) % len(b.data)
	b.count = 0
	b.reportLocked()
	return out
}

func (b *CommandBuffer) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *CommandBuffer) reportLocked() {
	if b.metrics != nil {
		b.metrics.Store(metricBufferOccupancy, uint64(b.count))
	}
}
