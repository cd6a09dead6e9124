package pipeline

import (
	"sync"
	"time"
)

// Stats tracks packet and record throughput across the receive loop and
// the forwarding path.
type Stats struct {
	mu           sync.Mutex
	packetCount  int64
	byteCount    int64
	droppedCount int64
	recordCount  int64
	sweepCount   int64
	lastReset    time.Time
}

// NewStats creates a stats collector with the reset clock started.
func NewStats() *Stats {
	return &Stats{lastReset: time.Now()}
}

// AddPacket counts one received packet of the given size.
func (s *Stats) AddPacket(bytes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packetCount++
	s.byteCount += int64(bytes)
}

// AddDropped counts one dropped packet (framing, decode or forward drop).
func (s *Stats) AddDropped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.droppedCount++
}

// AddRecords counts decoded firing records.
func (s *Stats) AddRecords(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordCount += int64(count)
}

// AddSweep counts one emitted sweep.
func (s *Stats) AddSweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepCount++
}

// GetAndReset returns the counters accumulated since the previous reset
// and zeroes them.
func (s *Stats) GetAndReset() (packets, bytes, dropped, records, sweeps int64, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	duration = now.Sub(s.lastReset)
	packets = s.packetCount
	bytes = s.byteCount
	dropped = s.droppedCount
	records = s.recordCount
	sweeps = s.sweepCount

	s.packetCount = 0
	s.byteCount = 0
	s.droppedCount = 0
	s.recordCount = 0
	s.sweepCount = 0
	s.lastReset = now

	return
}
