// Package sweep accumulates firing records across packets into complete
// 360-degree rotations and emits each finished sweep to a registered
// callback.
package sweep

import (
	"fmt"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/spinscan/internal/c16"
	"github.com/banshee-data/spinscan/internal/c16/parse"
)

// DefaultWrapThreshold is the azimuth drop, in degrees, treated as a
// rotation boundary. A new sweep begins when an incoming record's azimuth
// falls below the previous record's azimuth by more than this amount.
const DefaultWrapThreshold = 180.0

// Sweep is one full rotation's worth of firing data. Records are ordered
// as decoded; azimuths are non-decreasing except at most at the very start
// when the pipeline attaches mid-rotation.
type Sweep struct {
	ID        string // FrameID-sweep-Seq
	SensorID  string
	Seq       int64 // strictly increasing per builder
	Records   []c16.FiringRecord
	StartTime time.Time
	EndTime   time.Time

	MinAzimuth float64
	MaxAzimuth float64
}

// Summary holds derived per-sweep statistics for storage and monitoring.
type Summary struct {
	RecordCount    int
	ReturnCount    int     // records with a non-zero distance
	Coverage       float64 // degrees of azimuth covered
	MeanDistance   float64 // meters, over returns only
	StddevDistance float64 // meters, over returns only
	Duration       time.Duration
}

// Summarize computes sweep statistics. Zero-distance records (no laser
// return) are excluded from the distance moments.
func (s *Sweep) Summarize() Summary {
	distances := make([]float64, 0, len(s.Records))
	for _, r := range s.Records {
		if r.Distance > 0 {
			distances = append(distances, r.Distance)
		}
	}

	summary := Summary{
		RecordCount: len(s.Records),
		ReturnCount: len(distances),
		Coverage:    s.MaxAzimuth - s.MinAzimuth,
		Duration:    s.EndTime.Sub(s.StartTime),
	}
	if summary.Coverage < 0 {
		summary.Coverage += 360.0
	}
	if len(distances) > 1 {
		summary.MeanDistance, summary.StddevDistance = stat.MeanStdDev(distances, nil)
	} else if len(distances) == 1 {
		summary.MeanDistance = distances[0]
	}
	return summary
}

// Points converts the sweep to Cartesian sensor-frame points, dropping
// zero-distance records.
func (s *Sweep) Points() []c16.Point {
	points := make([]c16.Point, 0, len(s.Records))
	for _, r := range s.Records {
		if r.Distance == 0 {
			continue
		}
		points = append(points, r.ToPoint())
	}
	return points
}

// BuilderConfig configures a Builder.
type BuilderConfig struct {
	SensorID      string       // sensor identifier used in sweep ids
	WrapThreshold float64      // azimuth drop sealing a sweep (default 180)
	RPM           int          // motor spin rate, sizes per-sweep buffers (default 600)
	OnSweep       func(*Sweep) // invoked synchronously for each sealed sweep
}

// Builder accumulates firing records into rotations. It is driven by the
// single pipeline goroutine; the mutex guards Reset arriving from the
// lifecycle path.
type Builder struct {
	mu            sync.Mutex
	sensorID      string
	wrapThreshold float64
	onSweep       func(*Sweep)

	current     *Sweep
	recordCap   int
	lastAzimuth float64 // negative until the first record arrives
	seq         int64
}

// NewBuilder creates a sweep builder with the given configuration.
func NewBuilder(config BuilderConfig) *Builder {
	if config.WrapThreshold == 0 {
		config.WrapThreshold = DefaultWrapThreshold
	}
	return &Builder{
		sensorID:      config.SensorID,
		wrapThreshold: config.WrapThreshold,
		onSweep:       config.OnSweep,
		recordCap:     recordsPerRotation(config.RPM),
		lastAzimuth:   -1.0,
	}
}

// AddRecords appends decoded firing records to the in-progress sweep,
// sealing and emitting it whenever a rotation boundary is crossed. Sealed
// sweeps are never empty and are emitted in strictly increasing Seq order.
func (b *Builder) AddRecords(records []c16.FiringRecord) {
	if len(records) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, record := range records {
		if b.lastAzimuth >= 0 && b.current != nil &&
			b.lastAzimuth-record.Azimuth > b.wrapThreshold {
			b.seal()
		}
		if b.current == nil {
			b.start(record.Timestamp)
		}
		b.append(record)
		b.lastAzimuth = record.Azimuth
	}
}

// Reset discards the in-progress sweep without emitting it. Used when the
// pipeline deactivates: a partial rotation is never handed downstream.
func (b *Builder) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = nil
	b.lastAzimuth = -1.0
}

// PendingRecords reports the size of the in-progress sweep.
func (b *Builder) PendingRecords() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return 0
	}
	return len(b.current.Records)
}

func (b *Builder) start(timestamp time.Time) {
	b.seq++
	b.current = &Sweep{
		ID:         fmt.Sprintf("%s-sweep-%d", b.sensorID, b.seq),
		SensorID:   b.sensorID,
		Seq:        b.seq,
		Records:    make([]c16.FiringRecord, 0, b.recordCap),
		StartTime:  timestamp,
		EndTime:    timestamp,
		MinAzimuth: 360.0,
	}
}

// recordsPerRotation sizes the per-sweep record buffer from the motor spin
// rate: firings per rotation at the fixed firing cadence, times channels.
func recordsPerRotation(rpm int) int {
	if rpm <= 0 {
		rpm = 600
	}
	rotationUS := 60e6 / float64(rpm)
	return int(rotationUS/parse.FIRING_DURATION_US) * parse.CHANNELS_PER_FIRING
}

func (b *Builder) append(record c16.FiringRecord) {
	frame := b.current
	frame.Records = append(frame.Records, record)
	if record.Timestamp.Before(frame.StartTime) {
		frame.StartTime = record.Timestamp
	}
	if record.Timestamp.After(frame.EndTime) {
		frame.EndTime = record.Timestamp
	}
	if record.Azimuth < frame.MinAzimuth {
		frame.MinAzimuth = record.Azimuth
	}
	if record.Azimuth > frame.MaxAzimuth {
		frame.MaxAzimuth = record.Azimuth
	}
}

// seal closes the current sweep and hands it to the callback. The current
// sweep always has at least one record, so emitted sweeps are never empty.
func (b *Builder) seal() {
	frame := b.current
	b.current = nil
	if frame == nil || len(frame.Records) == 0 {
		return
	}
	if b.onSweep != nil {
		b.onSweep(frame)
	}
}
