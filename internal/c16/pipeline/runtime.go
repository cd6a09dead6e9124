// Package pipeline wires the packet source, decoder and sweep builder
// into a single-threaded decode loop gated by the lifecycle controller.
package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/banshee-data/spinscan/internal/c16"
	"github.com/banshee-data/spinscan/internal/c16/lifecycle"
	"github.com/banshee-data/spinscan/internal/c16/parse"
	"github.com/banshee-data/spinscan/internal/c16/sweep"
	"github.com/banshee-data/spinscan/internal/monitoring"
)

// PacketSource yields raw packets to the decode loop. Receive reports
// ok=false when no data arrived within the source's timeout; absence of
// data is not an error.
type PacketSource interface {
	Receive() (pkt c16.RawPacket, ok bool, err error)
}

// Forwarder mirrors raw datagrams to a secondary consumer.
type Forwarder interface {
	ForwardAsync(packet []byte)
}

// RuntimeConfig bundles the runtime's dependencies. Passing them through
// the constructor keeps wiring explicit and testing deterministic.
type RuntimeConfig struct {
	Params    c16.DeviceParams
	Source    PacketSource
	Forwarder Forwarder          // optional
	Stats     *Stats             // optional; a fresh collector is created when nil
	OnSweep   func(*sweep.Sweep) // downstream point-cloud sink
}

// Runtime runs the cooperative decode loop: one packet is received,
// decoded and assembled before the next receive, and lifecycle transition
// requests are applied only at the boundaries between packets.
type Runtime struct {
	params     c16.DeviceParams
	source     PacketSource
	forwarder  Forwarder
	stats      *Stats
	controller *lifecycle.Controller
	builder    *sweep.Builder

	mu      sync.Mutex
	decoder *parse.Decoder // nil until a successful configure
}

// NewRuntime assembles a runtime and its lifecycle controller. The
// controller starts Unconfigured; no packets are decoded until configure
// and activate succeed.
func NewRuntime(config RuntimeConfig) *Runtime {
	stats := config.Stats
	if stats == nil {
		stats = NewStats()
	}

	rt := &Runtime{
		params:    config.Params,
		source:    config.Source,
		forwarder: config.Forwarder,
		stats:     stats,
	}

	onSweep := config.OnSweep
	rt.builder = sweep.NewBuilder(sweep.BuilderConfig{
		SensorID:      config.Params.FrameID,
		WrapThreshold: config.Params.WrapThreshold,
		RPM:           config.Params.RPM,
		OnSweep: func(s *sweep.Sweep) {
			stats.AddSweep()
			if onSweep != nil {
				onSweep(s)
			}
		},
	})

	rt.controller = lifecycle.NewController(lifecycle.Hooks{
		Configure:  rt.configure,
		Deactivate: rt.deactivate,
		Cleanup:    rt.cleanup,
	})

	return rt
}

// Controller exposes the lifecycle controller for the control surface.
func (r *Runtime) Controller() *lifecycle.Controller { return r.controller }

// Stats exposes the throughput counters.
func (r *Runtime) Stats() *Stats { return r.stats }

// configure loads the calibration table and builds the decoder. Invoked by
// the lifecycle controller; a load failure aborts the transition and
// leaves the pipeline Unconfigured.
func (r *Runtime) configure() error {
	var (
		calib *parse.CalibrationTable
		err   error
	)
	if r.params.CalibrationFile != "" {
		calib, err = parse.LoadCalibration(r.params.CalibrationFile)
	} else {
		calib, err = parse.LoadEmbeddedCalibration()
	}
	if err != nil {
		return err
	}

	decoder := parse.NewDecoder(calib)
	decoder.SetRangeLimits(r.params.MinRange, r.params.MaxRange)
	if r.params.UseDeviceTime {
		decoder.SetTimestampMode(parse.TimestampModeDevice)
	}

	r.mu.Lock()
	r.decoder = decoder
	r.mu.Unlock()

	monitoring.Logf("Pipeline configured (calibration: %s)", calibSource(r.params.CalibrationFile))
	return nil
}

func calibSource(path string) string {
	if path == "" {
		return "embedded defaults"
	}
	return path
}

// deactivate discards any partially accumulated sweep. A partial rotation
// is never emitted downstream.
func (r *Runtime) deactivate() {
	discarded := r.builder.PendingRecords()
	r.builder.Reset()
	if discarded > 0 {
		monitoring.Logf("Pipeline deactivated: discarded partial sweep of %d records", discarded)
	}
}

// cleanup releases the decoder and its calibration table.
func (r *Runtime) cleanup() {
	r.mu.Lock()
	r.decoder = nil
	r.mu.Unlock()
}

// Run drives the decode loop until the context is cancelled or the
// lifecycle reaches Finalized. Per-packet failures are logged and the
// packet dropped; nothing in normal operation terminates the loop.
func (r *Runtime) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Safe point: apply queued transitions between completed packets.
		r.controller.ServicePending()
		if r.controller.State() == lifecycle.Finalized {
			monitoring.Logf("Pipeline finalized, decode loop exiting")
			return nil
		}

		pkt, ok, err := r.source.Receive()
		if err != nil {
			r.stats.AddDropped()
			monitoring.Logf("Packet receive error: %v", err)
			continue
		}
		if !ok {
			continue
		}

		r.stats.AddPacket(len(pkt.Data))
		if r.forwarder != nil {
			r.forwarder.ForwardAsync(pkt.Data)
		}

		if err := r.HandlePacket(pkt); err != nil {
			r.stats.AddDropped()
			monitoring.Logf("Packet decode failed: %v", err)
		}
	}
}

// HandlePacket decodes one packet and feeds the sweep builder. Input is
// discarded silently unless the lifecycle state is Active. Also used
// directly by the PCAP replay path.
func (r *Runtime) HandlePacket(pkt c16.RawPacket) error {
	if !r.controller.IsActive() {
		return nil
	}

	r.mu.Lock()
	decoder := r.decoder
	r.mu.Unlock()
	if decoder == nil {
		return nil
	}

	records, err := decoder.DecodePacket(pkt)
	if err != nil {
		return err
	}

	r.stats.AddRecords(len(records))
	r.builder.AddRecords(records)
	return nil
}

// IsDropError reports whether err is a per-packet failure that drops the
// packet but keeps the pipeline running.
func IsDropError(err error) bool {
	return errors.Is(err, parse.ErrFraming) || errors.Is(err, parse.ErrDecode)
}
