// Command spinscan receives LSLiDAR C16 MSOP packets over UDP, decodes
// them into calibrated firing records, assembles complete rotations and
// records per-sweep summaries. Lifecycle transitions are driven over a
// small HTTP control surface.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/spinscan/internal/c16"
	"github.com/banshee-data/spinscan/internal/c16/lifecycle"
	"github.com/banshee-data/spinscan/internal/c16/network"
	"github.com/banshee-data/spinscan/internal/c16/pipeline"
	"github.com/banshee-data/spinscan/internal/c16/sweep"
	"github.com/banshee-data/spinscan/internal/c16/sweepdb"
	"github.com/banshee-data/spinscan/internal/monitoring"
)

var (
	listen         = flag.String("listen", ":8081", "HTTP listen address for the control surface")
	udpPort        = flag.Int("udp-port", 2368, "UDP port to listen for MSOP packets")
	udpAddress     = flag.String("udp-addr", "", "UDP bind address (default: all interfaces)")
	paramsFile     = flag.String("params", "", "Path to YAML device parameter file (default: factory params)")
	calibFile      = flag.String("calibration", "", "Calibration CSV override (default: from params or embedded)")
	dbFile         = flag.String("db", "spinscan.db", "Path to the SQLite sweep database")
	rcvBuf         = flag.Int("rcvbuf", 4<<20, "UDP receive buffer size in bytes")
	logInterval    = flag.Int("log-interval", 2, "Statistics logging interval in seconds")
	forwardPackets = flag.Bool("forward", false, "Forward received UDP packets to another address")
	forwardPort    = flag.Int("forward-port", 2369, "Port to forward UDP packets to")
	forwardAddr    = flag.String("forward-addr", "localhost", "Address to forward UDP packets to")
	pcapFile       = flag.String("pcap", "", "Replay MSOP packets from a PCAP file instead of the network")
	autostart      = flag.Bool("autostart", true, "Configure and activate the pipeline at startup")
)

func main() {
	flag.Parse()

	params, err := loadParams()
	if err != nil {
		log.Fatalf("Failed to load device params: %v", err)
	}

	db, err := sweepdb.Open(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open sweep database: %v", err)
	}
	defer db.Close()

	sessionID, err := db.StartSession(params.FrameID, "spinscan startup")
	if err != nil {
		log.Fatalf("Failed to start decode session: %v", err)
	}
	log.Printf("Started decode session %s for sensor %s", sessionID, params.FrameID)

	stats := pipeline.NewStats()

	var forwarder *network.PacketForwarder
	if *forwardPackets {
		forwarder, err = network.NewPacketForwarder(*forwardAddr, *forwardPort, stats, time.Minute)
		if err != nil {
			log.Fatalf("Failed to create packet forwarder: %v", err)
		}
		defer forwarder.Close()
	}

	listener := network.NewUDPListener(network.UDPListenerConfig{
		Address: udpListenAddress(params),
		RcvBuf:  *rcvBuf,
	})

	rt := pipeline.NewRuntime(pipeline.RuntimeConfig{
		Params:    *params,
		Source:    listener,
		Forwarder: forwarderOrNil(forwarder),
		Stats:     stats,
		OnSweep: func(s *sweep.Sweep) {
			summary := s.Summarize()
			monitoring.Debugf("Sweep %s: %d records, %.1f° coverage, mean %.2fm",
				s.ID, summary.RecordCount, summary.Coverage, summary.MeanDistance)
			if err := db.RecordSweep(sessionID, s); err != nil {
				monitoring.Logf("Failed to record sweep %s: %v", s.ID, err)
			}
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *pcapFile != "" {
		runPCAP(ctx, rt, params)
		return
	}

	if err := listener.Open(); err != nil {
		log.Fatalf("Failed to open UDP listener: %v", err)
	}
	defer listener.Close()

	if forwarder != nil {
		forwarder.Start(ctx)
	}

	if *autostart {
		for _, t := range []lifecycle.Transition{lifecycle.Configure, lifecycle.Activate} {
			if res := rt.Controller().Apply(t); res.Err != nil {
				log.Fatalf("Autostart %s failed: %v", t, res.Err)
			}
		}
		log.Printf("Pipeline autostarted (state: %s)", rt.Controller().State())
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := rt.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("Pipeline error: %v", err)
		}
		log.Print("Decode loop terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runStatsLogging(ctx, stats)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runControlServer(ctx, rt)
	}()

	wg.Wait()
	log.Print("Graceful shutdown complete")
}

func loadParams() (*c16.DeviceParams, error) {
	var params c16.DeviceParams
	if *paramsFile != "" {
		loaded, err := c16.LoadDeviceParams(*paramsFile)
		if err != nil {
			return nil, err
		}
		params = *loaded
	} else {
		params = c16.DefaultDeviceParams()
	}
	if *calibFile != "" {
		params.CalibrationFile = *calibFile
	}
	if *udpPort != 0 {
		params.MSOPPort = *udpPort
	}
	return &params, nil
}

func udpListenAddress(params *c16.DeviceParams) string {
	if *udpAddress == "" {
		return fmt.Sprintf(":%d", params.MSOPPort)
	}
	return fmt.Sprintf("%s:%d", *udpAddress, params.MSOPPort)
}

// forwarderOrNil avoids storing a typed nil in the runtime's Forwarder
// interface field.
func forwarderOrNil(f *network.PacketForwarder) pipeline.Forwarder {
	if f == nil {
		return nil
	}
	return f
}

// runPCAP decodes packets from a capture file through the same pipeline
// and exits when the file is exhausted.
func runPCAP(ctx context.Context, rt *pipeline.Runtime, params *c16.DeviceParams) {
	for _, t := range []lifecycle.Transition{lifecycle.Configure, lifecycle.Activate} {
		if res := rt.Controller().Apply(t); res.Err != nil {
			log.Fatalf("PCAP %s failed: %v", t, res.Err)
		}
	}

	stats := rt.Stats()
	err := network.ReplayPCAP(ctx, *pcapFile, params.MSOPPort, func(pkt c16.RawPacket) error {
		stats.AddPacket(len(pkt.Data))
		return rt.HandlePacket(pkt)
	})
	if err != nil && err != context.Canceled {
		log.Fatalf("PCAP replay failed: %v", err)
	}

	packets, bytes, dropped, records, sweeps, _ := stats.GetAndReset()
	log.Printf("PCAP replay done: %d packets (%d bytes), %d dropped, %d records, %d sweeps",
		packets, bytes, dropped, records, sweeps)
}

// runStatsLogging periodically reports throughput, staying quiet while no
// packets arrive.
func runStatsLogging(ctx context.Context, stats *pipeline.Stats) {
	ticker := time.NewTicker(time.Duration(*logInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			packets, bytes, dropped, records, sweeps, duration := stats.GetAndReset()
			if packets == 0 && dropped == 0 {
				continue
			}
			msg := fmt.Sprintf("Lidar stats (/sec): %.1f MB, %.1f packets, %.0f records",
				float64(bytes)/duration.Seconds()/(1024*1024),
				float64(packets)/duration.Seconds(),
				float64(records)/duration.Seconds())
			if sweeps > 0 {
				msg += fmt.Sprintf(", %d sweeps", sweeps)
			}
			if dropped > 0 {
				msg += fmt.Sprintf(", %d dropped", dropped)
			}
			log.Print(msg)
		}
	}
}

// runControlServer exposes the lifecycle control surface and health check.
func runControlServer(ctx context.Context, rt *pipeline.Runtime) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status": "ok", "service": "spinscan", "timestamp": "%s"}`,
			time.Now().UTC().Format(time.RFC3339))
	})

	mux.HandleFunc("/api/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"state": rt.Controller().State().String()})
	})

	mux.HandleFunc("/api/lifecycle/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		name := strings.TrimPrefix(r.URL.Path, "/api/lifecycle/")
		transition, err := lifecycle.ParseTransition(name)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}

		// Queued and applied by the decode loop at the next packet
		// boundary; bound the wait so a wedged loop surfaces as an error.
		reqCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		res := rt.Controller().Request(reqCtx, transition)

		body := map[string]string{
			"transition": transition.String(),
			"state":      res.State.String(),
			"result":     "ok",
		}
		status := http.StatusOK
		if res.Err != nil {
			body["result"] = "error"
			body["error"] = res.Err.Error()
			status = http.StatusConflict
		}
		writeJSON(w, status, body)
	})

	server := &http.Server{Addr: *listen, Handler: mux}

	go func() {
		log.Printf("Control server listening on %s", *listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Control server failed: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Control server shutdown error: %v", err)
		server.Close()
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
