package network

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/banshee-data/spinscan/internal/monitoring"
)

// DropCounter records packets dropped on the forwarding path.
type DropCounter interface {
	AddDropped()
}

// PacketForwarder mirrors received datagrams to another UDP address
// without blocking the receive loop. Packets are queued on a bounded
// channel and dropped when the consumer cannot keep up.
type PacketForwarder struct {
	conn        *net.UDPConn
	channel     chan []byte
	drops       DropCounter
	logInterval time.Duration
	address     string
}

// NewPacketForwarder dials the forwarding destination.
func NewPacketForwarder(addr string, port int, drops DropCounter, logInterval time.Duration) (*PacketForwarder, error) {
	forwardAddress := fmt.Sprintf("%s:%d", addr, port)
	udpAddr, err := net.ResolveUDPAddr("udp", forwardAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve forward address: %w", err)
	}

	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create forward connection: %w", err)
	}

	return &PacketForwarder{
		conn:        conn,
		channel:     make(chan []byte, 1000),
		drops:       drops,
		logInterval: logInterval,
		address:     forwardAddress,
	}, nil
}

// Start launches the forwarding goroutine. Write errors are counted and
// reported once per log interval to keep the log quiet under sustained
// failure.
func (f *PacketForwarder) Start(ctx context.Context) {
	go func() {
		droppedCount := 0
		var lastError error
		ticker := time.NewTicker(f.logInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case packet := <-f.channel:
				if _, err := f.conn.Write(packet); err != nil {
					droppedCount++
					lastError = err
				}
			case <-ticker.C:
				if droppedCount > 0 && lastError != nil {
					monitoring.Logf("Dropped %d forwarded packets due to errors (latest: %v)", droppedCount, lastError)
					droppedCount = 0
					lastError = nil
				}
			}
		}
	}()

	monitoring.Logf("Forwarding packets to %s", f.address)
}

// ForwardAsync queues a copy of the packet for forwarding. If the queue is
// full the packet is dropped and counted.
func (f *PacketForwarder) ForwardAsync(packet []byte) {
	packetCopy := make([]byte, len(packet))
	copy(packetCopy, packet)

	select {
	case f.channel <- packetCopy:
	default:
		if f.drops != nil {
			f.drops.AddDropped()
		}
	}
}

// Close closes the forwarding connection.
func (f *PacketForwarder) Close() error {
	return f.conn.Close()
}
