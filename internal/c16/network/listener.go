// Package network receives raw MSOP datagrams from the sensor and hands
// verified packets to the pipeline. It also provides asynchronous packet
// mirroring and offline PCAP replay.
package network

import (
	"fmt"
	"net"
	"time"

	"github.com/banshee-data/spinscan/internal/c16"
	"github.com/banshee-data/spinscan/internal/c16/parse"
	"github.com/banshee-data/spinscan/internal/monitoring"
)

// DefaultReadTimeout bounds each socket read so the pipeline loop can
// service lifecycle requests and context cancellation between packets.
const DefaultReadTimeout = 100 * time.Millisecond

// UDPListener reads fixed-size MSOP packets from a UDP socket. Receive is
// pull-based: the pipeline loop owns the cadence, so packets are always
// handled one at a time with safe points in between.
type UDPListener struct {
	address     string
	rcvBuf      int
	readTimeout time.Duration
	conn        *net.UDPConn
	buffer      []byte
}

// UDPListenerConfig configures the UDP listener.
type UDPListenerConfig struct {
	Address     string        // host:port to bind
	RcvBuf      int           // socket receive buffer size in bytes
	ReadTimeout time.Duration // per-read deadline (default 100ms)
}

// NewUDPListener creates an unopened listener.
func NewUDPListener(config UDPListenerConfig) *UDPListener {
	timeout := config.ReadTimeout
	if timeout == 0 {
		timeout = DefaultReadTimeout
	}
	return &UDPListener{
		address:     config.Address,
		rcvBuf:      config.RcvBuf,
		readTimeout: timeout,
		buffer:      make([]byte, 2048), // C16 packets are 1206 bytes + margin
	}
}

// Open binds the UDP socket and applies the receive buffer size.
func (l *UDPListener) Open() error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	l.conn = conn

	if l.rcvBuf > 0 {
		if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
			monitoring.Logf("Warning: failed to set UDP receive buffer to %d bytes: %v", l.rcvBuf, err)
		}
	}

	monitoring.Logf("UDP listener started on %s with receive buffer %d bytes", l.address, l.rcvBuf)
	return nil
}

// Receive reads a single datagram. It returns ok=false when no data
// arrived within the read timeout; absence of data is not an error. A
// datagram whose length differs from the fixed MSOP size fails with
// parse.ErrFraming and is consumed.
func (l *UDPListener) Receive() (pkt c16.RawPacket, ok bool, err error) {
	if l.conn == nil {
		return c16.RawPacket{}, false, fmt.Errorf("listener not open")
	}

	if err := l.conn.SetReadDeadline(time.Now().Add(l.readTimeout)); err != nil {
		return c16.RawPacket{}, false, err
	}

	n, _, err := l.conn.ReadFromUDP(l.buffer)
	if err != nil {
		if netErr, isNet := err.(net.Error); isNet && netErr.Timeout() {
			return c16.RawPacket{}, false, nil
		}
		return c16.RawPacket{}, false, err
	}

	if n != parse.PACKET_SIZE {
		return c16.RawPacket{}, false, fmt.Errorf("%w: expected %d bytes, got %d", parse.ErrFraming, parse.PACKET_SIZE, n)
	}

	// Copy out of the reusable read buffer: RawPacket data is immutable
	// once captured.
	data := make([]byte, n)
	copy(data, l.buffer[:n])
	return c16.RawPacket{Data: data, Received: time.Now()}, true, nil
}

// LocalAddr returns the bound socket address, or nil before Open.
func (l *UDPListener) LocalAddr() net.Addr {
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Close releases the socket.
func (l *UDPListener) Close() error {
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}
