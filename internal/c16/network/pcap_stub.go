//go:build !pcap
// +build !pcap

package network

import (
	"context"
	"fmt"

	"github.com/banshee-data/spinscan/internal/c16"
)

// ReplayPCAP is unavailable without the 'pcap' build tag.
func ReplayPCAP(ctx context.Context, pcapFile string, udpPort int, handler func(c16.RawPacket) error) error {
	return fmt.Errorf("PCAP replay not available: rebuild with -tags pcap")
}
