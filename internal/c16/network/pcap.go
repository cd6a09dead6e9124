//go:build pcap
// +build pcap

package network

import (
	"context"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/banshee-data/spinscan/internal/c16"
	"github.com/banshee-data/spinscan/internal/monitoring"
)

// ReplayPCAP feeds MSOP payloads from a capture file to the handler,
// stamping packets with their capture timestamps. Only available when
// building with the 'pcap' tag.
func ReplayPCAP(ctx context.Context, pcapFile string, udpPort int, handler func(c16.RawPacket) error) error {
	handle, err := pcap.OpenOffline(pcapFile)
	if err != nil {
		return fmt.Errorf("failed to open PCAP file %s: %w", pcapFile, err)
	}
	defer handle.Close()

	filter := fmt.Sprintf("udp port %d", udpPort)
	if err := handle.SetBPFFilter(filter); err != nil {
		return fmt.Errorf("failed to set BPF filter %q: %w", filter, err)
	}

	source := gopacket.NewPacketSource(handle, handle.LinkType())
	packetCount := 0

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("PCAP replay stopping (processed %d packets)", packetCount)
			return ctx.Err()
		case packet := <-source.Packets():
			if packet == nil {
				monitoring.Logf("PCAP replay complete: %d packets", packetCount)
				return nil
			}

			udpLayer := packet.Layer(layers.LayerTypeUDP)
			if udpLayer == nil {
				continue
			}
			udp, ok := udpLayer.(*layers.UDP)
			if !ok || len(udp.Payload) == 0 {
				continue
			}

			packetCount++
			raw := c16.RawPacket{
				Data:     udp.Payload,
				Received: packet.Metadata().Timestamp,
			}
			if err := handler(raw); err != nil {
				monitoring.Logf("Error handling PCAP packet %d: %v", packetCount, err)
			}
		}
	}
}
