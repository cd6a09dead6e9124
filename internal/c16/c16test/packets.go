// Package c16test builds synthetic MSOP packets for tests.
package c16test

import (
	"encoding/binary"
	"math"

	"github.com/banshee-data/spinscan/internal/c16/parse"
)

// PacketSpec controls synthetic packet generation. The zero value encodes
// a packet starting at azimuth 0 with a 0.4-degree step between blocks and
// no returns.
type PacketSpec struct {
	StartAzimuth float64 // degrees, azimuth of block 0
	AzimuthStep  float64 // degrees between consecutive blocks (default 0.4)
	Distance     float64 // meters, encoded into every return (0 = no return)
	Intensity    uint8   // intensity of every return
	DeviceUS     uint32  // device timestamp microseconds in the tail
	BadFlagBlock int     // 1-based block index to corrupt; 0 = none
}

// BuildPacket constructs a well-formed 1206-byte MSOP packet from spec.
func BuildPacket(spec PacketSpec) []byte {
	if spec.AzimuthStep == 0 {
		spec.AzimuthStep = 0.4
	}

	data := make([]byte, parse.PACKET_SIZE)
	rawDistance := uint16(math.Round(spec.Distance / parse.DISTANCE_RESOLUTION))

	for block := 0; block < parse.BLOCKS_PER_PACKET; block++ {
		offset := block * parse.BLOCK_SIZE

		flag := uint16(parse.BLOCK_FLAG)
		if spec.BadFlagBlock == block+1 {
			flag = 0xBEEF
		}
		binary.LittleEndian.PutUint16(data[offset:offset+2], flag)

		azimuthDeg := math.Mod(spec.StartAzimuth+float64(block)*spec.AzimuthStep, 360.0)
		rawAzimuth := uint16(math.Round(azimuthDeg/parse.AZIMUTH_RESOLUTION)) % parse.ROTATION_MAX_UNITS
		binary.LittleEndian.PutUint16(data[offset+2:offset+4], rawAzimuth)

		for ret := 0; ret < parse.RETURNS_PER_BLOCK; ret++ {
			returnOffset := offset + 4 + ret*parse.BYTES_PER_RETURN
			binary.LittleEndian.PutUint16(data[returnOffset:returnOffset+2], rawDistance)
			data[returnOffset+2] = spec.Intensity
		}
	}

	binary.LittleEndian.PutUint32(data[parse.TAIL_OFFSET:parse.TAIL_OFFSET+4], spec.DeviceUS)
	// Factory bytes observed on real C16 units.
	data[parse.TAIL_OFFSET+4] = 0x37
	data[parse.TAIL_OFFSET+5] = 0x10
	return data
}
