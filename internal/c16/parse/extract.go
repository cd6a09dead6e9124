package parse

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/spinscan/internal/c16"
)

/*
LSLiDAR C16 MSOP Packet Decoder

The C16 sends 1206-byte UDP packets containing measurements from 16 laser
channels organized into 12 data blocks. Each block carries two full firing
sequences, so one packet decodes to 12 x 2 x 16 = 384 firing records.

PACKET STRUCTURE (1206 bytes total):
├── Data blocks (1200 bytes) - 12 blocks x 100 bytes, starting at offset 0
│   └── Each block: 2-byte flag (0xFFEE) + 2-byte azimuth + 32 returns x 3 bytes
├── Device timestamp (4 bytes) - microseconds, little-endian
└── Factory bytes (2 bytes)

The azimuth field holds the rotation angle of the first firing sequence in
the block, in 0.01-degree units. The second sequence's azimuth is not on
the wire; it is interpolated linearly from the delta to the next block's
azimuth. The final block reuses the previous block's delta.

Distances arrive in 0.25cm units and are converted to meters with the
per-channel distance correction applied. A raw distance of zero means no
return; the record is still emitted (with Distance 0) so every valid packet
yields exactly RECORDS_PER_PACKET records. Corrected distances outside the
configured range window are treated the same way: the sensor reports
garbage below its minimum range and past its rated maximum.
*/

// TimestampMode defines how record timestamps are derived.
type TimestampMode int

const (
	// TimestampModeSystemTime stamps records from the packet receipt time.
	TimestampModeSystemTime TimestampMode = iota
	// TimestampModeDevice combines the receipt hour with the device's
	// microseconds-of-hour counter from the packet tail.
	TimestampModeDevice
)

// Decoder converts raw MSOP packets into calibrated firing records.
// It holds the read-only calibration table and is driven by a single
// pipeline goroutine.
type Decoder struct {
	calib         *CalibrationTable
	timestampMode TimestampMode
	minRange      float64 // meters; returns closer than this are discarded
	maxRange      float64 // meters; 0 = unlimited
	lastDeviceUS  uint32  // device timestamp from the last decoded packet
}

// NewDecoder creates a decoder using the provided calibration table.
func NewDecoder(calib *CalibrationTable) *Decoder {
	return &Decoder{
		calib:         calib,
		timestampMode: TimestampModeSystemTime,
	}
}

// SetTimestampMode configures how record timestamps are derived.
func (d *Decoder) SetTimestampMode(mode TimestampMode) {
	d.timestampMode = mode
}

// SetRangeLimits configures the usable distance window in meters. Corrected
// distances outside [min, max] are treated as no-returns: the record is
// still emitted, with Distance 0. A max of 0 disables the upper limit.
func (d *Decoder) SetRangeLimits(min, max float64) {
	d.minRange = min
	d.maxRange = max
}

// LastDeviceTimestamp returns the device microsecond counter from the most
// recently decoded packet.
func (d *Decoder) LastDeviceTimestamp() uint32 {
	return d.lastDeviceUS
}

// DecodePacket decodes one MSOP packet into an ordered sequence of firing
// records. Valid packets always produce RECORDS_PER_PACKET records, in
// firing order, with azimuths non-decreasing modulo the 360-degree wrap.
func (d *Decoder) DecodePacket(raw c16.RawPacket) ([]c16.FiringRecord, error) {
	if len(raw.Data) != PACKET_SIZE {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrFraming, PACKET_SIZE, len(raw.Data))
	}
	data := raw.Data

	// Validate block flags and collect raw azimuths before emitting any
	// records: a bad flag drops the whole packet.
	var azimuths [BLOCKS_PER_PACKET]uint16
	for block := 0; block < BLOCKS_PER_PACKET; block++ {
		offset := block * BLOCK_SIZE
		flag := binary.LittleEndian.Uint16(data[offset : offset+2])
		if flag != BLOCK_FLAG {
			return nil, fmt.Errorf("%w: block %d flag 0x%04X, want 0x%04X", ErrDecode, block, flag, BLOCK_FLAG)
		}
		azimuth := binary.LittleEndian.Uint16(data[offset+2 : offset+4])
		if azimuth >= ROTATION_MAX_UNITS {
			return nil, fmt.Errorf("%w: block %d azimuth %d exceeds %d", ErrDecode, block, azimuth, ROTATION_MAX_UNITS)
		}
		azimuths[block] = azimuth
	}

	d.lastDeviceUS = binary.LittleEndian.Uint32(data[TAIL_OFFSET : TAIL_OFFSET+TIMESTAMP_SIZE])
	packetTime := d.packetTime(raw.Received)

	// Block-to-block azimuth deltas in 0.01-degree units, wrap-aware. The
	// final block has no successor and reuses the previous delta.
	var deltas [BLOCKS_PER_PACKET]float64
	for block := 0; block < BLOCKS_PER_PACKET-1; block++ {
		deltas[block] = float64((int(azimuths[block+1]) - int(azimuths[block]) + ROTATION_MAX_UNITS) % ROTATION_MAX_UNITS)
	}
	deltas[BLOCKS_PER_PACKET-1] = deltas[BLOCKS_PER_PACKET-2]

	records := make([]c16.FiringRecord, 0, RECORDS_PER_PACKET)
	for block := 0; block < BLOCKS_PER_PACKET; block++ {
		blockOffset := block * BLOCK_SIZE
		for firing := 0; firing < FIRINGS_PER_BLOCK; firing++ {
			// Linear interpolation of the firing azimuth within the block.
			azRaw := float64(azimuths[block]) + float64(firing)*deltas[block]/FIRINGS_PER_BLOCK
			azimuth := math.Mod(azRaw*AZIMUTH_RESOLUTION, 360.0)

			firingTime := packetTime.Add(time.Duration(
				(float64(block)*BLOCK_DURATION_US + float64(firing)*FIRING_DURATION_US) * float64(time.Microsecond)))

			for channel := 0; channel < CHANNELS_PER_FIRING; channel++ {
				returnOffset := blockOffset + 4 + (firing*CHANNELS_PER_FIRING+channel)*BYTES_PER_RETURN
				rawDistance := binary.LittleEndian.Uint16(data[returnOffset : returnOffset+2])
				rawIntensity := data[returnOffset+2]

				entry := d.calib.entries[channel]

				var distance float64
				if rawDistance > 0 {
					distance = float64(rawDistance)*DISTANCE_RESOLUTION + entry.DistanceCorrection
					if distance < d.minRange || (d.maxRange > 0 && distance > d.maxRange) {
						distance = 0
					}
				}

				records = append(records, c16.FiringRecord{
					Azimuth:   azimuth,
					Channel:   entry.Channel,
					Distance:  distance,
					Intensity: correctIntensity(rawIntensity, entry.IntensityCorrection),
					Elevation: entry.VerticalAngle,
					Timestamp: firingTime,
					BlockID:   block,
				})
			}
		}
	}

	return records, nil
}

// packetTime derives the base timestamp for the packet's first firing.
func (d *Decoder) packetTime(received time.Time) time.Time {
	if received.IsZero() {
		received = time.Now()
	}
	if d.timestampMode == TimestampModeDevice {
		// The device counter holds microseconds within the current UTC
		// hour; truncate on the UTC clock so fractional-hour zone offsets
		// cannot shift the base.
		return received.UTC().Truncate(time.Hour).Add(time.Duration(d.lastDeviceUS) * time.Microsecond)
	}
	return received
}

func correctIntensity(raw uint8, correction float64) uint8 {
	corrected := float64(raw) + correction
	if corrected < 0 {
		return 0
	}
	if corrected > 255 {
		return 255
	}
	return uint8(math.Round(corrected))
}
