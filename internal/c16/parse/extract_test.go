package parse_test

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/banshee-data/spinscan/internal/c16"
	"github.com/banshee-data/spinscan/internal/c16/c16test"
	"github.com/banshee-data/spinscan/internal/c16/parse"
)

func embeddedDecoder(t *testing.T) *parse.Decoder {
	t.Helper()
	calib, err := parse.LoadEmbeddedCalibration()
	if err != nil {
		t.Fatalf("Failed to load embedded calibration: %v", err)
	}
	return parse.NewDecoder(calib)
}

func TestDecodePacketRecordCount(t *testing.T) {
	decoder := embeddedDecoder(t)
	packet := c16test.BuildPacket(c16test.PacketSpec{
		StartAzimuth: 10.0,
		Distance:     5.0,
		Intensity:    42,
	})

	records, err := decoder.DecodePacket(c16.RawPacket{Data: packet, Received: time.Now()})
	if err != nil {
		t.Fatalf("DecodePacket failed: %v", err)
	}

	// channels x firings-per-packet, including no-return records
	if len(records) != parse.RECORDS_PER_PACKET {
		t.Errorf("decoded %d records, want %d", len(records), parse.RECORDS_PER_PACKET)
	}
}

func TestDecodePacketNoReturns(t *testing.T) {
	decoder := embeddedDecoder(t)
	packet := c16test.BuildPacket(c16test.PacketSpec{StartAzimuth: 0})

	records, err := decoder.DecodePacket(c16.RawPacket{Data: packet, Received: time.Now()})
	if err != nil {
		t.Fatalf("DecodePacket failed: %v", err)
	}
	if len(records) != parse.RECORDS_PER_PACKET {
		t.Fatalf("decoded %d records, want %d", len(records), parse.RECORDS_PER_PACKET)
	}
	for i, r := range records {
		if r.Distance != 0 {
			t.Fatalf("record %d distance = %v, want 0 for no-return", i, r.Distance)
		}
	}
}

func TestDecodePacketAzimuthInterpolation(t *testing.T) {
	decoder := embeddedDecoder(t)
	packet := c16test.BuildPacket(c16test.PacketSpec{
		StartAzimuth: 100.0,
		AzimuthStep:  0.4,
		Distance:     5.0,
	})

	records, err := decoder.DecodePacket(c16.RawPacket{Data: packet, Received: time.Now()})
	if err != nil {
		t.Fatalf("DecodePacket failed: %v", err)
	}

	// First firing sits on the block azimuth, second firing is offset by
	// half the block-to-block delta.
	if got := records[0].Azimuth; math.Abs(got-100.0) > 1e-9 {
		t.Errorf("firing 0 azimuth = %v, want 100.0", got)
	}
	secondFiring := records[parse.CHANNELS_PER_FIRING].Azimuth
	if math.Abs(secondFiring-100.2) > 1e-9 {
		t.Errorf("firing 1 azimuth = %v, want 100.2", secondFiring)
	}
}

func TestDecodePacketAzimuthMonotonic(t *testing.T) {
	tests := []struct {
		name  string
		start float64
	}{
		{name: "mid-rotation", start: 123.4},
		{name: "crossing wrap", start: 359.8},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			decoder := embeddedDecoder(t)
			packet := c16test.BuildPacket(c16test.PacketSpec{
				StartAzimuth: tc.start,
				AzimuthStep:  0.4,
				Distance:     5.0,
			})

			records, err := decoder.DecodePacket(c16.RawPacket{Data: packet, Received: time.Now()})
			if err != nil {
				t.Fatalf("DecodePacket failed: %v", err)
			}

			wraps := 0
			for i := 1; i < len(records); i++ {
				delta := records[i].Azimuth - records[i-1].Azimuth
				if delta < 0 {
					if delta > -180.0 {
						t.Fatalf("azimuth regressed at record %d: %v -> %v",
							i, records[i-1].Azimuth, records[i].Azimuth)
					}
					wraps++
				}
			}
			if wraps > 1 {
				t.Errorf("observed %d wraps within one packet, want at most 1", wraps)
			}
		})
	}
}

func TestDecodePacketRoundTrip(t *testing.T) {
	// Calibration with a known correction on channel 3: +0.5m distance,
	// +10 intensity.
	calibPath := filepath.Join(t.TempDir(), "calib.csv")
	if err := os.WriteFile(calibPath, []byte(validCalibCSV()), 0o644); err != nil {
		t.Fatalf("write calib: %v", err)
	}
	calib, err := parse.LoadCalibration(calibPath)
	if err != nil {
		t.Fatalf("LoadCalibration failed: %v", err)
	}
	decoder := parse.NewDecoder(calib)

	received := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	packet := c16test.BuildPacket(c16test.PacketSpec{
		StartAzimuth: 100.0,
		AzimuthStep:  0.4,
		Distance:     10.0,
		Intensity:    100,
		DeviceUS:     123456,
	})

	records, err := decoder.DecodePacket(c16.RawPacket{Data: packet, Received: received})
	if err != nil {
		t.Fatalf("DecodePacket failed: %v", err)
	}

	want := []c16.FiringRecord{
		{Azimuth: 100.0, Channel: 1, Distance: 10.0, Intensity: 100, Elevation: -15.0, Timestamp: received, BlockID: 0},
		{Azimuth: 100.0, Channel: 2, Distance: 10.0, Intensity: 100, Elevation: 1.0, Timestamp: received, BlockID: 0},
		{Azimuth: 100.0, Channel: 3, Distance: 10.5, Intensity: 110, Elevation: -13.0, Timestamp: received, BlockID: 0},
	}
	if diff := cmp.Diff(want, records[:3], cmpopts.EquateApprox(0, 1e-9), cmpopts.EquateApproxTime(time.Microsecond)); diff != "" {
		t.Errorf("decoded records mismatch (-want +got):\n%s", diff)
	}

	if got := decoder.LastDeviceTimestamp(); got != 123456 {
		t.Errorf("LastDeviceTimestamp = %d, want 123456", got)
	}

	// Second firing sequence of block 0 is stamped half a block later.
	secondFiringTime := records[parse.CHANNELS_PER_FIRING].Timestamp
	wantOffset := time.Duration(parse.FIRING_DURATION_US * float64(time.Microsecond))
	if gap := secondFiringTime.Sub(received); gap < wantOffset-time.Microsecond || gap > wantOffset+time.Microsecond {
		t.Errorf("firing 1 timestamp offset = %v, want ~%v", gap, wantOffset)
	}
}

func TestDecodePacketDeviceTime(t *testing.T) {
	// Same instant expressed in UTC and in a fractional-hour zone: the
	// counter is microseconds within the UTC hour, so both must land on
	// the same base.
	utc := time.Date(2026, 3, 14, 10, 30, 17, 0, time.UTC)
	tests := []struct {
		name     string
		received time.Time
	}{
		{name: "utc", received: utc},
		{name: "fractional-hour zone", received: utc.In(time.FixedZone("IST", 5*3600+1800))},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			decoder := embeddedDecoder(t)
			decoder.SetTimestampMode(parse.TimestampModeDevice)

			packet := c16test.BuildPacket(c16test.PacketSpec{
				StartAzimuth: 10.0,
				Distance:     5.0,
				DeviceUS:     5_000_000, // 5s past the hour
			})

			records, err := decoder.DecodePacket(c16.RawPacket{Data: packet, Received: tc.received})
			if err != nil {
				t.Fatalf("DecodePacket failed: %v", err)
			}

			want := time.Date(2026, 3, 14, 10, 0, 5, 0, time.UTC)
			if got := records[0].Timestamp; !got.Equal(want) {
				t.Errorf("device-time timestamp = %v, want %v", got, want)
			}
		})
	}
}

func TestDecodePacketRangeLimits(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		want     float64
	}{
		{name: "below minimum", distance: 0.1, want: 0},
		{name: "in range", distance: 50.0, want: 50.0},
		{name: "past maximum", distance: 150.0, want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			decoder := embeddedDecoder(t)
			decoder.SetRangeLimits(0.15, 130.0)

			packet := c16test.BuildPacket(c16test.PacketSpec{
				StartAzimuth: 10.0,
				Distance:     tc.distance,
			})
			records, err := decoder.DecodePacket(c16.RawPacket{Data: packet, Received: time.Now()})
			if err != nil {
				t.Fatalf("DecodePacket failed: %v", err)
			}

			// Out-of-range returns become no-returns; the record count
			// invariant is unaffected.
			if len(records) != parse.RECORDS_PER_PACKET {
				t.Fatalf("decoded %d records, want %d", len(records), parse.RECORDS_PER_PACKET)
			}
			for i, r := range records {
				if math.Abs(r.Distance-tc.want) > 1e-9 {
					t.Fatalf("record %d distance = %v, want %v", i, r.Distance, tc.want)
				}
			}
		})
	}
}

func TestDecodePacketFramingError(t *testing.T) {
	decoder := embeddedDecoder(t)

	for _, size := range []int{0, 100, parse.PACKET_SIZE - 1, parse.PACKET_SIZE + 4} {
		_, err := decoder.DecodePacket(c16.RawPacket{Data: make([]byte, size)})
		if !errors.Is(err, parse.ErrFraming) {
			t.Errorf("size %d: error = %v, want ErrFraming", size, err)
		}
	}
}

func TestDecodePacketBadBlockFlag(t *testing.T) {
	decoder := embeddedDecoder(t)
	packet := c16test.BuildPacket(c16test.PacketSpec{
		StartAzimuth: 10.0,
		Distance:     5.0,
		BadFlagBlock: 5,
	})

	_, err := decoder.DecodePacket(c16.RawPacket{Data: packet, Received: time.Now()})
	if !errors.Is(err, parse.ErrDecode) {
		t.Errorf("error = %v, want ErrDecode", err)
	}
}

// validCalibCSV mirrors the embedded factory angles with a marker
// correction on channel 3.
func validCalibCSV() string {
	return `Channel,VerticalAngle,DistanceCorrection,IntensityCorrection
1,-15.0,0.0,0.0
2,1.0,0.0,0.0
3,-13.0,0.5,10.0
4,3.0,0.0,0.0
5,-11.0,0.0,0.0
6,5.0,0.0,0.0
7,-9.0,0.0,0.0
8,7.0,0.0,0.0
9,-7.0,0.0,0.0
10,9.0,0.0,0.0
11,-5.0,0.0,0.0
12,11.0,0.0,0.0
13,-3.0,0.0,0.0
14,13.0,0.0,0.0
15,-1.0,0.0,0.0
16,15.0,0.0,0.0
`
}
