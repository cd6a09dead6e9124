package parse

import (
	"embed"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

//go:embed sensor_configs/*.csv
var embeddedConfigs embed.FS

// CalibrationEntry holds the per-channel correction constants that
// compensate for mounting and manufacturing variance.
type CalibrationEntry struct {
	Channel             int     // 1-based laser channel id
	VerticalAngle       float64 // fixed elevation of this channel in degrees
	DistanceCorrection  float64 // additive distance correction in meters
	IntensityCorrection float64 // additive intensity correction, result clamped to 0-255
}

// CalibrationTable is the full set of per-channel corrections, indexed by
// channel id. It is read-only after load and safe for concurrent reads.
type CalibrationTable struct {
	entries [CHANNELS_PER_FIRING]CalibrationEntry
}

// LoadCalibration reads per-channel corrections from a CSV file with the
// header Channel,VerticalAngle,DistanceCorrection,IntensityCorrection.
// The file must supply exactly one row for each of the 16 channels.
func LoadCalibration(path string) (*CalibrationTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrCalibrationLoad, path, err)
	}
	defer file.Close()
	return readCalibration(file)
}

// LoadEmbeddedCalibration loads the factory-default calibration compiled
// into the binary.
func LoadEmbeddedCalibration() (*CalibrationTable, error) {
	file, err := embeddedConfigs.Open("sensor_configs/c16_calibration.csv")
	if err != nil {
		return nil, fmt.Errorf("%w: open embedded calibration: %v", ErrCalibrationLoad, err)
	}
	defer file.Close()
	return readCalibration(file)
}

func readCalibration(r io.Reader) (*CalibrationTable, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: read CSV: %v", ErrCalibrationLoad, err)
	}
	return parseCalibration(records)
}

func parseCalibration(records [][]string) (*CalibrationTable, error) {
	if len(records) < 2 {
		return nil, fmt.Errorf("%w: insufficient data in calibration file", ErrCalibrationLoad)
	}

	header := records[0]
	if len(header) != 4 ||
		strings.ToLower(header[0]) != "channel" ||
		strings.ToLower(header[1]) != "verticalangle" ||
		strings.ToLower(header[2]) != "distancecorrection" ||
		strings.ToLower(header[3]) != "intensitycorrection" {
		return nil, fmt.Errorf("%w: invalid header, expected: Channel,VerticalAngle,DistanceCorrection,IntensityCorrection", ErrCalibrationLoad)
	}

	table := &CalibrationTable{}
	seen := make(map[int]bool, CHANNELS_PER_FIRING)

	for i, record := range records[1:] {
		line := i + 2
		if len(record) != 4 {
			return nil, fmt.Errorf("%w: invalid record at line %d: expected 4 fields", ErrCalibrationLoad, line)
		}

		channel, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("%w: invalid channel number at line %d: %v", ErrCalibrationLoad, line, err)
		}
		if channel < 1 || channel > CHANNELS_PER_FIRING {
			return nil, fmt.Errorf("%w: channel %d out of range (1-%d) at line %d", ErrCalibrationLoad, channel, CHANNELS_PER_FIRING, line)
		}
		if seen[channel] {
			return nil, fmt.Errorf("%w: duplicate channel %d at line %d", ErrCalibrationLoad, channel, line)
		}
		seen[channel] = true

		vertical, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid vertical angle at line %d: %v", ErrCalibrationLoad, line, err)
		}
		distCorr, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid distance correction at line %d: %v", ErrCalibrationLoad, line, err)
		}
		intCorr, err := strconv.ParseFloat(record[3], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid intensity correction at line %d: %v", ErrCalibrationLoad, line, err)
		}

		table.entries[channel-1] = CalibrationEntry{
			Channel:             channel,
			VerticalAngle:       vertical,
			DistanceCorrection:  distCorr,
			IntensityCorrection: intCorr,
		}
	}

	if len(seen) != CHANNELS_PER_FIRING {
		return nil, fmt.Errorf("%w: calibration covers %d of %d channels", ErrCalibrationLoad, len(seen), CHANNELS_PER_FIRING)
	}

	return table, nil
}

// Lookup returns the calibration entry for a 1-based channel id.
func (t *CalibrationTable) Lookup(channel int) (CalibrationEntry, error) {
	if channel < 1 || channel > CHANNELS_PER_FIRING {
		return CalibrationEntry{}, fmt.Errorf("%w: channel %d (valid 1-%d)", ErrUnknownChannel, channel, CHANNELS_PER_FIRING)
	}
	return t.entries[channel-1], nil
}

// Validate checks the table is complete. Tables produced by LoadCalibration
// are always complete; this guards hand-constructed tables in tests.
func (t *CalibrationTable) Validate() error {
	for i := 0; i < CHANNELS_PER_FIRING; i++ {
		if t.entries[i].Channel != i+1 {
			return fmt.Errorf("%w: missing calibration for channel %d", ErrCalibrationLoad, i+1)
		}
	}
	return nil
}
