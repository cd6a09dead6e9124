package c16

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DeviceParams is the YAML parameter file handed to the pipeline at
// startup. It mirrors the parameter set the C16 vendor tooling ships with
// its launch configuration: network endpoints, spin rate and range limits.
// Fields omitted from the file keep the defaults from DefaultDeviceParams.
type DeviceParams struct {
	DeviceIP        string  `yaml:"device_ip"`        // sensor address, informational
	MSOPPort        int     `yaml:"msop_port"`        // UDP port for data packets
	FrameID         string  `yaml:"frame_id"`         // sensor identifier used in sweep ids
	RPM             int     `yaml:"rpm"`              // motor spin rate
	MinRange        float64 `yaml:"min_range"`        // meters
	MaxRange        float64 `yaml:"max_range"`        // meters
	WrapThreshold   float64 `yaml:"wrap_threshold"`   // degrees of azimuth drop that seals a sweep
	CalibrationFile string  `yaml:"calibration_file"` // path to per-channel calibration CSV; empty = embedded defaults
	UseDeviceTime   bool    `yaml:"use_device_time"`  // stamp records from the packet tail instead of receipt time
}

// DefaultDeviceParams returns the factory parameter set for a C16 spinning
// at 10 Hz.
func DefaultDeviceParams() DeviceParams {
	return DeviceParams{
		DeviceIP:      "192.168.1.200",
		MSOPPort:      2368,
		FrameID:       "c16",
		RPM:           600,
		MinRange:      0.15,
		MaxRange:      130.0,
		WrapThreshold: 180.0,
	}
}

// LoadDeviceParams reads and parses a YAML device parameter file, filling
// unset fields from the defaults.
func LoadDeviceParams(path string) (*DeviceParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read device params: %w", err)
	}
	params := DefaultDeviceParams()
	if err := yaml.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("parse device params: %w", err)
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid device params: %w", err)
	}
	return &params, nil
}

// Validate checks the parameter values are usable.
func (p *DeviceParams) Validate() error {
	if p.MSOPPort <= 0 || p.MSOPPort > 65535 {
		return fmt.Errorf("msop_port %d out of range", p.MSOPPort)
	}
	if p.RPM < 300 || p.RPM > 1200 {
		return fmt.Errorf("rpm %d out of range (300-1200)", p.RPM)
	}
	if p.MinRange < 0 || p.MaxRange <= p.MinRange {
		return fmt.Errorf("invalid range limits [%f, %f]", p.MinRange, p.MaxRange)
	}
	if p.WrapThreshold <= 0 || p.WrapThreshold >= 360 {
		return fmt.Errorf("wrap_threshold %f out of range (0-360)", p.WrapThreshold)
	}
	return nil
}
