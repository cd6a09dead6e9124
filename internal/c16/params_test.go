package c16

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeParamsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDeviceParams(t *testing.T) {
	path := writeParamsFile(t, `
device_ip: 10.0.0.42
msop_port: 2370
frame_id: roof_lidar
rpm: 1200
use_device_time: true
`)

	params, err := LoadDeviceParams(path)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.42", params.DeviceIP)
	assert.Equal(t, 2370, params.MSOPPort)
	assert.Equal(t, "roof_lidar", params.FrameID)
	assert.Equal(t, 1200, params.RPM)
	assert.True(t, params.UseDeviceTime)

	// Omitted fields keep the factory values.
	defaults := DefaultDeviceParams()
	assert.Equal(t, defaults.MinRange, params.MinRange)
	assert.Equal(t, defaults.MaxRange, params.MaxRange)
	assert.Equal(t, defaults.WrapThreshold, params.WrapThreshold)
}

func TestLoadDeviceParamsMissingFile(t *testing.T) {
	_, err := LoadDeviceParams(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadDeviceParamsMalformedYAML(t *testing.T) {
	path := writeParamsFile(t, "msop_port: [not a port\n")
	_, err := LoadDeviceParams(path)
	assert.Error(t, err)
}

func TestDeviceParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*DeviceParams)
	}{
		{name: "port zero", mutate: func(p *DeviceParams) { p.MSOPPort = 0 }},
		{name: "port too large", mutate: func(p *DeviceParams) { p.MSOPPort = 70000 }},
		{name: "rpm too slow", mutate: func(p *DeviceParams) { p.RPM = 100 }},
		{name: "rpm too fast", mutate: func(p *DeviceParams) { p.RPM = 3000 }},
		{name: "inverted range", mutate: func(p *DeviceParams) { p.MinRange = 10; p.MaxRange = 5 }},
		{name: "wrap threshold zero", mutate: func(p *DeviceParams) { p.WrapThreshold = 0 }},
		{name: "wrap threshold full circle", mutate: func(p *DeviceParams) { p.WrapThreshold = 360 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			params := DefaultDeviceParams()
			tc.mutate(&params)
			assert.Error(t, params.Validate())
		})
	}

	defaults := DefaultDeviceParams()
	assert.NoError(t, defaults.Validate())
}
