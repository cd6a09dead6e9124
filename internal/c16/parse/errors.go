package parse

import "errors"

var (
	// ErrFraming reports a datagram whose length does not match the fixed
	// MSOP packet size. Framing failures drop the packet, never the pipeline.
	ErrFraming = errors.New("packet framing mismatch")

	// ErrDecode reports a packet whose block marker bytes do not carry the
	// expected sensor signature. Such packets are dropped.
	ErrDecode = errors.New("packet decode failed")

	// ErrCalibrationLoad reports a missing, malformed or incomplete
	// calibration file.
	ErrCalibrationLoad = errors.New("calibration load failed")

	// ErrUnknownChannel reports a calibration lookup for a channel id
	// outside the configured range.
	ErrUnknownChannel = errors.New("unknown channel")
)
