package c16

import (
	"math"
	"time"
)

// RawPacket is a single MSOP datagram captured off the wire plus its
// receipt time. The buffer is copied out of the socket read buffer and is
// never mutated after capture.
type RawPacket struct {
	Data     []byte
	Received time.Time
}

// FiringRecord is one decoded laser return: the calibrated measurement for
// a single channel at one interpolated azimuth. Distance 0 means no return
// was detected for that channel.
type FiringRecord struct {
	Azimuth   float64 // degrees, [0, 360)
	Channel   int     // 1-based channel id (1-16)
	Distance  float64 // meters, calibrated; 0 = no return
	Intensity uint8
	Elevation float64 // degrees, from the channel's calibrated vertical angle
	Timestamp time.Time
	BlockID   int // index of the source data block within the packet
}

// Point is a Cartesian sensor-frame point derived from a FiringRecord.
// Coordinate convention: X=right, Y=forward, Z=up.
type Point struct {
	X, Y, Z   float64
	Intensity uint8
	Channel   int
	Timestamp time.Time
}

// SphericalToCartesian converts distance (meters), azimuth (degrees) and
// elevation (degrees) into Cartesian sensor-frame coordinates.
func SphericalToCartesian(distance, azimuthDeg, elevationDeg float64) (x, y, z float64) {
	azimuthRad := azimuthDeg * math.Pi / 180.0
	elevationRad := elevationDeg * math.Pi / 180.0

	cosElevation := math.Cos(elevationRad)
	sinElevation := math.Sin(elevationRad)

	x = distance * cosElevation * math.Sin(azimuthRad)
	y = distance * cosElevation * math.Cos(azimuthRad)
	z = distance * sinElevation
	return
}

// ToPoint converts a firing record to a Cartesian point.
func (r FiringRecord) ToPoint() Point {
	x, y, z := SphericalToCartesian(r.Distance, r.Azimuth, r.Elevation)
	return Point{
		X:         x,
		Y:         y,
		Z:         z,
		Intensity: r.Intensity,
		Channel:   r.Channel,
		Timestamp: r.Timestamp,
	}
}
