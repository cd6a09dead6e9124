package parse

// LSLiDAR C16 MSOP packet layout constants.
// The C16 sends 1206-byte UDP packets: 12 data blocks of 100 bytes each,
// followed by a 4-byte device timestamp and 2 factory bytes.
const (
	PACKET_SIZE       = 1206 // Total MSOP packet size in bytes
	BLOCKS_PER_PACKET = 12   // Data blocks per packet
	BLOCK_SIZE        = 100  // Flag (2) + azimuth (2) + 32 returns x 3 bytes

	// Marker bytes 0xFF 0xEE at the start of every data block, as read
	// little-endian from the wire.
	BLOCK_FLAG = 0xEEFF

	CHANNELS_PER_FIRING = 16 // Laser channels fired per sequence
	FIRINGS_PER_BLOCK   = 2  // Firing sequences packed into one block
	RETURNS_PER_BLOCK   = CHANNELS_PER_FIRING * FIRINGS_PER_BLOCK
	BYTES_PER_RETURN    = 3 // 2 bytes distance + 1 byte intensity

	FIRINGS_PER_PACKET = BLOCKS_PER_PACKET * FIRINGS_PER_BLOCK
	RECORDS_PER_PACKET = FIRINGS_PER_PACKET * CHANNELS_PER_FIRING // 384

	TAIL_OFFSET    = BLOCKS_PER_PACKET * BLOCK_SIZE // 1200
	TIMESTAMP_SIZE = 4                              // Device timestamp, microseconds, little-endian
	FACTORY_SIZE   = 2                              // Factory bytes closing the packet

	// Physical measurement conversion constants
	DISTANCE_RESOLUTION = 0.0025 // Distance unit: 0.25cm per LSB (converts raw values to meters)
	AZIMUTH_RESOLUTION  = 0.01   // Azimuth unit: 0.01 degrees per LSB
	ROTATION_MAX_UNITS  = 36000  // Raw azimuth value representing 360.00 degrees

	// Firing cadence from the C16 datasheet, used for per-record timestamps
	BLOCK_DURATION_US  = 110.592 // One block (two firing sequences)
	FIRING_DURATION_US = BLOCK_DURATION_US / FIRINGS_PER_BLOCK
)
