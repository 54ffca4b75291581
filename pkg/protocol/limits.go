package protocol

// Allocation and structural limits. Declared lengths are validated against
// these before any buffer is sized from wire input, so a corrupt or hostile
// length field cannot trigger an oversized allocation.
const (
	// BytesPerPixel is the payload pixel stride. Payloads are uncompressed
	// RGBA; a frame's payload never exceeds width*height*BytesPerPixel.
	BytesPerPixel = 4

	// DefaultMaxPayload is the default ceiling for a single frame payload
	// (64 MiB). A 4K RGBA frame is ~33 MiB, so this leaves headroom for
	// one oversized deployment without admitting absurd declarations.
	DefaultMaxPayload = 64 << 20

	// HardMaxPayload is the absolute payload ceiling (256 MiB). Even if a
	// deployment configures a higher limit, validation caps at this value.
	HardMaxPayload = 256 << 20

	// MaxDimension bounds frame width and height.
	MaxDimension = 16384

	// MaxChunkCount bounds the number of chunks declared by one header.
	MaxChunkCount = 4096
)
