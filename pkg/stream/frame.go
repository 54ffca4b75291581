package stream

// Frame is one decoded image payload with its metadata. Pixels is owned
// by the frame: the reassembler copies payload bytes out of the shared
// connection buffer, so a frame stays valid after the buffer is reused.
// Ownership transfers to whoever receives the frame from the dispatcher.
type Frame struct {
	Width  uint32
	Height uint32

	// Pixels is the raw payload, width*height*4 bytes of RGBA for
	// uncompressed deployments.
	Pixels []byte

	// FrameTimestamp is the render time on the producer's clock.
	// Zero unless the Stamped header variant is in use.
	FrameTimestamp float64

	// PoseTimestamp and PoseID identify the pose that was current when
	// the producer encoded this frame. Zero unless Stamped.
	PoseTimestamp float64
	PoseID        uint64
}
