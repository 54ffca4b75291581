// Package testpattern generates synthetic RGBA frames for exercising
// a frame stream without a real renderer attached.
package testpattern

import (
	"github.com/framelink-dev/framelink/pkg/protocol"
)

// Generator produces a moving diagonal gradient. Each call to Next
// advances the pattern one step, so consecutive frames differ and
// dropped or reordered frames are visible at a glance.
type Generator struct {
	width  uint32
	height uint32
	pixels []byte
	step   uint32
}

// New allocates a generator for the given geometry. The pixel buffer
// is reused across frames; callers that retain a frame must copy it.
func New(width, height uint32) *Generator {
	return &Generator{
		width:  width,
		height: height,
		pixels: make([]byte, uint64(width)*uint64(height)*protocol.BytesPerPixel),
	}
}

// Next renders the next frame and returns the shared pixel buffer.
func (g *Generator) Next() []byte {
	offset := g.step
	g.step++

	i := 0
	for y := uint32(0); y < g.height; y++ {
		for x := uint32(0); x < g.width; x++ {
			v := byte(x + y + offset)
			g.pixels[i] = v
			g.pixels[i+1] = byte(y + offset)
			g.pixels[i+2] = byte(x ^ y)
			g.pixels[i+3] = 0xff
			i += 4
		}
	}
	return g.pixels
}

// Size returns the frame geometry.
func (g *Generator) Size() (width, height uint32) {
	return g.width, g.height
}
