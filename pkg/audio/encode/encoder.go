// ABOUTME: Encoder interface definition
// ABOUTME: Common interface and constructor for all frame encoders
package encode

import (
	"fmt"

	"github.com/resonix-audio/resonix-go/pkg/audio"
)

// Encoder encodes interleaved int16 frames
type Encoder interface {
	// Encode converts one frame to its wire payload
	Encode(frame []int16) ([]byte, error)

	// Close releases encoder resources
	Close() error
}

// New returns the encoder for format.Codec
func New(format audio.Format) (Encoder, error) {
	switch format.Codec {
	case "pcm", "":
		return NewPCM(format)
	case "opus":
		return NewOpus(format)
	}
	return nil, fmt.Errorf("unsupported codec: %s", format.Codec)
}
