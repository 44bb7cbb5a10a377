// ABOUTME: PCM frame encoder
// ABOUTME: Encodes int16 samples to little-endian bytes
package encode

import (
	"encoding/binary"
	"fmt"

	"github.com/resonix-audio/resonix-go/pkg/audio"
)

// PCMEncoder encodes 16-bit PCM
type PCMEncoder struct{}

// NewPCM creates a new PCM encoder
func NewPCM(format audio.Format) (Encoder, error) {
	if format.Codec != "pcm" && format.Codec != "" {
		return nil, fmt.Errorf("invalid codec for PCM encoder: %s", format.Codec)
	}
	if format.BitDepth != 0 && format.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16)", format.BitDepth)
	}
	return &PCMEncoder{}, nil
}

// Encode converts int16 samples to little-endian bytes
func (e *PCMEncoder) Encode(frame []int16) ([]byte, error) {
	return AppendPCM(make([]byte, 0, len(frame)*2), frame), nil
}

// AppendPCM appends frame to dst as little-endian 16-bit samples
func AppendPCM(dst []byte, frame []int16) []byte {
	for _, s := range frame {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(s))
	}
	return dst
}

// DecodePCM converts little-endian bytes back to samples
func DecodePCM(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}

// Close releases resources
func (e *PCMEncoder) Close() error {
	return nil
}
