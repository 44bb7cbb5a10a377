// ABOUTME: Opus frame encoder
// ABOUTME: Wraps libopus to encode 20 ms stereo frames for bandwidth-limited listeners
package encode

import (
	"fmt"
	"log"

	"gopkg.in/hraban/opus.v2"

	"github.com/resonix-audio/resonix-go/pkg/audio"
)

// maxOpusPacket is the largest packet libopus produces
const maxOpusPacket = 4000

// OpusEncoder encodes Opus audio
type OpusEncoder struct {
	encoder   *opus.Encoder
	channels  int
	frameSize int // samples per channel
}

// NewOpus creates a new Opus encoder
func NewOpus(format audio.Format) (Encoder, error) {
	if format.Codec != "opus" {
		return nil, fmt.Errorf("invalid codec for Opus encoder: %s", format.Codec)
	}

	encoder, err := opus.NewEncoder(format.SampleRate, format.Channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}

	// 64 kbps per channel
	if err := encoder.SetBitrate(64000 * format.Channels); err != nil {
		log.Printf("Warning: Failed to set Opus bitrate: %v", err)
	}

	return &OpusEncoder{
		encoder:   encoder,
		channels:  format.Channels,
		frameSize: format.SampleRate * audio.FrameDurationMs / 1000,
	}, nil
}

// Encode converts one interleaved frame to an Opus packet
func (e *OpusEncoder) Encode(frame []int16) ([]byte, error) {
	if len(frame) != e.frameSize*e.channels {
		return nil, fmt.Errorf("opus frame must hold %d samples, got %d", e.frameSize*e.channels, len(frame))
	}

	data := make([]byte, maxOpusPacket)
	n, err := e.encoder.Encode(frame, data)
	if err != nil {
		return nil, fmt.Errorf("opus encode error: %w", err)
	}
	return data[:n], nil
}

// Close releases resources
func (e *OpusEncoder) Close() error {
	return nil
}
