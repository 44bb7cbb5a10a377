// ABOUTME: Audio output interface definition
// ABOUTME: Playback sink for canonical interleaved int16 frames
package output

// Output represents an audio output device
type Output interface {
	// Open initializes the output device
	Open(sampleRate, channels int) error

	// Write plays interleaved samples (blocks until written)
	Write(samples []int16) error

	// Close releases output resources
	Close() error
}
