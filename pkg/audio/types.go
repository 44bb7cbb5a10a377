// ABOUTME: Audio type definitions
// ABOUTME: Defines the canonical PCM format, decoded blocks and sample conversion
package audio

const (
	// Canonical output format
	SampleRate = 48000
	Channels   = 2
	BitDepth   = 16

	// Frame timing
	FrameDurationMs = 20
	FrameSamples    = SampleRate * FrameDurationMs / 1000 // per channel
	FrameLen        = FrameSamples * Channels            // interleaved int16 values
	FrameBytes      = FrameLen * (BitDepth / 8)
)

// Format describes an audio stream format
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// Canonical returns the node's output format for the given codec
func Canonical(codec string) Format {
	return Format{
		Codec:      codec,
		SampleRate: SampleRate,
		Channels:   Channels,
		BitDepth:   BitDepth,
	}
}

// Block is a chunk of canonical stereo float PCM
type Block struct {
	Left  []float32
	Right []float32
}

// Len returns the number of samples per channel
func (b Block) Len() int { return len(b.Left) }

// Append adds the samples of other to b
func (b *Block) Append(other Block) {
	b.Left = append(b.Left, other.Left...)
	b.Right = append(b.Right, other.Right...)
}

// FloatToInt16 scales a float sample into the int16 range with clamping
func FloatToInt16(sample float32) int16 {
	v := sample * 32767.0
	if v > 32767.0 {
		return 32767
	}
	if v < -32768.0 {
		return -32768
	}
	return int16(v)
}

// Int16ToFloat converts an int16 sample to float in [-1, 1)
func Int16ToFloat(sample int16) float32 {
	return float32(sample) / 32768.0
}

// IntToFloat normalises a signed integer sample of the given bit depth
func IntToFloat(sample int32, bitDepth int) float32 {
	if bitDepth <= 0 || bitDepth > 32 {
		return 0
	}
	scale := float32(int64(1) << uint(bitDepth-1))
	return float32(sample) / scale
}

// Interleave appends the block as interleaved int16 stereo to dst
func Interleave(dst []int16, b Block) []int16 {
	for i := range b.Left {
		dst = append(dst, FloatToInt16(b.Left[i]), FloatToInt16(b.Right[i]))
	}
	return dst
}
