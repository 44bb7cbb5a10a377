// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines the canonical format, Block type and sample conversion functions
// Package audio provides the fundamental types shared by the decoder, the
// DSP chain and the player.
//
// Everything downstream of the decoder works in one canonical format:
// 48 kHz stereo, delivered in 20 ms frames of 960 samples per channel.
//
//   - Block: planar float32 stereo PCM as produced by the decoder
//   - FloatToInt16: clamped conversion used when building output frames
//   - IntToFloat: normalisation for integer codecs of any bit depth
//
// Example:
//
//	frame := audio.Interleave(make([]int16, 0, audio.FrameLen), block)
package audio
