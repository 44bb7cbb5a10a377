// ABOUTME: Frame encoders for websocket output
// ABOUTME: Provides the Encoder interface with PCM and Opus implementations
// Package encode turns canonical 20 ms frames into wire payloads.
//
// Supports: 16-bit little-endian PCM, Opus
//
// Every encoder accepts one interleaved stereo frame of int16 samples.
//
// Example:
//
//	encoder, err := encode.New(audio.Canonical("opus"))
//	packet, err := encoder.Encode(frame)
package encode
