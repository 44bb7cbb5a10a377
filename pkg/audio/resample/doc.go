// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts decoded audio to the canonical sample rate
// Package resample provides audio sample rate conversion.
//
// Uses linear interpolation between neighbouring samples. The resampler is
// stateful: the fractional read position and the last input sample carry
// over between calls so a stream can be fed block by block.
//
// Example:
//
//	r := resample.New(44100, 48000, 2)
//	out := r.Resample([][]float32{left, right})
package resample
