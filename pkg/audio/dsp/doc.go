// ABOUTME: DSP package providing the equalizer and volume stage
// ABOUTME: Splits shared filter settings from per-stream filter history
// Package dsp implements the five band equalizer and volume gain applied to
// every decoded block before it is framed.
//
// Filters holds settings shared between control callers and the stream
// owner. Chain holds the biquad history and belongs to a single stream.
//
// Example:
//
//	f := dsp.NewFilters()
//	f.SetGain(0, 6) // +6 dB low shelf
//	chain := dsp.NewChain()
//	chain.Apply(block, f)
package dsp
