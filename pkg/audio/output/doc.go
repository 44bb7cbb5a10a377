// ABOUTME: Audio output package for local playback
// ABOUTME: Provides the Output interface and an oto implementation
// Package output plays relayed PCM on the local sound device.
//
// Example:
//
//	out := output.NewOto()
//	err := out.Open(48000, 2)
//	err = out.Write(frame)
package output
