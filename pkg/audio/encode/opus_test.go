// ABOUTME: Unit tests for the Opus encoder
// ABOUTME: Tests construction and encoding of canonical frames
package encode

import (
	"math"
	"strings"
	"testing"

	"github.com/resonix-audio/resonix-go/pkg/audio"
)

func TestNewOpus(t *testing.T) {
	tests := []struct {
		name        string
		format      audio.Format
		wantErr     bool
		errContains string
	}{
		{"canonical stereo", audio.Canonical("opus"), false, ""},
		{"mono", audio.Format{Codec: "opus", SampleRate: 48000, Channels: 1, BitDepth: 16}, false, ""},
		{"invalid codec", audio.Canonical("pcm"), true, "invalid codec"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoder, err := NewOpus(tt.format)
			if tt.wantErr {
				if err == nil {
					t.Fatal("NewOpus() expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("NewOpus() error = %v, want error containing %v", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewOpus() unexpected error = %v", err)
			}
			encoder.Close()
		})
	}
}

func TestOpusEncodeFrame(t *testing.T) {
	encoder, err := NewOpus(audio.Canonical("opus"))
	if err != nil {
		t.Fatalf("NewOpus: %v", err)
	}
	defer encoder.Close()

	frame := make([]int16, audio.FrameLen)
	for i := 0; i < audio.FrameSamples; i++ {
		v := int16(math.Sin(2*math.Pi*440*float64(i)/audio.SampleRate) * 10000)
		frame[i*2] = v
		frame[i*2+1] = v
	}

	packet, err := encoder.Encode(frame)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(packet) == 0 || len(packet) > maxOpusPacket {
		t.Errorf("unexpected packet size %d", len(packet))
	}
}

func TestOpusRejectsShortFrame(t *testing.T) {
	encoder, err := NewOpus(audio.Canonical("opus"))
	if err != nil {
		t.Fatalf("NewOpus: %v", err)
	}
	if _, err := encoder.Encode(make([]int16, 100)); err == nil {
		t.Error("expected an error for a short frame")
	}
}
