// ABOUTME: Tests for the failure taxonomy
// ABOUTME: Covers kind matching through wrapping and transient classification
package failure

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesByKind(t *testing.T) {
	err := New(ToolFailure, "yt-dlp", errors.New("exit status 1"))
	wrapped := fmt.Errorf("strategy failed: %w", err)

	if !errors.Is(wrapped, ErrToolFailure) {
		t.Error("expected wrapped tool failure to match ErrToolFailure")
	}
	if errors.Is(wrapped, ErrPolicyRejection) {
		t.Error("tool failure should not match ErrPolicyRejection")
	}
}

func TestNestedKinds(t *testing.T) {
	inner := New(ToolFailure, "yt-dlp", errors.New("timeout"))
	outer := New(ResolutionFailure, "youtube", inner)

	if KindOf(outer) != ResolutionFailure {
		t.Errorf("expected outer kind ResolutionFailure, got %v", KindOf(outer))
	}
	if !errors.Is(outer, ErrToolFailure) {
		t.Error("expected inner tool failure to be visible through the chain")
	}
}

func TestTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"tool failure", New(ToolFailure, "ffmpeg", nil), true},
		{"decode open", New(DecodeOpenFailure, "probe", nil), true},
		{"policy", New(PolicyRejection, "blocked", nil), false},
		{"source unavailable", New(SourceUnavailable, "missing", nil), false},
		{"resolution wrapping tool", New(ResolutionFailure, "youtube", New(ToolFailure, "yt-dlp", nil)), true},
		{"resolution without cause", New(ResolutionFailure, "spotify credentials", nil), false},
		{"tool wrapping not found", New(ToolFailure, "x", New(SourceUnavailable, "y", nil)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Transient(tt.err); got != tt.want {
				t.Errorf("Transient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorString(t *testing.T) {
	err := Newf(SourceUnavailable, "prepare", "file not found: %s", "/tmp/x")
	want := "source unavailable: prepare: file not found: /tmp/x"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}
