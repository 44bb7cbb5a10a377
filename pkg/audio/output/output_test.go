// ABOUTME: Audio output tests
// ABOUTME: Covers volume scaling without opening a device
package output

import "testing"

func TestOtoImplementsOutput(t *testing.T) {
	var _ Output = (*Oto)(nil)
}

func TestWriteBeforeOpen(t *testing.T) {
	out := NewOto()
	if err := out.Write([]int16{1, 2}); err == nil {
		t.Error("expected error writing to an unopened output")
	}
}

func TestSetVolumeClamps(t *testing.T) {
	out := NewOto()
	out.SetVolume(150)
	if out.GetVolume() != 100 {
		t.Errorf("expected 100, got %d", out.GetVolume())
	}
	out.SetVolume(-5)
	if out.GetVolume() != 0 {
		t.Errorf("expected 0, got %d", out.GetVolume())
	}
}

func TestApplyVolume(t *testing.T) {
	tests := []struct {
		name   string
		volume int
		muted  bool
		want   int16
	}{
		{"full", 100, false, 20000},
		{"half", 50, false, 10000},
		{"zero", 0, false, 0},
		{"muted", 100, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := applyVolume([]int16{20000, -20000}, tt.volume, tt.muted)
			if got[0] != tt.want || got[1] != -tt.want {
				t.Errorf("expected ±%d, got %v", tt.want, got)
			}
		})
	}
}
