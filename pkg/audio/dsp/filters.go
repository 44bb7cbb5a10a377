// ABOUTME: Shared equalizer and volume settings with the per-stream filter chain
// ABOUTME: Coefficients are recomputed under a lock and snapshotted once per block
package dsp

import (
	"sync"

	"github.com/resonix-audio/resonix-go/pkg/audio"
)

// NumBands is the number of equalizer bands
const NumBands = 5

// BandFrequencies are the centre frequencies of the equalizer bands in Hz
var BandFrequencies = [NumBands]float64{60, 230, 910, 3600, 14000}

const (
	shelfSlope = 0.707
	peakingQ   = 1.0
)

// Band is a single gain update
type Band struct {
	Band   int     `json:"band"`
	GainDB float32 `json:"gain_db"`
}

// Filters holds the volume and equalizer settings of one player
type Filters struct {
	mu           sync.Mutex
	volume       float32
	eq           [NumBands]float32
	coefficients [NumBands]Coefficients
}

// NewFilters creates filters with unity volume and a flat equalizer
func NewFilters() *Filters {
	f := &Filters{volume: 1.0}
	f.recompute()
	return f
}

// SetVolume sets the linear output gain
func (f *Filters) SetVolume(v float32) {
	f.mu.Lock()
	f.volume = v
	f.mu.Unlock()
}

// Volume returns the current linear output gain
func (f *Filters) Volume() float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume
}

// SetGain sets one band's gain; out of range bands are ignored
func (f *Filters) SetGain(band int, gainDB float32) {
	f.SetEQ([]Band{{Band: band, GainDB: gainDB}})
}

// SetEQ applies every in-range band and recomputes coefficients once
func (f *Filters) SetEQ(bands []Band) {
	f.mu.Lock()
	defer f.mu.Unlock()

	changed := false
	for _, b := range bands {
		if b.Band < 0 || b.Band >= NumBands {
			continue
		}
		f.eq[b.Band] = b.GainDB
		changed = true
	}
	if changed {
		f.recompute()
	}
}

// EQ returns a copy of the band gains
func (f *Filters) EQ() [NumBands]float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.eq
}

// must hold mu
func (f *Filters) recompute() {
	for i, freq := range BandFrequencies {
		gain := float64(f.eq[i])
		switch i {
		case 0:
			f.coefficients[i] = LowShelf(audio.SampleRate, freq, shelfSlope, gain)
		case NumBands - 1:
			f.coefficients[i] = HighShelf(audio.SampleRate, freq, shelfSlope, gain)
		default:
			f.coefficients[i] = Peaking(audio.SampleRate, freq, peakingQ, gain)
		}
	}
}

func (f *Filters) snapshot() ([NumBands]Coefficients, float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.coefficients, f.volume
}

// Chain is the filter history of one stream. Not safe for concurrent use.
type Chain struct {
	left  [NumBands]state
	right [NumBands]state
}

// NewChain creates a chain with zeroed history
func NewChain() *Chain {
	return &Chain{}
}

// Apply filters the block in place with the current settings.
// History carries over between calls even when coefficients change.
func (c *Chain) Apply(b audio.Block, f *Filters) {
	coeffs, volume := f.snapshot()

	for i := range b.Left {
		l := float64(b.Left[i])
		r := float64(b.Right[i])
		for band := 0; band < NumBands; band++ {
			l = c.left[band].process(&coeffs[band], l)
			r = c.right[band].process(&coeffs[band], r)
		}
		b.Left[i] = float32(l) * volume
		b.Right[i] = float32(r) * volume
	}
}

// Reset clears the filter history
func (c *Chain) Reset() {
	*c = Chain{}
}
