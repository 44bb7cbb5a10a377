// ABOUTME: Biquad filter coefficients and processing
// ABOUTME: Implements peaking and shelving designs in transposed direct form II
package dsp

import "math"

// Coefficients of a normalised biquad (a0 == 1)
type Coefficients struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// Identity passes input through unchanged
var Identity = Coefficients{B0: 1}

// Peaking designs a peaking EQ filter
func Peaking(sampleRate, freq, q, gainDB float64) Coefficients {
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / sampleRate
	cosW := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)

	b0 := 1 + alpha*a
	b1 := -2 * cosW
	b2 := 1 - alpha*a
	a0 := 1 + alpha/a
	a1 := -2 * cosW
	a2 := 1 - alpha/a

	return normalise(b0, b1, b2, a0, a1, a2)
}

// LowShelf designs a low shelving filter with the given slope
func LowShelf(sampleRate, freq, slope, gainDB float64) Coefficients {
	a, cosW, alpha := shelfParams(sampleRate, freq, slope, gainDB)
	sq := 2 * math.Sqrt(a) * alpha

	b0 := a * ((a + 1) - (a-1)*cosW + sq)
	b1 := 2 * a * ((a - 1) - (a+1)*cosW)
	b2 := a * ((a + 1) - (a-1)*cosW - sq)
	a0 := (a + 1) + (a-1)*cosW + sq
	a1 := -2 * ((a - 1) + (a+1)*cosW)
	a2 := (a + 1) + (a-1)*cosW - sq

	return normalise(b0, b1, b2, a0, a1, a2)
}

// HighShelf designs a high shelving filter with the given slope
func HighShelf(sampleRate, freq, slope, gainDB float64) Coefficients {
	a, cosW, alpha := shelfParams(sampleRate, freq, slope, gainDB)
	sq := 2 * math.Sqrt(a) * alpha

	b0 := a * ((a + 1) + (a-1)*cosW + sq)
	b1 := -2 * a * ((a - 1) + (a+1)*cosW)
	b2 := a * ((a + 1) + (a-1)*cosW - sq)
	a0 := (a + 1) - (a-1)*cosW + sq
	a1 := 2 * ((a - 1) - (a+1)*cosW)
	a2 := (a + 1) - (a-1)*cosW - sq

	return normalise(b0, b1, b2, a0, a1, a2)
}

func shelfParams(sampleRate, freq, slope, gainDB float64) (a, cosW, alpha float64) {
	a = math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / sampleRate
	cosW = math.Cos(w0)
	alpha = math.Sin(w0) / 2 * math.Sqrt(math.Max(0, (a+1/a)*(1/slope-1)+2))
	return a, cosW, alpha
}

func normalise(b0, b1, b2, a0, a1, a2 float64) Coefficients {
	return Coefficients{
		B0: b0 / a0,
		B1: b1 / a0,
		B2: b2 / a0,
		A1: a1 / a0,
		A2: a2 / a0,
	}
}

// state is the filter history of one biquad on one channel
type state struct {
	z1, z2 float64
}

func (s *state) process(c *Coefficients, x float64) float64 {
	y := c.B0*x + s.z1
	s.z1 = c.B1*x - c.A1*y + s.z2
	s.z2 = c.B2*x - c.A2*y
	return y
}
