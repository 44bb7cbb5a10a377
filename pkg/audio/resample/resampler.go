// ABOUTME: Linear resampler for converting decoded audio to the canonical rate
// ABOUTME: Carries fractional position and the previous block's last sample across calls
package resample

// Resampler performs linear interpolation on planar float audio
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64
	lastSample []float32 // one sample per channel
	hasLast    bool
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		lastSample: make([]float32, channels),
	}
}

// Passthrough reports whether input and output rates are equal
func (r *Resampler) Passthrough() bool {
	return r.inputRate == r.outputRate
}

// Resample converts one planar block (one slice per channel) to the output
// rate. The last sample of the previous call is used as the left edge of
// this block, so consecutive blocks join without a discontinuity.
func (r *Resampler) Resample(input [][]float32) [][]float32 {
	output := make([][]float32, r.channels)
	if len(input) != r.channels || len(input[0]) == 0 {
		return output
	}

	if r.Passthrough() {
		for ch := range output {
			output[ch] = append([]float32(nil), input[ch]...)
		}
		return output
	}

	inputFrames := len(input[0])
	offset := 0
	if r.hasLast {
		offset = 1
	}
	extended := inputFrames + offset

	// sample returns frame i of the extended input (previous last sample + input)
	sample := func(ch, i int) float32 {
		if offset == 1 {
			if i == 0 {
				return r.lastSample[ch]
			}
			return input[ch][i-1]
		}
		return input[ch][i]
	}

	estimate := r.OutputSamplesNeeded(extended) + 1
	for ch := range output {
		output[ch] = make([]float32, 0, estimate)
	}

	for {
		idx := int(r.position)
		if idx >= extended-1 {
			break
		}
		frac := float32(r.position - float64(idx))

		for ch := 0; ch < r.channels; ch++ {
			s1 := sample(ch, idx)
			s2 := sample(ch, idx+1)
			output[ch] = append(output[ch], s1*(1-frac)+s2*frac)
		}

		r.position += r.ratio
	}

	// Next call's frame 0 is this call's final frame
	r.position -= float64(extended - 1)
	for ch := 0; ch < r.channels; ch++ {
		r.lastSample[ch] = input[ch][inputFrames-1]
	}
	r.hasLast = true

	return output
}

// Reset resets the resampler state
func (r *Resampler) Reset() {
	r.position = 0.0
	r.hasLast = false
	for i := range r.lastSample {
		r.lastSample[i] = 0
	}
}

// OutputSamplesNeeded estimates how many output frames an input frame count yields
func (r *Resampler) OutputSamplesNeeded(inputFrames int) int {
	return int(float64(inputFrames) / r.ratio)
}
