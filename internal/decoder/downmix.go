// ABOUTME: Channel downmix to stereo
// ABOUTME: Extra channels are folded into both sides at half weight
package decoder

// extraChannelWeight is the contribution of every channel beyond the first two
const extraChannelWeight = 0.5

// Downmix folds planar audio with any channel count into left and right.
// Mono is duplicated. For two or more channels, channel 0 feeds left and
// channel 1 feeds right; every further channel is added to both at half
// weight and both sides are divided by the total weight.
func Downmix(planes [][]float32) (left, right []float32) {
	switch len(planes) {
	case 0:
		return nil, nil
	case 1:
		mono := planes[0]
		return append([]float32(nil), mono...), append([]float32(nil), mono...)
	}

	n := len(planes[0])
	left = make([]float32, n)
	right = make([]float32, n)
	copy(left, planes[0])
	copy(right, planes[1])

	if len(planes) == 2 {
		return left, right
	}

	weight := float32(1)
	for _, extra := range planes[2:] {
		for i := 0; i < n && i < len(extra); i++ {
			left[i] += extra[i] * extraChannelWeight
			right[i] += extra[i] * extraChannelWeight
		}
		weight += extraChannelWeight
	}
	for i := range left {
		left[i] /= weight
		right[i] /= weight
	}
	return left, right
}
