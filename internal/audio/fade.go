package audio

// Smoothstep returns the smoothstep interpolation for t in [0,1]: 3t^2 - 2t^3.
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// FadeFrame scales a frame by the smoothstep of progress (0 = silent,
// 1 = unchanged) and returns a new frame. The input is not modified.
func FadeFrame(frame []int16, progress float64) []int16 {
	gain := Smoothstep(progress)
	out := make([]int16, len(frame))
	for i, s := range frame {
		v := float64(s) * gain
		// Clip to int16 range
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}
