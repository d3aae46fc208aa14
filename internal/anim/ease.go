package anim

// Easing maps linear progress t in [0,1] to eased progress.
type Easing func(t float64) float64

// Linear is the identity easing.
func Linear(t float64) float64 { return t }

// OutQuad decelerates toward the end.
func OutQuad(t float64) float64 { return t * (2 - t) }

// InOutQuad accelerates then decelerates.
func InOutQuad(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return -1 + (4-2*t)*t
}
