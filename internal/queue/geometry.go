package queue

import (
	"fmt"

	"github.com/roach88/mergeq/internal/ir"
)

// Geometry is the slot layout of the queue container.
// Centers always has exactly Capacity entries.
type Geometry struct {
	Left      float64   `json:"left"`
	Width     float64   `json:"width"`
	Padding   float64   `json:"padding"`
	SlotWidth float64   `json:"slot_width"`
	TokenSize float64   `json:"token_size"`
	Centers   []ir.Vec2 `json:"centers"`
}

func computeGeometry(capacity int, left, width, padding float64) (Geometry, error) {
	if capacity <= 0 {
		return Geometry{}, fmt.Errorf("capacity must be positive, got %d", capacity)
	}
	if width < 0 {
		return Geometry{}, fmt.Errorf("width must be non-negative, got %g", width)
	}

	slotWidth := width / float64(capacity)
	size := slotWidth - padding
	if size < 0 {
		size = 0
	}

	centers := make([]ir.Vec2, capacity)
	for i := range centers {
		centers[i] = ir.Vec2{X: left + slotWidth*(float64(i)+0.5)}
	}

	return Geometry{
		Left:      left,
		Width:     width,
		Padding:   padding,
		SlotWidth: slotWidth,
		TokenSize: size,
		Centers:   centers,
	}, nil
}

// SlotCenter returns the center of slot i, clamped to the valid range.
func (g Geometry) SlotCenter(i int) ir.Vec2 {
	if len(g.Centers) == 0 {
		return ir.Vec2{}
	}
	if i < 0 {
		i = 0
	}
	if i >= len(g.Centers) {
		i = len(g.Centers) - 1
	}
	return g.Centers[i]
}
