package model

import (
	"image/color"
	"math"
)

// Box is an axis-aligned rectangle in frame pixel coordinates.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

func (b Box) Width() float64  { return math.Max(0, b.X2-b.X1) }
func (b Box) Height() float64 { return math.Max(0, b.Y2-b.Y1) }
func (b Box) Area() float64   { return b.Width() * b.Height() }

// IoU returns the intersection over union of two boxes.
func (b Box) IoU(o Box) float64 {
	inter := Box{
		X1: math.Max(b.X1, o.X1),
		Y1: math.Max(b.Y1, o.Y1),
		X2: math.Min(b.X2, o.X2),
		Y2: math.Min(b.Y2, o.Y2),
	}.Area()
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Clamp limits the box to a w x h frame.
func (b Box) Clamp(w, h int) Box {
	return Box{
		X1: clamp(b.X1, 0, float64(w)),
		Y1: clamp(b.Y1, 0, float64(h)),
		X2: clamp(b.X2, 0, float64(w)),
		Y2: clamp(b.Y2, 0, float64(h)),
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// Detection is one object found by a backend.
type Detection struct {
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"`
	ClassID    int     `json:"class_id"`
	ClassLabel string  `json:"class_label"`
}

// RenderStyle carries backend-specific drawing rules.
type RenderStyle struct {
	// Color fixes the stroke colour for every box; nil selects a per-class palette.
	Color *color.RGBA
	// ScoreOnly labels boxes with the bare score instead of "label score".
	ScoreOnly bool
	// SwapRB exchanges the red and blue channels before encoding.
	SwapRB bool
}
