package postprocess

import (
	"fmt"
	"image"

	"github.com/chewxy/math32"
)

// Rect is an axis-aligned box in normalized [0,1] image coordinates, stored as
// its top-left corner plus size. Every decoder converts into this space.
type Rect struct {
	X, Y, W, H float32
}

// MinMaxRect builds a Rect from its corners.
func MinMaxRect(x0, y0, x1, y1 float32) Rect {
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// CenterRect builds a Rect from its center and size.
func CenterRect(cx, cy, w, h float32) Rect {
	return Rect{X: cx - w*0.5, Y: cy - h*0.5, W: w, H: h}
}

// XMax returns the right edge.
func (r Rect) XMax() float32 { return r.X + r.W }

// YMax returns the bottom edge.
func (r Rect) YMax() float32 { return r.Y + r.H }

// Center returns the center point.
func (r Rect) Center() (cx, cy float32) {
	return r.X + r.W*0.5, r.Y + r.H*0.5
}

// Area returns W*H, or 0 for degenerate and inverted boxes.
func (r Rect) Area() float32 {
	if r.W <= 0 || r.H <= 0 {
		return 0
	}
	return r.W * r.H
}

// IsFinite reports whether every coordinate is a finite number.
func (r Rect) IsFinite() bool {
	return Finite(r.X) && Finite(r.Y) && Finite(r.W) && Finite(r.H)
}

// IoU returns the Intersection over Union of r and o, in [0,1].
//
// The intersection corner is the max of the two top-left corners and the min
// of the two bottom-right corners; if that box is empty the IoU is 0. The union
// follows inclusion-exclusion: Area(A) + Area(B) - Intersection. Two
// degenerate (zero-area) boxes have IoU 0.
//
// Arguments:
//   - o: The other rectangle.
//
// Returns:
//   - The IoU score.
//
// @example
// a := Rect{X: 0, Y: 0, W: 0.5, H: 0.5}
// b := Rect{X: 0.25, Y: 0.25, W: 0.5, H: 0.5}
// a.IoU(b) // 0.0625 / 0.4375 ≈ 0.142857
func (r Rect) IoU(o Rect) float32 {
	ix0 := math32.Max(r.X, o.X)
	iy0 := math32.Max(r.Y, o.Y)
	ix1 := math32.Min(r.XMax(), o.XMax())
	iy1 := math32.Min(r.YMax(), o.YMax())

	iw := ix1 - ix0
	ih := iy1 - iy0
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih

	union := r.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Scale maps a normalized rect into pixel space of a width x height image.
func (r Rect) Scale(width, height int) image.Rectangle {
	w, h := float32(width), float32(height)
	return image.Rect(
		int(math32.Round(r.X*w)),
		int(math32.Round(r.Y*h)),
		int(math32.Round(r.XMax()*w)),
		int(math32.Round(r.YMax()*h)),
	).Canon()
}

func (r Rect) String() string {
	return fmt.Sprintf("(%.4f, %.4f, %.4f, %.4f)", r.X, r.Y, r.W, r.H)
}

// Finite reports whether v is neither NaN nor an infinity.
func Finite(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}
