package yolox

import "github.com/pkg/errors"

// DefaultStrides are the YOLOX head strides.
var DefaultStrides = []int{8, 16, 32}

// Anchor is one grid cell of one detection head.
type Anchor struct {
	GridX, GridY int
	Stride       int
}

// GenerateAnchors builds the anchor table for a width x height input.
//
// Anchors are ordered stride by stride, and row-major (y outer, x inner)
// within a stride, which is the order YOLOX concatenates its heads in.
//
// Arguments:
//   - width: The model input width in pixels.
//   - height: The model input height in pixels.
//   - strides: The stride of each detection head.
//
// Returns:
//   - The anchor table.
//   - An error if a dimension or stride is not positive.
//
// @example
// anchors, _ := GenerateAnchors(640, 640, DefaultStrides) // len(anchors) == 8400
func GenerateAnchors(width, height int, strides []int) ([]Anchor, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("yolox: invalid input size %dx%d", width, height)
	}
	if len(strides) == 0 {
		return nil, errors.New("yolox: no strides")
	}

	total := 0
	for _, stride := range strides {
		if stride <= 0 {
			return nil, errors.Errorf("yolox: invalid stride %d", stride)
		}
		total += (width / stride) * (height / stride)
	}

	anchors := make([]Anchor, 0, total)
	for _, stride := range strides {
		gridW := width / stride
		gridH := height / stride
		for y := 0; y < gridH; y++ {
			for x := 0; x < gridW; x++ {
				anchors = append(anchors, Anchor{GridX: x, GridY: y, Stride: stride})
			}
		}
	}
	return anchors, nil
}
