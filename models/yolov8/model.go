// Package yolov8 - decodes anchor-free detector outputs (YOLOv8, YOLO11 and
// their segmentation variants).
//
// The raw output is channel-major (4+C+M, anchors): box center and size in
// input pixels, C class scores with no separate objectness, then M mask
// coefficients for segmentation heads. The pipeline transposes it to
// anchor-major before calling Decode.
package yolov8

import (
	"github.com/nvr-ai/go-postprocess/models/model"
	"github.com/pkg/errors"
)

// YOLOv8 is the anchor-free decoder.
type YOLOv8 struct {
	options   model.Options
	maskWidth int
	scaleX    float32
	scaleY    float32
}

// NewModel creates a decoder.
//
// Arguments:
//   - args: The decoder arguments. MaskCoefficients > 0 enables segmentation.
//
// Returns:
//   - The decoder.
//   - An error if the options are invalid.
func NewModel(args model.NewModelArgs) (*YOLOv8, error) {
	if err := args.Options.Validate(); err != nil {
		return nil, err
	}
	if args.MaskCoefficients < 0 {
		return nil, errors.Wrapf(model.ErrInvalidOptions, "mask coefficients %d", args.MaskCoefficients)
	}
	m := &YOLOv8{options: args.Options, maskWidth: args.MaskCoefficients}
	m.scaleX, m.scaleY = m.options.Scale()
	return m, nil
}

// Resize updates the normalization for a new input resolution.
func (m *YOLOv8) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return errors.Wrapf(model.ErrInvalidOptions, "input size %dx%d", width, height)
	}
	m.options.InputWidth = width
	m.options.InputHeight = height
	m.scaleX, m.scaleY = m.options.Scale()
	return nil
}

// Family returns model.FamilyAnchorFree.
func (m *YOLOv8) Family() model.Family { return model.FamilyAnchorFree }

// Layout returns model.LayoutChannelMajor.
func (m *YOLOv8) Layout() model.Layout { return model.LayoutChannelMajor }

// Channels returns 4 + ClassCount + MaskWidth.
func (m *YOLOv8) Channels() int { return 4 + m.options.ClassCount + m.maskWidth }

// Anchors returns model.AnyAnchors: the anchor count follows the input size.
func (m *YOLOv8) Anchors() int { return model.AnyAnchors }

// MaskWidth returns the number of mask coefficients per anchor.
func (m *YOLOv8) MaskWidth() int { return m.maskWidth }

// NeedsNMS returns true.
func (m *YOLOv8) NeedsNMS() bool { return true }
