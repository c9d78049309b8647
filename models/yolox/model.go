// Package yolox - decodes stride-based anchor-grid detector outputs.
//
// The head predicts, per anchor, [tx, ty, tw, th, objectness, class_0..class_C-1]
// in an anchor-major (anchors, 5+C) tensor. See
// https://github.com/Megvii-BaseDetection/YOLOX (yolox/models/yolo_head.py).
package yolox

import (
	"github.com/nvr-ai/go-postprocess/models/model"
	"github.com/pkg/errors"
)

// YOLOX is the anchor-grid decoder.
type YOLOX struct {
	options model.Options
	strides []int
	anchors []Anchor
	scaleX  float32
	scaleY  float32
}

// NewModel creates a decoder and its anchor table.
//
// Arguments:
//   - args: The decoder arguments. Strides default to DefaultStrides.
//
// Returns:
//   - The decoder.
//   - An error if the options or strides are invalid.
func NewModel(args model.NewModelArgs) (*YOLOX, error) {
	if err := args.Options.Validate(); err != nil {
		return nil, err
	}
	strides := args.Strides
	if len(strides) == 0 {
		strides = DefaultStrides
	}

	m := &YOLOX{
		options: args.Options,
		strides: append([]int(nil), strides...),
	}
	if err := m.Resize(args.Options.InputWidth, args.Options.InputHeight); err != nil {
		return nil, err
	}
	return m, nil
}

// Resize regenerates the anchor table for a new input resolution.
func (m *YOLOX) Resize(width, height int) error {
	anchors, err := GenerateAnchors(width, height, m.strides)
	if err != nil {
		return errors.Wrap(err, "resize")
	}
	m.anchors = anchors
	m.options.InputWidth = width
	m.options.InputHeight = height
	m.scaleX, m.scaleY = m.options.Scale()
	return nil
}

// Family returns model.FamilyAnchorGrid.
func (m *YOLOX) Family() model.Family { return model.FamilyAnchorGrid }

// Layout returns model.LayoutAnchorMajor.
func (m *YOLOX) Layout() model.Layout { return model.LayoutAnchorMajor }

// Channels returns 5 + ClassCount.
func (m *YOLOX) Channels() int { return 5 + m.options.ClassCount }

// Anchors returns the size of the anchor table.
func (m *YOLOX) Anchors() int { return len(m.anchors) }

// AnchorTable returns the anchor table. It must not be modified.
func (m *YOLOX) AnchorTable() []Anchor { return m.anchors }

// NeedsNMS returns true.
func (m *YOLOX) NeedsNMS() bool { return true }
