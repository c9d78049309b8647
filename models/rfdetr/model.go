// Package rfdetr - decodes end-to-end (NMS-free) detector outputs such as
// RF-DETR, RT-DETR and D-FINE once their heads are packed into
// [x1, y1, x2, y2, score, class] rows in input pixels.
package rfdetr

import (
	"github.com/nvr-ai/go-postprocess/models/model"
	"github.com/pkg/errors"
)

// RowSize is the number of channels per query.
const RowSize = 6

// RFDETR is the end-to-end decoder.
type RFDETR struct {
	options model.Options
	scaleX  float32
	scaleY  float32
}

// NewModel creates a decoder.
//
// Arguments:
//   - args: The decoder arguments.
//
// Returns:
//   - The decoder.
//   - An error if the options are invalid.
func NewModel(args model.NewModelArgs) (*RFDETR, error) {
	if err := args.Options.Validate(); err != nil {
		return nil, err
	}
	m := &RFDETR{options: args.Options}
	m.scaleX, m.scaleY = m.options.Scale()
	return m, nil
}

// Resize updates the normalization for a new input resolution.
func (m *RFDETR) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return errors.Wrapf(model.ErrInvalidOptions, "input size %dx%d", width, height)
	}
	m.options.InputWidth = width
	m.options.InputHeight = height
	m.scaleX, m.scaleY = m.options.Scale()
	return nil
}

// Family returns model.FamilyEndToEnd.
func (m *RFDETR) Family() model.Family { return model.FamilyEndToEnd }

// Layout returns model.LayoutAnchorMajor.
func (m *RFDETR) Layout() model.Layout { return model.LayoutAnchorMajor }

// Channels returns RowSize.
func (m *RFDETR) Channels() int { return RowSize }

// Anchors returns model.AnyAnchors: the query count is fixed by the model.
func (m *RFDETR) Anchors() int { return model.AnyAnchors }

// NeedsNMS returns false. Set-prediction heads are trained not to duplicate.
func (m *RFDETR) NeedsNMS() bool { return false }
