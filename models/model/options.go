package model

import "github.com/pkg/errors"

// ErrInvalidOptions is returned for decoder options that cannot describe a model.
var ErrInvalidOptions = errors.New("model: invalid decoder options")

// Options is the decoder configuration shared by every family.
type Options struct {
	// InputWidth is the model input width in pixels, used for normalization.
	InputWidth int `json:"input_width" yaml:"input_width"`
	// InputHeight is the model input height in pixels, used for normalization.
	InputHeight int `json:"input_height" yaml:"input_height"`
	// ClassCount is the number of class score channels.
	ClassCount int `json:"class_count" yaml:"class_count"`
	// ConfidenceThreshold filters proposals below this probability.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`
	// KeepOutOfBounds disables the rejection of anchors whose decoded center
	// lies outside the normalized image.
	KeepOutOfBounds bool `json:"keep_out_of_bounds" yaml:"keep_out_of_bounds"`
}

// NewModelArgs is the arguments for creating a new decoder.
type NewModelArgs struct {
	Family  Family  `json:"family" yaml:"family"`
	Options Options `json:"options" yaml:"options"`
	// Strides lists the anchor-grid stride levels.
	Strides []int `json:"strides" yaml:"strides"`
	// MaskCoefficients is the trailing mask coefficient count of segmentation
	// heads (anchor-free only).
	MaskCoefficients int `json:"mask_coefficients" yaml:"mask_coefficients"`
}

// Validate checks the options every decoder relies on.
func (o Options) Validate() error {
	if o.InputWidth <= 0 || o.InputHeight <= 0 {
		return errors.Wrapf(ErrInvalidOptions, "input size %dx%d", o.InputWidth, o.InputHeight)
	}
	if o.ClassCount <= 0 {
		return errors.Wrapf(ErrInvalidOptions, "class count %d", o.ClassCount)
	}
	// Written as a negation so NaN fails too.
	if !(o.ConfidenceThreshold >= 0 && o.ConfidenceThreshold <= 1) {
		return errors.Wrapf(ErrInvalidOptions, "confidence threshold %v outside [0,1]", o.ConfidenceThreshold)
	}
	return nil
}

// Scale returns the factors that map input pixels to [0,1].
func (o Options) Scale() (sx, sy float32) {
	return 1 / float32(o.InputWidth), 1 / float32(o.InputHeight)
}
