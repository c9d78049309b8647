// Package models - registry for decoders.
package models

import (
	"github.com/nvr-ai/go-postprocess/models/model"
	"github.com/nvr-ai/go-postprocess/models/rfdetr"
	"github.com/nvr-ai/go-postprocess/models/yolov8"
	"github.com/nvr-ai/go-postprocess/models/yolox"
	"github.com/pkg/errors"
)

// ErrUnsupportedFamily is returned for an unknown decode family.
var ErrUnsupportedFamily = errors.New("unsupported decoder family")

// NewDecoder creates a decoder for the requested family.
//
// This factory is the single entry point for decoder creation, so adding a new
// head type only means adding a case here.
//
// Arguments:
//   - args: The family selector plus its options.
//
// Returns:
//   - model.Decoder: The decoder.
//   - error: If the family is unknown or its options are invalid.
//
// Example:
//
//	decoder, err := NewDecoder(model.NewModelArgs{
//	    Family: model.FamilyAnchorFree,
//	    Options: model.Options{
//	        InputWidth: 640, InputHeight: 640, ClassCount: 80, ConfidenceThreshold: 0.3,
//	    },
//	})
func NewDecoder(args model.NewModelArgs) (model.Decoder, error) {
	switch args.Family {
	case model.FamilyAnchorGrid:
		m, err := yolox.NewModel(args)
		if err != nil {
			return nil, errors.Wrap(err, "yolox")
		}
		return m, nil
	case model.FamilyAnchorFree:
		m, err := yolov8.NewModel(args)
		if err != nil {
			return nil, errors.Wrap(err, "yolov8")
		}
		return m, nil
	case model.FamilyEndToEnd:
		m, err := rfdetr.NewModel(args)
		if err != nil {
			return nil, errors.Wrap(err, "rfdetr")
		}
		return m, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedFamily, "%q", args.Family)
	}
}
