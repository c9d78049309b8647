// Package detector - per-frame detection post-processing pipeline.
package detector

import (
	"os"
	"path/filepath"

	"github.com/nvr-ai/go-postprocess/models"
	"github.com/nvr-ai/go-postprocess/models/model"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidConfig is returned for configurations that cannot run.
	ErrInvalidConfig = errors.New("detector: invalid config")
	// ErrClassCount is returned when the class count disagrees with the label names.
	ErrClassCount = errors.New("detector: class count does not match labels")
	// ErrChannels is returned when an output tensor has the wrong channel count.
	ErrChannels = errors.New("detector: unexpected channel count")
	// ErrAnchors is returned when an output tensor has the wrong anchor count
	// for a decoder with a fixed anchor table.
	ErrAnchors = errors.New("detector: unexpected anchor count")
	// ErrNoMask is returned when mask coefficients are requested from a
	// configuration without them.
	ErrNoMask = errors.New("detector: no mask coefficients")
)

// Config represents the configuration of a detection post-processing pipeline.
type Config struct {
	// Family selects the box decoder.
	Family model.Family `json:"family" yaml:"family"`

	// InputWidth and InputHeight are the model input dimensions in pixels,
	// used to normalize boxes to [0,1].
	InputWidth  int `json:"input_width" yaml:"input_width"`
	InputHeight int `json:"input_height" yaml:"input_height"`

	// ConfidenceThreshold filters proposals below this probability.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`

	// NMSThreshold is the IoU above which a lower-probability box of the same
	// label is suppressed.
	NMSThreshold float32 `json:"nms_threshold" yaml:"nms_threshold"`

	// ClassAgnosticNMS suppresses overlaps across labels as well.
	ClassAgnosticNMS bool `json:"class_agnostic_nms" yaml:"class_agnostic_nms"`

	// MaxDetections is the capacity of the detection buffer.
	MaxDetections int `json:"max_detections" yaml:"max_detections"`

	// MaxProposals is the capacity of the proposal buffer. Zero means
	// MaxDetections.
	MaxProposals int `json:"max_proposals" yaml:"max_proposals"`

	// ClassCount is the number of class score channels. Zero means the number
	// of labels.
	ClassCount int `json:"class_count" yaml:"class_count"`

	// Labels lists class names inline. Takes precedence over LabelFile and LabelSet.
	Labels []string `json:"labels" yaml:"labels"`

	// LabelFile is a newline separated label file.
	LabelFile string `json:"label_file" yaml:"label_file"`

	// LabelSet selects a built-in label list. Left empty, coco is used only
	// when ClassCount, Labels and LabelFile are all unset, so a bare
	// class_count needs no label list.
	LabelSet models.LabelSet `json:"label_set" yaml:"label_set"`

	// Strides are the anchor-grid head strides. Empty means 8, 16, 32.
	Strides []int `json:"strides" yaml:"strides"`

	// MaskCoefficients is the number of trailing mask coefficient channels of
	// a segmentation head (anchor-free family only).
	MaskCoefficients int `json:"mask_coefficients" yaml:"mask_coefficients"`

	// KeepOutOfBounds keeps anchors whose decoded center is outside the image.
	KeepOutOfBounds bool `json:"keep_out_of_bounds" yaml:"keep_out_of_bounds"`

	// Workers is the number of goroutines for transpose and decode. Zero means
	// one per CPU.
	Workers int `json:"workers" yaml:"workers"`
}

// DefaultConfig returns a configuration for an 80-class COCO YOLOv8/YOLO11
// detector at 640x640.
//
// Returns:
//   - Config: Ready-to-use configuration.
//
// @example
// config := DefaultConfig()
// config.ConfidenceThreshold = 0.4
// d, err := New(config)
func DefaultConfig() Config {
	return Config{
		Family:              model.FamilyAnchorFree,
		InputWidth:          640,
		InputHeight:         640,
		ConfidenceThreshold: 0.3,
		NMSThreshold:        0.45,
		MaxDetections:       100,
		MaxProposals:        1000,
	}
}

// LoadConfig reads a YAML configuration file on top of DefaultConfig. A
// relative label_file is resolved against the config file's directory.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	config, err := ParseConfig(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}
	if config.LabelFile != "" && !filepath.IsAbs(config.LabelFile) {
		config.LabelFile = filepath.Join(filepath.Dir(path), config.LabelFile)
	}
	return config, nil
}

// ParseConfig decodes YAML on top of DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, errors.Wrap(err, "parse config")
	}
	return config, nil
}

// ResolveLabels loads the configured labels: inline Labels first, then
// LabelFile, then LabelSet. With none of them and no ClassCount it falls back
// to the coco set. It returns nil when only ClassCount is configured.
func (c Config) ResolveLabels() (*models.Labels, error) {
	switch {
	case len(c.Labels) > 0:
		return models.NewLabels(c.Labels), nil
	case c.LabelFile != "":
		f, err := os.Open(c.LabelFile)
		if err != nil {
			return nil, errors.Wrap(err, "open label file")
		}
		defer f.Close()
		return models.ParseLabels(f)
	case c.LabelSet != "":
		return models.BuiltinLabels(c.LabelSet)
	case c.ClassCount == 0:
		return models.BuiltinLabels(models.LabelSetCOCO)
	default:
		return nil, nil
	}
}

// Validate checks the configuration against the resolved labels.
//
// Arguments:
//   - labels: The resolved label names, or nil.
//
// Returns:
//   - ErrClassCount if ClassCount disagrees with the labels.
//   - ErrInvalidConfig for any other unusable value.
func (c Config) Validate(labels *models.Labels) error {
	if labels != nil && c.ClassCount != 0 && c.ClassCount != labels.Len() {
		return errors.Wrapf(ErrClassCount, "class_count %d, %d labels", c.ClassCount, labels.Len())
	}
	if c.classCount(labels) <= 0 {
		return errors.Wrap(ErrInvalidConfig, "no class_count and no labels")
	}
	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "input size %dx%d", c.InputWidth, c.InputHeight)
	}
	if !(c.ConfidenceThreshold >= 0 && c.ConfidenceThreshold <= 1) {
		return errors.Wrapf(ErrInvalidConfig, "confidence_threshold %v outside [0,1]", c.ConfidenceThreshold)
	}
	if !(c.NMSThreshold >= 0 && c.NMSThreshold <= 1) {
		return errors.Wrapf(ErrInvalidConfig, "nms_threshold %v outside [0,1]", c.NMSThreshold)
	}
	if c.MaxDetections <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "max_detections %d", c.MaxDetections)
	}
	if c.MaxProposals < 0 {
		return errors.Wrapf(ErrInvalidConfig, "max_proposals %d", c.MaxProposals)
	}
	if c.MaskCoefficients < 0 {
		return errors.Wrapf(ErrInvalidConfig, "mask_coefficients %d", c.MaskCoefficients)
	}
	if c.MaskCoefficients > 0 && c.Family != model.FamilyAnchorFree {
		return errors.Wrapf(ErrInvalidConfig, "mask_coefficients need the %s family", model.FamilyAnchorFree)
	}
	if c.Workers < 0 {
		return errors.Wrapf(ErrInvalidConfig, "workers %d", c.Workers)
	}
	return nil
}

func (c Config) classCount(labels *models.Labels) int {
	if c.ClassCount != 0 {
		return c.ClassCount
	}
	if labels != nil {
		return labels.Len()
	}
	return 0
}

func (c Config) proposalCapacity() int {
	if c.MaxProposals == 0 {
		return c.MaxDetections
	}
	return c.MaxProposals
}

func (c Config) modelArgs(labels *models.Labels) model.NewModelArgs {
	return model.NewModelArgs{
		Family: c.Family,
		Options: model.Options{
			InputWidth:          c.InputWidth,
			InputHeight:         c.InputHeight,
			ClassCount:          c.classCount(labels),
			ConfidenceThreshold: c.ConfidenceThreshold,
			KeepOutOfBounds:     c.KeepOutOfBounds,
		},
		Strides:          c.Strides,
		MaskCoefficients: c.MaskCoefficients,
	}
}
