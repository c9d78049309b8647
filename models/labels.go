// Package models - label sets and the decoder registry.
package models

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// LabelSet names a built-in label list.
type LabelSet string

const (
	// LabelSetCOCO is the 80 COCO classes with no background entry, indexed
	// the way YOLO-family heads emit them.
	LabelSetCOCO LabelSet = "coco"
	// LabelSetVOC is the 20 Pascal VOC classes with no background entry.
	LabelSetVOC LabelSet = "voc"
)

var cocoNames = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat", "dog", "horse",
	"sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack", "umbrella", "handbag", "tie",
	"suitcase", "frisbee", "skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove",
	"skateboard", "surfboard", "tennis racket", "bottle", "wine glass", "cup", "fork", "knife", "spoon",
	"bowl", "banana", "apple", "sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut",
	"cake", "chair", "couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator", "book",
	"clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

var vocNames = []string{
	"aeroplane", "bicycle", "bird", "boat", "bottle", "bus", "car", "cat", "chair", "cow",
	"diningtable", "dog", "horse", "motorbike", "person", "pottedplant", "sheep", "sofa", "train", "tvmonitor",
}

// Labels maps class indices emitted by a model to names.
type Labels struct {
	names     []string
	nameToIdx map[string]int
}

// NewLabels builds a label list. The names are copied.
func NewLabels(names []string) *Labels {
	l := &Labels{
		names:     append([]string(nil), names...),
		nameToIdx: make(map[string]int, len(names)),
	}
	for i, n := range l.names {
		if _, dup := l.nameToIdx[n]; !dup {
			l.nameToIdx[n] = i
		}
	}
	return l
}

// ParseLabels reads one label per line. Blank lines are skipped and trailing
// whitespace (including Windows '\r') is trimmed.
//
// Arguments:
//   - r: The label file contents.
//
// Returns:
//   - The labels in file order.
//   - An error if reading fails.
//
// @example
// labels, err := ParseLabels(strings.NewReader("person\nbicycle\n"))
// labels.Name(1) // "bicycle"
func ParseLabels(r io.Reader) (*Labels, error) {
	var names []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read labels")
	}
	return NewLabels(names), nil
}

// BuiltinLabels returns a copy of a built-in label list.
func BuiltinLabels(set LabelSet) (*Labels, error) {
	switch set {
	case LabelSetCOCO:
		return NewLabels(cocoNames), nil
	case LabelSetVOC:
		return NewLabels(vocNames), nil
	default:
		return nil, errors.Errorf("unknown label set %q", set)
	}
}

// Len returns the number of labels.
func (l *Labels) Len() int { return len(l.names) }

// Name returns the name of class idx, or "" if idx is out of range.
func (l *Labels) Name(idx int) string {
	if idx < 0 || idx >= len(l.names) {
		return ""
	}
	return l.names[idx]
}

// Index returns the first index with the given name.
func (l *Labels) Index(name string) (int, bool) {
	idx, ok := l.nameToIdx[name]
	return idx, ok
}

// Names returns a copy of the label names.
func (l *Labels) Names() []string {
	return append([]string(nil), l.names...)
}
