// Package model - the contract shared by every detector output decoder.
package model

import (
	"github.com/nvr-ai/go-postprocess/models/postprocess"
	"github.com/nvr-ai/go-postprocess/tensorview"
)

// Family identifies how a detector parameterizes its boxes.
type Family string

const (
	// FamilyAnchorGrid decodes stride-based grid offsets (YOLOX style) and
	// emits one proposal per class above the threshold.
	FamilyAnchorGrid Family = "anchor-grid"
	// FamilyAnchorFree decodes direct center/size predictions (YOLOv8/YOLO11
	// style) and emits at most one proposal per anchor via argmax.
	FamilyAnchorFree Family = "anchor-free"
	// FamilyEndToEnd reads already-decoded boxes from NMS-free heads
	// (RT-DETR / RF-DETR / D-FINE style).
	FamilyEndToEnd Family = "end-to-end"
)

// Layout is the memory order of a detector's raw output.
type Layout int

const (
	// LayoutAnchorMajor stores one contiguous row of channels per anchor:
	// (anchors, channels).
	LayoutAnchorMajor Layout = iota
	// LayoutChannelMajor stores one contiguous row of anchors per channel:
	// (channels, anchors). It is transposed before decoding.
	LayoutChannelMajor
)

func (l Layout) String() string {
	switch l {
	case LayoutAnchorMajor:
		return "anchor-major"
	case LayoutChannelMajor:
		return "channel-major"
	default:
		return "unknown"
	}
}

// AnyAnchors is returned by Decoder.Anchors when the decoder accepts any
// anchor count.
const AnyAnchors = -1

// DecodeStats counts what happened while decoding one range of anchors.
type DecodeStats struct {
	// Proposals written to the output buffer.
	Proposals int
	// Anchors skipped because a score or coordinate was NaN or Inf.
	NonFinite int
	// Anchors skipped because their decoded center fell outside [0,1]^2.
	OutOfBounds int
	// Rows skipped because they named a class outside [0, ClassCount).
	InvalidLabel int
	// Truncated is set when the output buffer filled before the range was
	// exhausted.
	Truncated bool
}

// Add accumulates o into s.
func (s *DecodeStats) Add(o DecodeStats) {
	s.Proposals += o.Proposals
	s.NonFinite += o.NonFinite
	s.OutOfBounds += o.OutOfBounds
	s.InvalidLabel += o.InvalidLabel
	s.Truncated = s.Truncated || o.Truncated
}

// Decoder turns anchor-major rows of a raw output tensor into proposals.
//
// Decode must only read the view and write into out, so that disjoint anchor
// ranges can be decoded concurrently into separate buffers. Implementations
// must not allocate.
type Decoder interface {
	// Family returns the box parameterization.
	Family() Family
	// Layout returns the memory order of the raw model output.
	Layout() Layout
	// Channels returns the required per-anchor channel count.
	Channels() int
	// Anchors returns the required anchor count, or AnyAnchors.
	Anchors() int
	// Decode reads anchors [lo, hi) of the anchor-major view into out and
	// stops early when out is full.
	Decode(view tensorview.ReadOnlyView2D, lo, hi int, out *postprocess.Buffer) DecodeStats
	// NeedsNMS reports whether proposals must go through suppression.
	NeedsNMS() bool
}

// Resizable is implemented by decoders whose state depends on the model input
// resolution.
type Resizable interface {
	Resize(width, height int) error
}

// Segmenter is implemented by decoders whose rows carry mask coefficients.
type Segmenter interface {
	// MaskWidth returns the number of trailing mask coefficient channels.
	MaskWidth() int
}
