package yolox

import (
	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-postprocess/models/model"
	"github.com/nvr-ai/go-postprocess/models/postprocess"
	"github.com/nvr-ai/go-postprocess/tensorview"
)

// Decode writes proposals for anchors [lo, hi) of view into out.
//
// Each anchor decodes to center ((tx+gx)*stride, (ty+gy)*stride) and size
// (exp(tw)*stride, exp(th)*stride), normalized by the input size. Every class
// whose objectness*score exceeds the confidence threshold becomes its own
// proposal: classes are not collapsed with argmax, so one anchor may yield
// several proposals with the same box.
//
// Arguments:
//   - view: The anchor-major (anchors, 5+C) output.
//   - lo, hi: The anchor range to decode.
//   - out: The proposal buffer. Decoding stops when it is full.
//
// Returns:
//   - Counts for the range.
func (m *YOLOX) Decode(view tensorview.ReadOnlyView2D, lo, hi int, out *postprocess.Buffer) model.DecodeStats {
	var stats model.DecodeStats
	classes := m.options.ClassCount
	threshold := m.options.ConfidenceThreshold

	for i := lo; i < hi; i++ {
		row := view.Row(i)
		anchor := m.anchors[i]
		stride := float32(anchor.Stride)

		cx := (row[0] + float32(anchor.GridX)) * stride * m.scaleX
		cy := (row[1] + float32(anchor.GridY)) * stride * m.scaleY
		w := math32.Exp(row[2]) * stride * m.scaleX
		h := math32.Exp(row[3]) * stride * m.scaleY
		objectness := row[4]

		if !postprocess.Finite(cx) || !postprocess.Finite(cy) ||
			!postprocess.Finite(w) || !postprocess.Finite(h) || !postprocess.Finite(objectness) {
			stats.NonFinite++
			continue
		}
		if !m.options.KeepOutOfBounds && (cx < 0 || cx > 1 || cy < 0 || cy > 1) {
			stats.OutOfBounds++
			continue
		}

		rect := postprocess.CenterRect(cx, cy, w, h)
		nonFinite := false
		for c, score := range row[5 : 5+classes] {
			probability := objectness * score
			if !postprocess.Finite(probability) {
				nonFinite = true
				continue
			}
			if probability <= threshold {
				continue
			}
			if !out.Append(postprocess.Detection{
				Rect:        rect,
				Label:       c,
				Probability: probability,
				AnchorID:    postprocess.NoAnchor,
			}) {
				stats.Truncated = true
				return stats
			}
			stats.Proposals++
		}
		if nonFinite {
			stats.NonFinite++
		}
	}
	return stats
}
