package yolov8

import (
	"github.com/nvr-ai/go-postprocess/models/model"
	"github.com/nvr-ai/go-postprocess/models/postprocess"
	"github.com/nvr-ai/go-postprocess/tensorview"
)

// ArgMax returns the index and value of the largest finite score. Ties go to
// the lowest index. NaN and infinite scores are ignored; if no score is finite
// the index is -1.
func ArgMax(scores []float32) (int, float32) {
	best := -1
	var bestScore float32
	for i, s := range scores {
		if !postprocess.Finite(s) {
			continue
		}
		if best < 0 || s > bestScore {
			best, bestScore = i, s
		}
	}
	return best, bestScore
}

// Decode writes at most one proposal per anchor in [lo, hi) into out.
//
// The label is the argmax of the class scores and the probability is that
// score; anchors below the confidence threshold are dropped. The box is
// (cx - w/2, cy - h/2, w, h) normalized by the input size.
//
// Arguments:
//   - view: The anchor-major (anchors, 4+C+M) output.
//   - lo, hi: The anchor range to decode.
//   - out: The proposal buffer. Decoding stops when it is full.
//
// Returns:
//   - Counts for the range.
func (m *YOLOv8) Decode(view tensorview.ReadOnlyView2D, lo, hi int, out *postprocess.Buffer) model.DecodeStats {
	var stats model.DecodeStats
	classes := m.options.ClassCount
	threshold := m.options.ConfidenceThreshold

	for i := lo; i < hi; i++ {
		row := view.Row(i)

		classID, confidence := ArgMax(row[4 : 4+classes])
		if classID < 0 {
			stats.NonFinite++
			continue
		}
		if confidence < threshold {
			continue
		}

		cx := row[0] * m.scaleX
		cy := row[1] * m.scaleY
		w := row[2] * m.scaleX
		h := row[3] * m.scaleY
		if !postprocess.Finite(cx) || !postprocess.Finite(cy) || !postprocess.Finite(w) || !postprocess.Finite(h) {
			stats.NonFinite++
			continue
		}
		if !m.options.KeepOutOfBounds && (cx < 0 || cx > 1 || cy < 0 || cy > 1) {
			stats.OutOfBounds++
			continue
		}

		anchorID := postprocess.NoAnchor
		if m.maskWidth > 0 {
			anchorID = i
		}
		if !out.Append(postprocess.Detection{
			Rect:        postprocess.CenterRect(cx, cy, w, h),
			Label:       classID,
			Probability: confidence,
			AnchorID:    anchorID,
		}) {
			stats.Truncated = true
			return stats
		}
		stats.Proposals++
	}
	return stats
}

// MaskCoefficients returns the trailing MaskWidth channels of an anchor's row.
// The slice aliases view.
func (m *YOLOv8) MaskCoefficients(view tensorview.ReadOnlyView2D, anchorID int) []float32 {
	row := view.Row(anchorID)
	return row[len(row)-m.maskWidth:]
}
