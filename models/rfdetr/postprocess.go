package rfdetr

import (
	"github.com/nvr-ai/go-postprocess/models/model"
	"github.com/nvr-ai/go-postprocess/models/postprocess"
	"github.com/nvr-ai/go-postprocess/tensorview"
)

// Decode transforms queries [lo, hi) into normalized detections by:
//   - Dropping rows whose score is not above the confidence threshold.
//   - Dropping rows with NaN/Inf values or a class outside [0, ClassCount).
//   - Dropping rows whose center is outside the image unless KeepOutOfBounds.
//
// Arguments:
//   - view: The (queries, 6) output.
//   - lo, hi: The query range to decode.
//   - out: The proposal buffer. Decoding stops when it is full.
//
// Returns:
//   - Counts for the range.
func (m *RFDETR) Decode(view tensorview.ReadOnlyView2D, lo, hi int, out *postprocess.Buffer) model.DecodeStats {
	var stats model.DecodeStats
	threshold := m.options.ConfidenceThreshold

	for i := lo; i < hi; i++ {
		row := view.Row(i)

		score := row[4]
		if !postprocess.Finite(score) {
			stats.NonFinite++
			continue
		}
		if score <= threshold {
			continue
		}

		rect := postprocess.MinMaxRect(row[0]*m.scaleX, row[1]*m.scaleY, row[2]*m.scaleX, row[3]*m.scaleY)
		if !rect.IsFinite() || !postprocess.Finite(row[5]) {
			stats.NonFinite++
			continue
		}
		label := int(row[5])
		if label < 0 || label >= m.options.ClassCount {
			stats.InvalidLabel++
			continue
		}
		if cx, cy := rect.Center(); !m.options.KeepOutOfBounds && (cx < 0 || cx > 1 || cy < 0 || cy > 1) {
			stats.OutOfBounds++
			continue
		}

		if !out.Append(postprocess.Detection{
			Rect:        rect,
			Label:       label,
			Probability: score,
			AnchorID:    postprocess.NoAnchor,
		}) {
			stats.Truncated = true
			return stats
		}
		stats.Proposals++
	}
	return stats
}
