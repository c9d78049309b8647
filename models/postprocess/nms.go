// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// Overlap threshold for suppression. A candidate is dropped when its IoU
	// with an already kept box is strictly greater than this value.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// If true, suppress overlapping boxes regardless of label. The default
	// suppresses only within the same label.
	ClassAgnostic bool `json:"class_agnostic" yaml:"class_agnostic"`
}

// NMS performs greedy Non-Maximum Suppression into a bounded buffer.
//
// Each proposal, in order, is compared against every detection already kept
// with the same label; the first overlap above the threshold rejects it.
// Survivors are appended to out. Once out is full the remaining proposals are
// not examined: they rank below everything already kept, so only recall past
// the capacity is lost. The pass is sequential because each decision depends
// on everything kept before it.
//
// Arguments:
//   - proposals: Candidates sorted by descending probability.
//   - out: The detection buffer. It is reset before use.
//   - config: NMS configuration.
//
// Returns:
//   - The number of proposals left unexamined because out filled up. Zero
//     means the result is exact.
//
// @example
// postprocess.SortByProbability(proposals)
// dropped := postprocess.NMS(proposals, detections, postprocess.NMSConfig{IoUThreshold: 0.45})
func NMS(proposals []Detection, out *Buffer, config NMSConfig) int {
	out.Reset()
	if out.Cap() == 0 {
		return len(proposals)
	}

	for i, candidate := range proposals {
		keep := true
		for _, kept := range out.Detections() {
			if !config.ClassAgnostic && kept.Label != candidate.Label {
				continue
			}
			if candidate.Rect.IoU(kept.Rect) > config.IoUThreshold {
				keep = false
				break
			}
		}
		if !keep {
			continue
		}

		out.Append(candidate)
		if out.Full() {
			return len(proposals) - i - 1
		}
	}
	return 0
}
