package postprocess

import "sort"

// SortByProbability orders detections by descending probability in place.
// The sort is stable: equal probabilities keep their decode order, which is
// anchor order, so results are deterministic across runs and worker counts.
func SortByProbability(detections []Detection) {
	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Probability > detections[j].Probability
	})
}
