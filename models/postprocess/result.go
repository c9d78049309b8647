package postprocess

import "fmt"

// NoAnchor marks a detection that is not tied to a row of the anchor-major
// output tensor (detection-only models).
const NoAnchor = -1

// Detection represents a single detection result.
type Detection struct {
	// The bounding box, normalized to [0,1].
	Rect Rect
	// The predicted class index.
	Label int
	// The confidence score in [0,1]. Already objectness*class where the model
	// has a separate objectness channel.
	Probability float32
	// The row of the anchor-major output tensor this detection came from, used
	// to gather mask coefficients. NoAnchor when not applicable.
	AnchorID int
}

func (d Detection) String() string {
	return fmt.Sprintf("label %d (probability %f) at %s anchor %d",
		d.Label, d.Probability, d.Rect, d.AnchorID)
}
