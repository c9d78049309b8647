package benchmark

import (
	"math/rand"

	"github.com/nvr-ai/go-postprocess/detector"
	"github.com/nvr-ai/go-postprocess/models/model"
	"github.com/nvr-ai/go-postprocess/models/rfdetr"
	"github.com/nvr-ai/go-postprocess/models/yolox"
	"github.com/pkg/errors"
)

// Output is a synthetic raw model output.
type Output struct {
	Data  []float32
	Shape []int
}

// Config returns the detector configuration matching a scenario.
func (s Scenario) Config() detector.Config {
	config := detector.DefaultConfig()
	config.Family = s.Family
	config.InputWidth = s.Resolution.Width
	config.InputHeight = s.Resolution.Height
	config.LabelSet = ""
	config.ClassCount = s.Classes
	config.MaskCoefficients = s.Masks
	config.Workers = s.Workers
	return config
}

// Synthesize generates a deterministic output shaped like the scenario's
// model head. A Density fraction of anchors carries a score between 0.5 and
// 1; the rest stay below 0.2.
//
// Arguments:
//   - s: The scenario.
//
// Returns:
//   - The output with its batch-1 shape.
//   - An error for an unknown family or an invalid resolution.
func Synthesize(s Scenario) (Output, error) {
	rng := rand.New(rand.NewSource(s.Seed))
	w, h := float32(s.Resolution.Width), float32(s.Resolution.Height)
	hit := func() bool { return rng.Float64() < s.Density }

	switch s.Family {
	case model.FamilyAnchorFree:
		anchors, err := yolox.GenerateAnchors(s.Resolution.Width, s.Resolution.Height, yolox.DefaultStrides)
		if err != nil {
			return Output{}, err
		}
		n := len(anchors)
		channels := 4 + s.Classes + s.Masks
		data := make([]float32, channels*n)
		for a := 0; a < n; a++ {
			data[0*n+a] = rng.Float32() * w
			data[1*n+a] = rng.Float32() * h
			data[2*n+a] = 8 + rng.Float32()*120
			data[3*n+a] = 8 + rng.Float32()*120
			for c := 0; c < s.Classes; c++ {
				data[(4+c)*n+a] = rng.Float32() * 0.2
			}
			if hit() {
				data[(4+rng.Intn(s.Classes))*n+a] = 0.5 + rng.Float32()*0.5
			}
			for m := 0; m < s.Masks; m++ {
				data[(4+s.Classes+m)*n+a] = rng.Float32()*2 - 1
			}
		}
		return Output{Data: data, Shape: []int{1, channels, n}}, nil

	case model.FamilyAnchorGrid:
		anchors, err := yolox.GenerateAnchors(s.Resolution.Width, s.Resolution.Height, yolox.DefaultStrides)
		if err != nil {
			return Output{}, err
		}
		channels := 5 + s.Classes
		data := make([]float32, 0, channels*len(anchors))
		for range anchors {
			objectness := rng.Float32() * 0.2
			class := -1
			if hit() {
				objectness = 0.9
				class = rng.Intn(s.Classes)
			}
			data = append(data, rng.Float32(), rng.Float32(), rng.Float32()*2-1, rng.Float32()*2-1, objectness)
			for c := 0; c < s.Classes; c++ {
				score := rng.Float32() * 0.2
				if c == class {
					score = 0.6 + rng.Float32()*0.4
				}
				data = append(data, score)
			}
		}
		return Output{Data: data, Shape: []int{1, len(anchors), channels}}, nil

	case model.FamilyEndToEnd:
		data := make([]float32, 0, rfdetr.RowSize*s.Queries)
		for q := 0; q < s.Queries; q++ {
			x, y := rng.Float32()*w*0.9, rng.Float32()*h*0.9
			score := rng.Float32() * 0.2
			if hit() {
				score = 0.5 + rng.Float32()*0.5
			}
			data = append(data, x, y, x+8+rng.Float32()*w*0.1, y+8+rng.Float32()*h*0.1,
				score, float32(rng.Intn(s.Classes)))
		}
		return Output{Data: data, Shape: []int{1, s.Queries, rfdetr.RowSize}}, nil

	default:
		return Output{}, errors.Errorf("benchmark: unknown family %q", s.Family)
	}
}
