package benchmark

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nvr-ai/go-postprocess/models/model"
	"github.com/pkg/errors"
)

// ScenarioBuilder helps build benchmark scenarios with fluent API.
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder creates a builder for an 80-class anchor-free scenario
// at 640x640.
func NewScenarioBuilder(name string) *ScenarioBuilder {
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:       name,
			Family:     model.FamilyAnchorFree,
			Resolution: Resolution{Width: 640, Height: 640, Name: "640x640"},
			Classes:    80,
			Queries:    300,
			Workers:    1,
			Density:    0.01,
			Iterations: 100,
			WarmupRuns: 10,
			Seed:       1,
		},
	}
}

// WithFamily sets the decoder family.
func (sb *ScenarioBuilder) WithFamily(family model.Family) *ScenarioBuilder {
	sb.scenario.Family = family
	return sb
}

// WithResolution sets the model input resolution.
func (sb *ScenarioBuilder) WithResolution(width, height int) *ScenarioBuilder {
	sb.scenario.Resolution = Resolution{
		Width:  width,
		Height: height,
		Name:   fmt.Sprintf("%dx%d", width, height),
	}
	return sb
}

// WithClasses sets the class count.
func (sb *ScenarioBuilder) WithClasses(classes int) *ScenarioBuilder {
	sb.scenario.Classes = classes
	return sb
}

// WithMasks sets the number of mask coefficients.
func (sb *ScenarioBuilder) WithMasks(masks int) *ScenarioBuilder {
	sb.scenario.Masks = masks
	return sb
}

// WithQueries sets the query count of end-to-end scenarios.
func (sb *ScenarioBuilder) WithQueries(queries int) *ScenarioBuilder {
	sb.scenario.Queries = queries
	return sb
}

// WithWorkers sets the decode and transpose worker count.
func (sb *ScenarioBuilder) WithWorkers(workers int) *ScenarioBuilder {
	sb.scenario.Workers = workers
	return sb
}

// WithDensity sets the fraction of anchors above the threshold.
func (sb *ScenarioBuilder) WithDensity(density float64) *ScenarioBuilder {
	sb.scenario.Density = density
	return sb
}

// WithIterations sets the number of timed iterations.
func (sb *ScenarioBuilder) WithIterations(iterations int) *ScenarioBuilder {
	sb.scenario.Iterations = iterations
	return sb
}

// WithWarmupRuns sets the number of untimed warmup runs.
func (sb *ScenarioBuilder) WithWarmupRuns(warmups int) *ScenarioBuilder {
	sb.scenario.WarmupRuns = warmups
	return sb
}

// WithSeed sets the seed of the synthetic output generator.
func (sb *ScenarioBuilder) WithSeed(seed int64) *ScenarioBuilder {
	sb.scenario.Seed = seed
	return sb
}

// Build returns the configured scenario.
func (sb *ScenarioBuilder) Build() Scenario {
	return sb.scenario
}

// ScenarioSet represents a collection of related scenarios.
type ScenarioSet struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Scenarios   []Scenario `json:"scenarios"`
}

var families = []model.Family{model.FamilyAnchorGrid, model.FamilyAnchorFree, model.FamilyEndToEnd}

// QuickScenarios returns one 640x640 scenario per family.
func QuickScenarios() *ScenarioSet {
	scenarios := make([]Scenario, 0, len(families))
	for _, family := range families {
		scenarios = append(scenarios, NewScenarioBuilder(fmt.Sprintf("quick_%s", family)).
			WithFamily(family).
			WithIterations(50).
			WithWarmupRuns(5).
			Build())
	}

	return &ScenarioSet{
		Name:        "Quick Performance Test",
		Description: "One 640x640 COCO scenario per decoder family",
		Scenarios:   scenarios,
	}
}

// ResolutionScenarios compares input resolutions for one family.
func ResolutionScenarios(family model.Family) *ScenarioSet {
	scenarios := make([]Scenario, 0, len(CommonResolutions))
	for _, resolution := range CommonResolutions {
		scenarios = append(scenarios, NewScenarioBuilder(fmt.Sprintf("resolution_%s_%s", family, resolution.Name)).
			WithFamily(family).
			WithResolution(resolution.Width, resolution.Height).
			Build())
	}

	return &ScenarioSet{
		Name:        fmt.Sprintf("Resolution Comparison - %s", family),
		Description: fmt.Sprintf("Compares input resolutions for the %s decoder", family),
		Scenarios:   scenarios,
	}
}

// WorkerScenarios compares worker counts for one family and resolution.
func WorkerScenarios(family model.Family, resolution Resolution, workers []int) *ScenarioSet {
	scenarios := make([]Scenario, 0, len(workers))
	for _, w := range workers {
		scenarios = append(scenarios, NewScenarioBuilder(fmt.Sprintf("workers_%s_%s_%d", family, resolution.Name, w)).
			WithFamily(family).
			WithResolution(resolution.Width, resolution.Height).
			WithWorkers(w).
			Build())
	}

	return &ScenarioSet{
		Name:        fmt.Sprintf("Worker Comparison - %s @ %s", family, resolution.Name),
		Description: "Compares parallel transpose and decode against the serial pipeline",
		Scenarios:   scenarios,
	}
}

// SaveScenarioSet saves a scenario set to a JSON file.
func SaveScenarioSet(scenarioSet *ScenarioSet, filename string) error {
	data, err := json.MarshalIndent(scenarioSet, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal scenario set")
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return errors.Wrap(err, "write scenario file")
	}
	return nil
}

// LoadScenarioSet loads a scenario set from a JSON file.
func LoadScenarioSet(filename string) (*ScenarioSet, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "read scenario file")
	}

	var scenarioSet ScenarioSet
	if err := json.Unmarshal(data, &scenarioSet); err != nil {
		return nil, errors.Wrap(err, "unmarshal scenario set")
	}
	return &scenarioSet, nil
}
