package benchmark

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/nvr-ai/go-postprocess/detector"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Suite manages and executes benchmark scenarios.
type Suite struct {
	scenarios []Scenario
	outputDir string
	log       *zap.Logger
	metrics   *detector.Metrics
	mu        sync.RWMutex
	results   []PerformanceMetrics
}

// NewSuiteArgs represents the arguments for creating a new benchmark suite.
type NewSuiteArgs struct {
	// OutputPath is the directory SaveResults writes to.
	OutputPath string `json:"outputPath" yaml:"outputPath"`
	// Logger receives progress. Nil discards it.
	Logger *zap.Logger `json:"-" yaml:"-"`
	// Metrics is passed to every detector the suite builds.
	Metrics *detector.Metrics `json:"-" yaml:"-"`
}

// NewSuite creates a new benchmark suite.
//
// Arguments:
//   - args: The arguments for creating a new benchmark suite.
//
// Returns:
//   - *Suite: The benchmark suite.
func NewSuite(args NewSuiteArgs) *Suite {
	log := args.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Suite{
		outputDir: args.OutputPath,
		log:       log,
		metrics:   args.Metrics,
		scenarios: make([]Scenario, 0),
		results:   make([]PerformanceMetrics, 0),
	}
}

// AddScenario adds a scenario to the suite.
func (bs *Suite) AddScenario(scenario Scenario) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.scenarios = append(bs.scenarios, scenario)
}

// AddScenarioSet adds every scenario of a set.
func (bs *Suite) AddScenarioSet(set *ScenarioSet) {
	for _, s := range set.Scenarios {
		bs.AddScenario(s)
	}
}

// RunScenario builds a detector for the scenario, runs the warmup and timed
// iterations over one synthetic output and records the result.
func (bs *Suite) RunScenario(ctx context.Context, scenario Scenario) (*PerformanceMetrics, error) {
	output, err := Synthesize(scenario)
	if err != nil {
		return nil, err
	}
	opts := []detector.Option{detector.WithLogger(bs.log)}
	if bs.metrics != nil {
		opts = append(opts, detector.WithMetrics(bs.metrics))
	}
	d, err := detector.New(scenario.Config(), opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %s", scenario.Name)
	}

	metrics := &PerformanceMetrics{
		Scenario:  scenario,
		Timestamp: time.Now(),
	}

	for i := 0; i < scenario.WarmupRuns; i++ {
		if _, err := d.ProcessRaw(output.Data, output.Shape); err != nil {
			return nil, errors.Wrapf(err, "scenario %s warmup", scenario.Name)
		}
	}

	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	failures := 0
	for i := 0; i < scenario.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		detections, err := d.ProcessRaw(output.Data, output.Shape)
		elapsed := time.Since(start)
		if err != nil {
			failures++
			continue
		}

		metrics.TotalDuration += elapsed
		if metrics.MinDuration == 0 || elapsed < metrics.MinDuration {
			metrics.MinDuration = elapsed
		}
		if elapsed > metrics.MaxDuration {
			metrics.MaxDuration = elapsed
		}
		stats := d.Stats()
		metrics.Anchors = stats.Anchors
		metrics.Proposals += stats.Proposals
		metrics.DetectionCount += len(detections)
		if stats.ProposalsTruncated || stats.DetectionsTruncated > 0 {
			metrics.Truncations++
		}
	}

	var endMem runtime.MemStats
	runtime.ReadMemStats(&endMem)

	if succeeded := scenario.Iterations - failures; succeeded > 0 {
		metrics.MeanDuration = metrics.TotalDuration / time.Duration(succeeded)
		if metrics.TotalDuration > 0 {
			metrics.FramesPerSecond = float64(succeeded) / metrics.TotalDuration.Seconds()
		}
	}
	if scenario.Iterations > 0 {
		metrics.ErrorRate = float64(failures) / float64(scenario.Iterations)
	}
	metrics.MemoryStats = MemoryMetrics{
		TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
		Mallocs:         endMem.Mallocs - startMem.Mallocs,
		NumGC:           endMem.NumGC - startMem.NumGC,
		HeapAllocBytes:  endMem.HeapAlloc,
	}
	metrics.CPUStats = CPUMetrics{
		NumCPU:     runtime.NumCPU(),
		GOMAXPROCS: runtime.GOMAXPROCS(0),
	}

	bs.log.Info("scenario finished",
		zap.String("scenario", scenario.Name),
		zap.Int("anchors", metrics.Anchors),
		zap.Duration("mean", metrics.MeanDuration),
		zap.Float64("fps", metrics.FramesPerSecond),
		zap.Int("truncations", metrics.Truncations))

	bs.mu.Lock()
	bs.results = append(bs.results, *metrics)
	bs.mu.Unlock()
	return metrics, nil
}

// Run executes every added scenario in order.
func (bs *Suite) Run(ctx context.Context) ([]PerformanceMetrics, error) {
	bs.mu.RLock()
	scenarios := append([]Scenario(nil), bs.scenarios...)
	bs.mu.RUnlock()

	for _, s := range scenarios {
		if _, err := bs.RunScenario(ctx, s); err != nil {
			return bs.Results(), err
		}
	}
	return bs.Results(), nil
}

// Results returns a copy of the recorded results.
func (bs *Suite) Results() []PerformanceMetrics {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	return append([]PerformanceMetrics(nil), bs.results...)
}

// SaveResults writes the recorded results as JSON into the output directory.
func (bs *Suite) SaveResults(filename string) (string, error) {
	if err := os.MkdirAll(bs.outputDir, 0o755); err != nil {
		return "", errors.Wrap(err, "create output directory")
	}
	data, err := json.MarshalIndent(bs.Results(), "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "marshal results")
	}
	path := filepath.Join(bs.outputDir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrap(err, "write results")
	}
	return path, nil
}
