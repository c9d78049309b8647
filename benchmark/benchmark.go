// Package benchmark - throughput benchmarks of the post-processing pipeline
// over synthetic model outputs.
package benchmark

import (
	"time"

	"github.com/nvr-ai/go-postprocess/models/model"
)

// Resolution represents model input dimensions for benchmarking.
type Resolution struct {
	Width  int    `json:"width"  yaml:"width"`
	Height int    `json:"height" yaml:"height"`
	Name   string `json:"name"   yaml:"name"`
}

// CommonResolutions are the input sizes detectors are usually exported at.
// All are multiples of 32 so every anchor-grid stride divides them.
var CommonResolutions = []Resolution{
	{Width: 320, Height: 320, Name: "320x320"},
	{Width: 416, Height: 416, Name: "416x416"},
	{Width: 640, Height: 640, Name: "640x640"},
	{Width: 1280, Height: 1280, Name: "1280x1280"},
}

// Scenario defines a specific benchmark configuration.
type Scenario struct {
	Name       string       `json:"name"        yaml:"name"`
	Family     model.Family `json:"family"      yaml:"family"`
	Resolution Resolution   `json:"resolution"  yaml:"resolution"`
	Classes    int          `json:"classes"     yaml:"classes"`
	Masks      int          `json:"masks"       yaml:"masks"`
	Queries    int          `json:"queries"     yaml:"queries"`
	Workers    int          `json:"workers"     yaml:"workers"`
	// Density is the fraction of anchors whose best score clears the
	// confidence threshold.
	Density    float64 `json:"density"     yaml:"density"`
	Iterations int     `json:"iterations"  yaml:"iterations"`
	WarmupRuns int     `json:"warmup_runs" yaml:"warmup_runs"`
	Seed       int64   `json:"seed"        yaml:"seed"`
}

// PerformanceMetrics captures the outcome of one scenario.
type PerformanceMetrics struct {
	Scenario        Scenario      `json:"scenario"`
	Timestamp       time.Time     `json:"timestamp"`
	Anchors         int           `json:"anchors"`
	TotalDuration   time.Duration `json:"total_duration"`
	MeanDuration    time.Duration `json:"mean_duration"`
	MinDuration     time.Duration `json:"min_duration"`
	MaxDuration     time.Duration `json:"max_duration"`
	FramesPerSecond float64       `json:"frames_per_second"`
	MemoryStats     MemoryMetrics `json:"memory_stats"`
	CPUStats        CPUMetrics    `json:"cpu_stats"`
	Proposals       int           `json:"proposals"`
	DetectionCount  int           `json:"detection_count"`
	Truncations     int           `json:"truncations"`
	ErrorRate       float64       `json:"error_rate"`
}

// MemoryMetrics captures memory usage across the timed iterations.
type MemoryMetrics struct {
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	Mallocs         uint64 `json:"mallocs"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
}

// CPUMetrics captures CPU facts of the host.
type CPUMetrics struct {
	NumCPU     int `json:"num_cpu"`
	GOMAXPROCS int `json:"gomaxprocs"`
}
