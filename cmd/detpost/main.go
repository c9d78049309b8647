// Command detpost runs the detection post-processing pipeline over recorded
// model outputs, or benchmarks it over synthetic ones.
//
//	detpost -config detector.yaml -input frame-0001.bin -shape 1,84,8400
//	detpost -config detector.yaml -input dumps/ -shape 1,84,8400 -metrics :9100
//	detpost -bench quick -output-dir benchmark_results
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nvr-ai/go-postprocess/benchmark"
	"github.com/nvr-ai/go-postprocess/detector"
	"github.com/nvr-ai/go-postprocess/logger"
	"github.com/nvr-ai/go-postprocess/models/model"
	"github.com/nvr-ai/go-postprocess/util"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// InputType represents the kind of input being processed.
type InputType int

const (
	// InputFile is a single tensor dump.
	InputFile InputType = iota
	// InputDirectory is a directory of frame-<n>.bin dumps.
	InputDirectory
	// InputBenchmark runs synthetic scenarios.
	InputBenchmark
)

type options struct {
	configPath  string
	inputPath   string
	shape       string
	imageWidth  int
	imageHeight int
	metricsAddr string
	bench       string
	outputDir   string
	logLevel    string
	development bool
}

// frameResult is one line of JSON output.
type frameResult struct {
	Frame      int               `json:"frame"`
	Path       string            `json:"path"`
	Detections []detectionResult `json:"detections"`
	Stats      detector.Stats    `json:"stats"`
}

type detectionResult struct {
	Label       int        `json:"label"`
	Name        string     `json:"name,omitempty"`
	Probability float32    `json:"probability"`
	Box         [4]float32 `json:"box"`
	Pixels      []int      `json:"pixels,omitempty"`
	AnchorID    int        `json:"anchor_id"`
	Mask        []float32  `json:"mask,omitempty"`
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to a detector YAML config (defaults to 640x640 COCO anchor-free)")
	flag.StringVar(&opts.inputPath, "input", "", "Tensor dump (.bin) or directory of frame-<n>.bin dumps")
	flag.StringVar(&opts.shape, "shape", "", "Logical output shape, e.g. 1,84,8400")
	flag.IntVar(&opts.imageWidth, "image-width", 0, "Source image width for pixel boxes")
	flag.IntVar(&opts.imageHeight, "image-height", 0, "Source image height for pixel boxes")
	flag.StringVar(&opts.metricsAddr, "metrics", "", "Serve Prometheus metrics on this address, e.g. :9100")
	flag.StringVar(&opts.bench, "bench", "", "Run a benchmark set: quick, resolution or workers")
	flag.StringVar(&opts.outputDir, "output-dir", "benchmark_results", "Benchmark results directory")
	flag.StringVar(&opts.logLevel, "log-level", "info", "Log level")
	flag.BoolVar(&opts.development, "dev", false, "Human readable logs")
	flag.Parse()

	if err := logger.Init(opts.logLevel, opts.development); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		logger.Log().Error("detpost failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func inputType(opts options) (InputType, error) {
	if opts.bench != "" {
		if opts.inputPath != "" {
			return 0, errors.New("-bench and -input are mutually exclusive")
		}
		return InputBenchmark, nil
	}
	if opts.inputPath == "" {
		return 0, errors.New("one of -input or -bench is required")
	}
	info, err := os.Stat(opts.inputPath)
	if err != nil {
		return 0, errors.Wrap(err, "input")
	}
	if info.IsDir() {
		return InputDirectory, nil
	}
	return InputFile, nil
}

func run(ctx context.Context, opts options, stdout io.Writer) error {
	kind, err := inputType(opts)
	if err != nil {
		return err
	}
	log := logger.Log()

	reg := prometheus.NewRegistry()
	metrics := detector.NewMetrics(reg)
	if opts.metricsAddr != "" {
		shutdown := serveMetrics(opts.metricsAddr, reg, log)
		defer shutdown()
	}

	if kind == InputBenchmark {
		return runBenchmark(ctx, opts, metrics, log, stdout)
	}

	config := detector.DefaultConfig()
	if opts.configPath != "" {
		if config, err = detector.LoadConfig(opts.configPath); err != nil {
			return err
		}
	}
	if opts.shape == "" {
		return errors.New("-shape is required with -input")
	}
	shape, err := util.ParseShape(opts.shape)
	if err != nil {
		return err
	}

	d, err := detector.New(config, detector.WithLogger(log), detector.WithMetrics(metrics))
	if err != nil {
		return err
	}

	var tensors []util.TensorFile
	if kind == InputDirectory {
		if tensors, err = util.LoadDirectoryTensorFiles(opts.inputPath); err != nil {
			return err
		}
	} else {
		data, err := util.LoadTensorFile(opts.inputPath)
		if err != nil {
			return err
		}
		tensors = []util.TensorFile{{Path: opts.inputPath, Data: data}}
	}
	log.Info("processing", zap.String("input", opts.inputPath), zap.Int("frames", len(tensors)), zap.Ints("shape", shape))

	enc := json.NewEncoder(stdout)
	for _, tf := range tensors {
		if err := ctx.Err(); err != nil {
			return err
		}
		detections, err := d.ProcessRaw(tf.Data, shape)
		if err != nil {
			return errors.Wrapf(err, "frame %s", tf.Path)
		}

		result := frameResult{
			Frame:      tf.Frame,
			Path:       tf.Path,
			Detections: make([]detectionResult, 0, len(detections)),
			Stats:      d.Stats(),
		}
		for _, det := range detections {
			r := detectionResult{
				Label:       det.Label,
				Name:        d.LabelOf(det),
				Probability: det.Probability,
				Box:         [4]float32{det.Rect.X, det.Rect.Y, det.Rect.W, det.Rect.H},
				AnchorID:    det.AnchorID,
			}
			if opts.imageWidth > 0 && opts.imageHeight > 0 {
				px := det.Rect.Scale(opts.imageWidth, opts.imageHeight)
				r.Pixels = []int{px.Min.X, px.Min.Y, px.Max.X, px.Max.Y}
			}
			if config.MaskCoefficients > 0 {
				if r.Mask, err = d.MaskCoefficients(det.AnchorID); err != nil {
					return err
				}
			}
			result.Detections = append(result.Detections, r)
		}
		if err := enc.Encode(result); err != nil {
			return errors.Wrap(err, "write result")
		}
	}
	return nil
}

func runBenchmark(ctx context.Context, opts options, metrics *detector.Metrics, log *zap.Logger, stdout io.Writer) error {
	var set *benchmark.ScenarioSet
	switch opts.bench {
	case "quick":
		set = benchmark.QuickScenarios()
	case "resolution":
		set = benchmark.ResolutionScenarios(model.FamilyAnchorFree)
	case "workers":
		set = benchmark.WorkerScenarios(model.FamilyAnchorFree, benchmark.CommonResolutions[2], []int{1, 2, 4, 8})
	default:
		return errors.Errorf("unknown benchmark set %q", opts.bench)
	}

	suite := benchmark.NewSuite(benchmark.NewSuiteArgs{
		OutputPath: opts.outputDir,
		Logger:     log,
		Metrics:    metrics,
	})
	suite.AddScenarioSet(set)
	results, err := suite.Run(ctx)
	if err != nil {
		return err
	}

	path, err := suite.SaveResults(fmt.Sprintf("%s-%s.json", opts.bench, time.Now().Format("20060102-150405")))
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Fprintf(stdout, "%-40s anchors=%-6d mean=%-12s fps=%.1f\n",
			r.Scenario.Name, r.Anchors, r.MeanDuration, r.FramesPerSecond)
	}
	log.Info("benchmark results saved", zap.String("path", path))
	return nil
}

// serveMetrics exposes reg on addr and returns a function that stops the server.
func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
