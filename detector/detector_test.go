package detector

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/nvr-ai/go-postprocess/models"
	"github.com/nvr-ai/go-postprocess/models/model"
	"github.com/nvr-ai/go-postprocess/models/postprocess"
	"github.com/nvr-ai/go-postprocess/tensorview"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorgonia.org/tensor"
)

// channelMajor flattens anchor rows into a (channels, anchors) buffer.
func channelMajor(rows [][]float32) []float32 {
	anchors := len(rows)
	channels := len(rows[0])
	data := make([]float32, anchors*channels)
	for a, row := range rows {
		for c, v := range row {
			data[c*anchors+a] = v
		}
	}
	return data
}

func anchorMajor(rows [][]float32) []float32 {
	var data []float32
	for _, row := range rows {
		data = append(data, row...)
	}
	return data
}

func anchorFreeConfig(labels ...string) Config {
	config := DefaultConfig()
	config.ConfidenceThreshold = 0.5
	config.NMSThreshold = 0.45
	config.MaxDetections = 10
	config.MaxProposals = 100
	config.Labels = labels
	config.Workers = 1
	return config
}

func newDetector(t *testing.T, config Config, opts ...Option) *Detector {
	t.Helper()
	d, err := New(config, opts...)
	require.NoError(t, err)
	return d
}

func TestNewErrors(t *testing.T) {
	t.Run("class count", func(t *testing.T) {
		config := anchorFreeConfig("a", "b")
		config.ClassCount = 3
		_, err := New(config)
		assert.True(t, errors.Is(err, ErrClassCount))
	})

	t.Run("unknown family", func(t *testing.T) {
		config := anchorFreeConfig("a")
		config.Family = "two-stage"
		_, err := New(config)
		assert.True(t, errors.Is(err, models.ErrUnsupportedFamily))
	})

	t.Run("invalid config", func(t *testing.T) {
		config := anchorFreeConfig("a")
		config.MaxDetections = 0
		_, err := New(config)
		assert.True(t, errors.Is(err, ErrInvalidConfig))
	})
}

func TestProcessAnchorFree(t *testing.T) {
	d := newDetector(t, anchorFreeConfig("person", "car"))

	rows := [][]float32{
		{320, 320, 64, 64, 0.9, 0.1},
		{322, 320, 64, 64, 0.8, 0.2},
		{100, 100, 32, 32, 0.1, 0.7},
		{500, 500, 32, 32, 0.2, 0.3},
	}
	detections, err := d.ProcessRaw(channelMajor(rows), []int{1, 6, 4})
	require.NoError(t, err)

	require.Len(t, detections, 2)
	assert.Equal(t, 0, detections[0].Label)
	assert.Equal(t, float32(0.9), detections[0].Probability)
	assert.InDelta(t, 0.45, detections[0].Rect.X, 1e-6)
	assert.InDelta(t, 0.1, detections[0].Rect.W, 1e-6)
	assert.Equal(t, 1, detections[1].Label)
	assert.Equal(t, float32(0.7), detections[1].Probability)
	assert.Equal(t, "person", d.LabelOf(detections[0]))
	assert.Equal(t, "car", d.LabelOf(detections[1]))

	assert.Equal(t, 2, d.Count())
	assert.Equal(t, detections, d.Detections())

	stats := d.Stats()
	assert.Equal(t, 4, stats.Anchors)
	assert.Equal(t, 3, stats.Proposals)
	assert.Equal(t, 2, stats.Detections)
	assert.False(t, stats.ProposalsTruncated)
	assert.Zero(t, stats.DetectionsTruncated)
}

func TestProcessShapeErrors(t *testing.T) {
	d := newDetector(t, anchorFreeConfig("person", "car"))

	_, err := d.ProcessRaw(make([]float32, 2*6*4), []int{2, 6, 4})
	assert.True(t, errors.Is(err, tensorview.ErrBatchSize))

	_, err = d.ProcessRaw(make([]float32, 7*4), []int{7, 4})
	assert.True(t, errors.Is(err, ErrChannels))

	_, err = d.ProcessRaw(make([]float32, 6*4), []int{1, 1, 6, 4})
	assert.True(t, errors.Is(err, tensorview.ErrRank))

	_, err = d.ProcessRaw(make([]float32, 10), []int{6, 4})
	assert.True(t, errors.Is(err, tensorview.ErrShapeMismatch))

	// 8 * (1<<62 + 1) wraps to 8 and would otherwise match the buffer.
	wide := newDetector(t, anchorFreeConfig("a", "b", "c", "d"))
	_, err = wide.ProcessRaw(make([]float32, 8), []int{1, 8, 1<<62 + 1})
	assert.True(t, errors.Is(err, tensorview.ErrShapeMismatch))
}

func TestProcessDense(t *testing.T) {
	rows := [][]float32{
		{320, 320, 64, 64, 0.9, 0.1},
		{100, 100, 32, 32, 0.1, 0.7},
	}
	want, err := newDetector(t, anchorFreeConfig("a", "b")).ProcessRaw(channelMajor(rows), []int{6, 2})
	require.NoError(t, err)

	dense := tensor.New(tensor.WithShape(1, 6, 2), tensor.WithBacking(channelMajor(rows)))
	got, err := newDetector(t, anchorFreeConfig("a", "b")).ProcessDense(dense)
	require.NoError(t, err)

	assert.Equal(t, want, got)
}

func TestProcessAnchorGrid(t *testing.T) {
	config := DefaultConfig()
	config.Family = model.FamilyAnchorGrid
	config.InputWidth = 64
	config.InputHeight = 64
	config.ConfidenceThreshold = 0.5
	config.LabelSet = ""
	config.ClassCount = 1
	config.Workers = 1

	d := newDetector(t, config)
	// 8*8 + 4*4 + 2*2 anchors for strides 8, 16, 32.
	const anchors = 84

	rows := make([][]float32, anchors)
	for i := range rows {
		rows[i] = make([]float32, 6)
	}
	rows[0] = []float32{0.5, 0.5, 0, 0, 0.9, 0.9}
	rows[83] = []float32{0.5, 0.5, 0, 0, 0.8, 0.9}

	detections, err := d.ProcessRaw(anchorMajor(rows), []int{1, anchors, 6})
	require.NoError(t, err)
	require.Len(t, detections, 2)

	assert.Equal(t, float32(0.9)*float32(0.9), detections[0].Probability)
	assert.InDelta(t, 0, detections[0].Rect.X, 1e-6)
	assert.InDelta(t, 0.125, detections[0].Rect.W, 1e-6)
	// Last anchor: grid (1,1) at stride 32.
	assert.InDelta(t, 0.5, detections[1].Rect.W, 1e-6)
	assert.InDelta(t, 0.5, detections[1].Rect.X, 1e-6)
	assert.Equal(t, postprocess.NoAnchor, detections[1].AnchorID)

	_, err = d.ProcessRaw(make([]float32, 83*6), []int{83, 6})
	assert.True(t, errors.Is(err, ErrAnchors))
}

func TestSetInputSizeAnchorGrid(t *testing.T) {
	config := DefaultConfig()
	config.Family = model.FamilyAnchorGrid
	config.InputWidth = 64
	config.InputHeight = 64
	config.LabelSet = ""
	config.ClassCount = 1

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	d := newDetector(t, config, WithMetrics(metrics))

	require.NoError(t, d.SetInputSize(64, 64))
	assert.Zero(t, testutil.ToFloat64(metrics.Resizes.WithLabelValues("anchor-grid")))

	require.NoError(t, d.SetInputSize(32, 32))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Resizes.WithLabelValues("anchor-grid")))
	assert.Equal(t, 32, d.Config().InputWidth)

	// 4*4 + 2*2 + 1*1 anchors.
	_, err := d.ProcessRaw(make([]float32, 21*6), []int{21, 6})
	assert.NoError(t, err)
	_, err = d.ProcessRaw(make([]float32, 84*6), []int{84, 6})
	assert.True(t, errors.Is(err, ErrAnchors))

	assert.Error(t, d.SetInputSize(0, 32))
}

func TestProcessEndToEnd(t *testing.T) {
	config := DefaultConfig()
	config.Family = model.FamilyEndToEnd
	config.InputWidth = 100
	config.InputHeight = 100
	config.ConfidenceThreshold = 0.5
	config.Labels = []string{"a", "b"}

	d := newDetector(t, config)

	rows := [][]float32{
		{12, 12, 32, 32, 0.8, 1},
		{10, 10, 30, 30, 0.9, 1},
		{0, 0, 10, 10, 0.2, 0},
		{50, 50, 60, 60, 0.7, 5},
	}
	detections, err := d.ProcessRaw(anchorMajor(rows), []int{1, 4, 6})
	require.NoError(t, err)

	// Overlapping boxes survive: end-to-end heads are not suppressed.
	require.Len(t, detections, 2)
	assert.Equal(t, float32(0.9), detections[0].Probability)
	assert.InDelta(t, 0.1, detections[0].Rect.X, 1e-6)
	assert.InDelta(t, 0.2, detections[0].Rect.W, 1e-6)
	assert.Equal(t, float32(0.8), detections[1].Probability)
	assert.Equal(t, 1, d.Stats().InvalidLabel)

	_, err = d.MaskCoefficients(0)
	assert.True(t, errors.Is(err, ErrNoMask))
}

func TestMaskCoefficients(t *testing.T) {
	config := anchorFreeConfig("person")
	config.MaskCoefficients = 2
	d := newDetector(t, config)

	_, err := d.MaskCoefficients(0)
	assert.True(t, errors.Is(err, ErrNoMask), "no frame yet")

	rows := [][]float32{
		{100, 100, 20, 20, 0.1, 1, 2},
		{320, 320, 64, 64, 0.9, 0.25, -0.5},
	}
	detections, err := d.ProcessRaw(channelMajor(rows), []int{1, 7, 2})
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.Equal(t, 1, detections[0].AnchorID)

	coefficients, err := d.MaskCoefficients(detections[0].AnchorID)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.5}, coefficients)

	_, err = d.MaskCoefficients(2)
	assert.True(t, errors.Is(err, ErrNoMask))
	_, err = d.MaskCoefficients(postprocess.NoAnchor)
	assert.True(t, errors.Is(err, ErrNoMask))
}

func TestMaskCoefficientsWithoutMasks(t *testing.T) {
	d := newDetector(t, anchorFreeConfig("person"))

	_, err := d.ProcessRaw(channelMajor([][]float32{{320, 320, 64, 64, 0.9}}), []int{5, 1})
	require.NoError(t, err)
	assert.Equal(t, postprocess.NoAnchor, d.Detections()[0].AnchorID)

	_, err = d.MaskCoefficients(0)
	assert.True(t, errors.Is(err, ErrNoMask))
}

func TestScratchResize(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	core, logs := observer.New(zap.InfoLevel)
	d := newDetector(t, anchorFreeConfig("person"), WithMetrics(metrics), WithLogger(zap.New(core)))

	small := [][]float32{{320, 320, 64, 64, 0.9}, {100, 100, 10, 10, 0.6}}
	large := append(small, []float32{500, 500, 10, 10, 0.7}, []float32{50, 500, 10, 10, 0.8})

	_, err := d.ProcessRaw(channelMajor(small), []int{5, 2})
	require.NoError(t, err)
	assert.Zero(t, testutil.ToFloat64(metrics.Resizes.WithLabelValues("anchor-free")))

	detections, err := d.ProcessRaw(channelMajor(large), []int{5, 4})
	require.NoError(t, err)
	assert.Len(t, detections, 4)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Resizes.WithLabelValues("anchor-free")))
	assert.Equal(t, 1, logs.FilterMessage("resizing transpose scratch").Len())

	_, err = d.ProcessRaw(channelMajor(large), []int{5, 4})
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Resizes.WithLabelValues("anchor-free")))
}

func TestTruncation(t *testing.T) {
	config := anchorFreeConfig("person")
	config.MaxProposals = 2
	config.MaxDetections = 1

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	core, logs := observer.New(zap.WarnLevel)
	d := newDetector(t, config, WithMetrics(metrics), WithLogger(zap.New(core)))

	rows := [][]float32{
		{50, 50, 10, 10, 0.6},
		{150, 150, 10, 10, 0.9},
		{250, 250, 10, 10, 0.95},
		{350, 350, 10, 10, 0.7},
	}
	for i := 0; i < 2; i++ {
		detections, err := d.ProcessRaw(channelMajor(rows), []int{5, 4})
		require.NoError(t, err)

		// Only the first two anchors are decoded.
		require.Len(t, detections, 1)
		assert.Equal(t, float32(0.9), detections[0].Probability)
	}

	stats := d.Stats()
	assert.True(t, stats.ProposalsTruncated)
	assert.Equal(t, 2, stats.Proposals)
	assert.Equal(t, 1, stats.DetectionsTruncated)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ProposalsTruncated.WithLabelValues("anchor-free")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.DetectionsTruncated.WithLabelValues("anchor-free")))
	assert.Equal(t, 1, logs.Len(), "warns once")
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.Duration))
}

func TestNonFiniteRejected(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	d := newDetector(t, anchorFreeConfig("person"), WithMetrics(metrics))

	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	rows := [][]float32{
		{320, 320, 64, 64, nan},
		{nan, 320, 64, 64, 0.9},
		{320, 320, inf, 64, 0.9},
		{100, 100, 10, 10, 0.6},
	}
	detections, err := d.ProcessRaw(channelMajor(rows), []int{5, 4})
	require.NoError(t, err)

	require.Len(t, detections, 1)
	assert.Equal(t, float32(0.6), detections[0].Probability)
	assert.Equal(t, 3, d.Stats().NonFinite)
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.NonFinite.WithLabelValues("anchor-free")))
}

func randomAnchorFree(rng *rand.Rand, anchors, classes int) []float32 {
	rows := make([][]float32, anchors)
	for i := range rows {
		row := make([]float32, 4+classes)
		row[0] = rng.Float32() * 640
		row[1] = rng.Float32() * 640
		row[2] = 8 + rng.Float32()*120
		row[3] = 8 + rng.Float32()*120
		for c := 0; c < classes; c++ {
			// Quantized so ties occur.
			row[4+c] = float32(rng.Intn(20)) / 20
		}
		rows[i] = row
	}
	return channelMajor(rows)
}

func TestParallelMatchesSerial(t *testing.T) {
	const anchors, classes = 3000, 3
	data := randomAnchorFree(rand.New(rand.NewSource(7)), anchors, classes)
	shape := []int{1, 4 + classes, anchors}

	for _, maxProposals := range []int{5000, 50} {
		config := anchorFreeConfig("a", "b", "c")
		config.MaxProposals = maxProposals
		config.MaxDetections = 40

		serial := newDetector(t, config)
		want, err := serial.ProcessRaw(data, shape)
		require.NoError(t, err)

		config.Workers = 4
		concurrent := newDetector(t, config)
		got, err := concurrent.ProcessRaw(data, shape)
		require.NoError(t, err)

		assert.Equal(t, want, got, "max_proposals %d", maxProposals)
		assert.Equal(t, serial.Stats().Proposals, concurrent.Stats().Proposals)
		assert.Equal(t, serial.Stats().ProposalsTruncated, concurrent.Stats().ProposalsTruncated)
	}
}

func TestParallelStatsMatchSerial(t *testing.T) {
	const anchors, classes = 3000, 3
	data := randomAnchorFree(rand.New(rand.NewSource(5)), anchors, classes)
	// Channel 0 is cx. Spread rejected anchors over every chunk so counters
	// past the truncation point would show up.
	for a := 0; a < anchors; a++ {
		switch {
		case a%7 == 0:
			data[a] = float32(math.NaN())
		case a%11 == 3:
			data[a] = 5000
		}
	}
	shape := []int{1, 4 + classes, anchors}

	for _, maxProposals := range []int{5000, 50, 500} {
		config := anchorFreeConfig("a", "b", "c")
		config.MaxProposals = maxProposals
		config.MaxDetections = 40

		serial := newDetector(t, config)
		want, err := serial.ProcessRaw(data, shape)
		require.NoError(t, err)

		config.Workers = 4
		concurrent := newDetector(t, config)
		got, err := concurrent.ProcessRaw(data, shape)
		require.NoError(t, err)

		assert.Equal(t, want, got, "max_proposals %d", maxProposals)
		assert.Equal(t, serial.Stats().DecodeStats, concurrent.Stats().DecodeStats, "max_proposals %d", maxProposals)
		assert.Equal(t, serial.Stats().ProposalsTruncated, concurrent.Stats().ProposalsTruncated)
		if !serial.Stats().ProposalsTruncated {
			assert.Positive(t, serial.Stats().NonFinite)
			assert.Positive(t, serial.Stats().OutOfBounds)
		}
	}
}

func TestDetectionProperties(t *testing.T) {
	const anchors, classes = 2000, 3
	rng := rand.New(rand.NewSource(11))

	config := anchorFreeConfig("a", "b", "c")
	config.MaxDetections = 25
	config.MaxProposals = 500
	config.Workers = 3
	d := newDetector(t, config)

	for n := 0; n < 5; n++ {
		detections, err := d.ProcessRaw(randomAnchorFree(rng, anchors, classes), []int{4 + classes, anchors})
		require.NoError(t, err)

		assert.LessOrEqual(t, len(detections), config.MaxDetections)
		for i, det := range detections {
			assert.GreaterOrEqual(t, det.Probability, config.ConfidenceThreshold)
			assert.True(t, det.Rect.IsFinite())
			if i > 0 {
				assert.GreaterOrEqual(t, detections[i-1].Probability, det.Probability)
			}
			for _, prev := range detections[:i] {
				if prev.Label == det.Label {
					assert.LessOrEqual(t, prev.Rect.IoU(det.Rect), config.NMSThreshold)
				}
			}
		}
	}
}

func BenchmarkProcess(b *testing.B) {
	const anchors, classes = 8400, 80
	data := randomAnchorFree(rand.New(rand.NewSource(1)), anchors, classes)
	shape := []int{1, 4 + classes, anchors}

	for _, workers := range []int{1, 4} {
		config := DefaultConfig()
		config.Workers = workers
		d, err := New(config)
		require.NoError(b, err)

		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			b.ReportAllocs()
			for n := 0; n < b.N; n++ {
				if _, err := d.ProcessRaw(data, shape); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
