package yolox

import (
	"math"
	"testing"

	"github.com/nvr-ai/go-postprocess/models/model"
	"github.com/nvr-ai/go-postprocess/models/postprocess"
	"github.com/nvr-ai/go-postprocess/tensorview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAnchors(t *testing.T) {
	anchors, err := GenerateAnchors(640, 640, DefaultStrides)
	require.NoError(t, err)
	assert.Len(t, anchors, 80*80+40*40+20*20)

	assert.Equal(t, Anchor{GridX: 0, GridY: 0, Stride: 8}, anchors[0])
	assert.Equal(t, Anchor{GridX: 1, GridY: 0, Stride: 8}, anchors[1], "x varies fastest")
	assert.Equal(t, Anchor{GridX: 0, GridY: 1, Stride: 8}, anchors[80])
	assert.Equal(t, Anchor{GridX: 0, GridY: 0, Stride: 16}, anchors[6400])
	assert.Equal(t, Anchor{GridX: 19, GridY: 19, Stride: 32}, anchors[len(anchors)-1])
}

func TestGenerateAnchorsNonSquare(t *testing.T) {
	anchors, err := GenerateAnchors(96, 64, []int{32})
	require.NoError(t, err)
	require.Len(t, anchors, 3*2)
	assert.Equal(t, Anchor{GridX: 2, GridY: 1, Stride: 32}, anchors[5])
}

func TestGenerateAnchorsErrors(t *testing.T) {
	_, err := GenerateAnchors(0, 640, DefaultStrides)
	assert.Error(t, err)
	_, err = GenerateAnchors(640, 640, nil)
	assert.Error(t, err)
	_, err = GenerateAnchors(640, 640, []int{8, 0})
	assert.Error(t, err)
}

// newTestModel builds a 64x64 decoder with a single stride-32 head: 4 anchors,
// 2 classes, 7 channels per anchor.
func newTestModel(t *testing.T, keepOutOfBounds bool) *YOLOX {
	t.Helper()
	m, err := NewModel(model.NewModelArgs{
		Family: model.FamilyAnchorGrid,
		Options: model.Options{
			InputWidth:          64,
			InputHeight:         64,
			ClassCount:          2,
			ConfidenceThreshold: 0.5,
			KeepOutOfBounds:     keepOutOfBounds,
		},
		Strides: []int{32},
	})
	require.NoError(t, err)
	require.Equal(t, 4, m.Anchors())
	require.Equal(t, 7, m.Channels())
	return m
}

func testOutput(t *testing.T) tensorview.ReadOnlyView2D {
	t.Helper()
	nan := float32(math.NaN())
	data := []float32{
		// tx, ty, tw, th, obj, cls0, cls1
		0.5, 0.5, 0, 0, 0.9, 0.9, 0.8, // anchor 0: both classes pass
		0.5, 0.5, 0, 0, 0.1, 0.9, 0.9, // anchor 1: low objectness
		5.0, 0.5, 0, 0, 0.9, 0.9, 0.9, // anchor 2: center at x=2.5
		0.5, 0.5, nan, 0, 0.9, 0.9, 0.9, // anchor 3: NaN size
	}
	v, err := tensorview.NewReadOnlyView2D(data, 4, 7)
	require.NoError(t, err)
	return v
}

func TestDecode(t *testing.T) {
	m := newTestModel(t, false)
	out := postprocess.NewBuffer(16)

	stats := m.Decode(testOutput(t), 0, 4, out)

	assert.Equal(t, model.DecodeStats{Proposals: 2, NonFinite: 1, OutOfBounds: 1}, stats)
	require.Equal(t, 2, out.Len())

	first, second := out.Detections()[0], out.Detections()[1]
	assert.Equal(t, 0, first.Label)
	assert.InDelta(t, 0.81, first.Probability, 1e-6)
	assert.Equal(t, 1, second.Label)
	assert.InDelta(t, 0.72, second.Probability, 1e-6)
	assert.Equal(t, first.Rect, second.Rect, "per-class proposals share the anchor box")
	assert.Equal(t, postprocess.NoAnchor, first.AnchorID)

	// center (0.5+0)*32/64 = 0.25, size exp(0)*32/64 = 0.5
	assert.InDelta(t, 0.0, first.Rect.X, 1e-6)
	assert.InDelta(t, 0.0, first.Rect.Y, 1e-6)
	assert.InDelta(t, 0.5, first.Rect.W, 1e-6)
	assert.InDelta(t, 0.5, first.Rect.H, 1e-6)
}

func TestDecodeKeepOutOfBounds(t *testing.T) {
	m := newTestModel(t, true)
	out := postprocess.NewBuffer(16)

	stats := m.Decode(testOutput(t), 0, 4, out)

	assert.Equal(t, 4, stats.Proposals)
	assert.Zero(t, stats.OutOfBounds)
}

func TestDecodeTruncates(t *testing.T) {
	m := newTestModel(t, true)
	out := postprocess.NewBuffer(3)

	stats := m.Decode(testOutput(t), 0, 4, out)

	assert.True(t, stats.Truncated)
	assert.Equal(t, 3, stats.Proposals)
	assert.Equal(t, 3, out.Len())
}

func TestDecodeRange(t *testing.T) {
	m := newTestModel(t, true)
	out := postprocess.NewBuffer(16)

	stats := m.Decode(testOutput(t), 2, 3, out)

	assert.Equal(t, 2, stats.Proposals)
	for _, d := range out.Detections() {
		cx, _ := d.Rect.Center()
		assert.InDelta(t, 2.5, cx, 1e-6)
	}
}

func TestResize(t *testing.T) {
	m := newTestModel(t, false)
	require.NoError(t, m.Resize(128, 64))
	assert.Equal(t, 8, m.Anchors())
	assert.Equal(t, 128, m.options.InputWidth)

	assert.Error(t, m.Resize(0, 64))
	assert.Equal(t, 8, m.Anchors(), "failed resize keeps the old table")
}

func TestNewModelDefaults(t *testing.T) {
	m, err := NewModel(model.NewModelArgs{
		Options: model.Options{InputWidth: 640, InputHeight: 640, ClassCount: 80, ConfidenceThreshold: 0.3},
	})
	require.NoError(t, err)
	assert.Equal(t, 8400, m.Anchors())
	assert.Equal(t, 85, m.Channels())
	assert.Equal(t, model.LayoutAnchorMajor, m.Layout())
	assert.True(t, m.NeedsNMS())

	_, err = NewModel(model.NewModelArgs{Options: model.Options{InputWidth: 640, InputHeight: 640}})
	assert.Error(t, err)
}
