package detector

import (
	"time"

	"github.com/nvr-ai/go-postprocess/models"
	"github.com/nvr-ai/go-postprocess/models/model"
	"github.com/nvr-ai/go-postprocess/models/postprocess"
	"github.com/nvr-ai/go-postprocess/parallel"
	"github.com/nvr-ai/go-postprocess/tensorview"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorgonia.org/tensor"
)

// Stats describes the last processed frame.
type Stats struct {
	model.DecodeStats
	// Anchors is the number of anchor rows decoded.
	Anchors int
	// Detections is the number of detections returned.
	Detections int
	// ProposalsTruncated is set when the proposal buffer filled up, so some
	// anchors (the later ones in anchor order) were never decoded.
	ProposalsTruncated bool
	// DetectionsTruncated counts proposals left unexamined because the
	// detection buffer filled up.
	DetectionsTruncated int
	// Duration is the wall time of the frame.
	Duration time.Duration
}

// Detector owns the buffers of one post-processing pipeline and runs it once
// per frame: transpose (when the model output is channel-major), parallel
// decode, sort, then sequential NMS.
//
// A Detector is not safe for concurrent use. The slices it returns are reused
// by the next call to Process.
type Detector struct {
	config  Config
	decoder model.Decoder
	labels  *models.Labels
	nms     postprocess.NMSConfig
	workers int

	proposals  *postprocess.Buffer
	detections *postprocess.Buffer
	chunks     []*postprocess.Buffer
	ranges     []parallel.Range
	chunkStats []model.DecodeStats

	scratch     []float32
	anchorMajor tensorview.ReadOnlyView2D
	hasFrame    bool

	stats         Stats
	warnedOnTrunc bool

	log     *zap.Logger
	metrics *Metrics
}

// Option customizes a Detector.
type Option func(*Detector)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.log = l
		}
	}
}

// WithMetrics sets the Prometheus collectors to report to.
func WithMetrics(m *Metrics) Option {
	return func(d *Detector) {
		d.metrics = m
	}
}

// New builds a Detector and allocates every buffer it will use per frame.
//
// Arguments:
//   - config: The pipeline configuration.
//   - opts: Logger and metrics options.
//
// Returns:
//   - The detector.
//   - ErrClassCount, ErrInvalidConfig or a decoder error for bad configurations.
//
// @example
// d, err := detector.New(detector.DefaultConfig(), detector.WithLogger(logger.Log()))
//
//	if err != nil {
//	    return err
//	}
//
// detections, err := d.ProcessRaw(output, []int{1, 84, 8400})
func New(config Config, opts ...Option) (*Detector, error) {
	labels, err := config.ResolveLabels()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(labels); err != nil {
		return nil, err
	}
	decoder, err := models.NewDecoder(config.modelArgs(labels))
	if err != nil {
		return nil, errors.Wrap(err, "create decoder")
	}

	d := &Detector{
		config:  config,
		decoder: decoder,
		labels:  labels,
		nms: postprocess.NMSConfig{
			IoUThreshold:  config.NMSThreshold,
			ClassAgnostic: config.ClassAgnosticNMS,
		},
		workers:    parallel.Workers(config.Workers),
		proposals:  postprocess.NewBuffer(config.proposalCapacity()),
		detections: postprocess.NewBuffer(config.MaxDetections),
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.workers > 1 {
		d.chunks = make([]*postprocess.Buffer, d.workers)
		for i := range d.chunks {
			d.chunks[i] = postprocess.NewBuffer(d.proposals.Cap())
		}
		d.chunkStats = make([]model.DecodeStats, d.workers)
	}

	d.log = d.log.With(zap.String("family", string(decoder.Family())))
	d.log.Debug("detector ready",
		zap.Int("input_width", config.InputWidth),
		zap.Int("input_height", config.InputHeight),
		zap.Int("channels", decoder.Channels()),
		zap.Int("max_proposals", d.proposals.Cap()),
		zap.Int("max_detections", d.detections.Cap()),
		zap.Int("workers", d.workers))
	return d, nil
}

// ProcessRaw runs the pipeline over a flat output buffer and its logical
// shape, which may carry a leading batch dimension of 1.
func (d *Detector) ProcessRaw(data []float32, shape []int) ([]postprocess.Detection, error) {
	view, err := tensorview.FromShape(data, shape)
	if err != nil {
		return nil, err
	}
	return d.Process(view)
}

// ProcessDense runs the pipeline over a gorgonia tensor.
func (d *Detector) ProcessDense(t *tensor.Dense) ([]postprocess.Detection, error) {
	view, err := tensorview.FromDense(t)
	if err != nil {
		return nil, err
	}
	return d.Process(view)
}

// ProcessOrt runs the pipeline over an onnxruntime output tensor.
func (d *Detector) ProcessOrt(t tensorview.OrtTensor) ([]postprocess.Detection, error) {
	view, err := tensorview.FromOrt(t)
	if err != nil {
		return nil, err
	}
	return d.Process(view)
}

// Process runs the pipeline over one frame of model output.
//
// The view is (channels, anchors) for channel-major families and
// (anchors, channels) otherwise. It is only read.
//
// Arguments:
//   - output: The raw model output without batch dimension.
//
// Returns:
//   - The detections, sorted by descending probability. The slice is valid
//     until the next call.
//   - ErrChannels or ErrAnchors if the output does not fit the decoder.
func (d *Detector) Process(output tensorview.ReadOnlyView2D) ([]postprocess.Detection, error) {
	start := time.Now()
	family := string(d.decoder.Family())

	anchorMajor, err := d.layout(output)
	if err != nil {
		return nil, err
	}
	anchors := anchorMajor.Rows()

	decoded := d.decode(anchorMajor)

	proposals := d.proposals.Detections()
	postprocess.SortByProbability(proposals)

	var dropped int
	if d.decoder.NeedsNMS() {
		dropped = postprocess.NMS(proposals, d.detections, d.nms)
	} else {
		d.detections.Reset()
		dropped = len(proposals) - d.detections.AppendAll(proposals)
	}

	d.anchorMajor = anchorMajor
	d.hasFrame = true
	d.stats = Stats{
		DecodeStats:         decoded,
		Anchors:             anchors,
		Detections:          d.detections.Len(),
		ProposalsTruncated:  decoded.Truncated,
		DetectionsTruncated: dropped,
		Duration:            time.Since(start),
	}
	d.report(family)

	return d.detections.Detections(), nil
}

// layout validates the output shape and returns an anchor-major view of it,
// transposing into scratch space when needed.
func (d *Detector) layout(output tensorview.ReadOnlyView2D) (tensorview.ReadOnlyView2D, error) {
	channels := d.decoder.Channels()

	var anchors, got int
	if d.decoder.Layout() == model.LayoutChannelMajor {
		got, anchors = output.Rows(), output.Cols()
	} else {
		anchors, got = output.Rows(), output.Cols()
	}
	if got != channels {
		return tensorview.ReadOnlyView2D{}, errors.Wrapf(ErrChannels,
			"output %v has %d channels, %s layout needs %d", output.Shape(), got, d.decoder.Layout(), channels)
	}
	if want := d.decoder.Anchors(); want != model.AnyAnchors && want != anchors {
		return tensorview.ReadOnlyView2D{}, errors.Wrapf(ErrAnchors,
			"output has %d anchors, %dx%d input needs %d; call SetInputSize for a new resolution",
			anchors, d.config.InputWidth, d.config.InputHeight, want)
	}

	if d.decoder.Layout() == model.LayoutAnchorMajor {
		return output, nil
	}

	if len(d.scratch) != output.Len() {
		if d.scratch != nil {
			d.log.Info("resizing transpose scratch",
				zap.Int("from_anchors", len(d.scratch)/channels),
				zap.Int("to_anchors", anchors))
			d.countResize()
		}
		d.scratch = make([]float32, output.Len())
	}
	scratch, err := tensorview.NewView2D(d.scratch, anchors, channels)
	if err != nil {
		return tensorview.ReadOnlyView2D{}, err
	}
	if err := tensorview.TransposeParallel(output, scratch, d.workers); err != nil {
		return tensorview.ReadOnlyView2D{}, errors.Wrap(err, "transpose output")
	}
	return scratch.ReadOnly(), nil
}

// decode fills the proposal buffer. With several workers each chunk of
// anchors decodes into its own buffer, then the chunks are copied in anchor
// order, so the result matches a single-threaded decode exactly.
func (d *Detector) decode(view tensorview.ReadOnlyView2D) model.DecodeStats {
	d.proposals.Reset()
	anchors := view.Rows()

	if d.workers <= 1 || anchors < d.workers*2 {
		return d.decoder.Decode(view, 0, anchors, d.proposals)
	}

	if n := len(d.ranges); n == 0 || d.ranges[n-1].End != anchors {
		d.ranges = parallel.Chunks(anchors, d.workers)
	}
	parallel.ForEach(d.ranges, func(i int, r parallel.Range) {
		d.chunks[i].Reset()
		d.chunkStats[i] = d.decoder.Decode(view, r.Start, r.End, d.chunks[i])
	})

	var stats model.DecodeStats
	for i, r := range d.ranges {
		chunk := d.chunks[i].Detections()
		cs := d.chunkStats[i]
		if cs.Truncated || d.proposals.Len()+len(chunk) > d.proposals.Cap() {
			// The buffer fills inside this chunk. Its counters cover anchors
			// past the cut, so decode the range again on top of the merged
			// prefix and stop where a sequential decode would.
			stats.Add(d.decoder.Decode(view, r.Start, r.End, d.proposals))
			break
		}
		d.proposals.AppendAll(chunk)
		stats.Add(cs)
	}
	return stats
}

func (d *Detector) report(family string) {
	s := d.stats

	if s.ProposalsTruncated {
		fields := []zap.Field{
			zap.Int("capacity", d.proposals.Cap()),
			zap.Int("anchors", s.Anchors),
		}
		if !d.warnedOnTrunc {
			d.warnedOnTrunc = true
			d.log.Warn("proposal buffer full, later anchors dropped; consider raising max_proposals", fields...)
		} else {
			d.log.Debug("proposal buffer full", fields...)
		}
	}
	if s.DetectionsTruncated > 0 {
		d.log.Debug("detection buffer full",
			zap.Int("capacity", d.detections.Cap()),
			zap.Int("unexamined", s.DetectionsTruncated))
	}
	if s.NonFinite > 0 {
		d.log.Debug("non-finite values rejected", zap.Int("anchors", s.NonFinite))
	}

	if d.metrics == nil {
		return
	}
	if s.ProposalsTruncated {
		d.metrics.ProposalsTruncated.WithLabelValues(family).Inc()
	}
	if s.DetectionsTruncated > 0 {
		d.metrics.DetectionsTruncated.WithLabelValues(family).Add(float64(s.DetectionsTruncated))
	}
	if s.NonFinite > 0 {
		d.metrics.NonFinite.WithLabelValues(family).Add(float64(s.NonFinite))
	}
	d.metrics.Duration.WithLabelValues(family).Observe(s.Duration.Seconds())
}

func (d *Detector) countResize() {
	if d.metrics != nil {
		d.metrics.Resizes.WithLabelValues(string(d.decoder.Family())).Inc()
	}
}

// SetInputSize switches the pipeline to a new model input resolution: the
// anchor table is regenerated and the normalization updated. Transpose
// scratch follows on the next frame.
func (d *Detector) SetInputSize(width, height int) error {
	if width == d.config.InputWidth && height == d.config.InputHeight {
		return nil
	}
	r, ok := d.decoder.(model.Resizable)
	if !ok {
		return errors.Errorf("detector: %s decoder cannot be resized", d.decoder.Family())
	}
	if err := r.Resize(width, height); err != nil {
		return err
	}

	d.log.Info("input size changed",
		zap.Int("from_width", d.config.InputWidth),
		zap.Int("from_height", d.config.InputHeight),
		zap.Int("to_width", width),
		zap.Int("to_height", height))
	d.config.InputWidth = width
	d.config.InputHeight = height
	d.ranges = nil
	d.hasFrame = false
	d.countResize()
	return nil
}

// Detections returns the detections of the last frame.
func (d *Detector) Detections() []postprocess.Detection {
	return d.detections.Detections()
}

// Count returns the number of detections of the last frame.
func (d *Detector) Count() int {
	return d.detections.Len()
}

// Stats returns the statistics of the last frame.
func (d *Detector) Stats() Stats {
	return d.stats
}

// Config returns the active configuration.
func (d *Detector) Config() Config {
	return d.config
}

// Labels returns the label names, or nil if none were configured.
func (d *Detector) Labels() *models.Labels {
	return d.labels
}

// LabelOf returns the name of a detection's label, or "" if unknown.
func (d *Detector) LabelOf(det postprocess.Detection) string {
	if d.labels == nil {
		return ""
	}
	return d.labels.Name(det.Label)
}

// MaskCoefficients returns the mask coefficients of a detection from the
// last frame, for combination with the prototype masks by the renderer.
//
// Arguments:
//   - anchorID: The Detection.AnchorID.
//
// Returns:
//   - The coefficients. The slice aliases internal scratch and is valid until
//     the next call to Process.
//   - ErrNoMask when the decoder has no mask channels, no frame was processed
//     or the anchor is unknown.
func (d *Detector) MaskCoefficients(anchorID int) ([]float32, error) {
	seg, ok := d.decoder.(model.Segmenter)
	if !ok || seg.MaskWidth() == 0 {
		return nil, errors.Wrapf(ErrNoMask, "%s decoder", d.decoder.Family())
	}
	if !d.hasFrame {
		return nil, errors.Wrap(ErrNoMask, "no frame processed")
	}
	if anchorID < 0 || anchorID >= d.anchorMajor.Rows() {
		return nil, errors.Wrapf(ErrNoMask, "anchor %d outside [0,%d)", anchorID, d.anchorMajor.Rows())
	}
	row := d.anchorMajor.Row(anchorID)
	return row[len(row)-seg.MaskWidth():], nil
}
