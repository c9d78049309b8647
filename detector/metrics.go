package detector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus collectors a Detector reports to. All are
// labeled by decoder family.
type Metrics struct {
	ProposalsTruncated  *prometheus.CounterVec
	DetectionsTruncated *prometheus.CounterVec
	NonFinite           *prometheus.CounterVec
	Resizes             *prometheus.CounterVec
	Duration            *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	labels := []string{"family"}

	return &Metrics{
		ProposalsTruncated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "detpost_proposals_truncated_total",
			Help: "Frames whose proposal buffer filled before decoding finished",
		}, labels),
		DetectionsTruncated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "detpost_detections_truncated_total",
			Help: "Proposals left unexamined because the detection buffer was full",
		}, labels),
		NonFinite: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "detpost_nonfinite_rejected_total",
			Help: "Anchors rejected for NaN or Inf scores or coordinates",
		}, labels),
		Resizes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "detpost_resizes_total",
			Help: "Scratch or anchor table reallocations caused by input shape changes",
		}, labels),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "detpost_postprocess_duration_seconds",
			Help:    "Time spent in transpose, decode, sort and NMS per frame",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}, labels),
	}
}
