package afmetrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReorgBuckets are the histogram buckets for reorg lengths.
var ReorgBuckets = []float64{1, 2, 3, 5, 10}

// PrometheusMeasure implements [Measure] with Prometheus collectors.
type PrometheusMeasure struct {
	ownFinalizedBlocks prometheus.Counter
	ownHopelessBlocks  prometheus.Counter
	topFinalizedBlock  prometheus.Gauge
	bestBlock          prometheus.Gauge
	reorgs             prometheus.Histogram
}

// NewPrometheusMeasure creates the collectors and registers them all with reg.
// Registering twice with the same registerer fails.
func NewPrometheusMeasure(reg prometheus.Registerer) (*PrometheusMeasure, error) {
	m := &PrometheusMeasure{
		ownFinalizedBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aleph_own_finalized_blocks",
			Help: "Number of finalized blocks authored by this node",
		}),
		ownHopelessBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aleph_own_hopeless_blocks",
			Help: "Number of blocks authored by this node that can no longer be finalized",
		}),
		topFinalizedBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aleph_top_finalized_block",
			Help: "Height of the highest finalized block",
		}),
		bestBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aleph_best_block",
			Help: "Height of the best block",
		}),
		reorgs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aleph_reorgs",
			Help:    "Number of reorgs by length",
			Buckets: ReorgBuckets,
		}),
	}

	for _, c := range []prometheus.Collector{
		m.ownFinalizedBlocks,
		m.ownHopelessBlocks,
		m.topFinalizedBlock,
		m.bestBlock,
		m.reorgs,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return m, nil
}

func (m *PrometheusMeasure) IncrementOwnFinalizedBlocks() { m.ownFinalizedBlocks.Inc() }
func (m *PrometheusMeasure) IncrementOwnHopelessBlocks()  { m.ownHopelessBlocks.Inc() }

func (m *PrometheusMeasure) UpdateBestBlock(number uint64) {
	m.bestBlock.Set(float64(number))
}

func (m *PrometheusMeasure) UpdateTopFinalizedBlock(number uint64) {
	m.topFinalizedBlock.Set(float64(number))
}

func (m *PrometheusMeasure) ReportReorg(length uint64) {
	m.reorgs.Observe(float64(length))
}

// Handler serves the metrics gathered by reg in the Prometheus exposition format,
// instrumented with the standard promhttp request metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.InstrumentMetricHandler(
		reg, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	)
}
