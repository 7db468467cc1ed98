// Package afmetrics tracks chain state metrics:
// best and finalized heights, reorg lengths,
// and the fate of blocks authored by this node.
package afmetrics

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Measure receives chain state observations.
// Implementations need not be safe for concurrent use;
// the [Tracker] calls them from a single goroutine.
type Measure interface {
	// A block authored by this node was finalized.
	IncrementOwnFinalizedBlocks()

	// A block authored by this node lost the fork race at its height.
	IncrementOwnHopelessBlocks()

	UpdateBestBlock(number uint64)
	UpdateTopFinalizedBlock(number uint64)

	// ReportReorg records the number of blocks abandoned by a best-chain switch.
	ReportReorg(length uint64)
}

// NewMeasure returns a [PrometheusMeasure] registered with reg.
// If reg is nil, or registration fails, it returns a [NopMeasure] instead;
// a registration failure is logged as a warning.
func NewMeasure(log *slog.Logger, reg prometheus.Registerer) Measure {
	if reg == nil {
		return NopMeasure{}
	}

	m, err := NewPrometheusMeasure(reg)
	if err != nil {
		log.Warn("Failed to create chain state metrics; continuing without them", "err", err)
		return NopMeasure{}
	}
	return m
}
