package afmetrics

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/fruitbox12/validator-azero/afchain"
	"github.com/fruitbox12/validator-azero/internal/aflog"
)

// TrackerConfig is the configuration for [NewTracker].
type TrackerConfig struct {
	// Used to compute reorg lengths,
	// and to resolve own blocks imported after their height was finalized.
	Backend afchain.HeaderBackend

	Measure Measure

	// Every import notification.
	// Those neither new-best nor authored by this node are ignored.
	Imports <-chan afchain.ImportNotification

	// One notification per newly finalized height, in ascending order.
	Finalities <-chan afchain.FinalityNotification
}

// Tracker consumes import and finality streams and reports to a [Measure].
//
// The tracker stops when its context is canceled
// or when either stream is closed;
// a closed stream is logged as a warning.
type Tracker struct {
	log *slog.Logger
	cfg TrackerConfig

	// Hashes of self-authored blocks, by height,
	// whose height has not been finalized yet.
	pendingOwn map[uint64][][]byte

	prevBest     *afchain.Header
	topFinalized uint64

	done chan struct{}
}

// NewTracker starts a tracker in a background goroutine.
func NewTracker(ctx context.Context, log *slog.Logger, cfg TrackerConfig) *Tracker {
	t := &Tracker{
		log: log,
		cfg: cfg,

		pendingOwn: make(map[uint64][][]byte),

		done: make(chan struct{}),
	}
	go t.kernel(ctx)
	return t
}

// Wait blocks until the tracker's goroutine has exited.
func (t *Tracker) Wait() {
	<-t.done
}

func (t *Tracker) kernel(ctx context.Context) {
	defer close(t.done)

	for {
		select {
		case <-ctx.Done():
			t.log.Info("Stopping due to context cancellation", "cause", context.Cause(ctx))
			return

		case n, ok := <-t.cfg.Imports:
			if !ok {
				t.log.Warn("Import notification stream ended unexpectedly")
				return
			}
			if !n.IsNewBest && n.Origin != afchain.OriginOwn {
				continue
			}
			t.handleImport(ctx, n)

		case n, ok := <-t.cfg.Finalities:
			if !ok {
				t.log.Warn("Finality notification stream ended unexpectedly")
				return
			}
			t.handleFinality(n)
		}
	}
}

func (t *Tracker) handleImport(ctx context.Context, n afchain.ImportNotification) {
	h := n.Header

	if n.Origin == afchain.OriginOwn {
		if t.topFinalized > 0 && h.Number <= t.topFinalized {
			// The height was finalized before this import arrived,
			// so it will never be reported again.
			t.resolveLateOwn(ctx, h)
		} else {
			t.pendingOwn[h.Number] = append(t.pendingOwn[h.Number], h.Hash)
		}
	}

	if !n.IsNewBest {
		return
	}

	t.cfg.Measure.UpdateBestBlock(h.Number)

	if t.prevBest != nil {
		length, ok, err := ReorgLength(ctx, t.cfg.Backend, *t.prevBest, h)
		if err != nil {
			aflog.ID(t.log, h.Hash, h.Number).Warn(
				"Failed to check for reorg",
				"prev_best", aflog.Hex(t.prevBest.Hash),
				"err", err,
			)
		} else if ok {
			aflog.ID(t.log, h.Hash, h.Number).Debug(
				"Detected reorg",
				"length", length,
				"prev_best", aflog.Hex(t.prevBest.Hash),
			)
			t.cfg.Measure.ReportReorg(length)
		}
	}
	t.prevBest = &h
}

func (t *Tracker) handleFinality(n afchain.FinalityNotification) {
	h := n.Header

	t.cfg.Measure.UpdateTopFinalizedBlock(h.Number)
	t.topFinalized = max(t.topFinalized, h.Number)

	own, ok := t.pendingOwn[h.Number]
	if !ok {
		return
	}
	delete(t.pendingOwn, h.Number)

	for _, hash := range own {
		if bytes.Equal(hash, h.Hash) {
			t.cfg.Measure.IncrementOwnFinalizedBlocks()
		} else {
			t.cfg.Measure.IncrementOwnHopelessBlocks()
		}
	}
}

// resolveLateOwn classifies an own block whose height is already finalized
// by comparing it with the canonical block at that height.
func (t *Tracker) resolveLateOwn(ctx context.Context, h afchain.Header) {
	canon, err := t.cfg.Backend.HashByNumber(ctx, h.Number)
	if err != nil {
		var hue afchain.HeightUnknownError
		if !errors.As(err, &hue) {
			aflog.ID(t.log, h.Hash, h.Number).Warn(
				"Failed to resolve late own block", "err", err,
			)
			return
		}
	}

	if slices.Equal(canon, h.Hash) {
		t.cfg.Measure.IncrementOwnFinalizedBlocks()
	} else {
		t.cfg.Measure.IncrementOwnHopelessBlocks()
	}
}
