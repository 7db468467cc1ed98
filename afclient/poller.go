package afclient

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fruitbox12/validator-azero/afchain"
	"github.com/fruitbox12/validator-azero/afstore"
	"github.com/fruitbox12/validator-azero/internal/afchan"
)

// DefaultPollInterval is used when [PollerConfig.Interval] is not positive.
const DefaultPollInterval = time.Second

// PollerConfig is the configuration for [NewPoller].
type PollerConfig struct {
	Backend afchain.Backend

	// How often to read the backend's chain info.
	// Zero or negative values mean [DefaultPollInterval].
	Interval time.Duration

	// Origin reported on every polled import.
	// The backend does not record who authored a block,
	// so the default of OriginGenesis is usually replaced by the caller.
	Origin afchain.Origin
}

// Poller derives import and finality streams from a backend
// that offers no push notifications,
// such as a store written by another process.
//
// Only best-block changes are observed, not every import.
type Poller struct {
	log *slog.Logger
	cfg PollerConfig

	imports    *afchan.Queue[afchain.ImportNotification]
	finalities *afchan.Queue[afchain.FinalityNotification]

	done chan struct{}
}

// NewPoller starts polling immediately and stops when ctx is canceled,
// at which point both streams are closed.
func NewPoller(ctx context.Context, log *slog.Logger, cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}

	p := &Poller{
		log: log,
		cfg: cfg,

		imports:    afchan.NewQueue[afchain.ImportNotification](ctx),
		finalities: afchan.NewQueue[afchain.FinalityNotification](ctx),

		done: make(chan struct{}),
	}
	go p.kernel(ctx)
	return p
}

func (p *Poller) Imports() <-chan afchain.ImportNotification {
	return p.imports.Out()
}

func (p *Poller) Finalities() <-chan afchain.FinalityNotification {
	return p.finalities.Out()
}

// Wait blocks until the poller and both stream goroutines have stopped.
func (p *Poller) Wait() {
	<-p.done
	p.imports.Wait()
	p.finalities.Wait()
}

func (p *Poller) kernel(ctx context.Context) {
	defer close(p.done)
	defer p.finalities.Close()
	defer p.imports.Close()

	t := time.NewTicker(p.cfg.Interval)
	defer t.Stop()

	var last afchain.Info
	for {
		last = p.poll(ctx, last)

		select {
		case <-ctx.Done():
			p.log.Info("Stopping due to context cancellation", "cause", context.Cause(ctx))
			return
		case <-t.C:
		}
	}
}

// poll publishes the differences between prev and the current chain info,
// and returns the info that the next poll compares against.
func (p *Poller) poll(ctx context.Context, prev afchain.Info) afchain.Info {
	info, err := p.cfg.Backend.Info(ctx)
	if err != nil {
		if !errors.Is(err, afstore.ErrStoreUninitialized) {
			p.log.Warn("Failed to read chain info", "err", err)
		}
		return prev
	}

	if !bytes.Equal(info.BestHash, prev.BestHash) {
		h, err := p.cfg.Backend.HeaderByHash(ctx, info.BestHash)
		if err != nil {
			p.log.Warn("Failed to load best header", "err", err)
			return prev
		}
		p.imports.Push(afchain.ImportNotification{
			Header:    h,
			IsNewBest: true,
			Origin:    p.cfg.Origin,
		})
	}

	if !bytes.Equal(info.FinalizedHash, prev.FinalizedHash) {
		target, err := p.cfg.Backend.HeaderByHash(ctx, info.FinalizedHash)
		if err != nil {
			p.log.Warn("Failed to load finalized header", "err", err)
			// Best was already published.
			info.FinalizedHash = prev.FinalizedHash
			info.FinalizedNumber = prev.FinalizedNumber
			return info
		}

		// On the first observation only the tip is reported, not the whole history.
		newly := []afchain.Header{target}
		if prev.FinalizedHash != nil {
			newly, err = finalizedRoute(func(hash []byte) (afchain.Header, error) {
				return p.cfg.Backend.HeaderByHash(ctx, hash)
			}, prev.FinalizedNumber, target)
			if err != nil {
				p.log.Warn("Failed to walk finalized route", "err", err)
				info.FinalizedHash = prev.FinalizedHash
				info.FinalizedNumber = prev.FinalizedNumber
				return info
			}
		}

		for _, h := range newly {
			p.finalities.Push(afchain.FinalityNotification{Header: h})
		}
	}

	return info
}
