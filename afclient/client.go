// Package afclient is a minimal block-import client over an [afstore.ChainStore].
//
// It applies the longest-chain rule on import,
// records finality,
// and publishes the import and finality notification streams
// that the chain state tracker consumes.
package afclient

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/fruitbox12/validator-azero/afchain"
	"github.com/fruitbox12/validator-azero/afstore"
	"github.com/fruitbox12/validator-azero/internal/afchan"
	"github.com/fruitbox12/validator-azero/internal/aflog"
)

// Client serializes writes to a [afstore.ChainStore]
// and fans out notifications to subscribers.
type Client struct {
	log   *slog.Logger
	store afstore.ChainStore

	// Subscriber queues live until ctx is canceled or Close is called.
	ctx context.Context

	mu         sync.Mutex
	closed     bool
	importQs   []*afchan.Queue[afchain.ImportNotification]
	finalityQs []*afchan.Queue[afchain.FinalityNotification]
}

func NewClient(ctx context.Context, log *slog.Logger, store afstore.ChainStore) *Client {
	return &Client{
		log:   log,
		store: store,
		ctx:   ctx,
	}
}

// Backend returns the read-only view of the underlying store.
func (c *Client) Backend() afchain.Backend {
	return c.store
}

// SubscribeImports returns a stream receiving every import
// from this call onward.
// The stream is closed after Close, once its backlog is drained.
func (c *Client) SubscribeImports() <-chan afchain.ImportNotification {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := afchan.NewQueue[afchain.ImportNotification](c.ctx)
	if c.closed {
		q.Close()
	} else {
		c.importQs = append(c.importQs, q)
	}
	return q.Out()
}

// SubscribeFinality returns a stream receiving one notification
// per newly finalized height from this call onward.
// The stream is closed after Close, once its backlog is drained.
func (c *Client) SubscribeFinality() <-chan afchain.FinalityNotification {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := afchan.NewQueue[afchain.FinalityNotification](c.ctx)
	if c.closed {
		q.Close()
	} else {
		c.finalityQs = append(c.finalityQs, q)
	}
	return q.Out()
}

// ImportBlock saves h and publishes an import notification.
//
// The block becomes the new best block if it descends from the finalized block
// and is strictly higher than the current best block.
// Between equally high competitors the one imported first stays best.
func (c *Client) ImportBlock(ctx context.Context, h afchain.Header, origin afchain.Origin) (afchain.ImportNotification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return afchain.ImportNotification{}, ErrClosed
	}

	h = h.Clone()
	if err := c.store.SaveHeader(ctx, h); err != nil {
		return afchain.ImportNotification{}, fmt.Errorf("failed to save header: %w", err)
	}

	info, err := c.store.Info(ctx)
	if err != nil {
		return afchain.ImportNotification{}, fmt.Errorf("failed to load chain info: %w", err)
	}

	isNewBest := bytes.Equal(info.BestHash, h.Hash)
	if !isNewBest && h.Number > info.BestNumber {
		isNewBest, err = afstore.IsAncestor(
			c.lookup(ctx),
			afchain.BlockID{Hash: info.FinalizedHash, Number: info.FinalizedNumber},
			h,
		)
		if err != nil {
			return afchain.ImportNotification{}, fmt.Errorf("failed to check finalized ancestry: %w", err)
		}
		if isNewBest {
			if err := c.store.SetBest(ctx, h.Hash); err != nil {
				return afchain.ImportNotification{}, fmt.Errorf("failed to set best block: %w", err)
			}
		}
	}

	n := afchain.ImportNotification{
		Header:    h,
		IsNewBest: isNewBest,
		Origin:    origin,
	}

	aflog.ID(c.log, h.Hash, h.Number).Debug(
		"Imported block",
		"origin", origin,
		"is_new_best", isNewBest,
	)

	for _, q := range c.importQs {
		q.Push(n)
	}
	return n, nil
}

// Finalize records justification for hash
// and publishes one finality notification for each height
// between the previously finalized block (exclusive) and hash (inclusive),
// lowest first.
func (c *Client) Finalize(ctx context.Context, hash, justification []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	before, err := c.store.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to load chain info: %w", err)
	}

	if err := c.store.Finalize(ctx, hash, justification); err != nil {
		return fmt.Errorf("failed to finalize: %w", err)
	}

	target, err := c.store.HeaderByHash(ctx, hash)
	if err != nil {
		return fmt.Errorf("failed to load finalized header: %w", err)
	}

	newly, err := finalizedRoute(c.lookup(ctx), before.FinalizedNumber, target)
	if err != nil {
		return err
	}

	aflog.ID(c.log, target.Hash, target.Number).Debug(
		"Finalized block",
		"newly_finalized", len(newly),
	)

	for _, h := range newly {
		n := afchain.FinalityNotification{Header: h}
		for _, q := range c.finalityQs {
			q.Push(n)
		}
	}
	return nil
}

// Close stops accepting writes and closes every subscriber stream
// once each has delivered its backlog.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	for _, q := range c.importQs {
		q.Close()
	}
	for _, q := range c.finalityQs {
		q.Close()
	}
}

// Wait blocks until every subscriber stream has been closed.
// That happens after Close once the backlogs drain,
// or when the client's context is canceled.
func (c *Client) Wait() {
	c.mu.Lock()
	iqs := slices.Clone(c.importQs)
	fqs := slices.Clone(c.finalityQs)
	c.mu.Unlock()

	for _, q := range iqs {
		q.Wait()
	}
	for _, q := range fqs {
		q.Wait()
	}
}

func (c *Client) lookup(ctx context.Context) afstore.HeaderLookup {
	return func(hash []byte) (afchain.Header, error) {
		return c.store.HeaderByHash(ctx, hash)
	}
}

// finalizedRoute returns the headers above height `from` up to and including target,
// in ascending order.
func finalizedRoute(getHeader afstore.HeaderLookup, from uint64, target afchain.Header) ([]afchain.Header, error) {
	if target.Number <= from {
		// Re-finalization of the same block.
		return nil, nil
	}

	out := make([]afchain.Header, target.Number-from)
	cur := target
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = cur
		if i == 0 {
			break
		}
		var err error
		cur, err = getHeader(cur.ParentHash)
		if err != nil {
			return nil, fmt.Errorf("failed to load finalized ancestor: %w", err)
		}
	}
	return out, nil
}
