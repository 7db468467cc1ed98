package afclient_test

import (
	"context"
	"testing"
	"time"

	"github.com/fruitbox12/validator-azero/afchain"
	"github.com/fruitbox12/validator-azero/afclient"
	"github.com/fruitbox12/validator-azero/afclient/afclienttest"
	"github.com/fruitbox12/validator-azero/afstore/afmemstore"
	"github.com/fruitbox12/validator-azero/internal/aftest"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newClient(t *testing.T, ctx context.Context) *afclient.Client {
	t.Helper()

	c := afclient.NewClient(ctx, aftest.NewLogger(t), afmemstore.NewChainStore())
	t.Cleanup(func() {
		c.Close()
		c.Wait()
	})
	return c
}

func TestClient_ImportBlock_longestChain(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := newClient(t, ctx)
	b := afclienttest.NewChainBuilder(ctx, t, c)

	as := b.BuildAndImportBranchAbove(b.Genesis(), 3, afchain.OriginOwn)

	// A competitor at the same height does not replace the first one seen.
	rival := b.NewChild(as[1])
	n := b.Import(rival, afchain.OriginNetworkBroadcast)
	require.False(t, n.IsNewBest)

	// A strictly higher one does.
	n = b.Import(b.NewChild(rival), afchain.OriginNetworkBroadcast)
	require.True(t, n.IsNewBest)

	info, err := c.Backend().Info(ctx)
	require.NoError(t, err)
	require.Equal(t, n.Header.Hash, info.BestHash)
	require.Equal(t, uint64(4), info.BestNumber)

	hash, err := c.Backend().HashByNumber(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, rival.Hash, hash)
}

func TestClient_ImportBlock_belowFinalizedFork(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := newClient(t, ctx)
	b := afclienttest.NewChainBuilder(ctx, t, c)

	as := b.BuildAndImportBranchAbove(b.Genesis(), 2, afchain.OriginOwn)
	b.Finalize(as[1])

	// A long branch forking below the finalized block never becomes best.
	bs := b.BuildAndImportBranchAbove(b.Genesis(), 4, afchain.OriginNetworkBroadcast)

	info, err := c.Backend().Info(ctx)
	require.NoError(t, err)
	require.Equal(t, as[1].Hash, info.BestHash)
	require.NotEqual(t, bs[3].Hash, info.BestHash)
}

func TestClient_notifications(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := newClient(t, ctx)
	imports := c.SubscribeImports()
	finalities := c.SubscribeFinality()

	b := afclienttest.NewChainBuilder(ctx, t, c)

	n := aftest.ReceiveSoon(t, imports)
	require.True(t, n.IsNewBest)
	require.Equal(t, afchain.OriginGenesis, n.Origin)

	as := b.BuildAndImportBranchAbove(b.Genesis(), 4, afchain.OriginOwn)
	for _, h := range as {
		n := aftest.ReceiveSoon(t, imports)
		require.True(t, h.Equal(n.Header))
		require.True(t, n.IsNewBest)
		require.Equal(t, afchain.OriginOwn, n.Origin)
	}

	// Finalizing the third block implicitly finalizes the first two,
	// and each height is reported in order.
	b.Finalize(as[2])
	for _, h := range as[:3] {
		fn := aftest.ReceiveSoon(t, finalities)
		require.True(t, h.Equal(fn.Header))
	}
	aftest.NotSending(t, finalities)

	// Re-finalizing reports nothing new.
	b.Finalize(as[2])
	aftest.NotSending(t, finalities)

	b.Finalize(as[3])
	fn := aftest.ReceiveSoon(t, finalities)
	require.True(t, as[3].Equal(fn.Header))
}

func TestClient_Close(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := afclient.NewClient(ctx, aftest.NewLogger(t), afmemstore.NewChainStore())
	imports := c.SubscribeImports()
	finalities := c.SubscribeFinality()

	b := afclienttest.NewChainBuilder(ctx, t, c)
	b.BuildAndImportBranchAbove(b.Genesis(), 2, afchain.OriginOwn)

	c.Close()

	// Pending notifications are still delivered before the streams close.
	for i := 0; i < 3; i++ {
		_ = aftest.ReceiveSoon(t, imports)
	}
	aftest.ClosedSoon(t, imports)
	aftest.ClosedSoon(t, finalities)

	_, err := c.ImportBlock(ctx, b.NewChild(b.Genesis()), afchain.OriginOwn)
	require.ErrorIs(t, err, afclient.ErrClosed)

	// Late subscribers see an already closed stream.
	aftest.ClosedSoon(t, c.SubscribeImports())

	c.Wait()
}

func TestPoller(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := newClient(t, ctx)
	b := afclienttest.NewChainBuilder(ctx, t, c)
	as := b.BuildAndImportBranchAbove(b.Genesis(), 2, afchain.OriginOwn)

	pollCtx, pollCancel := context.WithCancel(ctx)
	p := afclient.NewPoller(pollCtx, aftest.NewLogger(t), afclient.PollerConfig{
		Backend:  c.Backend(),
		Interval: 5 * time.Millisecond,
		Origin:   afchain.OriginNetworkBroadcast,
	})

	// The first poll reports the current best and finalized blocks.
	n := aftest.ReceiveSoon(t, p.Imports())
	require.True(t, as[1].Equal(n.Header))
	require.True(t, n.IsNewBest)
	require.Equal(t, afchain.OriginNetworkBroadcast, n.Origin)

	fn := aftest.ReceiveSoon(t, p.Finalities())
	require.True(t, b.Genesis().Equal(fn.Header))

	more := b.BuildAndImportBranchAbove(as[1], 1, afchain.OriginOwn)
	b.Finalize(more[0])

	n = aftest.ReceiveSoon(t, p.Imports())
	require.True(t, more[0].Equal(n.Header))

	for _, h := range []afchain.Header{as[0], as[1], more[0]} {
		fn := aftest.ReceiveSoon(t, p.Finalities())
		require.True(t, h.Equal(fn.Header))
	}

	pollCancel()
	aftest.ClosedSoon(t, p.Imports())
	aftest.ClosedSoon(t, p.Finalities())
	p.Wait()
}

func TestPoller_defaultInterval(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := newClient(t, ctx)
	b := afclienttest.NewChainBuilder(ctx, t, c)

	for _, interval := range []time.Duration{0, -time.Second} {
		pollCtx, pollCancel := context.WithCancel(ctx)
		p := afclient.NewPoller(pollCtx, aftest.NewLogger(t), afclient.PollerConfig{
			Backend:  c.Backend(),
			Interval: interval,
		})

		n := aftest.ReceiveSoon(t, p.Imports())
		require.True(t, b.Genesis().Equal(n.Header))

		pollCancel()
		aftest.ClosedSoon(t, p.Imports())
		p.Wait()
	}
}
