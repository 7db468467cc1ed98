// Package afclienttest builds block trees through an [afclient.Client] for tests.
package afclienttest

import (
	"context"
	"fmt"
	"testing"

	"github.com/fruitbox12/validator-azero/afchain"
	"github.com/fruitbox12/validator-azero/afclient"
	"github.com/stretchr/testify/require"
)

// ChainBuilder creates uniquely hashed headers and imports them.
// Every failure is fatal to the test.
type ChainBuilder struct {
	tb     testing.TB
	ctx    context.Context
	client *afclient.Client

	genesis afchain.Header

	// Distinguishes otherwise identical headers on sibling branches.
	seq int
}

// NewChainBuilder imports a genesis block into client.
func NewChainBuilder(ctx context.Context, tb testing.TB, client *afclient.Client) *ChainBuilder {
	tb.Helper()

	g := afchain.Header{Digest: []byte("genesis")}
	g.Hash = afchain.HashHeader(g)

	_, err := client.ImportBlock(ctx, g, afchain.OriginGenesis)
	require.NoError(tb, err)

	return &ChainBuilder{
		tb:      tb,
		ctx:     ctx,
		client:  client,
		genesis: g,
	}
}

func (b *ChainBuilder) Genesis() afchain.Header {
	return b.genesis
}

// NewChild returns a fresh header extending parent, without importing it.
func (b *ChainBuilder) NewChild(parent afchain.Header) afchain.Header {
	b.seq++
	h := afchain.Header{
		ParentHash: parent.Hash,
		Number:     parent.Number + 1,
		Digest:     []byte(fmt.Sprintf("block-%d", b.seq)),
	}
	h.Hash = afchain.HashHeader(h)
	return h
}

// Import imports h with the given origin.
func (b *ChainBuilder) Import(h afchain.Header, origin afchain.Origin) afchain.ImportNotification {
	b.tb.Helper()

	n, err := b.client.ImportBlock(b.ctx, h, origin)
	require.NoError(b.tb, err)
	return n
}

// BuildAndImportBranchAbove imports n new blocks, each extending the previous,
// starting above parent. The headers are returned lowest first.
func (b *ChainBuilder) BuildAndImportBranchAbove(parent afchain.Header, n int, origin afchain.Origin) []afchain.Header {
	b.tb.Helper()

	out := make([]afchain.Header, n)
	for i := range out {
		parent = b.NewChild(parent)
		b.Import(parent, origin)
		out[i] = parent
	}
	return out
}

// Finalize finalizes h with a placeholder justification.
func (b *ChainBuilder) Finalize(h afchain.Header) {
	b.tb.Helper()

	require.NoError(b.tb, b.client.Finalize(b.ctx, h.Hash, []byte("justification")))
}
