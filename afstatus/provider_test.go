package afstatus_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/fruitbox12/validator-azero/afchain"
	"github.com/fruitbox12/validator-azero/afjustification"
	"github.com/fruitbox12/validator-azero/afstatus"
	"github.com/fruitbox12/validator-azero/afstore/afmemstore"
	"github.com/fruitbox12/validator-azero/afstore/afstoretest"
	"github.com/fruitbox12/validator-azero/internal/aftest"
	"github.com/stretchr/testify/require"
)

func validJustification(t *testing.T, tag string) []byte {
	t.Helper()

	raw, err := afjustification.Encode(afjustification.Justification{
		Version: 3,
		Payload: []byte(tag),
	})
	require.NoError(t, err)
	return raw
}

// fixture is a genesis block with a three block branch A,
// where A[1] is finalized with a valid justification,
// plus a sibling B[0] of A[0].
type fixture struct {
	store *afmemstore.ChainStore

	g  afchain.Header
	as []afchain.Header
	b  afchain.Header
}

func newFixture(t *testing.T, ctx context.Context) fixture {
	t.Helper()

	s := afmemstore.NewChainStore()
	g := afstoretest.Genesis("g")
	as := afstoretest.Branch(g, "a", 3)
	b := afstoretest.Child(g, "b")

	require.NoError(t, s.SaveHeader(ctx, g))
	for _, h := range append(as, b) {
		require.NoError(t, s.SaveHeader(ctx, h))
	}
	require.NoError(t, s.SetBest(ctx, as[2].Hash))
	require.NoError(t, s.Finalize(ctx, as[1].Hash, validJustification(t, "a1")))

	return fixture{store: s, g: g, as: as, b: b}
}

func TestProvider_StatusOf(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, ctx)
	p := afstatus.NewProvider(aftest.NewLogger(t), f.store, nil)

	st, err := p.StatusOf(ctx, afchain.BlockID{Hash: []byte("nope"), Number: 1})
	require.NoError(t, err)
	require.Equal(t, afchain.BlockStatusUnknown, st.Kind)

	st, err = p.StatusOf(ctx, f.as[0].ID())
	require.NoError(t, err)
	require.Equal(t, afchain.BlockStatusPresent, st.Kind)
	require.True(t, f.as[0].Equal(st.Header))

	st, err = p.StatusOf(ctx, f.as[1].ID())
	require.NoError(t, err)
	require.Equal(t, afchain.BlockStatusJustified, st.Kind)
	require.True(t, f.as[1].Equal(st.Justification.Header))
	require.Equal(t, validJustification(t, "a1"), st.Justification.Raw)

	wrong := afchain.BlockID{Hash: f.as[1].Hash, Number: 7}
	_, err = p.StatusOf(ctx, wrong)
	require.ErrorIs(t, err, afstatus.MismatchedIDError{ID: wrong, HeaderNumber: 2})
}

func TestProvider_StatusOf_idempotent(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, ctx)
	p := afstatus.NewProvider(aftest.NewLogger(t), f.store, nil)

	for _, id := range []afchain.BlockID{f.g.ID(), f.as[0].ID(), f.as[1].ID(), f.b.ID()} {
		first, err := p.StatusOf(ctx, id)
		require.NoError(t, err)
		second, err := p.StatusOf(ctx, id)
		require.NoError(t, err)
		require.Equal(t, first, second)
	}
}

func TestProvider_undecodableJustification(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := afmemstore.NewChainStore()
	g := afstoretest.Genesis("g")
	a := afstoretest.Child(g, "a")
	require.NoError(t, s.SaveHeader(ctx, g))
	require.NoError(t, s.SaveHeader(ctx, a))
	require.NoError(t, s.Finalize(ctx, a.Hash, []byte{0, 9, 9}))

	p := afstatus.NewProvider(aftest.NewLogger(t), s, nil)

	// The block is still there, just not justified.
	st, err := p.StatusOf(ctx, a.ID())
	require.NoError(t, err)
	require.Equal(t, afchain.BlockStatusPresent, st.Kind)

	_, ok, err := p.FinalizedAt(ctx, 1)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = p.TopFinalized(ctx)
	require.ErrorIs(t, err, afstatus.MissingJustificationError{Hash: a.Hash})

	// A custom decoder can accept what the default rejects.
	p = afstatus.NewProvider(aftest.NewLogger(t), s, func([]byte) error { return nil })
	st, err = p.StatusOf(ctx, a.ID())
	require.NoError(t, err)
	require.Equal(t, afchain.BlockStatusJustified, st.Kind)
}

func TestProvider_FinalizedAt(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, ctx)
	p := afstatus.NewProvider(aftest.NewLogger(t), f.store, nil)

	j, ok, err := p.FinalizedAt(ctx, 2)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, f.as[1].Equal(j.Header))

	// Present but not justified.
	_, ok, err = p.FinalizedAt(ctx, 1)
	require.NoError(t, err)
	require.False(t, ok)

	// Beyond the canonical chain.
	_, ok, err = p.FinalizedAt(ctx, 50)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestProvider_BestBlock_TopFinalized(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, ctx)
	p := afstatus.NewProvider(aftest.NewLogger(t), f.store, nil)

	best, err := p.BestBlock(ctx)
	require.NoError(t, err)
	require.True(t, f.as[2].Equal(best))

	top, err := p.TopFinalized(ctx)
	require.NoError(t, err)
	require.True(t, f.as[1].Equal(top.Header))
	require.Equal(t, validJustification(t, "a1"), top.Raw)
}

func TestProvider_Children(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, ctx)
	p := afstatus.NewProvider(aftest.NewLogger(t), f.store, nil)

	children, err := p.Children(ctx, f.g.ID())
	require.NoError(t, err)
	require.Len(t, children, 2)
	var hashes [][]byte
	for _, c := range children {
		hashes = append(hashes, c.Hash)
	}
	require.ElementsMatch(t, [][]byte{f.as[0].Hash, f.b.Hash}, hashes)

	children, err = p.Children(ctx, f.as[2].ID())
	require.NoError(t, err)
	require.Empty(t, children)

	wrong := afchain.BlockID{Hash: f.g.Hash, Number: 3}
	_, err = p.Children(ctx, wrong)
	require.ErrorIs(t, err, afstatus.MismatchedIDError{ID: wrong, HeaderNumber: 0})

	// Children the backend cannot resolve are dropped.
	b := brokenBackend{Backend: f.store, extraChild: []byte("ghost")}
	p = afstatus.NewProvider(aftest.NewLogger(t), b, nil)
	children, err = p.Children(ctx, f.g.ID())
	require.NoError(t, err)
	require.Len(t, children, 2)
}

func TestProvider_dataAvailability(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, ctx)
	missing := []byte("missing")

	p := afstatus.NewProvider(aftest.NewLogger(t), brokenBackend{
		Backend:       f.store,
		bestHash:      missing,
		finalizedHash: missing,
	}, nil)

	_, err := p.BestBlock(ctx)
	require.ErrorIs(t, err, afstatus.MissingHashError{Hash: missing})

	_, err = p.TopFinalized(ctx)
	require.ErrorIs(t, err, afstatus.MissingHashError{Hash: missing})

	// Genesis has no justification.
	p = afstatus.NewProvider(aftest.NewLogger(t), brokenBackend{
		Backend:       f.store,
		finalizedHash: f.g.Hash,
	}, nil)
	_, err = p.TopFinalized(ctx)
	require.ErrorIs(t, err, afstatus.MissingJustificationError{Hash: f.g.Hash})
}

func TestProvider_backendError(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, ctx)
	boom := errors.New("boom")
	p := afstatus.NewProvider(aftest.NewLogger(t), brokenBackend{Backend: f.store, err: boom}, nil)

	_, err := p.StatusOf(ctx, f.as[0].ID())
	var be afstatus.BackendError
	require.ErrorAs(t, err, &be)
	require.ErrorIs(t, err, boom)

	_, err = p.BestBlock(ctx)
	require.ErrorIs(t, err, boom)

	_, _, err = p.FinalizedAt(ctx, 1)
	require.ErrorIs(t, err, boom)
}

// brokenBackend overrides parts of a working store
// to simulate faults the real stores never produce.
type brokenBackend struct {
	afchain.Backend

	bestHash, finalizedHash []byte

	extraChild []byte

	err error
}

func (b brokenBackend) HeaderByHash(ctx context.Context, hash []byte) (afchain.Header, error) {
	if b.err != nil {
		return afchain.Header{}, b.err
	}
	return b.Backend.HeaderByHash(ctx, hash)
}

func (b brokenBackend) HashByNumber(ctx context.Context, number uint64) ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.Backend.HashByNumber(ctx, number)
}

func (b brokenBackend) Children(ctx context.Context, hash []byte) ([][]byte, error) {
	c, err := b.Backend.Children(ctx, hash)
	if err != nil {
		return nil, err
	}
	if b.extraChild != nil {
		c = append(c, bytes.Clone(b.extraChild))
	}
	return c, nil
}

func (b brokenBackend) Info(ctx context.Context) (afchain.Info, error) {
	if b.err != nil {
		return afchain.Info{}, b.err
	}
	info, err := b.Backend.Info(ctx)
	if err != nil {
		return info, err
	}
	if b.bestHash != nil {
		info.BestHash = b.bestHash
	}
	if b.finalizedHash != nil {
		info.FinalizedHash = b.finalizedHash
	}
	return info, nil
}
