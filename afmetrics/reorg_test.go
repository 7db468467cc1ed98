package afmetrics_test

import (
	"context"
	"testing"

	"github.com/fruitbox12/validator-azero/afchain"
	"github.com/fruitbox12/validator-azero/afmetrics"
	"github.com/fruitbox12/validator-azero/afstore/afmemstore"
	"github.com/fruitbox12/validator-azero/afstore/afstoretest"
	"github.com/stretchr/testify/require"
)

// reorgFixture is a main chain A0..A4 above genesis,
// a branch B0..B2 above A0,
// and a branch C0..C1 above A2.
type reorgFixture struct {
	store *afmemstore.ChainStore

	as, bs, cs []afchain.Header
}

func newReorgFixture(t *testing.T, ctx context.Context) reorgFixture {
	t.Helper()

	s := afmemstore.NewChainStore()
	g := afstoretest.Genesis("g")
	as := afstoretest.Branch(g, "a", 5)
	bs := afstoretest.Branch(as[0], "b", 3)
	cs := afstoretest.Branch(as[2], "c", 2)

	require.NoError(t, s.SaveHeader(ctx, g))
	for _, branch := range [][]afchain.Header{as, bs, cs} {
		for _, h := range branch {
			require.NoError(t, s.SaveHeader(ctx, h))
		}
	}

	return reorgFixture{store: s, as: as, bs: bs, cs: cs}
}

func TestReorgLength(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newReorgFixture(t, ctx)
	a, b, c := f.as, f.bs, f.cs

	for _, tc := range []struct {
		name       string
		prev, best afchain.Header
		want       uint64
		wantOK     bool
	}{
		{name: "direct child", prev: a[1], best: a[2]},
		{name: "extension", prev: a[1], best: a[4]},
		{name: "same block", prev: a[1], best: a[1]},
		{name: "switch to lower branch", prev: a[2], best: b[0], want: 2, wantOK: true},
		{name: "switch to higher branch", prev: b[0], best: a[2], want: 1, wantOK: true},
		{name: "switch between side branches", prev: c[1], best: b[2], want: 4, wantOK: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, ok, err := afmetrics.ReorgLength(ctx, f.store, tc.prev, tc.best)
			require.NoError(t, err)
			require.Equal(t, tc.wantOK, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestReorgLength_neverZero(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newReorgFixture(t, ctx)

	var all []afchain.Header
	for _, branch := range [][]afchain.Header{f.as, f.bs, f.cs} {
		all = append(all, branch...)
	}

	for _, prev := range all {
		for _, best := range all {
			got, ok, err := afmetrics.ReorgLength(ctx, f.store, prev, best)
			require.NoError(t, err)
			if best.Equal(prev) || best.IsChildOf(prev) {
				require.False(t, ok)
				continue
			}

			if ok {
				require.NotZero(t, got)

				lca, err := afchain.LowestCommonAncestor(ctx, f.store, best.Hash, prev.Hash)
				require.NoError(t, err)
				require.Equal(t, prev.Number-lca.Number, got)
			}
		}
	}
}

func TestReorgLength_unknownBlock(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newReorgFixture(t, ctx)
	stranger := afstoretest.Child(afstoretest.Genesis("other"), "x")

	_, ok, err := afmetrics.ReorgLength(ctx, f.store, f.as[3], stranger)
	require.False(t, ok)
	require.ErrorIs(t, err, afchain.HashUnknownError{Got: stranger.Hash})
}
