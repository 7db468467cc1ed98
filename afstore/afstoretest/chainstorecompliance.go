// Package afstoretest holds the compliance suite for [afstore.ChainStore] implementations.
package afstoretest

import (
	"context"
	"testing"

	"github.com/fruitbox12/validator-azero/afchain"
	"github.com/fruitbox12/validator-azero/afstore"
	"github.com/stretchr/testify/require"
)

type ChainStoreFactory func(cleanup func(func())) (afstore.ChainStore, error)

func TestChainStoreCompliance(t *testing.T, f ChainStoreFactory) {
	t.Run("Info is uninitialized before genesis", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(t.Cleanup)
		require.NoError(t, err)

		_, err = s.Info(ctx)
		require.ErrorIs(t, err, afstore.ErrStoreUninitialized)
	})

	t.Run("genesis is best and finalized", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(t.Cleanup)
		require.NoError(t, err)

		g := Genesis("g")
		require.NoError(t, s.SaveHeader(ctx, g))

		info, err := s.Info(ctx)
		require.NoError(t, err)
		require.Equal(t, g.Hash, info.GenesisHash)
		require.Equal(t, g.Hash, info.BestHash)
		require.Equal(t, g.Hash, info.FinalizedHash)
		require.Zero(t, info.BestNumber)
		require.Zero(t, info.FinalizedNumber)

		got, err := s.HeaderByHash(ctx, g.Hash)
		require.NoError(t, err)
		require.True(t, g.Equal(got), "want %#v, got %#v", g, got)

		hash, err := s.HashByNumber(ctx, 0)
		require.NoError(t, err)
		require.Equal(t, g.Hash, hash)

		_, err = s.Justification(ctx, g.Hash)
		require.ErrorIs(t, err, afchain.JustificationUnknownError{Hash: g.Hash})
	})

	t.Run("SaveHeader rejects invalid headers", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(t.Cleanup)
		require.NoError(t, err)

		g := Genesis("g")
		require.NoError(t, s.SaveHeader(ctx, g))

		err = s.SaveHeader(ctx, g)
		require.ErrorIs(t, err, afstore.HashAlreadyExistsError{Hash: g.Hash})

		var gae afstore.GenesisAlreadyExistsError
		require.ErrorAs(t, s.SaveHeader(ctx, Genesis("other")), &gae)
		require.Equal(t, g.Hash, gae.Existing)

		orphan := Child(Child(g, "missing"), "orphan")
		var pue afstore.ParentUnknownError
		require.ErrorAs(t, s.SaveHeader(ctx, orphan), &pue)
		require.Equal(t, orphan.ParentHash, pue.ParentHash)

		bad := Child(g, "bad")
		bad.Number = 5
		bad.Hash = afchain.HashHeader(bad)
		require.ErrorIs(t, s.SaveHeader(ctx, bad), afstore.NumberMismatchError{Want: 1, Got: 5})

		// None of the rejected headers were stored.
		_, err = s.HeaderByHash(ctx, bad.Hash)
		require.ErrorIs(t, err, afchain.HashUnknownError{Got: bad.Hash})
		children, err := s.Children(ctx, g.Hash)
		require.NoError(t, err)
		require.Empty(t, children)
	})

	t.Run("unknown lookups", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(t.Cleanup)
		require.NoError(t, err)
		require.NoError(t, s.SaveHeader(ctx, Genesis("g")))

		unknown := []byte("no such block")

		_, err = s.HeaderByHash(ctx, unknown)
		require.ErrorIs(t, err, afchain.HashUnknownError{Got: unknown})

		_, err = s.HashByNumber(ctx, 5)
		require.ErrorIs(t, err, afchain.HeightUnknownError{Want: 5})

		children, err := s.Children(ctx, unknown)
		require.NoError(t, err)
		require.Empty(t, children)

		_, err = s.Justification(ctx, unknown)
		require.ErrorIs(t, err, afchain.JustificationUnknownError{Hash: unknown})

		require.Error(t, s.SetBest(ctx, unknown))
		require.Error(t, s.Finalize(ctx, unknown, []byte("j")))
	})

	t.Run("Children lists every direct child", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(t.Cleanup)
		require.NoError(t, err)

		g := Genesis("g")
		a := Child(g, "a")
		b := Child(g, "b")
		aa := Child(a, "a")
		for _, h := range []afchain.Header{g, a, b, aa} {
			require.NoError(t, s.SaveHeader(ctx, h))
		}

		children, err := s.Children(ctx, g.Hash)
		require.NoError(t, err)
		require.ElementsMatch(t, [][]byte{a.Hash, b.Hash}, children)

		children, err = s.Children(ctx, a.Hash)
		require.NoError(t, err)
		require.Equal(t, [][]byte{aa.Hash}, children)

		children, err = s.Children(ctx, aa.Hash)
		require.NoError(t, err)
		require.Empty(t, children)
	})

	t.Run("canonical index follows best block", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(t.Cleanup)
		require.NoError(t, err)

		g := Genesis("g")
		as := Branch(g, "a", 3)
		bs := Branch(g, "b", 1)
		require.NoError(t, s.SaveHeader(ctx, g))
		for _, h := range append(as, bs...) {
			require.NoError(t, s.SaveHeader(ctx, h))
		}

		// Saving alone does not extend the canonical chain.
		_, err = s.HashByNumber(ctx, 1)
		require.ErrorIs(t, err, afchain.HeightUnknownError{Want: 1})

		require.NoError(t, s.SetBest(ctx, as[2].Hash))
		for _, h := range as {
			hash, err := s.HashByNumber(ctx, h.Number)
			require.NoError(t, err)
			require.Equal(t, h.Hash, hash)
		}
		info, err := s.Info(ctx)
		require.NoError(t, err)
		require.Equal(t, as[2].Hash, info.BestHash)
		require.Equal(t, uint64(3), info.BestNumber)

		// Reorg to a shorter branch drops the higher entries.
		require.NoError(t, s.SetBest(ctx, bs[0].Hash))
		hash, err := s.HashByNumber(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, bs[0].Hash, hash)
		_, err = s.HashByNumber(ctx, 2)
		require.ErrorIs(t, err, afchain.HeightUnknownError{Want: 2})

		// And back again.
		require.NoError(t, s.SetBest(ctx, as[2].Hash))
		hash, err = s.HashByNumber(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, as[0].Hash, hash)
		hash, err = s.HashByNumber(ctx, 0)
		require.NoError(t, err)
		require.Equal(t, g.Hash, hash)
	})

	t.Run("Finalize", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(t.Cleanup)
		require.NoError(t, err)

		g := Genesis("g")
		as := Branch(g, "a", 3)
		bs := Branch(g, "b", 2)
		require.NoError(t, s.SaveHeader(ctx, g))
		for _, h := range append(as, bs...) {
			require.NoError(t, s.SaveHeader(ctx, h))
		}
		require.NoError(t, s.SetBest(ctx, as[2].Hash))

		require.NoError(t, s.Finalize(ctx, as[1].Hash, []byte("just-a1")))

		info, err := s.Info(ctx)
		require.NoError(t, err)
		require.Equal(t, as[1].Hash, info.FinalizedHash)
		require.Equal(t, uint64(2), info.FinalizedNumber)
		// Finalized block was on the best chain, so best is unchanged.
		require.Equal(t, as[2].Hash, info.BestHash)

		j, err := s.Justification(ctx, as[1].Hash)
		require.NoError(t, err)
		require.Equal(t, []byte("just-a1"), j)

		require.ErrorIs(
			t, s.Finalize(ctx, as[0].Hash, nil),
			afstore.FinalizationRegressionError{Finalized: 2, Got: 1},
		)

		var fe afstore.FinalizationForkError
		require.ErrorAs(t, s.Finalize(ctx, bs[1].Hash, nil), &fe)
		require.Equal(t, uint64(2), fe.Got.Number)

		// Re-finalizing replaces the justification.
		require.NoError(t, s.Finalize(ctx, as[1].Hash, []byte("again")))
		j, err = s.Justification(ctx, as[1].Hash)
		require.NoError(t, err)
		require.Equal(t, []byte("again"), j)

		require.NoError(t, s.Finalize(ctx, as[2].Hash, []byte("just-a2")))
		info, err = s.Info(ctx)
		require.NoError(t, err)
		require.Equal(t, as[2].Hash, info.FinalizedHash)
	})

	t.Run("finalizing a competing branch moves best", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(t.Cleanup)
		require.NoError(t, err)

		g := Genesis("g")
		as := Branch(g, "a", 5)
		require.NoError(t, s.SaveHeader(ctx, g))
		for _, h := range as {
			require.NoError(t, s.SaveHeader(ctx, h))
		}
		require.NoError(t, s.SetBest(ctx, as[4].Hash))

		bs := Branch(as[0], "b", 3)
		for _, h := range bs {
			require.NoError(t, s.SaveHeader(ctx, h))
		}

		require.NoError(t, s.Finalize(ctx, bs[0].Hash, []byte("j")))

		info, err := s.Info(ctx)
		require.NoError(t, err)
		require.Equal(t, bs[0].Hash, info.FinalizedHash)
		require.Equal(t, bs[0].Hash, info.BestHash)
		require.Equal(t, uint64(2), info.BestNumber)

		hash, err := s.HashByNumber(ctx, 2)
		require.NoError(t, err)
		require.Equal(t, bs[0].Hash, hash)
		_, err = s.HashByNumber(ctx, 3)
		require.ErrorIs(t, err, afchain.HeightUnknownError{Want: 3})
	})
}
