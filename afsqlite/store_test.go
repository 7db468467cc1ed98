package afsqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fruitbox12/validator-azero/afsqlite"
	"github.com/fruitbox12/validator-azero/afstore"
	"github.com/fruitbox12/validator-azero/afstore/afstoretest"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	s, err := afsqlite.NewInMemStore(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)

	// Helpful output in the simplest test, if there is uncertainty which type was built.
	t.Logf("Tests are for build type %s", s.BuildType)

	require.NoError(t, s.Close())
}

func TestInMemChainStoreCompliance(t *testing.T) {
	t.Parallel()

	afstoretest.TestChainStoreCompliance(t, func(cleanup func(func())) (afstore.ChainStore, error) {
		s, err := afsqlite.NewInMemStore(context.Background())
		if err != nil {
			return nil, err
		}
		cleanup(func() {
			require.NoError(t, s.Close())
		})
		return s, nil
	})
}

func TestOnDiskChainStoreCompliance(t *testing.T) {
	t.Parallel()

	afstoretest.TestChainStoreCompliance(t, func(cleanup func(func())) (afstore.ChainStore, error) {
		dir := t.TempDir()
		s, err := afsqlite.NewOnDiskStore(context.Background(), filepath.Join(dir, "chain.sqlite"))
		if err != nil {
			return nil, err
		}
		cleanup(func() {
			require.NoError(t, s.Close())
		})
		return s, nil
	})
}

func TestOnDiskStore_reopen(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "chain.sqlite")

	s, err := afsqlite.NewOnDiskStore(ctx, path)
	require.NoError(t, err)

	g := afstoretest.Genesis("g")
	a := afstoretest.Branch(g, "a", 3)
	require.NoError(t, s.SaveHeader(ctx, g))
	for _, h := range a {
		require.NoError(t, s.SaveHeader(ctx, h))
	}
	require.NoError(t, s.SetBest(ctx, a[2].Hash))
	require.NoError(t, s.Finalize(ctx, a[1].Hash, []byte("just")))
	require.NoError(t, s.Close())

	s, err = afsqlite.NewOnDiskStore(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	info, err := s.Info(ctx)
	require.NoError(t, err)
	require.Equal(t, a[2].Hash, info.BestHash)
	require.Equal(t, uint64(3), info.BestNumber)
	require.Equal(t, a[1].Hash, info.FinalizedHash)

	j, err := s.Justification(ctx, a[1].Hash)
	require.NoError(t, err)
	require.Equal(t, []byte("just"), j)
}
