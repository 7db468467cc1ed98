package afmemstore_test

import (
	"testing"

	"github.com/fruitbox12/validator-azero/afstore"
	"github.com/fruitbox12/validator-azero/afstore/afmemstore"
	"github.com/fruitbox12/validator-azero/afstore/afstoretest"
)

func TestMemChainStore(t *testing.T) {
	t.Parallel()

	afstoretest.TestChainStoreCompliance(t, func(func(func())) (afstore.ChainStore, error) {
		return afmemstore.NewChainStore(), nil
	})
}
