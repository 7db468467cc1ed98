package afmetrics

import (
	"bytes"
	"context"
	"fmt"

	"github.com/fruitbox12/validator-azero/afchain"
)

// ReorgLength reports how many blocks of the previous best chain
// were abandoned when best replaced prev as the best block.
//
// It reports false when best is prev or extends prev directly,
// or when best merely extends prev further (nothing abandoned).
// If the common ancestor cannot be computed,
// it reports false along with the lookup error.
func ReorgLength(ctx context.Context, hb afchain.HeaderBackend, prev, best afchain.Header) (uint64, bool, error) {
	if bytes.Equal(best.Hash, prev.Hash) || bytes.Equal(best.ParentHash, prev.Hash) {
		return 0, false, nil
	}

	lca, err := afchain.LowestCommonAncestor(ctx, hb, best.Hash, prev.Hash)
	if err != nil {
		return 0, false, fmt.Errorf("failed to find common ancestor: %w", err)
	}

	if lca.Number >= prev.Number {
		return 0, false, nil
	}
	return prev.Number - lca.Number, true, nil
}
