package afchain

import (
	"bytes"
	"context"
	"fmt"
)

// HeaderBackend resolves headers and the canonical chain.
//
// Methods must be safe for concurrent use.
type HeaderBackend interface {
	// HeaderByHash returns the header with the given hash,
	// or a [HashUnknownError] if no such header is stored.
	HeaderByHash(ctx context.Context, hash []byte) (Header, error)

	// HashByNumber returns the hash of the canonical block at the given height,
	// or a [HeightUnknownError] if the canonical chain does not reach that height.
	HashByNumber(ctx context.Context, number uint64) ([]byte, error)
}

// Backend is the read-only view of block storage used by the finality layer.
// The finality layer never writes through a Backend.
//
// Methods must be safe for concurrent use.
type Backend interface {
	HeaderBackend

	// Children returns the hashes of every known direct child of hash,
	// in no particular order.
	// An unknown hash has no children; that is not an error.
	Children(ctx context.Context, hash []byte) ([][]byte, error)

	// Justification returns the raw justification stored for hash,
	// or a [JustificationUnknownError] if there is none.
	Justification(ctx context.Context, hash []byte) ([]byte, error)

	// Info reports the current genesis, best, and finalized blocks.
	Info(ctx context.Context) (Info, error)
}

// LowestCommonAncestor returns the nearest block that is an ancestor of both a and b.
// A block counts as its own ancestor,
// so if a is an ancestor of b, the result is a.
//
// The higher of the two blocks is first walked down to the height of the lower one,
// then both are walked down in lockstep until the hashes agree.
// Because each step follows a unique parent link,
// there is exactly one answer and no tie to break.
func LowestCommonAncestor(ctx context.Context, hb HeaderBackend, a, b []byte) (BlockID, error) {
	ha, err := hb.HeaderByHash(ctx, a)
	if err != nil {
		return BlockID{}, fmt.Errorf("failed to load first block: %w", err)
	}
	hbh, err := hb.HeaderByHash(ctx, b)
	if err != nil {
		return BlockID{}, fmt.Errorf("failed to load second block: %w", err)
	}

	for ha.Number > hbh.Number {
		if ha, err = parentOf(ctx, hb, ha); err != nil {
			return BlockID{}, err
		}
	}
	for hbh.Number > ha.Number {
		if hbh, err = parentOf(ctx, hb, hbh); err != nil {
			return BlockID{}, err
		}
	}

	for !bytes.Equal(ha.Hash, hbh.Hash) {
		if ha.Number == 0 {
			// Two different genesis blocks.
			return BlockID{}, DisjointChainsError{A: a, B: b}
		}
		if ha, err = parentOf(ctx, hb, ha); err != nil {
			return BlockID{}, err
		}
		if hbh, err = parentOf(ctx, hb, hbh); err != nil {
			return BlockID{}, err
		}
	}

	return ha.ID(), nil
}

func parentOf(ctx context.Context, hb HeaderBackend, h Header) (Header, error) {
	if err := ctx.Err(); err != nil {
		return Header{}, context.Cause(ctx)
	}
	p, err := hb.HeaderByHash(ctx, h.ParentHash)
	if err != nil {
		return Header{}, fmt.Errorf("failed to load parent of %s: %w", h.ID(), err)
	}
	return p, nil
}
