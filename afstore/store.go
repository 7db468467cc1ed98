// Package afstore declares the writable chain store behind an [afchain.Backend].
//
// The finality layer itself only reads;
// the write half exists so that a node (or a test fixture)
// can import headers, move the best block, and finalize.
package afstore

import (
	"bytes"
	"context"

	"github.com/fruitbox12/validator-azero/afchain"
)

// ChainStore is an [afchain.Backend] that can also be written.
//
// Writes are serialized by the implementation;
// reads may run concurrently with writes.
type ChainStore interface {
	afchain.Backend

	// SaveHeader stores a new header.
	//
	// A header at number 0 is the genesis block;
	// the first genesis saved becomes both the best and the finalized block.
	// Any other header requires its parent to be stored already,
	// at exactly one height below.
	SaveHeader(ctx context.Context, h afchain.Header) error

	// SetBest marks hash as the best block
	// and rewrites the canonical number-to-hash index to follow it.
	// Canonical entries above the new best block are removed.
	SetBest(ctx context.Context, hash []byte) error

	// Finalize records the justification for hash and marks it finalized.
	//
	// The block must descend from the currently finalized block.
	// Finalizing the currently finalized block again only replaces its justification.
	// If the block is not on the current best chain,
	// the best block is moved to the finalized block.
	Finalize(ctx context.Context, hash, justification []byte) error

	Close() error
}

// HeaderLookup resolves a header by hash, returning [afchain.HashUnknownError] if absent.
type HeaderLookup func(hash []byte) (afchain.Header, error)

// CanonicalLookup resolves the canonical hash at a height,
// returning nil without error if there is no entry.
type CanonicalLookup func(number uint64) ([]byte, error)

// CanonicalRoute returns the block IDs whose canonical index entries
// must be written so that best becomes the canonical head.
// The route runs from best downward and stops at the first height
// that is already mapped to the right hash.
//
// Callers are responsible for separately deleting entries above best.Number.
func CanonicalRoute(getHeader HeaderLookup, getCanonical CanonicalLookup, best afchain.Header) ([]afchain.BlockID, error) {
	var route []afchain.BlockID
	cur := best
	for {
		have, err := getCanonical(cur.Number)
		if err != nil {
			return nil, err
		}
		if bytes.Equal(have, cur.Hash) {
			return route, nil
		}

		route = append(route, cur.ID())
		if cur.Number == 0 {
			return route, nil
		}

		cur, err = getHeader(cur.ParentHash)
		if err != nil {
			return nil, err
		}
	}
}

// IsAncestor reports whether anc is desc or one of desc's ancestors.
func IsAncestor(getHeader HeaderLookup, anc afchain.BlockID, desc afchain.Header) (bool, error) {
	cur := desc
	for cur.Number > anc.Number {
		var err error
		cur, err = getHeader(cur.ParentHash)
		if err != nil {
			return false, err
		}
	}
	return cur.Number == anc.Number && bytes.Equal(cur.Hash, anc.Hash), nil
}

// CheckFinalizable returns an error if target may not be finalized
// given the currently finalized block.
func CheckFinalizable(getHeader HeaderLookup, finalized afchain.BlockID, target afchain.Header) error {
	if target.Number < finalized.Number {
		return FinalizationRegressionError{Finalized: finalized.Number, Got: target.Number}
	}
	ok, err := IsAncestor(getHeader, finalized, target)
	if err != nil {
		return err
	}
	if !ok {
		return FinalizationForkError{Finalized: finalized, Got: target.ID()}
	}
	return nil
}

// CheckParent validates h against its parent,
// or returns nil for a genesis header.
func CheckParent(getHeader HeaderLookup, h afchain.Header) error {
	if h.Number == 0 {
		return nil
	}
	parent, err := getHeader(h.ParentHash)
	if err != nil {
		return ParentUnknownError{Hash: h.Hash, ParentHash: h.ParentHash}
	}
	if parent.Number+1 != h.Number {
		return NumberMismatchError{Want: parent.Number + 1, Got: h.Number}
	}
	return nil
}
