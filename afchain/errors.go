package afchain

import (
	"bytes"
	"fmt"
)

// HashUnknownError indicates a lookup of a hash with no stored header.
type HashUnknownError struct {
	Got []byte
}

func (e HashUnknownError) Error() string {
	return fmt.Sprintf("hash %x unknown", e.Got)
}

// Is allows errors.Is to match on the hash value;
// the struct holds a slice and is not comparable with ==.
func (e HashUnknownError) Is(target error) bool {
	t, ok := target.(HashUnknownError)
	return ok && bytes.Equal(e.Got, t.Got)
}

// HeightUnknownError indicates a lookup of a height
// that the canonical chain does not reach.
type HeightUnknownError struct {
	Want uint64
}

func (e HeightUnknownError) Error() string {
	return fmt.Sprintf("height %d unknown", e.Want)
}

// JustificationUnknownError indicates that no justification is stored for a hash.
type JustificationUnknownError struct {
	Hash []byte
}

func (e JustificationUnknownError) Error() string {
	return fmt.Sprintf("no justification stored for hash %x", e.Hash)
}

func (e JustificationUnknownError) Is(target error) bool {
	t, ok := target.(JustificationUnknownError)
	return ok && bytes.Equal(e.Hash, t.Hash)
}

// DisjointChainsError is returned by [LowestCommonAncestor]
// when the two blocks descend from different genesis blocks.
type DisjointChainsError struct {
	A, B []byte
}

func (e DisjointChainsError) Error() string {
	return fmt.Sprintf("blocks %x and %x share no common ancestor", e.A, e.B)
}
