package afstore

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/fruitbox12/validator-azero/afchain"
)

// ErrStoreUninitialized is returned by [ChainStore.Info]
// before any genesis header has been saved.
var ErrStoreUninitialized = errors.New("uninitialized")

// HashAlreadyExistsError is returned when saving a header whose hash is already stored.
type HashAlreadyExistsError struct {
	Hash []byte
}

func (e HashAlreadyExistsError) Error() string {
	return fmt.Sprintf("hash %x already exists", e.Hash)
}

func (e HashAlreadyExistsError) Is(target error) bool {
	t, ok := target.(HashAlreadyExistsError)
	return ok && bytes.Equal(e.Hash, t.Hash)
}

// GenesisAlreadyExistsError is returned when saving a second, different genesis header.
type GenesisAlreadyExistsError struct {
	Existing []byte
}

func (e GenesisAlreadyExistsError) Error() string {
	return fmt.Sprintf("genesis already set to %x", e.Existing)
}

// ParentUnknownError is returned when saving a header whose parent is not stored.
type ParentUnknownError struct {
	Hash, ParentHash []byte
}

func (e ParentUnknownError) Error() string {
	return fmt.Sprintf("parent %x of block %x unknown", e.ParentHash, e.Hash)
}

// NumberMismatchError is returned when a header's number
// is not exactly one above its parent's.
type NumberMismatchError struct {
	Want, Got uint64
}

func (e NumberMismatchError) Error() string {
	return fmt.Sprintf("block number mismatch: expected %d, got %d", e.Want, e.Got)
}

// FinalizationRegressionError is returned when finalizing below the finalized height.
type FinalizationRegressionError struct {
	Finalized, Got uint64
}

func (e FinalizationRegressionError) Error() string {
	return fmt.Sprintf(
		"refusing to finalize height %d below finalized height %d",
		e.Got, e.Finalized,
	)
}

// FinalizationForkError is returned when finalizing a block
// that does not descend from the finalized block.
type FinalizationForkError struct {
	Finalized, Got afchain.BlockID
}

func (e FinalizationForkError) Error() string {
	return fmt.Sprintf(
		"refusing to finalize %s which does not descend from finalized block %s",
		e.Got, e.Finalized,
	)
}
