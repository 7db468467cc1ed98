package afstatus

import (
	"bytes"
	"fmt"

	"github.com/fruitbox12/validator-azero/afchain"
)

// MissingHashError indicates that the backend reported a best or finalized hash
// for which it cannot produce a header.
// Under correct operation this never happens.
type MissingHashError struct {
	Hash []byte
}

func (e MissingHashError) Error() string {
	return fmt.Sprintf("data availability problem: no block for existing hash %x", e.Hash)
}

func (e MissingHashError) Is(target error) bool {
	t, ok := target.(MissingHashError)
	return ok && bytes.Equal(e.Hash, t.Hash)
}

// MissingJustificationError indicates that the finalized block
// has no usable justification.
type MissingJustificationError struct {
	Hash []byte
}

func (e MissingJustificationError) Error() string {
	return fmt.Sprintf(
		"data availability problem: no justification for finalized block with hash %x",
		e.Hash,
	)
}

func (e MissingJustificationError) Is(target error) bool {
	t, ok := target.(MissingJustificationError)
	return ok && bytes.Equal(e.Hash, t.Hash)
}

// MismatchedIDError indicates that a block identifier's number
// does not match the number of the header stored under its hash.
type MismatchedIDError struct {
	ID afchain.BlockID

	HeaderNumber uint64
}

func (e MismatchedIDError) Error() string {
	return fmt.Sprintf(
		"the block number did not match the block hash: requested %s, stored header has number %d",
		e.ID, e.HeaderNumber,
	)
}

func (e MismatchedIDError) Is(target error) bool {
	t, ok := target.(MismatchedIDError)
	return ok && e.ID.Equal(t.ID) && e.HeaderNumber == t.HeaderNumber
}

// BackendError wraps a failure of the backend itself,
// as opposed to the backend reporting that something is absent.
type BackendError struct {
	Err error
}

func (e BackendError) Error() string {
	return "backend error: " + e.Err.Error()
}

func (e BackendError) Unwrap() error {
	return e.Err
}
