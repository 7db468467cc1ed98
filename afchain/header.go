package afchain

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Header is the part of a block that the finality layer inspects.
// The block body is never needed here.
type Header struct {
	// Hash of this header, derived through [HashHeader].
	Hash []byte

	// Hash of the parent block.
	// Empty for the genesis block.
	ParentHash []byte

	// Height of the block. Genesis is at 0.
	Number uint64

	// Opaque consensus and runtime digest.
	// Two otherwise identical headers on competing branches
	// differ by their digest.
	Digest []byte
}

// ID returns the identifier of h.
func (h Header) ID() BlockID {
	return BlockID{Hash: h.Hash, Number: h.Number}
}

// Equal reports whether h and o carry identical fields.
func (h Header) Equal(o Header) bool {
	return h.Number == o.Number &&
		bytes.Equal(h.Hash, o.Hash) &&
		bytes.Equal(h.ParentHash, o.ParentHash) &&
		bytes.Equal(h.Digest, o.Digest)
}

// IsChildOf reports whether h directly extends parent.
func (h Header) IsChildOf(parent Header) bool {
	return h.Number == parent.Number+1 && bytes.Equal(h.ParentHash, parent.Hash)
}

// Clone returns a deep copy of h.
func (h Header) Clone() Header {
	return Header{
		Hash:       bytes.Clone(h.Hash),
		ParentHash: bytes.Clone(h.ParentHash),
		Number:     h.Number,
		Digest:     bytes.Clone(h.Digest),
	}
}

// HashHeader returns the blake2b-256 hash of the parent hash, number and digest of h.
// The Hash field of h is ignored.
func HashHeader(h Header) []byte {
	d, err := blake2b.New256(nil)
	if err != nil {
		// Only possible with an oversized key, and we pass none.
		panic(fmt.Errorf("blake2b.New256: %w", err))
	}

	var n [8]byte
	binary.BigEndian.PutUint64(n[:], h.Number)

	_, _ = d.Write(h.ParentHash)
	_, _ = d.Write(n[:])
	_, _ = d.Write(h.Digest)
	return d.Sum(nil)
}

// BlockID is a (hash, number) pair.
// A header resolved by the hash must declare the same number;
// the status layer reports a mismatch as its own error.
type BlockID struct {
	Hash   []byte
	Number uint64
}

func (id BlockID) Equal(o BlockID) bool {
	return id.Number == o.Number && bytes.Equal(id.Hash, o.Hash)
}

func (id BlockID) String() string {
	return fmt.Sprintf("#%d (%x)", id.Number, id.Hash)
}

// Justification is a header with the raw proof that consensus finalized it.
// The raw bytes are opaque outside of the afjustification codec.
type Justification struct {
	Header Header
	Raw    []byte
}

// Info is a snapshot of the chain heads known to a backend.
type Info struct {
	GenesisHash []byte

	BestHash   []byte
	BestNumber uint64

	FinalizedHash   []byte
	FinalizedNumber uint64
}
