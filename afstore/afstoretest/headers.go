package afstoretest

import (
	"github.com/fruitbox12/validator-azero/afchain"
)

// Genesis returns a genesis header whose hash depends on tag.
func Genesis(tag string) afchain.Header {
	h := afchain.Header{Number: 0, Digest: []byte(tag)}
	h.Hash = afchain.HashHeader(h)
	return h
}

// Child returns a header extending parent.
// Children of the same parent with different tags have different hashes.
func Child(parent afchain.Header, tag string) afchain.Header {
	h := afchain.Header{
		ParentHash: parent.Hash,
		Number:     parent.Number + 1,
		Digest:     []byte(tag),
	}
	h.Hash = afchain.HashHeader(h)
	return h
}

// Branch returns n headers, each extending the previous, starting above parent.
func Branch(parent afchain.Header, tag string, n int) []afchain.Header {
	out := make([]afchain.Header, n)
	for i := range out {
		parent = Child(parent, tag)
		out[i] = parent
	}
	return out
}
