package afchain

// BlockStatusKind discriminates a [BlockStatus].
type BlockStatusKind uint8

//go:generate go run golang.org/x/tools/cmd/stringer -type BlockStatusKind -trimprefix=BlockStatus .

const (
	// Nothing is known about the block.
	BlockStatusUnknown BlockStatusKind = iota

	// The header is stored, but no usable justification is.
	BlockStatusPresent

	// The header and a decodable justification are stored.
	BlockStatusJustified
)

// BlockStatus is what the node knows about a block.
// For a given hash the kind only ever moves forward:
// Unknown, then Present, then Justified.
//
// Header is set for Present and Justified.
// Justification is set only for Justified.
type BlockStatus struct {
	Kind BlockStatusKind

	Header Header

	Justification Justification
}

func UnknownStatus() BlockStatus {
	return BlockStatus{Kind: BlockStatusUnknown}
}

func PresentStatus(h Header) BlockStatus {
	return BlockStatus{Kind: BlockStatusPresent, Header: h}
}

func JustifiedStatus(j Justification) BlockStatus {
	return BlockStatus{Kind: BlockStatusJustified, Header: j.Header, Justification: j}
}
