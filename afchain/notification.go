package afchain

// Origin records where an imported block came from.
type Origin uint8

//go:generate go run golang.org/x/tools/cmd/stringer -type Origin -trimprefix=Origin .

const (
	OriginGenesis Origin = iota
	OriginNetworkInitialSync
	OriginNetworkBroadcast
	OriginConsensusBroadcast

	// The block was authored by this node.
	OriginOwn

	OriginFile
)

// ImportNotification is emitted once for every imported block.
type ImportNotification struct {
	Header Header

	// Whether the import made this block the new best block.
	IsNewBest bool

	Origin Origin
}

// FinalityNotification is emitted once for every newly finalized height,
// in ascending height order.
type FinalityNotification struct {
	Header Header
}
