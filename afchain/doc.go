// Package afchain contains the block data model shared by the finality layer:
// headers, block identifiers, block statuses, and the notifications
// a node emits when blocks are imported or finalized.
//
// It also declares [Backend], the read-only view of block storage
// that every other package in this module consumes.
// Implementations live under afstore, afsqlite, and afleveldb.
package afchain
