// Package afbackup persists a BFT session's append-only log
// as a sequence of segments, one per process run,
// and replays them after a restart.
//
// Each run appends only to a fresh segment.
// Earlier segments are never rewritten,
// so a crash leaves at worst a short final segment
// that is replayed along with the rest on the next start.
package afbackup

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/afero"
)

// SegmentStore holds the numbered segments of one session.
type SegmentStore interface {
	// ListSegments returns every stored segment index in ascending order.
	ListSegments() ([]int, error)

	ReadSegment(index int) (io.ReadCloser, error)

	// CreateSegment creates a new segment that must not already exist.
	CreateSegment(index int) (io.WriteCloser, error)
}

// Recover reads every segment in order and returns their concatenation,
// along with the index that the next segment must use.
// Nothing is written.
//
// If the stored indices are not exactly 0 through n-1,
// Recover reads nothing and returns an [IncompleteError].
func Recover(store SegmentStore) (replay []byte, next int, err error) {
	indices, err := store.ListSegments()
	if err != nil {
		return nil, 0, err
	}

	for i, idx := range indices {
		if idx != i {
			return nil, 0, IncompleteError{Indices: indices}
		}
	}

	var buf bytes.Buffer
	for _, idx := range indices {
		if err := readInto(&buf, store, idx); err != nil {
			return nil, 0, err
		}
	}

	return buf.Bytes(), len(indices), nil
}

func readInto(buf *bytes.Buffer, store SegmentStore, idx int) error {
	rc, err := store.ReadSegment(idx)
	if err != nil {
		return err
	}
	defer rc.Close()

	if _, err := buf.ReadFrom(rc); err != nil {
		return IOError{Op: "read", Path: segmentName(idx), Err: err}
	}
	return nil
}

// Open recovers the existing segments and creates the next one.
// The returned reader yields the recovered bytes;
// the returned writer appends to the new segment and must be closed by the caller.
func Open(store SegmentStore) (saver io.WriteCloser, loader io.Reader, err error) {
	replay, next, err := Recover(store)
	if err != nil {
		return nil, nil, err
	}

	w, err := store.CreateSegment(next)
	if err != nil {
		return nil, nil, err
	}

	return w, bytes.NewReader(replay), nil
}

// OpenSession opens the backup of sessionID under root on fs.
//
// An empty root disables backups:
// the saver discards everything and the loader is empty.
func OpenSession(log *slog.Logger, fs afero.Fs, root string, sessionID uint32) (saver io.WriteCloser, loader io.Reader, err error) {
	log = log.With("session_id", sessionID)

	if root == "" {
		log.Debug("Backups disabled; session will not survive a restart")
		return nopWriteCloser{Writer: io.Discard}, bytes.NewReader(nil), nil
	}

	log.Debug("Loading backup", "root", root)

	store, err := NewDirStore(fs, root, sessionID)
	if err != nil {
		log.Error("Error setting up backup saving", "err", err)
		return nil, nil, err
	}

	saver, loader, err = Open(store)
	if err != nil {
		log.Error("Error setting up backup saving", "dir", store.Dir(), "err", err)
		return nil, nil, fmt.Errorf("session %d: %w", sessionID, err)
	}
	return saver, loader, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
