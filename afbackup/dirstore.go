package afbackup

import (
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// SegmentExt is the file extension of a segment in a [DirStore].
const SegmentExt = ".abfts"

// DirStore keeps one session's segments as files named <index>.abfts
// in the directory <root>/<session id>.
type DirStore struct {
	fs  afero.Fs
	dir string

	// Index to actual file name, refreshed by ListSegments.
	// Names with leading zeros parse to the same index as their plain form.
	names map[int]string
}

// NewDirStore returns a store for sessionID under root,
// creating the session directory if needed.
// An existing directory is not modified,
// so a read-only fs works for inspecting existing backups.
func NewDirStore(fs afero.Fs, root string, sessionID uint32) (*DirStore, error) {
	dir := filepath.Join(root, strconv.FormatUint(uint64(sessionID), 10))

	exists, err := afero.DirExists(fs, dir)
	if err != nil {
		return nil, IOError{Op: "stat", Path: dir, Err: err}
	}
	if !exists {
		if err := fs.MkdirAll(dir, 0o700); err != nil {
			return nil, IOError{Op: "mkdir", Path: dir, Err: err}
		}
	}
	return &DirStore{fs: fs, dir: dir}, nil
}

// Dir returns the session directory.
func (s *DirStore) Dir() string {
	return s.dir
}

func (s *DirStore) ListSegments() ([]int, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, IOError{Op: "readdir", Path: s.dir, Err: err}
	}

	s.names = make(map[int]string, len(entries))
	var out []int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		stem, ok := strings.CutSuffix(e.Name(), SegmentExt)
		if !ok {
			continue
		}
		n, err := strconv.ParseUint(stem, 10, 31)
		if err != nil {
			continue
		}
		out = append(out, int(n))
		s.names[int(n)] = e.Name()
	}

	slices.Sort(out)
	return out, nil
}

func (s *DirStore) ReadSegment(index int) (io.ReadCloser, error) {
	name, ok := s.names[index]
	if !ok {
		name = segmentName(index)
	}
	path := filepath.Join(s.dir, name)

	f, err := s.fs.Open(path)
	if err != nil {
		return nil, IOError{Op: "open", Path: path, Err: err}
	}
	return f, nil
}

// CreateSegment creates a new, empty segment file.
// It fails if the file already exists.
func (s *DirStore) CreateSegment(index int) (io.WriteCloser, error) {
	path := filepath.Join(s.dir, segmentName(index))
	f, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, IOError{Op: "create", Path: path, Err: err}
	}
	return f, nil
}

func segmentName(index int) string {
	return strconv.Itoa(index) + SegmentExt
}
