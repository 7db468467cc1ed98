package afbackup_test

import (
	"io"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/fruitbox12/validator-azero/afbackup"
	"github.com/fruitbox12/validator-azero/internal/aftest"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// run opens the session backup, checks the replayed bytes,
// and writes data to the new segment.
func run(t *testing.T, fs afero.Fs, root string, wantReplay, data string) {
	t.Helper()

	saver, loader, err := afbackup.OpenSession(aftest.NewLogger(t), fs, root, 7)
	require.NoError(t, err)

	got, err := io.ReadAll(loader)
	require.NoError(t, err)
	require.Equal(t, wantReplay, string(got))

	_, err = io.WriteString(saver, data)
	require.NoError(t, err)
	require.NoError(t, saver.Close())
}

func TestOpenSession_replaysEveryRun(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()

	run(t, fs, "/backup", "", "first.")
	run(t, fs, "/backup", "first.", "second.")
	run(t, fs, "/backup", "first.second.", "third.")
	run(t, fs, "/backup", "first.second.third.", "")

	store, err := afbackup.NewDirStore(fs, "/backup", 7)
	require.NoError(t, err)
	indices, err := store.ListSegments()
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2, 3}, indices)

	for i, want := range []string{"first.", "second.", "third.", ""} {
		got, err := afero.ReadFile(fs, filepath.Join("/backup", "7", strconv.Itoa(i)+".abfts"))
		require.NoError(t, err)
		require.Equal(t, want, string(got))
	}
}

func TestOpenSession_gap(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	dir := filepath.Join("/backup", "7")
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, "0.abfts"), []byte("zero"), 0o600))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, "2.abfts"), []byte("two"), 0o600))

	_, _, err := afbackup.OpenSession(aftest.NewLogger(t), fs, "/backup", 7)
	require.ErrorIs(t, err, afbackup.IncompleteError{Indices: []int{0, 2}})

	// No new segment was created.
	entries, err := afero.ReadDir(fs, dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestRecover_notStartingAtZero(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/b/1/1.abfts", []byte("one"), 0o600))

	store, err := afbackup.NewDirStore(fs, "/b", 1)
	require.NoError(t, err)

	_, _, err = afbackup.Recover(store)
	require.ErrorIs(t, err, afbackup.IncompleteError{Indices: []int{1}})
}

func TestRecover_ignoresForeignFiles(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/b/1/0.abfts", []byte("zero"), 0o600))
	require.NoError(t, afero.WriteFile(fs, "/b/1/notes.txt", []byte("x"), 0o600))
	require.NoError(t, afero.WriteFile(fs, "/b/1/x.abfts", []byte("x"), 0o600))
	require.NoError(t, fs.MkdirAll("/b/1/5.abfts", 0o700))

	store, err := afbackup.NewDirStore(fs, "/b", 1)
	require.NoError(t, err)

	replay, next, err := afbackup.Recover(store)
	require.NoError(t, err)
	require.Equal(t, "zero", string(replay))
	require.Equal(t, 1, next)
}

func TestOpenSession_disabled(t *testing.T) {
	t.Parallel()

	// A read-only filesystem proves nothing is touched.
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())

	saver, loader, err := afbackup.OpenSession(aftest.NewLogger(t), fs, "", 7)
	require.NoError(t, err)

	got, err := io.ReadAll(loader)
	require.NoError(t, err)
	require.Empty(t, got)

	n, err := io.WriteString(saver, "ignored")
	require.NoError(t, err)
	require.Equal(t, 7, n)
	require.NoError(t, saver.Close())
}

func TestOpenSession_ioError(t *testing.T) {
	t.Parallel()

	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())

	_, _, err := afbackup.OpenSession(aftest.NewLogger(t), fs, "/backup", 7)
	var ioErr afbackup.IOError
	require.ErrorAs(t, err, &ioErr)
	require.Equal(t, "mkdir", ioErr.Op)
}

func TestOpenSession_osFs(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	fs := afero.NewOsFs()

	run(t, fs, root, "", "a")
	run(t, fs, root, "a", "b")
	run(t, fs, root, "ab", "")
}
