package depdb_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.trai.ch/mason/internal/engine/depdb"
)

func write(t *testing.T, path string, lines []string) {
	t.Helper()
	d, err := depdb.Open(path)
	require.NoError(t, err)
	require.True(t, d.Writing())
	for _, l := range lines {
		_, _, err := d.Expect(l)
		require.NoError(t, err)
	}
	st, err := d.Close()
	require.NoError(t, err)
	assert.Equal(t, depdb.StateModified, st)
}

func TestDB_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.o.d")
	lines := []string{"cc.compile 1", "0123456789abcdef", "fedcba9876543210", "/src/hello.cxx", "/src/hello.hxx"}

	write(t, path, lines)

	d, err := depdb.Open(path)
	require.NoError(t, err)
	require.True(t, d.Reading())

	// Every expected line matches and the db stays in read mode.
	for _, l := range lines {
		old, ok, err := d.Expect(l)
		require.NoError(t, err)
		assert.True(t, ok, "line %q must match", l)
		assert.Empty(t, old)
	}
	assert.False(t, d.More())

	st, err := d.Close()
	require.NoError(t, err)
	assert.Equal(t, depdb.StateUnchanged, st)
}

func TestDB_ReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.d")
	write(t, path, []string{"one", "two", "three"})

	d, err := depdb.Open(path)
	require.NoError(t, err)

	var got []string
	for d.More() {
		l, ok := d.Read()
		require.True(t, ok)
		got = append(got, l)
	}
	assert.Equal(t, []string{"one", "two", "three"}, got)

	_, ok := d.Read()
	assert.False(t, ok, "reading past the data signals no more")
	_, err = d.Close()
	require.NoError(t, err)
}

func TestDB_MismatchTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.d")
	write(t, path, []string{"one", "two", "three"})

	d, err := depdb.Open(path)
	require.NoError(t, err)

	_, ok, err := d.Expect("one")
	require.NoError(t, err)
	require.True(t, ok)

	// The mismatch returns the offending old line and switches to write.
	old, ok, err := d.Expect("TWO")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "two", old)
	assert.True(t, d.Writing())

	// Everything after the truncation point is an append now.
	_, ok, err = d.Expect("new-three")
	require.NoError(t, err)
	assert.False(t, ok)

	st, err := d.Close()
	require.NoError(t, err)
	assert.Equal(t, depdb.StateModified, st)

	// Reading back shows the rewritten tail.
	d, err = depdb.Open(path)
	require.NoError(t, err)
	var got []string
	for d.More() {
		l, _ := d.Read()
		got = append(got, l)
	}
	assert.Equal(t, []string{"one", "TWO", "new-three"}, got)
	_, err = d.Close()
	require.NoError(t, err)
}

func TestDB_MissingTerminatorInvalidates(t *testing.T) {
	// An interrupted write (no blank terminator) discards the file.
	path := filepath.Join(t.TempDir(), "out.d")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\n"), 0o644))

	d, err := depdb.Open(path)
	require.NoError(t, err)
	assert.True(t, d.Writing())
	_, err = d.Close()
	require.NoError(t, err)
}

func TestDB_EmptyFileOpensWriting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.d")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	d, err := depdb.Open(path)
	require.NoError(t, err)
	assert.True(t, d.Writing())
	_, err = d.Close()
	require.NoError(t, err)
}

func TestDB_Touch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.d")
	write(t, path, []string{"one"})

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	d, err := depdb.Open(path)
	require.NoError(t, err)
	before := d.Mtime()

	require.NoError(t, d.Touch())
	assert.True(t, d.Mtime().After(before))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, fi.ModTime().After(before))

	_, err = d.Close()
	require.NoError(t, err)
}

func TestDB_CloseTerminates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.d")
	write(t, path, []string{"only"})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "only\n\n", string(data))
}
