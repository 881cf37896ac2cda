package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rel, err := store.Save("timetables/run-1/class-a.csv", []byte("period,mon\n"))
	require.NoError(t, err)
	assert.Equal(t, "timetables/run-1/class-a.csv", rel)

	data, err := store.Read(rel)
	require.NoError(t, err)
	assert.Equal(t, "period,mon\n", string(data))

	require.NoError(t, store.DeleteDir("timetables/run-1"))
	_, err = store.Read(rel)
	assert.Error(t, err)
}

func TestLocalStorageRejectsEscapes(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, path := range []string{"", "../secret", "a/../../b", "/etc/passwd"} {
		_, err := store.Save(path, []byte("x"))
		assert.ErrorIs(t, err, ErrInvalidPath, path)
	}
	assert.ErrorIs(t, store.DeleteDir("."), ErrInvalidPath)
}

func TestLocalStorageCleanup(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = store.Save("old/a.pdf", []byte("old"))
	require.NoError(t, err)
	_, err = store.Save("new/b.pdf", []byte("new"))
	require.NoError(t, err)
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old", "a.pdf"), past, past))

	deleted, err := store.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old/a.pdf"}, deleted)
}
