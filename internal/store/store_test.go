package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_MissingFileIsEmpty(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "settings.yaml"), nil)
	require.NoError(t, err)

	_, ok := s.Get("paused")
	assert.False(t, ok)
	assert.Empty(t, s.Keys())
}

func TestSetGetDelete_PersistAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")

	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Set("paused", "true"))
	require.NoError(t, s.Set("identity", "42"))
	require.NoError(t, s.Delete("paused"))
	require.NoError(t, s.Delete("never-set"))

	reopened, err := Open(path, nil)
	require.NoError(t, err)

	_, ok := reopened.Get("paused")
	assert.False(t, ok, "deleted key should not survive a reopen")
	v, ok := reopened.Get("identity")
	assert.True(t, ok)
	assert.Equal(t, "42", v)
	assert.Equal(t, []string{"identity"}, reopened.Keys())
}

func TestSet_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "settings.yaml"), nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Set("machine_id", "abc"))
		require.NoError(t, s.Set("recognized", "true"))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "settings.yaml", entries[0].Name())
}

func TestOpen_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("paused: [unterminated"), 0644))

	_, err := Open(path, nil)
	assert.Error(t, err)
}

func TestSet_WriteFailureKeepsMemoryValue(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "settings")
	require.NoError(t, os.Mkdir(dir, 0755))

	s, err := Open(filepath.Join(dir, "settings.yaml"), nil)
	require.NoError(t, err)

	// Replace the directory with a regular file so persisting must fail.
	require.NoError(t, os.Remove(dir))
	require.NoError(t, os.WriteFile(dir, nil, 0644))

	err = s.Set("paused", "true")
	assert.Error(t, err)
	v, ok := s.Get("paused")
	assert.True(t, ok)
	assert.Equal(t, "true", v)
}

func TestWatch_ReloadsExternalChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s, err := Open(path, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := s.Watch(ctx)
	require.NoError(t, err)

	// Another process (the CLI) rewrites the file.
	other, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, other.Set("paused", "true"))

	select {
	case <-changes:
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}

	v, ok := s.Get("paused")
	assert.True(t, ok)
	assert.Equal(t, "true", v)
}
