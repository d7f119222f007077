package classify

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadStore_MissingFile(t *testing.T) {
	s, err := LoadStore(filepath.Join(t.TempDir(), "channel_categories.json"))
	require.NoError(t, err)
	assert.Zero(t, s.Len())
	assert.False(t, s.Dirty())
}

func TestLoadStore_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := LoadStore(path)
	assert.Error(t, err)
}

func TestLoadStore_NullFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.json")
	require.NoError(t, os.WriteFile(path, []byte("null\n"), 0o644))

	s, err := LoadStore(path)
	require.NoError(t, err)
	assert.Zero(t, s.Len())

	s.Put("BBC News", "News")
	label, ok := s.Get("BBC News")
	require.True(t, ok)
	assert.Equal(t, "News", label)
	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Dirty())
}

func TestStore_PutMarksDirtyOnlyOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"BBC News": "News"}`), 0o644))

	s, err := LoadStore(path)
	require.NoError(t, err)
	l, ok := s.Get("BBC News")
	require.True(t, ok)
	assert.Equal(t, "News", l)

	s.Put("BBC News", "News")
	assert.False(t, s.Dirty())

	s.Put("Formula 1", "F1")
	assert.True(t, s.Dirty())
	assert.Equal(t, []string{"BBC News", "Formula 1"}, s.Channels())
}

func TestStore_FlushWritesSortedAndBacksUp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "channel_categories.json")
	original := []byte(`{"Zed": "Humor"}`)
	require.NoError(t, os.WriteFile(path, original, 0o644))

	s, err := LoadStore(path)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC) }
	s.Put("Alpha & Omega", "History")

	backup, err := s.Flush()
	require.NoError(t, err)
	assert.Equal(t, path+".20240305-140709.bak", backup)
	assert.False(t, s.Dirty())

	prev, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, original, prev)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"Alpha & Omega\": \"History\",\n  \"Zed\": \"Humor\"\n}\n", string(data))

	reloaded, err := LoadStore(path)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Len())
}

func TestStore_FlushFirstWriteHasNoBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "c.json")
	s, err := LoadStore(path)
	require.NoError(t, err)
	s.Put("Chan", "News")

	backup, err := s.Flush()
	require.NoError(t, err)
	assert.Empty(t, backup)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestStore_FlushNoopWhenClean(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.json")
	s, err := LoadStore(path)
	require.NoError(t, err)

	backup, err := s.Flush()
	require.NoError(t, err)
	assert.Empty(t, backup)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
