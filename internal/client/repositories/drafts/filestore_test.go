package drafts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_SetGetDelete(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "drafts"))
	require.NoError(t, err)

	_, ok := s.Get("create-form")
	assert.False(t, ok)

	require.NoError(t, s.Set("create-form", `{"title":"foo"}`))
	v, ok := s.Get("create-form")
	require.True(t, ok)
	assert.Equal(t, `{"title":"foo"}`, v)

	require.NoError(t, s.Set("create-form", `{"title":"bar"}`))
	v, _ = s.Get("create-form")
	assert.Equal(t, `{"title":"bar"}`, v)

	require.NoError(t, s.Delete("create-form"))
	_, ok = s.Get("create-form")
	assert.False(t, ok)

	require.NoError(t, s.Delete("create-form"), "deleting a missing key is not an error")
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "drafts")

	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set("k/with:odd chars", "v"))

	s2, err := NewFileStore(dir)
	require.NoError(t, err)
	v, ok := s2.Get("k/with:odd chars")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestFileStore_SetFailsWhenDirRemoved(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "drafts")
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	require.Error(t, s.Set("k", "v"))
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	_, ok := s.Get("k")
	assert.False(t, ok)

	require.NoError(t, s.Set("k", "v"))
	v, ok := s.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, s.Delete("k"))
	_, ok = s.Get("k")
	assert.False(t, ok)
}
