package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	m := New(path, zerolog.Nop())

	first, err := m.Get()
	require.NoError(t, err)
	assert.Equal(t, "v0", first.Version)
	assert.Empty(t, first.Files)
	assert.False(t, first.LastUpdate.IsZero())
	require.FileExists(t, path)

	info, err := os.Stat(path)
	require.NoError(t, err)

	second, err := m.Get()
	require.NoError(t, err)
	assert.Equal(t, first.Version, second.Version)
	assert.True(t, first.LastUpdate.Equal(second.LastUpdate))

	again, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), again.ModTime())
}

func TestRecordInstalledRoundTrip(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "manifest.json"), zerolog.Nop())

	require.NoError(t, m.RecordInstalled("patches/patch-B.MPQ", `"abc123"`))

	ok, err := m.IsUpToDate("patches/patch-B.MPQ", "abc123")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.IsUpToDate("patches/patch-B.MPQ", `"abc123"`)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.IsUpToDate("patches/patch-B.MPQ", "def456")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m.IsUpToDate("patches/patch-C.MPQ", "")
	require.NoError(t, err)
	assert.False(t, ok)

	manifest, err := m.Get()
	require.NoError(t, err)
	assert.Equal(t, "abc123", manifest.Files["patches/patch-B.MPQ"])
}

func TestRecordVersion(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "manifest.json"), zerolog.Nop())
	require.NoError(t, m.RecordInstalled("custom/patch-Y.MPQ", "t1"))
	require.NoError(t, m.RecordVersion("v2"))

	manifest, err := m.Get()
	require.NoError(t, err)
	assert.Equal(t, "v2", manifest.Version)
	assert.Equal(t, "t1", manifest.Files["custom/patch-Y.MPQ"])
}

func TestConcurrentWritersShareFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	a := New(path, zerolog.Nop())
	b := New(path, zerolog.Nop())

	var wg sync.WaitGroup
	for i := range 40 {
		store := a
		if i%2 == 1 {
			store = b
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.RecordInstalled(fmt.Sprintf("patches/%d", i), fmt.Sprintf("tag-%d", i)))
		}()
	}
	wg.Wait()

	manifest, err := a.Get()
	require.NoError(t, err)
	assert.Len(t, manifest.Files, 40)
}

func TestCorruptManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := New(path, zerolog.Nop()).Get()
	assert.Error(t, err)
}
