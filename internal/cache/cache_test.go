package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskCache(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Cache", "WL")
	c, err := New(dir)
	require.NoError(t, err)
	assert.DirExists(t, dir)

	require.NoError(t, c.Write("news.md", []byte("# hello")))
	data, err := c.Read("news.md")
	require.NoError(t, err)
	assert.Equal(t, "# hello", string(data))

	size, err := c.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(7), size)

	require.NoError(t, c.Clear())
	assert.NoFileExists(t, c.Path("news.md"))
	assert.DirExists(t, dir)

	size, err = c.Size()
	require.NoError(t, err)
	assert.Zero(t, size)
}
