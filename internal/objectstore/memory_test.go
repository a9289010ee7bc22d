package objectstore

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	tag := m.Put("patches/patch-B.MPQ", []byte("hello"))
	assert.Equal(t, `"5d41402abc4b2a76b9719d911017c592"`, tag)

	obj, err := m.GetObject(ctx, "patches/patch-B.MPQ")
	require.NoError(t, err)
	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, int64(5), obj.ContentLength)

	info, err := m.HeadObject(ctx, "patches/patch-B.MPQ")
	require.NoError(t, err)
	assert.Equal(t, tag, info.ETag)

	_, err = m.HeadObject(ctx, "patches/missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, int64(1), m.Gets())
	assert.Equal(t, int64(2), m.Heads())
}

func TestMemoryFailAndList(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Put("news/a.md", []byte("a"))
	m.Put("news/b.md", []byte("b"))
	m.Put("patches/x", []byte("x"))

	list, err := m.ListObjects(ctx, "news")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "news/a.md", list[0].Key)

	boom := errors.New("boom")
	m.Fail("patches/x", boom)
	_, err = m.GetObject(ctx, "patches/x")
	assert.ErrorIs(t, err, boom)

	m.Fail("patches/x", nil)
	_, err = m.GetObject(ctx, "patches/x")
	assert.NoError(t, err)
}

func TestSplitEndpoint(t *testing.T) {
	host, secure := splitEndpoint("https://s3.example.com:3900", false)
	assert.Equal(t, "s3.example.com:3900", host)
	assert.True(t, secure)

	host, secure = splitEndpoint("localhost:9000", false)
	assert.Equal(t, "localhost:9000", host)
	assert.False(t, secure)
}
