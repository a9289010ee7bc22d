package extractor

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func tarBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0644, Size: int64(len(body)), Typeflag: tar.TypeReg}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func TestExtractZip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "AIO_Client.zip")
	writeZip(t, src, map[string]string{
		"AIO_Client/AIO_Client.toc": "## Title: AIO",
		"AIO_Client/AIO.lua":        "-- lua",
	})

	dst := filepath.Join(dir, "Interface", "AddOns")
	require.NoError(t, New().Extract(src, dst))

	data, err := os.ReadFile(filepath.Join(dst, "AIO_Client", "AIO_Client.toc"))
	require.NoError(t, err)
	assert.Equal(t, "## Title: AIO", string(data))
	assert.FileExists(t, filepath.Join(dst, "AIO_Client", "AIO.lua"))
}

func TestExtractZipRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "evil.zip")
	writeZip(t, src, map[string]string{"../../escape.txt": "x"})

	err := New().Extract(src, filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "escape.txt"))
}

func TestExtractTarGz(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(tarBytes(t, map[string]string{"Foo/Foo.toc": "foo"}))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	src := filepath.Join(dir, "Foo.tar.gz")
	require.NoError(t, os.WriteFile(src, buf.Bytes(), 0644))

	require.NoError(t, New().Extract(src, dir))
	assert.FileExists(t, filepath.Join(dir, "Foo", "Foo.toc"))
}

func TestExtractTarZst(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write(tarBytes(t, map[string]string{"Bar/Bar.toc": "bar"}))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	src := filepath.Join(dir, "Bar.tar.zst")
	require.NoError(t, os.WriteFile(src, buf.Bytes(), 0644))

	require.NoError(t, New().Extract(src, dir))
	assert.FileExists(t, filepath.Join(dir, "Bar", "Bar.toc"))
}

func TestUnsupported(t *testing.T) {
	err := New().Extract("patch-B.MPQ", t.TempDir())
	assert.Error(t, err)
	assert.False(t, IsArchive("patch-B.MPQ"))
	assert.True(t, IsArchive("custom/addOns/Foo.ZIP"))
	assert.True(t, IsArchive("Foo.tar.xz"))
}
