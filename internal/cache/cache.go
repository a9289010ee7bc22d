package cache

import (
	"os"
	"path/filepath"
	"sync"
)

// DiskCache is a folder for files that can be fetched again at any time,
// such as the remote version index and the last news document.
type DiskCache struct {
	sync.RWMutex
	dir string
}

func New(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	return &DiskCache{dir: dir}, nil
}

func (c *DiskCache) Dir() string {
	return c.dir
}

func (c *DiskCache) Path(name string) string {
	return filepath.Join(c.dir, name)
}

func (c *DiskCache) Write(name string, data []byte) error {
	c.Lock()
	defer c.Unlock()

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(c.Path(name), data, 0644)
}

func (c *DiskCache) Read(name string) ([]byte, error) {
	c.RLock()
	defer c.RUnlock()
	return os.ReadFile(c.Path(name))
}

func (c *DiskCache) Size() (int64, error) {
	c.RLock()
	defer c.RUnlock()

	var size int64

	err := filepath.Walk(c.dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})

	return size, err
}

func (c *DiskCache) Clear() error {
	c.Lock()
	defer c.Unlock()

	if err := os.RemoveAll(c.dir); err != nil {
		return err
	}
	return os.MkdirAll(c.dir, 0755)
}
