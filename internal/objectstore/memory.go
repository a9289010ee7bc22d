package objectstore

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teamcutter/patchr/internal/domain"
)

// Memory is an in-process bucket. It backs offline runs and tests, and can
// be told to fail specific keys.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memObject
	fail    map[string]error

	gets  atomic.Int64
	heads atomic.Int64
	lists atomic.Int64
}

type memObject struct {
	data     []byte
	etag     string
	modified time.Time
}

func NewMemory() *Memory {
	return &Memory{
		objects: make(map[string]memObject),
		fail:    make(map[string]error),
	}
}

// Put stores data under key with an S3 style quoted md5 tag.
func (m *Memory) Put(key string, data []byte) string {
	return m.PutAt(key, data, time.Now())
}

func (m *Memory) PutAt(key string, data []byte, modified time.Time) string {
	sum := md5.Sum(data)
	etag := `"` + hex.EncodeToString(sum[:]) + `"`

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memObject{data: bytes.Clone(data), etag: etag, modified: modified}
	return etag
}

// Fail makes every request for key return err; a nil err clears it.
func (m *Memory) Fail(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fail, key)
		return
	}
	m.fail[key] = err
}

func (m *Memory) Gets() int64  { return m.gets.Load() }
func (m *Memory) Heads() int64 { return m.heads.Load() }
func (m *Memory) Lists() int64 { return m.lists.Load() }

func (m *Memory) lookup(key string) (memObject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err, ok := m.fail[key]; ok {
		return memObject{}, err
	}
	obj, ok := m.objects[key]
	if !ok {
		return memObject{}, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return obj, nil
}

func (m *Memory) GetObject(ctx context.Context, key string) (*domain.Object, error) {
	m.gets.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	obj, err := m.lookup(key)
	if err != nil {
		return nil, err
	}
	return &domain.Object{
		Body:          io.NopCloser(bytes.NewReader(obj.data)),
		ContentLength: int64(len(obj.data)),
		ETag:          obj.etag,
	}, nil
}

func (m *Memory) HeadObject(ctx context.Context, key string) (domain.ObjectInfo, error) {
	m.heads.Add(1)
	if err := ctx.Err(); err != nil {
		return domain.ObjectInfo{}, err
	}
	obj, err := m.lookup(key)
	if err != nil {
		return domain.ObjectInfo{}, err
	}
	return domain.ObjectInfo{
		Key:          key,
		Size:         int64(len(obj.data)),
		ETag:         obj.etag,
		LastModified: obj.modified,
	}, nil
}

func (m *Memory) ListObjects(ctx context.Context, prefix string) ([]domain.ObjectInfo, error) {
	m.lists.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.ObjectInfo
	for key, obj := range m.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		out = append(out, domain.ObjectInfo{
			Key:          key,
			Size:         int64(len(obj.data)),
			ETag:         obj.etag,
			LastModified: obj.modified,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
