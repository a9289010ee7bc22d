package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/teamcutter/patchr/internal/domain"
)

// fileLocks hands out one mutex per manifest path so that every
// ManifestState opened on the same file in this process serializes through it.
var fileLocks sync.Map

func lockFor(path string) *sync.Mutex {
	mu, _ := fileLocks.LoadOrStore(path, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// ManifestState keeps the manifest as a JSON document on disk. Every call
// re-reads the file under the lock, so concurrent writers never lose updates;
// conflicting writes to the same key are last-writer-wins.
type ManifestState struct {
	mu     *sync.Mutex
	path   string
	logger zerolog.Logger
	now    func() time.Time
}

func New(path string, logger zerolog.Logger) *ManifestState {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return &ManifestState{
		mu:     lockFor(path),
		path:   path,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (m *ManifestState) Path() string {
	return m.path
}

// Get returns the manifest, creating and persisting a v0 manifest if the
// file does not exist yet.
func (m *ManifestState) Get() (*domain.Manifest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load()
}

func (m *ManifestState) IsUpToDate(key, tag string) (bool, error) {
	manifest, err := m.Get()
	if err != nil {
		return false, err
	}
	stored, ok := manifest.Files[key]
	return ok && stored == domain.NormalizeTag(tag), nil
}

func (m *ManifestState) RecordInstalled(key, tag string) error {
	return m.update(func(manifest *domain.Manifest) {
		manifest.Files[key] = domain.NormalizeTag(tag)
	})
}

func (m *ManifestState) RecordVersion(version string) error {
	return m.update(func(manifest *domain.Manifest) {
		manifest.Version = version
	})
}

func (m *ManifestState) update(fn func(*domain.Manifest)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	manifest, err := m.load()
	if err != nil {
		return err
	}
	fn(manifest)
	manifest.LastUpdate = m.now()

	if err := m.flush(manifest); err != nil {
		return err
	}
	m.logger.Debug().Str("manifest", m.path).Str("version", manifest.Version).Int("files", len(manifest.Files)).Msg("manifest written")
	return nil
}

func (m *ManifestState) load() (*domain.Manifest, error) {
	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		manifest := domain.NewManifest()
		manifest.LastUpdate = m.now()
		if err := m.flush(manifest); err != nil {
			return nil, err
		}
		return manifest, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var manifest domain.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", m.path, err)
	}
	if manifest.Files == nil {
		manifest.Files = make(map[string]string)
	}
	return &manifest, nil
}

// flush writes through a temp file and rename so a crash mid-write never
// leaves a truncated manifest behind.
func (m *ManifestState) flush(manifest *domain.Manifest) error {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".manifest-*.json")
	if err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
