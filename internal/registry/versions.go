// Package registry reads the remote version index that lists the custom
// content published for the client.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/teamcutter/patchr/internal/domain"
	"github.com/teamcutter/patchr/internal/events"
	"github.com/teamcutter/patchr/internal/fetcher"
	"github.com/teamcutter/patchr/internal/objectstore"
)

// VersionIndex downloads the version file once and serves it from memory
// until Reset is called.
type VersionIndex struct {
	mu       sync.Mutex
	download func() *fetcher.Downloader
	key      string
	local    string
	versions []domain.RemoteVersion
	loaded   bool
}

// New returns an index for key. The file is stored at local (absolute, or
// relative to the downloader root) so it stays inspectable on disk.
func New(download func() *fetcher.Downloader, key, local string) *VersionIndex {
	return &VersionIndex{
		download: download,
		key:      key,
		local:    local,
	}
}

func decodeIndex(r io.Reader) ([]domain.RemoteVersion, error) {
	var index domain.VersionIndex
	if err := json.NewDecoder(r).Decode(&index); err != nil {
		return nil, err
	}
	return index.Versions, nil
}

func (v *VersionIndex) load(ctx context.Context) error {
	if v.loaded {
		return nil
	}

	d := v.download()
	var failure error
	events.On(d.Events(), fetcher.EventError, func(e fetcher.ErrorEvent) {
		failure = e.Err
	})

	if !d.DownloadFile(ctx, v.key, v.local) {
		if failure == nil {
			failure = errors.New("download failed")
		}
		// A bucket that has not published an index yet has no versions.
		if errors.Is(failure, objectstore.ErrNotFound) {
			return fmt.Errorf("%s: %w", v.key, domain.ErrNoRemoteVersion)
		}
		return fmt.Errorf("fetching version index: %w", failure)
	}

	f, err := os.Open(d.Path(v.local))
	if err != nil {
		return fmt.Errorf("opening version index: %w", err)
	}
	defer f.Close()

	versions, err := decodeIndex(f)
	if err != nil {
		return fmt.Errorf("decoding version index: %w", err)
	}

	v.versions = versions
	v.loaded = true
	return nil
}

// Versions returns every published version in file order.
func (v *VersionIndex) Versions(ctx context.Context) ([]domain.RemoteVersion, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.load(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.RemoteVersion, len(v.versions))
	copy(out, v.versions)
	return out, nil
}

// Latest returns the first entry of the index, which is the newest release.
func (v *VersionIndex) Latest(ctx context.Context) (domain.RemoteVersion, error) {
	versions, err := v.Versions(ctx)
	if err != nil {
		return domain.RemoteVersion{}, err
	}
	if len(versions) == 0 {
		return domain.RemoteVersion{}, domain.ErrNoRemoteVersion
	}
	return versions[0], nil
}

// CustomFiles returns the union of files across all versions, first seen
// wins.
func (v *VersionIndex) CustomFiles(ctx context.Context) ([]domain.Artifact, error) {
	versions, err := v.Versions(ctx)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, domain.ErrNoRemoteVersion
	}
	return MergeFiles(versions), nil
}

func MergeFiles(versions []domain.RemoteVersion) []domain.Artifact {
	seen := make(map[string]bool)
	var files []domain.Artifact
	for _, rv := range versions {
		for _, f := range rv.Files {
			if f.Name == "" || seen[f.Name] {
				continue
			}
			seen[f.Name] = true
			files = append(files, f)
		}
	}
	return files
}

// Reset drops the loaded index so the next call downloads it again.
func (v *VersionIndex) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.versions = nil
	v.loaded = false
}
