// Package manager reconciles the local game client with the remote store:
// it decides which artifacts are installed and prepares the downloads that
// bring the rest up to date.
package manager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/teamcutter/patchr/internal/catalog"
	"github.com/teamcutter/patchr/internal/config"
	"github.com/teamcutter/patchr/internal/domain"
	"github.com/teamcutter/patchr/internal/fetcher"
	"github.com/teamcutter/patchr/internal/metrics"
	"github.com/teamcutter/patchr/internal/registry"
)

const (
	DataDir = "Data"

	headParallel = 8
	newsFile     = "news.md"
)

// AddOnsDir holds the unpacked interface add-ons, relative to the root.
var AddOnsDir = filepath.Join("Interface", "AddOns")

// Params are the collaborators of a Manager. Journal and Metrics may be nil.
type Params struct {
	Root      string
	Store     domain.ObjectStore
	Catalog   *catalog.Catalog
	Manifest  domain.ManifestStore
	Journal   domain.Journal
	Extractor domain.Extractor
	Cache     domain.Cache
	Metrics   *metrics.Transfers
	Logger    zerolog.Logger

	RemotePaths config.RemotePaths
	StoreAddOn  config.StoreAddOn
	Executable  config.Executable
	Download    config.Download
}

type Manager struct {
	root      string
	store     domain.ObjectStore
	catalog   *catalog.Catalog
	manifest  domain.ManifestStore
	journal   domain.Journal
	extractor domain.Extractor
	cache     domain.Cache
	metrics   *metrics.Transfers
	logger    zerolog.Logger

	paths      config.RemotePaths
	storeAddOn config.StoreAddOn
	executable config.Executable
	download   config.Download

	versions *registry.VersionIndex
	tags     *ristretto.Cache[string, string]
	lookup   *fetcher.Downloader
}

func New(p Params) (*Manager, error) {
	if p.Root == "" {
		return nil, errors.New("install root is required")
	}
	if p.Store == nil || p.Catalog == nil || p.Manifest == nil || p.Cache == nil || p.Extractor == nil {
		return nil, errors.New("manager: missing collaborator")
	}

	tags, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: 10_000,
		MaxCost:     1 << 16,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating tag cache: %w", err)
	}

	m := &Manager{
		root:       p.Root,
		store:      p.Store,
		catalog:    p.Catalog,
		manifest:   p.Manifest,
		journal:    p.Journal,
		extractor:  p.Extractor,
		cache:      p.Cache,
		metrics:    p.Metrics,
		logger:     p.Logger,
		paths:      p.RemotePaths,
		storeAddOn: p.StoreAddOn,
		executable: p.Executable,
		download:   p.Download,
		tags:       tags,
	}
	m.lookup = m.newDownloader()
	m.versions = registry.New(m.newDownloader, p.RemotePaths.Version, p.Cache.Path(path.Base(p.RemotePaths.Version)))
	return m, nil
}

// Close releases the tag cache. The journal belongs to the caller.
func (m *Manager) Close() {
	m.tags.Close()
}

func (m *Manager) newDownloader() *fetcher.Downloader {
	return fetcher.New(m.store, m.root,
		fetcher.WithLogger(m.logger),
		fetcher.WithMetrics(m.metrics),
		fetcher.WithMaxParallel(m.download.MaxParallel),
		fetcher.WithRequestTimeout(m.download.RequestTimeout.Duration),
	)
}

// Refresh forgets every remote answer cached by this manager.
func (m *Manager) Refresh() {
	m.tags.Clear()
	m.versions.Reset()
}

func (m *Manager) patchKey(name string) string {
	return path.Join(m.paths.Patches, name)
}

func (m *Manager) addOnKey(name string) string {
	return path.Join(m.paths.AddOns, name)
}

// remoteTag returns the normalized tag of key, asking the store at most once
// per tag cache TTL.
func (m *Manager) remoteTag(ctx context.Context, key string) (string, error) {
	if tag, ok := m.tags.Get(key); ok {
		return tag, nil
	}
	tag, err := m.lookup.GetETag(ctx, key)
	if err != nil {
		return "", err
	}
	m.rememberTag(key, tag)
	return tag, nil
}

func (m *Manager) rememberTag(key, tag string) {
	// A zero TTL keeps the entry for the lifetime of the manager.
	m.tags.SetWithTTL(key, tag, 1, m.download.TagCacheTTL.Duration)
	m.tags.Wait()
}

func upToDate(manifest *domain.Manifest, key, tag string) bool {
	recorded, ok := manifest.Files[key]
	return ok && recorded == tag
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// IsGameInstalled reports whether the client executable is in the root.
func (m *Manager) IsGameInstalled() bool {
	return exists(filepath.Join(m.root, m.executable.Name))
}

// localEntries lists the names in Data/. A missing directory is empty.
func (m *Manager) localEntries() (map[string]bool, error) {
	entries, err := os.ReadDir(filepath.Join(m.root, DataDir))
	if errors.Is(err, os.ErrNotExist) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", DataDir, err)
	}

	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		names[e.Name()] = true
	}
	return names, nil
}

func patchGroup(g catalog.Group) error {
	if g == catalog.AddOns {
		return fmt.Errorf("%s is not a patch group: %w", g, domain.ErrUnknownGroup)
	}
	if _, err := catalog.ParseGroup(string(g)); err != nil {
		return err
	}
	return nil
}

// installed returns, per group, the artifacts present locally whose recorded
// tag matches the remote one. Reserved artifacts only need to be present.
func (m *Manager) installed(ctx context.Context, groups ...catalog.Group) (map[catalog.Group][]domain.Artifact, error) {
	local, err := m.localEntries()
	if err != nil {
		return nil, err
	}
	manifest, err := m.manifest.Get()
	if err != nil {
		return nil, err
	}

	marks := make(map[catalog.Group][]bool, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(headParallel)

	for _, group := range groups {
		artifacts := m.catalog.Group(group)
		ok := make([]bool, len(artifacts))
		marks[group] = ok

		for i, a := range artifacts {
			if !local[a.Name] {
				continue
			}
			if !group.Tracked() {
				ok[i] = true
				continue
			}
			key := m.patchKey(a.Name)
			g.Go(func() error {
				tag, err := m.remoteTag(gctx, key)
				if err != nil {
					return err
				}
				ok[i] = upToDate(manifest, key, tag)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[catalog.Group][]domain.Artifact, len(groups))
	for _, group := range groups {
		for i, a := range m.catalog.Group(group) {
			if marks[group][i] {
				out[group] = append(out[group], a)
			}
		}
	}
	return out, nil
}

// InstalledPatches returns the installed artifacts of every patch group.
func (m *Manager) InstalledPatches(ctx context.Context) ([]domain.Artifact, error) {
	byGroup, err := m.installed(ctx, catalog.PatchGroups...)
	if err != nil {
		return nil, err
	}
	var out []domain.Artifact
	for _, g := range catalog.PatchGroups {
		out = append(out, byGroup[g]...)
	}
	return out, nil
}

func (m *Manager) Installed(ctx context.Context, g catalog.Group) ([]domain.Artifact, error) {
	if err := patchGroup(g); err != nil {
		return nil, err
	}
	byGroup, err := m.installed(ctx, g)
	if err != nil {
		return nil, err
	}
	return byGroup[g], nil
}

// Missing returns the artifacts of g that are not installed, in catalog
// order.
func (m *Manager) Missing(ctx context.Context, g catalog.Group) ([]domain.Artifact, error) {
	installed, err := m.Installed(ctx, g)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(installed))
	for _, a := range installed {
		have[a.Name] = true
	}

	var missing []domain.Artifact
	for _, a := range m.catalog.Group(g) {
		if !have[a.Name] {
			missing = append(missing, a)
		}
	}
	return missing, nil
}

func (m *Manager) IsGroupComplete(ctx context.Context, g catalog.Group) (bool, error) {
	missing, err := m.Missing(ctx, g)
	if err != nil {
		return false, err
	}
	return len(missing) == 0, nil
}

func (m *Manager) RemoteVersions(ctx context.Context) ([]domain.RemoteVersion, error) {
	return m.versions.Versions(ctx)
}

// CustomFilesToInstall is the union of files across every published
// version, first seen wins.
func (m *Manager) CustomFilesToInstall(ctx context.Context) ([]domain.Artifact, error) {
	return m.versions.CustomFiles(ctx)
}

// LatestNews fetches the newest news document and keeps a copy in the cache.
// When the store cannot be reached the cached copy is returned instead.
func (m *Manager) LatestNews(ctx context.Context) (string, error) {
	news, err := m.lookup.LatestNews(ctx, m.paths.News)
	if err != nil {
		cached, cerr := m.cache.Read(newsFile)
		if cerr != nil {
			return "", err
		}
		m.logger.Warn().Err(err).Msg("showing cached news")
		return string(cached), nil
	}
	if err := m.cache.Write(newsFile, []byte(news)); err != nil {
		m.logger.Warn().Err(err).Msg("could not cache news")
	}
	return news, nil
}

// IsStoreAddOnInstalled checks the add-on archive and its companion patch
// against the remote tags, and that the unpacked add-on is on disk.
func (m *Manager) IsStoreAddOnInstalled(ctx context.Context) (bool, error) {
	marker := filepath.Join(m.root, AddOnsDir, filepath.FromSlash(m.storeAddOn.Marker))
	companion := filepath.Join(m.root, DataDir, m.storeAddOn.Companion)
	if !exists(marker) || !exists(companion) {
		return false, nil
	}

	manifest, err := m.manifest.Get()
	if err != nil {
		return false, err
	}
	for _, key := range []string{m.addOnKey(m.storeAddOn.Archive), m.patchKey(m.storeAddOn.Companion)} {
		tag, err := m.remoteTag(ctx, key)
		if err != nil {
			return false, err
		}
		if !upToDate(manifest, key, tag) {
			return false, nil
		}
	}
	return true, nil
}

// Status is a read-only summary of the install.
type Status struct {
	Root                string
	GameInstalled       bool
	LocalVersion        string
	LastUpdate          time.Time
	RemoteVersion       string
	Groups              map[catalog.Group]bool
	AddOns              []AddOn
	StoreAddOnInstalled bool
	ExecutablePatched   bool
}

// AddOn is a configured add-on and whether its folder is on disk.
type AddOn struct {
	domain.Artifact
	Present bool
}

// AddOns reports the configured add-ons in catalog order. They arrive with
// custom content or by hand, so only the folder under Interface/AddOns is
// checked.
func (m *Manager) AddOns() []AddOn {
	list := m.catalog.Group(catalog.AddOns)
	out := make([]AddOn, 0, len(list))
	for _, a := range list {
		out = append(out, AddOn{
			Artifact: a,
			Present:  exists(filepath.Join(m.root, AddOnsDir, a.Name)),
		})
	}
	return out
}

func (m *Manager) Status(ctx context.Context) (*Status, error) {
	s := &Status{
		Root:          m.root,
		GameInstalled: m.IsGameInstalled(),
		Groups:        make(map[catalog.Group]bool, len(catalog.PatchGroups)),
	}

	manifest, err := m.manifest.Get()
	if err != nil {
		return nil, err
	}
	s.LocalVersion = manifest.Version
	s.LastUpdate = manifest.LastUpdate

	latest, err := m.versions.Latest(ctx)
	switch {
	case errors.Is(err, domain.ErrNoRemoteVersion):
	case err != nil:
		return nil, err
	default:
		s.RemoteVersion = latest.Version
	}

	if !s.GameInstalled {
		return s, nil
	}

	for _, g := range catalog.PatchGroups {
		complete, err := m.IsGroupComplete(ctx, g)
		if err != nil {
			return nil, err
		}
		s.Groups[g] = complete
	}
	s.AddOns = m.AddOns()
	if s.StoreAddOnInstalled, err = m.IsStoreAddOnInstalled(ctx); err != nil {
		return nil, err
	}
	if m.executable.PatchedMD5 != "" {
		s.ExecutablePatched, err = m.IsExecutablePatched()
		if err != nil && !errors.Is(err, domain.ErrNotInstalled) {
			return nil, err
		}
	}
	return s, nil
}
