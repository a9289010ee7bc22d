package manager

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teamcutter/patchr/internal/catalog"
	"github.com/teamcutter/patchr/internal/domain"
	"github.com/teamcutter/patchr/internal/events"
	"github.com/teamcutter/patchr/internal/extractor"
	"github.com/teamcutter/patchr/internal/fetcher"
)

// Install is a prepared download batch. Listeners attached to Events before
// Run observe every event of the batch, after the manager's own handlers.
type Install struct {
	ID        string
	Transfers []domain.Transfer

	downloader *fetcher.Downloader
	run        func(ctx context.Context) bool

	// ctx is the context of Run, set before any transfer starts.
	ctx     context.Context
	once    sync.Once
	ok      bool
	faulted atomic.Bool
}

func (i *Install) Events() *events.Bus {
	return i.downloader.Events()
}

// Run performs the batch and reports whether every transfer and every
// follow-up step succeeded. Later calls return the first result.
func (i *Install) Run(ctx context.Context) bool {
	i.once.Do(func() {
		i.ctx = ctx
		i.ok = i.run(ctx) && !i.faulted.Load()
	})
	return i.ok
}

func (m *Manager) newInstall(transfers []domain.Transfer, hooks func(inst *Install)) *Install {
	d := m.newDownloader()
	inst := &Install{
		ID:         uuid.NewString(),
		Transfers:  transfers,
		downloader: d,
	}

	// Failures published without a local path come from follow-up steps.
	events.On(d.Events(), fetcher.EventError, func(e fetcher.ErrorEvent) {
		if e.LocalPath == "" {
			inst.faulted.Store(true)
		}
	})
	m.journalBatch(inst.ID, d)
	if hooks != nil {
		hooks(inst)
	}

	inst.run = func(ctx context.Context) bool {
		m.logger.Info().Str("batch", inst.ID).Int("files", len(transfers)).Msg("starting downloads")
		m.journalBegin(inst.ID, transfers)
		return d.DownloadFiles(ctx, transfers)
	}
	return inst
}

func (m *Manager) journalBegin(batchID string, transfers []domain.Transfer) {
	if m.journal == nil {
		return
	}
	for _, t := range transfers {
		if err := m.journal.Begin(batchID, t); err != nil {
			m.logger.Warn().Err(err).Str("key", t.RemoteKey).Msg("journal begin failed")
		}
	}
}

// journalBatch mirrors each outcome of the batch into the transfer journal.
func (m *Manager) journalBatch(batchID string, d *fetcher.Downloader) {
	if m.journal == nil {
		return
	}
	finish := func(rec domain.TransferRecord) {
		rec.BatchID = batchID
		rec.FinishedAt = time.Now().UTC()
		if err := m.journal.Finish(rec); err != nil {
			m.logger.Warn().Err(err).Str("key", rec.RemoteKey).Msg("journal finish failed")
		}
	}
	bus := d.Events()
	events.On(bus, fetcher.EventEnd, func(e fetcher.EndEvent) {
		finish(domain.TransferRecord{
			RemoteKey: e.RemoteKey,
			LocalPath: e.LocalPath,
			Bytes:     e.TotalBytes,
			ETag:      e.ETag,
			Status:    domain.StatusDone,
		})
	})
	events.On(bus, fetcher.EventError, func(e fetcher.ErrorEvent) {
		if e.RemoteKey == "" {
			return
		}
		finish(domain.TransferRecord{
			RemoteKey: e.RemoteKey,
			LocalPath: e.LocalPath,
			Status:    domain.StatusFailed,
			Error:     e.Err.Error(),
		})
	})
}

// fault reports a failure that happened after a transfer completed. The
// event carries no local path so batch progress is unaffected.
func (m *Manager) fault(d *fetcher.Downloader, key string, err error) {
	m.logger.Error().Err(err).Str("key", key).Msg("install step failed")
	if perr := d.Events().Publish(fetcher.EventError, fetcher.ErrorEvent{RemoteKey: key, Err: err}); perr != nil {
		m.logger.Warn().Err(perr).Msg("event handler panicked")
	}
}

// recordTag stores tag for key. An empty tag is looked up again.
func (m *Manager) recordTag(ctx context.Context, d *fetcher.Downloader, key, tag string) bool {
	if tag == "" {
		var err error
		if tag, err = m.lookup.GetETag(ctx, key); err != nil {
			m.fault(d, key, err)
			return false
		}
	}
	if err := m.manifest.RecordInstalled(key, tag); err != nil {
		m.fault(d, key, fmt.Errorf("recording %s: %w", key, err))
		return false
	}
	m.rememberTag(key, tag)
	return true
}

// InstallPatchGroup prepares the download of every missing artifact of g. A
// nil Install means the group is already complete.
func (m *Manager) InstallPatchGroup(ctx context.Context, g catalog.Group) (*Install, error) {
	if g == catalog.Reserved {
		return nil, fmt.Errorf("%s: %w", g, domain.ErrNotInstallable)
	}
	missing, err := m.Missing(ctx, g)
	if err != nil {
		return nil, err
	}
	if len(missing) == 0 {
		return nil, nil
	}

	transfers := make([]domain.Transfer, 0, len(missing))
	for _, a := range missing {
		transfers = append(transfers, domain.Transfer{
			RemoteKey: m.patchKey(a.Name),
			LocalPath: filepath.Join(DataDir, a.Name),
		})
	}

	return m.newInstall(transfers, func(inst *Install) {
		d := inst.downloader
		events.On(d.Events(), fetcher.EventEnd, func(e fetcher.EndEvent) {
			m.recordTag(inst.ctx, d, e.RemoteKey, e.ETag)
		})
	}), nil
}

func isAddOn(key string) bool {
	return strings.Contains(key, "addOns")
}

// customTransfer maps a version index entry onto its remote key and local
// destination. Bare names live under the custom prefix.
func (m *Manager) customTransfer(name string) domain.Transfer {
	key := name
	if !strings.Contains(key, "/") {
		key = path.Join(m.paths.Custom, name)
	}
	base := path.Base(key)
	if isAddOn(key) {
		return domain.Transfer{RemoteKey: key, LocalPath: filepath.Join(AddOnsDir, base)}
	}
	return domain.Transfer{RemoteKey: key, LocalPath: filepath.Join(DataDir, base)}
}

// InstallCustomContent prepares the download of the custom files listed by
// the version index that are not installed at their current tag. The local
// version is bumped once a batch finishes without failures. A nil Install
// means there is nothing to do.
func (m *Manager) InstallCustomContent(ctx context.Context) (*Install, error) {
	files, err := m.CustomFilesToInstall(ctx)
	if err != nil {
		return nil, err
	}
	latest, err := m.versions.Latest(ctx)
	if err != nil {
		return nil, err
	}
	manifest, err := m.manifest.Get()
	if err != nil {
		return nil, err
	}

	var transfers []domain.Transfer
	for _, f := range files {
		t := m.customTransfer(f.Name)
		if exists(filepath.Join(m.root, t.LocalPath)) {
			tag, err := m.remoteTag(ctx, t.RemoteKey)
			if err != nil {
				return nil, err
			}
			if upToDate(manifest, t.RemoteKey, tag) {
				continue
			}
		}
		transfers = append(transfers, t)
	}

	if len(transfers) == 0 {
		if manifest.Version != latest.Version {
			if err := m.manifest.RecordVersion(latest.Version); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	return m.newInstall(transfers, func(inst *Install) {
		d := inst.downloader
		bus := d.Events()
		events.On(bus, fetcher.EventEnd, func(e fetcher.EndEvent) {
			if isAddOn(e.RemoteKey) && extractor.IsArchive(e.LocalPath) && !m.unpack(d, e.RemoteKey, e.LocalPath) {
				return
			}
			m.recordTag(inst.ctx, d, e.RemoteKey, e.ETag)
		})
		events.On(bus, fetcher.EventBatchEnd, func(e fetcher.BatchEndEvent) {
			if e.Failed > 0 || inst.faulted.Load() {
				return
			}
			if err := m.manifest.RecordVersion(latest.Version); err != nil {
				m.fault(d, "", fmt.Errorf("recording version %s: %w", latest.Version, err))
			}
		})
	}), nil
}

// unpack extracts a downloaded add-on archive next to where it was saved.
func (m *Manager) unpack(d *fetcher.Downloader, key, localPath string) bool {
	src := filepath.Join(m.root, localPath)
	if err := m.extractor.Extract(src, filepath.Dir(src)); err != nil {
		m.fault(d, key, fmt.Errorf("unpacking %s: %w", localPath, err))
		return false
	}
	m.logger.Debug().Str("archive", localPath).Msg("add-on unpacked")
	return true
}

// InstallStoreAddOn prepares the store add-on and its companion patch as one
// batch. Each leg is recorded when its own download ends, so a failed
// companion does not hold back the archive. A nil Install means both are
// already installed.
func (m *Manager) InstallStoreAddOn(ctx context.Context) (*Install, error) {
	installed, err := m.IsStoreAddOnInstalled(ctx)
	if err != nil {
		return nil, err
	}
	if installed {
		return nil, nil
	}

	archive := domain.Transfer{
		RemoteKey: m.addOnKey(m.storeAddOn.Archive),
		LocalPath: filepath.Join(AddOnsDir, m.storeAddOn.Archive),
	}
	companion := domain.Transfer{
		RemoteKey: m.patchKey(m.storeAddOn.Companion),
		LocalPath: filepath.Join(DataDir, m.storeAddOn.Companion),
	}

	return m.newInstall([]domain.Transfer{archive, companion}, func(inst *Install) {
		d := inst.downloader
		events.On(d.Events(), fetcher.EventEnd, func(e fetcher.EndEvent) {
			switch e.RemoteKey {
			case companion.RemoteKey:
				m.recordTag(inst.ctx, d, e.RemoteKey, e.ETag)
			case archive.RemoteKey:
				// end fires after the file is closed.
				if m.unpack(d, e.RemoteKey, e.LocalPath) {
					m.recordTag(inst.ctx, d, e.RemoteKey, e.ETag)
				}
			}
		})
	}), nil
}
