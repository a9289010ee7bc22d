package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/teamcutter/patchr/internal/domain"
	"github.com/teamcutter/patchr/internal/events"
	"github.com/teamcutter/patchr/internal/metrics"
)

const chunkSize = 32 * 1024

// Downloader streams objects from the remote store into the install root
// and reports progress on its own event bus.
type Downloader struct {
	store       domain.ObjectStore
	root        string
	bus         *events.Bus
	logger      zerolog.Logger
	metrics     *metrics.Transfers
	maxParallel int
	timeout     time.Duration
}

type Option func(*Downloader)

func WithLogger(l zerolog.Logger) Option {
	return func(d *Downloader) { d.logger = l }
}

func WithMetrics(m *metrics.Transfers) Option {
	return func(d *Downloader) { d.metrics = m }
}

// WithMaxParallel caps concurrent transfers in a batch; 0 means no cap.
func WithMaxParallel(n int) Option {
	return func(d *Downloader) { d.maxParallel = n }
}

// WithRequestTimeout bounds each object transfer; 0 means no timeout.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(d *Downloader) { d.timeout = timeout }
}

func New(store domain.ObjectStore, root string, opts ...Option) *Downloader {
	d := &Downloader{
		store:  store,
		root:   root,
		bus:    events.New(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Downloader) Events() *events.Bus {
	return d.bus
}

// Path maps a local path onto the install root unless it is absolute.
func (d *Downloader) Path(localPath string) string {
	if filepath.IsAbs(localPath) {
		return localPath
	}
	return filepath.Join(d.root, localPath)
}

// DownloadFile writes remoteKey to localPath (relative to the root). Failures
// are published as an error event and reported as false.
func (d *Downloader) DownloadFile(ctx context.Context, remoteKey, localPath string) bool {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	obj, err := d.store.GetObject(ctx, remoteKey)
	if err != nil {
		return d.fail(remoteKey, localPath, false, err)
	}
	defer obj.Body.Close()

	d.publish(EventStart, StartEvent{
		TotalBytes: max(obj.ContentLength, 0),
		RemoteKey:  remoteKey,
		LocalPath:  localPath,
	})

	dst := d.Path(localPath)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return d.fail(remoteKey, localPath, true, err)
	}

	file, err := os.Create(dst)
	if err != nil {
		return d.fail(remoteKey, localPath, true, err)
	}

	total, err := d.copy(ctx, file, obj, remoteKey, localPath)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return d.fail(remoteKey, localPath, true, err)
	}

	d.logger.Debug().Str("key", remoteKey).Str("path", localPath).Int64("bytes", total).Msg("download finished")
	d.metrics.ObjectDone(total)
	d.publish(EventEnd, EndEvent{
		TotalBytes: total,
		RemoteKey:  remoteKey,
		LocalPath:  localPath,
		ETag:       domain.NormalizeTag(obj.ETag),
	})
	return true
}

func (d *Downloader) copy(ctx context.Context, w io.Writer, obj *domain.Object, remoteKey, localPath string) (int64, error) {
	buf := make([]byte, chunkSize)
	var total int64

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, rerr := obj.Body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return total, err
			}
			total += int64(n)

			// The chunk that completes the object is announced by end, not data.
			var pct float64
			if obj.ContentLength > 0 {
				pct = float64(total) / float64(obj.ContentLength) * 100
			}
			if pct < 100 {
				d.publish(EventData, DataEvent{
					Bytes:      int64(n),
					TotalBytes: total,
					Percentage: pct,
					RemoteKey:  remoteKey,
					LocalPath:  localPath,
				})
			}
		}

		if errors.Is(rerr, io.EOF) {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}

func (d *Downloader) fail(remoteKey, localPath string, started bool, err error) bool {
	terr := &TransferError{RemoteKey: remoteKey, LocalPath: localPath, Err: err}
	d.logger.Debug().Err(err).Str("key", remoteKey).Str("path", localPath).Msg("download failed")
	d.metrics.ObjectFailed()
	d.publish(EventError, ErrorEvent{
		RemoteKey: remoteKey,
		LocalPath: localPath,
		Started:   started,
		Err:       terr,
	})
	return false
}

func (d *Downloader) publish(name string, payload any) {
	if err := d.bus.Publish(name, payload); err != nil {
		d.logger.Warn().Err(err).Str("event", name).Msg("event handler panicked")
	}
}

// GetETag returns the normalized content tag of key, or "" if the store
// reports none.
func (d *Downloader) GetETag(ctx context.Context, key string) (string, error) {
	info, err := d.store.HeadObject(ctx, key)
	if err != nil {
		return "", fmt.Errorf("head %s: %w", key, err)
	}
	return domain.NormalizeTag(info.ETag), nil
}

// LatestNews returns the body of the most recently modified object under
// prefix, or "" when there is none.
func (d *Downloader) LatestNews(ctx context.Context, prefix string) (string, error) {
	objects, err := d.store.ListObjects(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("list %s: %w", prefix, err)
	}

	var latest string
	var latestModified time.Time
	for _, o := range objects {
		if latest == "" || o.LastModified.After(latestModified) {
			latest = o.Key
			latestModified = o.LastModified
		}
	}
	if latest == "" {
		return "", nil
	}

	obj, err := d.store.GetObject(ctx, latest)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", latest, err)
	}
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", latest, err)
	}
	return string(data), nil
}
