package fetcher

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/teamcutter/patchr/internal/domain"
	"github.com/teamcutter/patchr/internal/events"
)

// batch aggregates the per-object events of one DownloadFiles call. Objects
// that fail count as ended, and as started if they failed before start, so
// batchStart and batchEnd each fire exactly once.
type batch struct {
	mu sync.Mutex

	files    []string
	members  map[string]bool
	progress map[string]int64

	numberOfFiles    int
	totalBytes       int64
	completedBytes   int64
	currentProgress  int64
	downloadsStarted int
	downloadsEnded   int
	failed           int
}

func newBatch(files []domain.Transfer) *batch {
	b := &batch{
		members:       make(map[string]bool, len(files)),
		progress:      make(map[string]int64, len(files)),
		numberOfFiles: len(files),
	}
	for _, f := range files {
		b.files = append(b.files, f.LocalPath)
		b.members[f.LocalPath] = true
	}
	return b
}

// owns may be called without holding mu; members is fixed at construction.
func (b *batch) owns(localPath string) bool {
	return b.members[localPath]
}

func (b *batch) percentage() float64 {
	if b.totalBytes == 0 {
		return 0
	}
	return float64(b.currentProgress) / float64(b.totalBytes) * 100
}

// DownloadFiles transfers every file concurrently and blocks until each has
// either ended or failed. A failing file never cancels its siblings. The
// result is false if any file failed.
func (d *Downloader) DownloadFiles(ctx context.Context, files []domain.Transfer) bool {
	b := newBatch(files)
	d.metrics.BatchStarted()

	subs := []events.Subscription{
		events.On(d.bus, EventStart, func(e StartEvent) { d.onStart(b, e) }),
		events.On(d.bus, EventData, func(e DataEvent) { d.onData(b, e) }),
		events.On(d.bus, EventEnd, func(e EndEvent) { d.onEnd(b, e) }),
		events.On(d.bus, EventError, func(e ErrorEvent) { d.onError(b, e) }),
	}
	defer func() {
		for _, s := range subs {
			d.bus.Unsubscribe(s)
		}
	}()

	if len(files) == 0 {
		d.publish(EventBatchStart, BatchStartEvent{})
		d.publish(EventBatchEnd, BatchEndEvent{Percentage: 100})
		return true
	}

	var g errgroup.Group
	if d.maxParallel > 0 {
		g.SetLimit(d.maxParallel)
	}

	results := make([]bool, len(files))
	for i, f := range files {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("download %s: panic: %v", f.RemoteKey, r)
				}
			}()
			results[i] = d.DownloadFile(ctx, f.RemoteKey, f.LocalPath)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		d.logger.Error().Err(err).Msg("batch aborted")
		d.publish(EventError, ErrorEvent{Err: err})
		return false
	}

	for _, ok := range results {
		if !ok {
			return false
		}
	}
	return true
}

func (d *Downloader) onStart(b *batch, e StartEvent) {
	if !b.owns(e.LocalPath) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalBytes += e.TotalBytes
	b.downloadsStarted++
	d.maybeBatchStart(b)
}

func (d *Downloader) onData(b *batch, e DataEvent) {
	if !b.owns(e.LocalPath) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.progress[e.LocalPath] += e.Bytes
	b.currentProgress += e.Bytes

	d.publish(EventBatchData, BatchDataEvent{
		Files:            b.files,
		Bytes:            e.Bytes,
		TotalBytes:       b.currentProgress,
		Percentage:       b.percentage(),
		DownloadsStarted: b.downloadsStarted,
		DownloadsEnded:   b.downloadsEnded,
	})
}

func (d *Downloader) onEnd(b *batch, e EndEvent) {
	if !b.owns(e.LocalPath) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	// The final chunk never produced a data event; fold it in here.
	b.currentProgress += e.TotalBytes - b.progress[e.LocalPath]
	b.progress[e.LocalPath] = e.TotalBytes
	b.completedBytes += e.TotalBytes
	b.downloadsEnded++
	d.maybeBatchEnd(b)
}

func (d *Downloader) onError(b *batch, e ErrorEvent) {
	if !b.owns(e.LocalPath) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failed++
	if !e.Started {
		b.downloadsStarted++
		d.maybeBatchStart(b)
	}
	b.downloadsEnded++
	d.maybeBatchEnd(b)
}

func (d *Downloader) maybeBatchStart(b *batch) {
	if b.downloadsStarted != b.numberOfFiles {
		return
	}
	d.publish(EventBatchStart, BatchStartEvent{
		Files:      b.files,
		TotalBytes: b.totalBytes,
	})
}

func (d *Downloader) maybeBatchEnd(b *batch) {
	if b.downloadsEnded != b.numberOfFiles {
		return
	}
	pct := b.percentage()
	if b.totalBytes == 0 && b.failed == 0 {
		pct = 100
	}
	d.publish(EventBatchEnd, BatchEndEvent{
		Files:          b.files,
		TotalBytes:     b.totalBytes,
		CompletedBytes: b.completedBytes,
		Percentage:     pct,
		Failed:         b.failed,
	})
}
