package cli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/teamcutter/patchr/internal/events"
	"github.com/teamcutter/patchr/internal/fetcher"
	"github.com/teamcutter/patchr/internal/manager"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	dim    = color.New(color.Faint).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
)

func withSpinner(ctx context.Context, desc string) (stop func()) {
	spinner := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				spinner.Finish()
				return
			default:
				spinner.Add(1)
				time.Sleep(100 * time.Millisecond)
			}
		}
	}()
	return func() {
		close(done)
		spinner.Finish()
	}
}

// runInstall renders the batch events of inst as a byte progress bar, runs
// it, and prints every failure once the batch settles.
func runInstall(ctx context.Context, inst *manager.Install, desc string) error {
	bar := progressbar.DefaultBytes(-1, desc)

	var (
		mu       sync.Mutex
		failures []string
		total    int64
	)
	bus := inst.Events()
	events.On(bus, fetcher.EventBatchStart, func(e fetcher.BatchStartEvent) {
		total = e.TotalBytes
		bar.ChangeMax64(e.TotalBytes)
	})
	events.On(bus, fetcher.EventBatchData, func(e fetcher.BatchDataEvent) {
		bar.Set64(e.TotalBytes)
	})
	events.On(bus, fetcher.EventBatchEnd, func(e fetcher.BatchEndEvent) {
		bar.Set64(e.CompletedBytes)
		bar.Finish()
	})
	events.On(bus, fetcher.EventError, func(e fetcher.ErrorEvent) {
		mu.Lock()
		defer mu.Unlock()
		failures = append(failures, e.Err.Error())
	})

	ok := inst.Run(ctx)
	fmt.Println()

	if ok {
		fmt.Printf("%s %d file(s), %s\n", green("✓"), len(inst.Transfers), humanize.Bytes(uint64(max(total, 0))))
		return nil
	}
	for _, f := range failures {
		fmt.Printf("%s %s\n", red("✗"), f)
	}
	return fmt.Errorf("%d problem(s) during install", max(len(failures), 1))
}
