package fetcher

import "fmt"

const (
	EventStart      = "start"
	EventData       = "data"
	EventEnd        = "end"
	EventError      = "error"
	EventBatchStart = "batchStart"
	EventBatchData  = "batchData"
	EventBatchEnd   = "batchEnd"
)

type StartEvent struct {
	TotalBytes int64 // declared length, 0 when unknown
	RemoteKey  string
	LocalPath  string
}

type DataEvent struct {
	Bytes      int64 // size of this chunk
	TotalBytes int64 // bytes written so far for this object
	Percentage float64
	RemoteKey  string
	LocalPath  string
}

// EndEvent is published after the destination file has been closed.
type EndEvent struct {
	TotalBytes int64
	RemoteKey  string
	LocalPath  string
	ETag       string
}

// ErrorEvent carries a *TransferError for object failures. Batch level
// failures leave RemoteKey and LocalPath empty.
type ErrorEvent struct {
	RemoteKey string
	LocalPath string
	Started   bool
	Err       error
}

type BatchStartEvent struct {
	Files      []string
	TotalBytes int64
}

type BatchDataEvent struct {
	Files            []string
	Bytes            int64
	TotalBytes       int64 // bytes received across the batch so far
	Percentage       float64
	DownloadsStarted int
	DownloadsEnded   int
}

type BatchEndEvent struct {
	Files          []string
	TotalBytes     int64
	CompletedBytes int64
	Percentage     float64
	Failed         int
}

type TransferError struct {
	RemoteKey string
	LocalPath string
	Err       error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("download %s to %s: %v", e.RemoteKey, e.LocalPath, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}
