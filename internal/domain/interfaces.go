package domain

import (
	"context"
)

// ObjectStore is the remote S3-compatible bucket the patcher reads from.
type ObjectStore interface {
	GetObject(ctx context.Context, key string) (*Object, error)
	HeadObject(ctx context.Context, key string) (ObjectInfo, error)
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

type Cache interface {
	Dir() string
	Path(name string) string
	Write(name string, data []byte) error
	Read(name string) ([]byte, error)
	Size() (int64, error)
	Clear() error
}

type Extractor interface {
	Extract(src, dest string) error
}

type ManifestStore interface {
	Get() (*Manifest, error)
	IsUpToDate(key, tag string) (bool, error)
	RecordInstalled(key, tag string) error
	RecordVersion(version string) error
}

type Journal interface {
	Begin(batchID string, t Transfer) error
	Finish(rec TransferRecord) error
	History(limit int) ([]TransferRecord, error)
	Close() error
}
