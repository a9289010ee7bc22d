package domain

import (
	"errors"
	"io"
	"time"
)

var (
	ErrNoRemoteVersion = errors.New("no remote version information")
	ErrUnknownGroup    = errors.New("unknown patch group")
	ErrNotInstallable  = errors.New("group cannot be downloaded")
	ErrNotInstalled    = errors.New("game client not found")
)

// Artifact is one installable unit: a patch archive or an add-on package.
type Artifact struct {
	Name        string `json:"name" toml:"name" validate:"required"`
	Description string `json:"description" toml:"description"`
}

// RemoteVersion is one entry of the remote version index. The first entry
// of the index is the latest.
type RemoteVersion struct {
	Version     string     `json:"version"`
	LastUpdate  string     `json:"lastupdate"`
	PublishedBy string     `json:"by"`
	Files       []Artifact `json:"files"`
}

type VersionIndex struct {
	Versions []RemoteVersion `json:"versions"`
}

// Manifest records, per remote key, the content tag last confirmed installed.
type Manifest struct {
	Version    string            `json:"version"`
	LastUpdate time.Time         `json:"lastUpdate"`
	Files      map[string]string `json:"files"`
}

func NewManifest() *Manifest {
	return &Manifest{
		Version:    "v0",
		LastUpdate: time.Now().UTC(),
		Files:      make(map[string]string),
	}
}

// Transfer maps one remote object onto a path relative to the install root.
type Transfer struct {
	RemoteKey string
	LocalPath string
}

type Object struct {
	Body          io.ReadCloser
	ContentLength int64
	ETag          string
}

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// TransferRecord is one per-object outcome kept in the transfer journal.
type TransferRecord struct {
	BatchID    string
	RemoteKey  string
	LocalPath  string
	Bytes      int64
	ETag       string
	Status     string
	Error      string
	FinishedAt time.Time
}

const (
	StatusPending     = "pending"
	StatusDone        = "done"
	StatusFailed      = "failed"
	StatusInterrupted = "interrupted"
)
