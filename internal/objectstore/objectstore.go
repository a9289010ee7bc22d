// Package objectstore provides the remote bucket implementations used by the
// fetcher and the manager.
package objectstore

import (
	"errors"

	"github.com/teamcutter/patchr/internal/domain"
)

var ErrNotFound = errors.New("object not found")

var (
	_ domain.ObjectStore = (*S3)(nil)
	_ domain.ObjectStore = (*Memory)(nil)
)
