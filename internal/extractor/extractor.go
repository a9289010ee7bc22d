// Package extractor unpacks add-on archives into the install root.
package extractor

import (
	"fmt"
	"path/filepath"
	"strings"
)

type Extractor struct {
	tar *TARExtractor
	zip *ZIPExtractor
}

func New() *Extractor {
	return &Extractor{
		tar: NewTAR(),
		zip: NewZIP(),
	}
}

func (e *Extractor) Extract(src, dst string) error {
	lower := strings.ToLower(src)

	switch {
	case strings.HasSuffix(lower, ".zip"):
		return e.zip.Extract(src, dst)
	case IsTarArchive(lower):
		return e.tar.Extract(src, dst)
	default:
		return fmt.Errorf("unsupported archive format: %s", src)
	}
}

// IsArchive reports whether name has an extension Extract understands.
func IsArchive(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".zip") || IsTarArchive(lower)
}

func IsTarArchive(name string) bool {
	tarExts := []string{".tar.gz", ".tar.zst", ".tar.xz", ".tar.bz2", ".tgz", ".txz", ".tzst", ".tbz2", ".tar"}
	for _, ext := range tarExts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// target resolves an archive entry under dst, rejecting entries that would
// escape it.
func target(dst, name string) (string, error) {
	clean := filepath.FromSlash(strings.TrimPrefix(name, "/"))
	if clean == "" || !filepath.IsLocal(clean) {
		return "", fmt.Errorf("invalid path in archive: %s", name)
	}
	return filepath.Join(dst, clean), nil
}
