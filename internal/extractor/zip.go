package extractor

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
)

type ZIPExtractor struct{}

func NewZIP() *ZIPExtractor {
	return &ZIPExtractor{}
}

func (ze *ZIPExtractor) Extract(src, dst string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		path, err := target(dst, f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}

		if err := writeEntry(f, path); err != nil {
			return fmt.Errorf("zip %s: %w", f.Name, err)
		}
	}

	return nil
}

// writeEntry overwrites existing files, matching how add-on updates replace
// their previous version in place.
func writeEntry(f *zip.File, path string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	return writeFile(path, rc, f.Mode().Perm())
}
