package manager

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/teamcutter/patchr/internal/catalog"
	"github.com/teamcutter/patchr/internal/domain"
)

func (m *Manager) executablePath() string {
	return filepath.Join(m.root, m.executable.Name)
}

func fileMD5(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// IsExecutablePatched compares the client executable with the checksum of
// the patched build.
func (m *Manager) IsExecutablePatched() (bool, error) {
	if m.executable.PatchedMD5 == "" {
		return false, errors.New("no patched checksum configured")
	}
	sum, err := fileMD5(m.executablePath())
	if errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("%s: %w", m.executable.Name, domain.ErrNotInstalled)
	}
	if err != nil {
		return false, err
	}
	return strings.EqualFold(sum, m.executable.PatchedMD5), nil
}

// PatchExecutable keeps a .bak copy of the current executable and replaces
// it with the patched build.
func (m *Manager) PatchExecutable() error {
	exe := m.executablePath()
	if _, err := os.Stat(exe); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", m.executable.Name, domain.ErrNotInstalled)
		}
		return err
	}
	if m.executable.Replacement == "" {
		return errors.New("no patched executable configured")
	}

	if err := copyFile(exe, exe+".bak"); err != nil {
		return fmt.Errorf("backing up %s: %w", m.executable.Name, err)
	}
	if err := copyFile(m.executable.Replacement, exe); err != nil {
		return fmt.Errorf("replacing %s: %w", m.executable.Name, err)
	}
	m.logger.Info().Str("executable", exe).Msg("executable patched")
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// EnsureReservedPlaceholders creates an empty directory in Data/ for each
// reserved artifact that is missing, and returns the names it created.
func (m *Manager) EnsureReservedPlaceholders() ([]string, error) {
	local, err := m.localEntries()
	if err != nil {
		return nil, err
	}

	dataDir := filepath.Join(m.root, DataDir)
	var created []string
	for _, a := range m.catalog.Group(catalog.Reserved) {
		if local[a.Name] {
			continue
		}
		if err := os.MkdirAll(filepath.Join(dataDir, a.Name), 0755); err != nil {
			return created, fmt.Errorf("creating placeholder %s: %w", a.Name, err)
		}
		created = append(created, a.Name)
	}
	return created, nil
}
