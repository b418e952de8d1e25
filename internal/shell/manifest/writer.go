// Package manifest persists deployment manifests to a filesystem.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/artpar/safebite-deploy/internal/core/domain"
	coremanifest "github.com/artpar/safebite-deploy/internal/core/manifest"
	"github.com/spf13/afero"
)

// ErrManifestNotFound is returned by Read when no manifest has been written yet.
var ErrManifestNotFound = errors.New("deployment manifest not found")

// =============================================================================
// Writer
// =============================================================================

// Writer writes and reads manifests on a filesystem.
type Writer struct {
	fs afero.Fs
}

// NewWriter creates a writer. A nil fs means the OS filesystem.
func NewWriter(fs afero.Fs) *Writer {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Writer{fs: fs}
}

// Write stores the manifest at path, creating missing directories and
// replacing any previous manifest. The new content is written to a sibling
// temp file and renamed over the target, so readers see either the old or
// the new manifest.
func (w *Writer) Write(m *domain.DeploymentManifest, path string) error {
	data, err := coremanifest.Encode(m)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := w.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", domain.ErrIO, dir, err)
	}

	tmp, err := afero.TempFile(w.fs, dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file in %s: %v", domain.ErrIO, dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		w.fs.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %v", domain.ErrIO, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		w.fs.Remove(tmpName)
		return fmt.Errorf("%w: close %s: %v", domain.ErrIO, tmpName, err)
	}
	if err := w.fs.Chmod(tmpName, 0o644); err != nil {
		w.fs.Remove(tmpName)
		return fmt.Errorf("%w: chmod %s: %v", domain.ErrIO, tmpName, err)
	}
	if err := w.fs.Rename(tmpName, path); err != nil {
		w.fs.Remove(tmpName)
		return fmt.Errorf("%w: replace %s: %v", domain.ErrIO, path, err)
	}
	return nil
}

// Read loads the manifest at path.
func (w *Writer) Read(path string) (*domain.DeploymentManifest, error) {
	data, err := afero.ReadFile(w.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, path)
		}
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrIO, path, err)
	}
	return coremanifest.Decode(data)
}
