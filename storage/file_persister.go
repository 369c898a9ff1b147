// Package storage persists the artifacts of a battery run.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FilePersister stores the content of data at path.
type FilePersister interface {
	Persist(ctx context.Context, path string, data io.Reader) error
}

var _ FilePersister = &LocalFilePersister{}

// LocalFilePersister writes artifacts to the local disk.
type LocalFilePersister struct{}

// Persist creates the parent directories of path and replaces whatever is at
// path with the content of data. The content is staged in a temporary file
// next to path, so a failed write leaves an existing file untouched.
func (l *LocalFilePersister) Persist(ctx context.Context, path string, data io.Reader) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	dst := filepath.Clean(path)
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*")
	if err != nil {
		return fmt.Errorf("staging %q: %w", dst, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, data); err != nil {
		return fmt.Errorf("writing %q: %w", dst, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing %q: %w", dst, err)
	}
	if err = os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("moving %q into place: %w", dst, err)
	}

	return nil
}
