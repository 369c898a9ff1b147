package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/oxtoacart/bpool"
)

// Artifacts writes the files a battery run leaves behind (failure
// screenshots, reports) under dir/runID. Rendered files are built in pooled
// buffers.
type Artifacts struct {
	dir       string
	runID     string
	persister FilePersister
	pool      *bpool.BufferPool
}

// NewArtifacts returns an artifact store rooted at dir. A nil persister
// means LocalFilePersister.
func NewArtifacts(dir, runID string, persister FilePersister) *Artifacts {
	if persister == nil {
		persister = &LocalFilePersister{}
	}
	return &Artifacts{
		dir:       dir,
		runID:     runID,
		persister: persister,
		pool:      bpool.NewBufferPool(4),
	}
}

// Dir returns the directory this run's artifacts are written to.
func (a *Artifacts) Dir() string {
	return filepath.Join(a.dir, a.runID)
}

// Save persists data as name.ext and returns the path it was written to.
func (a *Artifacts) Save(ctx context.Context, name, ext string, data []byte) (string, error) {
	p := a.path(name, ext)
	if err := a.persister.Persist(ctx, p, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("saving artifact %q: %w", name, err)
	}

	return p, nil
}

// Render persists what render writes as name.ext and returns the path it was
// written to.
func (a *Artifacts) Render(ctx context.Context, name, ext string, render func(io.Writer) error) (string, error) {
	p := a.path(name, ext)
	if err := a.RenderTo(ctx, p, render); err != nil {
		return "", err
	}

	return p, nil
}

// RenderTo persists what render writes at path, which may lie outside Dir.
// Nothing is written when render fails.
func (a *Artifacts) RenderTo(ctx context.Context, path string, render func(io.Writer) error) error {
	buf := a.pool.Get()
	defer a.pool.Put(buf)

	if err := render(buf); err != nil {
		return fmt.Errorf("rendering %q: %w", path, err)
	}
	if err := a.persister.Persist(ctx, path, buf); err != nil {
		return fmt.Errorf("saving %q: %w", path, err)
	}

	return nil
}

func (a *Artifacts) path(name, ext string) string {
	return filepath.Join(a.Dir(), sanitize(name)+"."+strings.TrimPrefix(ext, "."))
}

// sanitize keeps artifact names to a portable file name alphabet.
func sanitize(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
	name = strings.Trim(name, ".")
	if name == "" {
		return "artifact"
	}
	return name
}
