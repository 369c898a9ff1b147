package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct {
	err error
}

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestLocalFilePersister(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     string
		existing string
		data     string
	}{
		{name: "report", path: "report.json", data: `{"results": []}`},
		{name: "screenshot_in_run_dir", path: "artifacts/0b5c6f1e/element_color.png", data: "\x89PNG"},
		{name: "replaces_longer_report", path: "report.json", existing: `{"results": [1, 2, 3, 4]}`, data: `{}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := filepath.Join(t.TempDir(), tt.path)
			if tt.existing != "" {
				require.NoError(t, os.WriteFile(p, []byte(tt.existing), 0o600))
			}

			l := &LocalFilePersister{}
			require.NoError(t, l.Persist(context.Background(), p, strings.NewReader(tt.data)))

			bb, err := os.ReadFile(p)
			require.NoError(t, err)
			assert.Equal(t, tt.data, string(bb))

			entries, err := os.ReadDir(filepath.Dir(p))
			require.NoError(t, err)
			assert.Len(t, entries, 1, "staging files left behind")
		})
	}
}

func TestLocalFilePersisterFailedWriteKeepsExisting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := filepath.Join(dir, "report.json")
	require.NoError(t, os.WriteFile(p, []byte("previous run"), 0o600))

	boom := errors.New("encoder died")
	l := &LocalFilePersister{}
	err := l.Persist(context.Background(), p, io.MultiReader(strings.NewReader("half"), failingReader{boom}))
	require.ErrorIs(t, err, boom)

	bb, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "previous run", string(bb))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLocalFilePersisterCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := filepath.Join(t.TempDir(), "run-1", "report.json")
	err := (&LocalFilePersister{}).Persist(ctx, p, strings.NewReader("{}"))
	require.ErrorIs(t, err, context.Canceled)
	assert.NoDirExists(t, filepath.Dir(p))
}
