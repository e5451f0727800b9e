package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// DirWriter is a BlobWriter that stores objects as files under a root
// directory. It backs archiving when no bucket is configured.
type DirWriter struct {
	root string
}

func NewDirWriter(root string) *DirWriter {
	return &DirWriter{root: root}
}

func (d *DirWriter) Put(ctx context.Context, p string, data io.Reader, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := d.resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("report: mkdir for %s: %w", p, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".tmp-*")
	if err != nil {
		return fmt.Errorf("report: create %s: %w", p, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		return fmt.Errorf("report: write %s: %w", p, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("report: close %s: %w", p, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return fmt.Errorf("report: rename %s: %w", p, err)
	}
	return nil
}

// PutMultipart writes the stream in one piece; part size has no meaning for
// local files.
func (d *DirWriter) PutMultipart(ctx context.Context, p string, data io.Reader, _ int64) error {
	return d.Put(ctx, p, data, "")
}

// resolve maps an object path to a file under root, rejecting escapes.
func (d *DirWriter) resolve(p string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash("/" + p))
	full := filepath.Join(d.root, clean)
	rel, err := filepath.Rel(d.root, full)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("report: invalid object path %q", p)
	}
	return full, nil
}

var _ domain.BlobWriter = (*DirWriter)(nil)
