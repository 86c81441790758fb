package localfs

import (
	"context"
	"os"
	"path/filepath"

	"github.com/turtacn/GasTM-Consolidator/internal/application/consolidation"
	cc "github.com/turtacn/GasTM-Consolidator/internal/intelligence/chem_consolidator"
	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

// Sink writes result files next to the raw counts, one directory per
// document.  Files are written to a temporary name and renamed into place.
type Sink struct {
	root           string
	withRejections bool
}

// NewSink returns a sink rooted at root.  withRejections adds the rejected
// terms file.
func NewSink(root string, withRejections bool) *Sink {
	return &Sink{root: root, withRejections: withRejections}
}

func (s *Sink) Name() string { return "fs" }

func (s *Sink) WriteDocument(ctx context.Context, _ consolidation.RunInfo, res *cc.DocumentResult) error {
	files, err := RenderOutputs(res, s.withRejections)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to render result files")
	}
	dir := filepath.Join(s.root, res.DocumentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to create document directory")
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeFileAtomic(filepath.Join(s.root, filepath.FromSlash(f.Path)), f.Data); err != nil {
			return errors.Wrap(err, errors.ErrCodeStorageError, "failed to write result file").WithDetail(f.Path)
		}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Chmod(name, 0o644); err != nil {
		os.Remove(name)
		return err
	}
	return os.Rename(name, path)
}
