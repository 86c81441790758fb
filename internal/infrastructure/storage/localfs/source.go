package localfs

import (
	"context"
	"os"
	"path/filepath"

	cc "github.com/turtacn/GasTM-Consolidator/internal/intelligence/chem_consolidator"
	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

// Source reads raw count files from a local intermediate root.
type Source struct {
	root string
}

// NewSource returns a source over root.
func NewSource(root string) *Source {
	return &Source{root: root}
}

func (s *Source) Name() string { return "localfs" }

// ListDocuments returns every sub-directory of the root, in lexical order.
// Directories without a raw count file are listed too and fail on read.
func (s *Source) ListDocuments(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeNotFound, "input root does not exist").WithDetail(s.root)
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to read input root")
	}
	var docs []string
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() && e.Name()[0] != '.' {
			docs = append(docs, e.Name())
		}
	}
	return docs, nil
}

// ReadRecords parses <root>/<doc>/<doc>_raw_chem_counts.txt.
func (s *Source) ReadRecords(_ context.Context, docID string) ([]cc.RawRecord, error) {
	p := filepath.Join(s.root, filepath.FromSlash(DocumentFile(docID, RawCountsSuffix)))
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeDocumentNotFound, "raw count file not found").WithDetail(p)
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to open raw count file")
	}
	defer f.Close()

	recs, err := ParseRecords(f)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to read raw count file").WithDetail(p)
	}
	return recs, nil
}
