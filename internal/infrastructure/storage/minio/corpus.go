package minio

import (
	"bytes"
	"context"
	"strings"

	"github.com/turtacn/GasTM-Consolidator/internal/application/consolidation"
	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/storage/curation"
	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/storage/localfs"
	cc "github.com/turtacn/GasTM-Consolidator/internal/intelligence/chem_consolidator"
	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

// CorpusSource reads raw count files laid out as
// <prefix>/<doc>/<doc>_raw_chem_counts.txt in an object store.
type CorpusSource struct {
	store  ObjectStore
	prefix string
}

// NewCorpusSource returns a source over prefix.
func NewCorpusSource(store ObjectStore, prefix string) *CorpusSource {
	return &CorpusSource{store: store, prefix: strings.Trim(prefix, "/")}
}

func (s *CorpusSource) Name() string { return "minio" }

// ListDocuments returns the ids of documents that have a raw count object.
func (s *CorpusSource) ListDocuments(ctx context.Context) ([]string, error) {
	listPrefix := s.prefix
	if listPrefix != "" {
		listPrefix += "/"
	}
	keys, err := s.store.List(ctx, listPrefix)
	if err != nil {
		return nil, err
	}
	var docs []string
	for _, k := range keys {
		rel := strings.TrimPrefix(k, listPrefix)
		dir, file, ok := strings.Cut(rel, "/")
		if !ok || strings.Contains(file, "/") {
			continue
		}
		if file == dir+localfs.RawCountsSuffix {
			docs = append(docs, dir)
		}
	}
	return docs, nil
}

func (s *CorpusSource) ReadRecords(ctx context.Context, docID string) ([]cc.RawRecord, error) {
	key := joinKey(s.prefix, localfs.DocumentFile(docID, localfs.RawCountsSuffix))
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.New(errors.ErrCodeDocumentNotFound, "raw count object not found").WithDetail(key)
		}
		return nil, err
	}
	recs, err := localfs.ParseRecords(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to parse raw count object").WithDetail(key)
	}
	return recs, nil
}

// ResultSink uploads the same result files the local sink writes.
type ResultSink struct {
	store          ObjectStore
	prefix         string
	withRejections bool
}

// NewResultSink returns a sink writing under prefix.
func NewResultSink(store ObjectStore, prefix string, withRejections bool) *ResultSink {
	return &ResultSink{store: store, prefix: strings.Trim(prefix, "/"), withRejections: withRejections}
}

func (s *ResultSink) Name() string { return "minio" }

func (s *ResultSink) WriteDocument(ctx context.Context, _ consolidation.RunInfo, res *cc.DocumentResult) error {
	files, err := localfs.RenderOutputs(res, s.withRejections)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to render result files")
	}
	for _, f := range files {
		if err := s.store.Put(ctx, joinKey(s.prefix, f.Path), f.Data, "text/plain; charset=utf-8"); err != nil {
			return err
		}
	}
	return nil
}

// CurationLoader loads the curation CSV from an object.
type CurationLoader struct {
	store ObjectStore
	key   string
}

// NewCurationLoader returns a loader for key.
func NewCurationLoader(store ObjectStore, key string) *CurationLoader {
	return &CurationLoader{store: store, key: key}
}

func (l *CurationLoader) Load(ctx context.Context) (*cc.CurationTable, error) {
	data, err := l.store.Get(ctx, l.key)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.New(errors.ErrCodeMissingCurationTable, "curation object not found").WithDetail(l.key)
		}
		return nil, errors.Wrap(err, errors.ErrCodeCurationLoadFailed, "failed to download curation table")
	}
	entries, err := curation.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return cc.NewCurationTable(entries), nil
}
