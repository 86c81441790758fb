// Package curation loads the curated chemical mapping table from CSV.
//
// The CSV must have a header row naming at least the chemical_name and
// resolved_chemical_name columns; an optional is_formula column overrides
// the formula-shape test per row.  Column order is free and header names
// are matched case-insensitively.
package curation

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	cc "github.com/turtacn/GasTM-Consolidator/internal/intelligence/chem_consolidator"
	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

// Header names.
const (
	ColumnRawLabel      = "chemical_name"
	ColumnResolvedLabel = "resolved_chemical_name"
	ColumnIsFormula     = "is_formula"
)

// Parse reads curation entries.  Rows with an empty resolved label are kept
// here and dropped by cc.NewCurationTable.
func Parse(r io.Reader) ([]cc.CurationEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New(errors.ErrCodeCurationLoadFailed, "curation csv is empty")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCurationLoadFailed, "failed to read curation csv header")
	}

	rawIdx, resolvedIdx, formulaIdx := -1, -1, -1
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		switch h {
		case ColumnRawLabel:
			rawIdx = i
		case ColumnResolvedLabel:
			resolvedIdx = i
		case ColumnIsFormula:
			formulaIdx = i
		}
	}
	if rawIdx < 0 || resolvedIdx < 0 {
		return nil, errors.Newf(errors.ErrCodeCurationLoadFailed,
			"curation csv header must contain %s and %s", ColumnRawLabel, ColumnResolvedLabel)
	}

	var entries []cc.CurationEntry
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeCurationLoadFailed, "malformed curation csv")
		}
		line, _ := cr.FieldPos(0)
		e := cc.CurationEntry{
			RawLabel:      field(row, rawIdx),
			ResolvedLabel: field(row, resolvedIdx),
		}
		if v := field(row, formulaIdx); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, errors.Newf(errors.ErrCodeCurationLoadFailed,
					"line %d: is_formula %q is not a boolean", line, v)
			}
			e.IsFormula = &b
		}
		if e.RawLabel == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// LoadFile parses the CSV at path into a table.  A missing file yields a
// MissingCurationTable error so callers can choose to degrade.
func LoadFile(path string) (*cc.CurationTable, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeMissingCurationTable, "curation file not found").WithDetail(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeCurationLoadFailed, "failed to open curation file")
	}
	defer f.Close()

	entries, err := Parse(f)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, fmt.Sprintf("curation file %s", path))
	}
	return cc.NewCurationTable(entries), nil
}

// FileLoader loads the table from a local path on every call.
type FileLoader struct {
	Path string
}

func (l FileLoader) Load(_ context.Context) (*cc.CurationTable, error) {
	return LoadFile(l.Path)
}
