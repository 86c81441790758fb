package localfs

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	cc "github.com/turtacn/GasTM-Consolidator/internal/intelligence/chem_consolidator"
)

const maxLineBytes = 1 << 20

// ParseRecords reads "token<whitespace>count" lines.  Blank lines are
// ignored.  A line that does not split into exactly two fields is still
// returned, with the whole line as token and an empty count, so the
// pipeline reports it as a malformed record.
func ParseRecords(r io.Reader) ([]cc.RawRecord, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var out []cc.RawRecord
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 {
			out = append(out, cc.RawRecord{Token: text, Line: line})
			continue
		}
		out = append(out, cc.RawRecord{Token: fields[0], Count: fields[1], Line: line})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// WriteFinalCounts writes "name => count" lines, highest count first.
func WriteFinalCounts(w io.Writer, counts *cc.DocumentCounts) error {
	bw := bufio.NewWriter(w)
	for _, sc := range counts.Sorted() {
		if _, err := fmt.Fprintf(bw, "%s => %d\n", sc.Name, sc.Count); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteMapping writes one trace line per accepted token in input order.
func WriteMapping(w io.Writer, trace cc.ResolutionTrace) error {
	bw := bufio.NewWriter(w)
	for _, e := range trace {
		if _, err := fmt.Fprintln(bw, e.String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFiltered writes "normalized<TAB>count" for every accepted token,
// highest count first, ties in input order.
func WriteFiltered(w io.Writer, trace cc.ResolutionTrace) error {
	entries := make(cc.ResolutionTrace, len(trace))
	copy(entries, trace)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Count > entries[j].Count })

	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if _, err := fmt.Fprintf(bw, "%s\t%d\n", e.Normalized, e.Count); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteRejections writes "raw<TAB>reason<TAB>count" lines in input order.
func WriteRejections(w io.Writer, rejections []cc.Rejection) error {
	bw := bufio.NewWriter(w)
	for _, r := range rejections {
		if _, err := fmt.Fprintf(bw, "%s\t%s\t%d\n", r.Raw, r.Reason, r.Count); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// OutputFile is one rendered result file.
type OutputFile struct {
	// Path is relative to the corpus root, see DocumentFile.
	Path string
	Data []byte
}

// RenderOutputs renders the result files of res.  The rejection file is only
// included when withRejections is set.
func RenderOutputs(res *cc.DocumentResult, withRejections bool) ([]OutputFile, error) {
	type part struct {
		suffix string
		write  func(io.Writer) error
	}
	parts := []part{
		{FilteredCountsSuffix, func(w io.Writer) error { return WriteFiltered(w, res.Trace) }},
		{FinalCountsSuffix, func(w io.Writer) error { return WriteFinalCounts(w, res.Counts) }},
		{MappingSuffix, func(w io.Writer) error { return WriteMapping(w, res.Trace) }},
	}
	if withRejections {
		parts = append(parts, part{RejectionsSuffix, func(w io.Writer) error { return WriteRejections(w, res.Rejections) }})
	}

	out := make([]OutputFile, 0, len(parts))
	for _, p := range parts {
		var buf bytes.Buffer
		if err := p.write(&buf); err != nil {
			return nil, err
		}
		out = append(out, OutputFile{Path: DocumentFile(res.DocumentID, p.suffix), Data: buf.Bytes()})
	}
	return out, nil
}
