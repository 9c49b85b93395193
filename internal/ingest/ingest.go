// Package ingest reads prospect records from JSON, NDJSON, CSV, and XLSX
// files produced by discovery or exported by hand.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/adlead-cli/internal/model"
)

// Format is an input file format.
type Format string

const (
	FormatJSON   Format = "json"
	FormatNDJSON Format = "ndjson"
	FormatCSV    Format = "csv"
	FormatXLSX   Format = "xlsx"
)

// DetectFormat picks a format from a file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".ndjson", ".jsonl":
		return FormatNDJSON, nil
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", eris.Errorf("ingest: unsupported file type %q (want .json, .ndjson, .csv or .xlsx)", filepath.Ext(path))
	}
}

// RowError describes an input row that could not be turned into a prospect.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string { return fmt.Sprintf("row %d: %s", e.Row, e.Reason) }

// Result holds the prospects read from an input and the rows rejected as
// data errors.
type Result struct {
	Prospects []model.Prospect
	Rejected  []RowError
}

// Apply folds rejected rows into a batch summary as data errors.
func (r *Result) Apply(sum *model.RunSummary) {
	sum.Total += len(r.Rejected)
	sum.DataErrors += len(r.Rejected)
}

// ReadFile reads prospects from path, choosing the parser by extension.
func ReadFile(ctx context.Context, path string) (*Result, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	var res *Result
	if format == FormatXLSX {
		f, oerr := xlsx.OpenFile(path)
		if oerr != nil {
			return nil, eris.Wrapf(oerr, "ingest: open %s", path)
		}
		res, err = readRows(streamXLSX(ctx, f, ""))
	} else {
		fh, oerr := os.Open(path)
		if oerr != nil {
			return nil, eris.Wrapf(oerr, "ingest: open %s", path)
		}
		defer fh.Close() //nolint:errcheck
		res, err = Read(ctx, fh, format)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: %s", path)
	}

	zap.L().Info("ingest: read prospects",
		zap.String("path", path),
		zap.Int("prospects", len(res.Prospects)),
		zap.Int("rejected", len(res.Rejected)),
	)
	return res, nil
}

// Read parses prospects from r in the given format.
func Read(ctx context.Context, r io.Reader, format Format) (*Result, error) {
	switch format {
	case FormatJSON, FormatNDJSON:
		return readObjects(ctx, r)
	case FormatCSV:
		return readRows(streamCSV(ctx, r))
	case FormatXLSX:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, eris.Wrap(err, "ingest: read xlsx")
		}
		f, err := xlsx.OpenBinary(data)
		if err != nil {
			return nil, eris.Wrap(err, "ingest: open xlsx")
		}
		return readRows(streamXLSX(ctx, f, ""))
	default:
		return nil, eris.Errorf("ingest: unsupported format %q", format)
	}
}

// ReadBytes is Read over an in-memory body.
func ReadBytes(ctx context.Context, data []byte, format Format) (*Result, error) {
	return Read(ctx, bytes.NewReader(data), format)
}

func readObjects(ctx context.Context, r io.Reader) (*Result, error) {
	objCh, errCh := decodeJSON(ctx, r)
	res := &Result{}
	row := 0
	for obj := range objCh {
		row++
		fields := make(map[string]string, len(obj))
		for k, v := range obj {
			fields[normalizeHeader(k)] = stringify(v)
		}
		res.add(row, fields)
	}
	for err := range errCh {
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func readRows(rowCh <-chan []string, errCh <-chan error) (*Result, error) {
	res := &Result{}
	var header []string
	row := 0
	for cells := range rowCh {
		row++
		if header == nil {
			header = make([]string, len(cells))
			for i, h := range cells {
				header[i] = normalizeHeader(h)
			}
			continue
		}
		if blank(cells) {
			continue
		}
		fields := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(cells) && h != "" {
				fields[h] = cells[i]
			}
		}
		res.add(row, fields)
	}
	for err := range errCh {
		if err != nil {
			return nil, err
		}
	}
	if header == nil {
		return res, nil
	}
	if !hasAny(header, aliases[fieldCompany]) {
		return nil, eris.Errorf("ingest: header has no company name column (got %s)", strings.Join(header, ", "))
	}
	return res, nil
}

func (r *Result) add(row int, fields map[string]string) {
	p, err := toProspect(fields)
	if err != nil {
		zap.L().Warn("ingest: rejected row", zap.Int("row", row), zap.Error(err))
		r.Rejected = append(r.Rejected, RowError{Row: row, Reason: err.Error()})
		return
	}
	r.Prospects = append(r.Prospects, p)
}

func blank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

func hasAny(header []string, names []string) bool {
	for _, h := range header {
		for _, n := range names {
			if h == n {
				return true
			}
		}
	}
	return false
}
