package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// streamCSV reads CSV rows and sends them to a channel. Both channels are
// closed when processing completes. A leading UTF-8 BOM is dropped.
func streamCSV(ctx context.Context, r io.Reader) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		br := bufio.NewReader(r)
		if b, err := br.Peek(3); err == nil && bytes.Equal(b, []byte{0xEF, 0xBB, 0xBF}) {
			_, _ = br.Discard(3)
		}

		reader := csv.NewReader(br)
		reader.FieldsPerRecord = -1 // allow variable fields
		reader.LazyQuotes = true

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}
			for i, field := range record {
				record[i] = strings.TrimSpace(field)
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// streamXLSX sends the rows of the first sheet (or the named sheet) to a
// channel. Both channels are closed when processing completes.
func streamXLSX(ctx context.Context, f *xlsx.File, sheetName string) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		sheet, err := getSheet(f, sheetName)
		if err != nil {
			errCh <- err
			return
		}

		for _, row := range sheet.Rows {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
				return
			}
			if row == nil {
				continue
			}

			select {
			case rowCh <- rowToStrings(row):
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

func getSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = strings.TrimSpace(cell.String())
	}
	return cells
}

// decodeJSON accepts a JSON array of objects, newline-delimited objects, or
// a single {"prospects": [...]} wrapper, and sends each object to a channel.
func decodeJSON(ctx context.Context, r io.Reader) (<-chan map[string]any, <-chan error) {
	outCh := make(chan map[string]any, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		send := func(obj map[string]any) bool {
			select {
			case outCh <- obj:
				return true
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return false
			}
		}

		decoder := json.NewDecoder(r)
		decoder.UseNumber()

		tok, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				return
			}
			errCh <- eris.Wrap(err, "json: read opening token")
			return
		}

		delim, ok := tok.(json.Delim)
		if !ok {
			errCh <- eris.Errorf("json: expected '[' or '{', got %v", tok)
			return
		}

		if delim == '[' {
			for decoder.More() {
				if ctx.Err() != nil {
					errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
					return
				}
				var item map[string]any
				if err := decoder.Decode(&item); err != nil {
					errCh <- eris.Wrap(err, "json: decode element")
					return
				}
				if !send(item) {
					return
				}
			}
			if _, err := decoder.Token(); err != nil && err != io.EOF {
				errCh <- eris.Wrap(err, "json: read closing token")
			}
			return
		}

		// The first object was opened by Token; decode its members by hand,
		// then continue with any newline-delimited objects that follow.
		first, err := decodeOpenObject(decoder)
		if err != nil {
			errCh <- err
			return
		}
		if items, ok := first["prospects"].([]any); ok && !decoder.More() {
			for _, it := range items {
				obj, ok := it.(map[string]any)
				if !ok {
					errCh <- eris.Errorf("json: prospects element is %T, not an object", it)
					return
				}
				if !send(obj) {
					return
				}
			}
			return
		}
		if !send(first) {
			return
		}

		for decoder.More() {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}
			var item map[string]any
			if err := decoder.Decode(&item); err != nil {
				errCh <- eris.Wrap(err, "json: decode line")
				return
			}
			if !send(item) {
				return
			}
		}
	}()

	return outCh, errCh
}

// decodeOpenObject reads the members of an object whose '{' was already
// consumed, including the closing '}'.
func decodeOpenObject(decoder *json.Decoder) (map[string]any, error) {
	obj := make(map[string]any)
	for decoder.More() {
		tok, err := decoder.Token()
		if err != nil {
			return nil, eris.Wrap(err, "json: read key")
		}
		key, ok := tok.(string)
		if !ok {
			return nil, eris.Errorf("json: expected object key, got %v", tok)
		}
		var val any
		if err := decoder.Decode(&val); err != nil {
			return nil, eris.Wrapf(err, "json: decode %q", key)
		}
		obj[key] = val
	}
	if _, err := decoder.Token(); err != nil {
		return nil, eris.Wrap(err, "json: read closing brace")
	}
	return obj, nil
}
