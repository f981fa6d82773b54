// Package fetcher reads site tables from XLSX and CSV files and unpacks
// zipped boundary archives.
package fetcher

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// TableOptions selects what to read from a table file.
type TableOptions struct {
	Sheet     string // XLSX sheet name; first sheet when empty
	Delimiter rune   // CSV delimiter; default ','
}

// ReadTable reads every row of an XLSX or CSV file, choosing the parser by
// file extension. The first row is the header.
func ReadTable(ctx context.Context, path string, opts TableOptions) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(path, XLSXOptions{SheetName: opts.Sheet, TrimSpace: true})
	case ".csv", ".txt", ".tsv":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: read csv")
		}
		delim := opts.Delimiter
		if delim == 0 && strings.EqualFold(filepath.Ext(path), ".tsv") {
			delim = '\t'
		}
		return ReadCSV(ctx, bytes.NewReader(data), CSVOptions{Delimiter: delim, TrimSpace: true})
	}
	return nil, eris.Errorf("fetcher: unsupported table format %q", filepath.Ext(path))
}
