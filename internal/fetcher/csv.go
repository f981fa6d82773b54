package fetcher

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune // sniffed from the header line when zero
	LazyQuotes bool
	TrimSpace  bool
}

const utf8BOM = "\ufeff"

// sniffLimit bounds how much of the stream is inspected for a delimiter.
const sniffLimit = 64 * 1024

// SniffDelimiter picks the most frequent of comma, semicolon and tab in the
// first line of header. Locale-specific spreadsheet exports use semicolons.
func SniffDelimiter(header []byte) rune {
	if i := bytes.IndexByte(header, '\n'); i >= 0 {
		header = header[:i]
	}
	best, bestN := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if n := bytes.Count(header, []byte(string(d))); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

// StreamCSV parses r and sends each record, header included, on the row
// channel. The first read or cancellation error is sent on the error channel.
// Both channels are closed when the stream ends.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		br := bufio.NewReaderSize(r, sniffLimit)
		delim := opts.Delimiter
		if delim == 0 {
			head, _ := br.Peek(sniffLimit)
			delim = SniffDelimiter(head)
		}

		reader := csv.NewReader(br)
		reader.Comma = delim
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1

		for line := 1; ; line++ {
			if err := ctx.Err(); err != nil {
				errCh <- eris.Wrap(err, "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				errCh <- eris.Wrapf(err, "csv: read row %d", line)
				return
			}

			if line == 1 && len(record) > 0 {
				record[0] = strings.TrimPrefix(record[0], utf8BOM)
			}
			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
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

// ReadCSV collects every non-blank row of a CSV stream.
func ReadCSV(ctx context.Context, r io.Reader, opts CSVOptions) ([][]string, error) {
	rowCh, errCh := StreamCSV(ctx, r, opts)
	var rows [][]string
	for row := range rowCh {
		if isBlank(row) {
			continue
		}
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return rows, err
	}
	return rows, nil
}
