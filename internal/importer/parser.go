package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/mvrezende/event-pipeline/internal/models"
)

// ErrFatalParse marks a stream-level failure. It aborts the whole job
// before any row is processed.
var ErrFatalParse = errors.New("malformed import stream")

type ParseOptions struct {
	// Delimiter defaults to ','
	Delimiter rune
	// Windows1252 transcodes the stream before parsing. Exports from the
	// legacy desktop clients still arrive in that charset.
	Windows1252 bool
}

// ParseRows reads the whole bounded stream into typed rows. Unknown columns
// are ignored; enum columns fold unrecognized values into their declared
// default. The full read happens up front so a structural error can never
// surface after row processing has started.
func ParseRows(r io.Reader, schema Schema, opts ParseOptions) ([]models.ImportRow, error) {
	if opts.Windows1252 {
		r = transform.NewReader(r, charmap.Windows1252.NewDecoder())
	}

	cr := csv.NewReader(r)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty stream", ErrFatalParse)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFatalParse, err)
	}

	columns := make([]*Column, len(header))
	seen := make(map[string]bool)
	for i, h := range header {
		if col, ok := schema.column(strings.TrimSpace(h)); ok {
			c := col
			columns[i] = &c
			seen[strings.ToLower(col.Name)] = true
		}
	}
	for _, c := range schema.Columns {
		if c.Required && !seen[strings.ToLower(c.Name)] {
			return nil, fmt.Errorf("%w: missing required column %q", ErrFatalParse, c.Name)
		}
	}

	var rows []models.ImportRow
	for idx := 0; ; idx++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrFatalParse, idx+1, err)
		}

		fields := make(map[string]string)
		for i, val := range record {
			if i >= len(columns) || columns[i] == nil {
				continue
			}
			col := columns[i]
			v := strings.TrimSpace(val)
			if len(col.Enum) > 0 {
				v = col.normalizeEnum(v)
			}
			fields[col.Name] = v
		}

		rows = append(rows, models.ImportRow{
			Index:  idx,
			Fields: fields,
			Status: models.RowPending,
		})
	}

	return rows, nil
}
