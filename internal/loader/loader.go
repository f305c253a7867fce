// Package loader reads tabular demand data from CSV files into the record
// form the ingestion pipeline consumes, and generates synthetic demand
// datasets for local testing.
package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/avolkov/demandqa-go/internal/format"
)

// Load reads the CSV file at path and returns one record per data row. The
// first row is the header; every record keeps the header's column order.
// A missing file or a malformed row is a structured failure carrying the
// offending path, not a degraded result.
func Load(path string) ([]format.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open %s: %w", path, err)
	}
	defer f.Close()

	records, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("loader: read %s: %w", path, err)
	}
	return records, nil
}

// Read parses CSV data from r. Exposed separately from Load so callers can
// ingest from any stream (request bodies, test fixtures).
func Read(r io.Reader) ([]format.Record, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var records []format.Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(records)+2, err)
		}

		rec := format.Record{Fields: make([]format.Field, len(header))}
		for i, name := range header {
			rec.Fields[i] = format.Field{Name: name, Value: row[i]}
		}
		records = append(records, rec)
	}
	return records, nil
}
