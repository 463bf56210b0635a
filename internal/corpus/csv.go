package corpus

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// LoadCSV reads a corpus from a CSV file. The first record is the header;
// every following record becomes one row. Short records are padded with empty
// cells, mirroring how missing spreadsheet values are normalized to "".
func LoadCSV(path string) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus file: %w", err)
	}
	defer f.Close()

	c, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return c, nil
}

// ReadCSV parses CSV content from r into a corpus.
func ReadCSV(r io.Reader) (*Corpus, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // rows may omit trailing cells
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoColumns
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var records [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}

	return New(header, records)
}
