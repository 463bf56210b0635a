// Package corpus models the tabular knowledge base: an ordered set of rows
// loaded once at startup and immutable afterwards.
package corpus

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors
var (
	ErrEmpty      = errors.New("corpus has no rows")
	ErrNoColumns  = errors.New("corpus has no columns")
	ErrShapeError = errors.New("record width does not match columns")
)

// Row is one record of the knowledge base. Column order is shared across the
// whole corpus; a row is identified by its positional index.
type Row struct {
	columns []string
	cells   map[string]string
}

// Get returns the cell value for a column, or "" if the column is unknown.
// Missing cells are normalized to "" at load time.
func (r Row) Get(column string) string {
	return r.cells[column]
}

// Columns returns the column names in corpus order.
func (r Row) Columns() []string {
	return r.columns
}

// Flatten joins all cell values with a single space, in column order. Empty
// cells contribute an empty segment so that the flattened text keeps the same
// column alignment for every row.
func (r Row) Flatten() string {
	parts := make([]string, len(r.columns))
	for i, col := range r.columns {
		parts[i] = r.cells[col]
	}
	return strings.Join(parts, " ")
}

// Label returns the human-readable identifier for the row: the value of
// nameColumn when the corpus has such a column, otherwise the value of the
// first column.
func (r Row) Label(nameColumn string) string {
	if nameColumn != "" {
		for _, col := range r.columns {
			if col == nameColumn {
				return r.cells[col]
			}
		}
	}
	if len(r.columns) == 0 {
		return ""
	}
	return r.cells[r.columns[0]]
}

// Corpus is an ordered sequence of rows, fixed for the process lifetime.
type Corpus struct {
	columns []string
	rows    []Row
}

// New builds a corpus from a header and records. Records shorter than the
// header are padded with empty cells; longer records are rejected.
func New(columns []string, records [][]string) (*Corpus, error) {
	if len(columns) == 0 {
		return nil, ErrNoColumns
	}
	if len(records) == 0 {
		return nil, ErrEmpty
	}

	cols := make([]string, len(columns))
	copy(cols, columns)

	rows := make([]Row, 0, len(records))
	for i, rec := range records {
		if len(rec) > len(cols) {
			return nil, fmt.Errorf("row %d: %w: got %d cells, want at most %d", i, ErrShapeError, len(rec), len(cols))
		}
		cells := make(map[string]string, len(cols))
		for j, col := range cols {
			if j < len(rec) {
				cells[col] = strings.TrimSpace(rec[j])
			} else {
				cells[col] = ""
			}
		}
		rows = append(rows, Row{columns: cols, cells: cells})
	}

	return &Corpus{columns: cols, rows: rows}, nil
}

// Len returns the number of rows.
func (c *Corpus) Len() int {
	return len(c.rows)
}

// Row returns the row at index i.
func (c *Corpus) Row(i int) Row {
	return c.rows[i]
}

// Rows returns all rows in corpus order.
func (c *Corpus) Rows() []Row {
	return c.rows
}

// Columns returns the column names in load order.
func (c *Corpus) Columns() []string {
	return c.columns
}

// Flatten returns the flattened text of every row, index-aligned with the
// corpus. This is the text the embedder sees.
func (c *Corpus) Flatten() []string {
	texts := make([]string, len(c.rows))
	for i, row := range c.rows {
		texts[i] = row.Flatten()
	}
	return texts
}
