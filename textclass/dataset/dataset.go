// Package dataset loads the tab-separated training corpus and provides the
// dataframe-like operations the pipeline needs: deterministic shuffling,
// train/test splitting and categorical label expansion.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
)

// Common error types used across the dataset package
var (
	ErrInvalidColumn = errors.New("column not present in table")
	ErrEmptyTable    = errors.New("table has no data rows")
)

// canonicalColumns is the expected column order of the input file. The header
// row is discarded and columns are addressed by position, so whatever names
// the file carries are replaced by these.
var canonicalColumns = []string{"id", "labels", "misc", "text"}

// Table is an ordered, in-memory slice of the input file. Rows keep their
// load order until Shuffle is called.
type Table struct {
	columns []string
	rows    [][]string
}

// Load reads a tab-separated file with a header row and at least the four
// positional columns id, labels, misc, text. The misc column is retained in
// the table but never consumed downstream.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse dataset %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyTable, path)
	}

	// First record is the header; column names are positional.
	rows := make([][]string, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) < len(canonicalColumns) {
			return nil, fmt.Errorf("row %d has %d columns, want at least %d: %w",
				i+2, len(rec), len(canonicalColumns), ErrInvalidColumn)
		}
		rows = append(rows, rec[:len(canonicalColumns)])
	}

	slog.Debug("Loaded dataset", "path", path, "rows", len(rows))

	return &Table{columns: canonicalColumns, rows: rows}, nil
}

// NewTable builds a table directly from column names and rows.
func NewTable(columns []string, rows [][]string) *Table {
	return &Table{columns: columns, rows: rows}
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// Columns returns the canonical column names.
func (t *Table) Columns() []string { return t.columns }

func (t *Table) columnIndex(name string) (int, error) {
	for i, c := range t.columns {
		if c == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q (have %v)", ErrInvalidColumn, name, t.columns)
}

// Column returns all values of the named column in row order.
func (t *Table) Column(name string) ([]string, error) {
	idx, err := t.columnIndex(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Shuffle permutes the rows in place using a deterministic seed.
func (t *Table) Shuffle(seed int64) {
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(t.rows), func(i, j int) {
		t.rows[i], t.rows[j] = t.rows[j], t.rows[i]
	})
}

// Split cuts the table into a leading train slice and a trailing test slice.
// For frac=0.7 and 10 rows the train table holds exactly 7 rows.
func (t *Table) Split(frac float64) (train, test *Table) {
	n := int(float64(len(t.rows)) * frac)
	train = &Table{columns: t.columns, rows: t.rows[:n]}
	test = &Table{columns: t.columns, rows: t.rows[n:]}
	return train, test
}
