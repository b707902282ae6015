package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// LabelColumn is the designated target column for training datasets.
const LabelColumn = "target"

// MissingSentinel replaces empty cells so that encoders never see a hole.
const MissingSentinel = "unknown"

// UnstableColumns leak file identity rather than signal and are dropped
// by both the training and inference pipelines when present.
var UnstableColumns = []string{"File_Name", "File_Path", "Last_Modified_By"}

var ErrEmpty = errors.New("dataset: no data rows")

// Dataset is a rectangular table of named string columns. All
// transforms return a new Dataset; the receiver is never mutated.
type Dataset struct {
	columns []string
	rows    [][]string
}

// ReadCSV parses a CSV stream with a header row into a Dataset.
// Ragged rows are a parse error.
func ReadCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("dataset: parse csv: %w", err)
	}
	if len(records) < 2 {
		return nil, ErrEmpty
	}

	header := make([]string, len(records[0]))
	for i, name := range records[0] {
		header[i] = strings.TrimSpace(name)
	}
	return &Dataset{columns: header, rows: records[1:]}, nil
}

// New builds a Dataset from a header and rows. Every row must have
// exactly one cell per column.
func New(columns []string, rows [][]string) (*Dataset, error) {
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("dataset: row %d has %d cells, want %d", i, len(row), len(columns))
		}
	}
	return &Dataset{columns: append([]string(nil), columns...), rows: rows}, nil
}

// Columns returns the column names in order.
func (d *Dataset) Columns() []string {
	return append([]string(nil), d.columns...)
}

// Len returns the number of data rows.
func (d *Dataset) Len() int {
	return len(d.rows)
}

// HasColumn reports whether the named column exists.
func (d *Dataset) HasColumn(name string) bool {
	return d.index(name) >= 0
}

// Column returns all values of the named column in row order.
func (d *Dataset) Column(name string) ([]string, error) {
	idx := d.index(name)
	if idx < 0 {
		return nil, fmt.Errorf("dataset: no column %q", name)
	}
	out := make([]string, len(d.rows))
	for i, row := range d.rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Row returns one row as a column-name keyed map.
func (d *Dataset) Row(i int) map[string]string {
	out := make(map[string]string, len(d.columns))
	for j, name := range d.columns {
		out[name] = d.rows[i][j]
	}
	return out
}

// Cell returns the value at (row, column name).
func (d *Dataset) Cell(row int, name string) (string, error) {
	idx := d.index(name)
	if idx < 0 {
		return "", fmt.Errorf("dataset: no column %q", name)
	}
	return d.rows[row][idx], nil
}

// DropColumns returns a new Dataset without the named columns. Names
// not present are ignored.
func (d *Dataset) DropColumns(names ...string) *Dataset {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}

	keep := make([]int, 0, len(d.columns))
	cols := make([]string, 0, len(d.columns))
	for i, name := range d.columns {
		if !drop[name] {
			keep = append(keep, i)
			cols = append(cols, name)
		}
	}

	rows := make([][]string, len(d.rows))
	for i, row := range d.rows {
		out := make([]string, len(keep))
		for j, idx := range keep {
			out[j] = row[idx]
		}
		rows[i] = out
	}
	return &Dataset{columns: cols, rows: rows}
}

// FillMissing returns a new Dataset with every empty or
// whitespace-only cell replaced by the sentinel value.
func (d *Dataset) FillMissing(sentinel string) *Dataset {
	rows := make([][]string, len(d.rows))
	for i, row := range d.rows {
		out := make([]string, len(row))
		for j, cell := range row {
			if strings.TrimSpace(cell) == "" {
				out[j] = sentinel
			} else {
				out[j] = cell
			}
		}
		rows[i] = out
	}
	return &Dataset{columns: append([]string(nil), d.columns...), rows: rows}
}

// SelectRows returns a new Dataset containing only the given row
// indices, in the given order.
func (d *Dataset) SelectRows(indices []int) *Dataset {
	rows := make([][]string, len(indices))
	for i, idx := range indices {
		rows[i] = d.rows[idx]
	}
	return &Dataset{columns: append([]string(nil), d.columns...), rows: rows}
}

func (d *Dataset) index(name string) int {
	for i, col := range d.columns {
		if col == name {
			return i
		}
	}
	return -1
}
