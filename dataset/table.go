// Package dataset holds the observation table the engine fits models on: N
// rows of named float64 columns, row-aligned with the distance matrix.
//
// A Table is immutable. Adding spatial predictors produces a new Table that
// shares the original columns.
package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/spatialpred/pkg/errors"
)

// Table is a column-oriented, immutable data table.
type Table struct {
	names []string
	index map[string]int
	cols  [][]float64
	rows  int
}

// NewTable builds a table from parallel name and column slices. Columns are
// copied. Every column must have the same length and names must be unique.
func NewTable(names []string, cols [][]float64) (*Table, error) {
	if len(names) != len(cols) {
		return nil, errors.NewDimensionError("dataset.NewTable", len(names), len(cols), 1)
	}
	t := &Table{index: make(map[string]int, len(names))}
	if len(cols) > 0 {
		t.rows = len(cols[0])
	}
	for i, name := range names {
		if err := t.add(name, cols[i]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// FromColumns builds a table from a name → column map. Column order is the
// order of names.
func FromColumns(names []string, columns map[string][]float64) (*Table, error) {
	cols := make([][]float64, len(names))
	for i, name := range names {
		c, ok := columns[name]
		if !ok {
			return nil, errors.NewMissingInputError("dataset.FromColumns", "column "+name)
		}
		cols[i] = c
	}
	return NewTable(names, cols)
}

func (t *Table) add(name string, col []float64) error {
	if name == "" {
		return errors.NewValueError("dataset.Table", "empty column name")
	}
	if _, dup := t.index[name]; dup {
		return errors.NewValueError("dataset.Table", "duplicate column "+strconv.Quote(name))
	}
	if len(col) != t.rows {
		return errors.NewDimensionError("dataset.Table", t.rows, len(col), 0)
	}
	t.index[name] = len(t.names)
	t.names = append(t.names, name)
	t.cols = append(t.cols, append([]float64(nil), col...))
	return nil
}

// Rows returns the number of observations.
func (t *Table) Rows() int {
	return t.rows
}

// Names returns the column names in table order.
func (t *Table) Names() []string {
	return append([]string(nil), t.names...)
}

// Has reports whether the table has a column called name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) ([]float64, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, errors.NewMissingInputError("dataset.Table.Column", "column "+name)
	}
	return append([]float64(nil), t.cols[i]...), nil
}

// WithColumns returns a new table with the given columns appended. The
// receiver is not modified. Names already present are rejected.
func (t *Table) WithColumns(names []string, cols [][]float64) (*Table, error) {
	if len(names) != len(cols) {
		return nil, errors.NewDimensionError("dataset.Table.WithColumns", len(names), len(cols), 1)
	}
	out := &Table{
		names: append(make([]string, 0, len(t.names)+len(names)), t.names...),
		index: make(map[string]int, len(t.names)+len(names)),
		cols:  append(make([][]float64, 0, len(t.cols)+len(cols)), t.cols...),
		rows:  t.rows,
	}
	for k, v := range t.index {
		out.index[k] = v
	}
	if len(t.names) == 0 && len(cols) > 0 {
		out.rows = len(cols[0])
	}
	for i, name := range names {
		if err := out.add(name, cols[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Select returns a table restricted to names, in that order.
func (t *Table) Select(names []string) (*Table, error) {
	cols := make([][]float64, len(names))
	for i, name := range names {
		j, ok := t.index[name]
		if !ok {
			return nil, errors.NewMissingInputError("dataset.Table.Select", "column "+name)
		}
		cols[i] = t.cols[j]
	}
	return NewTable(names, cols)
}

// Matrix returns the named columns as an N×len(names) matrix.
func (t *Table) Matrix(names []string) (*mat.Dense, error) {
	if t.rows == 0 {
		return nil, errors.NewModelError("dataset.Table.Matrix", "empty data", errors.ErrEmptyData)
	}
	if len(names) == 0 {
		return nil, errors.NewValueError("dataset.Table.Matrix", "no columns requested")
	}
	m := mat.NewDense(t.rows, len(names), nil)
	for j, name := range names {
		c, ok := t.index[name]
		if !ok {
			return nil, errors.NewMissingInputError("dataset.Table.Matrix", "column "+name)
		}
		m.SetCol(j, t.cols[c])
	}
	return m, nil
}

// ReadCSV reads a table with a header row. Every field must parse as a
// finite float.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "dataset: read csv header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	cols := make([][]float64, len(header))
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.Wrapf(err, "dataset: read csv line %d", line)
		}
		for j, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, errors.Wrapf(err, "dataset: line %d column %q", line, header[j])
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.NewValueError("dataset.ReadCSV", "non-finite value in column "+strconv.Quote(header[j]))
			}
			cols[j] = append(cols[j], v)
		}
	}
	if line == 1 {
		return nil, errors.NewModelError("dataset.ReadCSV", "no rows", errors.ErrEmptyData)
	}
	return NewTable(header, cols)
}
