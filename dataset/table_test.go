package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/spatialpred/pkg/errors"
)

func TestNewTable(t *testing.T) {
	tbl, err := NewTable([]string{"y", "x"}, [][]float64{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)

	assert.Equal(t, 3, tbl.Rows())
	assert.Equal(t, []string{"y", "x"}, tbl.Names())
	assert.True(t, tbl.Has("x"))
	assert.False(t, tbl.Has("z"))

	x, err := tbl.Column("x")
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 5, 6}, x)

	x[0] = 100
	again, _ := tbl.Column("x")
	assert.Equal(t, 4.0, again[0], "Column returns a copy")
}

func TestNewTable_Errors(t *testing.T) {
	_, err := NewTable([]string{"a", "a"}, [][]float64{{1}, {2}})
	assert.Error(t, err)

	_, err = NewTable([]string{"a", "b"}, [][]float64{{1, 2}, {3}})
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	_, err = NewTable([]string{"a"}, nil)
	assert.Error(t, err)
}

func TestWithColumns_IsImmutable(t *testing.T) {
	base, err := NewTable([]string{"y"}, [][]float64{{1, 2}})
	require.NoError(t, err)

	aug, err := base.WithColumns([]string{"sp_1"}, [][]float64{{0.5, -0.5}})
	require.NoError(t, err)

	assert.Equal(t, []string{"y"}, base.Names())
	assert.Equal(t, []string{"y", "sp_1"}, aug.Names())
	assert.False(t, base.Has("sp_1"))

	_, err = aug.WithColumns([]string{"y"}, [][]float64{{0, 0}})
	assert.Error(t, err, "duplicate names are rejected")
}

func TestSelectAndMatrix(t *testing.T) {
	tbl, err := NewTable([]string{"y", "a", "b"}, [][]float64{{1, 2}, {3, 4}, {5, 6}})
	require.NoError(t, err)

	sub, err := tbl.Select([]string{"b", "y"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "y"}, sub.Names())

	m, err := tbl.Matrix([]string{"b", "a"})
	require.NoError(t, err)
	r, c := m.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 6.0, m.At(1, 0))
	assert.Equal(t, 3.0, m.At(0, 1))

	_, err = tbl.Matrix([]string{"missing"})
	var missing *errors.MissingInputError
	assert.True(t, errors.As(err, &missing))
}

func TestReadCSV(t *testing.T) {
	in := "y, x1,x2\n1,2,3\n4, 5,6\n"
	tbl, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"y", "x1", "x2"}, tbl.Names())
	x1, _ := tbl.Column("x1")
	assert.Equal(t, []float64{2, 5}, x1)

	_, err = ReadCSV(strings.NewReader("y\nabc\n"))
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("y\n"))
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
}
