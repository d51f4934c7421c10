package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/spatialpred/cluster"
	"github.com/YuminosukeSato/spatialpred/config"
	"github.com/YuminosukeSato/spatialpred/core/parallel"
	"github.com/YuminosukeSato/spatialpred/dataset"
	"github.com/YuminosukeSato/spatialpred/engine"
	"github.com/YuminosukeSato/spatialpred/internal/fixtures"
	"github.com/YuminosukeSato/spatialpred/linear"
	"github.com/YuminosukeSato/spatialpred/pkg/errors"
	"github.com/YuminosukeSato/spatialpred/pkg/log"
	"github.com/YuminosukeSato/spatialpred/spatial"
)

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}

func writeTable(t *testing.T, dir string, tbl *dataset.Table) string {
	t.Helper()
	names := tbl.Names()
	cols := make([][]float64, len(names))
	for j, name := range names {
		c, err := tbl.Column(name)
		require.NoError(t, err)
		cols[j] = c
	}
	var b strings.Builder
	b.WriteString(strings.Join(names, ","))
	b.WriteByte('\n')
	for i := 0; i < tbl.Rows(); i++ {
		row := make([]string, len(cols))
		for j := range cols {
			row[j] = formatFloat(cols[j][i])
		}
		b.WriteString(strings.Join(row, ","))
		b.WriteByte('\n')
	}
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func writeDistance(t *testing.T, dir string, d *spatial.DistanceMatrix) string {
	t.Helper()
	var b strings.Builder
	for i := 0; i < d.N(); i++ {
		row := d.Row(i)
		fields := make([]string, len(row))
		for j, x := range row {
			fields[j] = formatFloat(x)
		}
		b.WriteString(strings.Join(fields, ","))
		b.WriteByte('\n')
	}
	path := filepath.Join(dir, "dist.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func clusterConfig(t *testing.T) *config.Config {
	t.Helper()
	errors.SetWarningHandler(func(error) {})
	dir := t.TempDir()
	c := &config.Config{
		Engine: engine.DefaultConfig(),
		Pool:   parallel.PoolConfig{Workers: 2},
		Input: config.InputConfig{
			Data:       writeTable(t, dir, fixtures.ClusterTable(fixtures.NewRand(21), 10, 5)),
			Distance:   writeDistance(t, dir, fixtures.TwoClusters(10)),
			Metric:     "euclidean",
			Dependent:  "y",
			Predictors: []string{"x"},
		},
		Log: config.LogConfig{Level: "warn"},
	}
	c.Engine.MaxCorrelation = 0
	require.NoError(t, c.Validate())
	return c
}

func decodeReport(t *testing.T, data []byte) map[string]interface{} {
	t.Helper()
	var doc map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &doc))
	return doc
}

func TestRunSelection(t *testing.T) {
	c := clusterConfig(t)

	var buf bytes.Buffer
	require.NoError(t, runSelection(context.Background(), c, &buf))

	doc := decodeReport(t, buf.Bytes())
	assert.Equal(t, "improved", doc["outcome"])
	assert.Equal(t, []interface{}{"spatial_predictor_0_1"}, doc["spatial_predictors"])
}

func TestRunSelection_OutFile(t *testing.T) {
	c := clusterConfig(t)
	c.Input.Out = filepath.Join(t.TempDir(), "result.yaml")

	var buf bytes.Buffer
	require.NoError(t, runSelection(context.Background(), c, &buf))
	assert.Zero(t, buf.Len())

	data, err := os.ReadFile(c.Input.Out)
	require.NoError(t, err)
	assert.Equal(t, "improved", decodeReport(t, data)["outcome"])
}

func TestRunSelection_Coordinates(t *testing.T) {
	errors.SetWarningHandler(func(error) {})
	dir := t.TempDir()
	tbl := fixtures.ClusterTable(fixtures.NewRand(21), 10, 5)
	// two tight groups of points far apart
	xs := make([]float64, tbl.Rows())
	ys := make([]float64, tbl.Rows())
	for i := range xs {
		xs[i] = float64(fixtures.Cluster(i, 10))*100 + float64(i%10)*0.1
	}
	tbl, err := tbl.WithColumns([]string{"lon", "lat"}, [][]float64{xs, ys})
	require.NoError(t, err)

	c := &config.Config{
		Engine: engine.DefaultConfig(),
		Input: config.InputConfig{
			Data:       writeTable(t, dir, tbl),
			X:          "lon",
			Y:          "lat",
			Metric:     "euclidean",
			Dependent:  "y",
			Predictors: []string{"x"},
		},
	}
	c.Engine.MaxCorrelation = 0

	var buf bytes.Buffer
	require.NoError(t, runSelection(context.Background(), c, &buf))
	doc := decodeReport(t, buf.Bytes())
	assert.Contains(t, []interface{}{"improved", "no_eligible_predictors"}, doc["outcome"])
}

func TestRunSelection_MissingInput(t *testing.T) {
	c := clusterConfig(t)
	c.Input.Data = ""
	var missing *errors.MissingInputError
	assert.True(t, errors.As(runSelection(context.Background(), c, &bytes.Buffer{}), &missing))

	c = clusterConfig(t)
	c.Input.Distance = ""
	err := runSelection(context.Background(), c, &bytes.Buffer{})
	assert.True(t, errors.As(err, &missing), "got %v", err)
}

func TestRunSelection_WorkerNodes(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelInfo)
	ts := httptest.NewServer(cluster.NewServer(linear.NewFitter(), logger).Handler())
	defer ts.Close()
	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	c := clusterConfig(t)
	c.Pool.Nodes = []string{u.Hostname()}
	c.Pool.Port = port

	var buf bytes.Buffer
	require.NoError(t, runSelection(context.Background(), c, &buf))
	assert.Equal(t, "improved", decodeReport(t, buf.Bytes())["outcome"])
}
