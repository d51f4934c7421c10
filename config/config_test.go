package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/spatialpred/config"
	"github.com/YuminosukeSato/spatialpred/engine"
	"github.com/YuminosukeSato/spatialpred/pkg/errors"
	"github.com/YuminosukeSato/spatialpred/predictors"
	"github.com/YuminosukeSato/spatialpred/spatial"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spatialpred.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, engine.DefaultConfig(), cfg.Engine)
	assert.Equal(t, config.DefaultPort, cfg.Pool.Port)
	assert.Empty(t, cfg.Pool.Nodes)
	assert.False(t, cfg.Pool.Distributed())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.Console())
	assert.Equal(t, "euclidean", cfg.Input.Metric)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
engine:
  generator: pca
  ranker: moran
  selector: sequential
  thresholds: [0, 100, 1000]
  weights:
    r_squared: 0.5
    penalization: 0.1
  max_predictors: 25
  repetitions: 3
  seed: 42
pool:
  workers: 4
  nodes: [10.0.0.1, 10.0.0.2]
  port: 9000
input:
  data: data.csv
  x: lon
  y: lat
  metric: haversine
  dependent: price
  predictors: [rooms, age]
log:
  level: debug
  format: console
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, predictors.PCA, cfg.Engine.Generator)
	assert.Equal(t, engine.RankerMoran, cfg.Engine.Ranker)
	assert.Equal(t, engine.SelectorSequential, cfg.Engine.Selector)
	assert.Equal(t, spatial.Thresholds{0, 100, 1000}, cfg.Engine.Thresholds)
	assert.Equal(t, 0.5, cfg.Engine.Weights.RSquared)
	assert.Equal(t, 0.1, cfg.Engine.Weights.Penalization)
	assert.Equal(t, 25, cfg.Engine.MaxPredictors)
	assert.Equal(t, 3, cfg.Engine.Repetitions)
	assert.Equal(t, int64(42), cfg.Engine.Seed)

	assert.Equal(t, 4, cfg.Pool.Workers)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.Pool.Nodes)
	assert.Equal(t, 9000, cfg.Pool.Port)

	assert.Equal(t, "price", cfg.Input.Dependent)
	assert.Equal(t, []string{"rooms", "age"}, cfg.Input.Predictors)
	assert.Equal(t, "haversine", cfg.Input.Metric)
	assert.True(t, cfg.Log.Console())
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("SPATIALPRED_ENGINE_RANKER", "moran")
	t.Setenv("SPATIALPRED_ENGINE_MAX_PREDICTORS", "7")
	t.Setenv("SPATIALPRED_LOG_LEVEL", "warn")

	cfg, err := config.Load(writeConfig(t, "engine:\n  ranker: effect\n"))
	require.NoError(t, err)
	assert.Equal(t, engine.RankerMoran, cfg.Engine.Ranker)
	assert.Equal(t, 7, cfg.Engine.MaxPredictors)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"moran optimized", "engine:\n  ranker: moran\n  selector: optimized\n", "selector"},
		{"descending thresholds", "engine:\n  thresholds: [10, 0]\n", "thresholds"},
		{"nodes without port", "pool:\n  nodes: [a]\n  port: 0\n", "pool.port"},
		{"half coordinates", "input:\n  x: lon\n", "input.x"},
		{"unknown metric", "input:\n  metric: manhattan\n", "distance.metric"},
		{"log level", "log:\n  level: loud\n", "log.level"},
		{"log format", "log:\n  format: xml\n", "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.body))
			var cfgErr *errors.ConfigError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}

	_, err := config.Load(writeConfig(t, "engine:\n  ranker: kriging\n"))
	assert.Error(t, err)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
