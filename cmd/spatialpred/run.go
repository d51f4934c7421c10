package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/spatialpred/cluster"
	"github.com/YuminosukeSato/spatialpred/config"
	"github.com/YuminosukeSato/spatialpred/core/model"
	"github.com/YuminosukeSato/spatialpred/core/parallel"
	"github.com/YuminosukeSato/spatialpred/dataset"
	"github.com/YuminosukeSato/spatialpred/engine"
	"github.com/YuminosukeSato/spatialpred/linear"
	"github.com/YuminosukeSato/spatialpred/pkg/errors"
	"github.com/YuminosukeSato/spatialpred/pkg/log"
	"github.com/YuminosukeSato/spatialpred/spatial"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Select spatial predictors for a regression on CSV data",
	Long: `Fits the base model, generates and ranks candidate spatial predictors and
writes a YAML report of the selection.

Examples:
  # distance matrix from a file
  spatialpred run --data plots.csv --distance dist.csv --dependent richness --predictors rain,temp

  # great-circle distances from coordinate columns, optimized selection
  spatialpred run --data plots.csv --x lon --y lat --metric haversine \
    --dependent richness --selector optimized --out result.yaml

  # fits sent to worker nodes started with "spatialpred worker"
  spatialpred run --config cluster.yaml --nodes 10.0.0.11,10.0.0.12`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runSelection(ctx, cfg, cmd.OutOrStdout())
	},
}

func init() {
	f := runCmd.Flags()
	f.String("data", "", "data CSV with a header row (required)")
	f.String("distance", "", "distance matrix CSV, row-aligned with the data")
	f.Bool("distance-header", false, "skip the first row of the distance CSV")
	f.String("x", "", "x or longitude column, used when --distance is not set")
	f.String("y", "", "y or latitude column, used when --distance is not set")
	f.String("metric", "", "euclidean or haversine")
	f.String("dependent", "", "dependent variable column (required)")
	f.StringSlice("predictors", nil, "base predictor columns")
	f.String("out", "", "write the YAML report to this file (default: stdout)")

	f.String("generator", "", "mem, pca or distance")
	f.String("ranker", "", "none, moran or effect")
	f.String("selector", "", "none, sequential or optimized")
	f.String("thresholds", "", "comma-separated ascending distance thresholds")
	f.Int("max-predictors", 0, "cap on generated candidates (0 = no cap)")
	f.Int("repetitions", 0, "fits per model, averaged")
	f.Int("workers", 0, "concurrent fits (0 = cores - 1)")
	f.StringSlice("nodes", nil, "worker node hosts; fits run remotely when set")

	bindFlags(f, map[string]string{
		"input.data":            "data",
		"input.distance":        "distance",
		"input.distance_header": "distance-header",
		"input.x":               "x",
		"input.y":               "y",
		"input.metric":          "metric",
		"input.dependent":       "dependent",
		"input.predictors":      "predictors",
		"input.out":             "out",
		"engine.generator":      "generator",
		"engine.ranker":         "ranker",
		"engine.selector":       "selector",
		"engine.thresholds":     "thresholds",
		"engine.max_predictors": "max-predictors",
		"engine.repetitions":    "repetitions",
		"pool.workers":          "workers",
		"pool.nodes":            "nodes",
	})
	rootCmd.AddCommand(runCmd)
}

// runSelection runs one selection described by c and writes the report
// to w, or to c.Input.Out when set.
func runSelection(ctx context.Context, c *config.Config, w io.Writer) error {
	logger := log.Default()
	if c.Input.Data == "" {
		return errors.NewMissingInputError("run", "--data")
	}

	tbl, err := readTable(c.Input.Data)
	if err != nil {
		return err
	}
	dist, err := loadDistance(c.Input, tbl)
	if err != nil {
		return err
	}
	fitter, err := newFitter(ctx, c.Pool, logger)
	if err != nil {
		return err
	}

	eng, err := engine.New(c.Engine, fitter,
		engine.WithLogger(logger),
		engine.WithWorkers(c.Pool.Workers),
	)
	if err != nil {
		return err
	}
	res, err := eng.Run(ctx, engine.Input{
		Data:       tbl,
		Distance:   dist,
		Dependent:  c.Input.Dependent,
		Predictors: c.Input.Predictors,
	})
	if err != nil {
		return err
	}

	if c.Input.Out == "" {
		return res.WriteYAML(w)
	}
	out, err := os.Create(c.Input.Out)
	if err != nil {
		return errors.Wrap(err, "run: create report")
	}
	if err := res.WriteYAML(out); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return errors.Wrap(err, "run: close report")
	}
	logger.Info("report written", "path", c.Input.Out, log.RunIDKey, res.RunID)
	return nil
}

func readTable(path string) (*dataset.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "run: open data")
	}
	defer f.Close()
	return dataset.ReadCSV(f)
}

// loadDistance returns nil when neither a distance file nor coordinate
// columns are configured. The engine then reports the missing input.
func loadDistance(in config.InputConfig, tbl *dataset.Table) (*spatial.DistanceMatrix, error) {
	switch {
	case in.Distance != "":
		f, err := os.Open(in.Distance)
		if err != nil {
			return nil, errors.Wrap(err, "run: open distance matrix")
		}
		defer f.Close()
		return spatial.ReadCSV(f, in.DistanceHeader)
	case in.X != "":
		xs, err := tbl.Column(in.X)
		if err != nil {
			return nil, err
		}
		ys, err := tbl.Column(in.Y)
		if err != nil {
			return nil, err
		}
		metric, err := spatial.ParseMetric(in.Metric)
		if err != nil {
			return nil, err
		}
		points, err := spatial.NewPoints(xs, ys)
		if err != nil {
			return nil, err
		}
		return spatial.FromPoints(points, metric)
	default:
		return nil, nil
	}
}

func newFitter(ctx context.Context, pool parallel.PoolConfig, logger log.Logger) (model.Fitter, error) {
	if !pool.Distributed() {
		return linear.NewFitter(), nil
	}
	remote, err := cluster.FromPool(pool, cluster.WithRemoteLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := remote.Ping(ctx); err != nil {
		return nil, err
	}
	logger.Info("using worker nodes", log.WorkersKey, len(remote.Nodes()), "nodes", remote.Nodes())
	return remote, nil
}
