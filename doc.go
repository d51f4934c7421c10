// Package spatialpred selects spatial predictors for regression models whose
// residuals are spatially autocorrelated.
//
// Given a data table, a dependent variable, base predictors and a pairwise
// distance matrix between observations, spatialpred fits the base model,
// measures the residual autocorrelation with Moran's I at one or more
// distance thresholds, generates candidate spatial predictors from the
// distance matrix, ranks them and selects the subset that best trades
// residual autocorrelation against fit and parsimony.
//
// # Installation
//
//	go get github.com/YuminosukeSato/spatialpred
//
// # Quick Start
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/spatialpred/dataset"
//	    "github.com/YuminosukeSato/spatialpred/engine"
//	    "github.com/YuminosukeSato/spatialpred/linear"
//	    "github.com/YuminosukeSato/spatialpred/spatial"
//	)
//
//	func main() {
//	    tbl, _ := dataset.NewTable([]string{"y", "x"}, [][]float64{y, x})
//	    dist, _ := spatial.NewDistanceMatrix(n, distances)
//
//	    eng, err := engine.New(engine.DefaultConfig(), linear.NewFitter())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    res, err := eng.Run(context.Background(), engine.Input{
//	        Data:       tbl,
//	        Distance:   dist,
//	        Dependent:  "y",
//	        Predictors: []string{"x"},
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(res.Outcome, res.SpatialPredictorNames())
//	}
//
// # Packages
//
//   - engine: tagged configuration and the end-to-end run
//   - spatial: distance matrices, thresholds and distance weights
//   - moran: Moran's I tests at one or many thresholds
//   - predictors: MEM, PCA and raw distance generators, correlation filter
//   - ranking: Moran and effect rankings of candidates
//   - selection: sequential and optimized selectors and their scorer
//   - core/model: the regression collaborator contract, repeated fits and the fit cache
//   - core/parallel: the worker pool
//   - cluster: worker nodes and the remote fitter
//   - linear: ordinary least squares collaborator
//   - dataset, metrics, preprocessing: tables, R² and scalers
//   - config: YAML and environment configuration
//   - cmd/spatialpred: command line interface
//
// # Command Line
//
//	spatialpred run --data plots.csv --distance dist.csv --dependent y --predictors a,b
//	spatialpred worker --port 7777
//
// Fits can be sent to worker nodes by listing them under pool.nodes. Each
// node runs "spatialpred worker" on the shared pool.port.
package spatialpred
