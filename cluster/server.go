package cluster

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/YuminosukeSato/spatialpred/core/model"
	"github.com/YuminosukeSato/spatialpred/dataset"
	"github.com/YuminosukeSato/spatialpred/pkg/errors"
	"github.com/YuminosukeSato/spatialpred/pkg/log"
)

// Paths served by a worker node.
const (
	FitPath    = "/v1/fit"
	HealthPath = "/healthz"
)

// MaxBodyBytes bounds a compressed request body.
const MaxBodyBytes = 256 << 20

// Server is a worker node. It fits requests with its local Fitter.
type Server struct {
	fitter model.Fitter
	logger log.Logger
	router chi.Router
}

// NewServer creates a worker node around fitter. Results are checked with
// model.Checked before they are sent back.
func NewServer(fitter model.Fitter, logger log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		fitter: model.Checked(fitter),
		logger: logger.With(log.ComponentKey, "cluster.server"),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get(HealthPath, s.handleHealth)
	r.Post(FitPath, s.handleFit)
	s.router = r
	return s
}

// Handler returns the HTTP handler of the node.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down worker")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("starting worker", log.OperationKey, log.OperationServe, log.NodeKey, addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "worker listen")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok")
}

func (s *Server) handleFit(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
	if err != nil {
		s.respond(w, http.StatusBadRequest, fitResponse{Error: "read body: " + err.Error()})
		return
	}
	var req fitRequest
	if err := Decode(body, &req); err != nil {
		s.respond(w, http.StatusBadRequest, fitResponse{Error: err.Error()})
		return
	}

	fr, err := req.toModel()
	if err != nil {
		s.respond(w, http.StatusBadRequest, fitResponse{Error: err.Error()})
		return
	}
	// a panicking fitter fails the request, not the node
	var res model.FitResult
	err = errors.SafeExecute("cluster.Server.Fit", func() error {
		var ferr error
		res, ferr = s.fitter.Fit(r.Context(), fr)
		return ferr
	})
	if err != nil {
		s.logger.Warn("fit failed", log.ErrorKey, err, log.PredictorsKey, len(fr.Predictors))
		s.respond(w, http.StatusUnprocessableEntity, fitResponse{Error: err.Error()})
		return
	}

	s.logger.Debug("fit served",
		log.OperationKey, log.OperationFit,
		log.PredictorsKey, len(fr.Predictors),
		log.R2ScoreKey, res.RSquared(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	s.respond(w, http.StatusOK, fitResponse{
		Predictors: res.Predictors(),
		Residuals:  res.Residuals(),
		RSquared:   res.RSquared(),
	})
}

func (s *Server) respond(w http.ResponseWriter, status int, resp fitResponse) {
	body, err := Encode(resp)
	if err != nil {
		s.logger.Error("encode response", log.ErrorKey, err)
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Encoding", ContentEncoding)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (req fitRequest) toModel() (model.FitRequest, error) {
	names := make([]string, 0, len(req.Predictors)+1)
	names = append(names, req.Dependent)
	names = append(names, req.Predictors...)

	tbl, err := dataset.FromColumns(names, req.Columns)
	if err != nil {
		return model.FitRequest{}, err
	}
	return model.FitRequest{
		Data:       tbl,
		Dependent:  req.Dependent,
		Predictors: req.Predictors,
		Seed:       req.Seed,
	}, nil
}
