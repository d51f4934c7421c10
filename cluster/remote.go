package cluster

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/YuminosukeSato/spatialpred/core/model"
	"github.com/YuminosukeSato/spatialpred/core/parallel"
	"github.com/YuminosukeSato/spatialpred/pkg/errors"
	"github.com/YuminosukeSato/spatialpred/pkg/log"
)

// RemoteFitter sends fits to worker nodes in round-robin order. It is safe
// for concurrent use.
type RemoteFitter struct {
	addrs  []string
	client *http.Client
	logger log.Logger
	next   atomic.Uint64
}

// RemoteOption configures a RemoteFitter.
type RemoteOption func(*RemoteFitter)

// WithHTTPClient replaces the default client, which has no timeout.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(f *RemoteFitter) { f.client = c }
}

// WithRemoteLogger sets the logger.
func WithRemoteLogger(l log.Logger) RemoteOption {
	return func(f *RemoteFitter) { f.logger = l }
}

// NewRemoteFitter creates a RemoteFitter for host:port addresses.
func NewRemoteFitter(addrs []string, opts ...RemoteOption) (*RemoteFitter, error) {
	if len(addrs) == 0 {
		return nil, errors.NewConfigError("pool.nodes", "at least one worker node is required", addrs)
	}
	f := &RemoteFitter{
		addrs:  append([]string(nil), addrs...),
		client: &http.Client{},
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = log.Default()
	}
	f.logger = f.logger.With(log.ComponentKey, "cluster.remote")
	return f, nil
}

// FromPool creates a RemoteFitter for the nodes of cfg, which all listen on
// cfg.Port.
func FromPool(cfg parallel.PoolConfig, opts ...RemoteOption) (*RemoteFitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	addrs := make([]string, len(cfg.Nodes))
	for i, n := range cfg.Nodes {
		addrs[i] = net.JoinHostPort(n, strconv.Itoa(cfg.Port))
	}
	return NewRemoteFitter(addrs, opts...)
}

// Nodes returns the worker addresses.
func (f *RemoteFitter) Nodes() []string {
	return append([]string(nil), f.addrs...)
}

// Ping checks every node's health endpoint and returns a
// WorkerUnavailableError for the first node that does not answer.
func (f *RemoteFitter) Ping(ctx context.Context) error {
	for _, addr := range f.addrs {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+HealthPath, nil)
		if err != nil {
			return errors.NewWorkerUnavailableError(addr, err)
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return errors.NewWorkerUnavailableError(addr, err)
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return errors.NewWorkerUnavailableError(addr, errors.Newf("health check returned %s", resp.Status))
		}
	}
	return nil
}

// Fit implements model.Fitter. The columns of the dependent variable and
// the predictors are sent; the rest of the table stays local.
func (f *RemoteFitter) Fit(ctx context.Context, req model.FitRequest) (model.FitResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	wire := fitRequest{
		Dependent:  req.Dependent,
		Predictors: req.Predictors,
		Seed:       req.Seed,
		Columns:    make(map[string][]float64, len(req.Predictors)+1),
	}
	for _, name := range append([]string{req.Dependent}, req.Predictors...) {
		col, err := req.Data.Column(name)
		if err != nil {
			return nil, err
		}
		wire.Columns[name] = col
	}
	body, err := Encode(wire)
	if err != nil {
		return nil, err
	}

	addr := f.addrs[(f.next.Add(1)-1)%uint64(len(f.addrs))]
	start := time.Now()
	resp, err := f.post(ctx, addr, body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.logger.Error("worker unavailable", log.NodeKey, addr, log.ErrorKey, err)
		return nil, errors.NewWorkerUnavailableError(addr, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return nil, errors.NewWorkerUnavailableError(addr, err)
	}
	var out fitResponse
	if err := Decode(raw, &out); err != nil {
		return nil, errors.NewWorkerUnavailableError(addr, errors.Wrapf(err, "response status %s", resp.Status))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusBadRequest:
		return nil, errors.NewModelError("cluster.RemoteFitter", "remote fit on "+addr, errors.New(out.Error))
	default:
		return nil, errors.NewWorkerUnavailableError(addr, errors.Newf("status %s: %s", resp.Status, out.Error))
	}

	f.logger.Debug("remote fit",
		log.NodeKey, addr,
		log.PredictorsKey, len(req.Predictors),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return model.NewSingleFit(out.Predictors, out.Residuals, out.RSquared), nil
}

func (f *RemoteFitter) post(ctx context.Context, addr string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+addr+FitPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", ContentEncoding)
	return f.client.Do(req)
}
