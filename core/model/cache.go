package model

import (
	"context"
	"encoding/binary"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"
)

// CachedFitter memoizes fits by dependent variable, predictor set and seed.
// Predictor order does not affect the key. Concurrent requests for the same
// key share one call to the inner Fitter. Failed fits are not cached.
//
// A CachedFitter assumes every request refers to the same data table; the
// engine creates one per run.
type CachedFitter struct {
	inner Fitter

	mu      sync.RWMutex
	results map[uint64]FitResult
	group   singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedFitter wraps inner with a fit cache.
func NewCachedFitter(inner Fitter) *CachedFitter {
	return &CachedFitter{
		inner:   inner,
		results: make(map[uint64]FitResult),
	}
}

// Key hashes the dependent variable, the sorted predictor names and the seed.
func Key(req FitRequest) uint64 {
	preds := append([]string(nil), req.Predictors...)
	sort.Strings(preds)

	d := xxhash.New()
	_, _ = d.WriteString(req.Dependent)
	_, _ = d.Write([]byte{0})
	for _, p := range preds {
		_, _ = d.WriteString(p)
		_, _ = d.Write([]byte{0})
	}
	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], uint64(req.Seed))
	_, _ = d.Write(seed[:])
	return d.Sum64()
}

// Fit implements Fitter.
func (c *CachedFitter) Fit(ctx context.Context, req FitRequest) (FitResult, error) {
	key := Key(req)

	c.mu.RLock()
	res, ok := c.results[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return res, nil
	}

	v, err, _ := c.group.Do(strconv.FormatUint(key, 16), func() (interface{}, error) {
		c.misses.Add(1)
		res, err := c.inner.Fit(ctx, req)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.results[key] = res
		c.mu.Unlock()
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(FitResult), nil
}

// Stats returns the number of cache hits and inner fits so far.
func (c *CachedFitter) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Len returns the number of cached results.
func (c *CachedFitter) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.results)
}
