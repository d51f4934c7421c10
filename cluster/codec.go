// Package cluster runs model fits on networked worker nodes.
//
// A worker node serves POST /v1/fit and GET /healthz. Request and response
// bodies are JSON compressed with zstd. The coordinator talks to the nodes
// through RemoteFitter, which implements model.Fitter, so the engine does
// not know whether fits run locally or remotely.
//
// There is no retry. A node that cannot be reached fails the fit with a
// WorkerUnavailableError and the run is aborted.
package cluster

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/YuminosukeSato/spatialpred/pkg/errors"
)

// ContentEncoding is the Content-Encoding of every body.
const ContentEncoding = "zstd"

var decoderPool = sync.Pool{
	New: func() any {
		dec, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderLowmem(false),
		)
		if err != nil {
			panic(fmt.Sprintf("create zstd decoder: %v", err))
		}
		return dec
	},
}

var encoderPool = sync.Pool{
	New: func() any {
		enc, err := zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithEncoderCRC(false),
		)
		if err != nil {
			panic(fmt.Sprintf("create zstd encoder: %v", err))
		}
		return enc
	},
}

// Encode marshals v to JSON and compresses it.
func Encode(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshal body")
	}
	enc := encoderPool.Get().(*zstd.Encoder)
	defer encoderPool.Put(enc)
	return enc.EncodeAll(raw, nil), nil
}

// Decode decompresses data and unmarshals the JSON into v.
func Decode(data []byte, v any) error {
	if len(data) == 0 {
		return errors.NewValueError("cluster.Decode", "empty body")
	}
	dec := decoderPool.Get().(*zstd.Decoder)
	defer decoderPool.Put(dec)

	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return errors.Wrap(err, "zstd decompression failed")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Wrap(err, "unmarshal body")
	}
	return nil
}

// fitRequest is the wire form of model.FitRequest. Only the columns the fit
// needs are sent.
type fitRequest struct {
	Dependent  string               `json:"dependent"`
	Predictors []string             `json:"predictors"`
	Seed       int64                `json:"seed"`
	Columns    map[string][]float64 `json:"columns"`
}

// fitResponse is the wire form of a SingleFit, or an error.
type fitResponse struct {
	Predictors []string  `json:"predictors,omitempty"`
	Residuals  []float64 `json:"residuals,omitempty"`
	RSquared   float64   `json:"r_squared"`
	Error      string    `json:"error,omitempty"`
}
