package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/MasterOfBinary/malbatch/batch"
	"github.com/MasterOfBinary/malbatch/dataset"
)

// ProviderLookup finds a dataset provider by name. *dataset.Registry
// implements it.
type ProviderLookup interface {
	Get(name string) (dataset.Provider, error)
}

// TransformLookup finds a transform by name. *transform.Registry
// implements it.
type TransformLookup interface {
	Get(name string) (batch.Transform, error)
}

// Serve is the worker side of ProcessPool. It reads requests from r, applies
// the named transform to each sample and writes one response per request
// to w, until r is exhausted or ctx is canceled.
//
// Transform failures are reported to the caller in the response; only I/O
// and decoding errors end the loop.
func Serve(ctx context.Context, r io.Reader, w io.Writer, providers ProviderLookup, transforms TransformLookup) error {
	dec := json.NewDecoder(r)
	enc := json.NewEncoder(w)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var req request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("executor: decode request: %w", err)
		}

		if err := enc.Encode(handle(ctx, req, providers, transforms)); err != nil {
			return fmt.Errorf("executor: encode response: %w", err)
		}
	}
}

func handle(ctx context.Context, req request, providers ProviderLookup, transforms TransformLookup) response {
	resp := response{ID: req.ID}

	if req.Sample == nil {
		resp.Error = "request has no sample"
		return resp
	}

	p, err := providers.Get(req.Provider)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}

	t, err := transforms.Get(req.Transform)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}

	v, err := t.Apply(ctx, p, req.Sample)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}

	resp.Result, err = json.Marshal(v)
	if err != nil {
		resp.Result = nil
		resp.Error = fmt.Sprintf("encode result: %v", err)
	}
	return resp
}
