package graph

import (
	"context"
	"errors"
	"fmt"
)

// MaxBatchSize is the upstream's hard limit on items per physical $batch
// call. Fixed by the upstream contract, not configurable.
const MaxBatchSize = 20

// BatchCaller issues one physical batch call. Satisfied by *Client.
type BatchCaller interface {
	Batch(ctx context.Context, requests []BatchRequest) ([]BatchResponse, error)
}

// Dispatcher splits logical requests into upstream-sized chunks and
// reassembles per-request outcomes. Chunks are issued sequentially, never
// pipelined, to stay inside the upstream's per-second batch rate limits.
type Dispatcher struct {
	caller BatchCaller
}

// NewDispatcher creates a dispatcher over the given caller.
func NewDispatcher(caller BatchCaller) *Dispatcher {
	return &Dispatcher{caller: caller}
}

// Dispatch issues all requests and returns one outcome per request id.
// Every supplied id appears exactly once in the result, no matter how many
// individual upstream calls fail: a failed chunk synthesizes an error
// outcome for each of its items, and per-item non-2xx statuses are carried
// through as-is. The only error returned is an auth failure, which is
// propagated unchanged for the credential collaborator to handle.
func (d *Dispatcher) Dispatch(ctx context.Context, requests []BatchRequest) (map[string]Outcome, error) {
	outcomes := make(map[string]Outcome, len(requests))

	for start := 0; start < len(requests); start += MaxBatchSize {
		end := start + MaxBatchSize
		if end > len(requests) {
			end = len(requests)
		}
		chunk := requests[start:end]

		responses, err := d.caller.Batch(ctx, chunk)
		if err != nil {
			if errors.Is(err, ErrAuth) {
				return nil, err
			}
			// Total chunk failure: every item gets an error outcome
			// rather than disappearing.
			for _, req := range chunk {
				outcomes[req.ID] = Outcome{Err: err}
			}
			continue
		}

		byID := make(map[string]BatchResponse, len(responses))
		for _, resp := range responses {
			byID[resp.ID] = resp
		}

		for _, req := range chunk {
			resp, ok := byID[req.ID]
			if !ok {
				outcomes[req.ID] = Outcome{Err: fmt.Errorf("upstream returned no response for request %q", req.ID)}
				continue
			}
			outcomes[req.ID] = Outcome{Status: resp.Status, Body: resp.Body}
		}
	}

	return outcomes, nil
}
