package fetch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchResult is the outcome of one request in a batch.
type BatchResult struct {
	Index   int
	Payload []byte
	Err     error
}

// FetchAll runs the requests through the manager with at most parallelism
// operations at a time (0 selects 10). Each request still goes through the
// full cache/dedup/retry pipeline, so duplicate requests in one batch cost a
// single transport call.
//
// The returned slice is indexed like the input; per-request failures are
// reported in place and do not abort the batch. Context cancellation stops
// the remaining work.
func (m *Manager) FetchAll(ctx context.Context, reqs []*Request, parallelism int) []BatchResult {
	if parallelism <= 0 {
		parallelism = 10
	}

	results := make([]BatchResult, len(reqs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, req := range reqs {
		g.Go(func() error {
			payload, err := m.Fetch(ctx, req)
			results[i] = BatchResult{Index: i, Payload: payload, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
