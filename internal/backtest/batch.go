package backtest

import (
	"context"

	"golang.org/x/sync/errgroup"

	"tradesim/internal/domain"
)

// RunBatch executes independent requests concurrently against the same
// engine, at most workers at a time, and returns results in request order.
// Each run owns its own simulation state, so the only synchronization point
// is result aggregation. The first run error cancels the remaining runs.
func RunBatch(ctx context.Context, eng Engine, reqs []domain.RunRequest, workers int) ([]*domain.RunResult, error) {
	if workers < 1 {
		workers = 1
	}

	results := make([]*domain.RunResult, len(reqs))
	sem := make(chan struct{}, workers)

	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			res, err := eng.Run(gctx, req)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
