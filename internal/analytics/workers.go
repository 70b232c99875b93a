package analytics

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the per-stage fan-out used when none is configured.
const DefaultWorkers = 4

// forEach runs fn for every index in [0, n) on at most workers goroutines
// and waits for all of them. fn writes its result into a slot owned by its
// index, so no locking is needed.
func forEach(ctx context.Context, n, workers int, fn func(i int) error) error {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range n {
		if gCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			return fn(i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
