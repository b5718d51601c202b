package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// fanOut runs fn for every index with at most limit calls in flight. Each
// call must write only its own result slot; the caller joins the slots in
// index order. The first error cancels the remaining calls.
func fanOut(ctx context.Context, limit, n int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	return g.Wait()
}
