// Package workerpool runs a function over a slice of items with bounded
// concurrency.
package workerpool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Run executes fn for each item in items using up to workers goroutines.
// The first non-nil error cancels the context passed to the remaining calls
// and is returned once every started call has finished. Items not yet
// started when the context is cancelled are skipped.
func Run[T any](parent context.Context, items []T, workers int, fn func(context.Context, T) error) error {
	if len(items) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(parent)
	g.SetLimit(workers)

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, item)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	// Items skipped because the parent was cancelled are a failure too.
	return parent.Err()
}
