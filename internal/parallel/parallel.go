// Package parallel provides the data-parallel loops used by build, finalize
// and the query actions.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Ranges runs fn over [0, n) split into half-open chunks of at most grain
// elements, using up to workers goroutines. The first error cancels the
// remaining chunks.
func Ranges(n, grain, workers int, fn func(lo, hi int) error) error {
	if n <= 0 {
		return nil
	}
	if grain <= 0 {
		grain = 1
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += grain {
		lo, hi := lo, min(lo+grain, n)
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			return fn(lo, hi)
		})
	}
	return g.Wait()
}

// ForEach runs fn for each index in [0, n) with up to workers goroutines.
func ForEach(n, workers int, fn func(i int) error) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			return fn(i)
		})
	}
	return g.Wait()
}
