package infra

import (
	"context"
	"sync"
)

// ParallelProcess runs processor over items with bounded concurrency and
// returns results and errors positionally aligned with the input.
func ParallelProcess[T, R any](ctx context.Context, items []T, workers int, processor func(context.Context, T) (R, error)) ([]R, []error) {
	if workers <= 0 {
		workers = 1
	}
	if len(items) == 0 {
		return nil, nil
	}

	results := make([]R, len(items))
	errs := make([]error, len(items))

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(idx int, data T) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				errs[idx] = ctx.Err()
				return
			}

			results[idx], errs[idx] = processor(ctx, data)
		}(i, item)
	}

	wg.Wait()
	return results, errs
}
