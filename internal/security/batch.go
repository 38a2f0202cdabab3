package security

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// BatchResult pairs each input's index with its sanitization outcome so
// callers can correlate results regardless of completion order.
type BatchResult struct {
	Index  int
	Result ObjectResult
}

// SanitizeBatch sanitizes independent items in fixed-size chunks. Items never
// depend on one another, so chunks run on a bounded worker group; total
// resource use stays proportional to items x per-item bound. Results are
// returned in input order.
func SanitizeBatch(ctx context.Context, items []any, cfg *ObjectConfig) []ObjectResult {
	cfg = cfg.orDefaults()

	results := make([]ObjectResult, len(items))
	if len(items) == 0 {
		return results
	}

	// Small batches are not worth goroutine overhead.
	if len(items) <= cfg.BatchSize {
		for i, item := range items {
			results[i] = SanitizeObject(item, "", cfg)
		}
		return results
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for start := 0; start < len(items); start += cfg.BatchSize {
		end := start + cfg.BatchSize
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]
		offset := start
		g.Go(func() error {
			for i, item := range chunk {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				results[offset+i] = SanitizeObject(item, "", cfg)
			}
			return nil
		})
	}

	// Per-item bounds guarantee termination; a context error just means some
	// slots keep their zero value, which callers see as an empty result.
	_ = g.Wait()
	return results
}
