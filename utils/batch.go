package utils

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Range is a half-open interval [Start, End) of row indices
type Range struct {
	Start int
	End   int
}

// Len returns the number of rows covered by the range
func (r Range) Len() int {
	return r.End - r.Start
}

// Batchify splits a slice into batches of specified size
func Batchify[T any](items []T, batchSize int) [][]T {
	if batchSize <= 0 {
		panic("batch size must be positive")
	}

	batches := make([][]T, 0, (len(items)+batchSize-1)/batchSize)
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[i:end])
	}
	return batches
}

// Ranges splits n rows into consecutive ranges of at most batchSize rows
func Ranges(n, batchSize int) []Range {
	if batchSize <= 0 {
		panic("batch size must be positive")
	}

	ranges := make([]Range, 0, (n+batchSize-1)/batchSize)
	for i := 0; i < n; i += batchSize {
		end := i + batchSize
		if end > n {
			end = n
		}
		ranges = append(ranges, Range{Start: i, End: end})
	}
	return ranges
}

// ForEachRange calls worker once per range of n rows. With workers <= 1 the
// ranges are processed in order on the calling goroutine; otherwise up to
// workers ranges run concurrently and the first error cancels the rest.
func ForEachRange(
	ctx context.Context,
	n, batchSize, workers int,
	worker func(ctx context.Context, r Range) error,
) error {
	ranges := Ranges(n, batchSize)

	if workers <= 1 {
		for i, r := range ranges {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := worker(ctx, r); err != nil {
				return fmt.Errorf("batch %d failed: %w", i, err)
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, r := range ranges {
		i, r := i, r
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := worker(gctx, r); err != nil {
				return fmt.Errorf("batch %d failed: %w", i, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// ProgressBar logs progress of a long-running loop
type ProgressBar struct {
	total   int
	current int
	every   int
	desc    string
	log     logrus.FieldLogger
	mu      sync.Mutex
}

// NewProgressBar creates a new progress bar that logs every tenth of total
func NewProgressBar(total int, desc string, log logrus.FieldLogger) *ProgressBar {
	every := total / 10
	if every < 1 {
		every = 1
	}
	return &ProgressBar{
		total: total,
		every: every,
		desc:  desc,
		log:   log,
	}
}

// Increment increments the progress bar
func (pb *ProgressBar) Increment() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.current++
	if pb.log == nil {
		return
	}
	if pb.current%pb.every == 0 || pb.current == pb.total {
		pb.log.WithFields(logrus.Fields{
			"done":    pb.current,
			"total":   pb.total,
			"percent": fmt.Sprintf("%.1f", pb.percent()),
		}).Info(pb.desc)
	}
}

// Current returns the number of completed steps
func (pb *ProgressBar) Current() int {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return pb.current
}

func (pb *ProgressBar) percent() float64 {
	if pb.total <= 0 {
		return 100
	}
	return float64(pb.current) / float64(pb.total) * 100
}
