package mirror

import (
	"context"
	"fmt"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/lukemcguire/sitecapture/asset"
)

// Scheduler downloads a page's primary assets with bounded concurrency.
type Scheduler struct {
	fetcher     *Fetcher
	concurrency int
}

// NewScheduler creates a Scheduler allowing at most concurrency transfers
// at once. Non-positive values use the default of 10.
func NewScheduler(fetcher *Fetcher, concurrency int) *Scheduler {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Scheduler{fetcher: fetcher, concurrency: concurrency}
}

// FetchAll downloads every URL in set into outDir and returns the mapping
// of the ones that completed. Individual failures are reported as events and
// never stop the remaining transfers. Only cancellation ends the pass early;
// transfers still queued then report themselves cancelled.
func (s *Scheduler) FetchAll(ctx context.Context, set asset.Set, outDir string) *asset.Mapping {
	mapping := asset.NewMapping()
	total := set.Total()
	if total == 0 {
		return mapping
	}

	observer := s.fetcher.observer
	observer.Progress(0, total, StageAssets)

	// Weighted semaphores admit waiters in FIFO order.
	sem := semaphore.NewWeighted(int64(s.concurrency))
	completed := atomic.NewInt64(0)

	group, gctx := errgroup.WithContext(ctx)
	for _, category := range asset.Categories {
		for _, rawURL := range set.URLs(category) {
			tr := transfer{category: category, url: rawURL}
			group.Go(func() error {
				defer func() { observer.Progress(int(completed.Inc()), total, StageAssets) }()

				if err := sem.Acquire(gctx, 1); err != nil {
					// Cancelled while queued; run reports it without touching the network.
					s.fetcher.run(gctx, tr, outDir, mapping)
					return fmt.Errorf("admit [%s] %s: %w", tr.category, tr.url, err)
				}
				defer sem.Release(1)

				s.fetcher.run(gctx, tr, outDir, mapping)
				return nil
			})
		}
	}
	if err := group.Wait(); err != nil {
		s.fetcher.log.Infof("Asset downloads stopped early: %v", err)
	}

	return mapping
}
