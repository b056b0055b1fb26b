package collect

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/tastygex/internal/snapshot"
)

// fetchOptions streams every task's expiration on a bounded worker pool.
// The first failure cancels the remaining tasks and closes any bundles
// already built.
func (j *Job) fetchOptions(ctx context.Context, tasks []Task) (map[time.Time]*snapshot.OptionsBundle, error) {
	bundles := make(map[time.Time]*snapshot.OptionsBundle, len(tasks))
	if len(tasks) == 0 {
		return bundles, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan Task, len(tasks))
	results := make(chan TaskResult, len(tasks))

	for _, task := range tasks {
		jobs <- task
	}
	close(jobs)

	workers := j.opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(tasks) {
		workers = len(tasks)
	}

	// Start workers
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			j.worker(ctx, workerID, jobs, results)
		}(i)
	}

	// Wait for workers and close results
	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect results
	var firstErr error
	for r := range results {
		if r.Error != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", r.Task, r.Error)
				cancel()
			}
			continue
		}
		bundles[r.Task.Expiration] = r.Bundle
	}

	if firstErr != nil {
		closeAll(bundles)
		return nil, firstErr
	}
	return bundles, nil
}

func (j *Job) worker(ctx context.Context, id int, jobs <-chan Task, results chan<- TaskResult) {
	for task := range jobs {
		if err := ctx.Err(); err != nil {
			results <- TaskResult{Task: task, Error: err}
			continue
		}

		j.logger.Info("Collecting expiration",
			zap.String("task", task.String()),
			zap.Int("worker", id),
			zap.Int("contracts", len(task.Contracts)),
		)

		b, err := j.source.OptionsFromChain(ctx, task.Ticker, task.Expiration, task.Contracts)
		results <- TaskResult{Task: task, Bundle: b, Error: err}
	}
}

func closeAll(bundles map[time.Time]*snapshot.OptionsBundle) {
	for _, b := range bundles {
		_ = b.Close()
	}
}
