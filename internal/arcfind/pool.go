package arcfind

import (
	"errors"
	"fmt"
	"sync"
)

// ErrWorkerFailure wraps the first error raised inside a search worker
// pool. The whole search aborts; the computation is deterministic, so a
// retry with identical inputs reproduces the same failure.
var ErrWorkerFailure = errors.New("arcfind: search worker failed")

// runTasks evaluates fn over every key on a fixed pool of workers and
// returns the results in key order. With one worker the keys are evaluated
// synchronously in a plain loop, which yields bit-identical results to the
// parallel path and keeps tests deterministic.
//
// The first worker error or panic aborts the run; remaining queued keys
// are abandoned.
func runTasks[K any](workers int, keys []K, fn func(K) (float64, error)) ([]float64, error) {
	out := make([]float64, len(keys))

	if workers <= 1 {
		for i, key := range keys {
			v, err := fn(key)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrWorkerFailure, err)
			}
			out[i] = v
		}
		return out, nil
	}

	if workers > len(keys) {
		workers = len(keys)
	}

	jobs := make(chan int, len(keys))
	for i := range keys {
		jobs <- i
	}
	close(jobs)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}
	failed := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return firstErr != nil
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					fail(fmt.Errorf("panic: %v", r))
				}
			}()
			for i := range jobs {
				if failed() {
					return
				}
				v, err := fn(keys[i])
				if err != nil {
					fail(err)
					return
				}
				out[i] = v
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkerFailure, firstErr)
	}
	return out, nil
}
