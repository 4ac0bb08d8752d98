package concurrent

import "context"

// WorkerPool bounds how many functions run at once.
type WorkerPool struct {
	maxWorkers int
	sem        chan struct{}
}

// NewWorkerPool creates a new worker pool with the specified max workers
func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = 16
	}
	return &WorkerPool{
		maxWorkers: maxWorkers,
		sem:        make(chan struct{}, maxWorkers),
	}
}

// Acquire reserves a slot and returns its release func. Streaming handlers use
// it to hold the slot for the whole lifetime of a response.
func (wp *WorkerPool) Acquire(ctx context.Context) (func(), error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case wp.sem <- struct{}{}:
		released := false
		return func() {
			if !released {
				released = true
				<-wp.sem
			}
		}, nil
	}
}

// InFlight reports the number of occupied slots.
func (wp *WorkerPool) InFlight() int { return len(wp.sem) }

// Size is the pool capacity.
func (wp *WorkerPool) Size() int { return wp.maxWorkers }
