package worker

import (
	"context"
	"sync"

	"github.com/nimasrn/drgame-ledger/pkg/logger"
)

type WorkerHandler[T any] func(ctx context.Context, workerIndex int, job T)

// WorkerManager fans jobs out to a fixed pool of goroutines.
type WorkerManager[T any] struct {
	jobs           chan T
	numberOfWorker int
	do             WorkerHandler[T]
	waiter         sync.WaitGroup
}

func NewWorkerManager[T any](bufferSize, numberOfWorkers int) *WorkerManager[T] {
	if numberOfWorkers <= 0 {
		numberOfWorkers = 1
	}
	return &WorkerManager[T]{
		jobs:           make(chan T, bufferSize),
		numberOfWorker: numberOfWorkers,
	}
}

func (w *WorkerManager[T]) SetWorker(worker WorkerHandler[T]) {
	w.do = worker
}

func (w *WorkerManager[T]) Pending() int {
	return len(w.jobs)
}

// Enqueue blocks while the buffer is full, unless ctx is done first.
func (w *WorkerManager[T]) Enqueue(ctx context.Context, job T) error {
	select {
	case w.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start runs the pool until ctx is cancelled and blocks until every worker returned.
// Jobs still buffered at cancellation are dropped.
func (w *WorkerManager[T]) Start(ctx context.Context) {
	w.waiter.Add(w.numberOfWorker)
	for i := 0; i < w.numberOfWorker; i++ {
		go func(index int) {
			defer w.waiter.Done()
			for {
				select {
				case job := <-w.jobs:
					w.run(ctx, index, job)
				case <-ctx.Done():
					return
				}
			}
		}(i)
	}
	w.waiter.Wait()
	logger.Info("worker pool stopped", "workers", w.numberOfWorker, "dropped", len(w.jobs))
}

func (w *WorkerManager[T]) run(ctx context.Context, index int, job T) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("worker panic recovered", "worker", index, "panic", r)
		}
	}()
	w.do(ctx, index, job)
}
