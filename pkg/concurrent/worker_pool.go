// Package concurrent runs independent jobs on a fixed number of goroutines.
package concurrent

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

type JobFunc[T any, G any] func(ctx context.Context, job T) (G, error)

// Job carries its submission index so results can be put back in order.
type Job[T any] struct {
	Index int
	Value T
}

type Result[G any] struct {
	Index int
	Value G
	Err   error
}

// WorkerPool feeds jobs to numWorkers goroutines. Results arrive in completion order.
type WorkerPool[T any, G any] struct {
	numWorkers int
	jobQueue   chan Job[T]
	results    chan Result[G]
	wg         sync.WaitGroup
}

func NewWorkerPool[T any, G any](numWorkers, jobQueueSize int) *WorkerPool[T, G] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &WorkerPool[T, G]{
		numWorkers: numWorkers,
		jobQueue:   make(chan Job[T], jobQueueSize),
		results:    make(chan Result[G], jobQueueSize),
	}
}

// worker keeps draining the queue after ctx is done so pending jobs report the cancellation.
func (wp *WorkerPool[T, G]) worker(ctx context.Context, jobFunc JobFunc[T, G]) {
	defer wp.wg.Done()
	for job := range wp.jobQueue {
		if err := ctx.Err(); err != nil {
			wp.results <- Result[G]{Index: job.Index, Err: err}
			continue
		}
		v, err := jobFunc(ctx, job.Value)
		wp.results <- Result[G]{Index: job.Index, Value: v, Err: err}
	}
}

func (wp *WorkerPool[T, G]) Start(ctx context.Context, jobFunc JobFunc[T, G]) {
	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, jobFunc)
	}
}

func (wp *WorkerPool[T, G]) AddJob(index int, job T) {
	wp.jobQueue <- Job[T]{Index: index, Value: job}
}

// Close signals that no more jobs will be added.
func (wp *WorkerPool[T, G]) Close() {
	close(wp.jobQueue)
}

// Wait blocks until every worker has returned and closes the results channel. Call Close first.
func (wp *WorkerPool[T, G]) Wait() {
	wp.wg.Wait()
	close(wp.results)
}

func (wp *WorkerPool[T, G]) CollectResults() <-chan Result[G] {
	return wp.results
}

// Map runs jobFunc over jobs and returns the results in job order. Every failed job is
// reported in the joined error.
func Map[T any, G any](ctx context.Context, numWorkers int, jobs []T, jobFunc JobFunc[T, G]) ([]G, error) {
	wp := NewWorkerPool[T, G](numWorkers, len(jobs))
	wp.Start(ctx, jobFunc)
	for i, job := range jobs {
		wp.AddJob(i, job)
	}
	wp.Close()
	wp.Wait()

	out := make([]G, len(jobs))
	var errs []error
	for r := range wp.CollectResults() {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("job %d: %w", r.Index, r.Err))
			continue
		}
		out[r.Index] = r.Value
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}
