package utils

import (
	"context"
	"sync"
)

// Job is a unit of work run by the pool. It receives the pool context.
type Job func(ctx context.Context)

// WorkerPool runs jobs on a fixed number of goroutines.
type WorkerPool struct {
	ctx       context.Context
	jobQueue  chan Job
	waitGroup sync.WaitGroup
}

// NewWorkerPool creates a new WorkerPool with the specified number of workers.
// Jobs still queued when ctx is cancelled are dropped.
func NewWorkerPool(ctx context.Context, workers int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}

	pool := &WorkerPool{
		ctx:      ctx,
		jobQueue: make(chan Job, workers),
	}

	pool.waitGroup.Add(workers)
	for i := 0; i < workers; i++ {
		go pool.worker()
	}

	return pool
}

func (wp *WorkerPool) worker() {
	defer wp.waitGroup.Done()
	for job := range wp.jobQueue {
		if wp.ctx.Err() != nil {
			continue
		}
		job(wp.ctx)
	}
}

// Submit queues a job. It reports false when the pool context is done.
func (wp *WorkerPool) Submit(job Job) bool {
	select {
	case <-wp.ctx.Done():
		return false
	case wp.jobQueue <- job:
		return true
	}
}

// Shutdown waits for queued jobs to finish and stops the workers.
func (wp *WorkerPool) Shutdown() {
	close(wp.jobQueue)
	wp.waitGroup.Wait()
}
