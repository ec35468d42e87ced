// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package admission

import (
	"context"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"
)

// tierQueue is a single tier's FIFO backlog: a buffered channel feeding a
// fixed-size worker pool, so admitted jobs for a tier run at exactly that
// tier's declared WorkerConcurrency, in arrival order, with no
// cross-tenant preemption within the tier.
type tierQueue struct {
	jobs  chan func(context.Context)
	depth int64
	pool  *pool.Pool
}

func newTierQueue(workerConcurrency int) *tierQueue {
	if workerConcurrency <= 0 {
		workerConcurrency = 1
	}
	q := &tierQueue{
		jobs: make(chan func(context.Context), workerConcurrency*10),
		pool: pool.New().WithMaxGoroutines(workerConcurrency),
	}
	for i := 0; i < workerConcurrency; i++ {
		q.pool.Go(q.drain)
	}
	return q
}

func (q *tierQueue) drain() {
	for run := range q.jobs {
		atomic.AddInt64(&q.depth, -1)
		run(context.Background())
	}
}

// Submit enqueues run for execution by this tier's worker pool.
func (q *tierQueue) Submit(run func(context.Context)) {
	atomic.AddInt64(&q.depth, 1)
	q.jobs <- run
}

// Depth reports the number of jobs currently waiting (not yet picked up
// by a worker).
func (q *tierQueue) Depth() int {
	return int(atomic.LoadInt64(&q.depth))
}

// Close stops accepting new jobs and waits for in-flight ones to drain.
func (q *tierQueue) Close() {
	close(q.jobs)
	q.pool.Wait()
}
