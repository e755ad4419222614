// Package jobqueue implements the FIFO-per-run-id job queue and bounded
// worker pool described in spec.md §4.10/§5: a municipality job fans into
// discovery jobs; a discovery job, once its adapter runs, enqueues one
// extraction job per candidate that clears the prefilter; an extraction job
// runs the classifier and resolver and flushes its batch of DAO writes on
// completion.
//
// The payload shape follows ternarybob-quaero's CrawlJob (parent/child
// hierarchy, a config snapshot, a heartbeat field for idle detection); the
// dispatch loop follows the teacher's internal/eventbus "pop, dispatch,
// never let one job's panic take down the worker" idiom.
package jobqueue

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/bess-forensic/crawler/internal/types"
)

// Queue is a FIFO queue of jobs keyed by run_id (spec.md §4.10: "FIFO queue
// per tenant (keyed run_id)"). Jobs across different run_ids are independent;
// jobs within one run_id are delivered in submission order.
type Queue struct {
	mu     sync.Mutex
	lanes  map[string][]types.Job
	order  []string
	notify chan struct{}
}

func NewQueue() *Queue {
	return &Queue{
		lanes:  make(map[string][]types.Job),
		notify: make(chan struct{}, 1),
	}
}

// Push enqueues job onto its run_id's lane.
func (q *Queue) Push(job types.Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.lanes[job.RunID]; !ok {
		q.order = append(q.order, job.RunID)
	}
	q.lanes[job.RunID] = append(q.lanes[job.RunID], job)
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pop removes and returns the oldest job from the least-recently-served
// run_id lane (round robin across lanes so one run_id cannot starve another),
// or (types.Job{}, false) if the queue is empty.
func (q *Queue) Pop() (types.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, runID := range q.order {
		lane := q.lanes[runID]
		if len(lane) == 0 {
			continue
		}
		job := lane[0]
		q.lanes[runID] = lane[1:]
		if len(q.lanes[runID]) == 0 {
			delete(q.lanes, runID)
			q.order = append(q.order[:i], q.order[i+1:]...)
		} else {
			// rotate this lane to the back so the next Pop serves a different run_id
			q.order = append(append(q.order[:i], q.order[i+1:]...), runID)
		}
		return job, true
	}
	return types.Job{}, false
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	total := 0
	for _, lane := range q.lanes {
		total += len(lane)
	}
	return total
}

// Handler dispatches one job to the adapter or extraction routine
// appropriate for its Type (spec.md §4.10). A Handler must never panic the
// worker; Run recovers defensively regardless.
type Handler func(ctx context.Context, job types.Job) error

// Pool runs a bounded number of workers pulling from a Queue, grounded on the
// teacher's eventbus dispatch loop but using golang.org/x/sync/semaphore for
// the global concurrency cap (spec.md §5: "parallel workers, each internally
// sequential per job").
type Pool struct {
	Queue       *Queue
	Handler     Handler
	Concurrency int64
}

func NewPool(queue *Queue, handler Handler, concurrency int64) *Pool {
	return &Pool{Queue: queue, Handler: handler, Concurrency: concurrency}
}

// Run dispatches queued jobs until ctx is cancelled, then waits for the
// in-flight jobs and returns; an empty queue does not end it, Run waits for
// the next Push instead. Each job runs under its own recover so one job's panic
// degrades to a single failed job rather than killing the worker pool
// (spec.md §5 cooperative-cancellation model).
func (p *Pool) Run(ctx context.Context) {
	sem := semaphore.NewWeighted(p.Concurrency)
	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		default:
		}

		job, ok := p.Queue.Pop()
		if !ok {
			select {
			case <-ctx.Done():
				wg.Wait()
				return
			case <-p.Queue.notify:
				continue
			}
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return
		}
		wg.Add(1)
		go func(j types.Job) {
			defer sem.Release(1)
			defer wg.Done()
			p.runOne(ctx, j)
		}(job)
	}
}

func (p *Pool) runOne(ctx context.Context, job types.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = nil
		}
	}()
	return p.Handler(ctx, job)
}
