package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ProcessFunc handles one dequeued item.
type ProcessFunc func(ctx context.Context) error

type item struct {
	process    ProcessFunc
	describe   string
	enqueuedAt time.Time
}

// DepthObserver receives best-effort queue depth updates.
type DepthObserver interface {
	SetQueueDepth(depth int)
}

// UserQueue serializes work per user: one lazily created FIFO worker
// per user id, strict arrival order, at most one item in flight per
// user, full parallelism across users. An item error is reported and
// the worker moves on; the worker goroutine exits once its queue
// drains. Items run on the queue's root context: an abandoned flow
// stops enqueuing, already accepted items still run to completion.
type UserQueue struct {
	root     context.Context
	logger   *slog.Logger
	reporter func(ctx context.Context, userID string, err error)
	observer DepthObserver

	mu      sync.Mutex
	pending map[string][]item
	running map[string]bool
	depth   int
	wg      sync.WaitGroup
}

type UserQueueOptions struct {
	Logger *slog.Logger
	// Reporter is invoked after each failed item, best effort.
	Reporter func(ctx context.Context, userID string, err error)
	Observer DepthObserver
}

func NewUserQueue(root context.Context, opts UserQueueOptions) *UserQueue {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if root == nil {
		root = context.Background()
	}
	return &UserQueue{
		root:     root,
		logger:   logger,
		reporter: opts.Reporter,
		observer: opts.Observer,
		pending:  make(map[string][]item),
		running:  make(map[string]bool),
	}
}

// Enqueue appends work to the user's queue, spawning the user's worker
// if none is alive. Fire and forget.
func (q *UserQueue) Enqueue(userID string, describe string, process ProcessFunc) {
	q.mu.Lock()
	q.pending[userID] = append(q.pending[userID], item{
		process:    process,
		describe:   describe,
		enqueuedAt: time.Now(),
	})
	q.depth++
	spawn := !q.running[userID]
	if spawn {
		q.running[userID] = true
		q.wg.Add(1)
	}
	depth := q.depth
	q.mu.Unlock()

	q.observeDepth(depth)
	if spawn {
		go q.work(userID)
	}
}

func (q *UserQueue) work(userID string) {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		queue := q.pending[userID]
		if len(queue) == 0 {
			// Drained: tear the worker down. The next enqueue spawns a
			// fresh one.
			delete(q.pending, userID)
			delete(q.running, userID)
			q.mu.Unlock()
			return
		}
		next := queue[0]
		q.pending[userID] = queue[1:]
		q.depth--
		depth := q.depth
		q.mu.Unlock()

		q.observeDepth(depth)
		q.run(userID, next)
	}
}

func (q *UserQueue) run(userID string, it item) {
	err := it.process(q.root)
	if err == nil {
		return
	}

	q.logger.Warn("queue_item_failed",
		"user_id", userID,
		"item", it.describe,
		"waited_ms", time.Since(it.enqueuedAt).Milliseconds(),
		"error", err,
	)
	if q.reporter != nil {
		q.reporter(q.root, userID, err)
	}
}

// Drain blocks until every live worker has emptied its queue.
func (q *UserQueue) Drain() {
	q.wg.Wait()
}

func (q *UserQueue) observeDepth(depth int) {
	if q.observer != nil {
		q.observer.SetQueueDepth(depth)
	}
}
