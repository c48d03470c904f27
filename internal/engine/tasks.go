package engine

import (
	"github.com/Workiva/go-datastructures/queue"
	"go.uber.org/zap"

	"github.com/l1jgo/engine/internal/core/callback"
)

type task struct {
	id callback.Index
	fn func()
}

// taskQueue carries one-shot tasks from any goroutine to a single consumer
// thread. Only the consumer calls drain.
type taskQueue struct {
	name string
	q    *queue.Queue
	log  *zap.Logger
}

func newTaskQueue(name string, log *zap.Logger) *taskQueue {
	return &taskQueue{name: name, q: queue.New(64), log: log}
}

func (t *taskQueue) push(fn func()) callback.Index {
	id := callback.NextIndex()
	if err := t.q.Put(task{id: id, fn: fn}); err != nil {
		t.log.Warn("dropping task scheduled after shutdown",
			zap.String("queue", t.name),
			zap.Uint64("index", uint64(id)),
			zap.Error(err))
	}
	return id
}

// drain runs the tasks queued when it was called. Tasks queued by those tasks
// wait for the next drain.
func (t *taskQueue) drain() int {
	n := t.q.Len()
	if n == 0 {
		return 0
	}
	items, err := t.q.Get(n)
	if err != nil {
		return 0
	}
	for _, item := range items {
		item.(task).fn()
	}
	return len(items)
}

// dispose rejects further tasks and reports how many were never run.
func (t *taskQueue) dispose() int {
	return len(t.q.Dispose())
}
