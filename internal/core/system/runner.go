package system

import (
	"time"

	"github.com/l1jgo/engine/internal/core/callback"
	"go.uber.org/zap"
)

// Runner executes registered callbacks in Ordering order each tick.
// Registration and removal may happen from any goroutine, including from a
// callback running inside Tick; changes take effect at the next Tick.
type Runner struct {
	callbacks *callback.List[Entry]
}

func NewRunner(name string, log *zap.Logger) *Runner {
	return &Runner{
		callbacks: callback.NewOrderedList[Entry](name, log, compareEntries),
	}
}

func (r *Runner) Register(fn Callback, ordering Ordering) callback.Index {
	return r.callbacks.Add(Entry{Fn: fn, Ordering: ordering})
}

func (r *Runner) Unregister(id callback.Index) {
	r.callbacks.Remove(id)
}

// TryUnregister reports whether id was live before queueing its removal.
func (r *Runner) TryUnregister(id callback.Index) bool {
	return r.callbacks.TryRemove(id)
}

// Tick flushes pending registrations and invokes every callback once.
// It returns the number of callbacks invoked.
func (r *Runner) Tick(dt time.Duration) int {
	r.callbacks.Flush()
	entries := r.callbacks.Values()
	for _, e := range entries {
		e.Value.Fn(dt)
	}
	return len(entries)
}

// Len returns the number of callbacks that the next Tick would see without
// a flush.
func (r *Runner) Len() int {
	return r.callbacks.Len()
}
