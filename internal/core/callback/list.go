package callback

import (
	"errors"
	"slices"
	"sync"

	"github.com/l1jgo/engine/internal/metrics"
	"go.uber.org/zap"
)

// ErrUnknownCallback is reported (never returned) when a queued removal
// matches no live entry at flush time.
var ErrUnknownCallback = errors.New("unknown callback index")

// List is a buffered reentrant list. Add and Remove only queue work; the live
// sequence changes exclusively inside Flush. Code iterating Values may
// therefore add or remove entries of the same list, including itself,
// without disturbing the pass in progress.
//
// Flush replaces the live slice instead of editing it, so a slice returned by
// Values stays valid after the lock is released and the lock is never held
// while a caller runs its callbacks.
type List[T any] struct {
	name string
	log  *zap.Logger
	cmp  func(a, b T) int

	mu      sync.Mutex
	live    []Entry[T]
	adds    []Entry[T]
	removes []Index
}

// NewList creates a list whose live sequence keeps enqueue order.
func NewList[T any](name string, log *zap.Logger) *List[T] {
	if log == nil {
		log = zap.NewNop()
	}
	return &List[T]{name: name, log: log}
}

// NewOrderedList creates a list whose live sequence is stable-sorted by cmp
// at every flush that changes it. Entries comparing equal keep enqueue order.
func NewOrderedList[T any](name string, log *zap.Logger, cmp func(a, b T) int) *List[T] {
	l := NewList[T](name, log)
	l.cmp = cmp
	return l
}

// Add queues value for insertion and returns its Index. The entry becomes
// visible after the next Flush.
func (l *List[T]) Add(value T) Index {
	id := NextIndex()
	l.mu.Lock()
	l.adds = append(l.adds, Entry[T]{ID: id, Value: value})
	l.mu.Unlock()
	return id
}

// Remove queues id for removal at the next Flush.
func (l *List[T]) Remove(id Index) {
	l.mu.Lock()
	l.removes = append(l.removes, id)
	l.mu.Unlock()
}

// TryRemove reports whether id is in the live sequence and, if so, queues it
// for removal. The removal itself still waits for the next Flush.
func (l *List[T]) TryRemove(id Index) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if indexOf(l.live, id) < 0 {
		return false
	}
	l.removes = append(l.removes, id)
	return true
}

// Values returns the live sequence. The slice must be treated as read-only.
func (l *List[T]) Values() []Entry[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.live
}

// Len returns the length of the live sequence.
func (l *List[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.live)
}

// Pending reports whether any mutation is waiting for a flush.
func (l *List[T]) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.adds) > 0 || len(l.removes) > 0
}

// Flush applies queued removals, then appends queued additions in enqueue
// order. A removal of an entry added since the last flush cancels that
// addition. A removal matching neither is logged and otherwise ignored.
func (l *List[T]) Flush() {
	l.mu.Lock()
	if len(l.adds) == 0 && len(l.removes) == 0 {
		l.mu.Unlock()
		return
	}

	next := make([]Entry[T], len(l.live), len(l.live)+len(l.adds))
	copy(next, l.live)
	adds := l.adds

	var unknown []Index
	for _, id := range l.removes {
		if i := indexOf(next, id); i >= 0 {
			next = slices.Delete(next, i, i+1)
			continue
		}
		if i := indexOf(adds, id); i >= 0 {
			adds = slices.Delete(adds, i, i+1)
			continue
		}
		unknown = append(unknown, id)
	}

	next = append(next, adds...)
	if l.cmp != nil {
		slices.SortStableFunc(next, func(a, b Entry[T]) int {
			return l.cmp(a.Value, b.Value)
		})
	}

	l.live = next
	l.adds = nil
	l.removes = nil
	l.mu.Unlock()

	for _, id := range unknown {
		metrics.UnknownRemovals.WithLabelValues(l.name).Inc()
		l.log.Warn("attempted to remove unknown callback",
			zap.String("list", l.name),
			zap.Uint64("index", uint64(id)),
			zap.Error(ErrUnknownCallback))
	}
}

func indexOf[T any](entries []Entry[T], id Index) int {
	return slices.IndexFunc(entries, func(e Entry[T]) bool { return e.ID == id })
}
