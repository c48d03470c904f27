package event

import (
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
	"go.uber.org/zap"

	"github.com/l1jgo/engine/internal/core/callback"
	"github.com/l1jgo/engine/internal/core/system"
)

// Handler receives envelopes whose TypeID matches its registration.
type Handler struct {
	Fn       func(Envelope)
	Ordering system.Ordering
}

// Bus queues events for one target thread and delivers them when that thread
// calls Drain. Emitted events are never delivered synchronously.
type Bus struct {
	target TargetThread
	log    *zap.Logger

	mu      sync.Mutex // protects pending only
	pending []Envelope

	handlers cmap.ConcurrentMap[string, *callback.List[Handler]]
	owners   cmap.ConcurrentMap[callback.Index, string]
}

func NewBus(target TargetThread, log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		target:   target,
		log:      log,
		handlers: cmap.New[*callback.List[Handler]](),
		owners: cmap.NewWithCustomShardingFunction[callback.Index, string](func(id callback.Index) uint32 {
			return uint32(id)
		}),
	}
}

func (b *Bus) Target() TargetThread { return b.target }

// Register adds a handler for typeID. It becomes active at the next Flush.
func (b *Bus) Register(typeID string, fn func(Envelope), ordering system.Ordering) callback.Index {
	list := b.handlers.Upsert(typeID, nil, func(exist bool, cur, _ *callback.List[Handler]) *callback.List[Handler] {
		if exist {
			return cur
		}
		return callback.NewOrderedList[Handler](b.target.String()+"-handlers:"+typeID, b.log, compareHandlers)
	})
	id := list.Add(Handler{Fn: fn, Ordering: ordering})
	b.owners.Set(id, typeID)
	return id
}

// Unregister queues removal of a handler. Unknown indices are logged.
func (b *Bus) Unregister(id callback.Index) {
	typeID, ok := b.owners.Pop(id)
	if !ok {
		b.log.Warn("attempted to remove unknown event handler",
			zap.Stringer("thread", b.target),
			zap.Uint64("index", uint64(id)),
			zap.Error(callback.ErrUnknownCallback))
		return
	}
	if list, ok := b.handlers.Get(typeID); ok {
		list.Remove(id)
	}
}

// TryUnregister reports whether the handler was live and queues its removal.
func (b *Bus) TryUnregister(id callback.Index) bool {
	typeID, ok := b.owners.Get(id)
	if !ok {
		return false
	}
	list, ok := b.handlers.Get(typeID)
	if !ok || !list.TryRemove(id) {
		return false
	}
	b.owners.Remove(id)
	return true
}

// Emit queues ev for this bus's thread.
func (b *Bus) Emit(ev Event) {
	b.Enqueue(Wrap(ev, b.target))
}

// Enqueue queues an envelope. Envelopes addressed to another thread are dropped.
func (b *Bus) Enqueue(env Envelope) {
	if env.Target != b.target {
		b.log.Warn("dropping event addressed to another thread",
			zap.String("type", env.TypeID),
			zap.Stringer("bus", b.target),
			zap.Stringer("target", env.Target))
		return
	}
	b.mu.Lock()
	b.pending = append(b.pending, env)
	b.mu.Unlock()
}

// Flush applies queued handler registrations and removals.
func (b *Bus) Flush() {
	b.handlers.IterCb(func(_ string, list *callback.List[Handler]) {
		list.Flush()
	})
}

// Drain delivers every pending envelope to the handlers registered for its
// type, in Ordering order. The queue is taken out from under its lock before
// any handler runs, so a handler may emit further events; those are delivered
// by the next Drain. It returns the number of envelopes drained.
func (b *Bus) Drain() int {
	b.mu.Lock()
	queued := b.pending
	b.pending = nil
	b.mu.Unlock()

	for _, env := range queued {
		list, ok := b.handlers.Get(env.TypeID)
		if !ok {
			continue
		}
		for _, h := range list.Values() {
			h.Value.Fn(env)
		}
	}
	return len(queued)
}

// Pending returns the number of envelopes waiting for Drain.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Subscribe registers a typed handler for events of type T on b.
func Subscribe[T Event](b *Bus, fn func(T), ordering system.Ordering) callback.Index {
	var zero T
	typeID := zero.EventType()
	return b.Register(typeID, func(env Envelope) {
		ev, ok := env.Payload.(T)
		if !ok {
			b.log.Warn("event payload does not match handler type",
				zap.String("type", typeID))
			return
		}
		fn(ev)
	}, ordering)
}

func compareHandlers(a, b Handler) int {
	return int(a.Ordering) - int(b.Ordering)
}
