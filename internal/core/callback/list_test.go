package callback

import (
	"cmp"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/l1jgo/engine/internal/metrics"
)

func values[T any](l *List[T]) []T {
	var out []T
	for _, e := range l.Values() {
		out = append(out, e.Value)
	}
	return out
}

func TestNextIndex_Monotonic(t *testing.T) {
	a := NextIndex()
	b := NextIndex()
	assert.Greater(t, uint64(b), uint64(a))
	assert.NotZero(t, a)
}

func TestList_AddNotVisibleUntilFlush(t *testing.T) {
	l := NewList[string]("test", nil)

	id := l.Add("a")
	assert.NotZero(t, id)
	assert.Empty(t, l.Values())
	assert.True(t, l.Pending())

	l.Flush()
	assert.Equal(t, []string{"a"}, values(l))
	assert.False(t, l.Pending())
}

func TestList_RemoveNotVisibleUntilFlush(t *testing.T) {
	l := NewList[string]("test", nil)
	id := l.Add("a")
	l.Flush()

	l.Remove(id)
	assert.Equal(t, []string{"a"}, values(l))

	l.Flush()
	assert.Empty(t, l.Values())
}

func TestList_FlushAppliesRemovalsThenAdditions(t *testing.T) {
	l := NewList[string]("test", nil)
	a := l.Add("a")
	l.Add("b")
	c := l.Add("c")
	l.Flush()

	l.Add("d")
	l.Remove(a)
	l.Add("e")
	l.Remove(c)

	before := l.Values()
	assert.Len(t, before, 3)

	l.Flush()
	assert.Equal(t, []string{"b", "d", "e"}, values(l))
	// the slice observed before the flush is untouched
	assert.Equal(t, "a", before[0].Value)
	assert.Equal(t, "c", before[2].Value)
}

func TestList_FlushEmptyQueuesIsNoop(t *testing.T) {
	l := NewList[int]("test", nil)
	l.Add(1)
	l.Flush()
	first := l.Values()

	l.Flush()
	second := l.Values()
	require.Len(t, second, 1)
	assert.Same(t, &first[0], &second[0])
}

func TestList_TryRemove(t *testing.T) {
	l := NewList[string]("test", nil)
	id := l.Add("a")

	assert.False(t, l.TryRemove(id), "not yet flushed")

	l.Flush()
	assert.True(t, l.TryRemove(id))
	assert.Equal(t, 1, l.Len(), "removal is still deferred")

	l.Flush()
	assert.Equal(t, 0, l.Len())
	assert.False(t, l.TryRemove(id))
}

func TestList_RemoveBeforeFirstFlushCancelsAdd(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	l := NewList[string]("cancel-add", zap.New(core))
	l.Add("a")
	b := l.Add("b")
	l.Remove(b)
	l.Add("c")

	l.Flush()
	assert.Equal(t, []string{"a", "c"}, values(l))
	assert.Zero(t, logs.Len(), "a cancelled addition is not an unknown removal")

	// the index is gone for good
	assert.False(t, l.TryRemove(b))
	l.Remove(b)
	l.Flush()
	assert.Equal(t, []string{"a", "c"}, values(l))
	assert.Equal(t, 1, logs.FilterMessage("attempted to remove unknown callback").Len())
}

func TestList_UnknownRemovalIsLoggedNotFatal(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	l := NewList[string]("unknown-removal", zap.New(core))
	before := testutil.ToFloat64(metrics.UnknownRemovals.WithLabelValues("unknown-removal"))

	id := l.Add("a")
	l.Flush()
	l.Remove(id)
	l.Remove(id)
	l.Remove(Index(1 << 62))
	l.Flush()

	assert.Empty(t, l.Values())
	entries := logs.FilterMessage("attempted to remove unknown callback").All()
	assert.Len(t, entries, 2)
	after := testutil.ToFloat64(metrics.UnknownRemovals.WithLabelValues("unknown-removal"))
	assert.Equal(t, 2.0, after-before)
}

func TestList_SelfRemovalDuringIteration(t *testing.T) {
	l := NewList[func()]("test", nil)
	var calls []string
	var selfID Index

	l.Add(func() { calls = append(calls, "first") })
	selfID = l.Add(func() {
		calls = append(calls, "self")
		l.Remove(selfID)
	})
	l.Add(func() { calls = append(calls, "last") })
	l.Flush()

	for _, e := range l.Values() {
		e.Value()
	}
	assert.Equal(t, []string{"first", "self", "last"}, calls)

	calls = nil
	l.Flush()
	for _, e := range l.Values() {
		e.Value()
	}
	assert.Equal(t, []string{"first", "last"}, calls)
}

func TestList_AddDuringIterationDeferredToNextPass(t *testing.T) {
	l := NewList[func()]("test", nil)
	count := 0
	l.Add(func() {
		count++
		l.Add(func() { count += 100 })
	})
	l.Flush()

	for _, e := range l.Values() {
		e.Value()
	}
	assert.Equal(t, 1, count)

	l.Flush()
	assert.Equal(t, 2, l.Len())
}

func TestOrderedList_StableByKey(t *testing.T) {
	type item struct {
		tier int
		name string
	}
	l := NewOrderedList[item]("ordered", nil, func(a, b item) int { return cmp.Compare(a.tier, b.tier) })

	l.Add(item{2, "std-1"})
	l.Add(item{4, "last"})
	l.Add(item{0, "first"})
	l.Add(item{2, "std-2"})
	l.Flush()
	l.Add(item{2, "std-3"})
	l.Add(item{1, "early"})
	l.Flush()

	var names []string
	for _, e := range l.Values() {
		names = append(names, e.Value.name)
	}
	assert.Equal(t, []string{"first", "early", "std-1", "std-2", "std-3", "last"}, names)
}

func TestList_ConcurrentMutationDoesNotChangeSnapshot(t *testing.T) {
	l := NewList[int]("concurrent", nil)
	for i := 0; i < 10; i++ {
		l.Add(i)
	}
	l.Flush()
	snapshot := l.Values()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := l.Add(i)
				l.Remove(id)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, snapshot, l.Values())
	assert.Len(t, l.Values(), 10)
}
