package system

import (
	"fmt"
	"time"
)

// Ordering defines invocation priority within a single tick.
type Ordering int

const (
	OrderingFirst    Ordering = iota // 0: before everything else
	OrderingEarly                    // 1
	OrderingStandard                 // 2: default for most callbacks
	OrderingLate                     // 3
	OrderingLast                     // 4: after everything else
)

func (o Ordering) String() string {
	switch o {
	case OrderingFirst:
		return "First"
	case OrderingEarly:
		return "Early"
	case OrderingStandard:
		return "Standard"
	case OrderingLate:
		return "Late"
	case OrderingLast:
		return "Last"
	default:
		return fmt.Sprintf("Unknown(%d)", int(o))
	}
}

// Callback is invoked once per tick with the time elapsed since the previous tick.
type Callback func(dt time.Duration)

// Entry is a callback tagged with its Ordering.
type Entry struct {
	Fn       Callback
	Ordering Ordering
}

func compareEntries(a, b Entry) int {
	return int(a.Ordering) - int(b.Ordering)
}
