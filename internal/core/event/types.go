package event

import "fmt"

// TargetThread selects which engine thread observes an event or callback.
type TargetThread int

const (
	TargetUpdate TargetThread = iota // game/update thread
	TargetRender                     // render thread
)

func (t TargetThread) String() string {
	switch t {
	case TargetUpdate:
		return "update"
	case TargetRender:
		return "render"
	default:
		return fmt.Sprintf("Unknown(%d)", int(t))
	}
}

// Event is implemented by every dispatchable payload. EventType must return
// a constant: it is called on the zero value of the type when a handler is
// registered.
type Event interface {
	EventType() string
}

// Envelope carries a payload to the handlers of one target thread.
type Envelope struct {
	TypeID  string
	Target  TargetThread
	Payload Event
}

// Wrap builds the envelope delivering ev to target.
func Wrap(ev Event, target TargetThread) Envelope {
	return Envelope{TypeID: ev.EventType(), Target: target, Payload: ev}
}
