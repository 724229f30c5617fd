package event

// Emitter sends events back into the hub.
type Emitter interface {
	Emit(e Event) error
}

// Sender is the hub's inbound queue.
type Sender interface {
	Send(env Envelope) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event) error

func (f EmitterFunc) Emit(e Event) error { return f(e) }

// Into returns an Emitter that wraps events and sends them to s.
func Into(s Sender) Emitter {
	return EmitterFunc(func(e Event) error {
		return s.Send(Wrap(e))
	})
}

// Discard drops every event.
var Discard Emitter = EmitterFunc(func(Event) error { return nil })
