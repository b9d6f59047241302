package events

// Event is a structured state change emitted by the ledger. Attributes carry
// string-encoded payload fields so downstream consumers (RPC, indexers, logs)
// never need the ledger's internal types.
type Event struct {
	Type       string
	Attributes map[string]string
}

// Emitter broadcasts events to downstream subscribers.
type Emitter interface {
	Emit(*Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(*Event) {}

// CaptureEmitter records every emitted event in order. Intended for tests.
type CaptureEmitter struct {
	Events []*Event
}

// Emit implements the Emitter interface.
func (c *CaptureEmitter) Emit(evt *Event) {
	if evt == nil {
		return
	}
	c.Events = append(c.Events, evt)
}

// ByType returns the captured events matching the supplied type.
func (c *CaptureEmitter) ByType(eventType string) []*Event {
	var out []*Event
	for _, evt := range c.Events {
		if evt.Type == eventType {
			out = append(out, evt)
		}
	}
	return out
}
