package websocket

// EventPublisher publishes an event to every connected client. Domain
// services take an EventPublisher rather than a *Hub directly, so tests can
// inject NoOpPublisher.
type EventPublisher interface {
	Publish(event Event)
}

// Ensure Hub implements EventPublisher.
var _ EventPublisher = (*Hub)(nil)

// Publish implements EventPublisher by broadcasting the event to every
// connected client.
func (h *Hub) Publish(event Event) {
	h.Broadcast(event)
}

// NoOpPublisher discards every event (default when no websocket server is
// wired, and in tests).
type NoOpPublisher struct{}

// Publish does nothing.
func (n *NoOpPublisher) Publish(event Event) {}
