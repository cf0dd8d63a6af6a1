package events

import (
	evbus "github.com/asaskevich/EventBus"
)

// TopicAuthExpired is published after the HTTP client cleared the session on a 401.
// Handlers receive an AuthExpired value.
const TopicAuthExpired = "auth:expired"

// AuthExpired describes the request that was rejected
type AuthExpired struct {
	Method    string
	URL       string
	RequestID string
}

// Bus carries client signals to whoever owns navigation
type Bus struct {
	bus evbus.Bus
}

// New creates a synchronous event bus
func New() *Bus {
	return &Bus{bus: evbus.New()}
}

// PublishAuthExpired notifies subscribers synchronously
func (b *Bus) PublishAuthExpired(ev AuthExpired) {
	if b == nil {
		return
	}
	b.bus.Publish(TopicAuthExpired, ev)
}

// OnAuthExpired registers fn for every AuthExpired signal
func (b *Bus) OnAuthExpired(fn func(AuthExpired)) error {
	return b.bus.Subscribe(TopicAuthExpired, fn)
}

// Unsubscribe removes a handler previously registered with OnAuthExpired
func (b *Bus) Unsubscribe(fn func(AuthExpired)) error {
	return b.bus.Unsubscribe(TopicAuthExpired, fn)
}
