package gateway

import (
	"github.com/deskchat/deskchat-server/internal/chat"
	"github.com/deskchat/deskchat-server/internal/store"
)

// Event is a notification delivered to a subscribed connection. The
// transport layer maps it onto its wire format.
type Event struct {
	Message *store.Message
	TempID  string
}

// Client is one authenticated persistent connection as seen by the
// gateway. Events is buffered; the gateway drops events for clients
// that cannot keep up instead of blocking other subscribers.
type Client struct {
	ID       string
	Identity chat.Identity
	Events   chan Event
}

// NewClient constructs a client with an event buffer of the given
// size. Non-positive sizes fall back to a small default.
func NewClient(id string, identity chat.Identity, buffer int) *Client {
	if buffer <= 0 {
		buffer = 16
	}
	return &Client{
		ID:       id,
		Identity: identity,
		Events:   make(chan Event, buffer),
	}
}
