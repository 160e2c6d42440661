package channel

import (
	"context"

	"github.com/relayhub/relay-gateway/internal/dispatch"
)

// Message represents an inbound message from a channel
type Message struct {
	ID        string
	Channel   string
	UserID    string
	Content   string
	Timestamp int64
}

// Response represents a routed reply to send back to a channel
type Response struct {
	Reply       string
	Model       string
	Reasoning   string
	Performance *dispatch.Performance
}

// Adapter is the interface for channel adapters
type Adapter interface {
	// Start starts the channel adapter
	Start(ctx context.Context) error

	// Stop stops the channel adapter
	Stop() error

	// SendMessage sends a response to the channel
	SendMessage(userID string, resp *Response) error

	// Incoming returns a channel of incoming messages
	Incoming() <-chan *Message

	// Name returns the name of the channel adapter
	Name() string

	// IsEnabled returns whether the channel is enabled
	IsEnabled() bool
}
