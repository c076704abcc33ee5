package provider

import "context"

// Sender transmits one message to one address over a live provider connection.
type Sender interface {
	// Send returns the number of message segments the provider actually sent.
	Send(ctx context.Context, to string, message string) (int, error)
	// Close releases the connection. Senders must tolerate Close being
	// called while a Send is still running.
	Close() error
}

// Factory builds live senders from provider configuration documents.
type Factory interface {
	CreateSender(cfg Configuration) (Sender, error)
}
