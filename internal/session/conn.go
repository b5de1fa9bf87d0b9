package session

// Conn is the session's view of its client connection. It doubles as the
// bus.Member for the session's room group.
type Conn interface {
	// ID uniquely identifies this connection (not the client identity).
	ID() string

	// Deliver queues an already-marshaled message for the client.
	Deliver(data []byte)

	// Send marshals and queues a message for the client.
	Send(v any) error

	// Close force-closes the connection with a close code. Safe to call
	// more than once; only the first call takes effect.
	Close(code int, reason string)
}
