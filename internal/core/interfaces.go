package core

// Frame is a serialized wire payload (one JSON fact or command).
type Frame []byte

// SessionID identifies one live socket connection. It is volatile and
// changes on every reconnect; nothing durable may key on it.
type SessionID string

// SignalConnection abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
