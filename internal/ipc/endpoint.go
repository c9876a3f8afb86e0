// Package ipc implements the asynchronous, single-client, reconnect-tolerant
// server state machine described by the wire and queue packages: Bind once,
// then repeatedly step a non-blocking transaction that accepts, reads,
// writes, and tolerates a client dropping and reconnecting without losing
// queued outbound frames.
package ipc

import "errors"

var (
	// ErrAlreadyBound is returned by Bind when the endpoint has already been
	// bound to an address.
	ErrAlreadyBound = errors.New("ipc: endpoint already bound")

	// ErrNotBound names the error of using an endpoint before Bind. No
	// endpoint in this package returns it: their methods report a missing
	// Bind through an AcceptResult or IOResult instead.
	ErrNotBound = errors.New("ipc: endpoint not bound")

	// ErrUnsupportedPlatform is returned by endpoints that have no
	// implementation on the running GOOS.
	ErrUnsupportedPlatform = errors.New("ipc: endpoint not supported on this platform")

	// ErrClosed is returned by Write once the server has been stopped.
	ErrClosed = errors.New("ipc: server is closed")
)

// AcceptResult reports the outcome of a non-blocking accept attempt.
type AcceptResult int

const (
	// AcceptNone means no client is waiting; try again later.
	AcceptNone AcceptResult = iota
	// AcceptOK means a client connection was accepted.
	AcceptOK
	// AcceptError means the accept attempt failed unrecoverably.
	AcceptError
)

// IOResult reports the outcome of a non-blocking read or write attempt.
type IOResult int

const (
	// IOWouldBlock means the operation made no progress within its time
	// slice; try again later.
	IOWouldBlock IOResult = iota
	// IOOK means the operation completed, fully or partially.
	IOOK
	// IOClosed means the peer closed the connection.
	IOClosed
	// IOError means the operation failed unrecoverably.
	IOError
)

// Endpoint abstracts the transport the IPC server runs over, emulating the
// non-blocking accept/read/write semantics of the original implementation
// on top of whatever the concrete transport actually offers. All methods
// must be safe to call from a single goroutine at a time (the server's own
// worker loop); they need not be safe for concurrent use by multiple
// goroutines.
type Endpoint interface {
	// Bind prepares the endpoint to accept a single client, under name
	// (interpretation is transport-specific: a filesystem path, a network
	// address, or unused). It must be called exactly once before any other
	// method.
	Bind(name string) error

	// AcceptNB attempts to accept a pending client connection without
	// blocking longer than the endpoint's configured IO slice. Calling it
	// while a client is already connected first disconnects the existing
	// client.
	AcceptNB() AcceptResult

	// Connected reports whether a client is currently connected.
	Connected() bool

	// ReadNB attempts to read available bytes from the connected client
	// into buf without blocking longer than the endpoint's IO slice. n is
	// the number of bytes read (valid when the result is IOOK).
	ReadNB(buf []byte) (n int, result IOResult)

	// WriteNB attempts to write buf to the connected client without
	// blocking longer than the endpoint's IO slice. n is the number of
	// bytes written (valid when the result is IOOK); a partial write is
	// possible and the caller is expected to retry with the remainder.
	WriteNB(buf []byte) (n int, result IOResult)

	// DisconnectClient drops the current client connection, if any,
	// without closing the listening endpoint itself.
	DisconnectClient()

	// Close releases all resources held by the endpoint, including any
	// connected client and the listener itself.
	Close() error
}
