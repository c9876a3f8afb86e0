package ipc

import (
	"net"
	"time"
)

// loopbackEndpoint wraps a net.Pipe connection handed in from outside,
// giving tests and examples an Endpoint that needs no filesystem or
// network access. A single pending connection can be queued with
// OfferConn before the server's next AcceptNB.
type loopbackEndpoint struct {
	ioSlice time.Duration

	bound   bool
	pending net.Conn
	conn    net.Conn
}

// NewLoopbackEndpoint returns an Endpoint suitable for tests: call
// OfferConn with one side of a net.Pipe() before the server's worker loop
// next calls AcceptNB.
func NewLoopbackEndpoint(ioSlice time.Duration) *LoopbackEndpoint {
	return &LoopbackEndpoint{e: &loopbackEndpoint{ioSlice: ioSlice}}
}

// LoopbackEndpoint is the exported handle used to feed connections into a
// loopback Endpoint from test code, while the Endpoint interface itself
// stays private to this package.
type LoopbackEndpoint struct {
	e *loopbackEndpoint
}

// Endpoint returns the ipc.Endpoint view for passing to NewServer.
func (l *LoopbackEndpoint) Endpoint() Endpoint { return l.e }

// OfferConn queues conn to be returned by the next AcceptNB call.
func (l *LoopbackEndpoint) OfferConn(conn net.Conn) {
	l.e.pending = conn
}

func (e *loopbackEndpoint) Bind(name string) error {
	if e.bound {
		return ErrAlreadyBound
	}
	e.bound = true
	return nil
}

func (e *loopbackEndpoint) AcceptNB() AcceptResult {
	if !e.bound {
		return AcceptError
	}
	if e.conn != nil {
		e.DisconnectClient()
	}
	if e.pending == nil {
		return AcceptNone
	}
	e.conn = e.pending
	e.pending = nil
	return AcceptOK
}

func (e *loopbackEndpoint) Connected() bool {
	return e.conn != nil
}

func (e *loopbackEndpoint) ReadNB(buf []byte) (int, IOResult) {
	if e.conn == nil {
		return 0, IOError
	}
	_ = e.conn.SetReadDeadline(time.Now().Add(e.ioSlice))
	n, err := e.conn.Read(buf)
	if n > 0 {
		return n, IOOK
	}
	if err == nil {
		return 0, IOWouldBlock
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return 0, IOWouldBlock
	}
	return 0, IOClosed
}

func (e *loopbackEndpoint) WriteNB(buf []byte) (int, IOResult) {
	if e.conn == nil {
		return 0, IOError
	}
	_ = e.conn.SetWriteDeadline(time.Now().Add(e.ioSlice))
	n, err := e.conn.Write(buf)
	if n > 0 {
		return n, IOOK
	}
	if err == nil {
		return 0, IOWouldBlock
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return 0, IOWouldBlock
	}
	return 0, IOClosed
}

func (e *loopbackEndpoint) DisconnectClient() {
	if e.conn != nil {
		_ = e.conn.Close()
		e.conn = nil
	}
}

func (e *loopbackEndpoint) Close() error {
	e.DisconnectClient()
	e.bound = false
	return nil
}
