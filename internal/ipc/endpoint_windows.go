//go:build windows

package ipc

import "time"

// windowsEndpoint is a stub: the retrieval corpus carries no Windows named
// pipe client library, and fabricating one isn't an option, so this
// platform reports ErrUnsupportedPlatform from Bind rather than silently
// no-opping.
type windowsEndpoint struct{}

// NewUnixEndpoint keeps the same constructor name across platforms so
// callers such as the root package's buildEndpoint don't need a
// build-tagged switch of their own; on
// Windows it returns an Endpoint whose Bind always fails.
func NewUnixEndpoint(ioSlice time.Duration) Endpoint {
	return &windowsEndpoint{}
}

func (e *windowsEndpoint) Bind(name string) error             { return ErrUnsupportedPlatform }
func (e *windowsEndpoint) AcceptNB() AcceptResult             { return AcceptError }
func (e *windowsEndpoint) Connected() bool                    { return false }
func (e *windowsEndpoint) ReadNB(buf []byte) (int, IOResult)  { return 0, IOError }
func (e *windowsEndpoint) WriteNB(buf []byte) (int, IOResult) { return 0, IOError }
func (e *windowsEndpoint) DisconnectClient()                  {}
func (e *windowsEndpoint) Close() error                       { return nil }
