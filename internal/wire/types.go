// Package wire implements the self-delimiting binary frame format carried
// over an IPC endpoint: encoding, streaming decode, and the message type
// enumeration frames are tagged with.
package wire

import "errors"

// Message types. These are the "channels" a frame can carry; the codec
// never interprets the payload bytes beyond this single tag.
const (
	Log uint8 = iota
	Command
	Signal
	IoRequest
	IoReply
	RpcRequest
	RpcReply
	Ping
	Pong
)

// maxVarPayload is the largest payload length the widest msgpack ext class
// (Ext32, a 4-byte length field) can address.
const maxVarPayload = 1<<32 - 1

var (
	// ErrNeedMore indicates the decoder does not yet have a full frame
	// buffered. It is not fatal: the caller should feed more bytes and
	// retry without discarding what's already buffered.
	ErrNeedMore = errors.New("wire: need more bytes")

	// ErrMalformedFrame indicates a protocol violation — an unrecognized
	// class byte. This is fatal for the current connection.
	ErrMalformedFrame = errors.New("wire: malformed frame")

	// ErrPayloadTooLarge is returned by Encode when a payload exceeds the
	// widest variable-length class.
	ErrPayloadTooLarge = errors.New("wire: payload exceeds maximum frame size")
)
