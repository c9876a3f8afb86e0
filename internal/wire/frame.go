package wire

import (
	"bytes"
	"errors"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Encode produces a self-delimiting frame for msgType and payload. The
// wire format is msgpack's own ext-type encoding (confirmed byte-for-byte
// against the original agent's sbuffer_pack_ext): a frame is an ext value
// with msgType as the ext id and payload as the ext body, so encoding is a
// direct call into the already-wired msgpack dependency's smallest-class-
// wins ext header writer rather than a hand-rolled byte layout.
func Encode(msgType uint8, payload []byte) ([]byte, error) {
	if len(payload) > maxVarPayload {
		return nil, ErrPayloadTooLarge
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeExtHeader(int8(msgType), len(payload)); err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		buf.Write(payload)
	}
	return buf.Bytes(), nil
}

// Decoder performs streaming decode of an append-only byte stream into
// frames. Calling Feed repeatedly and draining with Next until ErrNeedMore
// yields every complete frame exactly once, in order, leaving any partial
// trailer buffered for the next Feed.
type Decoder struct {
	buf []byte
}

// Feed appends newly read bytes to the decode buffer.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Reset discards any buffered bytes. Used after ErrMalformedFrame, and on
// client disconnect (the decode buffer doesn't survive a reconnect).
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
}

// Buffered reports how many undecoded bytes remain.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Next decodes the next complete frame from the buffer. It returns
// ErrNeedMore (without consuming any input) if the buffer doesn't yet hold
// a complete frame, or ErrMalformedFrame (fatal) on an unrecognized class
// byte.
//
// The header is parsed with msgpack.Decoder.DecodeExtHeader against a
// bytes.Reader over the buffered bytes. bytes.Reader already implements
// io.ByteScanner, so msgpack.Decoder.Reset uses it directly instead of
// wrapping it in a read-ahead bufio.Reader — that's what keeps a short
// read non-destructive: nothing beyond what DecodeExtHeader actually
// consumed is ever lost from d.buf.
func (d *Decoder) Next() (msgType uint8, payload []byte, err error) {
	if len(d.buf) == 0 {
		return 0, nil, ErrNeedMore
	}

	r := bytes.NewReader(d.buf)
	dec := msgpack.NewDecoder(r)
	extID, extLen, err := dec.DecodeExtHeader()
	if err != nil {
		if isShortRead(err) {
			return 0, nil, ErrNeedMore
		}
		return 0, nil, ErrMalformedFrame
	}

	headerLen := len(d.buf) - r.Len()
	total := headerLen + extLen
	if len(d.buf) < total {
		return 0, nil, ErrNeedMore
	}

	if extLen > 0 {
		payload = make([]byte, extLen)
		copy(payload, d.buf[headerLen:total])
	}
	msgType = uint8(extID)
	d.buf = d.buf[total:]
	return msgType, payload, nil
}

// isShortRead reports whether err indicates the ext header spans more
// bytes than are currently buffered, as opposed to an unrecognized code
// byte (which DecodeExtHeader reports as a plain non-EOF error).
func isShortRead(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
