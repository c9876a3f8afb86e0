package wire

import "github.com/vmihailenco/msgpack/v5"

// PingPong is the structured payload carried by Ping and Pong frames: a
// two-element tuple of (serial, timestamp), msgpack-encoded as an array
// rather than a map — the same shape the original agent packs with
// msgpack_pack_array(2) before a Ping/Pong send.
type PingPong struct {
	Serial    uint32
	Timestamp float64
}

// EncodeMsgpack implements msgpack.CustomEncoder so PingPong always encodes
// as a 2-element array, never a map.
func (p PingPong) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := enc.EncodeUint32(p.Serial); err != nil {
		return err
	}
	return enc.EncodeFloat64(p.Timestamp)
}

// DecodeMsgpack implements msgpack.CustomDecoder, the inverse of
// EncodeMsgpack.
func (p *PingPong) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	if n != 2 {
		return errArrayLen(n)
	}
	serial, err := dec.DecodeUint32()
	if err != nil {
		return err
	}
	ts, err := dec.DecodeFloat64()
	if err != nil {
		return err
	}
	p.Serial = serial
	p.Timestamp = ts
	return nil
}

// EncodePingPong encodes a PingPong payload for use as a frame payload via
// Encode.
func EncodePingPong(p PingPong) ([]byte, error) {
	return msgpack.Marshal(p)
}

// DecodePingPong decodes a frame payload previously produced by
// EncodePingPong.
func DecodePingPong(payload []byte) (PingPong, error) {
	var p PingPong
	err := msgpack.Unmarshal(payload, &p)
	return p, err
}

type errArrayLen int

func (e errArrayLen) Error() string {
	return "wire: expected a 2-element msgpack array for ping/pong payload"
}
