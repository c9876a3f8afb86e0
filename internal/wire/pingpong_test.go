package wire

import "testing"

func TestPingPongRoundTrip(t *testing.T) {
	want := PingPong{Serial: 0x1234, Timestamp: 42.5}

	payload, err := EncodePingPong(want)
	if err != nil {
		t.Fatalf("EncodePingPong: %v", err)
	}

	frame, err := Encode(Ping, payload)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var d Decoder
	d.Feed(frame)
	msgType, gotPayload, err := d.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if msgType != Ping {
		t.Errorf("msgType = %d, want Ping", msgType)
	}

	got, err := DecodePingPong(gotPayload)
	if err != nil {
		t.Fatalf("DecodePingPong: %v", err)
	}
	if got != want {
		t.Errorf("DecodePingPong() = %+v, want %+v", got, want)
	}
}

func TestPingPongIsArrayNotMap(t *testing.T) {
	payload, err := EncodePingPong(PingPong{Serial: 1, Timestamp: 1})
	if err != nil {
		t.Fatalf("EncodePingPong: %v", err)
	}
	// A 2-element fixarray header is 0x92 in msgpack.
	if len(payload) == 0 || payload[0] != 0x92 {
		t.Fatalf("expected msgpack fixarray(2) header 0x92, got 0x%02x", payload[0])
	}
}
