package ipc

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/castle-anthrax/lucciefr/internal/wire"
)

func testOptions() Options {
	return Options{Capacity: 4, Tick: 5 * time.Millisecond, IOSlice: 2 * time.Millisecond}
}

// readFrame reads and decodes exactly one frame from conn, failing the
// test if none arrives within the deadline.
func readFrame(t *testing.T, conn net.Conn) (msgType uint8, payload []byte) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var dec wire.Decoder
	buf := make([]byte, 4096)
	for {
		if mt, p, err := dec.Next(); err == nil {
			return mt, p
		}
		n, err := conn.Read(buf)
		if err != nil {
			t.Fatalf("readFrame: %v", err)
		}
		dec.Feed(buf[:n])
	}
}

// TestPingRoundTrip exercises spec.md §8 scenario 1: the server's onFrame
// sees the inbound Ping unchanged, and it is the *application* callback
// that replies with a Pong, not the core.
func TestPingRoundTrip(t *testing.T) {
	lb := NewLoopbackEndpoint(2 * time.Millisecond)

	var srv *Server
	onFrame := func(msgType uint8, payload []byte) {
		if msgType != wire.Ping {
			return
		}
		ping, err := wire.DecodePingPong(payload)
		if err != nil {
			t.Errorf("DecodePingPong: %v", err)
			return
		}
		pong, err := wire.EncodePingPong(wire.PingPong{Serial: ping.Serial, Timestamp: ping.Timestamp + 0.5})
		if err != nil {
			t.Errorf("EncodePingPong: %v", err)
			return
		}
		if err := srv.Write(wire.Pong, pong); err != nil {
			t.Errorf("Write: %v", err)
		}
	}

	srv, err := NewServer(lb.Endpoint(), "", onFrame, testOptions())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer srv.Stop()

	client, server := net.Pipe()
	defer client.Close()
	lb.OfferConn(server)

	pingPayload, err := wire.EncodePingPong(wire.PingPong{Serial: 7, Timestamp: 1.5})
	if err != nil {
		t.Fatalf("EncodePingPong: %v", err)
	}
	frame, err := wire.Encode(wire.Ping, pingPayload)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	go client.Write(frame) //nolint:errcheck

	mt, payload := readFrame(t, client)
	if mt != wire.Pong {
		t.Fatalf("msgType = %d, want Pong", mt)
	}
	got, err := wire.DecodePingPong(payload)
	if err != nil {
		t.Fatalf("DecodePingPong: %v", err)
	}
	if got.Serial != 7 || got.Timestamp != 2.0 {
		t.Fatalf("got %+v, want Serial=7 Timestamp=2.0", got)
	}
}

func TestBufferedWriteBeforeConnect(t *testing.T) {
	lb := NewLoopbackEndpoint(2 * time.Millisecond)
	srv, err := NewServer(lb.Endpoint(), "", nil, testOptions())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer srv.Stop()

	if err := srv.Write(wire.Log, []byte("queued before any client")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	client, server := net.Pipe()
	defer client.Close()
	lb.OfferConn(server)

	mt, payload := readFrame(t, client)
	if mt != wire.Log || string(payload) != "queued before any client" {
		t.Fatalf("got type=%d payload=%q, want Log %q", mt, payload, "queued before any client")
	}
}

func TestFrameDeliveredAfterReconnect(t *testing.T) {
	lb := NewLoopbackEndpoint(2 * time.Millisecond)
	srv, err := NewServer(lb.Endpoint(), "", nil, testOptions())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer srv.Stop()

	if err := srv.Write(wire.Signal, []byte("survives a drop")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// First client connects and is dropped immediately, before ever
	// reading — the in-flight send should be released back to the queue,
	// not lost.
	client1, server1 := net.Pipe()
	lb.OfferConn(server1)
	time.Sleep(20 * time.Millisecond)
	client1.Close()
	time.Sleep(20 * time.Millisecond)

	client2, server2 := net.Pipe()
	defer client2.Close()
	lb.OfferConn(server2)

	mt, payload := readFrame(t, client2)
	if mt != wire.Signal || string(payload) != "survives a drop" {
		t.Fatalf("got type=%d payload=%q, want Signal %q", mt, payload, "survives a drop")
	}
}

// TestMalformedInputRecovers exercises spec.md §8 scenario 6: a malformed
// class byte drops the client and discards the decode buffer; the bad
// connection cannot be reused, but a fresh client can connect and
// communicate normally afterward.
func TestMalformedInputRecovers(t *testing.T) {
	lb := NewLoopbackEndpoint(2 * time.Millisecond)

	received := make(chan []byte, 1)
	onFrame := func(msgType uint8, payload []byte) {
		if msgType == wire.Command {
			received <- payload
		}
	}

	srv, err := NewServer(lb.Endpoint(), "", onFrame, testOptions())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer srv.Stop()

	client1, server1 := net.Pipe()
	lb.OfferConn(server1)

	// An unrecognized class byte: the server must drop this connection on
	// its own initiative rather than try to resynchronize on the same pipe.
	go client1.Write([]byte{0xFF, 0x00, 0x00}) //nolint:errcheck

	buf := make([]byte, 16)
	_ = client1.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := client1.Read(buf); err == nil {
		t.Fatal("expected the connection to be closed by the server after a malformed frame")
	}
	client1.Close()

	client2, server2 := net.Pipe()
	defer client2.Close()
	lb.OfferConn(server2)

	good, err := wire.Encode(wire.Command, []byte("resync"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	go client2.Write(good) //nolint:errcheck

	select {
	case payload := <-received:
		if string(payload) != "resync" {
			t.Fatalf("payload = %q, want %q", payload, "resync")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame after malformed input")
	}
}

func TestWriteAfterStopReturnsErrClosed(t *testing.T) {
	lb := NewLoopbackEndpoint(2 * time.Millisecond)
	srv, err := NewServer(lb.Endpoint(), "", nil, testOptions())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv.Stop()

	if err := srv.Write(wire.Log, []byte("too late")); !errors.Is(err, ErrClosed) {
		t.Fatalf("Write() after Stop() = %v, want ErrClosed", err)
	}
}
