package ipc

import (
	"bytes"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsEndpoint bridges the IPC server onto a single WebSocket connection. It
// is adapted from the connection-handling half of the teacher's WebSocket
// manager, cut down from a multi-client broadcast hub to the one
// connection this server talks to at a time: Bind starts an http.Server
// that upgrades requests at "/" and holds at most one upgraded connection
// pending acceptance (extra ones are closed), after which
// AcceptNB/ReadNB/WriteNB drive it.
//
// gorilla/websocket's Conn has no non-blocking read or write, so the
// bridge runs a dedicated reader and writer goroutine per connection and
// emulates IOWouldBlock with a channel select bounded by ioSlice.
type wsEndpoint struct {
	ioSlice time.Duration
	upgrader websocket.Upgrader

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	incoming chan *websocket.Conn // one accepted connection, buffered 1

	conn    *websocket.Conn
	inbox   chan []byte
	outbox  chan []byte
	done    chan struct{}
	readBuf bytes.Buffer
}

// NewWebSocketEndpoint returns an Endpoint that serves WebSocket upgrades
// at "/" and bridges frames over one connection at a time.
func NewWebSocketEndpoint(ioSlice time.Duration) Endpoint {
	return &wsEndpoint{
		ioSlice:  ioSlice,
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		incoming: make(chan *websocket.Conn, 1),
	}
}

func (e *wsEndpoint) Bind(addr string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.server != nil {
		return ErrAlreadyBound
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := e.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		select {
		case e.incoming <- conn:
		default:
			// Someone's already pending acceptance; this is a single-client
			// bridge, so refuse the extra connection.
			_ = conn.Close()
		}
	})

	srv := &http.Server{Handler: mux}
	e.listener = ln
	e.server = srv
	go srv.Serve(ln) //nolint:errcheck
	return nil
}

func (e *wsEndpoint) AcceptNB() AcceptResult {
	if e.conn != nil {
		e.DisconnectClient()
	}
	select {
	case conn := <-e.incoming:
		e.attach(conn)
		return AcceptOK
	case <-time.After(e.ioSlice):
		return AcceptNone
	}
}

func (e *wsEndpoint) attach(conn *websocket.Conn) {
	e.conn = conn
	e.inbox = make(chan []byte, 64)
	e.outbox = make(chan []byte, 64)
	e.done = make(chan struct{})

	go e.readPump()
	go e.writePump()
}

// readPump is grounded on the teacher's Hub readPump goroutine: one
// goroutine owns conn.ReadMessage and forwards each frame onto a channel,
// since gorilla/websocket connections support at most one concurrent
// reader.
func (e *wsEndpoint) readPump() {
	conn := e.conn
	inbox := e.inbox
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			close(inbox)
			return
		}
		select {
		case inbox <- data:
		case <-e.done:
			return
		}
	}
}

// writePump mirrors readPump for the send direction: one goroutine owns
// conn.WriteMessage.
func (e *wsEndpoint) writePump() {
	conn := e.conn
	outbox := e.outbox
	for {
		select {
		case data, ok := <-outbox:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		case <-e.done:
			return
		}
	}
}

func (e *wsEndpoint) Connected() bool {
	return e.conn != nil
}

func (e *wsEndpoint) ReadNB(buf []byte) (int, IOResult) {
	if e.conn == nil {
		return 0, IOError
	}
	if e.readBuf.Len() > 0 {
		n, _ := e.readBuf.Read(buf)
		return n, IOOK
	}
	select {
	case data, ok := <-e.inbox:
		if !ok {
			return 0, IOClosed
		}
		n := copy(buf, data)
		if n < len(data) {
			e.readBuf.Write(data[n:])
		}
		return n, IOOK
	case <-time.After(e.ioSlice):
		return 0, IOWouldBlock
	}
}

func (e *wsEndpoint) WriteNB(buf []byte) (int, IOResult) {
	if e.conn == nil {
		return 0, IOError
	}
	cp := make([]byte, len(buf))
	copy(cp, buf)
	select {
	case e.outbox <- cp:
		return len(buf), IOOK
	case <-time.After(e.ioSlice):
		return 0, IOWouldBlock
	}
}

func (e *wsEndpoint) DisconnectClient() {
	if e.conn == nil {
		return
	}
	close(e.done)
	_ = e.conn.Close()
	e.conn = nil
	e.readBuf.Reset()
}

func (e *wsEndpoint) Close() error {
	e.DisconnectClient()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.server == nil {
		return nil
	}
	err := e.listener.Close()
	e.server = nil
	e.listener = nil
	return err
}
