package ipc

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/castle-anthrax/lucciefr/internal/queue"
	"github.com/castle-anthrax/lucciefr/internal/wire"
)

// maxBusyRetriesPerTick bounds how many consecutive transact() calls a
// single tick may spend while progress is being made, before yielding back
// to the ticker. Without this bound a client that keeps a steady trickle
// of bytes arriving could starve the tick-driven cadence entirely.
const maxBusyRetriesPerTick = 64

// readChunk is the size of the scratch buffer each ReadNB call fills.
const readChunk = 4096

// OnFrame is invoked for every decoded frame, Ping included — the core
// does not answer Ping on its own; it runs on the server's single worker
// goroutine, so it must not block.
type OnFrame func(msgType uint8, payload []byte)

// state names the server's position in the connection lifecycle. It exists
// mainly for Running()/diagnostics; the transact step itself branches on
// endpoint.Connected() rather than switching on this value.
type state int32

const (
	stateInvalid state = iota
	stateConnecting
	stateIdle
	stateRunning
	stateStopped
)

// Server runs the single-client IPC state machine over an Endpoint: accept
// when nothing is connected, drain inbound frames into OnFrame, and drain
// the outbound queue, all from one worker goroutine woken on a fixed tick.
type Server struct {
	ep      Endpoint
	q       *queue.Queue
	dec     wire.Decoder
	onFrame OnFrame
	log     *slog.Logger

	tick    time.Duration
	ioSlice time.Duration

	state   atomic.Int32
	connID  string
	readBuf [readChunk]byte

	pendingFrame  []byte
	pendingToken  uint64
	pendingOffset int

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Options configures a Server beyond the endpoint and frame callback.
type Options struct {
	// Capacity is the outbound queue's bounded size. Defaults to 64.
	Capacity int
	// Tick is the worker loop's wake interval. Defaults to 500ms.
	Tick time.Duration
	// IOSlice bounds how long a single non-blocking accept/read/write may
	// wait for progress. Defaults to 5ms.
	IOSlice time.Duration
	// Logger receives structured connection-lifecycle events. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Capacity <= 0 {
		o.Capacity = 64
	}
	if o.Tick <= 0 {
		o.Tick = 500 * time.Millisecond
	}
	if o.IOSlice <= 0 {
		o.IOSlice = 5 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// NewServer binds ep at name and starts the worker goroutine. onFrame may
// be nil, in which case inbound frames, Ping included, are discarded.
func NewServer(ep Endpoint, name string, onFrame OnFrame, opts Options) (*Server, error) {
	opts = opts.withDefaults()

	if err := ep.Bind(name); err != nil {
		return nil, err
	}

	s := &Server{
		ep:      ep,
		q:       queue.New(opts.Capacity),
		onFrame: onFrame,
		log:     opts.Logger,
		tick:    opts.Tick,
		ioSlice: opts.IOSlice,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	s.state.Store(int32(stateConnecting))

	go s.run()
	return s, nil
}

// Write enqueues payload as a msgType frame for delivery to the client. It
// never blocks: under a full queue the oldest unreserved frame is dropped
// to make room, per the bounded write queue's own semantics. Once Stop has
// been called, Write returns ErrClosed instead of queuing anything.
func (s *Server) Write(msgType uint8, payload []byte) error {
	if !s.Running() {
		return ErrClosed
	}
	frame, err := wire.Encode(msgType, payload)
	if err != nil {
		return err
	}
	s.q.Push(frame)
	return nil
}

// Running reports whether the worker goroutine is still active.
func (s *Server) Running() bool {
	return state(s.state.Load()) != stateStopped
}

// Stop signals the worker goroutine to exit and waits up to roughly 3
// seconds for it to do so. Go offers no way to force-terminate a
// goroutine, so this is a cooperative, bounded best effort rather than a
// hard kill.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	select {
	case <-s.doneCh:
	case <-time.After(3 * time.Second):
		s.log.Warn("ipc: worker did not exit within grace period")
	}
	_ = s.ep.Close()
	s.state.Store(int32(stateStopped))
}

func (s *Server) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
		}

		for i := 0; i < maxBusyRetriesPerTick; i++ {
			select {
			case <-s.stopCh:
				return
			default:
			}
			if !s.transact() {
				break
			}
		}
	}
}

// transact performs one non-blocking step of the state machine: accept if
// nothing is connected, otherwise try a read and a write. It reports
// whether it made any progress, which controls whether run() keeps
// spinning within the current tick.
func (s *Server) transact() bool {
	if !s.ep.Connected() {
		switch s.ep.AcceptNB() {
		case AcceptOK:
			s.onConnect()
			return true
		case AcceptError:
			s.log.Error("ipc: accept failed")
			return false
		default:
			return false
		}
	}

	progressed := false

	n, res := s.ep.ReadNB(s.readBuf[:])
	switch res {
	case IOOK:
		progressed = true
		s.dec.Feed(s.readBuf[:n])
		s.drainDecoder()
	case IOClosed, IOError:
		s.dropClient()
		return true
	}

	// drainDecoder may have dropped the client itself (a malformed frame);
	// don't attempt a write against an endpoint that's no longer connected.
	if !s.ep.Connected() {
		return true
	}

	if s.writeStep() {
		progressed = true
	}

	return progressed
}

func (s *Server) onConnect() {
	s.connID = uuid.NewString()
	s.dec.Reset()
	s.pendingFrame = nil
	s.state.Store(int32(stateIdle))
	s.log.Info("ipc: client connected", "conn_id", s.connID)
}

func (s *Server) dropClient() {
	s.ep.DisconnectClient()
	s.dec.Reset()
	if s.pendingFrame != nil {
		s.q.Release(s.pendingToken)
		s.pendingFrame = nil
		s.pendingOffset = 0
	}
	s.state.Store(int32(stateConnecting))
	s.log.Info("ipc: client disconnected", "conn_id", s.connID)
}

// drainDecoder runs the decoder to exhaustion over whatever was just fed,
// delivering each complete frame to onFrame in order. A malformed class
// byte is fatal for the current connection: the peer is dropped and the
// decode buffer discarded, the only path where a client is dropped on the
// server's own initiative.
func (s *Server) drainDecoder() {
	for {
		msgType, payload, err := s.dec.Next()
		if err != nil {
			if errors.Is(err, wire.ErrMalformedFrame) {
				s.log.Warn("ipc: malformed frame, dropping client", "conn_id", s.connID)
				s.dropClient()
			}
			return
		}
		s.handleFrame(msgType, payload)
	}
}

// handleFrame delivers a decoded frame to onFrame. Ping is not special-cased
// here: the embedder's callback decides whether and how to reply, typically
// with a Pong carrying the same serial via Write.
func (s *Server) handleFrame(msgType uint8, payload []byte) {
	if s.onFrame != nil {
		s.onFrame(msgType, payload)
	}
}

// writeStep advances (or starts) the current outbound send. It reserves
// the oldest queued frame so a concurrent overflow can't evict bytes
// already in flight, and only removes it from the queue once the whole
// frame has been written.
func (s *Server) writeStep() bool {
	if s.pendingFrame == nil {
		frame, token, ok := s.q.Reserve()
		if !ok {
			return false
		}
		s.pendingFrame = frame
		s.pendingToken = token
		s.pendingOffset = 0
	}

	n, res := s.ep.WriteNB(s.pendingFrame[s.pendingOffset:])
	switch res {
	case IOOK:
		s.pendingOffset += n
		if s.pendingOffset >= len(s.pendingFrame) {
			s.q.Commit(s.pendingToken)
			s.pendingFrame = nil
			s.pendingToken = 0
			s.pendingOffset = 0
		}
		return true
	case IOClosed, IOError:
		s.q.Release(s.pendingToken)
		s.pendingFrame = nil
		s.dropClient()
		return true
	default: // IOWouldBlock
		return false
	}
}
