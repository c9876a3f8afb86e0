// Package lucciefr is an embeddable, single-client IPC agent: bind a
// well-known endpoint, exchange self-delimiting binary frames with one
// connected client at a time, and keep queued outbound frames across a
// client disconnect and reconnect.
//
// A typical embedder starts a Server once at process startup, pushes
// frames with Write as application events occur, and handles inbound
// frames through the OnFrame callback passed to NewServer.
package lucciefr

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/castle-anthrax/lucciefr/internal/config"
	"github.com/castle-anthrax/lucciefr/internal/ipc"
	"github.com/castle-anthrax/lucciefr/internal/wire"
)

// OnFrame is invoked on the server's worker goroutine for every inbound
// frame, Ping included; a heartbeat-aware embedder replies with a Pong of
// its own via Write.
type OnFrame = ipc.OnFrame

// Message type constants for use with Write and OnFrame.
const (
	Log        = wire.Log
	Command    = wire.Command
	Signal     = wire.Signal
	IoRequest  = wire.IoRequest
	IoReply    = wire.IoReply
	RpcRequest = wire.RpcRequest
	RpcReply   = wire.RpcReply
	Ping       = wire.Ping
	Pong       = wire.Pong
)

// PingPong is the structured payload carried by Ping and Pong frames.
type PingPong = wire.PingPong

// ErrClosed is returned by (*Server).Write once the server has been
// stopped.
var ErrClosed = ipc.ErrClosed

// EncodePingPong and DecodePingPong convert a PingPong value to and from
// the bytes Write and OnFrame exchange as a Ping/Pong payload.
var (
	EncodePingPong = wire.EncodePingPong
	DecodePingPong = wire.DecodePingPong
)

// Server is a running IPC agent bound to a single well-known endpoint.
type Server struct {
	inner     *ipc.Server
	pid       int
	cfg       config.Config
	logCloser io.Closer
}

// NewServer binds an endpoint derived from cfg and starts serving. The
// endpoint's well-known name is derived from the current process ID, the
// same way a client would locate this server with Exists. Connection
// lifecycle events are logged through a *slog.Logger built from
// cfg.Logging.
func NewServer(cfg config.Config, onFrame OnFrame) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("lucciefr: %w", err)
	}

	pid := os.Getpid()

	ep, name, err := buildEndpoint(cfg, pid)
	if err != nil {
		return nil, err
	}

	logger, logCloser := buildLogger(cfg.Logging)

	inner, err := ipc.NewServer(ep, name, onFrame, ipc.Options{
		Capacity: cfg.Queue.Capacity,
		Tick:     cfg.Timing.Tick.Duration(),
		IOSlice:  cfg.Timing.IOSlice.Duration(),
		Logger:   logger,
	})
	if err != nil {
		if logCloser != nil {
			_ = logCloser.Close()
		}
		return nil, fmt.Errorf("lucciefr: %w", err)
	}

	return &Server{inner: inner, pid: pid, cfg: cfg, logCloser: logCloser}, nil
}

// buildLogger turns cfg's level/format/output knobs into a *slog.Logger,
// the same way the teacher's cmd/maboo/main.go setupLogger/resolveLogOutput
// pair does, translated from a package-main helper into one this library
// constructor can call directly.
func buildLogger(cfg config.LogConfig) (*slog.Logger, io.Closer) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	writer, closer := resolveLogOutput(cfg.Output)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(writer, opts)
	} else {
		handler = slog.NewJSONHandler(writer, opts)
	}

	return slog.New(handler), closer
}

// resolveLogOutput maps the output knob to a writer, mirroring the
// teacher's own stdout/stderr/file switch. A file that fails to open falls
// back to stdout rather than failing server startup over a logging
// misconfiguration.
func resolveLogOutput(output string) (io.Writer, io.Closer) {
	switch output {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return os.Stdout, nil
		}
		return f, f
	}
}

func buildEndpoint(cfg config.Config, pid int) (ipc.Endpoint, string, error) {
	switch cfg.Endpoint.Transport {
	case config.TransportUnix:
		return ipc.NewUnixEndpoint(cfg.Timing.IOSlice.Duration()), ipc.WellKnownName(cfg.Endpoint.NamePrefix, pid), nil
	case config.TransportWebSocket:
		return ipc.NewWebSocketEndpoint(cfg.Timing.IOSlice.Duration()), cfg.Endpoint.Address, nil
	default:
		return nil, "", fmt.Errorf("lucciefr: unknown endpoint transport %q", cfg.Endpoint.Transport)
	}
}

// Write enqueues a frame of msgType carrying payload for delivery to the
// connected client. It never blocks: the oldest unreserved frame is
// dropped if the outbound queue is full.
func (s *Server) Write(msgType uint8, payload []byte) error {
	return s.inner.Write(msgType, payload)
}

// Running reports whether the server's worker goroutine is still active.
func (s *Server) Running() bool {
	return s.inner.Running()
}

// Stop shuts the server down, releasing its endpoint and closing the log
// file handle, if cfg.Logging.Output named one.
func (s *Server) Stop() {
	s.inner.Stop()
	if s.logCloser != nil {
		_ = s.logCloser.Close()
	}
}

// Exists reports whether a unix-transport server endpoint is currently
// bound for the given config and process ID, without connecting to it.
func Exists(cfg config.Config, pid int) bool {
	return ipc.Exists(cfg.Endpoint.NamePrefix, pid)
}
