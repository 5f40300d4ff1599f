package statusendpoint

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"
)

// Handlers bundles the callbacks invoked for each message type. Any field
// left nil silently drops that message type.
type Handlers struct {
	OnCallStart   func(CallStartMsg)
	OnCallEnd     func(CallEndMsg)
	OnCallsActive func(CallsActiveMsg)
	OnRates       func(RatesMsg)
	OnForward     func(kind string, raw json.RawMessage) // systems, recorders
}

// Server accepts the decoder's status socket. Only one connection is kept
// at a time; a new connection closes the previous one (spec.md §4.C).
type Server struct {
	listener net.Listener
	handlers Handlers
	log      zerolog.Logger

	mu      sync.Mutex
	current net.Conn
}

// Listen binds addr (e.g. ":3001") as a TCP status socket.
func Listen(addr string, handlers Handlers, log zerolog.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen status socket: %w", err)
	}
	return &Server{
		listener: ln,
		handlers: handlers,
		log:      log.With().Str("component", "statusendpoint").Logger(),
	}, nil
}

// Close stops accepting and closes any current connection.
func (s *Server) Close() error {
	err := s.listener.Close()
	s.mu.Lock()
	if s.current != nil {
		s.current.Close()
	}
	s.mu.Unlock()
	return err
}

// Run accepts connections until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}

		s.mu.Lock()
		if s.current != nil {
			s.log.Info().Msg("new decoder connection, closing previous")
			s.current.Close()
		}
		s.current = conn
		s.mu.Unlock()

		go s.serve(ctx, conn)
	}
}

func (s *Server) serve(ctx context.Context, conn net.Conn) {
	defer func() {
		conn.Close()
		s.mu.Lock()
		if s.current == conn {
			s.current = nil
		}
		s.mu.Unlock()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		s.dispatch(line)
	}

	s.log.Info().Msg("decoder disconnected")
}

func (s *Server) dispatch(raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.log.Warn().Err(err).Msg("malformed status message")
		return
	}

	switch env.Type {
	case "call_start":
		if s.handlers.OnCallStart == nil {
			return
		}
		var msg CallStartMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.log.Warn().Err(err).Msg("malformed call_start")
			return
		}
		s.handlers.OnCallStart(msg)

	case "call_end":
		if s.handlers.OnCallEnd == nil {
			return
		}
		var msg CallEndMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.log.Warn().Err(err).Msg("malformed call_end")
			return
		}
		s.handlers.OnCallEnd(msg)

	case "calls_active":
		if s.handlers.OnCallsActive == nil {
			return
		}
		var msg CallsActiveMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.log.Warn().Err(err).Msg("malformed calls_active")
			return
		}
		s.handlers.OnCallsActive(msg)

	case "rates":
		if s.handlers.OnRates == nil {
			return
		}
		var msg RatesMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.log.Warn().Err(err).Msg("malformed rates")
			return
		}
		s.handlers.OnRates(msg)

	case "systems", "recorders":
		if s.handlers.OnForward != nil {
			s.handlers.OnForward(env.Type, raw)
		}

	default:
		s.log.Debug().Str("type", env.Type).Msg("unrecognized status message type")
	}
}
