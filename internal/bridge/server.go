// Package bridge carries surface requests and badge notifications over a
// websocket between the engine and out-of-process surfaces.
package bridge

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"countryfilter/internal/messaging"
	"countryfilter/internal/metrics"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// DefaultReplyTimeout bounds how long the server waits on the handler.
const DefaultReplyTimeout = 5 * time.Second

// Handler answers surface requests. The engine implements it.
type Handler interface {
	Handle(ctx context.Context, req messaging.Request) (messaging.Response, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req messaging.Request) (messaging.Response, error)

func (f HandlerFunc) Handle(ctx context.Context, req messaging.Request) (messaging.Response, error) {
	return f(ctx, req)
}

// Server is the engine side of the bridge. It also broadcasts outbound
// notifications to every connected surface.
type Server struct {
	handler      Handler
	replyTimeout time.Duration
	upgrader     websocket.Upgrader
	codec        *codec

	mu    sync.Mutex
	conns map[*serverConn]struct{}
}

type serverConn struct {
	ws       *websocket.Conn
	surface  string
	compress bool

	writeMu sync.Mutex
}

// NewServer creates a server dispatching to h. A zero replyTimeout uses
// DefaultReplyTimeout.
func NewServer(h Handler, replyTimeout time.Duration) (*Server, error) {
	c, err := newCodec()
	if err != nil {
		return nil, err
	}
	if replyTimeout <= 0 {
		replyTimeout = DefaultReplyTimeout
	}
	return &Server{
		handler:      h,
		replyTimeout: replyTimeout,
		codec:        c,
		conns:        make(map[*serverConn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// surfaces are local processes, not browsers
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}, nil
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("bridge: upgrade failed")
		return
	}

	q := r.URL.Query()
	compress, _ := strconv.ParseBool(q.Get("compress"))
	c := &serverConn{ws: ws, surface: q.Get("surface"), compress: compress}
	if c.surface == "" {
		c.surface = "unknown"
	}

	s.add(c)
	defer s.remove(c)

	log.Info().Str("surface", c.surface).Bool("compress", compress).Msg("bridge: surface connected")
	s.serve(r.Context(), c)
	log.Info().Str("surface", c.surface).Msg("bridge: surface disconnected")
}

func (s *Server) serve(ctx context.Context, c *serverConn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Str("surface", c.surface).Msg("bridge: read ended")
			}
			return
		}

		data, err := s.codec.payload(frame)
		if err != nil {
			log.Warn().Err(err).Str("surface", c.surface).Msg("bridge: dropping frame")
			continue
		}
		env, err := messaging.Decode(data)
		if err != nil || env.Request == nil {
			log.Warn().Err(err).Str("surface", c.surface).Msg("bridge: dropping non-request frame")
			continue
		}

		wg.Add(1)
		go func(req messaging.Request) {
			defer wg.Done()
			s.dispatch(ctx, c, req)
		}(*env.Request)
	}
}

func (s *Server) dispatch(ctx context.Context, c *serverConn, req messaging.Request) {
	ctx, cancel := context.WithTimeout(ctx, s.replyTimeout)
	defer cancel()

	resp, err := s.handler.Handle(ctx, req)
	resp.ID = req.ID
	if err != nil && resp.Error == "" {
		resp.Error = err.Error()
	}
	if err := s.write(c, resp); err != nil {
		log.Debug().Err(err).Str("surface", c.surface).Msg("bridge: failed to write response")
	}
}

func (s *Server) write(c *serverConn, v any) error {
	mt, data, err := s.codec.marshal(v, c.compress)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(mt, data)
}

// Broadcast sends o to every connected surface. Failed writes are logged;
// the read loop notices dead connections.
func (s *Server) Broadcast(o messaging.Outbound) {
	s.mu.Lock()
	conns := make([]*serverConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if err := s.write(c, o); err != nil {
			log.Debug().Err(err).Str("surface", c.surface).Msg("bridge: broadcast failed")
		}
	}
}

// Connections returns the number of connected surfaces.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) add(c *serverConn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
	metrics.BridgeConnections.Inc()
}

func (s *Server) remove(c *serverConn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	metrics.BridgeConnections.Dec()
	_ = c.ws.Close()
}

// Close disconnects every surface.
func (s *Server) Close() error {
	s.mu.Lock()
	var errs []error
	for c := range s.conns {
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		if err := c.ws.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.mu.Unlock()
	return errors.Join(errs...)
}
