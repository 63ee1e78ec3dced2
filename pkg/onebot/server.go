package onebot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.mau.fi/util/exsync"
)

const (
	// APITimeout bounds every request/response round trip to an endpoint.
	APITimeout = 120 * time.Second

	eventQueueSize   = 1024
	requestQueueSize = 1024

	wsReadBufferSize = 8 * 1024 * 1024
	wsMaxMessageSize = 512 * 1024 * 1024
)

// EndpointEvent tags an inbound event with the connection it arrived on.
type EndpointEvent struct {
	Endpoint Endpoint
	Event    Event
}

type connection struct {
	endpoint Endpoint
	requests chan *Request
	// closed by the reader when the connection dies
	done chan struct{}
}

// Server accepts WebSocket connections from OneBot adapters, pumps their
// events into a shared channel and fans API requests back out to the right
// connection, correlating responses by echo.
type Server struct {
	log    zerolog.Logger
	addr   string
	bearer string

	events  chan *EndpointEvent
	conns   *exsync.Map[Endpoint, *connection]
	pending *exsync.Map[string, chan *Response]

	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

func NewServer(log zerolog.Logger, addr, token string) *Server {
	var bearer string
	if token != "" {
		bearer = "Bearer " + token
	}
	return &Server{
		log:     log,
		addr:    addr,
		bearer:  bearer,
		events:  make(chan *EndpointEvent, eventQueueSize),
		conns:   exsync.NewMap[Endpoint, *connection](),
		pending: exsync.NewMap[string, chan *Response](),
		upgrader: websocket.Upgrader{
			ReadBufferSize: wsReadBufferSize,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
	}
}

// Events exposes the inbound event stream shared by all connections.
func (s *Server) Events() <-chan *EndpointEvent {
	return s.events
}

// Run serves WebSocket handshakes until the context is cancelled. Failure
// to bind the listen address is returned immediately.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{Addr: s.addr, Handler: s}
	s.log.Info().Str("addr", s.addr).Msg("OneBot server listening")

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpSrv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return fmt.Errorf("onebot server: %w", err)
	case <-ctx.Done():
		// Close rather than Shutdown so hijacked websocket connections
		// are torn down and their readers exit.
		_ = s.httpSrv.Close()
		return nil
	}
}

// ServeHTTP performs the authenticated websocket handshake and then owns
// the connection until its reader dies.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != s.bearer {
		s.log.Warn().Str("remote_addr", r.RemoteAddr).Msg("Rejecting connection with bad authorization")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	selfID := r.Header.Get("X-Self-ID")
	userAgent := r.Header.Get("User-Agent")
	if selfID == "" || userAgent == "" {
		s.log.Warn().Str("remote_addr", r.RemoteAddr).Msg("Rejecting connection without self id or user agent")
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	platform := PlatformQQ
	if strings.HasPrefix(userAgent, "WeChat") {
		platform = PlatformWeChat
	}
	endpoint := Endpoint{Platform: platform, ID: selfID}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("Websocket handshake failed")
		return
	}
	ws.SetReadLimit(wsMaxMessageSize)

	conn := &connection{
		endpoint: endpoint,
		requests: make(chan *Request, requestQueueSize),
		done:     make(chan struct{}),
	}
	s.conns.Set(endpoint, conn)

	log := s.log.With().
		Stringer("endpoint", endpoint).
		Str("remote_addr", r.RemoteAddr).
		Logger()
	log.Info().Str("user_agent", userAgent).Msg("New OneBot client connection")

	go s.writeLoop(log, ws, conn)
	s.readLoop(log, ws, conn)
}

func (s *Server) readLoop(log zerolog.Logger, ws *websocket.Conn, conn *connection) {
	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Msg("OneBot client connection closed")
			// Unregister before announcing the disconnect so nothing can
			// route to the dead connection after observing the event.
			s.conns.Delete(conn.endpoint)
			close(conn.done)
			_ = ws.Close()
			evt := NewLifecycleEvent(ID(conn.endpoint.ID), LifecycleDisconnect, time.Now().Unix())
			s.events <- &EndpointEvent{Endpoint: conn.endpoint, Event: evt}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		s.handleFrame(log, conn.endpoint, data)
	}
}

func (s *Server) handleFrame(log zerolog.Logger, endpoint Endpoint, data []byte) {
	log.Trace().Str("payload", string(data)).Msg("Received OneBot payload")
	payload, err := ParsePayload(data)
	if err != nil {
		log.Warn().Err(err).Str("payload", string(data)).Msg("Failed to decode payload")
		return
	}
	switch p := payload.(type) {
	case Event:
		s.events <- &EndpointEvent{Endpoint: endpoint, Event: p}
	case *Response:
		waiter, ok := s.pending.Pop(p.Echo)
		if !ok {
			log.Debug().Str("echo", p.Echo).Msg("Dropping response with unknown echo")
			return
		}
		waiter <- p
	case *Request:
		log.Warn().Str("action", p.Action).Msg("Unexpected request from client")
	}
}

func (s *Server) writeLoop(log zerolog.Logger, ws *websocket.Conn, conn *connection) {
	for {
		select {
		case req := <-conn.requests:
			data, err := json.Marshal(req)
			if err != nil {
				log.Warn().Err(err).Str("action", req.Action).Msg("Failed to marshal request")
				continue
			}
			if err = ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("action", req.Action).Msg("Failed to write request")
			}
		case <-conn.done:
			return
		}
	}
}

// Call sends a request to the named endpoint and waits for the response
// with the matching echo. The wait is bounded by APITimeout and by ctx.
func (s *Server) Call(ctx context.Context, endpoint Endpoint, req *Request) (*Response, error) {
	conn, ok := s.conns.Get(endpoint)
	if !ok {
		return nil, fmt.Errorf("client %s not found", endpoint)
	}

	// Register the waiter before enqueueing so a fast response can never
	// arrive before its pending entry exists.
	waiter := make(chan *Response, 1)
	s.pending.Set(req.Echo, waiter)

	select {
	case conn.requests <- req:
	case <-conn.done:
		s.pending.Delete(req.Echo)
		return nil, fmt.Errorf("client %s disconnected", endpoint)
	case <-ctx.Done():
		s.pending.Delete(req.Echo)
		return nil, ctx.Err()
	}

	timer := time.NewTimer(APITimeout)
	defer timer.Stop()
	select {
	case resp := <-waiter:
		return resp, nil
	case <-timer.C:
		s.pending.Delete(req.Echo)
		return nil, fmt.Errorf("%s call timed out", req.Action)
	case <-ctx.Done():
		s.pending.Delete(req.Echo)
		return nil, ctx.Err()
	}
}
