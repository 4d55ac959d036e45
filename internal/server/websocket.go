package server

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/conneroisu/sentra/internal/analysis"
	"github.com/conneroisu/sentra/internal/errors"
	"github.com/conneroisu/sentra/internal/logging"
	"github.com/conneroisu/sentra/internal/metrics"
	"github.com/conneroisu/sentra/internal/validation"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 54 * time.Second

	// Buffered outbound messages per client.
	sendBuffer = 16
)

// Websocket message types.
const (
	msgChat    = "chat"
	msgAnalyze = "analyze"
	msgPing    = "ping"
	msgReply   = "reply"
	msgReport  = "report"
	msgError   = "error"
	msgPong    = "pong"
)

// wsRequest is a client message. Type selects which fields apply.
type wsRequest struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Message   string          `json:"message,omitempty"`
	Source    string          `json:"source,omitempty"`
	Language  string          `json:"language,omitempty"`
	Filename  string          `json:"filename,omitempty"`
	Kinds     []analysis.Kind `json:"kinds,omitempty"`
}

// wsResponse echoes the request ID so clients can pair replies.
type wsResponse struct {
	Type  string      `json:"type"`
	ID    string      `json:"id,omitempty"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
	Code  string      `json:"code,omitempty"`
}

// Client is one websocket connection.
type Client struct {
	conn *websocket.Conn
	send chan wsResponse
	done chan struct{}
}

// abort drops the connection and drains send until readPump stops.
func (c *Client) abort() {
	_ = c.conn.CloseNow()
	for range c.send {
	}
}

// Hub tracks open websocket clients so shutdown can close them.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
	closed  bool
	logger  logging.Logger
}

// NewHub creates an empty hub.
func NewHub(logger logging.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) add(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	metrics.WebSocketConnections.Inc()
	return true
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		metrics.WebSocketConnections.Dec()
	}
}

// Len reports the number of open clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseAll closes every client and rejects new ones.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, s.logger, "GET")
		return
	}

	if !s.checkOrigin(r) {
		writeError(r.Context(), w, s.logger, errors.ErrInvalidOrigin(r.Header.Get("Origin")))
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// checkOrigin already ran.
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "WebSocket upgrade failed")
		return
	}
	conn.SetReadLimit(s.config.Server.MaxBodyBytes)

	client := &Client{
		conn: conn,
		send: make(chan wsResponse, sendBuffer),
		done: make(chan struct{}),
	}
	if !s.hub.add(client) {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer s.hub.remove(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go s.writePump(ctx, client)
	s.readPump(ctx, client)
	close(client.send)
	<-client.done
}

// checkOrigin admits clients without an Origin, same-host browsers and the
// configured origins. Development also admits any localhost port.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return false
	}
	if strings.EqualFold(originURL.Host, r.Host) {
		return true
	}

	allowed := s.config.Server.AllowedOrigins
	if s.config.Server.Environment == "development" {
		switch originURL.Hostname() {
		case "localhost", "127.0.0.1", "::1":
			return true
		}
	}
	for _, a := range allowed {
		if a == "*" || a == origin || a == originURL.Host {
			return true
		}
	}
	return false
}

// readPump handles requests until the peer goes away.
func (s *Server) readPump(ctx context.Context, c *Client) {
	for {
		var req wsRequest
		if err := wsjson.Read(ctx, c.conn, &req); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				s.logger.Debug(ctx, "WebSocket read ended", "error", err.Error())
			}
			return
		}

		select {
		case c.send <- s.dispatch(ctx, req):
		case <-ctx.Done():
			return
		}
	}
}

// writePump writes responses and keeps the connection alive with pings.
func (s *Server) writePump(ctx context.Context, c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.done)
	}()

	for {
		select {
		case resp, ok := <-c.send:
			if !ok {
				_ = c.conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := wsjson.Write(writeCtx, c.conn, resp)
			cancel()
			if err != nil {
				s.logger.Debug(ctx, "WebSocket write failed", "error", err.Error())
				c.abort()
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.abort()
				return
			}
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req wsRequest) wsResponse {
	switch req.Type {
	case msgPing:
		return wsResponse{Type: msgPong, ID: req.ID}

	case msgChat:
		reply, err := s.proxy.Chat(ctx, req.SessionID, validation.SanitizeInput(req.Message))
		if err != nil {
			return errorMessage(req.ID, err)
		}
		return wsResponse{Type: msgReply, ID: req.ID, Data: reply}

	case msgAnalyze:
		metrics.SourceBytes.Observe(float64(len(req.Source)))
		report, err := s.engine.Analyze(ctx, analysis.Request{
			Filename: req.Filename,
			Language: req.Language,
			Source:   req.Source,
			Kinds:    req.Kinds,
		})
		if err != nil {
			return errorMessage(req.ID, err)
		}
		return wsResponse{Type: msgReport, ID: req.ID, Data: report}

	default:
		return errorMessage(req.ID, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"unknown message type "+strconv.Quote(req.Type)))
	}
}

func errorMessage(id string, err error) wsResponse {
	_, msg := publicError(err)
	return wsResponse{Type: msgError, ID: id, Error: msg, Code: errors.CodeOf(err)}
}
