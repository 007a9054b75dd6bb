package mcp

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	HeaderSessionID   = "Mcp-Session-Id"
	headerLastEventID = "Last-Event-ID"

	mimeJSON        = "application/json"
	mimeEventStream = "text/event-stream"

	defaultPingInterval = 30 * time.Second
	defaultMaxBodyBytes = 4 << 20
)

// DefaultAllowedOrigins are the origins accepted on POST /mcp. An entry
// without a port matches any port; an entry without a host matches any host
// of its scheme.
var DefaultAllowedOrigins = []string{
	"http://localhost",
	"http://127.0.0.1",
	"https://localhost",
	"https://127.0.0.1",
	"app://",
}

type ServerOptions struct {
	AllowedOrigins []string
	PingInterval   time.Duration
	MaxBodyBytes   int64
}

type allowedOrigin struct {
	scheme string
	host   string
	port   string
}

func (a allowedOrigin) matches(u *url.URL) bool {
	if !strings.EqualFold(a.scheme, u.Scheme) {
		return false
	}
	if a.host == "" {
		return true
	}
	if !strings.EqualFold(a.host, u.Hostname()) {
		return false
	}
	return a.port == "" || a.port == u.Port()
}

// Server is the streamable HTTP transport for the dispatcher.
type Server struct {
	dispatcher *Dispatcher
	sessions   SessionStore
	origins    []allowedOrigin
	interval   time.Duration
	maxBody    int64
	log        *zap.Logger
}

func NewServer(dispatcher *Dispatcher, sessions SessionStore, opts ServerOptions, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	raw := opts.AllowedOrigins
	if len(raw) == 0 {
		raw = DefaultAllowedOrigins
	}
	origins := make([]allowedOrigin, 0, len(raw))
	for _, o := range raw {
		u, err := url.Parse(strings.TrimSpace(o))
		if err != nil || u.Scheme == "" {
			log.Warn("Ignoring invalid MCP allowed origin", zap.String("origin", o))
			continue
		}
		origins = append(origins, allowedOrigin{scheme: u.Scheme, host: u.Hostname(), port: u.Port()})
	}
	interval := opts.PingInterval
	if interval <= 0 {
		interval = defaultPingInterval
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	return &Server{
		dispatcher: dispatcher,
		sessions:   sessions,
		origins:    origins,
		interval:   interval,
		maxBody:    maxBody,
		log:        log,
	}
}

func (s *Server) RegisterRoutes(r gin.IRoutes) {
	r.POST("/mcp", s.handlePost)
	r.GET("/mcp", s.handleStream)
	r.DELETE("/mcp", s.handleDelete)
	r.GET("/", s.handleInfo)
	r.GET("/health", s.handleHealth)
}

func (s *Server) handlePost(c *gin.Context) {
	if origin := c.GetHeader("Origin"); origin != "" && !s.originAllowed(origin) {
		s.log.Warn("Rejected MCP request origin", zap.String("origin", origin))
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden origin"})
		return
	}

	accept := c.GetHeader("Accept")
	if accept != "" && !acceptsMCP(accept) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Accept header must include application/json or text/event-stream",
		})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, newErrorResponse(nil, NewError(CodeParseError, "Parse error: request body exceeds %d bytes", tooLarge.Limit)))
			return
		}
		c.JSON(http.StatusBadRequest, newErrorResponse(nil, NewError(CodeParseError, "Parse error")))
		return
	}
	messages, batch, parseErr := splitBatch(body)
	if parseErr != nil {
		c.JSON(http.StatusBadRequest, newErrorResponse(nil, parseErr))
		return
	}

	ctx := c.Request.Context()
	sessionID := c.GetHeader(HeaderSessionID)
	responses := make([]*Response, 0, len(messages))
	for _, raw := range messages {
		req, resp := s.dispatcher.Handle(ctx, raw)
		if resp == nil {
			continue
		}
		if sessionID == "" && req != nil && req.Method == "initialize" && resp.Error == nil {
			if id, err := s.openSession(c, req.Params); err != nil {
				s.log.Error("Failed to create MCP session", zap.Error(err))
			} else {
				sessionID = id
			}
		}
		responses = append(responses, resp)
	}

	if len(responses) == 0 {
		c.Status(http.StatusAccepted)
		return
	}
	if sessionID != "" {
		c.Header(HeaderSessionID, sessionID)
	}

	if prefersEventStream(accept) {
		s.replay(c, responses)
		return
	}
	if !batch {
		c.JSON(http.StatusOK, responses[0])
		return
	}
	c.JSON(http.StatusOK, responses)
}

func (s *Server) openSession(c *gin.Context, params json.RawMessage) (string, error) {
	var p initializeParams
	if !isAbsent(params) {
		_ = json.Unmarshal(params, &p)
	}
	session := Session{
		ID:            uuid.NewString(),
		ClientName:    p.ClientInfo.Name,
		ClientVersion: p.ClientInfo.Version,
	}
	if err := s.sessions.Create(c.Request.Context(), session); err != nil {
		return "", err
	}
	s.log.Info("Created MCP session", zap.String("session_id", session.ID))
	return session.ID, nil
}

// replay sends each response as its own SSE message event.
func (s *Server) replay(c *gin.Context, responses []*Response) {
	setStreamHeaders(c)
	c.Status(http.StatusOK)
	for _, resp := range responses {
		data, err := json.Marshal(resp)
		if err != nil {
			s.log.Error("Failed to encode MCP response", zap.Error(err))
			continue
		}
		c.Render(-1, sse.Event{
			Id:    uuid.NewString(),
			Event: "message",
			Data:  string(data),
		})
	}
	c.Writer.Flush()
}

type pingEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// handleStream keeps a heartbeat stream open until the client goes away.
func (s *Server) handleStream(c *gin.Context) {
	if !strings.Contains(c.GetHeader("Accept"), mimeEventStream) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error": "Method Not Allowed - GET requires Accept: text/event-stream",
		})
		return
	}

	ctx := c.Request.Context()
	if id := c.GetHeader(HeaderSessionID); id != "" {
		ok, err := s.sessions.Exists(ctx, id)
		if err != nil {
			s.log.Error("Failed to look up MCP session", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check session"})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
	}

	eventID := 0
	if last := c.GetHeader(headerLastEventID); last != "" {
		if n, err := strconv.Atoi(last); err == nil {
			eventID = n + 1
		}
	}

	setStreamHeaders(c)
	c.Status(http.StatusOK)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		data, _ := json.Marshal(pingEvent{Type: "ping", Timestamp: time.Now().Unix()})
		c.Render(-1, sse.Event{
			Id:    strconv.Itoa(eventID),
			Event: "ping",
			Data:  string(data),
		})
		c.Writer.Flush()
		eventID++

		select {
		case <-ctx.Done():
			s.log.Debug("MCP event stream closed")
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) handleDelete(c *gin.Context) {
	id := c.GetHeader(HeaderSessionID)
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Mcp-Session-Id header required"})
		return
	}
	deleted, err := s.sessions.Delete(c.Request.Context(), id)
	if err != nil {
		s.log.Error("Failed to delete MCP session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete session"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	s.log.Info("Deleted MCP session", zap.String("session_id", id))
	c.Status(http.StatusNoContent)
}

func (s *Server) handleInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"implementation":   ServerName + "-server",
		"version":          ServerVersion,
		"transport":        "streamable-http",
		"mcp_endpoint":     "/mcp",
		"protocol_version": ProtocolVersion,
		"tools_count":      s.dispatcher.Tools().Len(),
		"capabilities":     []string{"tools"},
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	count, err := s.sessions.Count(c.Request.Context())
	if err != nil {
		s.log.Warn("Failed to count MCP sessions", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "unhealthy",
			"transport": "streamable-http",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"transport": "streamable-http",
		"sessions":  count,
	})
}

func (s *Server) originAllowed(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" {
		return false
	}
	for _, allowed := range s.origins {
		if allowed.matches(u) {
			return true
		}
	}
	return false
}

func acceptsMCP(accept string) bool {
	return strings.Contains(accept, mimeJSON) ||
		strings.Contains(accept, mimeEventStream) ||
		strings.Contains(accept, "*/*")
}

// prefersEventStream reports whether the client listed text/event-stream
// ahead of application/json.
func prefersEventStream(accept string) bool {
	sseAt := strings.Index(accept, mimeEventStream)
	if sseAt < 0 {
		return false
	}
	jsonAt := strings.Index(accept, mimeJSON)
	return jsonAt < 0 || sseAt < jsonAt
}

func setStreamHeaders(c *gin.Context) {
	c.Header("Content-Type", mimeEventStream)
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
}
