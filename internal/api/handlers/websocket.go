// Package handlers provides HTTP request handlers for the portsweep API.
// This file implements the WebSocket endpoint that lets a browser start a
// scan and receive its results as they resolve.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/anstrom/portsweep/internal/errors"
	"github.com/anstrom/portsweep/internal/logging"
	"github.com/anstrom/portsweep/internal/metrics"
	"github.com/anstrom/portsweep/internal/scanner"
	"github.com/anstrom/portsweep/internal/scanning"
	"github.com/anstrom/portsweep/internal/targets"
)

const (
	// WebSocket configuration constants.
	writeWait       = 10 * time.Second                                   // Time allowed to write a message to the peer
	pongWait        = 60 * time.Second                                   // Time to read next pong message from peer
	pingPeriodRatio = 0.9                                                // Ratio of pongWait for pingPeriod
	pingPeriod      = time.Duration(float64(pongWait) * pingPeriodRatio) // Send pings to peer (must be < pongWait)
	maxMessageSize  = 4096                                               // Maximum message size allowed from peer
	bufferSize      = 256                                                // Size of each client's send buffer
)

// Message types exchanged over the socket.
const (
	MessageStartScan    = "start-scan"
	MessageStopScan     = "stop-scan"
	MessageScanStarted  = "scan-started"
	MessageScanResult   = "scan-result"
	MessageScanComplete = "scan-complete"
	MessageScanStopped  = "scan-stopped"
	MessageError        = "error"
)

// WebSocketMessage represents a WebSocket message structure.
type WebSocketMessage struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// StartScanData is the payload of a start-scan message.
type StartScanData struct {
	IP      string   `json:"ip"`
	Ports   string   `json:"ports"`
	Speed   string   `json:"speed"`
	Timeout flexible `json:"timeout"`
}

// ScanStartedData is the payload of a scan-started message.
type ScanStartedData struct {
	ID    string `json:"id"`
	Total int    `json:"total"`
}

// ScanStoppedData is the payload of a scan-stopped message.
type ScanStoppedData struct {
	ID        string `json:"id,omitempty"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
}

// ErrorData is the payload of an error message.
type ErrorData struct {
	Message string `json:"message"`
}

// flexible accepts a JSON number or a numeric string; browsers send form
// values as strings.
type flexible int

func (f *flexible) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// Unparseable timeouts fall back to the default, like an absent one.
		*f = 0
		return nil
	}
	*f = flexible(n)
	return nil
}

// WebSocketHandler handles WebSocket connections. Each connection may run
// one scan at a time; closing the connection stops it.
type WebSocketHandler struct {
	manager  *scanner.Manager
	defaults ScanDefaults
	logger   *logging.Logger
	metrics  *metrics.PrometheusMetrics
	upgrader websocket.Upgrader

	mutex   sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool
}

// wsClient is one connected socket.
type wsClient struct {
	handler   *WebSocketHandler
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	requestID string
	logger    *logging.Logger

	mu  sync.Mutex
	job *scanner.Job
}

// NewWebSocketHandler creates a new WebSocket handler. A nil checkOrigin
// accepts every origin.
func NewWebSocketHandler(manager *scanner.Manager, defaults ScanDefaults, logger *logging.Logger,
	m *metrics.PrometheusMetrics, checkOrigin func(r *http.Request) bool) *WebSocketHandler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &WebSocketHandler{
		manager:  manager,
		defaults: defaults,
		logger:   logger.WithFields("handler", "websocket"),
		metrics:  m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		clients: make(map[*wsClient]struct{}),
	}
}

// ServeWS handles GET /ws. Clients send start-scan and stop-scan messages and
// receive scan-started, scan-result, scan-complete, scan-stopped and error.
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestIDFromContext(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", "request_id", requestID, "error", err)
		return
	}

	c := &wsClient{
		handler:   h,
		conn:      conn,
		send:      make(chan []byte, bufferSize),
		done:      make(chan struct{}),
		requestID: requestID,
		logger:    h.logger.WithFields("request_id", requestID),
	}
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	c.logger.Info("WebSocket client connected", "remote_addr", r.RemoteAddr)

	go c.writePump()
	c.readPump()
}

func (h *WebSocketHandler) register(c *wsClient) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.metrics.SetWebSocketClients(len(h.clients))
	return true
}

func (h *WebSocketHandler) unregister(c *wsClient) {
	h.mutex.Lock()
	delete(h.clients, c)
	h.metrics.SetWebSocketClients(len(h.clients))
	h.mutex.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *WebSocketHandler) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Close disconnects every client, stopping their scans, and refuses new ones.
func (h *WebSocketHandler) Close() error {
	h.mutex.Lock()
	h.closed = true
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mutex.Unlock()

	for _, c := range clients {
		c.close()
	}
	h.logger.Info("WebSocket handler closed", "clients", len(clients))
	return nil
}

// readPump pumps messages from the WebSocket connection to the client.
func (c *wsClient) readPump() {
	defer func() {
		c.close()
		c.stopScan()
		c.handler.unregister(c)
		c.logger.Info("WebSocket client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error("Failed to set read deadline", "error", err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket unexpected close", "error", err)
			}
			return
		}

		var msg WebSocketMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("invalid message")
			continue
		}
		c.dispatch(msg)
	}
}

func (c *wsClient) dispatch(msg WebSocketMessage) {
	switch msg.Type {
	case MessageStartScan:
		var req StartScanData
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				c.sendError("invalid start-scan payload")
				return
			}
		}
		c.startScan(req)
	case MessageStopScan:
		c.handleStop()
	default:
		c.sendError(fmt.Sprintf("unknown message type %q", msg.Type))
	}
}

func (c *wsClient) startScan(req StartScanData) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.job != nil {
		c.sendError("a scan is already running on this connection")
		return
	}

	ports := req.Ports
	if strings.TrimSpace(ports) == "" {
		ports = c.handler.defaults.Ports
	}
	opts := scanning.Options{Speed: c.handler.defaults.Speed, Timeout: c.handler.defaults.Timeout}
	if speed, ok := scanning.ParseSpeed(req.Speed); ok && req.Speed != "" {
		opts.Speed = speed
	}
	if req.Timeout > 0 {
		opts.Timeout = time.Duration(req.Timeout) * time.Millisecond
	}

	// Results must not overtake scan-started.
	ready := make(chan struct{})
	job, err := c.handler.manager.Start(req.IP, ports, opts, func(job *scanner.Job, event scanner.Event) {
		select {
		case <-ready:
		case <-c.done:
			return
		}
		c.forward(job, event)
	})
	if err != nil {
		c.logger.WithError(err).Warn("WebSocket scan rejected")
		c.sendError(startErrorMessage(err))
		return
	}

	c.job = job
	c.logger.Info("WebSocket scan started", "scan_id", job.ID(), "total", job.Total())
	c.sendMessage(MessageScanStarted, ScanStartedData{ID: job.ID(), Total: job.Total()})
	close(ready)
}

// startErrorMessage keeps the wording browsers already display.
func startErrorMessage(err error) string {
	switch errors.GetCode(err) {
	case errors.CodeInvalidHostSpec, errors.CodeInvalidPortSpec:
		return "No valid IPs or Ports"
	case errors.CodeTooManyHosts:
		return fmt.Sprintf("Too many hosts, at most %d addresses per scan", targets.MaxHosts)
	case errors.CodeTooManyScans:
		return "Too many concurrent scans, try again later"
	default:
		return err.Error()
	}
}

// forward runs on the job's drain goroutine.
func (c *wsClient) forward(job *scanner.Job, event scanner.Event) {
	switch event.Type {
	case scanner.EventResult:
		c.sendMessage(MessageScanResult, event.Result)
	case scanner.EventComplete:
		c.clearJob(job)
		results := event.Results
		if results == nil {
			results = []scanning.Result{}
		}
		c.sendMessage(MessageScanComplete, results)
	case scanner.EventStopped:
		c.clearJob(job)
		progress := job.Progress()
		c.sendMessage(MessageScanStopped, ScanStoppedData{
			ID:        job.ID(),
			Completed: progress.Completed,
			Total:     progress.Total,
		})
	}
}

func (c *wsClient) clearJob(job *scanner.Job) {
	c.mu.Lock()
	if c.job == job {
		c.job = nil
	}
	c.mu.Unlock()
}

// handleStop stops the running scan. Its scan-stopped message is sent by
// forward; without a running scan one is sent immediately.
func (c *wsClient) handleStop() {
	c.mu.Lock()
	job := c.job
	c.mu.Unlock()

	if job == nil {
		c.sendMessage(MessageScanStopped, ScanStoppedData{})
		return
	}
	job.Stop()
}

func (c *wsClient) stopScan() {
	c.mu.Lock()
	job := c.job
	c.mu.Unlock()
	if job != nil {
		job.Stop()
	}
}

func (c *wsClient) sendError(message string) {
	c.sendMessage(MessageError, ErrorData{Message: message})
}

// sendMessage queues a message for the write pump. A client that cannot keep
// up for writeWait is disconnected.
func (c *wsClient) sendMessage(msgType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("Failed to marshal WebSocket payload", "type", msgType, "error", err)
		return
	}
	frame, err := json.Marshal(WebSocketMessage{Type: msgType, Timestamp: time.Now().UTC(), Data: data})
	if err != nil {
		c.logger.Error("Failed to marshal WebSocket message", "type", msgType, "error", err)
		return
	}

	select {
	case c.send <- frame:
		return
	case <-c.done:
		return
	default:
	}

	timer := time.NewTimer(writeWait)
	defer timer.Stop()
	select {
	case c.send <- frame:
	case <-c.done:
	case <-timer.C:
		c.logger.Warn("WebSocket client too slow, disconnecting")
		c.close()
	}
}

// writePump pumps queued messages to the connection and keeps it alive.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case frame := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("Failed to set write deadline", "error", err)
				c.close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug("Write failed, closing connection", "error", err)
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.close()
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("Ping failed, closing connection", "error", err)
				c.close()
				return
			}
		}
	}
}

// close signals both pumps to exit. The read pump notices when the write
// pump closes the connection.
func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
