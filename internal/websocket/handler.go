package websocket

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"stagelink/internal/config"
	"stagelink/internal/registry"
)

// WebSocket upgrader with production-ready settings
// ARCHITECTURAL DISCOVERY: Separate upgrader configuration enables reuse
// and consistent WebSocket settings across different handler instances
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// FUNCTIONAL DISCOVERY: Allow all origins for development
		// Production deployments should implement stricter origin checking
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Session consumes frames and disconnects for a registered connection.
type Session interface {
	HandleFrame(client *registry.Client, data []byte)
	HandleDisconnect(client *registry.Client)
}

// TokenValidator consumes single-use handshake tokens.
type TokenValidator interface {
	Validate(token string) bool
}

// Handler upgrades HTTP requests and drives the per-connection read loop.
// ARCHITECTURAL DISCOVERY: Clean separation of WebSocket handling from
// business logic - the session handler never sees the transport
type Handler struct {
	registry *registry.Registry
	session  Session
	tokens   TokenValidator
	cfg      *config.WebSocketConfig
}

// NewHandler creates a new WebSocket handler with dependency injection
func NewHandler(reg *registry.Registry, session Session, tokens TokenValidator, cfg *config.WebSocketConfig) *Handler {
	return &Handler{
		registry: reg,
		session:  session,
		tokens:   tokens,
		cfg:      cfg,
	}
}

// HandleWebSocket handles WebSocket connection requests.
// ARCHITECTURAL DISCOVERY: Multi-stage validation (token -> upgrade ->
// registration) keeps invalid connections from consuming relay resources
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// A presented token must be valid; tokens are consumed on first use
	if token := r.URL.Query().Get("token"); token != "" && h.tokens != nil {
		if !h.tokens.Validate(token) {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}
	}

	// Upgrade to WebSocket
	// FUNCTIONAL DISCOVERY: WebSocket upgrade after validation prevents
	// resource waste on invalid requests
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	wsConn := NewConnection(conn, h.cfg.BufferSize, h.cfg.WriteTimeout)

	// Register connection before any frames are read so broadcast passes
	// can already reach it
	client, err := h.registry.Register(wsConn)
	if err != nil {
		log.Printf("Failed to register connection: %v", err)
		_ = wsConn.Close()
		return
	}

	log.Printf("Connection established: id=%s remote=%s", client.ID, r.RemoteAddr)

	// TECHNICAL DISCOVERY: Separate goroutine for connection lifecycle
	// management enables clean resource cleanup and heartbeat monitoring
	go h.handleConnection(client, wsConn)
}

// handleConnection manages the connection lifecycle with heartbeat monitoring
// ARCHITECTURAL DISCOVERY: Single goroutine per connection handles both
// heartbeat and message reading to prevent goroutine proliferation
func (h *Handler) handleConnection(client *registry.Client, conn *Connection) {
	defer func() {
		// FUNCTIONAL DISCOVERY: Deferred cleanup ensures the full disconnect
		// cascade runs even if connection handling exits unexpectedly
		h.session.HandleDisconnect(client)
		_ = conn.Close()
	}()

	// Set up ping/pong heartbeat monitoring
	if err := conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	// FUNCTIONAL DISCOVERY: Ping ticker runs independently of message
	// processing so a quiet client still proves liveness
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(h.cfg.WriteTimeout)); err != nil {
					return
				}
			case <-conn.Done():
				return
			}
		}
	}()

	// Read pump - frames from one connection are processed strictly in order
	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		if messageType == websocket.TextMessage {
			h.session.HandleFrame(client, data)
		}
	}
}
