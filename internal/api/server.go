// Package api exposes the REST boundary of the relay: room management,
// handshake tokens, and health, alongside the WebSocket upgrade endpoint.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"stagelink/internal/auth"
	"stagelink/internal/registry"
	"stagelink/internal/room"
	"stagelink/pkg/types"
)

// Server wires the HTTP surface onto the relay's in-memory components.
type Server struct {
	engine   *gin.Engine
	rooms    *room.Store
	tokens   *auth.Tokens
	registry *registry.Registry
}

// NewServer builds the router. The websocket upgrade handler is passed in
// so the api package never depends on the transport internals.
func NewServer(rooms *room.Store, tokens *auth.Tokens, reg *registry.Registry, wsHandler http.HandlerFunc) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:   gin.New(),
		rooms:    rooms,
		tokens:   tokens,
		registry: reg,
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
	}))

	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/ws", gin.WrapF(wsHandler))

	api := s.engine.Group("/api")
	{
		api.POST("/rooms", s.handleCreateRoom)
		api.GET("/rooms/:code", s.handleGetRoom)
		api.GET("/rooms/:code/users", s.handleRoomUsers)
		api.POST("/rooms/:code/join", s.handleJoinRoom)
		api.POST("/auth/token", s.handleIssueToken)
		api.GET("/auth/validate", s.handleValidateToken)
	}

	return s
}

// Handler exposes the router for the HTTP server and for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

type errorBody struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorBody{Error: true, Code: code, Message: message})
}

// failFromStore maps store errors onto HTTP statuses.
func failFromStore(c *gin.Context, err error) {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		fail(c, http.StatusNotFound, "ROOM_NOT_FOUND", "room does not exist")
	case errors.Is(err, room.ErrRoomFull):
		fail(c, http.StatusConflict, "ROOM_FULL", "room has reached its user limit")
	case errors.Is(err, room.ErrRoomCodeConflict):
		fail(c, http.StatusConflict, "ROOM_CODE_CONFLICT", "room code already in use")
	case errors.Is(err, room.ErrCodeGenerationExhausted):
		fail(c, http.StatusServiceUnavailable, "CODE_SPACE_EXHAUSTED", "could not allocate a room code")
	case errors.Is(err, types.ErrInvalidRoomCode):
		fail(c, http.StatusBadRequest, "INVALID_ROOM_CODE", "room code must be 6 hex characters")
	case errors.Is(err, types.ErrInvalidName):
		fail(c, http.StatusBadRequest, "INVALID_NAME", "name must be 1-100 characters")
	default:
		fail(c, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	stats := s.registry.Stats()
	roomStats := s.rooms.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"timestamp":   time.Now().UTC(),
		"connections": stats,
		"rooms":       roomStats,
	})
}

type createRoomRequest struct {
	HostName string              `json:"hostName" binding:"required"`
	RoomCode string              `json:"roomCode"`
	Settings *types.RoomSettings `json:"settings"`
}

func (s *Server) handleCreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "INVALID_REQUEST", "hostName is required")
		return
	}

	created, err := s.rooms.CreateRoom(req.HostName, req.RoomCode, req.Settings)
	if err != nil {
		failFromStore(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"roomCode":  created.Code,
		"hostName":  created.HostName,
		"settings":  created.Settings,
		"createdAt": created.CreatedAt,
	})
}

func (s *Server) handleGetRoom(c *gin.Context) {
	snapshot, ok := s.rooms.Snapshot(c.Param("code"))
	if !ok {
		fail(c, http.StatusNotFound, "ROOM_NOT_FOUND", "room does not exist")
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) handleRoomUsers(c *gin.Context) {
	snapshot, ok := s.rooms.Snapshot(c.Param("code"))
	if !ok {
		fail(c, http.StatusNotFound, "ROOM_NOT_FOUND", "room does not exist")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"roomCode": snapshot.Code,
		"users":    snapshot.Participants,
		"count":    len(snapshot.Participants),
	})
}

type joinRoomRequest struct {
	Name string `json:"name" binding:"required"`
	Role string `json:"role"`
}

// handleJoinRoom pre-registers a participant over REST; the client then
// attaches its live connection with a REGISTER_USER frame.
func (s *Server) handleJoinRoom(c *gin.Context) {
	var req joinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "INVALID_REQUEST", "name is required")
		return
	}

	joined, participant, err := s.rooms.JoinRoom(c.Param("code"), req.Name, req.Role, "")
	if err != nil {
		failFromStore(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"roomCode":      joined.Code,
		"participantId": participant.ID,
		"name":          participant.Name,
		"role":          participant.Role,
	})
}

func (s *Server) handleIssueToken(c *gin.Context) {
	c.JSON(http.StatusCreated, gin.H{"token": s.tokens.Issue()})
}

// handleValidateToken consumes the token: a second validation of the same
// token always fails.
func (s *Server) handleValidateToken(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		fail(c, http.StatusBadRequest, "INVALID_REQUEST", "token query parameter is required")
		return
	}

	if !s.tokens.Validate(token) {
		fail(c, http.StatusUnauthorized, "INVALID_TOKEN", "token is invalid, expired, or already used")
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true})
}
