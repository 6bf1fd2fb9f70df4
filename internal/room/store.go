package room

import (
	"crypto/rand"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"stagelink/pkg/types"
)

// Bounded retry keeps worst-case createRoom latency predictable even under
// pathological collision runs.
const maxCodeAttempts = 10

// Store owns room lifecycle and per-room membership. All state is volatile;
// a restart simply starts with an empty store.
type Store struct {
	mu              sync.RWMutex
	rooms           map[string]*types.Room
	defaultMaxUsers int

	// generateCode is swappable so collision runs can be forced in tests
	generateCode func() (string, error)
}

// NewStore creates an empty room store.
func NewStore(defaultMaxUsers int) *Store {
	if defaultMaxUsers <= 0 {
		defaultMaxUsers = types.DefaultRoomSettings().MaxUsers
	}
	return &Store{
		rooms:           make(map[string]*types.Room),
		defaultMaxUsers: defaultMaxUsers,
		generateCode:    randomCode,
	}
}

// randomCode derives a 6-character uppercase hex code from random bytes.
func randomCode() (string, error) {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return strings.ToUpper(fmt.Sprintf("%02x%02x%02x", buf[0], buf[1], buf[2])), nil
}

// CreateRoom creates a new room. A desired code that is already live fails
// with ErrRoomCodeConflict; otherwise generation retries up to maxCodeAttempts
// before failing with ErrCodeGenerationExhausted.
func (s *Store) CreateRoom(hostName, desiredCode string, settings *types.RoomSettings) (*types.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var code string
	if desiredCode != "" {
		code = strings.ToUpper(desiredCode)
		if !types.IsValidRoomCode(code) {
			return nil, types.ErrInvalidRoomCode
		}
		if _, exists := s.rooms[code]; exists {
			return nil, ErrRoomCodeConflict
		}
	} else {
		var err error
		code, err = s.freeCodeLocked()
		if err != nil {
			return nil, err
		}
	}

	roomSettings := types.DefaultRoomSettings()
	roomSettings.MaxUsers = s.defaultMaxUsers
	if settings != nil {
		roomSettings = *settings
		if roomSettings.MaxUsers <= 0 {
			roomSettings.MaxUsers = s.defaultMaxUsers
		}
	}

	now := time.Now()
	room := &types.Room{
		Code:         code,
		CreatedAt:    now,
		LastActivity: now,
		Settings:     roomSettings,
		HostName:     hostName,
		Participants: make(map[string]*types.Participant),
		LastState:    make(map[string]any),
	}
	s.rooms[code] = room

	log.Printf("Created room: code=%s host=%s maxUsers=%d", code, hostName, roomSettings.MaxUsers)
	return room, nil
}

// freeCodeLocked generates codes until one is not live, capped at
// maxCodeAttempts. Caller must hold the store lock.
func (s *Store) freeCodeLocked() (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.generateCode()
		if err != nil {
			return "", err
		}
		if _, exists := s.rooms[code]; !exists {
			return code, nil
		}
	}
	return "", ErrCodeGenerationExhausted
}

// JoinRoom inserts a participant and bumps the room's activity timestamp.
// connectionID may be empty for participants registered before their socket
// opens.
func (s *Store) JoinRoom(code, name, role, connectionID string) (*types.Room, *types.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, exists := s.rooms[strings.ToUpper(code)]
	if !exists {
		return nil, nil, ErrRoomNotFound
	}

	if len(room.Participants) >= room.Settings.MaxUsers {
		return nil, nil, ErrRoomFull
	}

	participant := &types.Participant{
		ID:           uuid.New().String(),
		Name:         name,
		Role:         role,
		JoinedAt:     time.Now(),
		ConnectionID: connectionID,
	}
	room.Participants[participant.ID] = participant
	room.LastActivity = time.Now()

	log.Printf("Participant joined room: code=%s participant=%s role=%s count=%d",
		room.Code, participant.ID, role, len(room.Participants))
	return room, participant, nil
}

// RegisterUser inserts or re-attaches a participant under a caller-supplied
// id. Pre-registered participants keep their record when the socket opens.
func (s *Store) RegisterUser(code, userID, name, role, connectionID string) (*types.Room, *types.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, exists := s.rooms[strings.ToUpper(code)]
	if !exists {
		return nil, nil, ErrRoomNotFound
	}

	participant, known := room.Participants[userID]
	if known {
		participant.ConnectionID = connectionID
		if name != "" {
			participant.Name = name
		}
		if role != "" {
			participant.Role = role
		}
	} else {
		if len(room.Participants) >= room.Settings.MaxUsers {
			return nil, nil, ErrRoomFull
		}
		participant = &types.Participant{
			ID:           userID,
			Name:         name,
			Role:         role,
			JoinedAt:     time.Now(),
			ConnectionID: connectionID,
		}
		room.Participants[userID] = participant
	}
	room.LastActivity = time.Now()

	return room, participant, nil
}

// LeaveRoom removes a participant. A room left with no participants and no
// attached host is deleted immediately, not deferred to the sweeper.
func (s *Store) LeaveRoom(code, participantID string) (deleted bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, exists := s.rooms[strings.ToUpper(code)]
	if !exists {
		return false, ErrRoomNotFound
	}

	if _, ok := room.Participants[participantID]; !ok {
		return false, ErrParticipantNotFound
	}

	delete(room.Participants, participantID)
	room.LastActivity = time.Now()

	if len(room.Participants) == 0 && !room.HostConnected {
		delete(s.rooms, room.Code)
		log.Printf("Deleted empty room: code=%s", room.Code)
		return true, nil
	}

	return false, nil
}

// LeaveByConnection removes whichever participant holds the given connection
// id. Used by the disconnect cascade, where only the connection is known.
func (s *Store) LeaveByConnection(code, connectionID string) (participant *types.Participant, deleted bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, exists := s.rooms[strings.ToUpper(code)]
	if !exists {
		return nil, false, ErrRoomNotFound
	}

	var found *types.Participant
	for _, p := range room.Participants {
		if p.ConnectionID == connectionID {
			found = p
			break
		}
	}
	if found == nil {
		return nil, false, ErrParticipantNotFound
	}

	delete(room.Participants, found.ID)
	room.LastActivity = time.Now()

	if len(room.Participants) == 0 && !room.HostConnected {
		delete(s.rooms, room.Code)
		log.Printf("Deleted empty room: code=%s", room.Code)
		return found, true, nil
	}

	return found, false, nil
}

// AttachHost sets the room's host back-reference and marks it connected.
func (s *Store) AttachHost(code, connectionID string) (*types.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, exists := s.rooms[strings.ToUpper(code)]
	if !exists {
		return nil, ErrRoomNotFound
	}

	room.HostConnectionID = connectionID
	room.HostConnected = true
	room.LastActivity = time.Now()

	log.Printf("Host attached: code=%s connection=%s", room.Code, connectionID)
	return room, nil
}

// DetachHost clears the host back-reference. The room always persists - it
// may legitimately wait for its host to reconnect; an abandoned empty room
// is the sweeper's job, not detach's.
func (s *Store) DetachHost(code string) (*types.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, exists := s.rooms[strings.ToUpper(code)]
	if !exists {
		return nil, ErrRoomNotFound
	}

	room.HostConnectionID = ""
	room.HostConnected = false
	room.LastActivity = time.Now()

	log.Printf("Host detached: code=%s", room.Code)
	return room, nil
}

// UpdateState shallow-merges partial state into the room's last-known-state
// blob. Per-field overwrite, not append - this is how late joiners are
// caught up without an event log.
func (s *Store) UpdateState(code string, partial map[string]any) (*types.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, exists := s.rooms[strings.ToUpper(code)]
	if !exists {
		return nil, ErrRoomNotFound
	}

	for key, value := range partial {
		room.LastState[key] = value
	}
	room.LastActivity = time.Now()

	return room, nil
}

// GetRoom returns the live room for a code.
func (s *Store) GetRoom(code string) (*types.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, exists := s.rooms[strings.ToUpper(code)]
	return room, exists
}

// Snapshot returns a value copy of a room safe to read without the store lock.
func (s *Store) Snapshot(code string) (*types.RoomSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, exists := s.rooms[strings.ToUpper(code)]
	if !exists {
		return nil, false
	}

	participants := make([]types.Participant, 0, len(room.Participants))
	for _, p := range room.Participants {
		participants = append(participants, *p)
	}

	state := make(map[string]any, len(room.LastState))
	for key, value := range room.LastState {
		state[key] = value
	}

	return &types.RoomSnapshot{
		Code:          room.Code,
		CreatedAt:     room.CreatedAt,
		Settings:      room.Settings,
		HostName:      room.HostName,
		HostConnected: room.HostConnected,
		Participants:  participants,
		LastState:     state,
	}, true
}

// ConnectionIDs returns the connection ids of the attached host and every
// attached participant, for broadcast fan-out.
func (s *Store) ConnectionIDs(code string) ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, exists := s.rooms[strings.ToUpper(code)]
	if !exists {
		return nil, false
	}

	ids := make([]string, 0, len(room.Participants)+1)
	if room.HostConnected && room.HostConnectionID != "" {
		ids = append(ids, room.HostConnectionID)
	}
	for _, p := range room.Participants {
		if p.ConnectionID != "" {
			ids = append(ids, p.ConnectionID)
		}
	}
	return ids, true
}

// SweepInactive deletes every room whose last activity is older than timeout
// and returns the deleted codes. Runs under the same lock as foreground
// handlers.
func (s *Store) SweepInactive(now time.Time, timeout time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted []string
	for code, room := range s.rooms {
		if now.Sub(room.LastActivity) > timeout {
			delete(s.rooms, code)
			deleted = append(deleted, code)
		}
	}

	if len(deleted) > 0 {
		log.Printf("Swept %d inactive rooms", len(deleted))
	}
	return deleted
}

// Stats returns room store statistics for monitoring and debugging
func (s *Store) Stats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	participants := 0
	hosts := 0
	for _, room := range s.rooms {
		participants += len(room.Participants)
		if room.HostConnected {
			hosts++
		}
	}

	return map[string]int{
		"active_rooms":       len(s.rooms),
		"total_participants": participants,
		"connected_hosts":    hosts,
	}
}
