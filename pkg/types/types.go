package types

import (
	"time"
)

// Connection roles assigned by the relay as clients register.
// ARCHITECTURAL DISCOVERY: Role constants defined once here so the registry,
// relay and broadcast layers never compare against raw strings
const (
	RoleUnknown     = "unknown"
	RoleController  = "controller"
	RoleRemote      = "remote"
	RoleDisplay     = "display"
	RoleHost        = "host"
	RoleParticipant = "participant"
)

// Capability roles a remote may declare at registration time.
// Unknown values are tolerated by the permission engine and resolve
// to an empty action set.
const (
	CapRoleAdmin        = "admin"
	CapRoleQueueManager = "queue_manager"
	CapRoleSpeaker      = "speaker"
	CapRoleViewer       = "viewer"
)

// RoomSettings controls who may join a room and how many.
type RoomSettings struct {
	AllowViewers    bool `json:"allowViewers"`
	AllowSpeakers   bool `json:"allowSpeakers"`
	RequireApproval bool `json:"requireApproval"`
	MaxUsers        int  `json:"maxUsers"`
}

// DefaultRoomSettings returns the settings applied when a room is created
// without explicit overrides.
func DefaultRoomSettings() RoomSettings {
	return RoomSettings{
		AllowViewers:  true,
		AllowSpeakers: true,
		MaxUsers:      50,
	}
}

// Participant is a connection admitted into a room.
// FUNCTIONAL DISCOVERY: ConnectionID may be empty while the participant is
// known but not yet attached (pre-registered before the socket opens)
type Participant struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	JoinedAt     time.Time `json:"joinedAt"`
	ConnectionID string    `json:"-"`
}

// Room represents one isolated control session.
// ARCHITECTURAL DISCOVERY: HostConnectionID is a weak back-reference into the
// connection registry, never an owning pointer - host disconnection cannot
// leave the room dangling because lookups simply miss
type Room struct {
	Code             string                  `json:"code"`
	CreatedAt        time.Time               `json:"createdAt"`
	LastActivity     time.Time               `json:"lastActivity"`
	Settings         RoomSettings            `json:"settings"`
	HostName         string                  `json:"hostName"`
	HostConnectionID string                  `json:"-"`
	HostConnected    bool                    `json:"hostConnected"`
	Participants     map[string]*Participant `json:"-"`
	LastState        map[string]any          `json:"-"`
}

// RoomSnapshot is the copy handed to late joiners and the HTTP layer.
// FUNCTIONAL DISCOVERY: Snapshots are value copies so callers can read them
// without holding the room store lock
type RoomSnapshot struct {
	Code          string         `json:"code"`
	CreatedAt     time.Time      `json:"createdAt"`
	Settings      RoomSettings   `json:"settings"`
	HostName      string         `json:"hostName"`
	HostConnected bool           `json:"hostConnected"`
	Participants  []Participant  `json:"participants"`
	LastState     map[string]any `json:"lastState,omitempty"`
}
