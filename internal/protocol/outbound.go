package protocol

import (
	"encoding/json"
	"time"

	"stagelink/pkg/types"
)

// Outbound message type discriminators.
const (
	TypeControllerStatus    = "CONTROLLER_STATUS"
	TypeRemoteConnected     = "REMOTE_CONNECTED"
	TypeRemoteCount         = "REMOTE_COUNT"
	TypeDisplayConnected    = "DISPLAY_CONNECTED"
	TypeDisplayDisconnected = "DISPLAY_DISCONNECTED"
	TypePermissionDenied    = "PERMISSION_DENIED"
	TypePermissionsGranted  = "PERMISSIONS_GRANTED"
	TypeRoomJoined          = "ROOM_JOINED"
	TypeHostConnected       = "HOST_CONNECTED"
	TypeHostDisconnected    = "HOST_DISCONNECTED"
	TypeRoomClientJoined    = "ROOM_CLIENT_JOINED"
	TypeRoomClientLeft      = "ROOM_CLIENT_LEFT"
	TypeRoomState           = "ROOM_STATE"
	TypeUserJoined          = "USER_JOINED"
	TypeUserLeft            = "USER_LEFT"
	TypeError               = "ERROR"
)

// Outbound frames carry their own type discriminator so WriteJSON produces
// the wire envelope directly.

type ControllerStatusFrame struct {
	Type      string `json:"type"`
	Connected bool   `json:"connected"`
}

func ControllerStatus(connected bool) ControllerStatusFrame {
	return ControllerStatusFrame{Type: TypeControllerStatus, Connected: connected}
}

type RemoteConnectedFrame struct {
	Type        string   `json:"type"`
	ClientID    string   `json:"clientId"`
	Name        string   `json:"name"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	SpeakerName string   `json:"speakerName,omitempty"`
}

func RemoteConnected(clientID, name, role string, permissions []string, speakerName string) RemoteConnectedFrame {
	return RemoteConnectedFrame{
		Type:        TypeRemoteConnected,
		ClientID:    clientID,
		Name:        name,
		Role:        role,
		Permissions: permissions,
		SpeakerName: speakerName,
	}
}

type RemoteCountFrame struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

func RemoteCount(count int) RemoteCountFrame {
	return RemoteCountFrame{Type: TypeRemoteCount, Count: count}
}

type DisplayFrame struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
	URL      string `json:"url,omitempty"`
}

func DisplayConnected(clientID, url string) DisplayFrame {
	return DisplayFrame{Type: TypeDisplayConnected, ClientID: clientID, URL: url}
}

func DisplayDisconnected(clientID string) DisplayFrame {
	return DisplayFrame{Type: TypeDisplayDisconnected, ClientID: clientID}
}

type StateFrame struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// TimerState and MessageState reuse the inbound type strings so displays and
// remotes consume fan-out frames identical to what the controller sent.
func TimerState(data map[string]any) StateFrame {
	return StateFrame{Type: TypeTimerUpdate, Data: data}
}

func MessageState(data map[string]any) StateFrame {
	return StateFrame{Type: TypeMessageUpdate, Data: data}
}

type RemoteControlFrame struct {
	Type   string          `json:"type"`
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// ForwardRemoteControl re-encodes a permitted command verbatim for the
// controller or host.
func ForwardRemoteControl(action string, data json.RawMessage) RemoteControlFrame {
	return RemoteControlFrame{Type: TypeRemoteControl, Action: action, Data: data}
}

type PermissionDeniedFrame struct {
	Type   string `json:"type"`
	Action string `json:"action"`
}

func PermissionDenied(action string) PermissionDeniedFrame {
	return PermissionDeniedFrame{Type: TypePermissionDenied, Action: action}
}

type PermissionsGrantedFrame struct {
	Type        string   `json:"type"`
	Permissions []string `json:"permissions"`
}

func PermissionsGranted(permissions []string) PermissionsGrantedFrame {
	return PermissionsGrantedFrame{Type: TypePermissionsGranted, Permissions: permissions}
}

type RoomJoinedFrame struct {
	Type          string              `json:"type"`
	ParticipantID string              `json:"participantId,omitempty"`
	Room          *types.RoomSnapshot `json:"room"`
}

func RoomJoined(participantID string, room *types.RoomSnapshot) RoomJoinedFrame {
	return RoomJoinedFrame{Type: TypeRoomJoined, ParticipantID: participantID, Room: room}
}

type HostStatusFrame struct {
	Type     string `json:"type"`
	RoomCode string `json:"roomCode"`
	HostName string `json:"hostName,omitempty"`
}

func HostConnected(roomCode, hostName string) HostStatusFrame {
	return HostStatusFrame{Type: TypeHostConnected, RoomCode: roomCode, HostName: hostName}
}

func HostDisconnected(roomCode string) HostStatusFrame {
	return HostStatusFrame{Type: TypeHostDisconnected, RoomCode: roomCode}
}

type RoomClientFrame struct {
	Type        string             `json:"type"`
	RoomCode    string             `json:"roomCode"`
	Participant *types.Participant `json:"participant"`
}

func RoomClientJoined(roomCode string, participant *types.Participant) RoomClientFrame {
	return RoomClientFrame{Type: TypeRoomClientJoined, RoomCode: roomCode, Participant: participant}
}

func RoomClientLeft(roomCode string, participant *types.Participant) RoomClientFrame {
	return RoomClientFrame{Type: TypeRoomClientLeft, RoomCode: roomCode, Participant: participant}
}

type RoomStateFrame struct {
	Type     string         `json:"type"`
	RoomCode string         `json:"roomCode"`
	State    map[string]any `json:"state"`
}

func RoomState(roomCode string, state map[string]any) RoomStateFrame {
	return RoomStateFrame{Type: TypeRoomState, RoomCode: roomCode, State: state}
}

type UserPresenceFrame struct {
	Type     string `json:"type"`
	RoomCode string `json:"roomCode"`
	UserID   string `json:"userId"`
	Name     string `json:"name,omitempty"`
}

func UserJoined(roomCode, userID, name string) UserPresenceFrame {
	return UserPresenceFrame{Type: TypeUserJoined, RoomCode: roomCode, UserID: userID, Name: name}
}

func UserLeft(roomCode, userID, name string) UserPresenceFrame {
	return UserPresenceFrame{Type: TypeUserLeft, RoomCode: roomCode, UserID: userID, Name: name}
}

type UserCommandFrame struct {
	Type    string         `json:"type"`
	UserID  string         `json:"userId"`
	Command string         `json:"command"`
	Data    map[string]any `json:"data,omitempty"`
}

func ForwardUserCommand(userID, command string, data map[string]any) UserCommandFrame {
	return UserCommandFrame{Type: TypeUserCommand, UserID: userID, Command: command, Data: data}
}

type ChatFrame struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Chat stamps the broadcasted message; id and timestamp are assigned
// server-side, never taken from the client.
func Chat(id, userID, name, message string, timestamp time.Time) ChatFrame {
	return ChatFrame{
		Type:      TypeChatMessage,
		ID:        id,
		UserID:    userID,
		Name:      name,
		Message:   message,
		Timestamp: timestamp,
	}
}

type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func Error(message string) ErrorFrame {
	return ErrorFrame{Type: TypeError, Message: message}
}
