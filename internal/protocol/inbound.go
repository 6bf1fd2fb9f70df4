// Package protocol is the wire boundary of the relay. Every frame is one
// JSON object with a "type" discriminator; inbound frames are decoded here
// exactly once into a closed set of variants, so the session handler never
// touches raw JSON.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Inbound message type discriminators.
const (
	TypeRegisterController = "REGISTER_CONTROLLER"
	TypeRegisterRemote     = "REGISTER_REMOTE"
	TypeRegisterDisplay    = "REGISTER_DISPLAY"
	TypeTimerUpdate        = "TIMER_UPDATE"
	TypeMessageUpdate      = "MESSAGE_UPDATE"
	TypeRemoteControl      = "REMOTE_CONTROL"
	TypeGrantPermissions   = "GRANT_PERMISSIONS"
	TypeRegisterHost       = "REGISTER_HOST"
	TypeJoinRoom           = "JOIN_ROOM"
	TypeLeaveRoom          = "LEAVE_ROOM"
	TypeRegisterUser       = "REGISTER_USER"
	TypeRoomStateUpdate    = "ROOM_STATE_UPDATE"
	TypeUserCommand        = "USER_COMMAND"
	TypeChatMessage        = "CHAT_MESSAGE"
)

// Inbound is the closed set of decoded frames. The dispatch switch in the
// session handler covers every variant plus Unknown and Malformed.
type Inbound interface {
	isInbound()
}

type RegisterController struct{}

type RegisterRemote struct {
	Name        string
	Role        string
	Permissions []string
	SpeakerName string
}

type RegisterDisplay struct {
	URL string
}

type TimerUpdate struct {
	Data map[string]any
}

type MessageUpdate struct {
	Data map[string]any
}

type RemoteControl struct {
	Action string
	Data   json.RawMessage
}

type GrantPermissions struct {
	ClientID    string
	Permissions []string
}

type ClientInfo struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type RegisterHost struct {
	RoomCode string
	HostInfo ClientInfo
}

type JoinRoom struct {
	RoomCode   string
	ClientType string
	ClientInfo ClientInfo
}

type LeaveRoom struct {
	RoomCode string
}

type RegisterUser struct {
	RoomCode string
	UserID   string
	UserInfo ClientInfo
}

type RoomStateUpdate struct {
	State map[string]any
}

type UserCommand struct {
	Command string
	Data    map[string]any
}

type ChatMessage struct {
	Message string
}

// Unknown carries an unrecognized type string; the handler logs and drops it.
type Unknown struct {
	Type string
}

// Malformed carries a frame that failed to parse or was missing required
// fields. Swallowed and logged, never fatal to the connection.
type Malformed struct {
	Err error
}

func (RegisterController) isInbound() {}
func (RegisterRemote) isInbound()     {}
func (RegisterDisplay) isInbound()    {}
func (TimerUpdate) isInbound()        {}
func (MessageUpdate) isInbound()      {}
func (RemoteControl) isInbound()      {}
func (GrantPermissions) isInbound()   {}
func (RegisterHost) isInbound()       {}
func (JoinRoom) isInbound()           {}
func (LeaveRoom) isInbound()          {}
func (RegisterUser) isInbound()       {}
func (RoomStateUpdate) isInbound()    {}
func (UserCommand) isInbound()        {}
func (ChatMessage) isInbound()        {}
func (Unknown) isInbound()            {}
func (Malformed) isInbound()          {}

// Decode parses one wire frame into its variant. It is total: every input
// maps to a variant, and parse failures come back as Malformed rather than
// an error the read loop could trip over.
func Decode(data []byte) Inbound {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Malformed{Err: fmt.Errorf("unparseable frame: %w", err)}
	}
	if envelope.Type == "" {
		return Malformed{Err: fmt.Errorf("frame missing type field")}
	}

	switch envelope.Type {
	case TypeRegisterController:
		return RegisterController{}

	case TypeRegisterRemote:
		var frame struct {
			Name        string   `json:"name"`
			Role        string   `json:"role"`
			Permissions []string `json:"permissions"`
			SpeakerName string   `json:"speakerName"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return Malformed{Err: err}
		}
		return RegisterRemote{Name: frame.Name, Role: frame.Role, Permissions: frame.Permissions, SpeakerName: frame.SpeakerName}

	case TypeRegisterDisplay:
		var frame struct {
			Data struct {
				URL string `json:"url"`
			} `json:"data"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return Malformed{Err: err}
		}
		return RegisterDisplay{URL: frame.Data.URL}

	case TypeTimerUpdate:
		var frame struct {
			Data map[string]any `json:"data"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return Malformed{Err: err}
		}
		return TimerUpdate{Data: frame.Data}

	case TypeMessageUpdate:
		var frame struct {
			Data map[string]any `json:"data"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return Malformed{Err: err}
		}
		return MessageUpdate{Data: frame.Data}

	case TypeRemoteControl:
		var frame struct {
			Action string          `json:"action"`
			Data   json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return Malformed{Err: err}
		}
		if frame.Action == "" {
			return Malformed{Err: fmt.Errorf("REMOTE_CONTROL missing action")}
		}
		return RemoteControl{Action: frame.Action, Data: frame.Data}

	case TypeGrantPermissions:
		var frame struct {
			ClientID    string   `json:"clientId"`
			Permissions []string `json:"permissions"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return Malformed{Err: err}
		}
		if frame.ClientID == "" {
			return Malformed{Err: fmt.Errorf("GRANT_PERMISSIONS missing clientId")}
		}
		return GrantPermissions{ClientID: frame.ClientID, Permissions: frame.Permissions}

	case TypeRegisterHost:
		var frame struct {
			RoomCode string     `json:"roomCode"`
			HostInfo ClientInfo `json:"hostInfo"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return Malformed{Err: err}
		}
		if frame.RoomCode == "" {
			return Malformed{Err: fmt.Errorf("REGISTER_HOST missing roomCode")}
		}
		return RegisterHost{RoomCode: frame.RoomCode, HostInfo: frame.HostInfo}

	case TypeJoinRoom:
		var frame struct {
			RoomCode   string     `json:"roomCode"`
			ClientType string     `json:"clientType"`
			ClientInfo ClientInfo `json:"clientInfo"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return Malformed{Err: err}
		}
		if frame.RoomCode == "" {
			return Malformed{Err: fmt.Errorf("JOIN_ROOM missing roomCode")}
		}
		return JoinRoom{RoomCode: frame.RoomCode, ClientType: frame.ClientType, ClientInfo: frame.ClientInfo}

	case TypeLeaveRoom:
		var frame struct {
			RoomCode string `json:"roomCode"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return Malformed{Err: err}
		}
		return LeaveRoom{RoomCode: frame.RoomCode}

	case TypeRegisterUser:
		var frame struct {
			RoomCode string     `json:"roomCode"`
			UserID   string     `json:"userId"`
			UserInfo ClientInfo `json:"userInfo"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return Malformed{Err: err}
		}
		if frame.RoomCode == "" || frame.UserID == "" {
			return Malformed{Err: fmt.Errorf("REGISTER_USER missing roomCode or userId")}
		}
		return RegisterUser{RoomCode: frame.RoomCode, UserID: frame.UserID, UserInfo: frame.UserInfo}

	case TypeRoomStateUpdate:
		var frame struct {
			State map[string]any `json:"state"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return Malformed{Err: err}
		}
		return RoomStateUpdate{State: frame.State}

	case TypeUserCommand:
		var frame struct {
			Command string         `json:"command"`
			Data    map[string]any `json:"data"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return Malformed{Err: err}
		}
		if frame.Command == "" {
			return Malformed{Err: fmt.Errorf("USER_COMMAND missing command")}
		}
		return UserCommand{Command: frame.Command, Data: frame.Data}

	case TypeChatMessage:
		var frame struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return Malformed{Err: err}
		}
		return ChatMessage{Message: frame.Message}

	default:
		return Unknown{Type: envelope.Type}
	}
}
