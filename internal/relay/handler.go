// Package relay is the session protocol handler: it interprets decoded
// frames, mutates the registry and room store, consults the permission
// engine, and fans results out through the broadcast router.
package relay

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"stagelink/internal/broadcast"
	"stagelink/internal/permission"
	"stagelink/internal/protocol"
	"stagelink/internal/registry"
	"stagelink/internal/room"
	"stagelink/pkg/types"
)

// Handler orchestrates the relay's message flow.
// ARCHITECTURAL DISCOVERY: Central coordination point for all message flow -
// the websocket layer feeds it raw frames, everything below it is typed
type Handler struct {
	registry    *registry.Registry
	rooms       *room.Store
	broadcaster *broadcast.Router

	// Global-mode shared state, replayed to late-registering displays.
	// FUNCTIONAL DISCOVERY: One mutex suffices - global state is two small
	// blobs written only from controller frames
	stateMu      sync.RWMutex
	timerState   map[string]any
	messageState map[string]any
}

// NewHandler creates the session protocol handler and takes ownership of the
// router's prune cascade, so a connection found dead during a broadcast pass
// produces the same counterpart notifications as a transport close.
func NewHandler(reg *registry.Registry, rooms *room.Store, broadcaster *broadcast.Router) *Handler {
	h := &Handler{
		registry:    reg,
		rooms:       rooms,
		broadcaster: broadcaster,
	}
	broadcaster.OnRemoval(h.finishDisconnect)
	return h
}

// HandleFrame processes one inbound frame from a connection. Frames from a
// single connection arrive here strictly in order; errors never propagate
// back into the read loop.
func (h *Handler) HandleFrame(client *registry.Client, data []byte) {
	switch msg := protocol.Decode(data).(type) {
	case protocol.RegisterController:
		h.handleRegisterController(client)
	case protocol.RegisterRemote:
		h.handleRegisterRemote(client, msg)
	case protocol.RegisterDisplay:
		h.handleRegisterDisplay(client, msg)
	case protocol.TimerUpdate:
		h.handleStateUpdate(client, "timer", msg.Data)
	case protocol.MessageUpdate:
		h.handleStateUpdate(client, "message", msg.Data)
	case protocol.RemoteControl:
		h.handleRemoteControl(client, msg)
	case protocol.GrantPermissions:
		h.handleGrantPermissions(client, msg)
	case protocol.RegisterHost:
		h.handleRegisterHost(client, msg.RoomCode, msg.HostInfo)
	case protocol.JoinRoom:
		h.handleJoinRoom(client, msg)
	case protocol.LeaveRoom:
		h.handleLeaveRoom(client, msg)
	case protocol.RegisterUser:
		h.handleRegisterUser(client, msg)
	case protocol.RoomStateUpdate:
		h.handleRoomStateUpdate(client, msg)
	case protocol.UserCommand:
		h.handleUserCommand(client, msg)
	case protocol.ChatMessage:
		h.handleChatMessage(client, msg)
	case protocol.Unknown:
		// Logged and dropped; the connection stays open
		log.Printf("Unrecognized message type %q from %s", msg.Type, client.ID)
	case protocol.Malformed:
		log.Printf("Malformed frame from %s: %v", client.ID, msg.Err)
	}
}

// handleRegisterController claims the single process-wide controller slot.
// A previous controller, if any, is silently superseded.
func (h *Handler) handleRegisterController(client *registry.Client) {
	h.releaseRole(client)

	previous := h.registry.SetController(client.ID)
	if previous != "" {
		log.Printf("Controller superseded: old=%s new=%s", previous, client.ID)
	} else {
		log.Printf("Controller registered: id=%s", client.ID)
	}

	// Broadcast connectivity status to remotes
	h.broadcaster.ToSet(h.registry.Remotes(), protocol.ControllerStatus(true))
}

func (h *Handler) handleRegisterRemote(client *registry.Client, msg protocol.RegisterRemote) {
	h.releaseRole(client)

	h.registry.SetRole(client.ID, types.RoleRemote, registry.Metadata{
		Name:        msg.Name,
		CapRole:     msg.Role,
		Grants:      msg.Permissions,
		SpeakerName: msg.SpeakerName,
	})
	log.Printf("Remote registered: id=%s name=%s role=%s", client.ID, msg.Name, msg.Role)

	// Reply with current controller-connectivity status
	_, controllerPresent := h.registry.Controller()
	h.broadcaster.Send(client, protocol.ControllerStatus(controllerPresent))

	// Notify the controller of the new remote and the updated count
	if controller, ok := h.registry.Controller(); ok {
		h.broadcaster.Send(controller, protocol.RemoteConnected(client.ID, msg.Name, msg.Role, msg.Permissions, msg.SpeakerName))
		h.broadcaster.Send(controller, protocol.RemoteCount(len(h.registry.Remotes())))
	}
}

func (h *Handler) handleRegisterDisplay(client *registry.Client, msg protocol.RegisterDisplay) {
	h.releaseRole(client)

	h.registry.SetRole(client.ID, types.RoleDisplay, registry.Metadata{DisplayURL: msg.URL})
	log.Printf("Display registered: id=%s url=%s", client.ID, msg.URL)

	// A late display must not be left stale: replay whatever state the
	// relay already holds, then let the controller push anything newer
	h.stateMu.RLock()
	timer, message := h.timerState, h.messageState
	h.stateMu.RUnlock()

	if timer != nil {
		h.broadcaster.Send(client, protocol.TimerState(timer))
	}
	if message != nil {
		h.broadcaster.Send(client, protocol.MessageState(message))
	}

	if controller, ok := h.registry.Controller(); ok {
		h.broadcaster.Send(controller, protocol.DisplayConnected(client.ID, msg.URL))
	}
}

// handleStateUpdate merges timer/message state and fans it out. Authorized
// senders are the controller (global mode) or a room host (room mode).
func (h *Handler) handleStateUpdate(client *registry.Client, field string, data map[string]any) {
	role := client.Role()

	switch role {
	case types.RoleController:
		h.stateMu.Lock()
		if field == "timer" {
			h.timerState = data
		} else {
			h.messageState = data
		}
		h.stateMu.Unlock()

		frame := protocol.TimerState(data)
		if field == "message" {
			frame = protocol.MessageState(data)
		}
		h.broadcaster.ToSet(h.registry.Remotes(), frame)
		h.broadcaster.ToSet(h.registry.Displays(), frame)

	case types.RoleHost:
		code := client.RoomCode()
		if code == "" {
			return
		}
		if _, err := h.rooms.UpdateState(code, map[string]any{field: data}); err != nil {
			log.Printf("State update for unknown room %s from %s", code, client.ID)
			return
		}
		frame := protocol.TimerState(data)
		if field == "message" {
			frame = protocol.MessageState(data)
		}
		h.broadcaster.ToRoom(code, frame, client.ID)

	default:
		// Precondition failed: not the command source. Dropped, not fatal.
		log.Printf("Ignoring %s update from non-authoritative client %s (role=%s)", field, client.ID, role)
	}
}

func (h *Handler) handleRemoteControl(client *registry.Client, msg protocol.RemoteControl) {
	action := permission.Action(msg.Action)

	if !permission.IsAllowed(client.CapRole(), client.Grants(), action) {
		// Denial goes back to the offending sender only - never forwarded
		h.broadcaster.Send(client, protocol.PermissionDenied(msg.Action))
		log.Printf("Permission denied: client=%s action=%s", client.ID, msg.Action)
		return
	}

	// Forward verbatim to the authoritative command source
	var target *registry.Client
	if code := client.RoomCode(); code != "" {
		if r, ok := h.rooms.GetRoom(code); ok && r.HostConnected {
			target, _ = h.registry.Get(r.HostConnectionID)
		}
	} else {
		target, _ = h.registry.Controller()
	}

	if target == nil {
		log.Printf("Dropping control command %s from %s: no command source attached", msg.Action, client.ID)
		return
	}

	h.broadcaster.Send(target, protocol.ForwardRemoteControl(msg.Action, msg.Data))
}

func (h *Handler) handleGrantPermissions(client *registry.Client, msg protocol.GrantPermissions) {
	controller, ok := h.registry.Controller()
	if !ok || controller.ID != client.ID {
		log.Printf("Ignoring grant from non-controller %s", client.ID)
		return
	}

	if !h.registry.SetGrants(msg.ClientID, msg.Permissions) {
		h.broadcaster.Send(client, protocol.Error("target client not found"))
		return
	}

	if target, exists := h.registry.Get(msg.ClientID); exists {
		h.broadcaster.Send(target, protocol.PermissionsGranted(msg.Permissions))
	}
	log.Printf("Permissions granted: target=%s grants=%v", msg.ClientID, msg.Permissions)
}

func (h *Handler) handleRegisterHost(client *registry.Client, roomCode string, info protocol.ClientInfo) {
	// A failed attach must leave the sender's current role untouched
	if _, ok := h.rooms.GetRoom(roomCode); !ok {
		h.broadcaster.Send(client, protocol.Error(room.ErrRoomNotFound.Error()))
		return
	}

	h.releaseRole(client)

	created, err := h.rooms.AttachHost(roomCode, client.ID)
	if err != nil {
		h.broadcaster.Send(client, protocol.Error(err.Error()))
		return
	}

	h.registry.SetRole(client.ID, types.RoleHost, registry.Metadata{
		Name:     info.Name,
		RoomCode: created.Code,
	})

	// Broadcast host-connected to the room, reply with the full snapshot
	h.broadcaster.ToRoom(created.Code, protocol.HostConnected(created.Code, created.HostName), client.ID)
	if snapshot, ok := h.rooms.Snapshot(created.Code); ok {
		h.broadcaster.Send(client, protocol.RoomJoined("", snapshot))
	}
}

func (h *Handler) handleJoinRoom(client *registry.Client, msg protocol.JoinRoom) {
	if msg.ClientType == types.RoleHost {
		h.handleRegisterHost(client, msg.RoomCode, msg.ClientInfo)
		return
	}

	if _, ok := h.rooms.GetRoom(msg.RoomCode); !ok {
		h.broadcaster.Send(client, protocol.Error(room.ErrRoomNotFound.Error()))
		return
	}

	h.releaseRole(client)

	created, participant, err := h.rooms.JoinRoom(msg.RoomCode, msg.ClientInfo.Name, msg.ClientInfo.Role, client.ID)
	if err != nil {
		h.broadcaster.Send(client, protocol.Error(err.Error()))
		return
	}

	h.registry.SetRole(client.ID, types.RoleParticipant, registry.Metadata{
		Name:     msg.ClientInfo.Name,
		CapRole:  msg.ClientInfo.Role,
		RoomCode: created.Code,
	})

	// Notify the host, reply with the room snapshot
	h.notifyHost(created.Code, protocol.RoomClientJoined(created.Code, participant))
	if snapshot, ok := h.rooms.Snapshot(created.Code); ok {
		h.broadcaster.Send(client, protocol.RoomJoined(participant.ID, snapshot))
	}
}

func (h *Handler) handleRegisterUser(client *registry.Client, msg protocol.RegisterUser) {
	if _, ok := h.rooms.GetRoom(msg.RoomCode); !ok {
		h.broadcaster.Send(client, protocol.Error(room.ErrRoomNotFound.Error()))
		return
	}

	h.releaseRole(client)

	created, participant, err := h.rooms.RegisterUser(msg.RoomCode, msg.UserID, msg.UserInfo.Name, msg.UserInfo.Role, client.ID)
	if err != nil {
		h.broadcaster.Send(client, protocol.Error(err.Error()))
		return
	}

	h.registry.SetRole(client.ID, types.RoleParticipant, registry.Metadata{
		Name:     participant.Name,
		CapRole:  participant.Role,
		RoomCode: created.Code,
	})

	h.broadcaster.ToRoom(created.Code, protocol.UserJoined(created.Code, participant.ID, participant.Name), client.ID)
	if snapshot, ok := h.rooms.Snapshot(created.Code); ok {
		h.broadcaster.Send(client, protocol.RoomJoined(participant.ID, snapshot))
	}
}

func (h *Handler) handleLeaveRoom(client *registry.Client, msg protocol.LeaveRoom) {
	code := msg.RoomCode
	if code == "" {
		code = client.RoomCode()
	}
	if code == "" {
		return
	}

	h.leaveCurrentRoom(client, code)
	client.SetRoomCode("")
}

func (h *Handler) handleRoomStateUpdate(client *registry.Client, msg protocol.RoomStateUpdate) {
	code := client.RoomCode()
	if client.Role() != types.RoleHost || code == "" {
		log.Printf("Ignoring room state update from non-host %s", client.ID)
		return
	}

	updated, err := h.rooms.UpdateState(code, msg.State)
	if err != nil {
		h.broadcaster.Send(client, protocol.Error(err.Error()))
		return
	}

	h.broadcaster.ToRoom(code, protocol.RoomState(code, updated.LastState), client.ID)
}

func (h *Handler) handleUserCommand(client *registry.Client, msg protocol.UserCommand) {
	code := client.RoomCode()
	if code == "" {
		log.Printf("Dropping user command from %s: not attached to a room", client.ID)
		return
	}

	h.notifyHost(code, protocol.ForwardUserCommand(client.ID, msg.Command, msg.Data))
}

func (h *Handler) handleChatMessage(client *registry.Client, msg protocol.ChatMessage) {
	code := client.RoomCode()
	if code == "" {
		log.Printf("Dropping chat message from %s: not attached to a room", client.ID)
		return
	}

	// Server-side id and timestamp prevent client tampering
	frame := protocol.Chat(uuid.New().String(), client.ID, client.Name(), msg.Message, time.Now())
	h.broadcaster.ToRoom(code, frame, "")
}

// HandleDisconnect runs the CLOSED-state cascade for a connection. There is
// no explicit unregister message type; transport close and broadcast-prune
// are the only paths here, and removal idempotence keeps them from racing.
func (h *Handler) HandleDisconnect(client *registry.Client) {
	effects := h.registry.Remove(client.ID)
	if !effects.Removed {
		return // Already cleaned up (e.g. pruned during a broadcast pass)
	}

	log.Printf("Connection closed: id=%s role=%s", client.ID, effects.Role)
	h.finishDisconnect(client, effects)
}

// finishDisconnect emits the counterpart notifications owed for a removed
// client. Called exactly once per removal, by whichever path won the
// registry removal.
func (h *Handler) finishDisconnect(client *registry.Client, effects registry.RemovalEffects) {
	switch effects.Role {
	case types.RoleController:
		h.broadcaster.ToSet(h.registry.Remotes(), protocol.ControllerStatus(false))

	case types.RoleRemote:
		if controller, ok := h.registry.Controller(); ok {
			h.broadcaster.Send(controller, protocol.RemoteCount(effects.RemainingRemotes))
		}

	case types.RoleDisplay:
		if controller, ok := h.registry.Controller(); ok {
			h.broadcaster.Send(controller, protocol.DisplayDisconnected(client.ID))
		}

	case types.RoleHost:
		if effects.RoomCode != "" {
			if _, err := h.rooms.DetachHost(effects.RoomCode); err == nil {
				h.broadcaster.ToRoom(effects.RoomCode, protocol.HostDisconnected(effects.RoomCode), "")
			}
		}

	case types.RoleParticipant:
		if effects.RoomCode != "" {
			if participant, deleted, err := h.rooms.LeaveByConnection(effects.RoomCode, client.ID); err == nil && !deleted {
				h.notifyHost(effects.RoomCode, protocol.RoomClientLeft(effects.RoomCode, participant))
				h.broadcaster.ToRoom(effects.RoomCode, protocol.UserLeft(effects.RoomCode, participant.ID, participant.Name), "")
			}
		}
	}
}

// releaseRole runs the departure cascade for a client's current role without
// removing the connection. Re-registering is a role change, and the old
// role's counterparts get the same notifications a disconnect would produce.
func (h *Handler) releaseRole(client *registry.Client) {
	role := client.Role()
	if role == types.RoleUnknown || role == "" {
		return
	}

	switch role {
	case types.RoleController:
		if controller, ok := h.registry.Controller(); ok && controller.ID == client.ID {
			h.registry.SetRole(client.ID, types.RoleUnknown, registry.Metadata{})
			h.broadcaster.ToSet(h.registry.Remotes(), protocol.ControllerStatus(false))
		}

	case types.RoleRemote:
		h.registry.SetRole(client.ID, types.RoleUnknown, registry.Metadata{})
		if controller, ok := h.registry.Controller(); ok {
			h.broadcaster.Send(controller, protocol.RemoteCount(len(h.registry.Remotes())))
		}

	case types.RoleDisplay:
		h.registry.SetRole(client.ID, types.RoleUnknown, registry.Metadata{})
		if controller, ok := h.registry.Controller(); ok {
			h.broadcaster.Send(controller, protocol.DisplayDisconnected(client.ID))
		}

	case types.RoleHost, types.RoleParticipant:
		if code := client.RoomCode(); code != "" {
			h.leaveCurrentRoom(client, code)
		}
		h.registry.SetRole(client.ID, types.RoleUnknown, registry.Metadata{})
		client.SetRoomCode("")
	}
}

// leaveCurrentRoom detaches a host or removes a participant and notifies the
// counterpart. Room deletion when empty is the store's responsibility.
func (h *Handler) leaveCurrentRoom(client *registry.Client, code string) {
	switch client.Role() {
	case types.RoleHost:
		if _, err := h.rooms.DetachHost(code); err == nil {
			h.broadcaster.ToRoom(code, protocol.HostDisconnected(code), client.ID)
		}
	default:
		if participant, deleted, err := h.rooms.LeaveByConnection(code, client.ID); err == nil && !deleted {
			h.notifyHost(code, protocol.RoomClientLeft(code, participant))
			h.broadcaster.ToRoom(code, protocol.UserLeft(code, participant.ID, participant.Name), client.ID)
		}
	}
}

// notifyHost sends a frame to a room's attached host, if any.
func (h *Handler) notifyHost(code string, frame any) {
	r, ok := h.rooms.GetRoom(code)
	if !ok || !r.HostConnected {
		return
	}
	if host, exists := h.registry.Get(r.HostConnectionID); exists {
		h.broadcaster.Send(host, frame)
	}
}
