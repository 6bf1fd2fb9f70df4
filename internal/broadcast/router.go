package broadcast

import (
	"log"

	"stagelink/internal/registry"
	"stagelink/internal/room"
	"stagelink/pkg/types"
)

// RemovalFunc receives the registry effects of a pruned connection so the
// owner can run the same disconnect cascade a transport close would.
type RemovalFunc func(client *registry.Client, effects registry.RemovalEffects)

// Router fans messages out to connection sets and rooms.
// ARCHITECTURAL DISCOVERY: Pure delivery logic - routing decisions live in the
// relay, delivery and dead-connection pruning live here
type Router struct {
	registry  *registry.Registry
	rooms     *room.Store
	onRemoval RemovalFunc
}

// NewRouter creates a broadcast router.
// FUNCTIONAL DISCOVERY: Dependency injection enables testing with fake connections
func NewRouter(reg *registry.Registry, rooms *room.Store) *Router {
	return &Router{
		registry: reg,
		rooms:    rooms,
	}
}

// OnRemoval installs the hook that completes the disconnect cascade for
// pruned connections. Set once during wiring, before any traffic flows.
func (r *Router) OnRemoval(fn RemovalFunc) {
	r.onRemoval = fn
}

// ToSet delivers a frame to every open connection in the set.
// FUNCTIONAL DISCOVERY: Continue delivery to other recipients even if one fails;
// any connection found closed during the pass is pruned as a side effect
func (r *Router) ToSet(clients []*registry.Client, frame any) {
	for _, client := range clients {
		r.Send(client, frame)
	}
}

// ToRoom delivers a frame to every attached member of a room, optionally
// excluding one connection (typically the sender).
func (r *Router) ToRoom(code string, frame any, excludeConnID string) {
	connIDs, exists := r.rooms.ConnectionIDs(code)
	if !exists {
		return
	}

	for _, connID := range connIDs {
		if connID == excludeConnID {
			continue
		}
		if client, ok := r.registry.Get(connID); ok {
			r.Send(client, frame)
		}
	}
}

// Send delivers a frame to a single client, pruning it if the transport is
// dead. Returns whether delivery was attempted on a live connection.
func (r *Router) Send(client *registry.Client, frame any) bool {
	if client == nil || client.Conn == nil {
		return false
	}

	if !client.Conn.IsAlive() {
		r.prune(client)
		return false
	}

	if err := client.Conn.WriteJSON(frame); err != nil {
		// TECHNICAL DISCOVERY: Transport errors are swallowed and logged -
		// a dead peer loses messages, it never crashes the relay
		log.Printf("Failed to deliver frame to %s: %v", client.ID, err)
		r.prune(client)
		return false
	}

	return true
}

// prune removes a dead connection from the registry and hands the removal
// effects to the owner so counterpart notifications fire exactly once no
// matter which path found the connection dead first. Self-healing: a dead
// connection is never kept and retried. The read loop's own disconnect
// cascade remains safe because removal is idempotent.
func (r *Router) prune(client *registry.Client) {
	_ = client.Conn.Close()

	effects := r.registry.Remove(client.ID)
	if !effects.Removed {
		return // Already cleaned up elsewhere
	}

	log.Printf("Pruned dead connection: id=%s role=%s", client.ID, effects.Role)

	if r.onRemoval != nil {
		r.onRemoval(client, effects)
		return
	}

	// No owner wired: still keep room membership consistent
	if effects.RoomCode == "" {
		return
	}

	switch effects.Role {
	case types.RoleHost:
		if _, err := r.rooms.DetachHost(effects.RoomCode); err != nil {
			log.Printf("Failed to detach pruned host from %s: %v", effects.RoomCode, err)
		}
	case types.RoleParticipant:
		if _, _, err := r.rooms.LeaveByConnection(effects.RoomCode, client.ID); err != nil {
			log.Printf("Failed to remove pruned participant from %s: %v", effects.RoomCode, err)
		}
	}
}
