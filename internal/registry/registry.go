package registry

import (
	"sync"

	"github.com/google/uuid"

	"stagelink/pkg/types"
)

// Conn is the borrowed transport handle for a client. The registry never
// owns or duplicates the underlying socket.
type Conn interface {
	WriteJSON(v any) error
	Close() error
	IsAlive() bool
}

// Metadata carries the optional attributes a client declares when it
// registers or re-registers a role.
type Metadata struct {
	Name        string
	CapRole     string
	Grants      []string
	SpeakerName string
	DisplayURL  string
	RoomCode    string
}

// Client is the registry's record for one live connection.
// ARCHITECTURAL DISCOVERY: Mutable fields guarded by the client's own RWMutex
// so reads during broadcast never contend with the registry-wide lock
type Client struct {
	ID   string
	Conn Conn

	mu          sync.RWMutex
	role        string
	name        string
	capRole     string
	grants      []string
	speakerName string
	displayURL  string
	roomCode    string
}

func (c *Client) Role() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}

func (c *Client) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

func (c *Client) CapRole() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capRole
}

// Grants returns a copy so permission checks never race grant updates.
func (c *Client) Grants() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	grants := make([]string, len(c.grants))
	copy(grants, c.grants)
	return grants
}

func (c *Client) SpeakerName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.speakerName
}

func (c *Client) DisplayURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.displayURL
}

func (c *Client) RoomCode() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomCode
}

func (c *Client) SetRoomCode(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomCode = code
}

func (c *Client) applyMetadata(role string, meta Metadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.role = role
	if meta.Name != "" {
		c.name = meta.Name
	}
	c.capRole = meta.CapRole
	if meta.Grants != nil {
		c.grants = meta.Grants
	}
	if meta.SpeakerName != "" {
		c.speakerName = meta.SpeakerName
	}
	if meta.DisplayURL != "" {
		c.displayURL = meta.DisplayURL
	}
	if meta.RoomCode != "" {
		c.roomCode = meta.RoomCode
	}
}

// RemovalEffects reports what a removal cascaded through so the caller can
// emit the matching notifications.
type RemovalEffects struct {
	Removed           bool
	Role              string
	RoomCode          string
	ControllerVacated bool
	RemoteRemoved     bool
	DisplayRemoved    bool
	RemainingRemotes  int
}

// Registry tracks every live connection and its client record.
// ARCHITECTURAL DISCOVERY: Pure connection management without business logic -
// the relay decides what removal means, the registry only reports what changed
type Registry struct {
	mu           sync.RWMutex
	clients      map[string]*Client
	controllerID string
	remotes      map[string]*Client
	displays     map[string]*Client
}

// NewRegistry creates a new connection registry
// FUNCTIONAL DISCOVERY: Initialize all maps to prevent nil pointer access during concurrent operations
func NewRegistry() *Registry {
	return &Registry{
		clients:  make(map[string]*Client),
		remotes:  make(map[string]*Client),
		displays: make(map[string]*Client),
	}
}

// Register creates a record for a newly opened transport and returns it.
// Connection ids are process-unique random tokens; collisions are not a
// practical concern within one process lifetime.
func (r *Registry) Register(conn Conn) (*Client, error) {
	if conn == nil {
		return nil, ErrNilConnection
	}

	client := &Client{
		ID:   uuid.New().String(),
		Conn: conn,
		role: types.RoleUnknown,
	}

	r.mu.Lock()
	r.clients[client.ID] = client
	r.mu.Unlock()

	return client, nil
}

// SetRole assigns or replaces a client's role and moves it between the
// global remote/display sets.
// FUNCTIONAL DISCOVERY: A second registration is a role change, not an error -
// the previous set membership is released before the new one is taken
func (r *Registry) SetRole(id, role string, meta Metadata) {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, exists := r.clients[id]
	if !exists {
		return // Unknown ids are no-ops, never panics into the event loop
	}

	delete(r.remotes, id)
	delete(r.displays, id)
	if r.controllerID == id && role != types.RoleController {
		r.controllerID = ""
	}

	client.applyMetadata(role, meta)

	switch role {
	case types.RoleRemote:
		r.remotes[id] = client
	case types.RoleDisplay:
		r.displays[id] = client
	}
}

// SetController claims the process-wide controller slot for the given client
// and returns the id of the client it superseded, if any.
// ARCHITECTURAL DISCOVERY: Explicit single-slot register with swap semantics
// instead of an ambient global - the previous controller is demoted, not closed
func (r *Registry) SetController(id string) (previous string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, exists := r.clients[id]
	if !exists {
		return ""
	}

	previous = r.controllerID
	if previous == id {
		previous = ""
	}

	if previous != "" {
		if old, ok := r.clients[previous]; ok {
			old.applyMetadata(types.RoleUnknown, Metadata{})
		}
	}

	r.controllerID = id
	delete(r.remotes, id)
	delete(r.displays, id)
	client.applyMetadata(types.RoleController, Metadata{})

	return previous
}

// Controller returns the current controller connection, if one is attached.
func (r *Registry) Controller() (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.controllerID == "" {
		return nil, false
	}
	client, exists := r.clients[r.controllerID]
	return client, exists
}

// Get returns the client record for a connection id.
func (r *Registry) Get(id string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, exists := r.clients[id]
	return client, exists
}

// Remotes returns all registered remote connections.
func (r *Registry) Remotes() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.remotes))
	for _, client := range r.remotes {
		clients = append(clients, client)
	}
	return clients
}

// Displays returns all registered display connections.
func (r *Registry) Displays() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.displays))
	for _, client := range r.displays {
		clients = append(clients, client)
	}
	return clients
}

// SetGrants overwrites a client's legacy permission grant set.
func (r *Registry) SetGrants(id string, grants []string) bool {
	r.mu.RLock()
	client, exists := r.clients[id]
	r.mu.RUnlock()

	if !exists {
		return false
	}

	client.mu.Lock()
	client.grants = grants
	client.mu.Unlock()
	return true
}

// Remove deletes a client record and reports the cascades the caller owes.
// FUNCTIONAL DISCOVERY: Idempotent - removing an unknown or already-removed
// id returns zero effects so disconnect paths can overlap safely
func (r *Registry) Remove(id string) RemovalEffects {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, exists := r.clients[id]
	if !exists {
		return RemovalEffects{}
	}

	effects := RemovalEffects{
		Removed:  true,
		Role:     client.Role(),
		RoomCode: client.RoomCode(),
	}

	delete(r.clients, id)

	if _, ok := r.remotes[id]; ok {
		delete(r.remotes, id)
		effects.RemoteRemoved = true
	}
	if _, ok := r.displays[id]; ok {
		delete(r.displays, id)
		effects.DisplayRemoved = true
	}
	if r.controllerID == id {
		r.controllerID = ""
		effects.ControllerVacated = true
	}
	effects.RemainingRemotes = len(r.remotes)

	return effects
}

// Stats returns registry statistics for monitoring and debugging
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	controller := 0
	if r.controllerID != "" {
		controller = 1
	}

	return map[string]int{
		"total_connections": len(r.clients),
		"remotes":           len(r.remotes),
		"displays":          len(r.displays),
		"controller":        controller,
	}
}
