package broadcast

import (
	"errors"
	"sync"
	"testing"

	"stagelink/internal/registry"
	"stagelink/internal/room"
	"stagelink/pkg/types"
)

// fakeConn satisfies registry.Conn and records delivered frames.
type fakeConn struct {
	mu     sync.Mutex
	alive  bool
	frames []any
}

func newFakeConn() *fakeConn {
	return &fakeConn{alive: true}
}

func (f *fakeConn) WriteJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.alive {
		return errors.New("connection closed")
	}
	f.frames = append(f.frames, v)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive = false
	return nil
}

func (f *fakeConn) IsAlive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive
}

func (f *fakeConn) delivered() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func TestToSetDeliversToOpenPrunesClosed(t *testing.T) {
	reg := registry.NewRegistry()
	store := room.NewStore(50)
	router := NewRouter(reg, store)

	openConn := newFakeConn()
	closedConn := newFakeConn()
	closedConn.Close()

	openClient, _ := reg.Register(openConn)
	closedClient, _ := reg.Register(closedConn)
	reg.SetRole(openClient.ID, types.RoleRemote, registry.Metadata{})
	reg.SetRole(closedClient.ID, types.RoleRemote, registry.Metadata{})

	// Must not raise: the closed connection is pruned, the open one delivered
	router.ToSet(reg.Remotes(), map[string]string{"type": "PING"})

	if openConn.delivered() != 1 {
		t.Errorf("Expected 1 frame delivered to open connection, got %d", openConn.delivered())
	}
	if closedConn.delivered() != 0 {
		t.Error("Expected nothing delivered to closed connection")
	}

	if _, exists := reg.Get(closedClient.ID); exists {
		t.Error("Expected closed connection pruned from the registry")
	}
	if _, exists := reg.Get(openClient.ID); !exists {
		t.Error("Expected open connection kept")
	}
	if len(reg.Remotes()) != 1 {
		t.Errorf("Expected 1 remote remaining, got %d", len(reg.Remotes()))
	}
}

func TestToRoomDeliveryAndExclusion(t *testing.T) {
	reg := registry.NewRegistry()
	store := room.NewStore(50)
	router := NewRouter(reg, store)

	created, _ := store.CreateRoom("host", "", nil)

	hostConn := newFakeConn()
	hostClient, _ := reg.Register(hostConn)
	reg.SetRole(hostClient.ID, types.RoleHost, registry.Metadata{RoomCode: created.Code})
	store.AttachHost(created.Code, hostClient.ID)

	p1Conn := newFakeConn()
	p1, _ := reg.Register(p1Conn)
	reg.SetRole(p1.ID, types.RoleParticipant, registry.Metadata{RoomCode: created.Code})
	store.JoinRoom(created.Code, "p1", "viewer", p1.ID)

	p2Conn := newFakeConn()
	p2, _ := reg.Register(p2Conn)
	reg.SetRole(p2.ID, types.RoleParticipant, registry.Metadata{RoomCode: created.Code})
	store.JoinRoom(created.Code, "p2", "viewer", p2.ID)

	router.ToRoom(created.Code, map[string]string{"type": "CHAT_MESSAGE"}, p1.ID)

	if p1Conn.delivered() != 0 {
		t.Error("Expected excluded sender to receive nothing")
	}
	if p2Conn.delivered() != 1 {
		t.Errorf("Expected 1 frame for other participant, got %d", p2Conn.delivered())
	}
	if hostConn.delivered() != 1 {
		t.Errorf("Expected 1 frame for host, got %d", hostConn.delivered())
	}
}

func TestToRoomUnknownRoomIsNoOp(t *testing.T) {
	reg := registry.NewRegistry()
	store := room.NewStore(50)
	router := NewRouter(reg, store)

	// Must not panic
	router.ToRoom("AB12CD", map[string]string{"type": "CHAT_MESSAGE"}, "")
}

func TestPruneCleansRoomMembership(t *testing.T) {
	reg := registry.NewRegistry()
	store := room.NewStore(50)
	router := NewRouter(reg, store)

	created, _ := store.CreateRoom("host", "", nil)
	store.AttachHost(created.Code, "host-conn-id")

	deadConn := newFakeConn()
	deadClient, _ := reg.Register(deadConn)
	reg.SetRole(deadClient.ID, types.RoleParticipant, registry.Metadata{RoomCode: created.Code})
	store.JoinRoom(created.Code, "gone", "viewer", deadClient.ID)
	deadConn.Close()

	router.Send(deadClient, map[string]string{"type": "PING"})

	got, exists := store.GetRoom(created.Code)
	if !exists {
		t.Fatal("Room should persist with host attached")
	}
	if len(got.Participants) != 0 {
		t.Error("Expected pruned participant removed from room membership")
	}
}

func TestPruneReportsRemovalToOwner(t *testing.T) {
	reg := registry.NewRegistry()
	store := room.NewStore(50)
	router := NewRouter(reg, store)

	created, _ := store.CreateRoom("host", "", nil)

	hostConn := newFakeConn()
	hostClient, _ := reg.Register(hostConn)
	reg.SetRole(hostClient.ID, types.RoleHost, registry.Metadata{RoomCode: created.Code})
	store.AttachHost(created.Code, hostClient.ID)

	var reported []registry.RemovalEffects
	router.OnRemoval(func(client *registry.Client, effects registry.RemovalEffects) {
		reported = append(reported, effects)
	})

	hostConn.Close()
	router.Send(hostClient, map[string]string{"type": "PING"})

	if len(reported) != 1 {
		t.Fatalf("Expected 1 removal report, got %d", len(reported))
	}
	if reported[0].Role != types.RoleHost || reported[0].RoomCode != created.Code {
		t.Errorf("Removal report lost role/room context: %+v", reported[0])
	}

	// With an owner wired, room cleanup belongs to the owner - the router
	// must not have detached the host itself
	got, exists := store.GetRoom(created.Code)
	if !exists {
		t.Fatal("Room missing after prune")
	}
	if !got.HostConnected {
		t.Error("Router should leave room mutations to the removal owner")
	}

	// A second send for the same dead client reports nothing new
	router.Send(hostClient, map[string]string{"type": "PING"})
	if len(reported) != 1 {
		t.Errorf("Expected removal reported once, got %d", len(reported))
	}
}

func TestSendNilSafety(t *testing.T) {
	reg := registry.NewRegistry()
	store := room.NewStore(50)
	router := NewRouter(reg, store)

	if router.Send(nil, "frame") {
		t.Error("Expected Send to report false for nil client")
	}
}
