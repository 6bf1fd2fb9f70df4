package registry

import (
	"sync"
	"testing"

	"stagelink/pkg/types"
)

// fakeConn satisfies Conn without a real socket.
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

func TestRegisterAssignsUniqueIDs(t *testing.T) {
	registry := NewRegistry()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		client, err := registry.Register(newFakeConn())
		if err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		if seen[client.ID] {
			t.Fatalf("Duplicate connection id: %s", client.ID)
		}
		seen[client.ID] = true
	}
}

func TestRegisterNilConnection(t *testing.T) {
	registry := NewRegistry()

	if _, err := registry.Register(nil); err != ErrNilConnection {
		t.Errorf("Expected ErrNilConnection, got %v", err)
	}
}

func TestSetRoleMovesBetweenSets(t *testing.T) {
	registry := NewRegistry()
	client, _ := registry.Register(newFakeConn())

	registry.SetRole(client.ID, types.RoleRemote, Metadata{Name: "stage remote", CapRole: types.CapRoleSpeaker})
	if len(registry.Remotes()) != 1 {
		t.Fatal("Expected one remote after registration")
	}
	if client.Role() != types.RoleRemote {
		t.Errorf("Expected role remote, got %s", client.Role())
	}
	if client.CapRole() != types.CapRoleSpeaker {
		t.Errorf("Expected speaker capability role, got %s", client.CapRole())
	}

	// Re-registration is a role change, not an error
	registry.SetRole(client.ID, types.RoleDisplay, Metadata{DisplayURL: "https://display.local"})
	if len(registry.Remotes()) != 0 {
		t.Error("Expected remote set emptied after role change")
	}
	if len(registry.Displays()) != 1 {
		t.Error("Expected one display after role change")
	}
}

func TestSetRoleUnknownIDIsNoOp(t *testing.T) {
	registry := NewRegistry()

	// Must not panic or create a record
	registry.SetRole("missing", types.RoleRemote, Metadata{})
	if len(registry.Remotes()) != 0 {
		t.Error("Expected no remotes for unknown id")
	}
}

func TestControllerSlotSwap(t *testing.T) {
	registry := NewRegistry()
	first, _ := registry.Register(newFakeConn())
	second, _ := registry.Register(newFakeConn())

	if prev := registry.SetController(first.ID); prev != "" {
		t.Errorf("Expected no previous controller, got %s", prev)
	}

	controller, ok := registry.Controller()
	if !ok || controller.ID != first.ID {
		t.Fatal("Expected first client to hold the controller slot")
	}

	// Second registration silently supersedes the first
	if prev := registry.SetController(second.ID); prev != first.ID {
		t.Errorf("Expected superseded id %s, got %s", first.ID, prev)
	}

	controller, ok = registry.Controller()
	if !ok || controller.ID != second.ID {
		t.Fatal("Expected second client to hold the controller slot")
	}
	if first.Role() == types.RoleController {
		t.Error("Superseded client should no longer report controller role")
	}

	// Claiming the slot again from the same client is not a supersession
	if prev := registry.SetController(second.ID); prev != "" {
		t.Errorf("Expected no supersession on repeat claim, got %s", prev)
	}
}

func TestRemoveCascadeEffects(t *testing.T) {
	registry := NewRegistry()

	controller, _ := registry.Register(newFakeConn())
	registry.SetController(controller.ID)

	remote, _ := registry.Register(newFakeConn())
	registry.SetRole(remote.ID, types.RoleRemote, Metadata{Name: "r1"})

	effects := registry.Remove(controller.ID)
	if !effects.Removed || !effects.ControllerVacated {
		t.Error("Expected controller removal to vacate the slot")
	}
	if _, ok := registry.Controller(); ok {
		t.Error("Expected empty controller slot after removal")
	}

	effects = registry.Remove(remote.ID)
	if !effects.RemoteRemoved {
		t.Error("Expected remote removal flagged")
	}
	if effects.RemainingRemotes != 0 {
		t.Errorf("Expected 0 remaining remotes, got %d", effects.RemainingRemotes)
	}

	// Removing again is a no-op
	effects = registry.Remove(remote.ID)
	if effects.Removed {
		t.Error("Expected second removal to report nothing")
	}
}

func TestSetGrantsIsolation(t *testing.T) {
	registry := NewRegistry()
	a, _ := registry.Register(newFakeConn())
	b, _ := registry.Register(newFakeConn())
	registry.SetRole(a.ID, types.RoleRemote, Metadata{Grants: []string{"MESSAGE_ONLY"}})
	registry.SetRole(b.ID, types.RoleRemote, Metadata{Grants: []string{"MESSAGE_ONLY"}})

	if !registry.SetGrants(a.ID, []string{"FULL_CONTROL"}) {
		t.Fatal("Expected grant update to succeed")
	}

	if got := a.Grants(); len(got) != 1 || got[0] != "FULL_CONTROL" {
		t.Errorf("Expected updated grants for a, got %v", got)
	}
	// Granting for one client never affects another
	if got := b.Grants(); len(got) != 1 || got[0] != "MESSAGE_ONLY" {
		t.Errorf("Expected b grants untouched, got %v", got)
	}

	if registry.SetGrants("missing", []string{"FULL_CONTROL"}) {
		t.Error("Expected grant update on unknown id to report false")
	}
}

func TestConcurrentRegistryAccess(t *testing.T) {
	registry := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client, err := registry.Register(newFakeConn())
			if err != nil {
				t.Errorf("Register failed: %v", err)
				return
			}
			registry.SetRole(client.ID, types.RoleRemote, Metadata{Name: "concurrent"})
			registry.Remotes()
			registry.Stats()
			registry.Remove(client.ID)
		}()
	}
	wg.Wait()

	if registry.Stats()["total_connections"] != 0 {
		t.Error("Expected all connections removed after concurrent churn")
	}
}
