package permission

import (
	"testing"
)

func TestAdminHasFullActionSet(t *testing.T) {
	policy := ForClient("admin", nil)
	for _, action := range allActions {
		if !policy.Allows(action) {
			t.Errorf("Expected admin allowed %s", action)
		}
	}
}

func TestQueueManagerActions(t *testing.T) {
	policy := ForClient("queue_manager", nil)

	allowed := []Action{ActionStartResume, ActionPause, ActionAddTime, ActionSubtractTime, ActionScheduleView, ActionMessageSend, ActionMessagePreset}
	for _, action := range allowed {
		if !policy.Allows(action) {
			t.Errorf("Expected queue_manager allowed %s", action)
		}
	}

	denied := []Action{ActionScheduleEdit, ActionScheduleReorder, ActionFadeToBlack, ActionDisplaySettings}
	for _, action := range denied {
		if policy.Allows(action) {
			t.Errorf("Expected queue_manager denied %s", action)
		}
	}
}

func TestSpeakerActions(t *testing.T) {
	policy := ForClient("speaker", nil)

	if !policy.Allows(ActionPersonalTimer) || !policy.Allows(ActionPersonalMessage) || !policy.Allows(ActionScheduleView) {
		t.Error("Expected speaker allowed personal timer/messages and schedule view")
	}
	if policy.Allows(ActionStartResume) || policy.Allows(ActionFadeToBlack) {
		t.Error("Expected speaker denied global timer and display controls")
	}
}

func TestViewerHasNoActions(t *testing.T) {
	policy := ForClient("viewer", nil)
	for _, action := range allActions {
		if policy.Allows(action) {
			t.Errorf("Expected viewer denied %s", action)
		}
	}
}

func TestUnknownRoleEmptyActionSet(t *testing.T) {
	policy := ForClient("stagehand", nil)
	for _, action := range allActions {
		if policy.Allows(action) {
			t.Errorf("Expected unknown role denied %s", action)
		}
	}
}

func TestLegacyGrants(t *testing.T) {
	timeOnly := ForClient("", []string{GrantTimeControl})
	if !timeOnly.Allows(ActionPause) {
		t.Error("Expected TIME_CONTROL to satisfy PAUSE")
	}
	if timeOnly.Allows(ActionMessageSend) {
		t.Error("Expected TIME_CONTROL not to satisfy MESSAGE_SEND")
	}
	if timeOnly.Allows(ActionFadeToBlack) {
		t.Error("Expected fade to black to require FULL_CONTROL")
	}

	full := ForClient("", []string{GrantFullControl})
	if !full.Allows(ActionFadeToBlack) || !full.Allows(ActionPause) || !full.Allows(ActionMessageSend) {
		t.Error("Expected FULL_CONTROL to satisfy every mapped action")
	}

	messageOnly := ForClient("", []string{GrantMessageOnly})
	if !messageOnly.Allows(ActionMessageSend) {
		t.Error("Expected MESSAGE_ONLY to satisfy MESSAGE_SEND")
	}
	if messageOnly.Allows(ActionPause) {
		t.Error("Expected MESSAGE_ONLY not to satisfy PAUSE")
	}
}

func TestNoRoleNoGrantsDeniesEverything(t *testing.T) {
	policy := ForClient("", nil)
	for _, action := range allActions {
		if policy.Allows(action) {
			t.Errorf("Expected grantless client denied %s", action)
		}
	}
}

func TestRoleTakesPrecedenceOverGrants(t *testing.T) {
	// A declared role wins even when legacy grants are also present
	if IsAllowed("viewer", []string{GrantFullControl}, ActionPause) {
		t.Error("Expected declared viewer role to override FULL_CONTROL grant")
	}
	if !IsAllowed("admin", nil, ActionFadeToBlack) {
		t.Error("Expected admin role allowed without any grants")
	}
}

func TestUnknownActionDenied(t *testing.T) {
	if IsAllowed("admin", nil, Action("LAUNCH_CONFETTI")) {
		t.Error("Expected unknown action denied for admin")
	}
	if IsAllowed("", []string{GrantFullControl}, Action("LAUNCH_CONFETTI")) {
		t.Error("Expected unknown action denied under grants")
	}
}

func TestIsAllowedDeterministic(t *testing.T) {
	for i := 0; i < 100; i++ {
		if !IsAllowed("queue_manager", nil, ActionStartResume) {
			t.Fatal("Expected deterministic allow across repeated calls")
		}
	}
}
