package types

import (
	"testing"
)

func TestIsValidRoomCode(t *testing.T) {
	valid := []string{"AB12CD", "000000", "FFFFFF", "1A2B3C"}
	for _, code := range valid {
		if !IsValidRoomCode(code) {
			t.Errorf("Expected %q to be a valid room code", code)
		}
	}

	invalid := []string{"", "ab12cd", "AB12C", "AB12CDE", "GG0000", "AB 2CD"}
	for _, code := range invalid {
		if IsValidRoomCode(code) {
			t.Errorf("Expected %q to be rejected", code)
		}
	}
}

func TestIsValidName(t *testing.T) {
	if !IsValidName("Main Hall") {
		t.Error("Expected normal name to be valid")
	}
	if IsValidName("") {
		t.Error("Expected empty name to be invalid")
	}

	long := make([]byte, 101)
	for i := range long {
		long[i] = 'a'
	}
	if IsValidName(string(long)) {
		t.Error("Expected 101-character name to be invalid")
	}
}

func TestRoomValidate(t *testing.T) {
	room := &Room{Code: "AB12CD", HostName: "Stage Left"}
	if err := room.Validate(); err != nil {
		t.Errorf("Expected valid room, got %v", err)
	}

	room.Code = "nope"
	if err := room.Validate(); err != ErrInvalidRoomCode {
		t.Errorf("Expected ErrInvalidRoomCode, got %v", err)
	}
}

func TestDefaultRoomSettings(t *testing.T) {
	settings := DefaultRoomSettings()
	if settings.MaxUsers != 50 {
		t.Errorf("Expected default max users 50, got %d", settings.MaxUsers)
	}
	if !settings.AllowViewers || !settings.AllowSpeakers {
		t.Error("Expected viewers and speakers allowed by default")
	}
	if settings.RequireApproval {
		t.Error("Expected approval not required by default")
	}
}
