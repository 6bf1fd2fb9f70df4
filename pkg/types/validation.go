package types

import (
	"regexp"
)

// FUNCTIONAL DISCOVERY: Regex compiled once at package initialization
// for better performance in high-frequency validation scenarios
var roomCodeRegex = regexp.MustCompile(`^[0-9A-F]{6}$`)

// IsValidRoomCode checks the fixed-length uppercase hexadecimal code format.
func IsValidRoomCode(code string) bool {
	return roomCodeRegex.MatchString(code)
}

// IsValidName checks display name length bounds for hosts and participants.
func IsValidName(name string) bool {
	return len(name) >= 1 && len(name) <= 100
}

// Validate ensures the snapshot-facing room fields meet format requirements.
func (r *Room) Validate() error {
	if !IsValidRoomCode(r.Code) {
		return ErrInvalidRoomCode
	}
	if r.HostName != "" && !IsValidName(r.HostName) {
		return ErrInvalidName
	}
	return nil
}
