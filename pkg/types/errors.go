package types

import "errors"

// ARCHITECTURAL DISCOVERY: Shared error taxonomy lives with the data model so
// the HTTP layer and the protocol layer map the same sentinels to responses
var (
	ErrInvalidRoomCode = errors.New("room code must be 6 uppercase hexadecimal characters")
	ErrInvalidName     = errors.New("name must be 1-100 characters")
	ErrInvalidRole     = errors.New("invalid participant role")
)
