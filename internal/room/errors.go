package room

import "errors"

// Room store error types
var (
	ErrRoomNotFound            = errors.New("room not found")
	ErrRoomCodeConflict        = errors.New("room code already in use")
	ErrCodeGenerationExhausted = errors.New("could not generate a free room code")
	ErrRoomFull                = errors.New("room is at capacity")
	ErrParticipantNotFound     = errors.New("participant not found")
)
