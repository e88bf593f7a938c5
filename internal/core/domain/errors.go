package domain

import "errors"

var (
	ErrInvalidRoomID        = errors.New("invalid room id")
	ErrRoomNotFound         = errors.New("room not found")
	ErrRoomAlreadyExists    = errors.New("room already exists")
	ErrWhisperTargetMissing = errors.New("whisper target missing")
	ErrWhisperTargetInvalid = errors.New("whisper target is not a valid id")
	ErrRegistryClosed       = errors.New("registry closed")
	ErrSessionClosed        = errors.New("session closed")
	ErrSessionBufferFull    = errors.New("session send buffer full")
)
