package entities

import "errors"

// Session errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrVersionConflict = errors.New("session version conflict")
)

// Transcript errors
var (
	ErrEntryNotFound      = errors.New("transcript entry not found")
	ErrEntryAlreadySaved  = errors.New("transcript entry already persisted")
	ErrParticipantUnknown = errors.New("participant not found in session")
)

// Backend errors
var (
	ErrBackendUnavailable   = errors.New("transcription backend unavailable")
	ErrNoBackendsConfigured = errors.New("no transcription backends configured")
)
