package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UnknownSpeakerID is the sentinel speaker returned whenever attribution
// fails or no voice profiles are enrolled.
const UnknownSpeakerID = "unknown_speaker"

// Defaults used when a speaker cannot be resolved to a participant.
const (
	UnknownSpeakerName  = "Onbekende Spreker"
	UnknownSpeakerColor = "#6B7280"
)

// Participant is one enrolled attendee of a live-transcription session.
type Participant struct {
	ID            string `json:"id"`
	DisplayName   string `json:"display_name"`
	Color         string `json:"color,omitempty"`
	VoiceEnrolled bool   `json:"voice_enrolled"`
}

// VoiceProfile holds the fingerprint features for one speaker. Profiles are
// owned by the session that created them and are never shared across
// sessions. Re-enrollment overwrites the previous profile.
type VoiceProfile struct {
	SpeakerID   string    `json:"speaker_id"`
	Features    []float64 `json:"features"`
	SampleCount int       `json:"sample_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Session is the single cross-request shared record for one live
// transcription run. It is stored as one versioned value; all mutation is
// read-modify-write through the session store, which rejects stale versions.
type Session struct {
	ID            string                  `json:"session_id"`
	MeetingID     uuid.UUID               `json:"meeting_id"`
	Participants  []Participant           `json:"participants"`
	VoiceProfiles map[string]VoiceProfile `json:"voice_profiles"`
	Transcript    []TranscriptEntry       `json:"transcript"`
	ChunkCounter  int                     `json:"chunk_counter"`
	StartedAt     time.Time               `json:"started_at"`

	// Version is the optimistic-concurrency stamp checked by the store on
	// every Put.
	Version int64 `json:"version"`
}

// NewSession creates an empty session for a meeting.
func NewSession(meetingID uuid.UUID, participants []Participant) *Session {
	return &Session{
		ID:            fmt.Sprintf("session_%s", uuid.NewString()),
		MeetingID:     meetingID,
		Participants:  participants,
		VoiceProfiles: make(map[string]VoiceProfile),
		Transcript:    []TranscriptEntry{},
		StartedAt:     time.Now().UTC(),
	}
}

// VoiceSetupComplete reports whether every participant has an enrolled
// voice profile. Sessions without participants are never considered set up.
func (s *Session) VoiceSetupComplete() bool {
	if len(s.Participants) == 0 {
		return false
	}
	for _, p := range s.Participants {
		if !p.VoiceEnrolled {
			return false
		}
	}
	return true
}

// FindParticipant returns the participant with the given speaker id.
func (s *Session) FindParticipant(speakerID string) (Participant, bool) {
	for _, p := range s.Participants {
		if p.ID == speakerID {
			return p, true
		}
	}
	return Participant{}, false
}

// FindEntry returns a pointer to the transcript entry with the given id, or
// nil when the id is stale or unknown.
func (s *Session) FindEntry(entryID string) *TranscriptEntry {
	for i := range s.Transcript {
		if s.Transcript[i].ID == entryID {
			return &s.Transcript[i]
		}
	}
	return nil
}
