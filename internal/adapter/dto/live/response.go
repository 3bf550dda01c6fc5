package live

import (
	"time"

	"github.com/conversationhub/transcription-engine/internal/domain/entities"
)

// EntryResponse is the wire shape of one transcript entry.
type EntryResponse struct {
	ID                string     `json:"id"`
	Text              string     `json:"text"`
	SpeakerID         string     `json:"speaker_id"`
	SpeakerName       string     `json:"speaker_name"`
	SpeakerColor      string     `json:"speaker_color"`
	TextConfidence    float64    `json:"text_confidence"`
	SpeakerConfidence float64    `json:"speaker_confidence"`
	Source            string     `json:"source"`
	Status            string     `json:"status"`
	Provenance        string     `json:"provenance"`
	Language          string     `json:"language,omitempty"`
	FailureReason     string     `json:"failure_reason,omitempty"`
	SpokenAt          time.Time  `json:"spoken_at"`
	VerifiedAt        *time.Time `json:"verified_at,omitempty"`
}

// NewEntryResponse maps a domain entry to its wire shape.
func NewEntryResponse(e *entities.TranscriptEntry) EntryResponse {
	return EntryResponse{
		ID:                e.ID,
		Text:              e.Text,
		SpeakerID:         e.SpeakerID,
		SpeakerName:       e.SpeakerName,
		SpeakerColor:      e.SpeakerColor,
		TextConfidence:    e.TextConfidence,
		SpeakerConfidence: e.SpeakerConfidence,
		Source:            string(e.Source),
		Status:            string(e.Status),
		Provenance:        string(e.Provenance),
		Language:          e.Language,
		FailureReason:     e.FailureReason,
		SpokenAt:          e.SpokenAt,
		VerifiedAt:        e.VerifiedAt,
	}
}

// NewEntryResponses maps a slice of entries.
func NewEntryResponses(entries []entities.TranscriptEntry) []EntryResponse {
	out := make([]EntryResponse, 0, len(entries))
	for i := range entries {
		out = append(out, NewEntryResponse(&entries[i]))
	}
	return out
}

// ParticipantResponse is the wire shape of one participant.
type ParticipantResponse struct {
	ID            string `json:"id"`
	DisplayName   string `json:"display_name"`
	Color         string `json:"color"`
	VoiceEnrolled bool   `json:"voice_enrolled"`
}

// SessionResponse is the wire shape of a session.
type SessionResponse struct {
	SessionID          string                `json:"session_id"`
	MeetingID          string                `json:"meeting_id"`
	Participants       []ParticipantResponse `json:"participants"`
	Transcript         []EntryResponse       `json:"transcript"`
	ChunkCounter       int                   `json:"chunk_counter"`
	VoiceSetupComplete bool                  `json:"voice_setup_complete"`
	StartedAt          time.Time             `json:"started_at"`
}

// NewSessionResponse maps a session to its wire shape.
func NewSessionResponse(s *entities.Session) SessionResponse {
	participants := make([]ParticipantResponse, 0, len(s.Participants))
	for _, p := range s.Participants {
		participants = append(participants, ParticipantResponse{
			ID:            p.ID,
			DisplayName:   p.DisplayName,
			Color:         p.Color,
			VoiceEnrolled: p.VoiceEnrolled,
		})
	}
	return SessionResponse{
		SessionID:          s.ID,
		MeetingID:          s.MeetingID.String(),
		Participants:       participants,
		Transcript:         NewEntryResponses(s.Transcript),
		ChunkCounter:       s.ChunkCounter,
		VoiceSetupComplete: s.VoiceSetupComplete(),
		StartedAt:          s.StartedAt,
	}
}

// EnrollVoiceResponse confirms a profile enrollment.
type EnrollVoiceResponse struct {
	SpeakerID          string `json:"speaker_id"`
	VoiceSetupComplete bool   `json:"voice_setup_complete"`
	EnrolledProfiles   int    `json:"enrolled_profiles"`
}

// ConfigResponse reports which backends this deployment can use.
type ConfigResponse struct {
	PipelineConfigured bool   `json:"pipeline_configured"`
	BatchConfigured    bool   `json:"batch_configured"`
	DefaultService     string `json:"default_service"`
	SessionTTLSeconds  int    `json:"session_ttl_seconds"`
}
