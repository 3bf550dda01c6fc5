package live

import "time"

// ParticipantPayload describes one attendee at session start.
type ParticipantPayload struct {
	ID          string `json:"id" validate:"required"`
	DisplayName string `json:"display_name" validate:"required"`
	Color       string `json:"color,omitempty"`
}

// StartSessionRequest starts a live-transcription session for a meeting.
type StartSessionRequest struct {
	MeetingID    string               `json:"meeting_id" validate:"required,uuid4"`
	Participants []ParticipantPayload `json:"participants" validate:"dive"`
}

// EnrollVoiceRequest registers a voice profile for a participant. Audio
// travels base64-encoded.
type EnrollVoiceRequest struct {
	SpeakerID string `json:"speaker_id" validate:"required"`
	Audio     string `json:"audio" validate:"required,base64"`
}

// LiveTextRequest carries one client-recognized text fragment, with an
// optional audio sample for speaker attribution.
type LiveTextRequest struct {
	Text       string     `json:"text" validate:"required"`
	Confidence float64    `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	SpokenAt   *time.Time `json:"spoken_at,omitempty"`
	Audio      string     `json:"audio,omitempty" validate:"omitempty,base64"`
}

// ChunkRequest submits one raw audio chunk for full transcription.
type ChunkRequest struct {
	Audio            string `json:"audio" validate:"required,base64"`
	PreferredService string `json:"preferred_service,omitempty" validate:"omitempty,transcription_service"`
}

// VerifyRequest re-transcribes the utterance behind a live entry.
type VerifyRequest struct {
	EntryID string `json:"entry_id" validate:"required"`
	Audio   string `json:"audio" validate:"required,base64"`
}
