package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TranscriptRecord is the durable row written to the transcript sink. The
// sink is write-only from the engine's perspective; one row is created per
// finalized entry and never updated afterwards.
type TranscriptRecord struct {
	ID                uuid.UUID                                  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	MeetingID         uuid.UUID                                  `json:"meeting_id" gorm:"type:uuid;not null;index"`
	EntryID           string                                     `json:"entry_id" gorm:"type:varchar(64);not null;uniqueIndex"`
	Text              string                                     `json:"text" gorm:"type:text;not null"`
	SpeakerID         string                                     `json:"speaker_id" gorm:"type:varchar(64)"`
	SpeakerName       string                                     `json:"speaker_name" gorm:"type:varchar(255)"`
	SpeakerColor      string                                     `json:"speaker_color" gorm:"type:varchar(16)"`
	TextConfidence    float64                                    `json:"text_confidence" gorm:"default:0.0"`
	SpeakerConfidence float64                                    `json:"speaker_confidence" gorm:"default:0.0"`
	Source            string                                     `json:"source" gorm:"type:varchar(32);not null"`
	Provenance        string                                     `json:"provenance" gorm:"type:varchar(32);not null;index"`
	Language          string                                     `json:"language,omitempty" gorm:"type:varchar(20)"`
	SpokenAt          time.Time                                  `json:"spoken_at"`
	VerifiedAt        *time.Time                                 `json:"verified_at,omitempty"`
	Metadata          datatypes.JSONType[map[string]interface{}] `json:"metadata,omitempty" gorm:"type:jsonb;serializer:json"`
	CreatedAt         time.Time                                  `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (TranscriptRecord) TableName() string {
	return "transcript_entries"
}
