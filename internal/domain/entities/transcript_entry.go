package entities

import (
	"time"

	"github.com/google/uuid"
)

// EntryStatus is the verification state of a transcript entry.
type EntryStatus string

const (
	StatusLive       EntryStatus = "live"
	StatusProcessing EntryStatus = "processing"
	StatusVerified   EntryStatus = "verified"
	StatusError      EntryStatus = "error"
)

// EntrySource records which path produced the current text of an entry.
type EntrySource string

const (
	SourceExternalPipeline EntrySource = "external-pipeline"
	SourceBatchVerified    EntrySource = "batch-verified"
	SourceLiveUnverified   EntrySource = "live-unverified"
	SourcePlaceholder      EntrySource = "placeholder"
)

// Provenance is the storage category recorded with a persisted entry.
type Provenance string

const (
	ProvenancePipeline    Provenance = "pipeline"
	ProvenanceBatch       Provenance = "batch"
	ProvenanceLive        Provenance = "live"
	ProvenancePlaceholder Provenance = "placeholder"
)

// PlaceholderText is stored on entries synthesized when no transcription
// backend is available; the client's own recognizer remains authoritative.
const PlaceholderText = "[transcriptie niet beschikbaar - client-herkenning actief]"

// TranscriptEntry is the unit that flows through the verification state
// machine. The ID is immutable once assigned; text, attribution, confidence,
// status, source and provenance may be rewritten in place during
// verification.
type TranscriptEntry struct {
	ID                string      `json:"id"`
	Text              string      `json:"text"`
	SpeakerID         string      `json:"speaker_id"`
	SpeakerName       string      `json:"speaker_name"`
	SpeakerColor      string      `json:"speaker_color"`
	TextConfidence    float64     `json:"text_confidence"`
	SpeakerConfidence float64     `json:"speaker_confidence"`
	Source            EntrySource `json:"source"`
	Status            EntryStatus `json:"status"`
	Provenance        Provenance  `json:"provenance"`
	Language          string      `json:"language,omitempty"`
	FailureReason     string      `json:"failure_reason,omitempty"`
	SpokenAt          time.Time   `json:"spoken_at"`
	CreatedAt         time.Time   `json:"created_at"`
	VerifiedAt        *time.Time  `json:"verified_at,omitempty"`

	// SinkID is set after the one durable-sink write for this entry.
	SinkID string `json:"sink_id,omitempty"`
}

// NewEntryID returns a session-local unique entry token.
func NewEntryID() string {
	return "entry_" + uuid.NewString()
}

// Persisted reports whether the entry has already been written to the
// durable sink. Used to enforce the exactly-once write invariant.
func (e *TranscriptEntry) Persisted() bool {
	return e.SinkID != ""
}

// DeriveProvenance resolves the storage category for an entry whose explicit
// provenance field is unset. The precedence mirrors the historical labeling
// behavior: batch markers first, then the pipeline source tag, then the
// verified status, then a high-confidence guess, and finally the live
// bucket.
func DeriveProvenance(e *TranscriptEntry) Provenance {
	if e.Provenance != "" {
		return e.Provenance
	}
	switch {
	case e.Source == SourceBatchVerified:
		return ProvenanceBatch
	case e.Source == SourceExternalPipeline:
		return ProvenancePipeline
	case e.Source == SourcePlaceholder:
		return ProvenancePlaceholder
	case e.Status == StatusVerified:
		return ProvenanceBatch
	case e.TextConfidence >= 0.9:
		return ProvenanceBatch
	default:
		return ProvenanceLive
	}
}
