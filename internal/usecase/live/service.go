// Package live implements the transcription orchestrator: it owns the
// fallback chain across transcription backends, speaker attribution, the
// per-entry verification state machine, and the exactly-once write of
// finalized entries to the durable sink.
package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conversationhub/transcription-engine/internal/domain/entities"
	"github.com/conversationhub/transcription-engine/internal/usecase/audio"
	"github.com/conversationhub/transcription-engine/internal/usecase/session"
	"github.com/conversationhub/transcription-engine/internal/usecase/voiceprint"
	"github.com/conversationhub/transcription-engine/pkg/stt"
)

// Preferred service values accepted per call.
const (
	ServiceAuto     = "auto"
	ServicePipeline = "pipeline"
	ServiceBatch    = "batch"
)

// BatchClient is the synchronous speech-to-text backend used for chunk
// transcription and verification.
type BatchClient interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (*stt.TranscriptionResult, error)
}

// PipelineClient is the external workflow backend that returns
// speaker-attributed fragments.
type PipelineClient interface {
	Process(ctx context.Context, req stt.PipelineRequest, audio []byte) (*stt.PipelineResult, error)
}

// TranscriptSink receives exactly one write per finalized entry and serves
// the durable transcript back per meeting.
type TranscriptSink interface {
	Save(ctx context.Context, record *entities.TranscriptRecord) error
	FindByMeetingID(ctx context.Context, meetingID uuid.UUID) ([]entities.TranscriptRecord, error)
	CountByProvenance(ctx context.Context, meetingID uuid.UUID) (map[string]int64, error)
}

// ChunkArchiver stores raw chunk audio for traceability. Optional and
// best-effort on the write path.
type ChunkArchiver interface {
	ArchiveChunk(ctx context.Context, sessionID string, chunkNumber int, audio []byte) (string, error)
	ChunkURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
	ListSessionChunks(ctx context.Context, sessionID string) ([]string, error)
}

// Service is the live transcription orchestrator.
type Service struct {
	store     session.Store
	batch     BatchClient
	pipeline  PipelineClient
	sink      TranscriptSink
	archive   ChunkArchiver
	segmenter *audio.Segmenter
	logger    *zap.Logger
}

// NewService constructs the orchestrator. batch, pipeline, sink, archive and
// segmenter may each be nil when the deployment does not provide them; the
// fallback chain and the sink writes degrade accordingly.
func NewService(store session.Store, batch BatchClient, pipeline PipelineClient, sink TranscriptSink, archive ChunkArchiver, segmenter *audio.Segmenter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		batch:     batch,
		pipeline:  pipeline,
		sink:      sink,
		archive:   archive,
		segmenter: segmenter,
		logger:    logger,
	}
}

// ParticipantInput describes one attendee at session start.
type ParticipantInput struct {
	ID          string
	DisplayName string
	Color       string
}

// participantColors assigns stable default colors by join order.
var participantColors = []string{"#3B82F6", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6", "#EC4899"}

// StartSession creates a new live-transcription session for a meeting.
func (s *Service) StartSession(ctx context.Context, meetingID uuid.UUID, inputs []ParticipantInput) (*entities.Session, error) {
	participants := make([]entities.Participant, 0, len(inputs))
	for i, in := range inputs {
		color := in.Color
		if color == "" {
			color = participantColors[i%len(participantColors)]
		}
		participants = append(participants, entities.Participant{
			ID:          in.ID,
			DisplayName: in.DisplayName,
			Color:       color,
		})
	}

	sess := entities.NewSession(meetingID, participants)
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	s.logger.Info("live session started",
		zap.String("session_id", sess.ID),
		zap.String("meeting_id", meetingID.String()),
		zap.Int("participants", len(participants)),
	)
	return sess, nil
}

// GetSession returns the current session state.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*entities.Session, error) {
	return s.store.Get(ctx, sessionID)
}

// EndSession tears down a session. Ending an already-expired or unknown
// session is not an error; TTL expiry is the normal reclamation path and an
// explicit close only accelerates it.
func (s *Service) EndSession(ctx context.Context, sessionID string) error {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	s.logger.Info("live session ended", zap.String("session_id", sessionID))
	return nil
}

// EnrollVoice registers a voice profile for one participant. Re-enrollment
// overwrites the existing profile.
func (s *Service) EnrollVoice(ctx context.Context, sessionID, speakerID string, sample []byte) (*entities.Session, error) {
	if len(sample) == 0 {
		return nil, fmt.Errorf("empty voice sample")
	}

	sess, err := session.Update(ctx, s.store, sessionID, func(sess *entities.Session) error {
		if _, ok := sess.FindParticipant(speakerID); !ok {
			return entities.ErrParticipantUnknown
		}
		sess.VoiceProfiles[speakerID] = voiceprint.Enroll(speakerID, sample)
		for i := range sess.Participants {
			if sess.Participants[i].ID == speakerID {
				sess.Participants[i].VoiceEnrolled = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("voice profile enrolled",
		zap.String("session_id", sessionID),
		zap.String("speaker_id", speakerID),
		zap.Bool("voice_setup_complete", sess.VoiceSetupComplete()),
	)
	return sess, nil
}

// ProcessLive appends a client-recognized text fragment to the session
// transcript. The text is accepted as-is with the caller's own recognition
// confidence; when an audio sample accompanies it, the fingerprint engine
// attributes the fragment to a speaker. The entry enters the state machine
// at status live and is not written to the sink.
func (s *Service) ProcessLive(ctx context.Context, sessionID, text string, confidence float64, spokenAt time.Time, sample []byte) (*entities.TranscriptEntry, error) {
	if spokenAt.IsZero() {
		spokenAt = time.Now().UTC()
	}

	var entry entities.TranscriptEntry
	_, err := session.Update(ctx, s.store, sessionID, func(sess *entities.Session) error {
		speakerID := entities.UnknownSpeakerID
		speakerConfidence := 0.0
		if len(sample) > 0 {
			match := voiceprint.Identify(sample, sess.VoiceProfiles)
			speakerID = match.SpeakerID
			speakerConfidence = match.Confidence
		}
		name, color := resolveSpeaker(sess, speakerID)

		entry = entities.TranscriptEntry{
			ID:                entities.NewEntryID(),
			Text:              text,
			TextConfidence:    confidence,
			SpeakerID:         speakerID,
			SpeakerName:       name,
			SpeakerColor:      color,
			SpeakerConfidence: speakerConfidence,
			Source:            entities.SourceLiveUnverified,
			Status:            entities.StatusLive,
			Provenance:        entities.ProvenanceLive,
			SpokenAt:          spokenAt,
			CreatedAt:         time.Now().UTC(),
		}
		sess.Transcript = append(sess.Transcript, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("live fragment appended",
		zap.String("session_id", sessionID),
		zap.String("entry_id", entry.ID),
		zap.String("speaker_id", entry.SpeakerID),
	)
	return &entry, nil
}

// ProcessChunk runs one raw audio chunk through the fallback chain and
// merges the resulting entries into the session transcript. The chain is
// governed by preferred (auto, pipeline or batch) and by which backends are
// configured; it always produces at least one entry — a placeholder when
// every backend is unavailable.
//
// The session is not held during backend calls: the chunk number is reserved
// in one store update, the network work runs unlocked, and results merge in
// a second update that tolerates interleaved mutations.
func (s *Service) ProcessChunk(ctx context.Context, sessionID string, audio []byte, preferred string) ([]entities.TranscriptEntry, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("empty audio chunk")
	}
	if preferred == "" {
		preferred = ServiceAuto
	}

	var chunkNumber int
	sess, err := session.Update(ctx, s.store, sessionID, func(sess *entities.Session) error {
		sess.ChunkCounter++
		chunkNumber = sess.ChunkCounter
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.archive != nil {
		if _, err := s.archive.ArchiveChunk(ctx, sessionID, chunkNumber, audio); err != nil {
			s.logger.Warn("chunk archive failed",
				zap.String("session_id", sessionID),
				zap.Int("chunk_number", chunkNumber),
				zap.Error(err),
			)
		}
	}

	entries := s.runFallbackChain(ctx, sess, chunkNumber, audio, preferred)

	// Sink writes happen before the merge so a verified entry in the
	// session always refers to a row that exists.
	for i := range entries {
		s.persistVerified(ctx, sess.MeetingID, &entries[i])
	}

	_, err = session.Update(ctx, s.store, sessionID, func(sess *entities.Session) error {
		sess.Transcript = append(sess.Transcript, entries...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ProcessRecording splits a raw recording stream into chunk-sized windows and
// runs each window through the same path as ProcessChunk. Used when a client
// uploads a whole recording instead of streaming pre-cut chunks.
func (s *Service) ProcessRecording(ctx context.Context, sessionID string, r io.Reader, preferred string) ([]entities.TranscriptEntry, error) {
	if s.segmenter == nil {
		return nil, fmt.Errorf("segmenter not configured")
	}
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	chunks, err := s.segmenter.Segment(r)
	if err != nil {
		return nil, fmt.Errorf("segment recording: %w", err)
	}
	defer s.segmenter.Cleanup(chunks)

	s.logger.Info("processing recording",
		zap.String("session_id", sessionID),
		zap.Int("chunks", len(chunks)),
	)

	var all []entities.TranscriptEntry
	for _, chunk := range chunks {
		data, err := chunk.Read()
		if err != nil {
			return all, fmt.Errorf("read chunk %d: %w", chunk.Number, err)
		}
		entries, err := s.ProcessChunk(ctx, sessionID, data, preferred)
		if err != nil {
			return all, fmt.Errorf("process chunk %d: %w", chunk.Number, err)
		}
		all = append(all, entries...)
	}
	return all, nil
}

// runFallbackChain tries the configured backends in order and synthesizes a
// placeholder when none answered.
func (s *Service) runFallbackChain(ctx context.Context, sess *entities.Session, chunkNumber int, audio []byte, preferred string) []entities.TranscriptEntry {
	now := time.Now().UTC()

	if (preferred == ServicePipeline || preferred == ServiceAuto) && s.pipeline != nil {
		entries, err := s.processViaPipeline(ctx, sess, chunkNumber, audio, now)
		if err == nil {
			return entries
		}
		s.logger.Warn("pipeline backend failed, falling through",
			zap.String("session_id", sess.ID),
			zap.Int("chunk_number", chunkNumber),
			zap.Error(err),
		)
	}

	if (preferred == ServiceBatch || preferred == ServiceAuto) && s.batch != nil {
		entry, err := s.processViaBatch(ctx, sess, chunkNumber, audio, now)
		if err == nil {
			return []entities.TranscriptEntry{*entry}
		}
		s.logger.Warn("batch backend failed, falling through",
			zap.String("session_id", sess.ID),
			zap.Int("chunk_number", chunkNumber),
			zap.Error(err),
		)
	}

	// Placeholder: the call must always return something. The client's own
	// recognizer stays authoritative for this window.
	s.logger.Info("no backend produced a transcription, synthesizing placeholder",
		zap.String("session_id", sess.ID),
		zap.Int("chunk_number", chunkNumber),
	)
	return []entities.TranscriptEntry{{
		ID:           entities.NewEntryID(),
		Text:         entities.PlaceholderText,
		SpeakerID:    entities.UnknownSpeakerID,
		SpeakerName:  entities.UnknownSpeakerName,
		SpeakerColor: entities.UnknownSpeakerColor,
		Source:       entities.SourcePlaceholder,
		Status:       entities.StatusVerified,
		Provenance:   entities.ProvenancePlaceholder,
		SpokenAt:     now,
		CreatedAt:    now,
	}}
}

func (s *Service) processViaPipeline(ctx context.Context, sess *entities.Session, chunkNumber int, audio []byte, now time.Time) ([]entities.TranscriptEntry, error) {
	participants := make([]string, 0, len(sess.Participants))
	for _, p := range sess.Participants {
		participants = append(participants, p.ID)
	}

	result, err := s.pipeline.Process(ctx, stt.PipelineRequest{
		SessionID:    sess.ID,
		MeetingID:    sess.MeetingID.String(),
		ChunkIndex:   chunkNumber,
		Format:       "webm",
		Participants: participants,
	}, audio)
	if err != nil {
		return nil, err
	}

	verifiedAt := now
	var entries []entities.TranscriptEntry

	// The pipeline performs its own attribution, so its fragments arrive
	// already verified.
	for _, frag := range result.Fragments {
		if frag.Text == "" {
			continue
		}
		speakerID, name, color := resolveFragmentSpeaker(sess, frag.SpeakerLabel)
		entries = append(entries, entities.TranscriptEntry{
			ID:                entities.NewEntryID(),
			Text:              frag.Text,
			SpeakerID:         speakerID,
			SpeakerName:       name,
			SpeakerColor:      color,
			TextConfidence:    result.Confidence,
			SpeakerConfidence: frag.Confidence,
			Source:            entities.SourceExternalPipeline,
			Status:            entities.StatusVerified,
			Provenance:        entities.ProvenancePipeline,
			Language:          result.Language,
			SpokenAt:          now,
			CreatedAt:         now,
			VerifiedAt:        &verifiedAt,
		})
	}

	// No per-speaker segments: fall back to one unattributed entry for the
	// whole chunk.
	if len(entries) == 0 {
		if result.Text == "" {
			return nil, fmt.Errorf("pipeline returned no usable transcription")
		}
		entries = append(entries, entities.TranscriptEntry{
			ID:             entities.NewEntryID(),
			Text:           result.Text,
			SpeakerID:      entities.UnknownSpeakerID,
			SpeakerName:    entities.UnknownSpeakerName,
			SpeakerColor:   entities.UnknownSpeakerColor,
			TextConfidence: result.Confidence,
			Source:         entities.SourceExternalPipeline,
			Status:         entities.StatusVerified,
			Provenance:     entities.ProvenancePipeline,
			Language:       result.Language,
			SpokenAt:       now,
			CreatedAt:      now,
			VerifiedAt:     &verifiedAt,
		})
	}
	return entries, nil
}

func (s *Service) processViaBatch(ctx context.Context, sess *entities.Session, chunkNumber int, audio []byte, now time.Time) (*entities.TranscriptEntry, error) {
	result, err := s.batch.Transcribe(ctx, audio, fmt.Sprintf("chunk_%03d.webm", chunkNumber))
	if err != nil {
		return nil, err
	}
	if result.Text == "" {
		return nil, fmt.Errorf("batch backend returned empty transcription")
	}

	match := voiceprint.Identify(audio, sess.VoiceProfiles)
	name, color := resolveSpeaker(sess, match.SpeakerID)

	verifiedAt := now
	return &entities.TranscriptEntry{
		ID:                entities.NewEntryID(),
		Text:              result.Text,
		SpeakerID:         match.SpeakerID,
		SpeakerName:       name,
		SpeakerColor:      color,
		TextConfidence:    result.Confidence,
		SpeakerConfidence: match.Confidence,
		Source:            entities.SourceBatchVerified,
		Status:            entities.StatusVerified,
		Provenance:        entities.ProvenanceBatch,
		Language:          result.Language,
		SpokenAt:          now,
		CreatedAt:         now,
		VerifiedAt:        &verifiedAt,
	}, nil
}

// Verify replaces a live entry's text with a batch-derived transcription of
// the same utterance, advancing it through processing to verified (with one
// sink write) or to error (no sink write, no automatic retry — the caller
// may re-invoke).
func (s *Service) Verify(ctx context.Context, sessionID, entryID string, audio []byte) (*entities.TranscriptEntry, error) {
	if s.batch == nil {
		return nil, entities.ErrNoBackendsConfigured
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("empty audio chunk")
	}

	// Mark the entry processing and snapshot what the network call needs.
	var already *entities.TranscriptEntry
	var pending entities.TranscriptEntry
	sess, err := session.Update(ctx, s.store, sessionID, func(sess *entities.Session) error {
		entry := sess.FindEntry(entryID)
		if entry == nil {
			return entities.ErrEntryNotFound
		}
		if entry.Status == entities.StatusVerified {
			// Re-verifying a verified entry is a no-op; the sink write
			// already happened.
			cp := *entry
			already = &cp
			return nil
		}
		entry.Status = entities.StatusProcessing
		entry.FailureReason = ""
		pending = *entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	if already != nil {
		return already, nil
	}

	result, err := s.batch.Transcribe(ctx, audio, fmt.Sprintf("verify_%s.webm", entryID))
	if err != nil {
		s.markVerificationFailed(ctx, sessionID, entryID, err)
		return nil, fmt.Errorf("%w: %s", entities.ErrBackendUnavailable, err)
	}

	match := voiceprint.Identify(audio, sess.VoiceProfiles)
	now := time.Now().UTC()

	// Sink write first: the verified state must never exist without its
	// durable row. A concurrent verify of the same entry loses on the
	// entry_id unique index and is treated as already-written.
	sinkID := ""
	if s.sink != nil {
		record := recordFromVerification(sess, pending, result, match, now)
		switch err := s.sink.Save(ctx, record); {
		case err == nil:
			sinkID = record.ID.String()
		case errors.Is(err, entities.ErrEntryAlreadySaved):
			// The winner's row is the durable one; this record was never
			// inserted, so its id must not be stamped on the entry.
		default:
			s.markVerificationFailed(ctx, sessionID, entryID, err)
			return nil, fmt.Errorf("sink write failed: %w", err)
		}
	}

	var verified entities.TranscriptEntry
	_, err = session.Update(ctx, s.store, sessionID, func(sess *entities.Session) error {
		entry := sess.FindEntry(entryID)
		if entry == nil {
			return entities.ErrEntryNotFound
		}
		name, color := resolveSpeaker(sess, match.SpeakerID)
		entry.Text = result.Text
		entry.TextConfidence = result.Confidence
		entry.SpeakerID = match.SpeakerID
		entry.SpeakerName = name
		entry.SpeakerColor = color
		entry.SpeakerConfidence = match.Confidence
		entry.Source = entities.SourceBatchVerified
		entry.Status = entities.StatusVerified
		entry.Provenance = entities.ProvenanceBatch
		entry.Language = result.Language
		entry.FailureReason = ""
		entry.VerifiedAt = &now
		if sinkID != "" {
			entry.SinkID = sinkID
		}
		verified = *entry
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("entry verified",
		zap.String("session_id", sessionID),
		zap.String("entry_id", entryID),
		zap.String("speaker_id", verified.SpeakerID),
		zap.Float64("text_confidence", verified.TextConfidence),
	)
	return &verified, nil
}

// markVerificationFailed records a failed verification on the entry. Sink is
// not written and the entry stays available for a manual retry.
func (s *Service) markVerificationFailed(ctx context.Context, sessionID, entryID string, cause error) {
	// The request ctx may itself be why the batch call failed; record the
	// failure on a detached context so the entry does not stay processing
	// with no reason.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	_, err := session.Update(ctx, s.store, sessionID, func(sess *entities.Session) error {
		entry := sess.FindEntry(entryID)
		if entry == nil {
			return entities.ErrEntryNotFound
		}
		entry.Status = entities.StatusError
		entry.FailureReason = cause.Error()
		return nil
	})
	if err != nil {
		s.logger.Error("failed to record verification failure",
			zap.String("session_id", sessionID),
			zap.String("entry_id", entryID),
			zap.Error(err),
		)
	}
}

// persistVerified writes one finalized entry to the sink and stamps its
// SinkID. Best-effort for chunk-produced entries: a sink outage degrades
// durability, not the transcription response.
func (s *Service) persistVerified(ctx context.Context, meetingID uuid.UUID, entry *entities.TranscriptEntry) {
	if s.sink == nil || entry.Status != entities.StatusVerified || entry.Persisted() {
		return
	}

	record := recordFromEntry(meetingID, entry)
	if err := s.sink.Save(ctx, record); err != nil {
		if errors.Is(err, entities.ErrEntryAlreadySaved) {
			return
		}
		s.logger.Error("sink write failed for verified entry",
			zap.String("entry_id", entry.ID),
			zap.Error(err),
		)
		return
	}
	entry.SinkID = record.ID.String()
}

// Stats summarizes a session for monitoring dashboards.
type Stats struct {
	SessionID          string         `json:"session_id"`
	MeetingID          string         `json:"meeting_id"`
	StartedAt          time.Time      `json:"started_at"`
	DurationSeconds    int            `json:"duration_seconds"`
	Participants       int            `json:"participants"`
	EnrolledProfiles   int            `json:"enrolled_profiles"`
	VoiceSetupComplete bool           `json:"voice_setup_complete"`
	ChunkCounter       int            `json:"chunk_counter"`
	TotalEntries       int            `json:"total_entries"`
	EntriesByStatus    map[string]int `json:"entries_by_status"`
	EntriesBySource    map[string]int `json:"entries_by_source"`
	VerificationRate   float64        `json:"verification_rate"`

	// SinkByProvenance counts the durable rows written for the meeting,
	// grouped by storage category. Absent when no sink is configured.
	SinkByProvenance map[string]int64 `json:"sink_by_provenance,omitempty"`
}

// SessionStats computes live counters for one session.
func (s *Service) SessionStats(ctx context.Context, sessionID string) (*Stats, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		SessionID:          sess.ID,
		MeetingID:          sess.MeetingID.String(),
		StartedAt:          sess.StartedAt,
		DurationSeconds:    int(time.Since(sess.StartedAt).Seconds()),
		Participants:       len(sess.Participants),
		EnrolledProfiles:   len(sess.VoiceProfiles),
		VoiceSetupComplete: sess.VoiceSetupComplete(),
		ChunkCounter:       sess.ChunkCounter,
		TotalEntries:       len(sess.Transcript),
		EntriesByStatus:    make(map[string]int),
		EntriesBySource:    make(map[string]int),
	}
	for _, e := range sess.Transcript {
		stats.EntriesByStatus[string(e.Status)]++
		stats.EntriesBySource[string(e.Source)]++
	}
	if stats.TotalEntries > 0 {
		stats.VerificationRate = float64(stats.EntriesByStatus[string(entities.StatusVerified)]) / float64(stats.TotalEntries)
	}

	if s.sink != nil {
		counts, err := s.sink.CountByProvenance(ctx, sess.MeetingID)
		if err != nil {
			s.logger.Warn("sink provenance counts unavailable",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		} else {
			stats.SinkByProvenance = counts
		}
	}
	return stats, nil
}

// MeetingTranscript returns the durable transcript rows for a meeting,
// ordered by spoken time. Unlike the session transcript this survives the
// session TTL.
func (s *Service) MeetingTranscript(ctx context.Context, meetingID uuid.UUID) ([]entities.TranscriptRecord, error) {
	if s.sink == nil {
		return nil, fmt.Errorf("transcript sink not configured")
	}
	return s.sink.FindByMeetingID(ctx, meetingID)
}

// ArchivedChunk is one archived raw-audio object with a presigned download
// URL.
type ArchivedChunk struct {
	Object string `json:"object"`
	URL    string `json:"url"`
}

// archivedChunkURLExpiry bounds how long a presigned chunk download stays
// valid.
const archivedChunkURLExpiry = 15 * time.Minute

// ArchivedChunks lists the raw chunks archived for a session, each with a
// presigned URL.
func (s *Service) ArchivedChunks(ctx context.Context, sessionID string) ([]ArchivedChunk, error) {
	if s.archive == nil {
		return nil, fmt.Errorf("chunk archive not configured")
	}
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	objects, err := s.archive.ListSessionChunks(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list archived chunks: %w", err)
	}

	chunks := make([]ArchivedChunk, 0, len(objects))
	for _, object := range objects {
		url, err := s.archive.ChunkURL(ctx, object, archivedChunkURLExpiry)
		if err != nil {
			return nil, fmt.Errorf("presign %s: %w", object, err)
		}
		chunks = append(chunks, ArchivedChunk{Object: object, URL: url})
	}
	return chunks, nil
}

// resolveSpeaker maps a speaker id to its display name and color, falling
// back to the unknown-speaker defaults.
func resolveSpeaker(sess *entities.Session, speakerID string) (name, color string) {
	if p, ok := sess.FindParticipant(speakerID); ok {
		return p.DisplayName, p.Color
	}
	return entities.UnknownSpeakerName, entities.UnknownSpeakerColor
}

// resolveFragmentSpeaker maps a pipeline fragment's speaker label: enrolled
// participant ids pass through; diarization labels get palette names and
// become their own speaker ids.
func resolveFragmentSpeaker(sess *entities.Session, label string) (speakerID, name, color string) {
	if label == "" {
		return entities.UnknownSpeakerID, entities.UnknownSpeakerName, entities.UnknownSpeakerColor
	}
	if p, ok := sess.FindParticipant(label); ok {
		return p.ID, p.DisplayName, p.Color
	}
	name, color = stt.ResolveSpeakerLabel(label)
	return label, name, color
}

func recordFromEntry(meetingID uuid.UUID, entry *entities.TranscriptEntry) *entities.TranscriptRecord {
	return &entities.TranscriptRecord{
		ID:                uuid.New(),
		MeetingID:         meetingID,
		EntryID:           entry.ID,
		Text:              entry.Text,
		SpeakerID:         entry.SpeakerID,
		SpeakerName:       entry.SpeakerName,
		SpeakerColor:      entry.SpeakerColor,
		TextConfidence:    entry.TextConfidence,
		SpeakerConfidence: entry.SpeakerConfidence,
		Source:            string(entry.Source),
		Provenance:        string(entities.DeriveProvenance(entry)),
		Language:          entry.Language,
		SpokenAt:          entry.SpokenAt,
		VerifiedAt:        entry.VerifiedAt,
	}
}

func recordFromVerification(sess *entities.Session, pending entities.TranscriptEntry, result *stt.TranscriptionResult, match voiceprint.Match, now time.Time) *entities.TranscriptRecord {
	name, color := resolveSpeaker(sess, match.SpeakerID)
	verifiedAt := now
	return &entities.TranscriptRecord{
		ID:                uuid.New(),
		MeetingID:         sess.MeetingID,
		EntryID:           pending.ID,
		Text:              result.Text,
		SpeakerID:         match.SpeakerID,
		SpeakerName:       name,
		SpeakerColor:      color,
		TextConfidence:    result.Confidence,
		SpeakerConfidence: match.Confidence,
		Source:            string(entities.SourceBatchVerified),
		Provenance:        string(entities.ProvenanceBatch),
		Language:          result.Language,
		SpokenAt:          pending.SpokenAt,
		VerifiedAt:        &verifiedAt,
	}
}
