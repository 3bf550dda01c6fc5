package live

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/conversationhub/transcription-engine/internal/domain/entities"
	"github.com/conversationhub/transcription-engine/internal/infrastructure/cache"
	"github.com/conversationhub/transcription-engine/internal/usecase/audio"
	"github.com/conversationhub/transcription-engine/internal/usecase/session"
	"github.com/conversationhub/transcription-engine/pkg/stt"
)

type fakeBatch struct {
	mu     sync.Mutex
	result *stt.TranscriptionResult
	err    error
	calls  int
	// hook runs inside Transcribe, letting tests observe state mid-call.
	hook func()
}

func (f *fakeBatch) Transcribe(_ context.Context, _ []byte, _ string) (*stt.TranscriptionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.hook != nil {
		f.hook()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakePipeline struct {
	result *stt.PipelineResult
	err    error
	calls  int
}

func (f *fakePipeline) Process(_ context.Context, _ stt.PipelineRequest, _ []byte) (*stt.PipelineResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeSink struct {
	mu      sync.Mutex
	records []entities.TranscriptRecord
	// saveErr, when set, is returned by every Save without inserting.
	saveErr error
}

func (f *fakeSink) Save(_ context.Context, record *entities.TranscriptRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	for _, r := range f.records {
		if r.EntryID == record.EntryID {
			return entities.ErrEntryAlreadySaved
		}
	}
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeSink) FindByMeetingID(_ context.Context, meetingID uuid.UUID) ([]entities.TranscriptRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var records []entities.TranscriptRecord
	for _, r := range f.records {
		if r.MeetingID == meetingID {
			records = append(records, r)
		}
	}
	return records, nil
}

func (f *fakeSink) CountByProvenance(_ context.Context, meetingID uuid.UUID) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[string]int64)
	for _, r := range f.records {
		if r.MeetingID == meetingID {
			counts[r.Provenance]++
		}
	}
	return counts, nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakeArchive struct {
	mu      sync.Mutex
	objects map[string][]string
}

func (f *fakeArchive) ArchiveChunk(_ context.Context, sessionID string, chunkNumber int, _ []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = make(map[string][]string)
	}
	name := fmt.Sprintf("live/%s/chunk_%03d.webm", sessionID, chunkNumber)
	f.objects[sessionID] = append(f.objects[sessionID], name)
	return name, nil
}

func (f *fakeArchive) ChunkURL(_ context.Context, objectName string, _ time.Duration) (string, error) {
	return "https://archive.test/" + objectName, nil
}

func (f *fakeArchive) ListSessionChunks(_ context.Context, sessionID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[sessionID], nil
}

func newService(batch BatchClient, pipeline PipelineClient, sink TranscriptSink) *Service {
	store := cache.NewMemorySessionStore(4 * time.Hour)
	return NewService(store, batch, pipeline, sink, nil, nil, nil)
}

func startSession(t *testing.T, svc *Service) *entities.Session {
	t.Helper()
	sess, err := svc.StartSession(context.Background(), uuid.New(), []ParticipantInput{
		{ID: "jan", DisplayName: "Jan"},
		{ID: "lisa", DisplayName: "Lisa"},
	})
	if err != nil {
		t.Fatalf("start session failed: %v", err)
	}
	return sess
}

func TestStartSession_AssignsColors(t *testing.T) {
	svc := newService(nil, nil, nil)
	sess := startSession(t, svc)

	if sess.Participants[0].Color == "" || sess.Participants[1].Color == "" {
		t.Fatal("participants must get default colors")
	}
	if sess.VoiceSetupComplete() {
		t.Fatal("fresh session must not report voice setup complete")
	}
}

func TestEnrollVoice_SetupCompleteOnlyWhenAllEnrolled(t *testing.T) {
	svc := newService(nil, nil, nil)
	sess := startSession(t, svc)
	ctx := context.Background()

	updated, err := svc.EnrollVoice(ctx, sess.ID, "jan", []byte("stem van jan"))
	if err != nil {
		t.Fatalf("enroll failed: %v", err)
	}
	if updated.VoiceSetupComplete() {
		t.Fatal("setup must not be complete with one of two profiles")
	}

	updated, err = svc.EnrollVoice(ctx, sess.ID, "lisa", []byte("stem van lisa"))
	if err != nil {
		t.Fatalf("enroll failed: %v", err)
	}
	if !updated.VoiceSetupComplete() {
		t.Fatal("setup must be complete once every participant enrolled")
	}
}

func TestEnrollVoice_UnknownParticipant(t *testing.T) {
	svc := newService(nil, nil, nil)
	sess := startSession(t, svc)

	if _, err := svc.EnrollVoice(context.Background(), sess.ID, "piet", []byte("x")); !errors.Is(err, entities.ErrParticipantUnknown) {
		t.Fatalf("expected ErrParticipantUnknown got %v", err)
	}
}

func TestProcessLive_AppendsLiveEntryWithAttribution(t *testing.T) {
	svc := newService(nil, nil, nil)
	sess := startSession(t, svc)
	ctx := context.Background()

	janVoice := []byte("stem van jan tijdens enrollment")
	if _, err := svc.EnrollVoice(ctx, sess.ID, "jan", janVoice); err != nil {
		t.Fatalf("enroll failed: %v", err)
	}

	entry, err := svc.ProcessLive(ctx, sess.ID, "hallo wereld", 0.8, time.Time{}, janVoice)
	if err != nil {
		t.Fatalf("process live failed: %v", err)
	}

	if entry.Text != "hallo wereld" {
		t.Fatalf("live text must be accepted as-is, got %q", entry.Text)
	}
	if entry.Status != entities.StatusLive || entry.Source != entities.SourceLiveUnverified {
		t.Fatalf("unexpected state %s/%s", entry.Status, entry.Source)
	}
	if entry.SpeakerID != "jan" || entry.SpeakerConfidence != 1.0 {
		t.Fatalf("expected jan at 1.0 got %s at %v", entry.SpeakerID, entry.SpeakerConfidence)
	}
	if entry.SpeakerName != "Jan" {
		t.Fatalf("expected display name Jan got %s", entry.SpeakerName)
	}

	got, _ := svc.GetSession(ctx, sess.ID)
	if len(got.Transcript) != 1 || got.Transcript[0].ID != entry.ID {
		t.Fatal("live entry must land in the session transcript")
	}
}

func TestProcessLive_NoSampleNoProfiles(t *testing.T) {
	svc := newService(nil, nil, nil)
	sess := startSession(t, svc)

	entry, err := svc.ProcessLive(context.Background(), sess.ID, "zonder audio", 0.8, time.Now(), nil)
	if err != nil {
		t.Fatalf("process live failed: %v", err)
	}
	if entry.SpeakerID != entities.UnknownSpeakerID {
		t.Fatalf("expected unknown_speaker got %s", entry.SpeakerID)
	}
	if entry.SpeakerName != entities.UnknownSpeakerName || entry.SpeakerColor != entities.UnknownSpeakerColor {
		t.Fatal("unknown speaker must get the default name and color")
	}
}

func TestProcessLive_UnknownSession(t *testing.T) {
	svc := newService(nil, nil, nil)
	if _, err := svc.ProcessLive(context.Background(), "session_gone", "x", 0.8, time.Now(), nil); !errors.Is(err, entities.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound got %v", err)
	}
}

func TestProcessChunk_PlaceholderWhenNothingConfigured(t *testing.T) {
	sink := &fakeSink{}
	svc := newService(nil, nil, sink)
	sess := startSession(t, svc)

	entries, err := svc.ProcessChunk(context.Background(), sess.ID, []byte("audio"), ServiceAuto)
	if err != nil {
		t.Fatalf("process chunk failed: %v", err)
	}

	// The call must always return something.
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 placeholder entry got %d", len(entries))
	}
	e := entries[0]
	if e.Text == "" || e.Text != entities.PlaceholderText {
		t.Fatalf("unexpected placeholder text %q", e.Text)
	}
	if e.Source != entities.SourcePlaceholder || e.Status != entities.StatusVerified {
		t.Fatalf("unexpected state %s/%s", e.Source, e.Status)
	}
	if e.SpeakerID != entities.UnknownSpeakerID {
		t.Fatalf("placeholder speaker must be unknown, got %s", e.SpeakerID)
	}
	if sink.count() != 1 || sink.records[0].Provenance != string(entities.ProvenancePlaceholder) {
		t.Fatal("placeholder entry must persist once with placeholder provenance")
	}
}

func TestProcessChunk_PipelineFragments(t *testing.T) {
	sink := &fakeSink{}
	pipeline := &fakePipeline{result: &stt.PipelineResult{
		Text:       "goedemorgen iedereen",
		Language:   "nl",
		Confidence: 0.93,
		Fragments: []stt.Fragment{
			{Text: "goedemorgen", SpeakerLabel: "jan", Confidence: 0.88},
			{Text: "iedereen", SpeakerLabel: "SPEAKER_01", Confidence: 0.74},
		},
	}}
	svc := newService(nil, pipeline, sink)
	sess := startSession(t, svc)

	entries, err := svc.ProcessChunk(context.Background(), sess.ID, []byte("audio"), ServiceAuto)
	if err != nil {
		t.Fatalf("process chunk failed: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("expected 2 fragment entries got %d", len(entries))
	}
	for _, e := range entries {
		if e.Source != entities.SourceExternalPipeline || e.Status != entities.StatusVerified {
			t.Fatalf("pipeline entries arrive verified, got %s/%s", e.Source, e.Status)
		}
		if e.VerifiedAt == nil {
			t.Fatal("verified entries must carry verifiedAt")
		}
	}
	// Known participant label resolves to the participant.
	if entries[0].SpeakerID != "jan" || entries[0].SpeakerName != "Jan" {
		t.Fatalf("expected participant attribution, got %s/%s", entries[0].SpeakerID, entries[0].SpeakerName)
	}
	// Diarization label gets a palette name.
	if entries[1].SpeakerName != "Spreker 2" {
		t.Fatalf("expected palette name for SPEAKER_01, got %s", entries[1].SpeakerName)
	}
	if sink.count() != 2 {
		t.Fatalf("expected 2 sink writes got %d", sink.count())
	}

	got, _ := svc.GetSession(context.Background(), sess.ID)
	if got.ChunkCounter != 1 {
		t.Fatalf("chunk counter must advance, got %d", got.ChunkCounter)
	}
}

func TestProcessChunk_FallsBackToBatch(t *testing.T) {
	sink := &fakeSink{}
	pipeline := &fakePipeline{err: errors.New("workflow down")}
	batch := &fakeBatch{result: &stt.TranscriptionResult{Text: "vergadering geopend", Language: "nl", Confidence: 0.9}}
	svc := newService(batch, pipeline, sink)
	sess := startSession(t, svc)
	ctx := context.Background()

	sample := []byte("stem van jan")
	if _, err := svc.EnrollVoice(ctx, sess.ID, "jan", sample); err != nil {
		t.Fatalf("enroll failed: %v", err)
	}

	entries, err := svc.ProcessChunk(ctx, sess.ID, sample, ServiceAuto)
	if err != nil {
		t.Fatalf("process chunk failed: %v", err)
	}
	if pipeline.calls != 1 {
		t.Fatal("pipeline must be attempted first under auto")
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 batch entry got %d", len(entries))
	}
	e := entries[0]
	if e.Source != entities.SourceBatchVerified || e.Status != entities.StatusVerified {
		t.Fatalf("unexpected state %s/%s", e.Source, e.Status)
	}
	if e.Text != "vergadering geopend" {
		t.Fatalf("unexpected text %q", e.Text)
	}
	if e.SpeakerID != "jan" {
		t.Fatalf("batch entries are attributed via fingerprinting, got %s", e.SpeakerID)
	}
	if sink.count() != 1 || sink.records[0].Provenance != string(entities.ProvenanceBatch) {
		t.Fatal("batch entry must persist once with batch provenance")
	}
}

func TestProcessChunk_PreferredBatchSkipsPipeline(t *testing.T) {
	pipeline := &fakePipeline{result: &stt.PipelineResult{Text: "zou niet gebruikt mogen worden"}}
	batch := &fakeBatch{result: &stt.TranscriptionResult{Text: "alleen batch", Confidence: 0.9}}
	svc := newService(batch, pipeline, &fakeSink{})
	sess := startSession(t, svc)

	entries, err := svc.ProcessChunk(context.Background(), sess.ID, []byte("audio"), ServiceBatch)
	if err != nil {
		t.Fatalf("process chunk failed: %v", err)
	}
	if pipeline.calls != 0 {
		t.Fatal("preferred=batch must not touch the pipeline")
	}
	if entries[0].Text != "alleen batch" {
		t.Fatalf("unexpected text %q", entries[0].Text)
	}
}

func TestProcessChunk_PreferredPipelineDoesNotFallBackToBatch(t *testing.T) {
	pipeline := &fakePipeline{err: errors.New("workflow down")}
	batch := &fakeBatch{result: &stt.TranscriptionResult{Text: "batch zou overgeslagen moeten worden", Confidence: 0.9}}
	svc := newService(batch, pipeline, &fakeSink{})
	sess := startSession(t, svc)

	entries, err := svc.ProcessChunk(context.Background(), sess.ID, []byte("audio"), ServicePipeline)
	if err != nil {
		t.Fatalf("process chunk failed: %v", err)
	}
	if batch.calls != 0 {
		t.Fatal("preferred=pipeline must not call the batch backend")
	}
	if entries[0].Source != entities.SourcePlaceholder {
		t.Fatalf("expected placeholder got %s", entries[0].Source)
	}
}

func TestVerify_SuccessStateMachine(t *testing.T) {
	sink := &fakeSink{}
	batch := &fakeBatch{result: &stt.TranscriptionResult{Text: "geverifieerde tekst", Language: "nl", Confidence: 0.9}}
	svc := newService(batch, nil, sink)
	sess := startSession(t, svc)
	ctx := context.Background()

	live, err := svc.ProcessLive(ctx, sess.ID, "ruwe live tekst", 0.7, time.Now(), nil)
	if err != nil {
		t.Fatalf("process live failed: %v", err)
	}
	if sink.count() != 0 {
		t.Fatal("live entries must not be written to the sink")
	}

	verified, err := svc.Verify(ctx, sess.ID, live.ID, []byte("audio van dezelfde uitspraak"))
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	if verified.ID != live.ID {
		t.Fatal("entry id is immutable across verification")
	}
	if verified.Text != "geverifieerde tekst" {
		t.Fatalf("text must be overwritten, got %q", verified.Text)
	}
	if verified.Status != entities.StatusVerified || verified.Source != entities.SourceBatchVerified {
		t.Fatalf("unexpected state %s/%s", verified.Status, verified.Source)
	}
	if verified.VerifiedAt == nil || verified.SinkID == "" {
		t.Fatal("verification must stamp verifiedAt and the sink id")
	}
	if sink.count() != 1 {
		t.Fatalf("expected exactly 1 sink write got %d", sink.count())
	}
	if sink.records[0].EntryID != live.ID {
		t.Fatal("sink row must reference the verified entry")
	}
}

func TestVerify_FailureSetsErrorAndSkipsSink(t *testing.T) {
	sink := &fakeSink{}
	batch := &fakeBatch{err: errors.New("deployment unreachable")}
	svc := newService(batch, nil, sink)
	sess := startSession(t, svc)
	ctx := context.Background()

	live, _ := svc.ProcessLive(ctx, sess.ID, "ruwe tekst", 0.7, time.Now(), nil)

	if _, err := svc.Verify(ctx, sess.ID, live.ID, []byte("audio")); err == nil {
		t.Fatal("expected verify to fail")
	}

	got, _ := svc.GetSession(ctx, sess.ID)
	entry := got.FindEntry(live.ID)
	if entry.Status != entities.StatusError {
		t.Fatalf("expected status error got %s", entry.Status)
	}
	if entry.FailureReason == "" {
		t.Fatal("failure reason must be recorded on the entry")
	}
	if sink.count() != 0 {
		t.Fatal("failed verification must not write to the sink")
	}

	// No automatic retry; the caller re-invokes after the backend recovers.
	batch.mu.Lock()
	batch.err = nil
	batch.result = &stt.TranscriptionResult{Text: "tweede poging gelukt", Confidence: 0.9}
	batch.mu.Unlock()

	verified, err := svc.Verify(ctx, sess.ID, live.ID, []byte("audio"))
	if err != nil {
		t.Fatalf("re-invoked verify failed: %v", err)
	}
	if verified.Status != entities.StatusVerified || verified.FailureReason != "" {
		t.Fatal("recovered entry must be verified with the failure reason cleared")
	}
	if sink.count() != 1 {
		t.Fatalf("expected 1 sink write after recovery got %d", sink.count())
	}
}

func TestVerify_IdempotentOnVerifiedEntry(t *testing.T) {
	sink := &fakeSink{}
	batch := &fakeBatch{result: &stt.TranscriptionResult{Text: "definitief", Confidence: 0.9}}
	svc := newService(batch, nil, sink)
	sess := startSession(t, svc)
	ctx := context.Background()

	live, _ := svc.ProcessLive(ctx, sess.ID, "x", 0.7, time.Now(), nil)
	if _, err := svc.Verify(ctx, sess.ID, live.ID, []byte("audio")); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	callsAfterFirst := batch.calls

	again, err := svc.Verify(ctx, sess.ID, live.ID, []byte("audio"))
	if err != nil {
		t.Fatalf("second verify failed: %v", err)
	}
	if again.Status != entities.StatusVerified {
		t.Fatalf("unexpected status %s", again.Status)
	}
	if batch.calls != callsAfterFirst {
		t.Fatal("re-verifying a verified entry must not call the backend")
	}
	if sink.count() != 1 {
		t.Fatalf("sink must hold exactly 1 row, got %d", sink.count())
	}
}

func TestVerify_UnknownEntry(t *testing.T) {
	batch := &fakeBatch{result: &stt.TranscriptionResult{Text: "x"}}
	svc := newService(batch, nil, &fakeSink{})
	sess := startSession(t, svc)

	if _, err := svc.Verify(context.Background(), sess.ID, "entry_stale", []byte("audio")); !errors.Is(err, entities.ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound got %v", err)
	}
}

func TestVerify_NoBatchConfigured(t *testing.T) {
	svc := newService(nil, nil, &fakeSink{})
	sess := startSession(t, svc)

	if _, err := svc.Verify(context.Background(), sess.ID, "entry_x", []byte("audio")); !errors.Is(err, entities.ErrNoBackendsConfigured) {
		t.Fatalf("expected ErrNoBackendsConfigured got %v", err)
	}
}

func TestEndSession_Idempotent(t *testing.T) {
	svc := newService(nil, nil, nil)
	sess := startSession(t, svc)
	ctx := context.Background()

	if err := svc.EndSession(ctx, sess.ID); err != nil {
		t.Fatalf("end session failed: %v", err)
	}
	if err := svc.EndSession(ctx, sess.ID); err != nil {
		t.Fatalf("repeated end session must not fail: %v", err)
	}
	if _, err := svc.GetSession(ctx, sess.ID); !errors.Is(err, entities.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound got %v", err)
	}
}

func TestSessionStats(t *testing.T) {
	svc := newService(nil, nil, &fakeSink{})
	sess := startSession(t, svc)
	ctx := context.Background()

	if _, err := svc.EnrollVoice(ctx, sess.ID, "jan", []byte("stem")); err != nil {
		t.Fatalf("enroll failed: %v", err)
	}
	if _, err := svc.ProcessLive(ctx, sess.ID, "live tekst", 0.9, time.Now(), nil); err != nil {
		t.Fatalf("process live failed: %v", err)
	}
	if _, err := svc.ProcessChunk(ctx, sess.ID, []byte("audio"), ServiceAuto); err != nil {
		t.Fatalf("process chunk failed: %v", err)
	}

	stats, err := svc.SessionStats(ctx, sess.ID)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.TotalEntries != 2 || stats.ChunkCounter != 1 {
		t.Fatalf("unexpected counters: %+v", stats)
	}
	if stats.EntriesByStatus["live"] != 1 || stats.EntriesByStatus["verified"] != 1 {
		t.Fatalf("unexpected status breakdown: %v", stats.EntriesByStatus)
	}
	if stats.EnrolledProfiles != 1 || stats.VoiceSetupComplete {
		t.Fatalf("unexpected enrollment state: %+v", stats)
	}
	if stats.VerificationRate != 0.5 {
		t.Fatalf("expected verification rate 0.5, got %v", stats.VerificationRate)
	}
}

func TestProcessRecording_SegmentsAndProcessesAllChunks(t *testing.T) {
	store := cache.NewMemorySessionStore(4 * time.Hour)
	batch := &fakeBatch{result: &stt.TranscriptionResult{Text: "verwerkt fragment", Language: "nl", Confidence: 0.95}}
	sink := &fakeSink{}
	segmenter := audio.NewSegmenter(t.TempDir(), 30*time.Second, 0)
	svc := NewService(store, batch, nil, sink, nil, segmenter, nil)
	sess := startSession(t, svc)

	// 2 MiB estimates to two minutes of audio, so a 30s target yields four
	// chunk windows.
	stream := bytes.NewReader(bytes.Repeat([]byte{0xAB}, 2<<20))
	entries, err := svc.ProcessRecording(context.Background(), sess.ID, stream, ServiceAuto)
	if err != nil {
		t.Fatalf("process recording failed: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	if batch.calls != 4 {
		t.Fatalf("expected 4 batch calls, got %d", batch.calls)
	}
	if sink.count() != 4 {
		t.Fatalf("expected 4 sink rows, got %d", sink.count())
	}

	got, err := svc.GetSession(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("get session failed: %v", err)
	}
	if got.ChunkCounter != 4 {
		t.Fatalf("expected chunk counter 4, got %d", got.ChunkCounter)
	}
	for _, e := range got.Transcript {
		if e.Status != entities.StatusVerified || e.Provenance != entities.ProvenanceBatch {
			t.Fatalf("unexpected entry state: status=%s provenance=%s", e.Status, e.Provenance)
		}
	}
}

func TestProcessRecording_UnknownSession(t *testing.T) {
	segmenter := audio.NewSegmenter(t.TempDir(), 30*time.Second, 0)
	svc := NewService(cache.NewMemorySessionStore(time.Hour), nil, nil, nil, nil, segmenter, nil)

	_, err := svc.ProcessRecording(context.Background(), "missing", bytes.NewReader([]byte("audio")), ServiceAuto)
	if !errors.Is(err, entities.ErrSessionNotFound) {
		t.Fatalf("expected session-not-found, got %v", err)
	}
}

func TestProcessRecording_NoSegmenter(t *testing.T) {
	svc := newService(nil, nil, nil)
	sess := startSession(t, svc)

	_, err := svc.ProcessRecording(context.Background(), sess.ID, bytes.NewReader([]byte("audio")), ServiceAuto)
	if err == nil {
		t.Fatal("expected error when no segmenter is configured")
	}
}

func TestVerify_DuplicateSinkWriteLeavesSinkIDEmpty(t *testing.T) {
	// A concurrent verifier already owns the durable row: this call's record
	// is never inserted, so its id must not end up on the entry.
	sink := &fakeSink{saveErr: entities.ErrEntryAlreadySaved}
	batch := &fakeBatch{result: &stt.TranscriptionResult{Text: "geverifieerd", Language: "nl", Confidence: 0.97}}
	svc := newService(batch, nil, sink)
	sess := startSession(t, svc)
	ctx := context.Background()

	live, err := svc.ProcessLive(ctx, sess.ID, "ruwe tekst", 0.7, time.Now(), nil)
	if err != nil {
		t.Fatalf("process live failed: %v", err)
	}

	verified, err := svc.Verify(ctx, sess.ID, live.ID, []byte("chunk"))
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if verified.Status != entities.StatusVerified {
		t.Fatalf("expected verified got %s", verified.Status)
	}
	if verified.SinkID != "" {
		t.Fatalf("entry must not claim a row the sink never inserted, got SinkID %q", verified.SinkID)
	}

	stored, err := svc.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get session failed: %v", err)
	}
	if e := stored.FindEntry(live.ID); e == nil || e.SinkID != "" {
		t.Fatal("stored entry must not carry a sink id either")
	}
}

func TestVerify_EntryProcessingDuringBatchCall(t *testing.T) {
	store := cache.NewMemorySessionStore(4 * time.Hour)
	batch := &fakeBatch{result: &stt.TranscriptionResult{Text: "geverifieerd", Language: "nl", Confidence: 0.97}}
	svc := NewService(store, batch, nil, nil, nil, nil, nil)
	sess := startSession(t, svc)
	ctx := context.Background()

	live, err := svc.ProcessLive(ctx, sess.ID, "ruwe tekst", 0.7, time.Now(), nil)
	if err != nil {
		t.Fatalf("process live failed: %v", err)
	}

	var observed entities.EntryStatus
	batch.hook = func() {
		stored, err := store.Get(context.Background(), sess.ID)
		if err != nil {
			t.Errorf("get session during batch call failed: %v", err)
			return
		}
		if e := stored.FindEntry(live.ID); e != nil {
			observed = e.Status
		}
	}

	verified, err := svc.Verify(ctx, sess.ID, live.ID, []byte("chunk"))
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if observed != entities.StatusProcessing {
		t.Fatalf("entry must be processing while the batch call runs, observed %q", observed)
	}
	if verified.Status != entities.StatusVerified {
		t.Fatalf("expected verified got %s", verified.Status)
	}
}

// ctxStore rejects writes once the given context is done, the way the Redis
// store does.
type ctxStore struct{ session.Store }

func (c ctxStore) Put(ctx context.Context, sess *entities.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.Store.Put(ctx, sess)
}

func TestVerify_FailureRecordedWhenRequestContextCancelled(t *testing.T) {
	store := cache.NewMemorySessionStore(4 * time.Hour)
	batch := &fakeBatch{err: context.Canceled}
	svc := NewService(ctxStore{store}, batch, nil, nil, nil, nil, nil)
	sess := startSession(t, svc)

	live, err := svc.ProcessLive(context.Background(), sess.ID, "ruwe tekst", 0.7, time.Now(), nil)
	if err != nil {
		t.Fatalf("process live failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	batch.hook = cancel

	if _, err := svc.Verify(ctx, sess.ID, live.ID, []byte("chunk")); !errors.Is(err, entities.ErrBackendUnavailable) {
		t.Fatalf("expected backend-unavailable got %v", err)
	}

	// The failure must land on the entry even though the request context is
	// gone.
	stored, err := store.Get(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("get session failed: %v", err)
	}
	e := stored.FindEntry(live.ID)
	if e == nil || e.Status != entities.StatusError {
		t.Fatalf("entry must end in error state, got %+v", e)
	}
	if e.FailureReason == "" {
		t.Fatal("failure reason must be recorded")
	}
}

func TestSessionStats_SinkProvenanceCounts(t *testing.T) {
	sink := &fakeSink{}
	svc := newService(nil, nil, sink)
	sess := startSession(t, svc)
	ctx := context.Background()

	if _, err := svc.ProcessChunk(ctx, sess.ID, []byte("audio"), ServiceAuto); err != nil {
		t.Fatalf("process chunk failed: %v", err)
	}

	stats, err := svc.SessionStats(ctx, sess.ID)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.SinkByProvenance[string(entities.ProvenancePlaceholder)] != 1 {
		t.Fatalf("expected 1 placeholder row in sink counts, got %v", stats.SinkByProvenance)
	}
}

func TestMeetingTranscript(t *testing.T) {
	sink := &fakeSink{}
	svc := newService(nil, nil, sink)
	sess := startSession(t, svc)
	ctx := context.Background()

	entries, err := svc.ProcessChunk(ctx, sess.ID, []byte("audio"), ServiceAuto)
	if err != nil {
		t.Fatalf("process chunk failed: %v", err)
	}

	records, err := svc.MeetingTranscript(ctx, sess.MeetingID)
	if err != nil {
		t.Fatalf("meeting transcript failed: %v", err)
	}
	if len(records) != 1 || records[0].EntryID != entries[0].ID {
		t.Fatalf("expected the persisted entry back, got %+v", records)
	}

	other, err := svc.MeetingTranscript(ctx, uuid.New())
	if err != nil {
		t.Fatalf("meeting transcript failed: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("unrelated meeting must have no rows, got %d", len(other))
	}
}

func TestMeetingTranscript_NoSink(t *testing.T) {
	svc := newService(nil, nil, nil)
	if _, err := svc.MeetingTranscript(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error when no sink is configured")
	}
}

func TestArchivedChunks(t *testing.T) {
	archive := &fakeArchive{}
	store := cache.NewMemorySessionStore(4 * time.Hour)
	svc := NewService(store, nil, nil, nil, archive, nil, nil)
	sess := startSession(t, svc)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.ProcessChunk(ctx, sess.ID, []byte("audio"), ServiceAuto); err != nil {
			t.Fatalf("process chunk failed: %v", err)
		}
	}

	chunks, err := svc.ArchivedChunks(ctx, sess.ID)
	if err != nil {
		t.Fatalf("archived chunks failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 archived chunks, got %d", len(chunks))
	}
	want := fmt.Sprintf("live/%s/chunk_001.webm", sess.ID)
	if chunks[0].Object != want {
		t.Fatalf("expected object %q got %q", want, chunks[0].Object)
	}
	if chunks[0].URL != "https://archive.test/"+want {
		t.Fatalf("unexpected presigned URL %q", chunks[0].URL)
	}

	if _, err := svc.ArchivedChunks(ctx, "missing"); !errors.Is(err, entities.ErrSessionNotFound) {
		t.Fatalf("expected session-not-found, got %v", err)
	}
}

func TestArchivedChunks_NoArchive(t *testing.T) {
	svc := newService(nil, nil, nil)
	sess := startSession(t, svc)
	if _, err := svc.ArchivedChunks(context.Background(), sess.ID); err == nil {
		t.Fatal("expected error when no archive is configured")
	}
}
