package handler

import (
	"encoding/base64"
	stdErrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/conversationhub/transcription-engine/errors"
	dto "github.com/conversationhub/transcription-engine/internal/adapter/dto/live"
	"github.com/conversationhub/transcription-engine/internal/domain/entities"
	"github.com/conversationhub/transcription-engine/internal/usecase/live"
	"github.com/conversationhub/transcription-engine/pkg/config"
)

// Live handles the live-transcription HTTP surface.
type Live struct {
	svc    *live.Service
	cfg    *config.Config
	logger *zap.Logger
}

// NewLiveHandler creates the live transcription handler
func NewLiveHandler(svc *live.Service, cfg *config.Config, logger *zap.Logger) *Live {
	return &Live{svc: svc, cfg: cfg, logger: logger}
}

// StartSession handles POST /v1/live/sessions
func (h *Live) StartSession(c echo.Context) error {
	var req dto.StartSessionRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument(err.Error()))
	}

	meetingID, err := uuid.Parse(req.MeetingID)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("meeting_id must be a UUID"))
	}

	inputs := make([]live.ParticipantInput, 0, len(req.Participants))
	for _, p := range req.Participants {
		inputs = append(inputs, live.ParticipantInput{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			Color:       p.Color,
		})
	}

	sess, err := h.svc.StartSession(c.Request().Context(), meetingID, inputs)
	if err != nil {
		return HandleError(h.logger, c, h.mapError(err))
	}
	return HandleSuccess(h.logger, c, dto.NewSessionResponse(sess))
}

// GetSession handles GET /v1/live/sessions/:id
func (h *Live) GetSession(c echo.Context) error {
	sess, err := h.svc.GetSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return HandleError(h.logger, c, h.mapError(err))
	}
	return HandleSuccess(h.logger, c, dto.NewSessionResponse(sess))
}

// EndSession handles DELETE /v1/live/sessions/:id. Idempotent: ending an
// expired session succeeds.
func (h *Live) EndSession(c echo.Context) error {
	if err := h.svc.EndSession(c.Request().Context(), c.Param("id")); err != nil {
		return HandleError(h.logger, c, h.mapError(err))
	}
	return HandleSuccess(h.logger, c, map[string]string{"session_id": c.Param("id"), "status": "ended"})
}

// EnrollVoice handles POST /v1/live/sessions/:id/voice
func (h *Live) EnrollVoice(c echo.Context) error {
	var req dto.EnrollVoiceRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument(err.Error()))
	}

	sample, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("audio must be base64-encoded"))
	}

	sess, err := h.svc.EnrollVoice(c.Request().Context(), c.Param("id"), req.SpeakerID, sample)
	if err != nil {
		return HandleError(h.logger, c, h.mapError(err))
	}
	return HandleSuccess(h.logger, c, dto.EnrollVoiceResponse{
		SpeakerID:          req.SpeakerID,
		VoiceSetupComplete: sess.VoiceSetupComplete(),
		EnrolledProfiles:   len(sess.VoiceProfiles),
	})
}

// LiveText handles POST /v1/live/sessions/:id/transcribe
func (h *Live) LiveText(c echo.Context) error {
	var req dto.LiveTextRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument(err.Error()))
	}

	var sample []byte
	if req.Audio != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.Audio)
		if err != nil {
			return HandleError(h.logger, c, errors.ErrInvalidArgument("audio must be base64-encoded"))
		}
		sample = decoded
	}

	var spokenAt time.Time
	if req.SpokenAt != nil {
		spokenAt = *req.SpokenAt
	}

	entry, err := h.svc.ProcessLive(c.Request().Context(), c.Param("id"), req.Text, req.Confidence, spokenAt, sample)
	if err != nil {
		return HandleError(h.logger, c, h.mapError(err))
	}
	return HandleSuccess(h.logger, c, dto.NewEntryResponse(entry))
}

// ProcessChunk handles POST /v1/live/sessions/:id/chunks
func (h *Live) ProcessChunk(c echo.Context) error {
	var req dto.ChunkRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument(err.Error()))
	}

	audio, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("audio must be base64-encoded"))
	}

	entries, err := h.svc.ProcessChunk(c.Request().Context(), c.Param("id"), audio, req.PreferredService)
	if err != nil {
		return HandleError(h.logger, c, h.mapError(err))
	}
	return HandleSuccess(h.logger, c, dto.NewEntryResponses(entries))
}

// ProcessRecording handles POST /v1/live/sessions/:id/recording. The raw
// recording is streamed in the request body and split server-side; the
// optional preferred_service query parameter steers the fallback chain.
func (h *Live) ProcessRecording(c echo.Context) error {
	preferred := c.QueryParam("preferred_service")
	switch preferred {
	case "", "auto", "pipeline", "batch":
	default:
		return HandleError(h.logger, c, errors.ErrInvalidArgument("preferred_service must be auto, pipeline or batch"))
	}

	entries, err := h.svc.ProcessRecording(c.Request().Context(), c.Param("id"), c.Request().Body, preferred)
	if err != nil {
		return HandleError(h.logger, c, h.mapError(err))
	}
	return HandleSuccess(h.logger, c, dto.NewEntryResponses(entries))
}

// Verify handles POST /v1/live/sessions/:id/verify
func (h *Live) Verify(c echo.Context) error {
	var req dto.VerifyRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument(err.Error()))
	}

	audio, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("audio must be base64-encoded"))
	}

	entry, err := h.svc.Verify(c.Request().Context(), c.Param("id"), req.EntryID, audio)
	if err != nil {
		if stdErrors.Is(err, entities.ErrEntryNotFound) {
			return HandleError(h.logger, c, errors.ErrEntryNotFound(req.EntryID))
		}
		if stdErrors.Is(err, entities.ErrBackendUnavailable) {
			return HandleError(h.logger, c, errors.ErrVerificationFailed(req.EntryID, err))
		}
		return HandleError(h.logger, c, h.mapError(err))
	}
	return HandleSuccess(h.logger, c, dto.NewEntryResponse(entry))
}

// MeetingTranscript handles GET /v1/live/meetings/:meetingId/transcript
func (h *Live) MeetingTranscript(c echo.Context) error {
	meetingID, err := uuid.Parse(c.Param("meetingId"))
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("meetingId must be a UUID"))
	}

	records, err := h.svc.MeetingTranscript(c.Request().Context(), meetingID)
	if err != nil {
		return HandleError(h.logger, c, h.mapError(err))
	}
	return HandleSuccess(h.logger, c, records)
}

// ArchivedChunks handles GET /v1/live/sessions/:id/chunks
func (h *Live) ArchivedChunks(c echo.Context) error {
	chunks, err := h.svc.ArchivedChunks(c.Request().Context(), c.Param("id"))
	if err != nil {
		return HandleError(h.logger, c, h.mapError(err))
	}
	return HandleSuccess(h.logger, c, chunks)
}

// SessionStats handles GET /v1/live/sessions/:id/stats
func (h *Live) SessionStats(c echo.Context) error {
	stats, err := h.svc.SessionStats(c.Request().Context(), c.Param("id"))
	if err != nil {
		return HandleError(h.logger, c, h.mapError(err))
	}
	return HandleSuccess(h.logger, c, stats)
}

// GetConfig handles GET /v1/live/config
func (h *Live) GetConfig(c echo.Context) error {
	return HandleSuccess(h.logger, c, dto.ConfigResponse{
		PipelineConfigured: h.cfg.Pipeline.Configured(),
		BatchConfigured:    h.cfg.Whisper.Configured(),
		DefaultService:     h.cfg.DefaultService(),
		SessionTTLSeconds:  int(h.cfg.Session.TTL.Seconds()),
	})
}

// mapError translates domain sentinels into transport errors.
func (h *Live) mapError(err error) error {
	switch {
	case stdErrors.Is(err, entities.ErrSessionNotFound), stdErrors.Is(err, entities.ErrSessionExpired):
		return errors.ErrSessionNotFound("")
	case stdErrors.Is(err, entities.ErrEntryNotFound):
		return errors.ErrEntryNotFound("")
	case stdErrors.Is(err, entities.ErrParticipantUnknown):
		return errors.ErrInvalidArgument("speaker_id does not match a session participant")
	case stdErrors.Is(err, entities.ErrNoBackendsConfigured):
		return errors.ErrNoBackendsConfigured()
	case stdErrors.Is(err, entities.ErrVersionConflict):
		return errors.ErrSessionConflict("", err)
	default:
		return errors.ErrInternal(err)
	}
}
