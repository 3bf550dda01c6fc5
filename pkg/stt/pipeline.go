package stt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/conversationhub/transcription-engine/pkg/config"
)

// Fragment is one speaker-attributed piece of a pipeline transcription.
type Fragment struct {
	Text         string
	SpeakerLabel string
	Start        float64
	End          float64
	Confidence   float64
}

// PipelineResult is the normalized output of an external workflow call.
type PipelineResult struct {
	Text       string
	Language   string
	Confidence float64
	Fragments  []Fragment
}

// PipelineClient posts audio to an external workflow webhook that performs
// combined transcription and diarization.
type PipelineClient struct {
	webhookURL string
	apiKey     string
	client     *http.Client
}

// NewPipelineClient creates a workflow client from config. Returns nil when
// the pipeline is disabled or has no webhook URL.
func NewPipelineClient(cfg config.PipelineConfig) *PipelineClient {
	if !cfg.Configured() {
		return nil
	}
	return &PipelineClient{
		webhookURL: cfg.WebhookURL,
		apiKey:     cfg.APIKey,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

// PipelineRequest carries one audio segment plus session context to the
// workflow. Audio travels base64-encoded inside the JSON body.
type PipelineRequest struct {
	SessionID    string   `json:"session_id"`
	MeetingID    string   `json:"meeting_id"`
	ChunkIndex   int      `json:"chunk_index"`
	AudioData    string   `json:"audio_data"`
	Format       string   `json:"format"`
	Timestamp    string   `json:"timestamp"`
	Participants []string `json:"participants,omitempty"`
}

type pipelineResponse struct {
	Success       bool `json:"success"`
	Transcription struct {
		Text       string  `json:"text"`
		Language   string  `json:"language"`
		Confidence float64 `json:"confidence"`
	} `json:"transcription"`
	SpeakerAnalysis struct {
		Segments []struct {
			Speaker    string  `json:"speaker"`
			Text       string  `json:"text"`
			Start      float64 `json:"start"`
			End        float64 `json:"end"`
			Confidence float64 `json:"confidence"`
		} `json:"segments"`
	} `json:"speaker_analysis"`
	Error string `json:"error,omitempty"`
}

// Process sends one segment through the workflow and returns the
// speaker-attributed result. The call is not retried: the workflow is slow
// and the orchestrator falls through to the next backend on failure.
func (p *PipelineClient) Process(ctx context.Context, req PipelineRequest, audio []byte) (*PipelineResult, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("empty audio segment")
	}

	req.AudioData = base64.StdEncoding.EncodeToString(audio)
	if req.Timestamp == "" {
		req.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	b, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.webhookURL, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("pipeline request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("pipeline returned status %d: %s", resp.StatusCode, string(body))
	}

	var pr pipelineResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("failed to decode pipeline response: %w", err)
	}
	if !pr.Success {
		if pr.Error != "" {
			return nil, fmt.Errorf("pipeline reported failure: %s", pr.Error)
		}
		return nil, fmt.Errorf("pipeline reported failure")
	}

	result := &PipelineResult{
		Text:       pr.Transcription.Text,
		Language:   pr.Transcription.Language,
		Confidence: pr.Transcription.Confidence,
	}
	for _, seg := range pr.SpeakerAnalysis.Segments {
		result.Fragments = append(result.Fragments, Fragment{
			Text:         seg.Text,
			SpeakerLabel: seg.Speaker,
			Start:        seg.Start,
			End:          seg.End,
			Confidence:   seg.Confidence,
		})
	}
	return result, nil
}

// diarization label palette for speakers the workflow could not match to an
// enrolled participant
var speakerPalette = []struct {
	Name  string
	Color string
}{
	{"Spreker 1", "#3B82F6"},
	{"Spreker 2", "#10B981"},
	{"Spreker 3", "#F59E0B"},
	{"Spreker 4", "#EF4444"},
	{"Spreker 5", "#8B5CF6"},
}

// ResolveSpeakerLabel maps a diarization label such as "SPEAKER_00" to a
// stable display name and color. Labels outside the palette wrap around.
func ResolveSpeakerLabel(label string) (name, color string) {
	var idx int
	if n, err := fmt.Sscanf(label, "SPEAKER_%02d", &idx); n != 1 || err != nil {
		return label, speakerPalette[0].Color
	}
	entry := speakerPalette[idx%len(speakerPalette)]
	return entry.Name, entry.Color
}
