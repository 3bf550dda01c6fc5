package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/conversationhub/transcription-engine/pkg/config"
)

// defaultWhisperConfidence is reported when the backend returns no
// per-segment probabilities.
const defaultWhisperConfidence = 0.9

// TranscriptionResult is the normalized output of a batch transcription call.
type TranscriptionResult struct {
	Text       string
	Language   string
	Confidence float64
	Duration   float64
}

// WhisperClient calls an Azure-hosted Whisper deployment over multipart HTTP.
type WhisperClient struct {
	endpoint string
	apiKey   string
	model    string
	language string
	client   *http.Client
}

// NewWhisperClient creates a batch transcription client from config. Returns
// nil when the backend is not configured so callers can skip it in the
// fallback chain.
func NewWhisperClient(cfg config.WhisperConfig) *WhisperClient {
	if !cfg.Configured() {
		return nil
	}
	return &WhisperClient{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		language: cfg.Language,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
}

// whisperResponse is the verbose_json shape returned by the deployment.
type whisperResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Text       string  `json:"text"`
		Start      float64 `json:"start"`
		End        float64 `json:"end"`
		AvgLogprob float64 `json:"avg_logprob"`
	} `json:"segments"`
}

// Transcribe uploads one audio segment and returns the recognized text.
// Transient failures (network errors, 5xx) are retried with exponential
// backoff inside the client's timeout budget; 4xx responses fail immediately.
func (w *WhisperClient) Transcribe(ctx context.Context, audio []byte, filename string) (*TranscriptionResult, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("empty audio segment")
	}

	var result *TranscriptionResult
	attempt := func() error {
		res, err := w.doTranscribe(ctx, audio, filename)
		if err != nil {
			return err
		}
		result = res
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 1 * time.Second
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 20 * time.Second

	if err := backoff.Retry(attempt, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return result, nil
}

func (w *WhisperClient) doTranscribe(ctx context.Context, audio []byte, filename string) (*TranscriptionResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("failed to write audio part: %w", err)
	}
	_ = writer.WriteField("model", w.model)
	_ = writer.WriteField("language", w.language)
	_ = writer.WriteField("response_format", "verbose_json")
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("api-key", w.apiKey)

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("whisper returned status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, backoff.Permanent(fmt.Errorf("whisper rejected request: status %d: %s", resp.StatusCode, string(b)))
	}

	var wr whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to decode whisper response: %w", err))
	}

	result := &TranscriptionResult{
		Text:       wr.Text,
		Language:   wr.Language,
		Confidence: defaultWhisperConfidence,
		Duration:   wr.Duration,
	}
	if result.Language == "" {
		result.Language = w.language
	}
	return result, nil
}
