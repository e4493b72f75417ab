package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrEmptyTranscript is returned when the service heard nothing usable.
var ErrEmptyTranscript = errors.New("empty transcript")

// TranscribeRequest carries base64 audio or a URL the service can fetch.
type TranscribeRequest struct {
	Audio    string `json:"audio,omitempty"`
	AudioURL string `json:"audio_url,omitempty"`
	Language string `json:"language"`
}

// Transcript is the recognised text.
type Transcript struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
}

// SpeechClient is the HTTP client of the speech-to-text service.
type SpeechClient struct {
	client *resty.Client
}

// NewSpeechClient creates a client for the service at baseURL.
func NewSpeechClient(baseURL, apiKey string, timeout time.Duration) *SpeechClient {
	return &SpeechClient{client: newClient(baseURL, apiKey, timeout)}
}

// Transcribe converts speech to text. Language defaults to Persian.
func (c *SpeechClient) Transcribe(ctx context.Context, req TranscribeRequest) (Transcript, error) {
	if req.Language == "" {
		req.Language = "fa"
	}

	var transcript Transcript

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&transcript).
		Post("/transcriptions")
	if err := checkResponse(resp, err); err != nil {
		return Transcript{}, fmt.Errorf("transcribe: %w", err)
	}

	if strings.TrimSpace(transcript.Text) == "" {
		return Transcript{}, ErrEmptyTranscript
	}

	return transcript, nil
}

// StaticTranscriber treats the submitted audio field as already transcribed
// text. It stands in for the service when no speech URL is configured.
type StaticTranscriber struct{}

// Transcribe returns req.Audio as the transcript.
func (StaticTranscriber) Transcribe(_ context.Context, req TranscribeRequest) (Transcript, error) {
	text := strings.TrimSpace(req.Audio)
	if text == "" {
		return Transcript{}, ErrEmptyTranscript
	}

	return Transcript{Text: text, Confidence: 1, Language: "fa"}, nil
}
