package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"pos-voice-relay/internal/logger"
	"pos-voice-relay/internal/types"
)

const serviceName = "transcription"

// Options configures a Whisper-compatible client.
type Options struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Client calls an OpenAI-compatible /audio/transcriptions endpoint.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	model   string
	log     *logger.Logger
}

type transcriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

func NewClient(httpClient *http.Client, opts Options, log *logger.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	model := opts.Model
	if model == "" {
		model = "whisper-1"
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		model:   model,
		log:     log.Component(serviceName),
	}
}

// Transcribe uploads audio and returns the recognized text. language is an
// ISO-639-1 hint and may be empty.
func (c *Client) Transcribe(ctx context.Context, audio io.Reader, filename, language string) (string, error) {
	if c.baseURL == "" {
		return "", errors.New("transcription base url not set")
	}

	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("multipart file: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}
	_ = w.WriteField("model", c.model)
	if language != "" {
		_ = w.WriteField("language", language)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("multipart close: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &b)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &types.UpstreamError{Service: serviceName, StatusCode: resp.StatusCode, Payload: body}
	}

	var out transcriptionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("json decode error: %v body=%s", err, string(body))
	}
	c.log.WithField("chars", len(out.Text)).WithField("model", c.model).Debug("transcription received")
	return out.Text, nil
}
