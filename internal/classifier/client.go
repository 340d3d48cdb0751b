// Package classifier calls a Hugging Face zero-shot classification model.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"pos-voice-relay/internal/logger"
	"pos-voice-relay/internal/types"
)

const serviceName = "classifier"

// Options configures the inference endpoint.
type Options struct {
	BaseURL string
	Token   string
	Model   string
}

// Client sends text plus candidate labels to {BaseURL}/models/{Model}.
type Client struct {
	http     *http.Client
	endpoint string
	token    string
	log      *logger.Logger
}

type zeroShotRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters zeroShotParameters `json:"parameters"`
}

type zeroShotParameters struct {
	CandidateLabels []string `json:"candidate_labels"`
	MultiLabel      bool     `json:"multi_label"`
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

func NewClient(httpClient *http.Client, opts Options, log *logger.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	endpoint := ""
	if opts.BaseURL != "" && opts.Model != "" {
		// model ids contain a slash that must stay a path separator
		parts := strings.Split(opts.Model, "/")
		for i, p := range parts {
			parts[i] = url.PathEscape(p)
		}
		endpoint = strings.TrimRight(opts.BaseURL, "/") + "/models/" + strings.Join(parts, "/")
	}
	return &Client{
		http:     httpClient,
		endpoint: endpoint,
		token:    opts.Token,
		log:      log.Component(serviceName),
	}
}

// Classify scores text against labels in multi-label mode. Scores are
// independent per label: they are not sorted and need not sum to 1.
func (c *Client) Classify(ctx context.Context, text string, labels []string) (types.Classification, error) {
	if c.endpoint == "" {
		return types.Classification{}, errors.New("classifier endpoint not configured")
	}
	data, err := json.Marshal(zeroShotRequest{
		Inputs:     text,
		Parameters: zeroShotParameters{CandidateLabels: labels, MultiLabel: true},
	})
	if err != nil {
		return types.Classification{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return types.Classification{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return types.Classification{}, fmt.Errorf("classify: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Classification{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.Classification{}, &types.UpstreamError{Service: serviceName, StatusCode: resp.StatusCode, Payload: body}
	}

	out, err := decode(body)
	if err != nil {
		return types.Classification{}, err
	}
	c.log.WithField("labels", len(out.Labels)).Debug("classification received")
	return out, nil
}

// decode accepts the classic {sequence,labels,scores} object and the newer
// [{label,score}] list.
func decode(body []byte) (types.Classification, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []labelScore
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return types.Classification{}, fmt.Errorf("json decode error: %v body=%s", err, string(body))
		}
		out := types.Classification{
			Labels: make([]string, len(list)),
			Scores: make([]float64, len(list)),
		}
		for i, ls := range list {
			out.Labels[i] = ls.Label
			out.Scores[i] = ls.Score
		}
		return out, nil
	}

	var out types.Classification
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return types.Classification{}, fmt.Errorf("json decode error: %v body=%s", err, string(body))
	}
	if len(out.Labels) != len(out.Scores) {
		return types.Classification{}, fmt.Errorf("classifier returned %d labels and %d scores", len(out.Labels), len(out.Scores))
	}
	return out, nil
}
