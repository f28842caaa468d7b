package video

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
)

// UGCOptions configures the text-to-video UGC client.
type UGCOptions struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// UGCClient calls the UGC text-to-video API. Finished content arrives either
// as a fetchable URL or as an inline base64 payload depending on clip size;
// both are surfaced through the same PollResult.
type UGCClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

type ugcSubmitPayload struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	ImageURLs   []string `json:"image_urls,omitempty"`
	AspectRatio string   `json:"aspect_ratio,omitempty"`
}

type ugcSubmitResponse struct {
	ID         string `json:"id"`
	State      string `json:"state"`
	ETASeconds int    `json:"eta_seconds"`
	Failure    *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"failure"`
}

type ugcPollResponse struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	Output struct {
		VideoURL        string `json:"video_url"`
		VideoBase64     string `json:"video_base64"`
		MIMEType        string `json:"mime_type"`
		DurationSeconds int    `json:"duration_seconds"`
	} `json:"output"`
	Failure *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"failure"`
}

// NewUGCClient constructs a client with sane defaults and injected
// dependencies.
func NewUGCClient(opts UGCOptions) (*UGCClient, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 45 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.clipforge.dev/api/v2"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "ugc-standard"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &UGCClient{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Kind implements Client.
func (c *UGCClient) Kind() domain.ProviderKind {
	return domain.ProviderTextToVideoUGC
}

// HasCredentials reports whether the client can perform remote calls.
func (c *UGCClient) HasCredentials() bool {
	return c.apiKey != ""
}

// Submit starts a UGC generation from a prompt plus image references.
func (c *UGCClient) Submit(ctx context.Context, req SubmitRequest) (*Submission, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, errors.New("video: prompt is required")
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}
	payload := ugcSubmitPayload{
		Model:       model,
		Prompt:      prompt,
		AspectRatio: req.AspectRatio,
	}
	if req.ImageURL != "" {
		payload.ImageURLs = []string{req.ImageURL}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("video: encode submit request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("video: build submit request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("video: submit request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("video: read submit response: %w", err)
	}
	var decoded ugcSubmitResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("video: submit status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		return nil, fmt.Errorf("video: decode submit response: %w", err)
	}
	if decoded.Failure != nil {
		return nil, classifyProviderError(decoded.Failure.Code, decoded.Failure.Message)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("video: submit status %d", resp.StatusCode)
	}
	if decoded.ID == "" {
		return nil, errors.New("video: submit response missing generation id")
	}
	c.logger.Debug().
		Str("provider_task_id", decoded.ID).
		Str("model", model).
		Msg("ugcvideo: submission accepted")
	return &Submission{ProviderTaskID: decoded.ID, EstimatedSeconds: decoded.ETASeconds}, nil
}

// Poll normalizes the provider status reply. Inline payloads are decoded
// here so the orchestrator only ever sees bytes or a URL.
func (c *UGCClient) Poll(ctx context.Context, providerTaskID string) (*PollResult, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/generations/"+providerTaskID, nil)
	if err != nil {
		return nil, fmt.Errorf("video: build poll request: %w", err)
	}
	httpReq.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("video: poll request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("video: read poll response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("video: poll status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var decoded ugcPollResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("video: decode poll response: %w", err)
	}
	switch decoded.State {
	case "pending", "queued":
		return &PollResult{State: PollQueued}, nil
	case "processing", "running":
		return &PollResult{State: PollRunning, Progress: 50}, nil
	case "succeeded", "completed":
		result := &PollResult{
			State:           PollDone,
			Progress:        100,
			ResultURL:       decoded.Output.VideoURL,
			MIME:            decoded.Output.MIMEType,
			DurationSeconds: decoded.Output.DurationSeconds,
		}
		if result.MIME == "" {
			result.MIME = "video/mp4"
		}
		if encoded := strings.TrimSpace(decoded.Output.VideoBase64); encoded != "" {
			data, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				return nil, fmt.Errorf("video: decode inline payload: %w", err)
			}
			result.InlineData = data
		}
		if result.ResultURL == "" && len(result.InlineData) == 0 {
			return nil, errors.New("video: finished generation carries neither url nor payload")
		}
		return result, nil
	case "failed":
		out := &PollResult{State: PollFailed}
		if decoded.Failure != nil {
			out.FailureCode = decoded.Failure.Code
			out.FailureMessage = decoded.Failure.Message
			out.PolicyViolation = isPolicyCode(decoded.Failure.Code)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("video: unknown provider state %q", decoded.State)
	}
}

var _ Client = (*UGCClient)(nil)
