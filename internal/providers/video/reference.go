package video

import (
	"bytes"
	"context"
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

// ErrMissingAPIKey indicates a client was configured without credentials.
var ErrMissingAPIKey = errors.New("video: api key is required")

// ReferenceOptions configures the reference-to-video client.
type ReferenceOptions struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// ReferenceClient calls the 360-style product video API: a single reference
// image orbits into a short clip. Results are always URL-addressed.
type ReferenceClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

type referenceSubmitPayload struct {
	Model       string `json:"model"`
	ImageURL    string `json:"image_url"`
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

type referenceSubmitResponse struct {
	TaskID     string `json:"task_id"`
	ETASeconds int    `json:"eta_seconds"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

type referencePollResponse struct {
	TaskID   string `json:"task_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Result   struct {
		VideoURL        string `json:"video_url"`
		ThumbnailURL    string `json:"thumbnail_url"`
		DurationSeconds int    `json:"duration_seconds"`
	} `json:"result"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type referenceErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewReferenceClient constructs a client with sane defaults and injected
// dependencies.
func NewReferenceClient(opts ReferenceOptions) (*ReferenceClient, error) {
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
		baseURL = "https://api.vidspin.ai/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "orbit-4"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &ReferenceClient{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Kind implements Client.
func (c *ReferenceClient) Kind() domain.ProviderKind {
	return domain.ProviderReferenceToVideo
}

// HasCredentials reports whether the client can perform remote calls.
func (c *ReferenceClient) HasCredentials() bool {
	return c.apiKey != ""
}

// Submit starts a generation and returns the provider's task identifier.
func (c *ReferenceClient) Submit(ctx context.Context, req SubmitRequest) (*Submission, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(req.ImageURL) == "" {
		return nil, errors.New("video: image url is required")
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}
	payload := referenceSubmitPayload{
		Model:       model,
		ImageURL:    req.ImageURL,
		Prompt:      strings.TrimSpace(req.Prompt),
		AspectRatio: req.AspectRatio,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("video: encode submit request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tasks", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("video: build submit request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("video: submit request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("video: read submit response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, submitError(resp.StatusCode, raw)
	}
	var decoded referenceSubmitResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("video: decode submit response: %w", err)
	}
	if decoded.Code != "" {
		return nil, classifyProviderError(decoded.Code, decoded.Message)
	}
	if decoded.TaskID == "" {
		return nil, errors.New("video: submit response missing task id")
	}
	c.logger.Debug().
		Str("provider_task_id", decoded.TaskID).
		Str("model", model).
		Msg("refvideo: submission accepted")
	return &Submission{ProviderTaskID: decoded.TaskID, EstimatedSeconds: decoded.ETASeconds}, nil
}

// Poll normalizes the provider status reply into the common vocabulary.
func (c *ReferenceClient) Poll(ctx context.Context, providerTaskID string) (*PollResult, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tasks/"+providerTaskID, nil)
	if err != nil {
		return nil, fmt.Errorf("video: build poll request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

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
	var decoded referencePollResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("video: decode poll response: %w", err)
	}
	switch decoded.Status {
	case "queued", "pending":
		return &PollResult{State: PollQueued, Progress: decoded.Progress}, nil
	case "running", "processing":
		return &PollResult{State: PollRunning, Progress: decoded.Progress}, nil
	case "succeeded", "done":
		if decoded.Result.VideoURL == "" {
			return nil, errors.New("video: finished task missing video url")
		}
		return &PollResult{
			State:           PollDone,
			Progress:        100,
			ResultURL:       decoded.Result.VideoURL,
			ThumbnailURL:    decoded.Result.ThumbnailURL,
			MIME:            "video/mp4",
			DurationSeconds: decoded.Result.DurationSeconds,
		}, nil
	case "failed":
		return &PollResult{
			State:           PollFailed,
			FailureCode:     decoded.Error.Code,
			FailureMessage:  decoded.Error.Message,
			PolicyViolation: isPolicyCode(decoded.Error.Code),
		}, nil
	default:
		return nil, fmt.Errorf("video: unknown provider status %q", decoded.Status)
	}
}

func submitError(status int, raw []byte) error {
	var detail referenceErrorResponse
	if err := json.Unmarshal(raw, &detail); err == nil && detail.Message != "" {
		return classifyProviderError(detail.Code, detail.Message)
	}
	return fmt.Errorf("video: submit status %d: %s", status, strings.TrimSpace(string(raw)))
}

// classifyProviderError maps provider error codes onto the domain taxonomy
// so content-policy rejections stay distinguishable from generic failures.
func classifyProviderError(code, message string) error {
	if isPolicyCode(code) {
		return fmt.Errorf("video: %s (%s): %w", message, code, domain.ErrContentPolicy)
	}
	return fmt.Errorf("video: %s (%s): %w", message, code, domain.ErrProviderRejected)
}

func isPolicyCode(code string) bool {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "content_policy_violation", "policy_violation", "unsafe_content", "moderation_blocked":
		return true
	}
	return false
}

var _ Client = (*ReferenceClient)(nil)
