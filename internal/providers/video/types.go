package video

import (
	"context"

	"server/internal/domain"
)

// SubmitRequest carries the inputs a provider needs to start a generation.
// Individual providers ignore fields they have no use for.
type SubmitRequest struct {
	TaskID      string
	MerchantID  string
	ImageURL    string
	Prompt      string
	Model       string
	AspectRatio string
}

// Submission is the normalized result of an accepted provider submission.
type Submission struct {
	ProviderTaskID   string
	EstimatedSeconds int
}

// PollState is the common vocabulary both providers' status replies are
// normalized into.
type PollState string

const (
	PollQueued  PollState = "queued"
	PollRunning PollState = "running"
	PollDone    PollState = "done"
	PollFailed  PollState = "failed"
)

// PollResult is a normalized provider status reply. Finished content is
// exposed either as a fetchable ResultURL or as inline bytes; callers must
// handle both, the UGC provider in particular returns inline payloads.
type PollResult struct {
	State           PollState
	Progress        int
	ResultURL       string
	ThumbnailURL    string
	InlineData      []byte
	MIME            string
	DurationSeconds int
	FailureCode     string
	FailureMessage  string
	PolicyViolation bool
}

// Client is the capability surface shared by all generation providers.
// Submission errors caused by content policy wrap domain.ErrContentPolicy
// so the orchestrator can produce a non-retryable, actionable message.
type Client interface {
	Kind() domain.ProviderKind
	Submit(ctx context.Context, req SubmitRequest) (*Submission, error)
	Poll(ctx context.Context, providerTaskID string) (*PollResult, error)
}
