package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"server/internal/domain"
	"server/internal/providers/video"
	"server/internal/relocation"
)

// Poll reconciles one task with its provider. Terminal tasks are served
// from the local row with no provider or storage traffic; non-terminal
// tasks trigger at most one provider poll and, on completion, one
// relocation before the terminal status is committed. Transient failures
// leave the task in processing so a later call retries.
func (s *Service) Poll(ctx context.Context, taskID, merchantID string) (*StatusView, error) {
	task, err := s.tasks.GetForMerchant(ctx, taskID, merchantID)
	if err != nil {
		return nil, err
	}
	if task.Status.Terminal() {
		return s.statusView(ctx, task), nil
	}
	if task.Status == domain.TaskPending {
		// Submission never reached the provider; nothing to poll yet.
		return s.statusView(ctx, task), nil
	}

	provider, ok := s.providers[task.ProviderKind]
	if !ok {
		return nil, fmt.Errorf("generation: provider %q not configured", task.ProviderKind)
	}
	result, err := provider.Poll(ctx, task.ProviderTaskID)
	if err != nil {
		// Provider unreachable: report last known state, retry later.
		s.logger.Warn().Err(err).
			Str("task_id", task.ID).
			Str("provider_kind", string(task.ProviderKind)).
			Msg("generation: provider poll failed")
		view := s.statusView(ctx, task)
		view.Progress = -1
		return view, nil
	}

	switch result.State {
	case video.PollQueued, video.PollRunning:
		view := s.statusView(ctx, task)
		view.Progress = result.Progress
		return view, nil
	case video.PollFailed:
		return s.completeFailed(ctx, task, result)
	case video.PollDone:
		return s.completeDone(ctx, task, result)
	default:
		return nil, fmt.Errorf("generation: provider returned unknown state %q", result.State)
	}
}

func (s *Service) completeFailed(ctx context.Context, task *domain.GenerationTask, result *video.PollResult) (*StatusView, error) {
	code := domain.ErrorCodeProviderFailed
	if result.PolicyViolation {
		code = domain.ErrorCodeContentPolicy
	}
	moved, err := s.tasks.MarkFailed(ctx, task.ID, domain.TaskProcessing, code, result.FailureMessage)
	if err != nil {
		return nil, err
	}
	if !moved {
		// Another poller got there first; its writer decided the outcome.
		return s.reload(ctx, task)
	}
	s.logger.Info().
		Str("task_id", task.ID).
		Str("error_code", code).
		Msg("generation: provider reported failure")
	return s.reload(ctx, task)
}

func (s *Service) completeDone(ctx context.Context, task *domain.GenerationTask, result *video.PollResult) (*StatusView, error) {
	src := relocation.Source{
		URL:  result.ResultURL,
		Data: result.InlineData,
		MIME: result.MIME,
	}
	asset, err := s.relocator.Relocate(ctx, src, task.ID, task.MerchantID, result.DurationSeconds)
	if err != nil {
		if errors.Is(err, relocation.ErrSourceInvalid) {
			// The provider's artifact is gone or unusable; this will
			// never succeed, so fail the task for good.
			if _, markErr := s.tasks.MarkFailed(ctx, task.ID, domain.TaskProcessing, domain.ErrorCodeStorageFailed, err.Error()); markErr != nil {
				return nil, markErr
			}
			return s.reload(ctx, task)
		}
		// Transient: keep processing, the next poll retries relocation.
		s.logger.Warn().Err(err).
			Str("task_id", task.ID).
			Msg("generation: asset relocation failed, will retry")
		return s.statusView(ctx, task), nil
	}

	completion := domain.CompletionResult{
		AssetKey:        asset.StorageKey,
		ThumbnailURL:    result.ThumbnailURL,
		DurationSeconds: result.DurationSeconds,
		CompletedAt:     s.now().UTC(),
		ExpiresAt:       asset.ExpiresAt,
	}
	moved, err := s.tasks.MarkCompleted(ctx, task.ID, completion)
	if err != nil {
		return nil, err
	}
	if moved {
		s.logger.Info().
			Str("task_id", task.ID).
			Str("asset_key", asset.StorageKey).
			Int("duration_seconds", result.DurationSeconds).
			Msg("generation: completed")
	}
	// Lost races land here too: the winner wrote an equivalent row
	// because relocation keys are deterministic.
	return s.reload(ctx, task)
}

func (s *Service) reload(ctx context.Context, task *domain.GenerationTask) (*StatusView, error) {
	fresh, err := s.tasks.GetForMerchant(ctx, task.ID, task.MerchantID)
	if err != nil {
		return nil, err
	}
	return s.statusView(ctx, fresh), nil
}

// Refund applies the compensating transaction for a finished task. All
// atomicity (idempotence, the daily cap, the balance update and the
// status flip) lives in the ledger.
func (s *Service) Refund(ctx context.Context, taskID, merchantID string) (*domain.RefundOutcome, error) {
	task, err := s.tasks.GetForMerchant(ctx, taskID, merchantID)
	if err != nil {
		return nil, err
	}
	outcome, err := s.ledger.Refund(ctx, merchantID, task.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("task_id", task.ID).
		Str("merchant_id", merchantID).
		Int("credits_refunded", outcome.CreditsRefunded).
		Int("refunds_remaining_today", outcome.RefundsRemainingToday).
		Msg("generation: refund issued")
	return outcome, nil
}

// Get returns the stored state of a task without touching the provider.
func (s *Service) Get(ctx context.Context, taskID, merchantID string) (*StatusView, error) {
	task, err := s.tasks.GetForMerchant(ctx, taskID, merchantID)
	if err != nil {
		return nil, err
	}
	return s.statusView(ctx, task), nil
}

// List returns the merchant's tasks newest first.
func (s *Service) List(ctx context.Context, merchantID string, limit, offset int) ([]StatusView, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	tasks, err := s.tasks.ListByMerchant(ctx, merchantID, limit, offset)
	if err != nil {
		return nil, err
	}
	views := make([]StatusView, 0, len(tasks))
	for i := range tasks {
		views = append(views, *s.statusView(ctx, &tasks[i]))
	}
	return views, nil
}

// Stats surfaces the aggregate task counters.
func (s *Service) Stats(ctx context.Context) (*domain.TaskStats, error) {
	return s.tasks.StatsSummary(ctx)
}

// StatusView is the merchant-facing projection of a task.
type StatusView struct {
	GenerationID    string   `json:"generation_id"`
	Status          string   `json:"status"`
	ProviderKind    string   `json:"provider_kind"`
	Prompt          string   `json:"prompt"`
	Progress        int      `json:"progress,omitempty"`
	QualityVerdict  string   `json:"quality_verdict,omitempty"`
	QualityWarnings []string `json:"quality_warnings,omitempty"`
	VideoURL        string   `json:"video_url,omitempty"`
	ThumbnailURL    string   `json:"thumbnail_url,omitempty"`
	DurationSeconds int      `json:"duration_seconds,omitempty"`
	ErrorCode       string   `json:"error_code,omitempty"`
	ErrorMessage    string   `json:"error_message,omitempty"`
	CreatedAt       string   `json:"created_at"`
	CompletedAt     string   `json:"completed_at,omitempty"`
	ExpiresAt       string   `json:"expires_at,omitempty"`
}

func (s *Service) statusView(_ context.Context, task *domain.GenerationTask) *StatusView {
	view := &StatusView{
		GenerationID:    task.ID,
		Status:          string(task.Status),
		ProviderKind:    string(task.ProviderKind),
		Prompt:          task.Prompt,
		QualityVerdict:  string(task.QualityVerdict),
		QualityWarnings: task.QualityWarnings,
		ThumbnailURL:    task.ThumbnailURL,
		DurationSeconds: task.DurationSeconds,
		ErrorCode:       task.ErrorCode,
		ErrorMessage:    task.ErrorMessage,
		CreatedAt:       task.CreatedAt.UTC().Format(time.RFC3339),
	}
	if task.Status == domain.TaskCompleted || task.Status == domain.TaskRefunded {
		if task.FinalAssetKey != "" {
			view.VideoURL = s.urls.PublicURL(task.FinalAssetKey)
		}
	}
	if task.CompletedAt != nil {
		view.CompletedAt = task.CompletedAt.UTC().Format(time.RFC3339)
	}
	if task.ExpiresAt != nil {
		view.ExpiresAt = task.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return view
}
