package generation

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/providers/video"
	"server/internal/relocation"
)

// MaxPromptLength bounds merchant prompts before any credit is touched.
const MaxPromptLength = 2000

// QualityChecker is the pre-submission gate. A nil checker or a checker
// error results in a skipped verdict, never a blocked submission.
type QualityChecker interface {
	Check(ctx context.Context, imageURL string) (*domain.QualityResult, error)
}

// Relocator copies finished provider content into durable storage.
type Relocator interface {
	Relocate(ctx context.Context, src relocation.Source, taskID, merchantID string, durationSeconds int) (*domain.GeneratedAsset, error)
}

// AssetURLResolver turns a storage key into the public URL handed to
// merchants.
type AssetURLResolver interface {
	PublicURL(key string) string
}

// Options wires a Service.
type Options struct {
	Tasks     domain.TaskRepository
	Ledger    domain.Ledger
	Providers map[domain.ProviderKind]video.Client
	Gate      QualityChecker
	Relocator Relocator
	URLs      AssetURLResolver
	Logger    infra.Logger
	Now       func() time.Time
}

// Service is the generation task state machine: it owns task identity,
// drives every status transition and is the single place terminal states
// are written.
type Service struct {
	tasks     domain.TaskRepository
	ledger    domain.Ledger
	providers map[domain.ProviderKind]video.Client
	gate      QualityChecker
	relocator Relocator
	urls      AssetURLResolver
	logger    infra.Logger
	now       func() time.Time
}

// NewService constructs the orchestrator with injected dependencies.
func NewService(opts Options) (*Service, error) {
	if opts.Tasks == nil || opts.Ledger == nil || opts.Relocator == nil || opts.URLs == nil {
		return nil, errors.New("generation: tasks, ledger, relocator and urls are required")
	}
	if len(opts.Providers) == 0 {
		return nil, errors.New("generation: at least one provider is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		tasks:     opts.Tasks,
		ledger:    opts.Ledger,
		providers: opts.Providers,
		gate:      opts.Gate,
		relocator: opts.Relocator,
		urls:      opts.URLs,
		logger:    opts.Logger,
		now:       now,
	}, nil
}

// SubmitCommand is a validated submission request.
type SubmitCommand struct {
	MerchantID       string
	SourceImageURL   string
	Prompt           string
	ProviderKind     domain.ProviderKind
	ModelVariant     string
	AspectRatio      string
	SkipQualityCheck bool
}

// SubmitResult reports an accepted (or quality-stopped) submission.
type SubmitResult struct {
	GenerationID     string
	ProviderTaskID   string
	EstimatedSeconds int
	Quality          *domain.QualityResult
}

// Submit runs the full submission pipeline: validate, quality-gate,
// debit, create the task and hand it to the provider. A provider
// rejection rolls the debit back synchronously before returning, so the
// merchant is never charged for a submission that never started.
func (s *Service) Submit(ctx context.Context, cmd SubmitCommand) (*SubmitResult, error) {
	if err := validateSubmit(&cmd); err != nil {
		return nil, err
	}
	provider, ok := s.providers[cmd.ProviderKind]
	if !ok {
		return nil, fmt.Errorf("%w: provider %q not configured", domain.ErrInvalidPrompt, cmd.ProviderKind)
	}

	qualityResult := s.runQualityGate(ctx, cmd)
	if qualityResult.Verdict == domain.QualityStop {
		// No credit has been touched yet; hand the verdict back so the
		// merchant sees why.
		return &SubmitResult{Quality: qualityResult}, domain.ErrQualityStop
	}

	taskID := uuid.NewString()
	if err := s.ledger.Debit(ctx, cmd.MerchantID, domain.GenerationCost, taskID); err != nil {
		return nil, err
	}

	task := &domain.GenerationTask{
		ID:              taskID,
		MerchantID:      cmd.MerchantID,
		ProviderKind:    cmd.ProviderKind,
		SourceImageURL:  cmd.SourceImageURL,
		Prompt:          cmd.Prompt,
		ModelVariant:    cmd.ModelVariant,
		AspectRatio:     cmd.AspectRatio,
		Status:          domain.TaskPending,
		QualityVerdict:  qualityResult.Verdict,
		QualityWarnings: qualityResult.Warnings,
		CreditsDebited:  domain.GenerationCost,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		// The task row never existed; undo the debit before failing.
		s.rollbackDebit(ctx, cmd.MerchantID, taskID)
		return nil, fmt.Errorf("create task: %w", err)
	}

	submission, err := provider.Submit(ctx, video.SubmitRequest{
		TaskID:      taskID,
		MerchantID:  cmd.MerchantID,
		ImageURL:    cmd.SourceImageURL,
		Prompt:      cmd.Prompt,
		Model:       cmd.ModelVariant,
		AspectRatio: cmd.AspectRatio,
	})
	if err != nil {
		s.failRejectedSubmission(ctx, task, err)
		if errors.Is(err, domain.ErrContentPolicy) {
			return nil, fmt.Errorf("%w: %s", domain.ErrContentPolicy, userFacingDetail(err))
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderRejected, userFacingDetail(err))
	}

	moved, err := s.tasks.MarkProcessing(ctx, taskID, submission.ProviderTaskID)
	if err != nil || !moved {
		s.logger.Error().Err(err).
			Str("task_id", taskID).
			Str("merchant_id", cmd.MerchantID).
			Msg("generation: pending->processing write failed")
		if err != nil {
			return nil, err
		}
		return nil, domain.ErrInvalidTransition
	}

	s.logger.Info().
		Str("task_id", taskID).
		Str("merchant_id", cmd.MerchantID).
		Str("provider_kind", string(cmd.ProviderKind)).
		Str("provider_task_id", submission.ProviderTaskID).
		Msg("generation: submitted")
	return &SubmitResult{
		GenerationID:     taskID,
		ProviderTaskID:   submission.ProviderTaskID,
		EstimatedSeconds: submission.EstimatedSeconds,
		Quality:          qualityResult,
	}, nil
}

func validateSubmit(cmd *SubmitCommand) error {
	if strings.TrimSpace(cmd.MerchantID) == "" {
		return domain.ErrUnauthorized
	}
	cmd.Prompt = strings.TrimSpace(cmd.Prompt)
	if cmd.Prompt == "" {
		return fmt.Errorf("%w: prompt is required", domain.ErrInvalidPrompt)
	}
	if len(cmd.Prompt) > MaxPromptLength {
		return fmt.Errorf("%w: prompt exceeds %d characters", domain.ErrInvalidPrompt, MaxPromptLength)
	}
	cmd.SourceImageURL = strings.TrimSpace(cmd.SourceImageURL)
	if cmd.SourceImageURL == "" {
		return fmt.Errorf("%w: source image is required", domain.ErrInvalidPrompt)
	}
	if parsed, err := url.Parse(cmd.SourceImageURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%w: source image reference is not a valid URL", domain.ErrInvalidPrompt)
	}
	if cmd.ProviderKind == "" {
		cmd.ProviderKind = domain.ProviderReferenceToVideo
	}
	if !cmd.ProviderKind.Valid() {
		return fmt.Errorf("%w: unsupported provider kind %q", domain.ErrInvalidPrompt, cmd.ProviderKind)
	}
	if cmd.AspectRatio == "" {
		cmd.AspectRatio = "16:9"
	}
	return nil
}

func (s *Service) runQualityGate(ctx context.Context, cmd SubmitCommand) *domain.QualityResult {
	if cmd.SkipQualityCheck || s.gate == nil {
		return &domain.QualityResult{Verdict: domain.QualitySkipped}
	}
	result, err := s.gate.Check(ctx, cmd.SourceImageURL)
	if err != nil {
		// Best-effort: the checker failing is never a reason to block.
		s.logger.Warn().Err(err).
			Str("merchant_id", cmd.MerchantID).
			Msg("generation: quality check errored, proceeding unchecked")
		return &domain.QualityResult{Verdict: domain.QualitySkipped}
	}
	return result
}

func (s *Service) failRejectedSubmission(ctx context.Context, task *domain.GenerationTask, cause error) {
	code := domain.ErrorCodeProviderRejected
	if errors.Is(cause, domain.ErrContentPolicy) {
		code = domain.ErrorCodeContentPolicy
	}
	if _, err := s.tasks.MarkFailed(ctx, task.ID, domain.TaskPending, code, userFacingDetail(cause)); err != nil {
		s.logger.Error().Err(err).
			Str("task_id", task.ID).
			Msg("generation: recording rejected submission failed")
	}
	s.rollbackDebit(ctx, task.MerchantID, task.ID)
}

func (s *Service) rollbackDebit(ctx context.Context, merchantID, taskID string) {
	if err := s.ledger.CreditBack(ctx, merchantID, domain.GenerationCost, taskID); err != nil {
		// The merchant would otherwise pay for nothing; this needs an
		// operator to reconcile, so log loudly.
		s.logger.Error().Err(err).
			Str("task_id", taskID).
			Str("merchant_id", merchantID).
			Msg("generation: debit rollback failed")
	}
}

// userFacingDetail strips wrap prefixes that mean nothing to merchants
// while keeping the provider's human-readable reason.
func userFacingDetail(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	msg = strings.TrimPrefix(msg, "video: ")
	if idx := strings.LastIndex(msg, ": "); idx > 0 {
		tail := msg[idx+2:]
		// Drop the trailing sentinel text added by %w wrapping.
		if tail == domain.ErrContentPolicy.Error() || tail == domain.ErrProviderRejected.Error() {
			msg = msg[:idx]
		}
	}
	return msg
}
