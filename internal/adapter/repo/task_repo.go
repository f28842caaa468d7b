package repo

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// TaskRepositoryPG implements domain.TaskRepository.
type TaskRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewTaskRepository creates a task repository backed by PostgreSQL.
func NewTaskRepository(pool *pgxpool.Pool) *TaskRepositoryPG {
	return &TaskRepositoryPG{pool: pool}
}

const taskColumns = `
id, merchant_id, provider_kind, source_image_url, prompt, model_variant,
aspect_ratio, provider_task_id, status, quality_verdict, quality_warnings,
credits_debited, final_asset_key, thumbnail_url, duration_seconds,
error_code, error_message, created_at, completed_at, expires_at
`

// Create inserts a new task record.
func (r *TaskRepositoryPG) Create(ctx context.Context, task *domain.GenerationTask) error {
	warnings, err := marshalWarnings(task.QualityWarnings)
	if err != nil {
		return err
	}
	query := `
INSERT INTO generation_tasks (
  id, merchant_id, provider_kind, source_image_url, prompt, model_variant,
  aspect_ratio, status, quality_verdict, quality_warnings, credits_debited
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
`
	_, err = r.pool.Exec(ctx, query,
		task.ID,
		task.MerchantID,
		task.ProviderKind,
		task.SourceImageURL,
		task.Prompt,
		task.ModelVariant,
		task.AspectRatio,
		task.Status,
		nullableString(string(task.QualityVerdict)),
		warnings,
		task.CreditsDebited,
	)
	return err
}

// GetByID fetches a task by its identifier.
func (r *TaskRepositoryPG) GetByID(ctx context.Context, id string) (*domain.GenerationTask, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM generation_tasks WHERE id = $1;`, id)
	return scanTask(row)
}

// GetForMerchant fetches a task scoped to its owning merchant.
func (r *TaskRepositoryPG) GetForMerchant(ctx context.Context, id, merchantID string) (*domain.GenerationTask, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM generation_tasks WHERE id = $1 AND merchant_id = $2;`,
		id, merchantID)
	return scanTask(row)
}

// ListByMerchant returns the merchant's tasks, newest first.
func (r *TaskRepositoryPG) ListByMerchant(ctx context.Context, merchantID string, limit, offset int) ([]domain.GenerationTask, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
SELECT `+taskColumns+`
FROM generation_tasks
WHERE merchant_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3;
`, merchantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.GenerationTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

// MarkProcessing performs the Pending -> Processing transition, recording
// the provider's task identifier. Returns false when the task was not in
// Pending, which means another writer already moved it.
func (r *TaskRepositoryPG) MarkProcessing(ctx context.Context, id, providerTaskID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE generation_tasks
SET status = $3, provider_task_id = $4
WHERE id = $1 AND status = $2;
`, id, domain.TaskPending, domain.TaskProcessing, providerTaskID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkFailed performs a conditional transition into Failed from the given
// prior status.
func (r *TaskRepositoryPG) MarkFailed(ctx context.Context, id string, from domain.TaskStatus, code, message string) (bool, error) {
	if !domain.CanTransition(from, domain.TaskFailed) {
		return false, domain.ErrInvalidTransition
	}
	tag, err := r.pool.Exec(ctx, `
UPDATE generation_tasks
SET status = $3, error_code = $4, error_message = $5, completed_at = now()
WHERE id = $1 AND status = $2;
`, id, from, domain.TaskFailed, code, message)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkCompleted performs the guarded Processing -> Completed transition.
// The durable asset reference must already exist; this is the only write
// that makes a task observable as Completed.
func (r *TaskRepositoryPG) MarkCompleted(ctx context.Context, id string, result domain.CompletionResult) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE generation_tasks
SET status = $3,
    final_asset_key = $4,
    thumbnail_url = $5,
    duration_seconds = $6,
    completed_at = $7,
    expires_at = $8
WHERE id = $1 AND status = $2;
`, id, domain.TaskProcessing, domain.TaskCompleted,
		result.AssetKey, nullableString(result.ThumbnailURL), result.DurationSeconds,
		result.CompletedAt, result.ExpiresAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// StatsSummary aggregates lifetime generation outcomes.
func (r *TaskRepositoryPG) StatsSummary(ctx context.Context) (*domain.TaskStats, error) {
	row := r.pool.QueryRow(ctx, `
WITH agg AS (
  SELECT
    count(*) AS total,
    count(*) FILTER (WHERE status = 'completed') AS completed,
    count(*) FILTER (WHERE status = 'failed') AS failed,
    count(*) FILTER (WHERE status = 'refunded') AS refunded
  FROM generation_tasks
)
SELECT total, completed, failed, refunded,
       COALESCE(ROUND(100.0 * completed / NULLIF(total, 0), 2), 0) AS success_rate
FROM agg;
`)
	var stats domain.TaskStats
	if err := row.Scan(&stats.Total, &stats.Completed, &stats.Failed, &stats.Refunded, &stats.SuccessRate); err != nil {
		return nil, err
	}
	return &stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.GenerationTask, error) {
	var task domain.GenerationTask
	var providerTaskID, verdict, assetKey, thumbnail, errCode, errMsg *string
	var warnings []byte
	var duration *int
	if err := row.Scan(
		&task.ID,
		&task.MerchantID,
		&task.ProviderKind,
		&task.SourceImageURL,
		&task.Prompt,
		&task.ModelVariant,
		&task.AspectRatio,
		&providerTaskID,
		&task.Status,
		&verdict,
		&warnings,
		&task.CreditsDebited,
		&assetKey,
		&thumbnail,
		&duration,
		&errCode,
		&errMsg,
		&task.CreatedAt,
		&task.CompletedAt,
		&task.ExpiresAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	task.ProviderTaskID = deref(providerTaskID)
	task.QualityVerdict = domain.QualityVerdict(deref(verdict))
	task.FinalAssetKey = deref(assetKey)
	task.ThumbnailURL = deref(thumbnail)
	task.ErrorCode = deref(errCode)
	task.ErrorMessage = deref(errMsg)
	if duration != nil {
		task.DurationSeconds = *duration
	}
	if len(warnings) > 0 {
		if err := json.Unmarshal(warnings, &task.QualityWarnings); err != nil {
			return nil, err
		}
	}
	return &task, nil
}

func marshalWarnings(warnings []string) ([]byte, error) {
	if len(warnings) == 0 {
		return nil, nil
	}
	return json.Marshal(warnings)
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
