package domain

import "time"

// ProviderKind identifies which third-party synthesis service owns a task.
type ProviderKind string

const (
	// ProviderReferenceToVideo produces 360-style product videos from a
	// single reference image.
	ProviderReferenceToVideo ProviderKind = "reference_to_video"
	// ProviderTextToVideoUGC produces UGC-style clips from a prompt plus
	// image references. Finished content may arrive inline rather than as
	// a fetchable URL.
	ProviderTextToVideoUGC ProviderKind = "text_to_video_ugc"
)

// Valid reports whether the kind is one of the supported providers.
func (k ProviderKind) Valid() bool {
	switch k {
	case ProviderReferenceToVideo, ProviderTextToVideoUGC:
		return true
	}
	return false
}

// TaskStatus enumerates generation task lifecycle states.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskRefunded   TaskStatus = "refunded"
)

// Terminal reports whether no further automatic transition occurs from s.
// Completed and Failed still admit the manual refund edge.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskRefunded:
		return true
	}
	return false
}

// CanTransition reports whether moving a task from one status to another is
// a legal edge of the lifecycle. Every status write goes through a
// conditional update keyed on the expected prior status, so an illegal edge
// is rejected here and again at the database.
func CanTransition(from, to TaskStatus) bool {
	switch from {
	case TaskPending:
		return to == TaskProcessing || to == TaskFailed
	case TaskProcessing:
		return to == TaskCompleted || to == TaskFailed
	case TaskCompleted, TaskFailed:
		return to == TaskRefunded
	default:
		return false
	}
}

// GenerationTask is the persistent record of one video generation attempt.
// CreditsDebited is set at creation and is exactly what a later refund
// restores; a synchronous rollback after a rejected submission zeroes it,
// which makes the row ineligible for refund. FinalAssetKey is set if and
// only if the task is Completed.
type GenerationTask struct {
	ID              string
	MerchantID      string
	ProviderKind    ProviderKind
	SourceImageURL  string
	Prompt          string
	ModelVariant    string
	AspectRatio     string
	ProviderTaskID  string
	Status          TaskStatus
	QualityVerdict  QualityVerdict
	QualityWarnings []string
	CreditsDebited  int
	FinalAssetKey   string
	ThumbnailURL    string
	DurationSeconds int
	ErrorCode       string
	ErrorMessage    string
	CreatedAt       time.Time
	CompletedAt     *time.Time
	ExpiresAt       *time.Time
}

// Error codes recorded on failed tasks.
const (
	ErrorCodeProviderRejected = "provider_rejected"
	ErrorCodeProviderFailed   = "provider_failed"
	ErrorCodeContentPolicy    = "content_policy"
	ErrorCodeStorageFailed    = "storage_failed"
)
