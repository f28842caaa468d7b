package domain

import (
	"context"
	"time"
)

// CompletionResult carries the durable outcome written on the single
// Processing -> Completed transition.
type CompletionResult struct {
	AssetKey        string
	ThumbnailURL    string
	DurationSeconds int
	CompletedAt     time.Time
	ExpiresAt       time.Time
}

// TaskRepository defines persistence for generation tasks. The Mark*
// methods are conditional updates keyed on the expected prior status and
// report whether this caller won the transition, which is what makes
// concurrent polls safe.
type TaskRepository interface {
	Create(ctx context.Context, task *GenerationTask) error
	GetByID(ctx context.Context, id string) (*GenerationTask, error)
	GetForMerchant(ctx context.Context, id, merchantID string) (*GenerationTask, error)
	ListByMerchant(ctx context.Context, merchantID string, limit, offset int) ([]GenerationTask, error)
	MarkProcessing(ctx context.Context, id, providerTaskID string) (bool, error)
	MarkFailed(ctx context.Context, id string, from TaskStatus, code, message string) (bool, error)
	MarkCompleted(ctx context.Context, id string, result CompletionResult) (bool, error)
	StatsSummary(ctx context.Context) (*TaskStats, error)
}

// TaskStats aggregates lifetime generation outcomes.
type TaskStats struct {
	Total       int64
	Completed   int64
	Failed      int64
	Refunded    int64
	SuccessRate float64
}

// RefundOutcome reports the effect of a successful compensating refund.
type RefundOutcome struct {
	CreditsRefunded       int
	NewBalance            int
	RefundsRemainingToday int
}

// Ledger owns all credit account mutations. Debit and CreditBack are the
// atomic pair around provider submission; Refund is the merchant-facing
// compensating transaction and enforces the daily cap.
type Ledger interface {
	// Debit atomically checks and decrements the balance, returning
	// ErrInsufficientCredit when the account would overdraw.
	Debit(ctx context.Context, merchantID string, amount int, taskID string) error
	// CreditBack restores a debit after a rejected submission. It does not
	// count against the refund cap.
	CreditBack(ctx context.Context, merchantID string, amount int, taskID string) error
	// Refund atomically verifies task eligibility, enforces the daily cap,
	// restores the debited credits and flips the task to Refunded.
	Refund(ctx context.Context, merchantID, taskID string) (*RefundOutcome, error)
	// Account returns the current balance and refund window state. Unknown
	// merchants get a zero-balance account, not an error.
	Account(ctx context.Context, merchantID string) (*CreditAccount, error)
}

// AssetRepository handles persistence for relocated assets.
type AssetRepository interface {
	Save(ctx context.Context, asset *GeneratedAsset) error
	GetForMerchant(ctx context.Context, id, merchantID string) (*GeneratedAsset, error)
	ListByMerchant(ctx context.Context, merchantID string, limit, offset int) ([]GeneratedAsset, error)
}
