package domain

import "time"

// GeneratedAsset is a finished video relocated into durable, merchant-scoped
// storage. The storage key is the canonical reference; provider URLs are
// never persisted as final state.
type GeneratedAsset struct {
	ID              string
	TaskID          string
	MerchantID      string
	StorageKey      string
	MIME            string
	Bytes           int64
	DurationSeconds int
	ExpiresAt       time.Time
	CreatedAt       time.Time
}

// DaysUntilExpiry returns the whole days remaining before the stored bytes
// are eligible for reaping. Expired assets report zero, never negative.
func (a GeneratedAsset) DaysUntilExpiry(now time.Time) int {
	if a.ExpiresAt.IsZero() {
		return 0
	}
	remaining := a.ExpiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(remaining.Hours() / 24)
}
