package domain

import "time"

// DailyRefundCap limits compensating refunds per merchant per day window.
const DailyRefundCap = 3

// GenerationCost is the credit price of a single generation attempt.
const GenerationCost = 1

// CreditAccount tracks a merchant's prepaid balance. Balance never goes
// negative: a debit that would overdraw is rejected, not clamped.
type CreditAccount struct {
	MerchantID         string
	Balance            int
	RefundsIssuedToday int
	RefundWindowDate   time.Time
}

// RefundsRemainingToday returns how many refunds the merchant may still
// issue in the current window. A window recorded for an earlier day has
// rolled over, so the full cap is available again.
func (a CreditAccount) RefundsRemainingToday(now time.Time) int {
	if !sameDay(a.RefundWindowDate, now) {
		return DailyRefundCap
	}
	remaining := DailyRefundCap - a.RefundsIssuedToday
	if remaining < 0 {
		return 0
	}
	return remaining
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
