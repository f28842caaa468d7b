package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
	"server/internal/infra"
)

// LedgerRepositoryPG implements domain.Ledger. All balance math happens in
// single conditional statements so concurrent submissions from the same
// merchant cannot both spend the last credit.
type LedgerRepositoryPG struct {
	pool   *pgxpool.Pool
	logger infra.Logger
}

// NewLedgerRepository creates a ledger backed by PostgreSQL.
func NewLedgerRepository(pool *pgxpool.Pool, logger infra.Logger) *LedgerRepositoryPG {
	return &LedgerRepositoryPG{pool: pool, logger: logger}
}

// Debit atomically checks and decrements the balance. The conditional
// update is the entire race guard: RowsAffected tells us whether the
// account had enough credit at the moment of the write.
func (r *LedgerRepositoryPG) Debit(ctx context.Context, merchantID string, amount int, taskID string) error {
	if amount < 0 {
		return fmt.Errorf("ledger: negative debit amount %d", amount)
	}
	tag, err := r.pool.Exec(ctx, `
UPDATE credit_accounts
SET balance = balance - $2
WHERE merchant_id = $1 AND balance >= $2;
`, merchantID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientCredit
	}
	r.logger.Info().
		Str("merchant_id", merchantID).
		Str("task_id", taskID).
		Int("amount", amount).
		Msg("ledger: debit")
	return nil
}

// CreditBack restores a debit after a rejected provider submission. It is
// the synchronous rollback half of Debit and never touches the refund
// counter. Zeroing credits_debited on the task in the same transaction is
// what keeps the rolled-back attempt out of Refund's eligibility check, so
// the same attempt can never be compensated twice.
func (r *LedgerRepositoryPG) CreditBack(ctx context.Context, merchantID string, amount int, taskID string) error {
	if amount < 0 {
		return fmt.Errorf("ledger: negative credit amount %d", amount)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
UPDATE credit_accounts
SET balance = balance + $2
WHERE merchant_id = $1;
`, merchantID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ledger: credit back for unknown account %s", merchantID)
	}
	if _, err := tx.Exec(ctx, `
UPDATE generation_tasks
SET credits_debited = 0
WHERE id = $1 AND merchant_id = $2;
`, taskID, merchantID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	r.logger.Info().
		Str("merchant_id", merchantID).
		Str("task_id", taskID).
		Int("amount", amount).
		Msg("ledger: rollback credit")
	return nil
}

// Refund is the compensating transaction: verify the task is refund
// eligible, enforce the daily cap, restore the debited credits and flip
// the task to Refunded, all inside one transaction.
func (r *LedgerRepositoryPG) Refund(ctx context.Context, merchantID, taskID string) (*domain.RefundOutcome, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var status domain.TaskStatus
	var creditsDebited int
	row := tx.QueryRow(ctx, `
SELECT status, credits_debited
FROM generation_tasks
WHERE id = $1 AND merchant_id = $2
FOR UPDATE;
`, taskID, merchantID)
	if err := row.Scan(&status, &creditsDebited); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	switch {
	case status == domain.TaskRefunded:
		return nil, domain.ErrAlreadyRefunded
	case !domain.CanTransition(status, domain.TaskRefunded):
		return nil, domain.ErrNotRefundable
	case creditsDebited == 0:
		// Rejected submissions are credited back synchronously and have
		// their debit zeroed; nothing is left to compensate.
		return nil, domain.ErrNotRefundable
	}

	// Roll the day window before applying the cap so yesterday's refunds
	// never count against today.
	if _, err := tx.Exec(ctx, `
UPDATE credit_accounts
SET refunds_issued_today = CASE WHEN refund_window_date = CURRENT_DATE THEN refunds_issued_today ELSE 0 END,
    refund_window_date = CURRENT_DATE
WHERE merchant_id = $1;
`, merchantID); err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx, `
UPDATE credit_accounts
SET balance = balance + $2,
    refunds_issued_today = refunds_issued_today + 1
WHERE merchant_id = $1 AND refunds_issued_today < $3;
`, merchantID, creditsDebited, domain.DailyRefundCap)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrDailyRefundCap
	}

	tag, err = tx.Exec(ctx, `
UPDATE generation_tasks
SET status = $3
WHERE id = $1 AND merchant_id = $2 AND status IN ('completed', 'failed');
`, taskID, merchantID, domain.TaskRefunded)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		// The row lock above makes this unreachable in practice.
		return nil, domain.ErrNotRefundable
	}

	var balance, issuedToday int
	row = tx.QueryRow(ctx, `
SELECT balance, refunds_issued_today
FROM credit_accounts
WHERE merchant_id = $1;
`, merchantID)
	if err := row.Scan(&balance, &issuedToday); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	remaining := domain.DailyRefundCap - issuedToday
	if remaining < 0 {
		remaining = 0
	}
	r.logger.Info().
		Str("merchant_id", merchantID).
		Str("task_id", taskID).
		Int("amount", creditsDebited).
		Int("refunds_remaining_today", remaining).
		Msg("ledger: refund")
	return &domain.RefundOutcome{
		CreditsRefunded:       creditsDebited,
		NewBalance:            balance,
		RefundsRemainingToday: remaining,
	}, nil
}

// Account returns the current balance and refund window state. Merchants
// without an account row have an implicit zero balance.
func (r *LedgerRepositoryPG) Account(ctx context.Context, merchantID string) (*domain.CreditAccount, error) {
	row := r.pool.QueryRow(ctx, `
SELECT merchant_id, balance, refunds_issued_today, refund_window_date
FROM credit_accounts
WHERE merchant_id = $1;
`, merchantID)
	var account domain.CreditAccount
	if err := row.Scan(&account.MerchantID, &account.Balance, &account.RefundsIssuedToday, &account.RefundWindowDate); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.CreditAccount{MerchantID: merchantID}, nil
		}
		return nil, err
	}
	return &account, nil
}

var _ domain.Ledger = (*LedgerRepositoryPG)(nil)
