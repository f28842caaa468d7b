// Command creditgrant tops up a merchant's credit balance. Run by
// operators after a purchase settles:
//
//	creditgrant -merchant 7f9c... -credits 50
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	var (
		merchantFlag string
		creditsFlag  int
	)

	flag.StringVar(&merchantFlag, "merchant", "", "merchant ID to credit (UUID)")
	flag.IntVar(&creditsFlag, "credits", 0, "number of credits to add (must be positive)")
	flag.Parse()

	merchantID := strings.TrimSpace(merchantFlag)
	if merchantID == "" {
		exitWithError(errors.New("-merchant is required"))
	}
	if creditsFlag <= 0 {
		exitWithError(errors.New("-credits must be positive"))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	const q = `
		INSERT INTO credit_accounts (merchant_id, balance, refunds_issued_today, refund_window_date)
		VALUES ($1, $2, 0, CURRENT_DATE)
		ON CONFLICT (merchant_id) DO UPDATE
		SET balance = credit_accounts.balance + EXCLUDED.balance
		RETURNING balance`

	var balance int
	if err := pool.QueryRow(ctx, q, merchantID, creditsFlag).Scan(&balance); err != nil {
		exitWithError(fmt.Errorf("failed to grant credits: %w", err))
	}

	fmt.Printf("Merchant %s credited with %d, new balance %d\n", merchantID, creditsFlag, balance)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
