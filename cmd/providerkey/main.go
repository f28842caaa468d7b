// Command providerkey stores a video provider API key in the database so
// the API picks it up without a redeploy:
//
//	providerkey -provider reference -key sk-...
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

	"server/internal/infra/credentials"
)

func main() {
	var (
		providerFlag string
		keyFlag      string
	)

	flag.StringVar(&providerFlag, "provider", "", "provider to configure (reference or ugc)")
	flag.StringVar(&keyFlag, "key", "", "API key to store")
	flag.Parse()

	var provider string
	switch strings.TrimSpace(strings.ToLower(providerFlag)) {
	case "reference":
		provider = credentials.ProviderReference
	case "ugc":
		provider = credentials.ProviderUGC
	default:
		exitWithError(errors.New("-provider must be reference or ugc"))
	}

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		exitWithError(errors.New("-key is required"))
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

	store := credentials.NewStore(pool)
	if err := store.SetToken(ctx, provider, key); err != nil {
		exitWithError(fmt.Errorf("failed to store key: %w", err))
	}

	fmt.Printf("Stored API key for %s\n", provider)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
