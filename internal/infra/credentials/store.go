// Package credentials persists provider API keys in the database so they
// can be rotated without redeploying. Environment variables still win
// when set; the store is the fallback.
package credentials

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	ProviderReference = "reference_video"
	ProviderUGC       = "ugc_video"
)

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db DB
}

func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Token returns the stored API key for a provider, or empty when none
// has been configured.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	const q = `SELECT token FROM integration_tokens WHERE provider = $1`
	var token string
	if err := s.db.QueryRow(ctx, q, provider).Scan(&token); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// SetToken stores or replaces the API key for a provider.
func (s *Store) SetToken(ctx context.Context, provider, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("credentials: token is required")
	}
	switch provider {
	case ProviderReference, ProviderUGC:
	default:
		return errors.New("credentials: unknown provider " + provider)
	}
	const q = `
		INSERT INTO integration_tokens (provider, token, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (provider) DO UPDATE
		SET token = EXCLUDED.token, updated_at = now()`
	_, err := s.db.Exec(ctx, q, provider, token)
	return err
}
