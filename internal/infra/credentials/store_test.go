package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubDB struct {
	token string
	err   error
	exec  struct {
		query string
		args  []any
	}
}

func (s *stubDB) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.exec.query = query
	s.exec.args = args
	return pgconn.CommandTag{}, s.err
}

func (s *stubDB) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return stubRow{token: s.token, err: s.err}
}

type stubRow struct {
	token string
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) == 0 {
		return errors.New("no dest")
	}
	ptr, ok := dest[0].(*string)
	if !ok {
		return errors.New("invalid dest")
	}
	*ptr = r.token
	return nil
}

func TestTokenTrimsWhitespace(t *testing.T) {
	store := NewStore(&stubDB{token: " abc123 "})
	key, err := store.Token(context.Background(), ProviderReference)
	if err != nil {
		t.Fatalf("Token error: %v", err)
	}
	if key != "abc123" {
		t.Fatalf("expected abc123, got %q", key)
	}
}

func TestTokenNoRows(t *testing.T) {
	store := NewStore(&stubDB{err: pgx.ErrNoRows})
	key, err := store.Token(context.Background(), ProviderUGC)
	if err != nil {
		t.Fatalf("Token error: %v", err)
	}
	if key != "" {
		t.Fatalf("expected empty key, got %q", key)
	}
}

func TestSetToken(t *testing.T) {
	db := &stubDB{}
	store := NewStore(db)
	if err := store.SetToken(context.Background(), ProviderReference, "secret"); err != nil {
		t.Fatalf("SetToken error: %v", err)
	}
	if len(db.exec.args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(db.exec.args))
	}
	if v, ok := db.exec.args[1].(string); !ok || v != "secret" {
		t.Fatalf("expected secret argument, got %T %v", db.exec.args[1], db.exec.args[1])
	}
}

func TestSetTokenEmpty(t *testing.T) {
	store := NewStore(&stubDB{})
	if err := store.SetToken(context.Background(), ProviderReference, " "); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestSetTokenUnknownProvider(t *testing.T) {
	store := NewStore(&stubDB{})
	if err := store.SetToken(context.Background(), "dalle", "secret"); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
