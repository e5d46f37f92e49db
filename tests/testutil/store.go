// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/nhle/memebox/internal/directus"
	"github.com/nhle/memebox/internal/directustest"
	"github.com/nhle/memebox/internal/model"
	"github.com/nhle/memebox/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// QuietLogger discards everything.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// SignedInClient returns a client for backend that acts as user, with a
// fresh access token per request.
func SignedInClient(t *testing.T, backend *directustest.Backend, user model.User) *directus.Client {
	t.Helper()

	client := directus.NewClient(backend.URL, directus.WithLogger(QuietLogger()))
	client.SetTokenSource(func(context.Context) (string, error) {
		tokens, err := backend.IssueTokens(user.ID)
		return tokens.AccessToken, err
	})
	return client
}
