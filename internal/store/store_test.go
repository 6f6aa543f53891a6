package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mediabatch/mediabatch-agent/internal/db"
)

func setupRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	return NewRepository(database.Conn())
}

func TestGetConfig_Missing(t *testing.T) {
	repo := setupRepo(t)

	value, err := repo.GetConfig(context.Background(), "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "" {
		t.Errorf("value = %q, want empty", value)
	}
}

func TestSetConfig_Upserts(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	if err := repo.SetConfig(ctx, "k", "v1"); err != nil {
		t.Fatalf("first set: %v", err)
	}
	if err := repo.SetConfig(ctx, "k", "v2"); err != nil {
		t.Fatalf("second set: %v", err)
	}

	value, err := repo.GetConfig(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if value != "v2" {
		t.Errorf("value = %q, want v2", value)
	}
}

func TestEnsureClientID_Stable(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	first, err := EnsureClientID(ctx, repo)
	if err != nil {
		t.Fatalf("EnsureClientID: %v", err)
	}
	if len(first) != 36 {
		t.Errorf("client id = %q, want uuid", first)
	}

	second, err := EnsureClientID(ctx, repo)
	if err != nil {
		t.Fatalf("EnsureClientID again: %v", err)
	}
	if first != second {
		t.Errorf("client id changed: %q -> %q", first, second)
	}
}

func TestEnsureAuthToken_Stable(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	first, err := EnsureAuthToken(ctx, repo)
	if err != nil {
		t.Fatalf("EnsureAuthToken: %v", err)
	}
	if len(first) != 64 {
		t.Errorf("token length = %d, want 64", len(first))
	}

	second, _ := EnsureAuthToken(ctx, repo)
	if first != second {
		t.Error("auth token should persist across calls")
	}
}
