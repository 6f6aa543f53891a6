// Package store persists agent settings in the local sqlite database.
package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"

	"github.com/google/uuid"
)

const (
	KeyClientID  = "client_id"
	KeyAuthToken = "auth_token"
)

type Repository interface {
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	return err
}

// EnsureClientID returns the persisted client id, creating one on first run.
// The id is sent to the backend with every request.
func EnsureClientID(ctx context.Context, repo Repository) (string, error) {
	existing, err := repo.GetConfig(ctx, KeyClientID)
	if err == nil && existing != "" {
		return existing, nil
	}

	id := uuid.NewString()
	if err := repo.SetConfig(ctx, KeyClientID, id); err != nil {
		return "", err
	}
	return id, nil
}

// EnsureAuthToken returns the bearer token guarding the local control server.
func EnsureAuthToken(ctx context.Context, repo Repository) (string, error) {
	existing, err := repo.GetConfig(ctx, KeyAuthToken)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, KeyAuthToken, token); err != nil {
		return "", err
	}
	return token, nil
}
