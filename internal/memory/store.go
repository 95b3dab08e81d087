package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// ProfileStore is the swappable long-term profile backend.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (Profile, error)
	Upsert(ctx context.Context, userID string, profile Profile) error
	Delete(ctx context.Context, userID string) error
}

// ─── In-memory implementation ─────────────────────────────────────────────────

// InMemoryProfileStore keeps profiles in a map. Used in tests and when no
// persistence is configured.
type InMemoryProfileStore struct {
	mu    sync.RWMutex
	store map[string]Profile
}

func NewInMemoryProfileStore() *InMemoryProfileStore {
	return &InMemoryProfileStore{store: make(map[string]Profile)}
}

func (s *InMemoryProfileStore) Get(_ context.Context, userID string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.store[userID]; ok {
		return p, nil
	}
	return DefaultProfile(), nil
}

func (s *InMemoryProfileStore) Upsert(_ context.Context, userID string, profile Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[userID] = profile
	return nil
}

func (s *InMemoryProfileStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.store, userID)
	return nil
}

// ─── Postgres implementation ──────────────────────────────────────────────────

const ensureProfileTableSQL = `
CREATE TABLE IF NOT EXISTS user_profiles (
    user_id    TEXT PRIMARY KEY,
    profile    JSONB NOT NULL DEFAULT '{}'::jsonb,
    updated_at TIMESTAMPTZ DEFAULT now()
)`

const upsertProfileSQL = `
INSERT INTO user_profiles (user_id, profile, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (user_id)
DO UPDATE SET profile = $2, updated_at = now()`

const selectProfileSQL = `SELECT profile FROM user_profiles WHERE user_id = $1`

const deleteProfileSQL = `DELETE FROM user_profiles WHERE user_id = $1`

// PostgresProfileStore persists profiles as JSONB rows.
type PostgresProfileStore struct {
	pool *pgxpool.Pool
}

// NewPostgresProfileStore ensures the backing table exists and returns the
// store.
func NewPostgresProfileStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresProfileStore, error) {
	if _, err := pool.Exec(ctx, ensureProfileTableSQL); err != nil {
		return nil, fmt.Errorf("ensure user_profiles table: %w", err)
	}
	log.Debug().Msg("user_profiles table ensured")
	return &PostgresProfileStore{pool: pool}, nil
}

// Get returns the stored profile merged over the default skeleton so new
// fields are always present.
func (s *PostgresProfileStore) Get(ctx context.Context, userID string) (Profile, error) {
	profile := DefaultProfile()

	var raw []byte
	err := s.pool.QueryRow(ctx, selectProfileSQL, userID).Scan(&raw)
	if err == pgx.ErrNoRows {
		return profile, nil
	}
	if err != nil {
		return profile, fmt.Errorf("select profile: %w", err)
	}
	if err := json.Unmarshal(raw, &profile); err != nil {
		return DefaultProfile(), fmt.Errorf("decode profile: %w", err)
	}
	return profile, nil
}

func (s *PostgresProfileStore) Upsert(ctx context.Context, userID string, profile Profile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if _, err := s.pool.Exec(ctx, upsertProfileSQL, userID, raw); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (s *PostgresProfileStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, deleteProfileSQL, userID); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}
