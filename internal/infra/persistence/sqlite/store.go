// Package sqlite persists the in-memory store state to a single SQLite
// table as JSON snapshots. Suited to single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"haccpcore/internal/infra/persistence/memory"
	"haccpcore/pkg/domain"
)

var _ domain.Store = (*Store)(nil)

// Store wraps the in-memory implementation and snapshots the full state
// after every successful mutation.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (or creates) the database file at path and hydrates the
// in-memory state from any existing snapshot. An empty path defaults to
// haccpcore.db in the working directory.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "haccpcore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(), db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

var buckets = []string{"drafts", "plans"}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var snap memory.Snapshot
	found := false
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan state: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		switch bucket {
		case "drafts":
			if err := json.Unmarshal(payload, &snap.Drafts); err != nil {
				return fmt.Errorf("decode drafts: %w", err)
			}
			found = true
		case "plans":
			if err := json.Unmarshal(payload, &snap.Plans); err != nil {
				return fmt.Errorf("decode plans: %w", err)
			}
			found = true
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	if found {
		s.ImportState(snap)
	}
	return nil
}

func (s *Store) persist() (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.ExportState()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range buckets {
		var data []byte
		switch bucket {
		case "drafts":
			data, err = json.Marshal(snap.Drafts)
		case "plans":
			data, err = json.Marshal(snap.Plans)
		}
		if err != nil {
			retErr = err
			return retErr
		}
		if _, err = tx.Exec(`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", bucket, err)
			return retErr
		}
	}
	return tx.Commit()
}

// CreateDraft allocates a draft and snapshots state.
func (s *Store) CreateDraft(ctx context.Context) (domain.Draft, error) {
	draft, err := s.Store.CreateDraft(ctx)
	if err != nil {
		return draft, err
	}
	return draft, s.persist()
}

// PatchDraft applies the patch and snapshots state.
func (s *Store) PatchDraft(ctx context.Context, id string, patch domain.DraftPatch) error {
	if err := s.Store.PatchDraft(ctx, id, patch); err != nil {
		return err
	}
	return s.persist()
}

// AttachDraftToUser binds the draft and snapshots state.
func (s *Store) AttachDraftToUser(ctx context.Context, draftID, userID string) error {
	if err := s.Store.AttachDraftToUser(ctx, draftID, userID); err != nil {
		return err
	}
	return s.persist()
}

// SavePlan stores the plan and snapshots state.
func (s *Store) SavePlan(ctx context.Context, input domain.SavePlanInput) (domain.Plan, error) {
	plan, err := s.Store.SavePlan(ctx, input)
	if err != nil {
		return plan, err
	}
	return plan, s.persist()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close flushes nothing (state is already durable) and closes the database.
func (s *Store) Close() error { return s.db.Close() }
