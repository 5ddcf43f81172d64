// Package postgres provides a Postgres-backed store that mirrors the
// in-memory semantics, snapshotting state as JSONB after each mutation.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"haccpcore/internal/infra/persistence/memory"
	"haccpcore/pkg/domain"
)

var _ domain.Store = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/haccpcore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store wraps the in-memory implementation and snapshots to Postgres after
// every successful mutation.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back
// to defaultDSN), ensures the snapshot table exists, and hydrates the
// in-memory state from any existing snapshot.
func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("ensure state table: %w", err)
	}
	snap, err := loadSnapshot(ctx, db)
	if err != nil {
		return nil, err
	}
	mem := memory.NewStore()
	mem.ImportState(snap)
	return &Store{Store: mem, db: db}, nil
}

var buckets = []string{"drafts", "plans"}

func loadSnapshot(ctx context.Context, db *sql.DB) (memory.Snapshot, error) {
	rows, err := db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return memory.Snapshot{}, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var snap memory.Snapshot
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return memory.Snapshot{}, fmt.Errorf("scan state: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		switch bucket {
		case "drafts":
			if err := json.Unmarshal(payload, &snap.Drafts); err != nil {
				return memory.Snapshot{}, fmt.Errorf("decode drafts: %w", err)
			}
		case "plans":
			if err := json.Unmarshal(payload, &snap.Plans); err != nil {
				return memory.Snapshot{}, fmt.Errorf("decode plans: %w", err)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return memory.Snapshot{}, fmt.Errorf("iterate state: %w", err)
	}
	return snap, nil
}

func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.ExportState()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
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
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`, bucket, data); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// CreateDraft allocates a draft and snapshots state.
func (s *Store) CreateDraft(ctx context.Context) (domain.Draft, error) {
	draft, err := s.Store.CreateDraft(ctx)
	if err != nil {
		return draft, err
	}
	return draft, s.persist(ctx)
}

// PatchDraft applies the patch and snapshots state.
func (s *Store) PatchDraft(ctx context.Context, id string, patch domain.DraftPatch) error {
	if err := s.Store.PatchDraft(ctx, id, patch); err != nil {
		return err
	}
	return s.persist(ctx)
}

// AttachDraftToUser binds the draft and snapshots state.
func (s *Store) AttachDraftToUser(ctx context.Context, draftID, userID string) error {
	if err := s.Store.AttachDraftToUser(ctx, draftID, userID); err != nil {
		return err
	}
	return s.persist(ctx)
}

// SavePlan stores the plan and snapshots state.
func (s *Store) SavePlan(ctx context.Context, input domain.SavePlanInput) (domain.Plan, error) {
	plan, err := s.Store.SavePlan(ctx, input)
	if err != nil {
		return plan, err
	}
	return plan, s.persist(ctx)
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore
// function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
