package journal

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the journal store
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

// EnsureSchema creates the journal table if it does not exist.
func (s *pgStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*EntryDao)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create journal table: %w", err)
	}
	return nil
}

func (s *pgStore) Record(ctx context.Context, entry *Entry) error {
	dao := toEntryDao(entry)

	_, err := s.db.NewInsert().
		Model(dao).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record journal entry: %w", err)
	}

	return nil
}

// ListOrphaned returns runs that stored content but never produced a
// receipt. These content addresses exist in the store with no ledger record
// pointing at them; reconciliation is a manual operator task.
func (s *pgStore) ListOrphaned(ctx context.Context) ([]*Entry, error) {
	var daos []EntryDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("content_address IS NOT NULL").
		Where("tx_hash IS NULL").
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orphaned entries: %w", err)
	}

	entries := make([]*Entry, len(daos))
	for i := range daos {
		entries[i] = toEntry(&daos[i])
	}
	return entries, nil
}
