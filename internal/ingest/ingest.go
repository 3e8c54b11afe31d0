// Package ingest implements the two write paths into the ranking engine:
// registering items and registering vote events. Both are thin,
// single-transaction wrappers around the store; all identifiers are
// caller-supplied (no server-side ID generation), so a duplicate post is
// simply a conflict, not a new row.
package ingest

import (
	"context"
	"fmt"

	"github.com/social-protocols/rankers/internal/model"
	"github.com/social-protocols/rankers/internal/store"
)

// Ingest appends items and vote events to the store.
type Ingest struct {
	Store store.Store
}

// RegisterItem appends a new item. Returns store.ErrConflict if the
// item_id already exists or if parent_id does not reference an existing
// item.
func (i *Ingest) RegisterItem(ctx context.Context, item model.Item) error {
	tx, err := i.Store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning item insert: %w", err)
	}
	if err := i.Store.InsertItem(ctx, tx, item); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing item insert: %w", err)
	}
	return nil
}

// RegisterVoteEvent appends a new vote event. Returns store.ErrConflict if
// the vote_event_id already exists or item_id does not reference an
// existing item. It performs no aggregation itself — folding repeated
// votes from the same user into a "current" vote is the sampler's job at
// read time, not the ingest path's.
func (i *Ingest) RegisterVoteEvent(ctx context.Context, ev model.VoteEvent) error {
	tx, err := i.Store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning vote event insert: %w", err)
	}
	if err := i.Store.InsertVoteEvent(ctx, tx, ev); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing vote event insert: %w", err)
	}
	return nil
}
