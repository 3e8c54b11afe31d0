// Package pool selects the set of items eligible for ranking at a given
// point in time.
package pool

import (
	"context"

	"github.com/social-protocols/rankers/internal/model"
	"github.com/social-protocols/rankers/internal/store"
)

// Select returns up to limit top-level items with CreatedAt <= at, newest
// first. It is a thin, named wrapper around the store so that sampler and
// ranker code reads as "select the pool" rather than a raw store call.
func Select(ctx context.Context, s store.Store, tx store.Tx, at int64, limit int) ([]model.PoolItem, error) {
	return s.PoolAt(ctx, tx, at, limit)
}

// IDs extracts the item IDs from a pool slice, the shape most store queries
// (current upvotes, sitewide counts) need.
func IDs(items []model.PoolItem) []int64 {
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ItemID
	}
	return ids
}
