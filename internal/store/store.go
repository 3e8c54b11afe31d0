// Package store defines the transactional persistence port used by the
// ingest, sampler and ranker components, plus a Postgres-backed
// implementation.
package store

import (
	"context"
	"errors"

	"github.com/social-protocols/rankers/internal/model"
)

// Sentinel errors the caller layers (internal/api, internal/sampler)
// switch on to decide status codes / retry behavior. Concrete
// implementations wrap the underlying driver error with %w around one of
// these.
var (
	// ErrConflict marks a duplicate-key or foreign-key violation on
	// ingest: a 4xx condition, never retried, never logged as an error.
	ErrConflict = errors.New("store: conflict")

	// ErrTransient marks a retryable failure (serialization conflict,
	// deadlock, connection reset). Safe to retry the whole transaction.
	ErrTransient = errors.New("store: transient failure")

	// ErrNotFound marks the absence of an expected row (e.g. no sample
	// interval yet).
	ErrNotFound = errors.New("store: not found")
)

// Tx is an open transaction. Every method on Store that mutates state
// requires one; read-only ranking queries may also run inside a Tx to get
// a consistent snapshot.
type Tx interface {
	Commit() error
	Rollback() error
}

// Store is the persistence port. All methods that accept a Tx participate
// in that transaction; passing a nil Tx is not supported — callers always
// open one via Begin first.
type Store interface {
	Begin(ctx context.Context) (Tx, error)

	InsertItem(ctx context.Context, tx Tx, item model.Item) error
	InsertVoteEvent(ctx context.Context, tx Tx, ev model.VoteEvent) error

	// HasAnyItem reports whether at least one item has ever been
	// ingested; the sampler no-ops until this is true.
	HasAnyItem(ctx context.Context, tx Tx) (bool, error)

	// PoolAt returns up to limit top-level items with CreatedAt <= at,
	// newest first, ties broken by ItemID descending.
	PoolAt(ctx context.Context, tx Tx, at int64, limit int) ([]model.PoolItem, error)

	// ItemsByIDs returns the items with the given IDs, regardless of
	// whether they are still within the current ranking pool — used by
	// the Quality News read path to recover submission times for items
	// whose stats were recorded while they were still in the pool.
	ItemsByIDs(ctx context.Context, tx Tx, ids []int64) ([]model.Item, error)

	// LatestInterval returns the most recently opened interval, or
	// ErrNotFound if sampling has never been initialized.
	LatestInterval(ctx context.Context, tx Tx) (model.SampleInterval, error)

	// LatestClosedInterval returns the most recent interval, other than the
	// latest (still open) one, that has at least one stats row, or
	// ErrNotFound if none has ever closed.
	LatestClosedInterval(ctx context.Context, tx Tx) (model.SampleInterval, error)

	InsertInterval(ctx context.Context, tx Tx, interval model.SampleInterval) error

	// UpsertStats writes or overwrites the stats row for (ItemID,
	// IntervalID) — see DESIGN.md on why this must be an upsert rather
	// than a plain insert.
	UpsertStats(ctx context.Context, tx Tx, s model.StatsSample) error

	// StatsForInterval returns every stats row recorded for an interval.
	StatsForInterval(ctx context.Context, tx Tx, intervalID int64) ([]model.StatsSample, error)

	// LatestStatsFor returns the most recent stats row for the item, or
	// ErrNotFound if the item has never been sampled.
	LatestStatsFor(ctx context.Context, tx Tx, itemID int64) (model.StatsSample, error)

	UpsertRank(ctx context.Context, tx Tx, r model.RankAssignment) error

	// RanksForInterval returns every rank assignment recorded for an
	// interval, the input the expected-share estimator consumes.
	RanksForInterval(ctx context.Context, tx Tx, intervalID int64) ([]model.RankAssignment, error)

	// CurrentUpvoteCount returns, per item, the number of users whose
	// *derived* (latest-vote-wins) current vote is +1, as of time at.
	// Items with no such user are absent from the map.
	CurrentUpvoteCount(ctx context.Context, tx Tx, itemIDs []int64, at int64) (map[int64]int64, error)

	// SitewidePositiveVotes returns the literal count of vote=+1
	// VoteEvent rows on the given items with since < CreatedAt <= at.
	SitewidePositiveVotes(ctx context.Context, tx Tx, itemIDs []int64, since, at int64) (int64, error)
}
