package store

import (
	"context"
	"sort"
	"sync"

	"github.com/social-protocols/rankers/internal/model"
)

// Fake is an in-memory Store used by component tests, mirroring the
// teacher's pattern of testing business logic against an interface-shaped
// fake (e.g. its fake ProducerMulti/KafkaConsumer) instead of a live
// database.
type Fake struct {
	mu        sync.Mutex
	items     map[int64]model.Item
	votes     []model.VoteEvent
	intervals []model.SampleInterval
	ranks     map[[2]int64]model.RankAssignment
	stats     map[[2]int64]model.StatsSample
}

// NewFake returns an empty in-memory store.
func NewFake() *Fake {
	return &Fake{
		items: make(map[int64]model.Item),
		ranks: make(map[[2]int64]model.RankAssignment),
		stats: make(map[[2]int64]model.StatsSample),
	}
}

type fakeTx struct{ f *Fake }

// Commit and Rollback both release the Fake's mutex; a Fake transaction has
// no partial-rollback semantics (mutations are applied eagerly), which is
// sufficient for the unit tests exercising this fake — they assert on
// outcomes, not on rollback-path visibility.
func (t *fakeTx) Commit() error   { t.f.mu.Unlock(); return nil }
func (t *fakeTx) Rollback() error { t.f.mu.Unlock(); return nil }

// Begin takes the Fake's single mutex for the lifetime of the transaction,
// giving the same serialize-everything semantics a real SERIALIZABLE
// transaction provides for a single-writer test.
func (f *Fake) Begin(ctx context.Context) (Tx, error) {
	f.mu.Lock()
	return &fakeTx{f: f}, nil
}

func (f *Fake) InsertItem(ctx context.Context, tx Tx, item model.Item) error {
	if _, exists := f.items[item.ItemID]; exists {
		return ErrConflict
	}
	if item.ParentID != nil {
		if _, ok := f.items[*item.ParentID]; !ok {
			return ErrConflict
		}
	}
	f.items[item.ItemID] = item
	return nil
}

func (f *Fake) InsertVoteEvent(ctx context.Context, tx Tx, ev model.VoteEvent) error {
	for _, v := range f.votes {
		if v.VoteEventID == ev.VoteEventID {
			return ErrConflict
		}
	}
	if _, ok := f.items[ev.ItemID]; !ok {
		return ErrConflict
	}
	f.votes = append(f.votes, ev)
	return nil
}

func (f *Fake) HasAnyItem(ctx context.Context, tx Tx) (bool, error) {
	return len(f.items) > 0, nil
}

func (f *Fake) PoolAt(ctx context.Context, tx Tx, at int64, limit int) ([]model.PoolItem, error) {
	var pool []model.PoolItem
	for _, it := range f.items {
		if it.ParentID == nil && it.CreatedAt <= at {
			pool = append(pool, model.PoolItem{Item: it, SubmissionTime: it.CreatedAt})
		}
	}
	sort.Slice(pool, func(i, j int) bool {
		if pool[i].CreatedAt != pool[j].CreatedAt {
			return pool[i].CreatedAt > pool[j].CreatedAt
		}
		return pool[i].ItemID > pool[j].ItemID
	})
	if len(pool) > limit {
		pool = pool[:limit]
	}
	return pool, nil
}

func (f *Fake) ItemsByIDs(ctx context.Context, tx Tx, ids []int64) ([]model.Item, error) {
	out := make([]model.Item, 0, len(ids))
	for _, id := range ids {
		if it, ok := f.items[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *Fake) LatestInterval(ctx context.Context, tx Tx) (model.SampleInterval, error) {
	if len(f.intervals) == 0 {
		return model.SampleInterval{}, ErrNotFound
	}
	return f.intervals[len(f.intervals)-1], nil
}

func (f *Fake) LatestClosedInterval(ctx context.Context, tx Tx) (model.SampleInterval, error) {
	// The latest interval is still open, even when bootstrap has already
	// written placeholder stats for it, so the search starts one below it.
	for i := len(f.intervals) - 2; i >= 0; i-- {
		iv := f.intervals[i]
		for k := range f.stats {
			if k[1] == iv.IntervalID {
				return iv, nil
			}
		}
	}
	return model.SampleInterval{}, ErrNotFound
}

func (f *Fake) InsertInterval(ctx context.Context, tx Tx, interval model.SampleInterval) error {
	f.intervals = append(f.intervals, interval)
	return nil
}

func (f *Fake) UpsertStats(ctx context.Context, tx Tx, s model.StatsSample) error {
	f.stats[[2]int64{s.ItemID, s.IntervalID}] = s
	return nil
}

func (f *Fake) StatsForInterval(ctx context.Context, tx Tx, intervalID int64) ([]model.StatsSample, error) {
	var out []model.StatsSample
	for k, s := range f.stats {
		if k[1] == intervalID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *Fake) LatestStatsFor(ctx context.Context, tx Tx, itemID int64) (model.StatsSample, error) {
	var best model.StatsSample
	found := false
	for k, s := range f.stats {
		if k[0] == itemID && (!found || s.IntervalID > best.IntervalID) {
			best = s
			found = true
		}
	}
	if !found {
		return model.StatsSample{}, ErrNotFound
	}
	return best, nil
}

func (f *Fake) UpsertRank(ctx context.Context, tx Tx, r model.RankAssignment) error {
	f.ranks[[2]int64{r.ItemID, r.IntervalID}] = r
	return nil
}

func (f *Fake) RanksForInterval(ctx context.Context, tx Tx, intervalID int64) ([]model.RankAssignment, error) {
	var out []model.RankAssignment
	for k, r := range f.ranks {
		if k[1] == intervalID {
			out = append(out, r)
		}
	}
	return out, nil
}

type itemUser struct {
	item int64
	user string
}

func (f *Fake) CurrentUpvoteCount(ctx context.Context, tx Tx, itemIDs []int64, at int64) (map[int64]int64, error) {
	want := make(map[int64]bool, len(itemIDs))
	for _, id := range itemIDs {
		want[id] = true
	}
	latest := make(map[itemUser]model.VoteEvent)
	for _, v := range f.votes {
		if !want[v.ItemID] || v.CreatedAt > at {
			continue
		}
		k := itemUser{v.ItemID, v.UserID}
		cur, ok := latest[k]
		if !ok || v.CreatedAt > cur.CreatedAt || (v.CreatedAt == cur.CreatedAt && v.VoteEventID > cur.VoteEventID) {
			latest[k] = v
		}
	}
	out := make(map[int64]int64, len(itemIDs))
	for _, v := range latest {
		if v.Vote == model.VoteUp {
			out[v.ItemID]++
		}
	}
	return out, nil
}

func (f *Fake) SitewidePositiveVotes(ctx context.Context, tx Tx, itemIDs []int64, since, at int64) (int64, error) {
	want := make(map[int64]bool, len(itemIDs))
	for _, id := range itemIDs {
		want[id] = true
	}
	var n int64
	for _, v := range f.votes {
		if want[v.ItemID] && v.Vote == model.VoteUp && v.CreatedAt > since && v.CreatedAt <= at {
			n++
		}
	}
	return n, nil
}
