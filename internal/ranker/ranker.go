// Package ranker serves the three read-side ranking pages: Quality News
// (reads the latest closed sampler interval), Hacker-News-style popularity,
// and Newest (both computed live over the current item pool).
package ranker

import (
	"context"
	"fmt"
	"sort"

	"github.com/social-protocols/rankers/internal/clock"
	"github.com/social-protocols/rankers/internal/model"
	"github.com/social-protocols/rankers/internal/pool"
	"github.com/social-protocols/rankers/internal/scorer"
	"github.com/social-protocols/rankers/internal/store"
)

// Ranker reads ranking pages from the store. It holds no state of its own;
// every call opens its own read-only-in-spirit transaction so a single
// response reflects one consistent snapshot.
type Ranker struct {
	Store    store.Store
	Clock    *clock.Source
	PoolSize int
}

// scoredRow is the shared shape QualityNews and HackerNews sort before
// handing off to toScoredItems.
type scoredRow struct {
	itemID int64
	score  float64
}

// QualityNews returns the Quality News page: the latest closed interval's
// stats, scored and sorted descending. Returns an empty slice, not an
// error, if no interval has closed yet.
func (r *Ranker) QualityNews(ctx context.Context) ([]model.ScoredItem, error) {
	tx, err := r.Store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning quality news read: %w", err)
	}
	defer tx.Rollback()

	interval, err := r.Store.LatestClosedInterval(ctx, tx)
	if err == store.ErrNotFound {
		return []model.ScoredItem{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading latest closed interval: %w", err)
	}

	stats, err := r.Store.StatsForInterval(ctx, tx, interval.IntervalID)
	if err != nil {
		return nil, fmt.Errorf("reading stats for interval %d: %w", interval.IntervalID, err)
	}
	if len(stats) == 0 {
		return []model.ScoredItem{}, nil
	}

	ids := make([]int64, len(stats))
	for i, s := range stats {
		ids[i] = s.ItemID
	}
	submissionTimes, err := submissionTimesFor(ctx, r.Store, tx, ids)
	if err != nil {
		return nil, err
	}

	// The closed interval's stats were sampled when the latest interval
	// opened; scoring at that instant keeps reads between ticks identical.
	open, err := r.Store.LatestInterval(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("reading latest interval: %w", err)
	}
	now := open.StartTime
	rows := make([]scoredRow, 0, len(stats))
	for _, s := range stats {
		submission, ok := submissionTimes[s.ItemID]
		if !ok {
			continue // item no longer exists (should not happen; defensive)
		}
		score := scorer.QualityNews(now, submission, float64(s.Upvotes), s.ExpectedUpvotes)
		rows = append(rows, scoredRow{itemID: s.ItemID, score: score})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].score != rows[j].score {
			return rows[i].score > rows[j].score
		}
		return rows[i].itemID < rows[j].itemID
	})

	return toScoredItems(rows, model.PageQualityNews), nil
}

// HackerNews returns the popularity page computed live over the current
// pool, using derived current-upvote counts.
func (r *Ranker) HackerNews(ctx context.Context) ([]model.ScoredItem, error) {
	tx, err := r.Store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning hacker news read: %w", err)
	}
	defer tx.Rollback()

	now := r.Clock.Now()
	items, err := pool.Select(ctx, r.Store, tx, now, r.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("selecting pool: %w", err)
	}
	upvotes, err := r.Store.CurrentUpvoteCount(ctx, tx, pool.IDs(items), now)
	if err != nil {
		return nil, fmt.Errorf("reading current upvotes: %w", err)
	}

	rows := make([]scoredRow, 0, len(items))
	for _, it := range items {
		score := scorer.HackerNews(now, it.SubmissionTime, float64(upvotes[it.ItemID]))
		rows = append(rows, scoredRow{itemID: it.ItemID, score: score})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].score != rows[j].score {
			return rows[i].score > rows[j].score
		}
		return rows[i].itemID < rows[j].itemID
	})

	return toScoredItems(rows, model.PageHackerNews), nil
}

// Newest returns the chronological page computed live over the current
// pool.
func (r *Ranker) Newest(ctx context.Context) ([]model.ScoredItem, error) {
	tx, err := r.Store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning newest read: %w", err)
	}
	defer tx.Rollback()

	now := r.Clock.Now()
	items, err := pool.Select(ctx, r.Store, tx, now, r.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("selecting pool: %w", err)
	}

	type row struct {
		itemID         int64
		score          float64
		submissionTime int64
	}
	rows := make([]row, 0, len(items))
	for _, it := range items {
		rows = append(rows, row{
			itemID:         it.ItemID,
			score:          scorer.Newest(now, it.SubmissionTime),
			submissionTime: it.SubmissionTime,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].submissionTime != rows[j].submissionTime {
			return rows[i].submissionTime > rows[j].submissionTime
		}
		return rows[i].itemID > rows[j].itemID
	})

	out := make([]model.ScoredItem, len(rows))
	for i, rr := range rows {
		out[i] = model.ScoredItem{ItemID: rr.itemID, Rank: int32(i + 1), Page: model.PageNewest, Score: rr.score}
	}
	return out, nil
}

func submissionTimesFor(ctx context.Context, s store.Store, tx store.Tx, ids []int64) (map[int64]int64, error) {
	items, err := s.ItemsByIDs(ctx, tx, ids)
	if err != nil {
		return nil, fmt.Errorf("reading submission times: %w", err)
	}
	out := make(map[int64]int64, len(items))
	for _, it := range items {
		out[it.ItemID] = it.CreatedAt
	}
	return out, nil
}

func toScoredItems(rows []scoredRow, page model.RankingPage) []model.ScoredItem {
	out := make([]model.ScoredItem, len(rows))
	for i, r := range rows {
		out[i] = model.ScoredItem{ItemID: r.itemID, Rank: int32(i + 1), Page: page, Score: r.score}
	}
	return out
}
