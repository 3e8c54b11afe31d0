// Package sampler implements the periodic Quality News tick: the
// bootstrap/running state machine that advances sample intervals,
// attributes sitewide upvote volume to items via the expected-share
// estimator, and computes the next interval's rank assignments.
package sampler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/social-protocols/rankers/internal/clock"
	"github.com/social-protocols/rankers/internal/estimator"
	"github.com/social-protocols/rankers/internal/model"
	"github.com/social-protocols/rankers/internal/pool"
	"github.com/social-protocols/rankers/internal/scorer"
	"github.com/social-protocols/rankers/internal/store"
)

// Sampler owns one Tick: the unit of work the scheduler invokes on each
// cron firing. A Sampler instance is not itself concurrency-safe across
// ticks — the scheduler is responsible for ensuring only one Tick runs at
// a time (see internal/scheduler; this is a deliberate choice not to rely
// on store-level advisory locks for that guarantee).
type Sampler struct {
	Store     store.Store
	Clock     *clock.Source
	Estimator estimator.Estimator
	PoolSize  int
	Log       *slog.Logger
}

// Tick advances the sampling state machine by exactly one step. It is
// safe to call repeatedly; a tick with nothing new to do (no items yet)
// is a no-op success.
func (s *Sampler) Tick(ctx context.Context) (err error) {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning tick transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			err = fmt.Errorf("sampler tick panicked: %v", r)
		}
	}()

	if txErr := s.tick(ctx, tx); txErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.Log.Error("rollback failed after tick error", "tick_error", txErr, "rollback_error", rbErr)
		}
		return txErr
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing tick: %w", err)
	}
	return nil
}

func (s *Sampler) tick(ctx context.Context, tx store.Tx) error {
	hasItems, err := s.Store.HasAnyItem(ctx, tx)
	if err != nil {
		return fmt.Errorf("checking for items: %w", err)
	}
	if !hasItems {
		s.Log.Debug("no items yet, skipping tick")
		return nil
	}

	now := s.Clock.Now()

	_, err = s.Store.LatestInterval(ctx, tx)
	switch {
	case err == store.ErrNotFound:
		return s.bootstrap(ctx, tx, now)
	case err != nil:
		return fmt.Errorf("reading latest interval: %w", err)
	default:
		return s.advance(ctx, tx, now)
	}
}

// bootstrap implements the Uninitialized state: interval 1 is created, an
// initial stats snapshot is taken (zero expected upvotes, uniform share),
// and initial ranks are assigned.
func (s *Sampler) bootstrap(ctx context.Context, tx store.Tx, now int64) error {
	const firstInterval = 1

	items, err := pool.Select(ctx, s.Store, tx, now, s.PoolSize)
	if err != nil {
		return fmt.Errorf("selecting initial pool: %w", err)
	}
	if err := s.Store.InsertInterval(ctx, tx, model.SampleInterval{IntervalID: firstInterval, StartTime: now}); err != nil {
		return fmt.Errorf("inserting initial interval: %w", err)
	}
	if len(items) == 0 {
		s.Log.Debug("bootstrap found an empty pool")
		return nil
	}

	ids := pool.IDs(items)
	current, err := s.Store.CurrentUpvoteCount(ctx, tx, ids, now)
	if err != nil {
		return fmt.Errorf("reading current upvotes: %w", err)
	}

	uniformShare := 1.0 / float64(len(items))
	for _, it := range items {
		sample := model.StatsSample{
			ItemID:              it.ItemID,
			IntervalID:          firstInterval,
			Upvotes:             current[it.ItemID],
			UpvoteShare:         0,
			ExpectedUpvotes:     0,
			ExpectedUpvoteShare: uniformShare,
		}
		if err := s.Store.UpsertStats(ctx, tx, sample); err != nil {
			return fmt.Errorf("writing initial stats for item %d: %w", it.ItemID, err)
		}
	}

	ranks := computeRanks(now, items, map[int64]model.StatsSample{})
	for _, r := range ranks {
		r.IntervalID = firstInterval
		if err := s.Store.UpsertRank(ctx, tx, r); err != nil {
			return fmt.Errorf("writing initial rank for item %d: %w", r.ItemID, err)
		}
	}

	s.Log.Info("sampler bootstrapped", "interval_id", firstInterval, "pool_size", len(items))
	return nil
}

// advance implements the Running state: it closes the current interval
// with real statistics and opens the next one with fresh rank
// assignments.
func (s *Sampler) advance(ctx context.Context, tx store.Tx, now int64) error {
	current, err := s.Store.LatestInterval(ctx, tx)
	if err != nil {
		return fmt.Errorf("reading latest interval to advance: %w", err)
	}

	items, err := pool.Select(ctx, s.Store, tx, now, s.PoolSize)
	if err != nil {
		return fmt.Errorf("selecting pool: %w", err)
	}
	if len(items) == 0 {
		s.Log.Debug("advance found an empty pool, skipping")
		return nil
	}
	ids := pool.IDs(items)

	sitewide, err := s.Store.SitewidePositiveVotes(ctx, tx, ids, current.StartTime, now)
	if err != nil {
		return fmt.Errorf("reading sitewide upvotes: %w", err)
	}

	currentUpvotes, err := s.Store.CurrentUpvoteCount(ctx, tx, ids, now)
	if err != nil {
		return fmt.Errorf("reading current upvotes: %w", err)
	}

	ranks, err := s.Store.RanksForInterval(ctx, tx, current.IntervalID)
	if err != nil {
		return fmt.Errorf("reading ranks for interval %d: %w", current.IntervalID, err)
	}
	shares := s.Estimator.ExpectedShares(ranks)

	closed := make(map[int64]model.StatsSample, len(items))
	for _, it := range items {
		prev, err := s.Store.LatestStatsFor(ctx, tx, it.ItemID)
		prevUpvotes := int64(0)
		prevExpected := 0.0
		if err == nil {
			prevUpvotes = prev.Upvotes
			prevExpected = prev.ExpectedUpvotes
		} else if err != store.ErrNotFound {
			return fmt.Errorf("reading previous stats for item %d: %w", it.ItemID, err)
		}

		upvoteShare := 0.0
		if sitewide > 0 {
			upvoteShare = float64(currentUpvotes[it.ItemID]-prevUpvotes) / float64(sitewide)
		}

		rawShare, hadShare := shares[it.ItemID]
		if !hadShare {
			rawShare = 0
		}
		expectedShare, wasClamped := estimator.Clamp(rawShare)
		if wasClamped {
			s.Log.Warn("estimator returned invalid share, clamped to zero", "item_id", it.ItemID, "raw_share", rawShare)
		}

		sample := model.StatsSample{
			ItemID:              it.ItemID,
			IntervalID:          current.IntervalID,
			Upvotes:             currentUpvotes[it.ItemID],
			UpvoteShare:         upvoteShare,
			ExpectedUpvotes:     prevExpected + expectedShare*float64(sitewide),
			ExpectedUpvoteShare: expectedShare,
		}
		if err := s.Store.UpsertStats(ctx, tx, sample); err != nil {
			return fmt.Errorf("closing stats for item %d: %w", it.ItemID, err)
		}
		closed[it.ItemID] = sample
	}

	nextIntervalID := current.IntervalID + 1
	if err := s.Store.InsertInterval(ctx, tx, model.SampleInterval{IntervalID: nextIntervalID, StartTime: now}); err != nil {
		return fmt.Errorf("opening interval %d: %w", nextIntervalID, err)
	}

	nextRanks := computeRanks(now, items, closed)
	for _, r := range nextRanks {
		r.IntervalID = nextIntervalID
		if err := s.Store.UpsertRank(ctx, tx, r); err != nil {
			return fmt.Errorf("writing rank for item %d in interval %d: %w", r.ItemID, nextIntervalID, err)
		}
	}

	s.Log.Info("sampler tick advanced",
		"closed_interval_id", current.IntervalID,
		"next_interval_id", nextIntervalID,
		"pool_size", len(items),
		"sitewide_upvotes", sitewide,
	)
	return nil
}

// computeRanks derives rank_top (score order, using whatever stats are
// available — zero-value stats for items with none yet) and rank_new
// (submission-time order) for a pool as of sampleTime.
func computeRanks(sampleTime int64, items []model.PoolItem, stats map[int64]model.StatsSample) []model.RankAssignment {
	type scored struct {
		item  model.PoolItem
		score float64
	}
	withScores := make([]scored, len(items))
	for i, it := range items {
		st := stats[it.ItemID] // zero value if absent: upvotes=0, expected=0
		withScores[i] = scored{
			item:  it,
			score: scorer.QualityNews(sampleTime, it.SubmissionTime, float64(st.Upvotes), st.ExpectedUpvotes),
		}
	}

	byTop := make([]scored, len(withScores))
	copy(byTop, withScores)
	sort.Slice(byTop, func(i, j int) bool {
		if byTop[i].score != byTop[j].score {
			return byTop[i].score > byTop[j].score
		}
		if byTop[i].item.SubmissionTime != byTop[j].item.SubmissionTime {
			return byTop[i].item.SubmissionTime > byTop[j].item.SubmissionTime
		}
		return byTop[i].item.ItemID < byTop[j].item.ItemID
	})

	byNew := make([]scored, len(withScores))
	copy(byNew, withScores)
	sort.Slice(byNew, func(i, j int) bool {
		if byNew[i].item.SubmissionTime != byNew[j].item.SubmissionTime {
			return byNew[i].item.SubmissionTime > byNew[j].item.SubmissionTime
		}
		return byNew[i].item.ItemID < byNew[j].item.ItemID
	})

	rankTop := make(map[int64]int32, len(items))
	for i, s := range byTop {
		rankTop[s.item.ItemID] = int32(i + 1)
	}
	rankNew := make(map[int64]int32, len(items))
	for i, s := range byNew {
		rankNew[s.item.ItemID] = int32(i + 1)
	}

	out := make([]model.RankAssignment, len(items))
	for i, it := range items {
		out[i] = model.RankAssignment{
			ItemID:  it.ItemID,
			RankTop: rankTop[it.ItemID],
			RankNew: rankNew[it.ItemID],
		}
	}
	return out
}
