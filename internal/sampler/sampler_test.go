package sampler_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/social-protocols/rankers/internal/clock"
	"github.com/social-protocols/rankers/internal/estimator"
	"github.com/social-protocols/rankers/internal/model"
	"github.com/social-protocols/rankers/internal/sampler"
	"github.com/social-protocols/rankers/internal/store"
)

func newTestSampler(t *testing.T, fc clockwork.FakeClock) (*sampler.Sampler, *store.Fake) {
	t.Helper()
	fake := store.NewFake()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return &sampler.Sampler{
		Store:     fake,
		Clock:     clock.New(fc),
		Estimator: estimator.Uniform{},
		PoolSize:  1500,
		Log:       log,
	}, fake
}

func mustInsertItem(t *testing.T, ctx context.Context, s store.Store, id int64, createdAt int64) {
	t.Helper()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, s.InsertItem(ctx, tx, model.Item{ItemID: id, AuthorID: "u", CreatedAt: createdAt}))
	require.NoError(t, tx.Commit())
}

func mustInsertVote(t *testing.T, ctx context.Context, s store.Store, voteID, itemID int64, userID string, vote model.VoteKind, at int64) {
	t.Helper()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, s.InsertVoteEvent(ctx, tx, model.VoteEvent{
		VoteEventID: voteID, ItemID: itemID, UserID: userID, Vote: vote, CreatedAt: at,
	}))
	require.NoError(t, tx.Commit())
}

func TestTick_NoItemsIsNoop(t *testing.T) {
	ctx := context.Background()
	fc := clockwork.NewFakeClock()
	samp, fake := newTestSampler(t, fc)

	require.NoError(t, samp.Tick(ctx))

	tx, err := fake.Begin(ctx)
	require.NoError(t, err)
	_, err = fake.LatestInterval(ctx, tx)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, tx.Commit())
}

func TestTick_BootstrapsFirstInterval(t *testing.T) {
	ctx := context.Background()
	fc := clockwork.NewFakeClock()
	samp, fake := newTestSampler(t, fc)

	mustInsertItem(t, ctx, fake, 1, fc.Now().UnixMilli())
	mustInsertItem(t, ctx, fake, 2, fc.Now().UnixMilli())

	require.NoError(t, samp.Tick(ctx))

	tx, err := fake.Begin(ctx)
	require.NoError(t, err)
	defer tx.Commit()

	iv, err := fake.LatestInterval(ctx, tx)
	require.NoError(t, err)
	require.Equal(t, int64(1), iv.IntervalID)

	stats, err := fake.StatsForInterval(ctx, tx, 1)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	for _, s := range stats {
		require.Equal(t, 0.5, s.ExpectedUpvoteShare)
		require.Equal(t, 0.0, s.ExpectedUpvotes)
	}

	ranks, err := fake.RanksForInterval(ctx, tx, 1)
	require.NoError(t, err)
	require.Len(t, ranks, 2)
}

func TestTick_AdvancesAndAccumulatesExpectedUpvotes(t *testing.T) {
	ctx := context.Background()
	fc := clockwork.NewFakeClock()
	samp, fake := newTestSampler(t, fc)

	mustInsertItem(t, ctx, fake, 1, fc.Now().UnixMilli())
	mustInsertItem(t, ctx, fake, 2, fc.Now().UnixMilli())
	require.NoError(t, samp.Tick(ctx)) // bootstrap: interval 1

	fc.Advance(time.Minute)
	mustInsertVote(t, ctx, fake, 100, 1, "alice", model.VoteUp, fc.Now().UnixMilli())
	mustInsertVote(t, ctx, fake, 101, 2, "bob", model.VoteUp, fc.Now().UnixMilli())

	require.NoError(t, samp.Tick(ctx)) // closes interval 1, opens interval 2

	tx, err := fake.Begin(ctx)
	require.NoError(t, err)
	defer tx.Commit()

	iv, err := fake.LatestInterval(ctx, tx)
	require.NoError(t, err)
	require.Equal(t, int64(2), iv.IntervalID)

	closedStats, err := fake.StatsForInterval(ctx, tx, 1)
	require.NoError(t, err)
	require.Len(t, closedStats, 2)
	for _, s := range closedStats {
		require.Equal(t, int64(1), s.Upvotes)
		// sitewide = 2 positive votes, uniform share 0.5 each:
		// upvote_share = (1 - 0) / 2 = 0.5
		require.InDelta(t, 0.5, s.UpvoteShare, 1e-9)
		// expected_upvotes = 0 (prev) + 0.5 (share) * 2 (sitewide) = 1.0
		require.InDelta(t, 1.0, s.ExpectedUpvotes, 1e-9)
	}
}

func TestTick_RevoteIsExcludedFromCurrentUpvotes(t *testing.T) {
	ctx := context.Background()
	fc := clockwork.NewFakeClock()
	samp, fake := newTestSampler(t, fc)

	mustInsertItem(t, ctx, fake, 1, fc.Now().UnixMilli())
	require.NoError(t, samp.Tick(ctx)) // bootstrap

	fc.Advance(time.Minute)
	mustInsertVote(t, ctx, fake, 1, 1, "alice", model.VoteUp, fc.Now().UnixMilli())

	fc.Advance(time.Second)
	mustInsertVote(t, ctx, fake, 2, 1, "alice", model.VoteNone, fc.Now().UnixMilli()) // alice retracts

	require.NoError(t, samp.Tick(ctx))

	tx, err := fake.Begin(ctx)
	require.NoError(t, err)
	defer tx.Commit()

	stats, err := fake.StatsForInterval(ctx, tx, 1)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	// current_upvotes excludes the retracted vote: it nets to zero even
	// though one positive VoteEvent row did occur in the window...
	require.Equal(t, int64(0), stats[0].Upvotes)
	// ...so the delta against the previous (also zero) sample is zero,
	// regardless of sitewide's raw count of 1 positive vote event.
	require.InDelta(t, 0.0, stats[0].UpvoteShare, 1e-9)
}

func TestTick_IdempotentOnEmptyPool(t *testing.T) {
	ctx := context.Background()
	fc := clockwork.NewFakeClock()
	samp, _ := newTestSampler(t, fc)

	require.NoError(t, samp.Tick(ctx))
	require.NoError(t, samp.Tick(ctx)) // still no items: still a no-op
}

func TestTick_EvictedItemKeepsHistoricalStats(t *testing.T) {
	ctx := context.Background()
	fc := clockwork.NewFakeClock()
	fake := store.NewFake()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	// Pool size of 1 forces item 1 out as soon as a newer item 2 is
	// submitted, even though item 1 keeps its own stats row from interval 1.
	samp := &sampler.Sampler{
		Store:     fake,
		Clock:     clock.New(fc),
		Estimator: estimator.Uniform{},
		PoolSize:  1,
		Log:       log,
	}

	mustInsertItem(t, ctx, fake, 1, fc.Now().UnixMilli())
	require.NoError(t, samp.Tick(ctx)) // bootstrap: item 1 is the whole pool

	fc.Advance(time.Minute)
	mustInsertItem(t, ctx, fake, 2, fc.Now().UnixMilli()) // newer item displaces item 1

	require.NoError(t, samp.Tick(ctx)) // closes interval 1 over the pool as of now: {2}

	tx, err := fake.Begin(ctx)
	require.NoError(t, err)
	defer tx.Commit()

	// Interval 1 now holds item 1's untouched bootstrap row (item 1 was
	// evicted from the pool before this tick, so the advance step never
	// wrote to it) plus item 2's freshly written row (item 2 is the only
	// member of the pool as of this tick, given PoolSize == 1).
	closedStats, err := fake.StatsForInterval(ctx, tx, 1)
	require.NoError(t, err)
	require.Len(t, closedStats, 2)

	byItem := make(map[int64]model.StatsSample, len(closedStats))
	for _, s := range closedStats {
		byItem[s.ItemID] = s
	}
	require.Contains(t, byItem, int64(1))
	require.Contains(t, byItem, int64(2))

	// Item 1's own historical stats row from the bootstrap tick remains
	// queryable even though it is no longer in the pool.
	prior, err := fake.LatestStatsFor(ctx, tx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), prior.IntervalID)
}
