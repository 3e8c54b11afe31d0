package ranker_test

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
	"github.com/social-protocols/rankers/internal/ranker"
	"github.com/social-protocols/rankers/internal/sampler"
	"github.com/social-protocols/rankers/internal/store"
)

func TestQualityNews_EmptyBeforeFirstClose(t *testing.T) {
	ctx := context.Background()
	fake := store.NewFake()
	fc := clockwork.NewFakeClock()
	c := clock.New(fc)

	tx, err := fake.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, fake.InsertItem(ctx, tx, model.Item{ItemID: 1, AuthorID: "u", CreatedAt: fc.Now().UnixMilli()}))
	require.NoError(t, tx.Commit())

	samp := &sampler.Sampler{
		Store: fake, Clock: c, Estimator: estimator.Uniform{}, PoolSize: 1500,
		Log: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	}
	require.NoError(t, samp.Tick(ctx)) // bootstrap only: interval 1 is open, not closed

	r := &ranker.Ranker{Store: fake, Clock: c, PoolSize: 1500}
	items, err := r.QualityNews(ctx)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestQualityNews_PopulatedAfterFirstAdvance(t *testing.T) {
	ctx := context.Background()
	fake := store.NewFake()
	fc := clockwork.NewFakeClock()
	c := clock.New(fc)
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	tx, err := fake.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, fake.InsertItem(ctx, tx, model.Item{ItemID: 1, AuthorID: "u", CreatedAt: fc.Now().UnixMilli()}))
	require.NoError(t, fake.InsertItem(ctx, tx, model.Item{ItemID: 2, AuthorID: "u", CreatedAt: fc.Now().UnixMilli()}))
	require.NoError(t, tx.Commit())

	samp := &sampler.Sampler{Store: fake, Clock: c, Estimator: estimator.Uniform{}, PoolSize: 1500, Log: log}
	require.NoError(t, samp.Tick(ctx)) // bootstrap

	fc.Advance(time.Minute)
	tx, err = fake.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, fake.InsertVoteEvent(ctx, tx, model.VoteEvent{VoteEventID: 1, ItemID: 1, UserID: "a", Vote: model.VoteUp, CreatedAt: fc.Now().UnixMilli()}))
	require.NoError(t, tx.Commit())

	require.NoError(t, samp.Tick(ctx)) // closes interval 1

	r := &ranker.Ranker{Store: fake, Clock: c, PoolSize: 1500}
	items, err := r.QualityNews(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	// item 1 has an upvote, item 2 does not: item 1 should outrank item 2.
	require.Equal(t, int64(1), items[0].ItemID)
	require.Equal(t, int32(1), items[0].Rank)
	require.Equal(t, int64(2), items[1].ItemID)
	require.Equal(t, int32(2), items[1].Rank)
}

func TestNewest_OrdersBySubmissionTimeDescending(t *testing.T) {
	ctx := context.Background()
	fake := store.NewFake()
	fc := clockwork.NewFakeClock()
	c := clock.New(fc)

	tx, err := fake.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, fake.InsertItem(ctx, tx, model.Item{ItemID: 1, AuthorID: "u", CreatedAt: fc.Now().UnixMilli()}))
	require.NoError(t, tx.Commit())

	fc.Advance(time.Hour)
	tx, err = fake.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, fake.InsertItem(ctx, tx, model.Item{ItemID: 2, AuthorID: "u", CreatedAt: fc.Now().UnixMilli()}))
	require.NoError(t, tx.Commit())

	r := &ranker.Ranker{Store: fake, Clock: c, PoolSize: 1500}
	items, err := r.Newest(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, int64(2), items[0].ItemID) // newer item ranked first
	require.Equal(t, int64(1), items[1].ItemID)
}
