package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/social-protocols/rankers/internal/model"
)

// psql is the squirrel statement builder configured for Postgres-style
// ($1, $2, ...) placeholders, matching the dollar-placeholder idiom used
// wherever the retrieved pack builds dynamic SQL against Postgres.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Postgres is the Store implementation backed by a *sqlx.DB.
type Postgres struct {
	db *sqlx.DB
}

// Open connects to Postgres via lib/pq and applies Schema.
func Open(dsn string) (*Postgres, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Postgres{db: db}, nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

type pgTx struct {
	tx *sqlx.Tx
}

func (t *pgTx) Commit() error   { return t.tx.Commit() }
func (t *pgTx) Rollback() error { return t.tx.Rollback() }

// sqlxTx extracts the underlying *sqlx.Tx from the port-level Tx handle.
// Every Postgres method takes this route instead of a type switch at every
// call site.
func sqlxTx(tx Tx) *sqlx.Tx {
	pt, ok := tx.(*pgTx)
	if !ok {
		panic("store: Tx not created by Postgres.Begin")
	}
	return pt.tx
}

func (p *Postgres) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("%w: beginning transaction: %v", ErrTransient, err)
	}
	return &pgTx{tx: tx}, nil
}

func wrapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code.Class() {
		case "23": // integrity constraint violation (unique/fk)
			return fmt.Errorf("%w: %v", ErrConflict, err)
		case "40": // transaction rollback (serialization failure)
			return fmt.Errorf("%w: %v", ErrTransient, err)
		case "55": // object not in prerequisite state (lock not available)
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
	}
	return err
}

func (p *Postgres) InsertItem(ctx context.Context, tx Tx, item model.Item) error {
	q, args, err := psql.Insert("item").
		Columns("item_id", "parent_id", "author_id", "created_at").
		Values(item.ItemID, item.ParentID, item.AuthorID, item.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert item: %w", err)
	}
	_, err = sqlxTx(tx).ExecContext(ctx, q, args...)
	return wrapWriteErr(err)
}

func (p *Postgres) InsertVoteEvent(ctx context.Context, tx Tx, ev model.VoteEvent) error {
	q, args, err := psql.Insert("vote_event").
		Columns("vote_event_id", "item_id", "user_id", "vote", "rank", "page", "created_at").
		Values(ev.VoteEventID, ev.ItemID, ev.UserID, ev.Vote, ev.Rank, ev.Page, ev.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert vote_event: %w", err)
	}
	_, err = sqlxTx(tx).ExecContext(ctx, q, args...)
	return wrapWriteErr(err)
}

func (p *Postgres) HasAnyItem(ctx context.Context, tx Tx) (bool, error) {
	var exists bool
	q, args, err := psql.Select("exists(select 1 from item)").ToSql()
	if err != nil {
		return false, fmt.Errorf("building has-any-item query: %w", err)
	}
	if err := sqlxTx(tx).GetContext(ctx, &exists, q, args...); err != nil {
		return false, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return exists, nil
}

func (p *Postgres) PoolAt(ctx context.Context, tx Tx, at int64, limit int) ([]model.PoolItem, error) {
	q, args, err := psql.Select("item_id", "parent_id", "author_id", "created_at").
		From("item").
		Where(sq.And{sq.Eq{"parent_id": nil}, sq.LtOrEq{"created_at": at}}).
		OrderBy("created_at DESC", "item_id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building pool query: %w", err)
	}
	var rows []model.Item
	if err := sqlxTx(tx).SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	out := make([]model.PoolItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.PoolItem{Item: r, SubmissionTime: r.CreatedAt})
	}
	return out, nil
}

func (p *Postgres) ItemsByIDs(ctx context.Context, tx Tx, ids []int64) ([]model.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q, args, err := psql.Select("item_id", "parent_id", "author_id", "created_at").
		From("item").
		Where(sq.Eq{"item_id": ids}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building items-by-ids query: %w", err)
	}
	var out []model.Item
	if err := sqlxTx(tx).SelectContext(ctx, &out, q, args...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return out, nil
}

func (p *Postgres) LatestInterval(ctx context.Context, tx Tx) (model.SampleInterval, error) {
	q, args, err := psql.Select("interval_id", "start_time").
		From("qn_sample_interval").
		OrderBy("interval_id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return model.SampleInterval{}, fmt.Errorf("building latest interval query: %w", err)
	}
	var out model.SampleInterval
	if err := sqlxTx(tx).GetContext(ctx, &out, q, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return model.SampleInterval{}, ErrNotFound
		}
		return model.SampleInterval{}, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return out, nil
}

func (p *Postgres) LatestClosedInterval(ctx context.Context, tx Tx) (model.SampleInterval, error) {
	q, args, err := psql.Select("i.interval_id", "i.start_time").
		From("qn_sample_interval i").
		Join("stats_history s ON s.interval_id = i.interval_id").
		Where("i.interval_id < (SELECT max(interval_id) FROM qn_sample_interval)").
		GroupBy("i.interval_id", "i.start_time").
		OrderBy("i.interval_id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return model.SampleInterval{}, fmt.Errorf("building latest closed interval query: %w", err)
	}
	var out model.SampleInterval
	if err := sqlxTx(tx).GetContext(ctx, &out, q, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return model.SampleInterval{}, ErrNotFound
		}
		return model.SampleInterval{}, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return out, nil
}

func (p *Postgres) InsertInterval(ctx context.Context, tx Tx, interval model.SampleInterval) error {
	q, args, err := psql.Insert("qn_sample_interval").
		Columns("interval_id", "start_time").
		Values(interval.IntervalID, interval.StartTime).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert interval: %w", err)
	}
	_, err = sqlxTx(tx).ExecContext(ctx, q, args...)
	return wrapWriteErr(err)
}

func (p *Postgres) UpsertStats(ctx context.Context, tx Tx, s model.StatsSample) error {
	q, args, err := psql.Insert("stats_history").
		Columns("item_id", "interval_id", "upvotes", "upvote_share", "expected_upvotes", "expected_upvote_share").
		Values(s.ItemID, s.IntervalID, s.Upvotes, s.UpvoteShare, s.ExpectedUpvotes, s.ExpectedUpvoteShare).
		Suffix(`ON CONFLICT (item_id, interval_id) DO UPDATE SET
			upvotes = EXCLUDED.upvotes,
			upvote_share = EXCLUDED.upvote_share,
			expected_upvotes = EXCLUDED.expected_upvotes,
			expected_upvote_share = EXCLUDED.expected_upvote_share`).
		ToSql()
	if err != nil {
		return fmt.Errorf("building upsert stats: %w", err)
	}
	_, err = sqlxTx(tx).ExecContext(ctx, q, args...)
	return wrapWriteErr(err)
}

func (p *Postgres) StatsForInterval(ctx context.Context, tx Tx, intervalID int64) ([]model.StatsSample, error) {
	q, args, err := psql.Select("item_id", "interval_id", "upvotes", "upvote_share", "expected_upvotes", "expected_upvote_share").
		From("stats_history").
		Where(sq.Eq{"interval_id": intervalID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building stats-for-interval query: %w", err)
	}
	var out []model.StatsSample
	if err := sqlxTx(tx).SelectContext(ctx, &out, q, args...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return out, nil
}

func (p *Postgres) LatestStatsFor(ctx context.Context, tx Tx, itemID int64) (model.StatsSample, error) {
	q, args, err := psql.Select("item_id", "interval_id", "upvotes", "upvote_share", "expected_upvotes", "expected_upvote_share").
		From("stats_history").
		Where(sq.Eq{"item_id": itemID}).
		OrderBy("interval_id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return model.StatsSample{}, fmt.Errorf("building latest stats query: %w", err)
	}
	var out model.StatsSample
	if err := sqlxTx(tx).GetContext(ctx, &out, q, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return model.StatsSample{}, ErrNotFound
		}
		return model.StatsSample{}, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return out, nil
}

func (p *Postgres) UpsertRank(ctx context.Context, tx Tx, r model.RankAssignment) error {
	q, args, err := psql.Insert("rank_history").
		Columns("item_id", "interval_id", "rank_top", "rank_new").
		Values(r.ItemID, r.IntervalID, r.RankTop, r.RankNew).
		Suffix(`ON CONFLICT (item_id, interval_id) DO UPDATE SET
			rank_top = EXCLUDED.rank_top,
			rank_new = EXCLUDED.rank_new`).
		ToSql()
	if err != nil {
		return fmt.Errorf("building upsert rank: %w", err)
	}
	_, err = sqlxTx(tx).ExecContext(ctx, q, args...)
	return wrapWriteErr(err)
}

func (p *Postgres) RanksForInterval(ctx context.Context, tx Tx, intervalID int64) ([]model.RankAssignment, error) {
	q, args, err := psql.Select("item_id", "interval_id", "rank_top", "rank_new").
		From("rank_history").
		Where(sq.Eq{"interval_id": intervalID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building ranks-for-interval query: %w", err)
	}
	var out []model.RankAssignment
	if err := sqlxTx(tx).SelectContext(ctx, &out, q, args...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return out, nil
}

func (p *Postgres) CurrentUpvoteCount(ctx context.Context, tx Tx, itemIDs []int64, at int64) (map[int64]int64, error) {
	out := make(map[int64]int64, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	// Latest vote per (item_id, user_id) as of `at`, filtered to vote = 1.
	q, args, err := psql.Select("item_id", "count(*) as n").
		FromSelect(
			psql.Select("DISTINCT ON (item_id, user_id) item_id, user_id, vote").
				From("vote_event").
				Where(sq.And{sq.Eq{"item_id": itemIDs}, sq.LtOrEq{"created_at": at}}).
				OrderBy("item_id", "user_id", "created_at DESC", "vote_event_id DESC"),
			"current_votes",
		).
		Where(sq.Eq{"vote": model.VoteUp}).
		GroupBy("item_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building current upvote count query: %w", err)
	}
	rows, err := sqlxTx(tx).QueryxContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer rows.Close()
	for rows.Next() {
		var itemID, n int64
		if err := rows.Scan(&itemID, &n); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransient, err)
		}
		out[itemID] = n
	}
	return out, rows.Err()
}

func (p *Postgres) SitewidePositiveVotes(ctx context.Context, tx Tx, itemIDs []int64, since, at int64) (int64, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}
	q, args, err := psql.Select("count(*)").
		From("vote_event").
		Where(sq.And{
			sq.Eq{"item_id": itemIDs},
			sq.Eq{"vote": model.VoteUp},
			sq.Gt{"created_at": since},
			sq.LtOrEq{"created_at": at},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("building sitewide positive votes query: %w", err)
	}
	var n int64
	if err := sqlxTx(tx).GetContext(ctx, &n, q, args...); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return n, nil
}
