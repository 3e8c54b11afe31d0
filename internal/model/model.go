// Package model defines the entities shared by every layer of the ranking
// engine: items, vote events, sample intervals, rank assignments and stats.
package model

// Item is a user submission. Top-level items (ParentID == nil) are
// rankable; replies are stored but never enter a ranking pool.
type Item struct {
	ItemID    int64  `db:"item_id" json:"item_id"`
	ParentID  *int64 `db:"parent_id" json:"parent_id,omitempty"`
	AuthorID  string `db:"author_id" json:"author_id"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

// IsTopLevel reports whether the item can appear in a ranking pool.
func (i Item) IsTopLevel() bool {
	return i.ParentID == nil
}

// VoteKind is the signed direction of a single vote event.
type VoteKind int16

const (
	VoteDown VoteKind = -1
	VoteNone VoteKind = 0
	VoteUp   VoteKind = 1
)

// VoteEvent is a single, append-only voting action. The *current* vote for
// an (ItemID, UserID) pair is the VoteEvent with the latest CreatedAt (ties
// broken by the larger VoteEventID).
type VoteEvent struct {
	VoteEventID int64    `db:"vote_event_id" json:"vote_event_id"`
	ItemID      int64    `db:"item_id" json:"item_id"`
	UserID      string   `db:"user_id" json:"user_id"`
	Vote        VoteKind `db:"vote" json:"vote"`
	Rank        *int32   `db:"rank" json:"rank,omitempty"`
	Page        *string  `db:"page" json:"page,omitempty"`
	CreatedAt   int64    `db:"created_at" json:"created_at"`
}

// SampleInterval is a half-open window during which one set of rank
// assignments applies. It is open-ended (no EndTime) until the sampler
// closes it by inserting the next interval.
type SampleInterval struct {
	IntervalID int64 `db:"interval_id" json:"interval_id"`
	StartTime  int64 `db:"start_time" json:"start_time"`
}

// RankAssignment records the popularity-order and submission-order rank an
// item held during one interval.
type RankAssignment struct {
	ItemID     int64 `db:"item_id" json:"item_id"`
	IntervalID int64 `db:"interval_id" json:"interval_id"`
	RankTop    int32 `db:"rank_top" json:"rank_top"`
	RankNew    int32 `db:"rank_new" json:"rank_new"`
}

// StatsSample is the per-item, per-interval statistics row the sampler
// writes when it closes an interval.
type StatsSample struct {
	ItemID              int64   `db:"item_id" json:"item_id"`
	IntervalID          int64   `db:"interval_id" json:"interval_id"`
	Upvotes             int64   `db:"upvotes" json:"upvotes"`
	UpvoteShare         float64 `db:"upvote_share" json:"upvote_share"`
	ExpectedUpvotes     float64 `db:"expected_upvotes" json:"expected_upvotes"`
	ExpectedUpvoteShare float64 `db:"expected_upvote_share" json:"expected_upvote_share"`
}

// RankingPage identifies which ranking algorithm produced a ScoredItem.
type RankingPage string

const (
	PageNewest      RankingPage = "Newest"
	PageHackerNews  RankingPage = "HackerNews"
	PageQualityNews RankingPage = "QualityNews"
)

// ScoredItem is one row of a ranking response.
type ScoredItem struct {
	ItemID int64       `json:"item_id"`
	Rank   int32       `json:"rank"`
	Page   RankingPage `json:"page"`
	Score  float64     `json:"score"`
}

// PoolItem is an item annotated with the fields the scorer and estimator
// need, as produced by the item-pool selector.
type PoolItem struct {
	Item
	SubmissionTime int64
}
