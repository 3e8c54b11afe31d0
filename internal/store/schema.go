package store

// Schema is the DDL applied at startup. Mirrors the teacher's pattern of a
// plain embedded CREATE TABLE IF NOT EXISTS block run once at boot rather
// than a migration framework.
const Schema = `
CREATE TABLE IF NOT EXISTS item (
	item_id    BIGINT PRIMARY KEY,
	parent_id  BIGINT NULL REFERENCES item(item_id),
	author_id  TEXT NOT NULL,
	created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_item_toplevel_created
	ON item (created_at DESC)
	WHERE parent_id IS NULL;

CREATE TABLE IF NOT EXISTS vote_event (
	vote_event_id BIGINT PRIMARY KEY,
	item_id       BIGINT NOT NULL REFERENCES item(item_id),
	user_id       TEXT NOT NULL,
	vote          SMALLINT NOT NULL,
	rank          INT NULL,
	page          TEXT NULL,
	created_at    BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_vote_event_item_user_created
	ON vote_event (item_id, user_id, created_at DESC, vote_event_id DESC);

CREATE INDEX IF NOT EXISTS idx_vote_event_item_created
	ON vote_event (item_id, created_at);

CREATE TABLE IF NOT EXISTS qn_sample_interval (
	interval_id BIGINT PRIMARY KEY,
	start_time  BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS rank_history (
	item_id     BIGINT NOT NULL,
	interval_id BIGINT NOT NULL REFERENCES qn_sample_interval(interval_id),
	rank_top    INT NOT NULL,
	rank_new    INT NOT NULL,
	PRIMARY KEY (item_id, interval_id)
);

CREATE TABLE IF NOT EXISTS stats_history (
	item_id               BIGINT NOT NULL,
	interval_id           BIGINT NOT NULL REFERENCES qn_sample_interval(interval_id),
	upvotes               BIGINT NOT NULL,
	upvote_share          DOUBLE PRECISION NOT NULL,
	expected_upvotes      DOUBLE PRECISION NOT NULL,
	expected_upvote_share DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (item_id, interval_id)
);
`
