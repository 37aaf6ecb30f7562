package store

// Schema is applied at open time. All statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS search_sessions (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	query         TEXT NOT NULL,
	provider_used TEXT NOT NULL,
	results_json  TEXT NOT NULL DEFAULT '[]',
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON search_sessions(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS ingest_jobs (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	session_id      TEXT NOT NULL,
	provider        TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'queued',
	persist_mode    TEXT NOT NULL DEFAULT 'snippet',
	total_items     INTEGER NOT NULL DEFAULT 0,
	processed_items INTEGER NOT NULL DEFAULT 0,
	stored_items    INTEGER NOT NULL DEFAULT 0,
	failed_items    INTEGER NOT NULL DEFAULT 0,
	duplicate_items INTEGER NOT NULL DEFAULT 0,
	retry_count     INTEGER NOT NULL DEFAULT 0,
	average_quality REAL NOT NULL DEFAULT 0,
	failed_urls     TEXT NOT NULL DEFAULT '[]',
	selected_json   TEXT NOT NULL DEFAULT '[]',
	error_message   TEXT NOT NULL DEFAULT '',
	lease_until     INTEGER NOT NULL DEFAULT 0,
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_user ON ingest_jobs(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_jobs_claim ON ingest_jobs(status, lease_until);

CREATE TABLE IF NOT EXISTS virtual_sources (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	provider   TEXT NOT NULL,
	name       TEXT NOT NULL,
	url        TEXT NOT NULL,
	item_count INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	UNIQUE(user_id, provider)
);

CREATE TABLE IF NOT EXISTS news_items (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	source_id     TEXT NOT NULL REFERENCES virtual_sources(id) ON DELETE CASCADE,
	source_name   TEXT NOT NULL DEFAULT '',
	title         TEXT NOT NULL DEFAULT '',
	url           TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	content       TEXT NOT NULL DEFAULT '',
	author        TEXT NOT NULL DEFAULT '',
	image_url     TEXT NOT NULL DEFAULT '',
	published_at  INTEGER,
	provider      TEXT NOT NULL DEFAULT '',
	engine        TEXT NOT NULL DEFAULT '',
	raw_score     REAL NOT NULL DEFAULT 0,
	quality       REAL NOT NULL DEFAULT 0,
	url_hash      TEXT NOT NULL DEFAULT '',
	metadata_json TEXT NOT NULL DEFAULT '{}',
	crawled_at    INTEGER NOT NULL,
	created_at    INTEGER NOT NULL,
	UNIQUE(user_id, source_id, url)
);
CREATE INDEX IF NOT EXISTS idx_items_user ON news_items(user_id, created_at DESC);

CREATE VIRTUAL TABLE IF NOT EXISTS news_fts USING fts5(
	news_id UNINDEXED,
	user_id UNINDEXED,
	title,
	description,
	content,
	tokenize='unicode61 remove_diacritics 2'
);

CREATE TABLE IF NOT EXISTS search_log (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	query         TEXT NOT NULL,
	provider_used TEXT NOT NULL DEFAULT '',
	result_count  INTEGER NOT NULL DEFAULT 0,
	searched_at   INTEGER NOT NULL
);
`
