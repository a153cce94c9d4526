package store

// Schema is applied on every open; every statement is idempotent so it is
// safe to run against an existing database.
const Schema = `
CREATE TABLE IF NOT EXISTS dedupe_events (
	event_id TEXT PRIMARY KEY,
	received_at REAL
);

CREATE TABLE IF NOT EXISTS raw_events (
	event_id TEXT PRIMARY KEY,
	received_at REAL,
	payload_json TEXT
);

CREATE TABLE IF NOT EXISTS messages (
	channel TEXT NOT NULL,
	ts TEXT NOT NULL,
	thread_ts TEXT NOT NULL,
	user TEXT,
	text TEXT,
	reactions_json TEXT,
	is_deleted INTEGER DEFAULT 0,
	edited_at REAL,
	created_at REAL,
	PRIMARY KEY (channel, ts)
);

CREATE TABLE IF NOT EXISTS threads (
	thread_ts TEXT PRIMARY KEY,
	channel TEXT NOT NULL,
	root_ts TEXT NOT NULL,
	created_at REAL,
	last_activity REAL,
	reply_count INTEGER,
	reaction_count INTEGER,
	participants_json TEXT
);

CREATE TABLE IF NOT EXISTS digest_items (
	thread_ts TEXT PRIMARY KEY,
	channel TEXT NOT NULL,
	title TEXT,
	labels_json TEXT,
	entities_json TEXT,
	urgency REAL,
	summary TEXT,
	updated_at REAL
);

CREATE TABLE IF NOT EXISTS embeddings (
	thread_ts TEXT PRIMARY KEY,
	dim INTEGER,
	vector_json TEXT,
	updated_at REAL
);

CREATE TABLE IF NOT EXISTS job_metrics (
	queue_name TEXT PRIMARY KEY,
	processed_count INTEGER,
	last_processed_at REAL
);

CREATE TABLE IF NOT EXISTS roles (
	role_id TEXT PRIMARY KEY,
	name TEXT,
	description TEXT,
	role_vector_json TEXT,
	updated_at REAL
);

CREATE TABLE IF NOT EXISTS phases (
	phase_key TEXT PRIMARY KEY,
	description TEXT,
	phase_vector_json TEXT,
	updated_at REAL
);

CREATE TABLE IF NOT EXISTS projects (
	project_id TEXT PRIMARY KEY,
	name TEXT,
	current_phase TEXT,
	channels_json TEXT,
	created_at REAL,
	updated_at REAL
);

CREATE TABLE IF NOT EXISTS users (
	user_id TEXT PRIMARY KEY,
	name TEXT,
	email TEXT,
	role_id TEXT,
	user_vector_json TEXT,
	created_at REAL,
	updated_at REAL
);

CREATE TABLE IF NOT EXISTS user_project (
	user_id TEXT,
	project_id TEXT,
	PRIMARY KEY (user_id, project_id)
);

CREATE TABLE IF NOT EXISTS digests (
	digest_id TEXT PRIMARY KEY,
	user_id TEXT,
	project_id TEXT,
	created_at REAL,
	items_json TEXT
);

CREATE TABLE IF NOT EXISTS interactions (
	interaction_id TEXT PRIMARY KEY,
	user_id TEXT,
	project_id TEXT,
	thread_ts TEXT,
	action TEXT,
	created_at REAL
);

CREATE TABLE IF NOT EXISTS slack_workspaces (
	team_id TEXT PRIMARY KEY,
	access_token TEXT,
	bot_user_id TEXT,
	installed_at REAL,
	scopes_json TEXT
);

CREATE TABLE IF NOT EXISTS project_channels (
	project_id TEXT,
	channel_id TEXT,
	PRIMARY KEY (project_id, channel_id)
);

CREATE TABLE IF NOT EXISTS user_channels (
	user_id TEXT,
	channel_id TEXT,
	PRIMARY KEY (user_id, channel_id)
);

CREATE TABLE IF NOT EXISTS digest_schedules (
	schedule_id TEXT PRIMARY KEY,
	team_id TEXT,
	project_id TEXT,
	user_id TEXT,
	time_of_day TEXT,
	timezone TEXT,
	is_enabled INTEGER,
	last_digest_id TEXT,
	created_at REAL
);

CREATE TABLE IF NOT EXISTS digest_deliveries (
	delivery_id TEXT PRIMARY KEY,
	digest_id TEXT,
	schedule_id TEXT,
	team_id TEXT,
	user_id TEXT,
	delivered_at REAL,
	status TEXT,
	slack_ts TEXT,
	error TEXT
);
`
