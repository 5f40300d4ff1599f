package store

// SchemaSQL is the schema this service reads and writes, per spec.md §6.6.
// It deliberately omits every column and table owned by the out-of-scope
// HTTP REST/CRUD surface (spec.md §1) — only the columns the Correlator
// actually touches.
const SchemaSQL = `
CREATE TABLE IF NOT EXISTS calls (
	id            TEXT PRIMARY KEY,
	talkgroup_id  INT NOT NULL DEFAULT 0,
	frequency     BIGINT NOT NULL DEFAULT 0,
	start_time    BIGINT NOT NULL,
	stop_time     BIGINT,
	duration      REAL,
	emergency     BOOLEAN NOT NULL DEFAULT false,
	encrypted     BOOLEAN NOT NULL DEFAULT false,
	audio_file    TEXT,
	audio_type    TEXT,
	system_type   TEXT NOT NULL,
	channel_id    INT,
	created_at    BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS call_sources (
	id         BIGSERIAL PRIMARY KEY,
	call_id    TEXT NOT NULL REFERENCES calls(id) ON DELETE CASCADE,
	source_id  INT NOT NULL,
	timestamp  BIGINT NOT NULL,
	position   REAL NOT NULL DEFAULT 0,
	emergency  BOOLEAN NOT NULL DEFAULT false,
	tag        TEXT
);
CREATE INDEX IF NOT EXISTS call_sources_call_id_idx ON call_sources(call_id);

CREATE TABLE IF NOT EXISTS talkgroups (
	id           INT PRIMARY KEY,
	alpha_tag    TEXT,
	description  TEXT,
	group_name   TEXT,
	group_tag    TEXT,
	mode         TEXT,
	updated_at   BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS channels (
	id           BIGSERIAL PRIMARY KEY,
	frequency    BIGINT NOT NULL UNIQUE,
	alpha_tag    TEXT,
	description  TEXT,
	group_name   TEXT,
	group_tag    TEXT,
	mode         TEXT,
	system_type  TEXT,
	updated_at   BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS system_config (
	key         TEXT PRIMARY KEY,
	value       TEXT NOT NULL,
	updated_at  BIGINT NOT NULL
);

INSERT INTO system_config (key, value, updated_at)
VALUES ('system_type', 'p25', extract(epoch from now())::bigint)
ON CONFLICT (key) DO NOTHING;

INSERT INTO system_config (key, value, updated_at)
VALUES ('system_short_name', 'default', extract(epoch from now())::bigint)
ON CONFLICT (key) DO NOTHING;
`
