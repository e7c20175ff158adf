package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS family_members (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	color      TEXT NOT NULL DEFAULT '#333333',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS calendar_sources (
	id               TEXT PRIMARY KEY,
	label            TEXT NOT NULL,
	url              TEXT NOT NULL DEFAULT '',
	family_member_id TEXT NOT NULL REFERENCES family_members(id),
	owner_email      TEXT,
	created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS recurring_templates (
	id              TEXT PRIMARY KEY,
	title           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	recurrence_type TEXT NOT NULL,
	recurrence_day  INTEGER NOT NULL DEFAULT 0,
	assigned_to     TEXT REFERENCES family_members(id),
	has_due_date    INTEGER NOT NULL DEFAULT 0 CHECK(has_due_date IN (0, 1)),
	active          INTEGER NOT NULL DEFAULT 1 CHECK(active IN (0, 1)),
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tasks (
	id                    TEXT PRIMARY KEY,
	title                 TEXT NOT NULL,
	description           TEXT NOT NULL DEFAULT '',
	assigned_to           TEXT REFERENCES family_members(id),
	recurring_template_id TEXT,
	completed             INTEGER NOT NULL DEFAULT 0 CHECK(completed IN (0, 1)),
	created_at            DATETIME NOT NULL,
	updated_at            DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_template ON tasks(recurring_template_id);
CREATE INDEX IF NOT EXISTS idx_tasks_completed ON tasks(completed);
CREATE INDEX IF NOT EXISTS idx_templates_active ON recurring_templates(active);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
ALTER TABLE tasks ADD COLUMN due_date TEXT;
CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks(due_date);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
	{
		// Reminder windows on both templates and generated instances.
		version: 3,
		sql: `
ALTER TABLE tasks ADD COLUMN remind_days_before INTEGER;
ALTER TABLE recurring_templates ADD COLUMN remind_days_before INTEGER;

INSERT INTO schema_version (version) VALUES (3);
`,
	},
	{
		// CalDAV sources: protocol type plus basic-auth credentials.
		version: 4,
		sql: `
ALTER TABLE calendar_sources ADD COLUMN type TEXT NOT NULL DEFAULT 'ics';
ALTER TABLE calendar_sources ADD COLUMN username TEXT;
ALTER TABLE calendar_sources ADD COLUMN password TEXT;

INSERT INTO schema_version (version) VALUES (4);
`,
	},
	{
		// last_generated_date supersedes the creation-timestamp cutoff as
		// the recurrence anchor.
		version: 5,
		sql: `
ALTER TABLE recurring_templates ADD COLUMN last_generated_date TEXT;

INSERT INTO schema_version (version) VALUES (5);
`,
	},
}
