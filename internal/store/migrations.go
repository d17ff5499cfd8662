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

CREATE TABLE IF NOT EXISTS tasks (
	uuid        TEXT PRIMARY KEY,
	target      TEXT NOT NULL,
	unique_key  TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	project     TEXT NOT NULL DEFAULT '',
	priority    TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'pending'
		CHECK(status IN ('pending', 'completed')),
	tags        TEXT NOT NULL DEFAULT '[]',
	annotations TEXT NOT NULL DEFAULT '[]',
	udas        TEXT NOT NULL DEFAULT '{}',
	entry       DATETIME NOT NULL,
	modified    DATETIME NOT NULL,
	end_time    DATETIME,
	UNIQUE(target, unique_key)
);

CREATE INDEX IF NOT EXISTS idx_tasks_target_status ON tasks(target, status);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_tasks_modified ON tasks(modified);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
