package postgres

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_members",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_activity_ledgers",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_ephemeral_sessions",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: member profiles
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS members (
	id            TEXT PRIMARY KEY,
	display_name  TEXT NOT NULL DEFAULT '',
	experience    BIGINT NOT NULL DEFAULT 0 CHECK (experience >= 0),
	checked_in_at TIMESTAMP WITH TIME ZONE,
	created_at    TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_members_experience ON members (experience DESC);
`

const migration001Down = `
DROP TABLE IF EXISTS members;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: attendance, wakeup, and study ledgers
// ══════════════════════════════════════════════════════════════════════════════

// One row per (member, civil day). The primary key is what makes a repeat
// check-in or wake-up on the same day a detectable no-op.
const migration002Up = `
CREATE TABLE IF NOT EXISTS attendance (
	user_id     TEXT NOT NULL,
	day         DATE NOT NULL,
	recorded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, day)
);

CREATE INDEX IF NOT EXISTS idx_attendance_day ON attendance (day);

CREATE TABLE IF NOT EXISTS wakeup (
	user_id     TEXT NOT NULL,
	day         DATE NOT NULL,
	recorded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, day)
);

CREATE INDEX IF NOT EXISTS idx_wakeup_day ON wakeup (day);

CREATE TABLE IF NOT EXISTS study (
	user_id    TEXT NOT NULL,
	day        DATE NOT NULL,
	minutes    INTEGER NOT NULL DEFAULT 0 CHECK (minutes >= 0),
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, day)
);

CREATE INDEX IF NOT EXISTS idx_study_day ON study (day);
`

const migration002Down = `
DROP TABLE IF EXISTS study;
DROP TABLE IF EXISTS wakeup;
DROP TABLE IF EXISTS attendance;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: ephemeral session state
// ══════════════════════════════════════════════════════════════════════════════

// Pending wake-up requests and open study sessions live in the database so
// a restart loses neither.
const migration003Up = `
CREATE TABLE IF NOT EXISTS wakeup_pending (
	user_id          TEXT PRIMARY KEY,
	notification_ref TEXT NOT NULL DEFAULT '',
	requested_at     TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS study_sessions (
	user_id          TEXT PRIMARY KEY,
	room             TEXT NOT NULL DEFAULT '',
	started_at       TIMESTAMP WITH TIME ZONE NOT NULL,
	multiplier       INTEGER NOT NULL DEFAULT 1 CHECK (multiplier >= 1),
	notification_ref TEXT NOT NULL DEFAULT ''
);
`

const migration003Down = `
DROP TABLE IF EXISTS study_sessions;
DROP TABLE IF EXISTS wakeup_pending;
`
