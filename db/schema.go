package db

import (
	"context"
	"database/sql"
	"fmt"
)

// The schema is written in the subset of SQL shared by Postgres and SQLite
// (>= 3.35): TEXT identifiers, TIMESTAMP columns holding UTC values,
// partial unique indexes.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS tournaments (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'draft',
		registration_deadline TIMESTAMP NULL,
		required_judges INTEGER NOT NULL DEFAULT 1,
		quorum INTEGER NOT NULL DEFAULT 1,
		assigned_judges_only BOOLEAN NOT NULL DEFAULT FALSE,
		standings_completed INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		CHECK (quorum >= 1),
		CHECK (required_judges >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS entrants (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		contact TEXT NULL,
		role TEXT NOT NULL,
		enrolled_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tournament_participants (
		tournament_id TEXT NOT NULL REFERENCES tournaments(id) ON DELETE CASCADE,
		entrant_id TEXT NOT NULL REFERENCES entrants(id),
		role TEXT NOT NULL,
		registered_at TIMESTAMP NOT NULL,
		PRIMARY KEY (tournament_id, entrant_id)
	)`,
	`CREATE TABLE IF NOT EXISTS teams (
		id TEXT PRIMARY KEY,
		tournament_id TEXT NOT NULL REFERENCES tournaments(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		position INTEGER NOT NULL,
		wins INTEGER NOT NULL DEFAULT 0,
		losses INTEGER NOT NULL DEFAULT 0,
		points INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		UNIQUE (tournament_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS team_members (
		team_id TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
		tournament_id TEXT NOT NULL REFERENCES tournaments(id) ON DELETE CASCADE,
		entrant_id TEXT NOT NULL REFERENCES entrants(id),
		role TEXT NOT NULL,
		PRIMARY KEY (team_id, entrant_id),
		UNIQUE (tournament_id, entrant_id)
	)`,
	`CREATE TABLE IF NOT EXISTS postings (
		id TEXT PRIMARY KEY,
		tournament_id TEXT NOT NULL REFERENCES tournaments(id) ON DELETE CASCADE,
		round INTEGER NOT NULL DEFAULT 0,
		match_number INTEGER NOT NULL DEFAULT 0,
		team1_id TEXT NOT NULL REFERENCES teams(id),
		team2_id TEXT NOT NULL REFERENCES teams(id),
		theme TEXT NULL,
		custom_model TEXT NULL,
		location TEXT NULL,
		virtual_link TEXT NULL,
		scheduled_time TIMESTAMP NULL,
		status TEXT NOT NULL DEFAULT 'scheduled',
		winner_team_id TEXT NULL REFERENCES teams(id),
		batch_name TEXT NULL,
		evaluation_count INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 1,
		ballot_key TEXT NULL,
		audio_key TEXT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		CHECK (team1_id <> team2_id),
		CHECK (theme IS NULL OR custom_model IS NULL),
		CHECK (location IS NULL OR virtual_link IS NULL)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS postings_round_match_uidx
		ON postings (tournament_id, round, match_number) WHERE round > 0`,
	`CREATE INDEX IF NOT EXISTS postings_tournament_status_idx
		ON postings (tournament_id, status)`,
	`CREATE TABLE IF NOT EXISTS posting_judges (
		posting_id TEXT NOT NULL REFERENCES postings(id) ON DELETE CASCADE,
		judge_id TEXT NOT NULL REFERENCES entrants(id),
		position INTEGER NOT NULL,
		PRIMARY KEY (posting_id, judge_id)
	)`,
	`CREATE TABLE IF NOT EXISTS evaluations (
		id TEXT PRIMARY KEY,
		tournament_id TEXT NOT NULL REFERENCES tournaments(id) ON DELETE CASCADE,
		posting_id TEXT NOT NULL REFERENCES postings(id) ON DELETE CASCADE,
		judge_id TEXT NOT NULL REFERENCES entrants(id),
		seq INTEGER NOT NULL,
		scores TEXT NOT NULL,
		winner_team_id TEXT NOT NULL REFERENCES teams(id),
		notes TEXT NULL,
		submitted_at TIMESTAMP NOT NULL,
		UNIQUE (posting_id, judge_id)
	)`,
	`CREATE INDEX IF NOT EXISTS evaluations_tournament_idx ON evaluations (tournament_id)`,
}

// Migrate creates every table and index that does not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i+1, err)
		}
	}
	return nil
}
