package models

import "time"

const (
	MinSpeakerPoints = 0
	MaxSpeakerPoints = 100
)

// SpeakerScore is one judge's rating of one speaker.
type SpeakerScore struct {
	EntrantID string         `json:"entrant_id"`
	Points    int            `json:"points"`
	Criteria  map[string]int `json:"criteria,omitempty"`
	Feedback  string         `json:"feedback,omitempty"`
}

// Evaluation is immutable once stored. At most one exists per (posting, judge).
type Evaluation struct {
	ID           string         `json:"id" db:"id"`
	TournamentID string         `json:"tournament_id" db:"tournament_id"`
	PostingID    string         `json:"posting_id" db:"posting_id"`
	JudgeID      string         `json:"judge_id" db:"judge_id"`
	Sequence     int            `json:"sequence" db:"seq"`
	Scores       []SpeakerScore `json:"scores" db:"scores"`
	WinnerTeamID string         `json:"winner_team_id" db:"winner_team_id"`
	Notes        *string        `json:"notes,omitempty" db:"notes"`
	SubmittedAt  time.Time      `json:"submitted_at" db:"submitted_at"`
}
