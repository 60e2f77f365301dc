package models

import (
	"slices"
	"time"
)

type PostingStatus string

const (
	PostingScheduled  PostingStatus = "scheduled"
	PostingInProgress PostingStatus = "in_progress"
	PostingCompleted  PostingStatus = "completed"
	PostingCancelled  PostingStatus = "cancelled"
)

func (s PostingStatus) Valid() bool {
	switch s {
	case PostingScheduled, PostingInProgress, PostingCompleted, PostingCancelled:
		return true
	}
	return false
}

func (s PostingStatus) IsTerminal() bool {
	return s == PostingCompleted || s == PostingCancelled
}

// Posting is a scheduled match between two teams of the same tournament.
// Round is zero for manually created postings.
type Posting struct {
	ID              string        `json:"id" db:"id"`
	TournamentID    string        `json:"tournament_id" db:"tournament_id"`
	Round           int           `json:"round" db:"round"`
	MatchNumber     int           `json:"match_number" db:"match_number"`
	Team1ID         string        `json:"team1_id" db:"team1_id"`
	Team2ID         string        `json:"team2_id" db:"team2_id"`
	JudgeIDs        []string      `json:"judge_ids" db:"-"`
	Theme           *string       `json:"theme,omitempty" db:"theme"`
	CustomModel     *string       `json:"custom_model,omitempty" db:"custom_model"`
	Location        *string       `json:"location,omitempty" db:"location"`
	VirtualLink     *string       `json:"virtual_link,omitempty" db:"virtual_link"`
	ScheduledTime   *time.Time    `json:"scheduled_time,omitempty" db:"scheduled_time"`
	Status          PostingStatus `json:"status" db:"status"`
	WinnerTeamID    *string       `json:"winner_team_id,omitempty" db:"winner_team_id"`
	BatchName       *string       `json:"batch_name,omitempty" db:"batch_name"`
	EvaluationCount int           `json:"evaluation_count" db:"evaluation_count"`
	Version         int           `json:"version" db:"version"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`

	BallotKey *string `json:"-" db:"ballot_key"`
	BallotURL *string `json:"ballot_url,omitempty" db:"-"`
	AudioKey  *string `json:"-" db:"audio_key"`
	AudioURL  *string `json:"audio_url,omitempty" db:"-"`
}

func (p *Posting) HasTeam(teamID string) bool {
	return teamID != "" && (p.Team1ID == teamID || p.Team2ID == teamID)
}

// Opponent returns the other team of the posting, or "" if teamID is not playing.
func (p *Posting) Opponent(teamID string) string {
	switch teamID {
	case p.Team1ID:
		return p.Team2ID
	case p.Team2ID:
		return p.Team1ID
	}
	return ""
}

func (p *Posting) HasJudge(judgeID string) bool {
	return slices.Contains(p.JudgeIDs, judgeID)
}
