package models

import "time"

// TournamentStatus mirrors the status column of the tournaments table.
type TournamentStatus string

const (
	TournamentDraft        TournamentStatus = "draft"
	TournamentRegistration TournamentStatus = "registration"
	TournamentInProgress   TournamentStatus = "in_progress"
	TournamentCompleted    TournamentStatus = "completed"
	TournamentCancelled    TournamentStatus = "cancelled"
)

func (s TournamentStatus) Valid() bool {
	switch s {
	case TournamentDraft, TournamentRegistration, TournamentInProgress, TournamentCompleted, TournamentCancelled:
		return true
	}
	return false
}

func (s TournamentStatus) IsTerminal() bool {
	return s == TournamentCompleted || s == TournamentCancelled
}

type Tournament struct {
	ID                   string           `json:"id" db:"id"`
	Name                 string           `json:"name" db:"name"`
	Status               TournamentStatus `json:"status" db:"status"`
	RegistrationDeadline *time.Time       `json:"registration_deadline,omitempty" db:"registration_deadline"`
	RequiredJudges       int              `json:"required_judges" db:"required_judges"`
	// Quorum is the number of accepted evaluations that finalizes a posting.
	Quorum int `json:"quorum" db:"quorum"`
	// AssignedJudgesOnly restricts evaluation to judges assigned to the posting.
	AssignedJudgesOnly bool      `json:"assigned_judges_only" db:"assigned_judges_only"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`

	JudgeIDs   []string `json:"judge_ids" db:"-"`
	DebaterIDs []string `json:"debater_ids" db:"-"`
	TeamIDs    []string `json:"team_ids" db:"-"`
	PostingIDs []string `json:"posting_ids" db:"-"`
}

// RegistrationOpen reports whether participants may still be registered at now.
func (t *Tournament) RegistrationOpen(now time.Time) bool {
	if t.Status != TournamentDraft && t.Status != TournamentRegistration {
		return false
	}
	return t.RegistrationDeadline == nil || now.Before(*t.RegistrationDeadline)
}
