package models

import "time"

type MemberRole string

const (
	MemberLeader  MemberRole = "leader"
	MemberSpeaker MemberRole = "speaker"
)

type TeamMember struct {
	EntrantID string     `json:"entrant_id" db:"entrant_id"`
	Role      MemberRole `json:"role" db:"role"`
}

// Team belongs to exactly one tournament. Wins, Losses and Points are
// derived by the standings aggregator and overwritten on refresh.
type Team struct {
	ID           string       `json:"id" db:"id"`
	TournamentID string       `json:"tournament_id" db:"tournament_id"`
	Name         string       `json:"name" db:"name"`
	Position     int          `json:"position" db:"position"`
	Members      []TeamMember `json:"members" db:"-"`
	Wins         int          `json:"wins" db:"wins"`
	Losses       int          `json:"losses" db:"losses"`
	Points       int          `json:"points" db:"points"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}

func (t *Team) HasMember(entrantID string) bool {
	for _, m := range t.Members {
		if m.EntrantID == entrantID {
			return true
		}
	}
	return false
}
