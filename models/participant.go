package models

import "time"

// Participant is an entrant's registration in one tournament.
type Participant struct {
	TournamentID string      `json:"tournament_id" db:"tournament_id"`
	EntrantID    string      `json:"entrant_id" db:"entrant_id"`
	Role         EntrantRole `json:"role" db:"role"`
	RegisteredAt time.Time   `json:"registered_at" db:"registered_at"`

	DisplayName string `json:"display_name,omitempty" db:"-"`
}
