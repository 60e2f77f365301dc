package models

import "time"

type EntrantRole string

const (
	RoleDebater  EntrantRole = "debater"
	RoleJudge    EntrantRole = "judge"
	RoleObserver EntrantRole = "observer"
)

func (r EntrantRole) Valid() bool {
	return r == RoleDebater || r == RoleJudge || r == RoleObserver
}

// Entrant is a person that can be registered into tournaments.
type Entrant struct {
	ID          string      `json:"id" db:"id"`
	DisplayName string      `json:"display_name" db:"display_name"`
	Contact     *string     `json:"contact,omitempty" db:"contact"`
	EnrolledAt  time.Time   `json:"enrolled_at" db:"enrolled_at"`
	Role        EntrantRole `json:"role" db:"role"`
}
