package models

// Standing is one row of a tournament's ranked table.
type Standing struct {
	Rank     int    `json:"rank"`
	TeamID   string `json:"team_id"`
	TeamName string `json:"team_name"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Points   int    `json:"points"`
	Played   int    `json:"played"`
}

type JudgeActivity struct {
	JudgeID     string `json:"judge_id"`
	DisplayName string `json:"display_name"`
	Evaluations int    `json:"evaluations"`
	Assigned    int    `json:"assigned"`
}

// SpeakerStanding ranks one debater by the speaker points judges gave them
// in completed postings.
type SpeakerStanding struct {
	Rank          int     `json:"rank"`
	EntrantID     string  `json:"entrant_id"`
	DisplayName   string  `json:"display_name"`
	TeamID        string  `json:"team_id,omitempty"`
	TotalPoints   int     `json:"total_points"`
	Ballots       int     `json:"ballots"`
	GamesPlayed   int     `json:"games_played"`
	AveragePoints float64 `json:"average_points"`
}
