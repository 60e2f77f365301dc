package pairing

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/Aksuiekbro/debetter-sub002/apperrors"
	"github.com/Aksuiekbro/debetter-sub002/models"
)

type RoundParams struct {
	Round          int
	JudgesPerMatch int
	Seed           *int64
}

type RoundResult struct {
	// Postings carry round, match number, teams and judges. Identity,
	// tournament and status are filled in by the caller.
	Postings []*models.Posting
	// LeftoverTeam is the team left unpaired when the pool is odd. No bye is created.
	LeftoverTeam *models.Team
	Seed         int64
}

// FormPostings shuffles teams and pairs them consecutively into matches
// numbered from 1. Each match gets JudgesPerMatch distinct judges; a judge may
// sit on several matches of the same round, least loaded judges first.
func FormPostings(teams []*models.Team, judgePool []string, params RoundParams) (*RoundResult, error) {
	judges, err := checkRound(teams, judgePool, params)
	if err != nil {
		return nil, err
	}

	used, err := resolveSeed(params.Seed)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	r := newRand(used)

	pool := make([]*models.Team, len(teams))
	copy(pool, teams)
	r.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	load := make(map[string]int, len(judges))
	result := &RoundResult{Seed: used, Postings: make([]*models.Posting, 0, len(pool)/2)}
	for i := 0; i+1 < len(pool); i += 2 {
		result.Postings = append(result.Postings, &models.Posting{
			Round:       params.Round,
			MatchNumber: i/2 + 1,
			Team1ID:     pool[i].ID,
			Team2ID:     pool[i+1].ID,
			JudgeIDs:    drawJudges(r, judges, load, params.JudgesPerMatch),
		})
	}
	if len(pool)%2 == 1 {
		result.LeftoverTeam = pool[len(pool)-1]
	}
	return result, nil
}

// checkRound validates the round parameters and the team pool and returns the
// deduplicated judge pool.
func checkRound(teams []*models.Team, judgePool []string, params RoundParams) ([]string, error) {
	fields := apperrors.FieldErrors{}
	fields.Check(params.Round >= 1, "round", "must be at least 1")
	fields.Check(params.JudgesPerMatch >= 0, "judges_per_match", "must not be negative")

	judges := uniqueStrings(judgePool)
	fields.Check(params.JudgesPerMatch <= len(judges), "judges_per_match",
		fmt.Sprintf("needs %d judges per match but only %d are available", params.JudgesPerMatch, len(judges)))
	if err := fields.Err("round parameters are invalid"); err != nil {
		return nil, err
	}

	if len(teams) < 2 {
		return nil, apperrors.InsufficientTeams(len(teams))
	}
	seen := make(map[string]struct{}, len(teams))
	for i, t := range teams {
		if t == nil || t.ID == "" {
			return nil, apperrors.Validation("team pool is invalid",
				map[string]string{fmt.Sprintf("teams[%d]", i): "team id is required"})
		}
		if _, dup := seen[t.ID]; dup {
			return nil, apperrors.Validation("team pool is invalid",
				map[string]string{fmt.Sprintf("teams[%d]", i): "team is listed more than once"}).
				WithRef("team_id", t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	return judges, nil
}

// drawJudges picks k distinct judges. Candidates are shuffled and then
// stably ordered by their load in this round.
func drawJudges(r *rand.Rand, judges []string, load map[string]int, k int) []string {
	if k == 0 {
		return []string{}
	}
	candidates := slices.Clone(judges)
	r.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
	slices.SortStableFunc(candidates, func(a, b string) int { return load[a] - load[b] })

	picked := candidates[:k]
	for _, id := range picked {
		load[id]++
	}
	return picked
}

func uniqueStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
