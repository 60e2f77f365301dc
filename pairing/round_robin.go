package pairing

import (
	"cmp"
	"context"
	"slices"

	"github.com/Aksuiekbro/debetter-sub002/apperrors"
	"github.com/Aksuiekbro/debetter-sub002/models"
)

// RoundRobinGenerator schedules rounds with the circle method so that, over
// n-1 rounds (n rounded up to even), every team meets every other team once.
// Round r of the cycle is fully determined by the team positions; the seed
// only drives judge assignment.
type RoundRobinGenerator struct{}

func NewRoundRobinGenerator() RoundGenerator {
	return &RoundRobinGenerator{}
}

func (g *RoundRobinGenerator) GetName() string {
	return GeneratorRoundRobin
}

func (g *RoundRobinGenerator) GenerateRound(ctx context.Context, params GenerateRoundParams) (*RoundResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	judges, err := checkRound(params.Teams, params.JudgeIDs, params.RoundParams)
	if err != nil {
		return nil, err
	}

	used, err := resolveSeed(params.Seed)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	r := newRand(used)

	order := slices.Clone(params.Teams)
	slices.SortStableFunc(order, func(a, b *models.Team) int {
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	// A nil slot stands for "sits out" when the pool is odd.
	if len(order)%2 == 1 {
		order = append(order, nil)
	}

	circle := rotate(order, params.Round-1)
	n := len(circle)
	load := make(map[string]int, len(judges))
	result := &RoundResult{Seed: used, Postings: make([]*models.Posting, 0, n/2)}
	for i := 0; i < n/2; i++ {
		home, away := circle[i], circle[n-1-i]
		if home == nil || away == nil {
			result.LeftoverTeam = cmp.Or(home, away)
			continue
		}
		// Alternate sides for the fixed team so it does not always open.
		if i == 0 && params.Round%2 == 0 {
			home, away = away, home
		}
		result.Postings = append(result.Postings, &models.Posting{
			Round:       params.Round,
			MatchNumber: len(result.Postings) + 1,
			Team1ID:     home.ID,
			Team2ID:     away.ID,
			JudgeIDs:    drawJudges(r, judges, load, params.JudgesPerMatch),
		})
	}
	return result, nil
}

// rotate keeps the first element fixed and turns the rest k steps.
func rotate(teams []*models.Team, k int) []*models.Team {
	n := len(teams)
	out := make([]*models.Team, n)
	out[0] = teams[0]
	if n <= 1 {
		return out
	}
	k %= n - 1
	for i := 1; i < n; i++ {
		out[1+(i-1+k)%(n-1)] = teams[i]
	}
	return out
}
