// Package pairing groups entrants into teams and teams into matches. It does
// no I/O; persisting the result is up to the caller.
package pairing

import (
	"fmt"

	"github.com/Aksuiekbro/debetter-sub002/apperrors"
	"github.com/Aksuiekbro/debetter-sub002/models"
)

type TeamsResult struct {
	// Teams are numbered from 1 in draw order and have no ID yet.
	Teams []*models.Team
	// Leftover is the entrant left without a partner when the pool is odd.
	Leftover *models.Entrant
	Seed     int64
}

// FormTeams shuffles a copy of entrants and pairs them consecutively. The
// first of each pair leads, the second speaks.
func FormTeams(entrants []*models.Entrant, seed *int64) (*TeamsResult, error) {
	if len(entrants) < 2 {
		return nil, apperrors.InsufficientEntrants(len(entrants))
	}
	seen := make(map[string]struct{}, len(entrants))
	for i, e := range entrants {
		if e == nil || e.ID == "" {
			return nil, apperrors.Validation("entrant pool is invalid",
				map[string]string{fmt.Sprintf("entrants[%d]", i): "entrant id is required"})
		}
		if _, dup := seen[e.ID]; dup {
			return nil, apperrors.Validation("entrant pool is invalid",
				map[string]string{fmt.Sprintf("entrants[%d]", i): "entrant is listed more than once"}).
				WithRef("entrant_id", e.ID)
		}
		seen[e.ID] = struct{}{}
	}

	used, err := resolveSeed(seed)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	pool := make([]*models.Entrant, len(entrants))
	copy(pool, entrants)
	r := newRand(used)
	r.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	result := &TeamsResult{Seed: used, Teams: make([]*models.Team, 0, len(pool)/2)}
	for i := 0; i+1 < len(pool); i += 2 {
		n := i/2 + 1
		result.Teams = append(result.Teams, &models.Team{
			Name:     fmt.Sprintf("Team %d", n),
			Position: n,
			Members: []models.TeamMember{
				{EntrantID: pool[i].ID, Role: models.MemberLeader},
				{EntrantID: pool[i+1].ID, Role: models.MemberSpeaker},
			},
		})
	}
	if len(pool)%2 == 1 {
		result.Leftover = pool[len(pool)-1]
	}
	return result, nil
}
