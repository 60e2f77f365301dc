package pairing

import (
	"context"
	"strings"

	"github.com/Aksuiekbro/debetter-sub002/models"
)

type GenerateRoundParams struct {
	Tournament *models.Tournament
	Teams      []*models.Team
	JudgeIDs   []string
	RoundParams
}

// RoundGenerator produces the matches of one round.
type RoundGenerator interface {
	GenerateRound(ctx context.Context, params GenerateRoundParams) (*RoundResult, error)

	GetName() string
}

type RandomGenerator struct{}

func NewRandomGenerator() RoundGenerator {
	return &RandomGenerator{}
}

func (g *RandomGenerator) GetName() string {
	return GeneratorRandom
}

func (g *RandomGenerator) GenerateRound(ctx context.Context, params GenerateRoundParams) (*RoundResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return FormPostings(params.Teams, params.JudgeIDs, params.RoundParams)
}

// Generator names. GetName returns the same name GeneratorByName accepts.
const (
	GeneratorRandom     = "random"
	GeneratorRoundRobin = "round_robin"
)

var generators = map[string]func() RoundGenerator{
	GeneratorRandom:     NewRandomGenerator,
	GeneratorRoundRobin: NewRoundRobinGenerator,
}

// GeneratorByName resolves a generator name, ignoring case.
func GeneratorByName(name string) (RoundGenerator, bool) {
	newGen, ok := generators[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	return newGen(), true
}
