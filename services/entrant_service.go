package services

import (
	"context"
	"strings"
	"time"

	"github.com/Aksuiekbro/debetter-sub002/apperrors"
	"github.com/Aksuiekbro/debetter-sub002/models"
	"github.com/Aksuiekbro/debetter-sub002/repositories"
)

type CreateEntrantInput struct {
	DisplayName string             `json:"display_name"`
	Contact     *string            `json:"contact,omitempty"`
	Role        models.EntrantRole `json:"role"`
	EnrolledAt  *time.Time         `json:"enrolled_at,omitempty"`
}

type EntrantService interface {
	CreateEntrant(ctx context.Context, input CreateEntrantInput) (*models.Entrant, error)
	GetEntrant(ctx context.Context, id string) (*models.Entrant, error)
	ListEntrants(ctx context.Context, filter repositories.ListEntrantsFilter) ([]*models.Entrant, error)
}

type entrantService struct {
	entrants repositories.EntrantRepository
	settings Settings
}

func NewEntrantService(entrants repositories.EntrantRepository, settings Settings) EntrantService {
	return &entrantService{entrants: entrants, settings: settings.withDefaults()}
}

func (s *entrantService) CreateEntrant(ctx context.Context, input CreateEntrantInput) (*models.Entrant, error) {
	e := &models.Entrant{
		ID:          newID(),
		DisplayName: strings.TrimSpace(input.DisplayName),
		Contact:     trimmed(input.Contact),
		Role:        input.Role,
		EnrolledAt:  s.settings.now(),
	}
	if e.Role == "" {
		e.Role = models.RoleDebater
	}
	if input.EnrolledAt != nil {
		e.EnrolledAt = input.EnrolledAt.UTC()
	}

	fields := apperrors.FieldErrors{}
	fields.Check(e.DisplayName != "", "display_name", "is required")
	fields.Check(e.Role.Valid(), "role", "must be debater, judge or observer")
	if err := fields.Err("invalid entrant"); err != nil {
		return nil, err
	}

	if err := s.entrants.Create(ctx, nil, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *entrantService) GetEntrant(ctx context.Context, id string) (*models.Entrant, error) {
	return s.entrants.GetByID(ctx, nil, id)
}

func (s *entrantService) ListEntrants(ctx context.Context, filter repositories.ListEntrantsFilter) ([]*models.Entrant, error) {
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, apperrors.Validation("invalid filter", map[string]string{"role": "unknown role"})
	}
	return s.entrants.List(ctx, nil, filter)
}
