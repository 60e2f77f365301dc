package services

import (
	"github.com/Aksuiekbro/debetter-sub002/apperrors"
	"github.com/Aksuiekbro/debetter-sub002/models"
)

// Errors shared by several services. Every one of them is an
// *apperrors.Error so the HTTP layer can map it by kind.

func errRegistrationClosed(t *models.Tournament) error {
	return apperrors.Validation("registration is closed", map[string]string{
		"tournament": "registration is not open in status " + string(t.Status) + " or the deadline has passed",
	}).WithRef("tournament_id", t.ID)
}

func errTournamentFinished(t *models.Tournament) error {
	return apperrors.Newf(apperrors.KindConflict, "tournament is %s", t.Status).WithRef("tournament_id", t.ID)
}

func errPostingsExist(tournamentID string) error {
	return apperrors.Conflict("tournament already has postings").WithRef("tournament_id", tournamentID)
}

func errNotRegisteredAs(entrantID string, role models.EntrantRole, field string) error {
	return apperrors.Validation("entrant is not registered as "+string(role), map[string]string{
		field: "entrant " + entrantID + " is not a registered " + string(role),
	}).WithRef("entrant_id", entrantID)
}

func errWrongTournament(entity, id, tournamentID string) error {
	return apperrors.Newf(apperrors.KindNotFound, "%s does not belong to the tournament", entity).
		WithRef(entity+"_id", id).
		WithRef("tournament_id", tournamentID)
}

var errMediaNotConfigured = apperrors.New(apperrors.KindInternal, "media storage is not configured")
