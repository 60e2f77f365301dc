package handlers

import (
	"context"
	"net/http"

	"github.com/Aksuiekbro/debetter-sub002/models"
	"github.com/Aksuiekbro/debetter-sub002/services"
)

type StandingsHandler struct {
	standingsService services.StandingsService
}

func NewStandingsHandler(ss services.StandingsService) *StandingsHandler {
	return &StandingsHandler{standingsService: ss}
}

// GetHandler godoc
// @Summary Ranked standings derived from completed postings
// @Tags standings
// @Produce json
// @Param tournamentID path string true "Tournament ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/standings [get]
func (h *StandingsHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.standingsService.Compute)
}

// RefreshHandler recomputes the standings and stores the team totals.
func (h *StandingsHandler) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.standingsService.Refresh)
}

func (h *StandingsHandler) respond(w http.ResponseWriter, r *http.Request, load func(context.Context, string) ([]models.Standing, error)) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	table, err := load(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if table == nil {
		table = []models.Standing{}
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": table}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// JudgeActivityHandler godoc
// @Summary Evaluations submitted and postings assigned per judge
// @Tags standings
// @Produce json
// @Param tournamentID path string true "Tournament ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/judges/activity [get]
func (h *StandingsHandler) JudgeActivityHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	activity, err := h.standingsService.JudgeActivity(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if activity == nil {
		activity = []models.JudgeActivity{}
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"judges": activity}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SpeakerStandingsHandler godoc
// @Summary Debaters ranked by speaker points from completed postings
// @Tags standings
// @Produce json
// @Param tournamentID path string true "Tournament ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/speakers/standings [get]
func (h *StandingsHandler) SpeakerStandingsHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	speakers, err := h.standingsService.SpeakerStandings(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"speakers": speakers}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
