package handlers

import (
	"net/http"

	"github.com/Aksuiekbro/debetter-sub002/models"
	"github.com/Aksuiekbro/debetter-sub002/services"
)

type ParticipantHandler struct {
	participantService services.ParticipantService
}

func NewParticipantHandler(ps services.ParticipantService) *ParticipantHandler {
	return &ParticipantHandler{participantService: ps}
}

type registerParticipantsInput struct {
	JudgeIDs   []string `json:"judge_ids"`
	DebaterIDs []string `json:"debater_ids"`
}

// RegisterHandler godoc
// @Summary Register judges and debaters for a tournament
// @Tags participants
// @Description Re-registering an entrant with the same role is a no-op.
// @Accept json
// @Produce json
// @Param tournamentID path string true "Tournament ID"
// @Param input body registerParticipantsInput true "Entrant IDs by role"
// @Success 200 {object} map[string]interface{} "Updated tournament"
// @Failure 404 {object} map[string]interface{} "Tournament or entrant not found"
// @Failure 422 {object} map[string]interface{} "Registration closed or role mismatch"
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/participants [post]
func (h *ParticipantHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input registerParticipantsInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.participantService.RegisterParticipants(r.Context(), tournamentID, input.JudgeIDs, input.DebaterIDs)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListHandler serves GET /tournaments/{tournamentID}/participants?role=
func (h *ParticipantHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var role *models.EntrantRole
	if v := r.URL.Query().Get("role"); v != "" {
		rl := models.EntrantRole(v)
		role = &rl
	}

	participants, err := h.participantService.ListParticipants(r.Context(), tournamentID, role)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if participants == nil {
		participants = []*models.Participant{}
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"participants": participants}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
