package handlers

import (
	"net/http"

	"github.com/Aksuiekbro/debetter-sub002/middleware"
	"github.com/Aksuiekbro/debetter-sub002/models"
	"github.com/Aksuiekbro/debetter-sub002/services"
)

type EvaluationHandler struct {
	evaluationService services.EvaluationService
}

func NewEvaluationHandler(es services.EvaluationService) *EvaluationHandler {
	return &EvaluationHandler{evaluationService: es}
}

type submitEvaluationInput struct {
	// JudgeID is only honoured for organizers entering paper ballots.
	JudgeID      string                `json:"judge_id,omitempty"`
	Scores       []models.SpeakerScore `json:"scores"`
	WinnerTeamID string                `json:"winner_team_id"`
	Notes        *string               `json:"notes,omitempty"`
}

// SubmitHandler godoc
// @Summary Record a judge's evaluation of a posting
// @Tags evaluations
// @Description Judges submit as themselves. Each judge may evaluate a posting once.
// @Accept json
// @Produce json
// @Param postingID path string true "Posting ID"
// @Param input body submitEvaluationInput true "Evaluation"
// @Success 201 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{} "Judge id does not match token"
// @Failure 409 {object} map[string]interface{} "Duplicate evaluation or posting locked"
// @Failure 422 {object} map[string]interface{}
// @Security BearerAuth
// @Router /postings/{postingID}/evaluations [post]
func (h *EvaluationHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	postingID, err := getIDFromURL(r, "postingID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	role, err := middleware.GetUserRoleFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input submitEvaluationInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	judgeID := input.JudgeID
	if role == middleware.RoleJudge {
		if judgeID != "" && judgeID != userID {
			forbiddenResponse(w, r, "judges may only submit their own evaluations")
			return
		}
		judgeID = userID
	}

	evaluation, err := h.evaluationService.SubmitEvaluation(r.Context(), services.EvaluationInput{
		PostingID:    postingID,
		JudgeID:      judgeID,
		Scores:       input.Scores,
		WinnerTeamID: input.WinnerTeamID,
		Notes:        input.Notes,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"evaluation": evaluation}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *EvaluationHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	postingID, err := getIDFromURL(r, "postingID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	evaluations, err := h.evaluationService.ListEvaluations(r.Context(), postingID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if evaluations == nil {
		evaluations = []*models.Evaluation{}
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"evaluations": evaluations}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
