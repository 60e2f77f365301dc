package handlers

import (
	"net/http"

	"github.com/Aksuiekbro/debetter-sub002/models"
	"github.com/Aksuiekbro/debetter-sub002/repositories"
	"github.com/Aksuiekbro/debetter-sub002/services"
)

type EntrantHandler struct {
	entrantService services.EntrantService
}

func NewEntrantHandler(es services.EntrantService) *EntrantHandler {
	return &EntrantHandler{entrantService: es}
}

// CreateHandler godoc
// @Summary Enroll a debater, judge or observer
// @Tags entrants
// @Accept json
// @Produce json
// @Param input body services.CreateEntrantInput true "Entrant"
// @Success 201 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Security BearerAuth
// @Router /entrants [post]
func (h *EntrantHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var input services.CreateEntrantInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	entrant, err := h.entrantService.CreateEntrant(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"entrant": entrant}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *EntrantHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "entrantID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	entrant, err := h.entrantService.GetEntrant(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"entrant": entrant}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *EntrantHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var filter repositories.ListEntrantsFilter
	if role := query.Get("role"); role != "" {
		rl := models.EntrantRole(role)
		filter.Role = &rl
	}
	var err error
	if filter.Limit, filter.Offset, err = pagination(query); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	entrants, err := h.entrantService.ListEntrants(r.Context(), filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if entrants == nil {
		entrants = []*models.Entrant{}
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"entrants": entrants}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
