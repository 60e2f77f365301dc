package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Aksuiekbro/debetter-sub002/models"
	"github.com/Aksuiekbro/debetter-sub002/repositories"
	"github.com/Aksuiekbro/debetter-sub002/services"
)

const maxMediaBytes = 64 << 20

type PostingHandler struct {
	postingService services.PostingService
}

func NewPostingHandler(ps services.PostingService) *PostingHandler {
	return &PostingHandler{postingService: ps}
}

// CreateHandler godoc
// @Summary Create one posting
// @Tags postings
// @Accept json
// @Produce json
// @Param tournamentID path string true "Tournament ID"
// @Param input body services.PostingInput true "Posting"
// @Success 201 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{} "Team or judge not in tournament"
// @Failure 422 {object} map[string]interface{}
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/postings [post]
func (h *PostingHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.PostingInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	posting, err := h.postingService.CreatePosting(r.Context(), tournamentID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"posting": posting}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type batchInput struct {
	BatchName string                  `json:"batch_name"`
	Postings  []services.PostingInput `json:"postings"`
}

// CreateBatchHandler godoc
// @Summary Create several postings, reporting failures per item
// @Tags postings
// @Accept json
// @Produce json
// @Param tournamentID path string true "Tournament ID"
// @Param input body batchInput true "Batch"
// @Success 200 {object} services.BatchResult
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/postings/batch [post]
func (h *PostingHandler) CreateBatchHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input batchInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.postingService.CreatePostingsBatch(r.Context(), tournamentID, input.BatchName, input.Postings)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GenerateRoundHandler godoc
// @Summary Pair all tournament teams into a new round
// @Tags postings
// @Accept json
// @Produce json
// @Param tournamentID path string true "Tournament ID"
// @Param input body services.GenerateRoundInput false "Round options"
// @Success 201 {object} services.GenerateRoundResult
// @Failure 409 {object} map[string]interface{} "Round already exists"
// @Failure 422 {object} map[string]interface{} "Fewer than two teams"
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/rounds [post]
func (h *PostingHandler) GenerateRoundHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.GenerateRoundInput
	if err := readOptionalJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.postingService.GenerateRound(r.Context(), tournamentID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListHandler serves GET /tournaments/{tournamentID}/postings?status=&batch_name=&round=
func (h *PostingHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	query := r.URL.Query()
	filter := repositories.ListPostingsFilter{
		TournamentID: tournamentID,
		BatchName:    queryString(query, "batch_name"),
	}
	if status := query.Get("status"); status != "" {
		s := models.PostingStatus(status)
		filter.Status = &s
	}
	if filter.Round, err = queryInt(query, "round"); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	postings, err := h.postingService.ListPostings(r.Context(), filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if postings == nil {
		postings = []*models.Posting{}
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"postings": postings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PostingHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	postingID, err := getIDFromURL(r, "postingID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	posting, err := h.postingService.GetPosting(r.Context(), postingID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"posting": posting}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UpdateHandler godoc
// @Summary Edit judges, theme, location or time of a scheduled posting
// @Tags postings
// @Accept json
// @Produce json
// @Param postingID path string true "Posting ID"
// @Param input body services.UpdatePostingInput true "Changed fields"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{} "Posting locked or version mismatch"
// @Security BearerAuth
// @Router /postings/{postingID} [patch]
func (h *PostingHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	postingID, err := getIDFromURL(r, "postingID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.UpdatePostingInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	posting, err := h.postingService.UpdatePostingDetails(r.Context(), postingID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"posting": posting}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UpdateStatusHandler godoc
// @Summary Start, complete or cancel a posting
// @Tags postings
// @Accept json
// @Produce json
// @Param postingID path string true "Posting ID"
// @Param input body statusInput true "Target status"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{} "Posting locked"
// @Failure 422 {object} map[string]interface{} "Invalid transition or quorum not reached"
// @Security BearerAuth
// @Router /postings/{postingID}/status [patch]
func (h *PostingHandler) UpdateStatusHandler(w http.ResponseWriter, r *http.Request) {
	postingID, err := getIDFromURL(r, "postingID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input statusInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	posting, err := h.postingService.ChangePostingStatus(r.Context(), postingID, models.PostingStatus(input.Status))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"posting": posting}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UploadBallotHandler godoc
// @Summary Attach a scanned ballot image
// @Tags postings
// @Accept multipart/form-data
// @Produce json
// @Param postingID path string true "Posting ID"
// @Param file formData file true "Ballot image"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /postings/{postingID}/ballot [post]
func (h *PostingHandler) UploadBallotHandler(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, repositories.MediaBallot)
}

// UploadAudioHandler godoc
// @Summary Attach a debate audio recording
// @Tags postings
// @Accept multipart/form-data
// @Produce json
// @Param postingID path string true "Posting ID"
// @Param file formData file true "Audio recording"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /postings/{postingID}/audio [post]
func (h *PostingHandler) UploadAudioHandler(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, repositories.MediaAudio)
}

func (h *PostingHandler) upload(w http.ResponseWriter, r *http.Request, kind repositories.MediaKind) {
	postingID, err := getIDFromURL(r, "postingID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxMediaBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		badRequestResponse(w, r, fmt.Errorf("failed to parse multipart form: %w", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		badRequestResponse(w, r, fmt.Errorf("failed to get file from form: %w", err))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		badRequestResponse(w, r, errors.New("content-type header is required for the file part"))
		return
	}

	posting, err := h.postingService.UploadMedia(r.Context(), postingID, kind, contentType, file)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"posting": posting}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
