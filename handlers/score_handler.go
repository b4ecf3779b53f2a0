package handlers

import (
	"net/http"

	"github.com/mepa-comp/scoring-system/services"
)

type ScoreHandler struct {
	scoreService services.ScoreService
}

func NewScoreHandler(scoreService services.ScoreService) *ScoreHandler {
	return &ScoreHandler{scoreService: scoreService}
}

func (h *ScoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, eventID, ok := eventRequest(w, r)
	if !ok {
		return
	}

	var input services.CreateScoreInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	score, err := h.scoreService.CreateScore(r.Context(), userID, eventID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"score": score}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ScoreHandler) UpdatePoints(w http.ResponseWriter, r *http.Request) {
	userID, eventID, ok := eventRequest(w, r)
	if !ok {
		return
	}
	scoreID, err := urlParamInt(r, "scoreID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Points int `json:"points"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	score, err := h.scoreService.UpdatePoints(r.Context(), userID, eventID, scoreID, input.Points)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"score": score}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ScoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, eventID, ok := eventRequest(w, r)
	if !ok {
		return
	}
	scoreID, err := urlParamInt(r, "scoreID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.scoreService.DeleteScore(r.Context(), userID, eventID, scoreID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "score deleted"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ScoreHandler) RecomputeAll(w http.ResponseWriter, r *http.Request) {
	userID, eventID, ok := eventRequest(w, r)
	if !ok {
		return
	}

	if err := h.scoreService.RecomputeAllForEvent(r.Context(), userID, eventID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "totals recomputed"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
