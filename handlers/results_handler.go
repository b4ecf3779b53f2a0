package handlers

import (
	"net/http"

	"github.com/mepa-comp/scoring-system/services"
)

type ResultsHandler struct {
	resultsService services.ResultsService
}

func NewResultsHandler(resultsService services.ResultsService) *ResultsHandler {
	return &ResultsHandler{resultsService: resultsService}
}

func (h *ResultsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, eventID, ok := eventRequest(w, r)
	if !ok {
		return
	}

	results, err := h.resultsService.Get(r.Context(), userID, eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"results": results}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ResultsHandler) CalculateImortals(w http.ResponseWriter, r *http.Request) {
	userID, eventID, ok := eventRequest(w, r)
	if !ok {
		return
	}

	players, err := h.resultsService.CalculateImortals(r.Context(), userID, eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"imortals": players}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ResultsHandler) Publish(w http.ResponseWriter, r *http.Request) {
	userID, eventID, ok := eventRequest(w, r)
	if !ok {
		return
	}

	var input services.PublishResultsInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	results, err := h.resultsService.Publish(r.Context(), userID, eventID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"results": results}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ResultsHandler) PublishImortals(w http.ResponseWriter, r *http.Request) {
	userID, eventID, ok := eventRequest(w, r)
	if !ok {
		return
	}

	results, err := h.resultsService.PublishImortals(r.Context(), userID, eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"results": results}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ResultsHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	userID, eventID, ok := eventRequest(w, r)
	if !ok {
		return
	}

	if err := h.resultsService.Revoke(r.Context(), userID, eventID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "results revoked"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
