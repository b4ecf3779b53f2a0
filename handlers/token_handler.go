package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mepa-comp/scoring-system/services"
)

type TokenHandler struct {
	tokenService services.TokenService
}

func NewTokenHandler(tokenService services.TokenService) *TokenHandler {
	return &TokenHandler{tokenService: tokenService}
}

func (h *TokenHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Code string `json:"code"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	token, err := h.tokenService.Create(r.Context(), input.Code)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"token": token}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TokenHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	token, err := h.tokenService.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"token": token}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
