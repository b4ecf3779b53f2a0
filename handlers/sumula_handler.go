package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mepa-comp/scoring-system/middleware"
	"github.com/mepa-comp/scoring-system/models"
	"github.com/mepa-comp/scoring-system/services"
)

type SumulaHandler struct {
	sumulaService services.SumulaService
}

func NewSumulaHandler(sumulaService services.SumulaService) *SumulaHandler {
	return &SumulaHandler{sumulaService: sumulaService}
}

// sumulaRequest разбирает общие параметры маршрутов сумул:
// пользователя, событие и вид сумулы из пути.
func sumulaRequest(w http.ResponseWriter, r *http.Request) (userID, eventID int, kind models.SumulaKind, ok bool) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return 0, 0, "", false
	}
	eventID, err = urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return 0, 0, "", false
	}
	kind = models.SumulaKind(chi.URLParam(r, "kind"))
	return userID, eventID, kind, true
}

func (h *SumulaHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, eventID, kind, ok := sumulaRequest(w, r)
	if !ok {
		return
	}

	var input services.CreateSumulaInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	sumula, err := h.sumulaService.Create(r.Context(), userID, eventID, kind, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"sumula": sumula}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SumulaHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, eventID, kind, ok := sumulaRequest(w, r)
	if !ok {
		return
	}

	// ?active=true / ?active=false; без параметра — все.
	var active *bool
	switch r.URL.Query().Get("active") {
	case "true":
		v := true
		active = &v
	case "false":
		v := false
		active = &v
	}

	sumulas, err := h.sumulaService.List(r.Context(), userID, eventID, kind, active)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"sumulas": sumulas}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListForPlayer отдает игроку его активные сумулы без записей очков.
func (h *SumulaHandler) ListForPlayer(w http.ResponseWriter, r *http.Request) {
	userID, eventID, ok := eventRequest(w, r)
	if !ok {
		return
	}

	sumulas, err := h.sumulaService.ListForPlayer(r.Context(), userID, eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"sumulas": sumulas}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SumulaHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, eventID, kind, ok := sumulaRequest(w, r)
	if !ok {
		return
	}
	sumulaID, err := urlParamInt(r, "sumulaID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	sumula, err := h.sumulaService.Get(r.Context(), userID, eventID, sumulaID, kind)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"sumula": sumula}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SumulaHandler) Close(w http.ResponseWriter, r *http.Request) {
	userID, eventID, kind, ok := sumulaRequest(w, r)
	if !ok {
		return
	}
	sumulaID, err := urlParamInt(r, "sumulaID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.CloseSumulaInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	sumula, err := h.sumulaService.Close(r.Context(), userID, eventID, sumulaID, kind, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"sumula": sumula}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SumulaHandler) AddSelfReferee(w http.ResponseWriter, r *http.Request) {
	userID, eventID, kind, ok := sumulaRequest(w, r)
	if !ok {
		return
	}
	sumulaID, err := urlParamInt(r, "sumulaID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.sumulaService.AddSelfReferee(r.Context(), userID, eventID, sumulaID, kind); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "referee assigned"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SumulaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, eventID, kind, ok := sumulaRequest(w, r)
	if !ok {
		return
	}
	sumulaID, err := urlParamInt(r, "sumulaID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.sumulaService.Delete(r.Context(), userID, eventID, sumulaID, kind); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "sumula deleted"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
