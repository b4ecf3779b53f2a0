package handlers

import (
	"net/http"

	"github.com/mepa-comp/scoring-system/middleware"
	"github.com/mepa-comp/scoring-system/services"
)

type StaffHandler struct {
	staffService services.StaffService
}

func NewStaffHandler(staffService services.StaffService) *StaffHandler {
	return &StaffHandler{staffService: staffService}
}

func (h *StaffHandler) JoinEvent(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var input struct {
		JoinCode string `json:"join_code"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	staff, err := h.staffService.JoinEvent(r.Context(), userID, input.JoinCode)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"staff": staff}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *StaffHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, eventID, ok := eventRequest(w, r)
	if !ok {
		return
	}

	staff, err := h.staffService.List(r.Context(), userID, eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"staff": staff}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *StaffHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, eventID, ok := eventRequest(w, r)
	if !ok {
		return
	}

	var input services.StaffInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	staff, err := h.staffService.Add(r.Context(), userID, eventID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"staff": staff}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *StaffHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, eventID, ok := eventRequest(w, r)
	if !ok {
		return
	}
	staffID, err := urlParamInt(r, "staffID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.StaffInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	staff, err := h.staffService.Update(r.Context(), userID, eventID, staffID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"staff": staff}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *StaffHandler) BulkUpsert(w http.ResponseWriter, r *http.Request) {
	userID, eventID, ok := eventRequest(w, r)
	if !ok {
		return
	}

	var input struct {
		Rows   []services.StaffInput `json:"rows"`
		Notify bool                  `json:"notify"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	report, err := h.staffService.BulkUpsert(r.Context(), userID, eventID, input.Rows, input.Notify)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"report": report}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
