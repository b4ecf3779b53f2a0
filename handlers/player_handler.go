package handlers

import (
	"net/http"

	"github.com/mepa-comp/scoring-system/middleware"
	"github.com/mepa-comp/scoring-system/services"
)

type PlayerHandler struct {
	playerService services.PlayerService
	scoreService  services.ScoreService
}

func NewPlayerHandler(playerService services.PlayerService, scoreService services.ScoreService) *PlayerHandler {
	return &PlayerHandler{
		playerService: playerService,
		scoreService:  scoreService,
	}
}

func (h *PlayerHandler) JoinEvent(w http.ResponseWriter, r *http.Request) {
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

	player, err := h.playerService.JoinEvent(r.Context(), userID, input.JoinCode)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"player": player}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PlayerHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, eventID, ok := eventRequest(w, r)
	if !ok {
		return
	}

	var input services.PlayerInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	player, err := h.playerService.AddPlayer(r.Context(), userID, eventID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"player": player}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PlayerHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, eventID, ok := eventRequest(w, r)
	if !ok {
		return
	}

	// ?for=sumula — кандидаты в классификаторную сумулу,
	// ?for=imortal — кандидаты в имортальную.
	var players interface{}
	var err error
	switch r.URL.Query().Get("for") {
	case "sumula":
		players, err = h.playerService.ListForSumula(r.Context(), userID, eventID)
	case "imortal":
		players, err = h.playerService.ListForImortalSumula(r.Context(), userID, eventID)
	default:
		players, err = h.playerService.List(r.Context(), userID, eventID)
	}
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"players": players}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PlayerHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, eventID, ok := eventRequest(w, r)
	if !ok {
		return
	}
	playerID, err := urlParamInt(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	player, err := h.playerService.Get(r.Context(), userID, eventID, playerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"player": player}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PlayerHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, eventID, ok := eventRequest(w, r)
	if !ok {
		return
	}
	playerID, err := urlParamInt(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.PlayerInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	player, err := h.playerService.Update(r.Context(), userID, eventID, playerID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"player": player}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PlayerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, eventID, ok := eventRequest(w, r)
	if !ok {
		return
	}
	playerID, err := urlParamInt(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.playerService.Delete(r.Context(), userID, eventID, playerID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "player deleted"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PlayerHandler) ListScores(w http.ResponseWriter, r *http.Request) {
	userID, eventID, ok := eventRequest(w, r)
	if !ok {
		return
	}
	playerID, err := urlParamInt(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	scores, err := h.scoreService.ListByPlayer(r.Context(), userID, eventID, playerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"scores": scores}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// eventRequest разбирает пользователя и событие из защищенного маршрута.
func eventRequest(w http.ResponseWriter, r *http.Request) (userID, eventID int, ok bool) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return 0, 0, false
	}
	eventID, err = urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return 0, 0, false
	}
	return userID, eventID, true
}
