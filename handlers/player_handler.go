package handlers

import (
	"net/http"

	"github.com/pelada-app/pelada-system/services"
)

type PlayerHandler struct {
	rosterService *services.RosterService
}

func NewPlayerHandler(rosterService *services.RosterService) *PlayerHandler {
	return &PlayerHandler{rosterService: rosterService}
}

type addPlayerRequest struct {
	Name string `json:"name" validate:"required"`
}

// Add godoc
// @Summary Add a player to an event's roster
// @Description The player gets the lowest unused position, starting at 1.
// @Tags players
// @Accept json
// @Produce json
// @Param eventID path int true "Event ID"
// @Param body body addPlayerRequest true "Player name"
// @Success 201 {object} map[string]interface{} "Created player with assigned position"
// @Failure 404 {object} map[string]string "Unknown event"
// @Failure 409 {object} map[string]string "Event full or position race lost"
// @Router /events/{eventID}/players [post]
func (h *PlayerHandler) Add(w http.ResponseWriter, r *http.Request) {
	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input addPlayerRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if failures := validateInput(input); failures != nil {
		failedValidationResponse(w, r, failures)
		return
	}

	player, err := h.rosterService.AddPlayer(r.Context(), eventID, input.Name)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"player": player}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Remove godoc
// @Summary Remove a player from an event's roster
// @Description Surviving players keep their positions; the freed slot is reused by the next joiner.
// @Tags players
// @Produce json
// @Security BearerAuth
// @Param eventID path int true "Event ID"
// @Param playerID path int true "Player ID"
// @Success 200 {object} map[string]string "Removed"
// @Failure 404 {object} map[string]string "Unknown player"
// @Router /events/{eventID}/players/{playerID} [delete]
func (h *PlayerHandler) Remove(w http.ResponseWriter, r *http.Request) {
	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	playerID, err := getIDFromURL(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.rosterService.RemovePlayer(r.Context(), eventID, playerID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "player removed"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type updatePositionRequest struct {
	Position int `json:"position" validate:"required,gt=0"`
}

// UpdatePosition godoc
// @Summary Move a player to an explicit position
// @Tags players
// @Accept json
// @Produce json
// @Param eventID path int true "Event ID"
// @Param playerID path int true "Player ID"
// @Param body body updatePositionRequest true "Target position"
// @Success 200 {object} map[string]string "Moved"
// @Failure 404 {object} map[string]string "Unknown player"
// @Failure 409 {object} map[string]string "Position already taken"
// @Router /events/{eventID}/players/{playerID}/position [patch]
func (h *PlayerHandler) UpdatePosition(w http.ResponseWriter, r *http.Request) {
	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	playerID, err := getIDFromURL(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input updatePositionRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if failures := validateInput(input); failures != nil {
		failedValidationResponse(w, r, failures)
		return
	}

	if err := h.rosterService.UpdatePlayerPosition(r.Context(), eventID, playerID, input.Position); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "position updated"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
