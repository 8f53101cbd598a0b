package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pelada-app/pelada-system/middleware"
	"github.com/pelada-app/pelada-system/services"
	"github.com/pelada-app/pelada-system/snapshot"
)

const maxCoverUploadBytes = 5 << 20 // 5MB

type EventHandler struct {
	eventService *services.EventService
	cache        *snapshot.Cache
}

func NewEventHandler(eventService *services.EventService, cache *snapshot.Cache) *EventHandler {
	return &EventHandler{
		eventService: eventService,
		cache:        cache,
	}
}

type createEventRequest struct {
	Title           string    `json:"title" validate:"required"`
	StartsAt        time.Time `json:"starts_at" validate:"required"`
	Location        string    `json:"location" validate:"required"`
	Latitude        *float64  `json:"latitude" validate:"omitempty,latitude"`
	Longitude       *float64  `json:"longitude" validate:"omitempty,longitude"`
	Capacity        int       `json:"capacity" validate:"required,gt=0"`
	Description     *string   `json:"description"`
	DurationMinutes *int      `json:"duration_minutes" validate:"omitempty,gt=0"`
}

// Create godoc
// @Summary Create an event
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body createEventRequest true "Event payload"
// @Success 201 {object} map[string]interface{} "Created event"
// @Failure 401 {object} map[string]string "Missing or invalid token"
// @Failure 422 {object} map[string]string "Validation failures"
// @Router /events [post]
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	actingUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input createEventRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if failures := validateInput(input); failures != nil {
		failedValidationResponse(w, r, failures)
		return
	}

	event, err := h.eventService.Create(r.Context(), services.CreateEventInput{
		Title:           input.Title,
		StartsAt:        input.StartsAt,
		Location:        input.Location,
		Latitude:        input.Latitude,
		Longitude:       input.Longitude,
		Capacity:        input.Capacity,
		Description:     input.Description,
		DurationMinutes: input.DurationMinutes,
	}, actingUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"event": event}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// List godoc
// @Summary List all events with their rosters
// @Tags events
// @Produce json
// @Success 200 {object} map[string]interface{} "Events from the current snapshot"
// @Router /events [get]
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	response := jsonResponse{
		"events":  h.cache.Events(),
		"loading": h.cache.Loading(),
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Get godoc
// @Summary Get one event with its roster
// @Tags events
// @Produce json
// @Param eventID path int true "Event ID"
// @Success 200 {object} map[string]interface{} "Event"
// @Failure 404 {object} map[string]string "Unknown event"
// @Router /events/{eventID} [get]
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	event, ok := h.cache.GetEvent(eventID)
	if !ok {
		notFoundResponse(w, r)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"event": event}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetBySlug godoc
// @Summary Resolve a share link to its event
// @Tags events
// @Produce json
// @Param slug path string true "Share slug"
// @Success 200 {object} map[string]interface{} "Event"
// @Failure 404 {object} map[string]string "Unknown slug"
// @Router /events/slug/{slug} [get]
func (h *EventHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		badRequestResponse(w, r, errors.New("invalid slug URL parameter"))
		return
	}

	event, ok := h.cache.GetEventBySlug(slug)
	if !ok {
		notFoundResponse(w, r)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"event": event}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type updateEventRequest struct {
	Capacity *int       `json:"capacity" validate:"omitempty,gt=0"`
	StartsAt *time.Time `json:"starts_at"`
}

// Update godoc
// @Summary Update an event's capacity or date
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path int true "Event ID"
// @Param body body updateEventRequest true "Fields to change"
// @Success 200 {object} map[string]string "Updated"
// @Failure 400 {object} map[string]string "Capacity below current roster size"
// @Failure 403 {object} map[string]string "Not the creator"
// @Failure 404 {object} map[string]string "Unknown event"
// @Router /events/{eventID} [patch]
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	actingUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input updateEventRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if failures := validateInput(input); failures != nil {
		failedValidationResponse(w, r, failures)
		return
	}

	err = h.eventService.Update(r.Context(), eventID, services.UpdateEventInput{
		Capacity: input.Capacity,
		StartsAt: input.StartsAt,
	}, actingUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "event updated"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Delete godoc
// @Summary Delete an event and its roster
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param eventID path int true "Event ID"
// @Success 200 {object} map[string]string "Deleted"
// @Failure 403 {object} map[string]string "Not the creator"
// @Failure 404 {object} map[string]string "Unknown event"
// @Router /events/{eventID} [delete]
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actingUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.eventService.Delete(r.Context(), eventID, actingUserID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "event deleted"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UploadCover godoc
// @Summary Upload a cover image for an event
// @Tags events
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param eventID path int true "Event ID"
// @Param cover formData file true "Image file"
// @Success 200 {object} map[string]string "Public URL of the stored cover"
// @Failure 403 {object} map[string]string "Not the creator"
// @Failure 404 {object} map[string]string "Unknown event"
// @Router /events/{eventID}/cover [post]
func (h *EventHandler) UploadCover(w http.ResponseWriter, r *http.Request) {
	actingUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCoverUploadBytes)
	if err := r.ParseMultipartForm(maxCoverUploadBytes); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	file, header, err := r.FormFile("cover")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	url, err := h.eventService.UploadCover(r.Context(), eventID, actingUserID, contentType, file)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"cover_url": url}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
