package event_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-registration/internal/events"
	"ms-registration/internal/logger"
	"ms-registration/internal/models"
)

type Handler struct {
	Events *events.Service
	Logger *logger.Logger
}

func NewHandler(svc *events.Service, log *logger.Logger) *Handler {
	return &Handler{Events: svc, Logger: log}
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var event models.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Events.CreateEvent(r.Context(), &event); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateEvent: %v", err))
		http.Error(w, "Could not create event: "+err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(event)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := h.eventID(r)
	if err != nil {
		http.Error(w, "Invalid event id", http.StatusBadRequest)
		return
	}

	event, err := h.Events.GetEvent(r.Context(), eventID)
	if err != nil {
		h.writeError(w, "GetEvent", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(event)
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	publishedOnly := r.URL.Query().Get("published") == "true"

	list, err := h.Events.ListEvents(r.Context(), publishedOnly)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListEvents: %v", err))
		http.Error(w, "Failed to list events", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	eventID, err := h.eventID(r)
	if err != nil {
		http.Error(w, "Invalid event id", http.StatusBadRequest)
		return
	}

	var body struct {
		Status models.EventStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Events.Transition(r.Context(), eventID, body.Status); err != nil {
		h.writeError(w, "Transition", err)
		return
	}

	h.Logger.Info("API", fmt.Sprintf("Transition: event %d -> %s", eventID, body.Status))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	eventID, err := h.eventID(r)
	if err != nil {
		http.Error(w, "Invalid event id", http.StatusBadRequest)
		return
	}

	var body struct {
		Published bool `json:"published"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Events.Publish(r.Context(), eventID, body.Published); err != nil {
		h.writeError(w, "Publish", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateTicketType(w http.ResponseWriter, r *http.Request) {
	eventID, err := h.eventID(r)
	if err != nil {
		http.Error(w, "Invalid event id", http.StatusBadRequest)
		return
	}

	var ticket models.TicketType
	if err := json.NewDecoder(r.Body).Decode(&ticket); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	ticket.EventID = eventID

	if err := h.Events.CreateTicketType(r.Context(), &ticket); err != nil {
		h.writeError(w, "CreateTicketType", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(ticket)
}

func (h *Handler) eventID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "eventId"), 10, 64)
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, events.ErrEventNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, events.ErrInvalidTransition),
		errors.Is(err, events.ErrTicketTypeExists),
		errors.Is(err, events.ErrInvalidTicketType):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}
