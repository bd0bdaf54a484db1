package reg_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-registration/internal/auth"
	"ms-registration/internal/ledger"
	"ms-registration/internal/logger"
)

type Handler struct {
	Ledger *ledger.Service
	Logger *logger.Logger
}

func NewHandler(svc *ledger.Service, log *logger.Logger) *Handler {
	return &Handler{Ledger: svc, Logger: log}
}

type registrationRequest struct {
	EventID int64 `json:"event_id"`
	UserID  int64 `json:"user_id"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	h.Logger.Info("API", fmt.Sprintf("Register: event=%d user=%d", req.EventID, req.UserID))

	conf, err := h.Ledger.Register(r.Context(), req.UserID, req.EventID)
	if err != nil {
		h.writeError(w, "Register", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(conf); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Register: failed to encode response: %v", err))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("Register: ticket %s issued for user %d", conf.TicketNumber, req.UserID))
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	h.Logger.Info("API", fmt.Sprintf("Cancel: event=%d user=%d", req.EventID, req.UserID))

	conf, err := h.Ledger.Cancel(r.Context(), req.UserID, req.EventID)
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(conf); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Cancel: failed to encode response: %v", err))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("Cancel: registration %d cancelled", conf.RegistrationID))
}

func (h *Handler) MyTickets(w http.ResponseWriter, r *http.Request) {
	userID, err := h.resolveUserID(r, chi.URLParam(r, "userId"))
	if err != nil {
		http.Error(w, "Invalid user: "+err.Error(), http.StatusBadRequest)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("MyTickets: user=%d", userID))

	tickets, err := h.Ledger.ListUserTickets(r.Context(), userID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("MyTickets: %v", err))
		http.Error(w, "Failed to retrieve tickets", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(tickets); err != nil {
		h.Logger.Error("API", fmt.Sprintf("MyTickets: failed to encode response: %v", err))
	}
}

// decodeRequest parses the shared register/cancel body and falls back
// to the authenticated identity when the body carries no user id.
func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request) (registrationRequest, bool) {
	var req registrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return req, false
	}
	if req.EventID <= 0 {
		http.Error(w, "event_id is required", http.StatusBadRequest)
		return req, false
	}
	if req.UserID == 0 {
		userID, err := h.resolveUserID(r, "")
		if err != nil {
			http.Error(w, "Unable to resolve user: "+err.Error(), http.StatusUnauthorized)
			return req, false
		}
		req.UserID = userID
	}
	return req, true
}

func (h *Handler) resolveUserID(r *http.Request, override string) (int64, error) {
	raw := override
	if raw == "" {
		raw = auth.UserID(r.Context())
	}
	if raw == "" {
		return 0, errors.New("no user identity in request")
	}
	return strconv.ParseInt(raw, 10, 64)
}

// writeError maps ledger business errors onto HTTP statuses; anything
// unexpected is a 500 with the details kept in the log only.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ledger.ErrNoActiveRegistration):
		h.Logger.Warn("API", fmt.Sprintf("%s: %v", op, err))
		http.Error(w, err.Error(), http.StatusNotFound)
	case ledger.IsBusinessError(err):
		h.Logger.Warn("API", fmt.Sprintf("%s: %v", op, err))
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}
