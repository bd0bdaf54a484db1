package notif_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-registration/internal/logger"
	"ms-registration/internal/notification"
)

type Handler struct {
	Notifications *notification.Service
	Logger        *logger.Logger
}

func NewHandler(svc *notification.Service, log *logger.Logger) *Handler {
	return &Handler{Notifications: svc, Logger: log}
}

func (h *Handler) Unread(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid user: "+err.Error(), http.StatusBadRequest)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("Unread: user=%d", userID))

	notifications, err := h.Notifications.UnreadForUser(r.Context(), userID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Unread: %v", err))
		http.Error(w, "Failed to retrieve notifications", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(notifications); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Unread: failed to encode response: %v", err))
	}
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	notificationID, err := strconv.ParseInt(chi.URLParam(r, "notificationId"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid notification: "+err.Error(), http.StatusBadRequest)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("MarkRead: notification=%d", notificationID))

	if err := h.Notifications.MarkRead(r.Context(), notificationID); err != nil {
		h.Logger.Error("API", fmt.Sprintf("MarkRead: %v", err))
		http.Error(w, "Failed to mark notification read", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
