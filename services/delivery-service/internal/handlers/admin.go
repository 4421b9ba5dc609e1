package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/greenlane-app/greenlane/services/delivery-service/internal/model"
)

// AdminHandler exposes the store delivery configuration to back-office
// tooling. The gateway restricts these routes to the admin role.
type AdminHandler struct {
	settings settingsStore
	logger   *slog.Logger
}

func NewAdminHandler(settings settingsStore, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{settings: settings, logger: logger}
}

type settingsPayload struct {
	SameDayDeliveryEnabled *bool `json:"same_day_delivery_enabled"`
	DeliveryCutoffHour     *int  `json:"delivery_cutoff_hour"`
}

func (h *AdminHandler) Settings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getSettings(w, r)
	case http.MethodPut:
		h.putSettings(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Get(r.Context())
	if err != nil {
		h.logger.Error("failed to load store settings", "err", err)
		http.Error(w, "failed to load settings", http.StatusInternalServerError)
		return
	}
	writeSettings(w, settings)
}

func (h *AdminHandler) putSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	current, err := h.settings.Get(ctx)
	if err != nil {
		h.logger.Error("failed to load store settings", "err", err)
		http.Error(w, "failed to load settings", http.StatusInternalServerError)
		return
	}

	if req.SameDayDeliveryEnabled != nil {
		current.SameDayDeliveryEnabled = *req.SameDayDeliveryEnabled
	}
	if req.DeliveryCutoffHour != nil {
		if *req.DeliveryCutoffHour < 0 || *req.DeliveryCutoffHour > 23 {
			http.Error(w, "delivery_cutoff_hour must be between 0 and 23", http.StatusBadRequest)
			return
		}
		current.DeliveryCutoffHour = *req.DeliveryCutoffHour
	}

	updated, err := h.settings.Update(ctx, current)
	if err != nil {
		h.logger.Error("failed to update store settings", "err", err)
		http.Error(w, "failed to update settings", http.StatusInternalServerError)
		return
	}
	writeSettings(w, updated)
}

func writeSettings(w http.ResponseWriter, s model.StoreSettings) {
	body, err := json.Marshal(s)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
