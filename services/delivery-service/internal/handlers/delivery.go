package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/greenlane-app/greenlane/services/delivery-service/internal/availability"
	"github.com/greenlane-app/greenlane/services/delivery-service/internal/model"
	"github.com/greenlane-app/greenlane/services/delivery-service/internal/storage"
)

const coordinatesRequiredMsg = "User coordinates required to calculate delivery zone."

type settingsStore interface {
	Get(ctx context.Context) (model.StoreSettings, error)
	Update(ctx context.Context, s model.StoreSettings) (model.StoreSettings, error)
}

type slotStore interface {
	LoadDates(ctx context.Context, dates []string) (map[string]model.DeliverySlot, error)
	Book(ctx context.Context, req storage.BookingRequest) (model.Booking, error)
}

type DeliveryHandler struct {
	settings settingsStore
	slots    slotStore
	logger   *slog.Logger
	opts     availability.Options
	loc      *time.Location
	clock    func() time.Time
}

func NewDeliveryHandler(settings settingsStore, slots slotStore, logger *slog.Logger, opts availability.Options, loc *time.Location) *DeliveryHandler {
	if loc == nil {
		loc = time.Local
	}
	return &DeliveryHandler{
		settings: settings,
		slots:    slots,
		logger:   logger,
		opts:     opts,
		loc:      loc,
		clock:    time.Now,
	}
}

// now is the wall clock in the store's operating timezone. All slot hour
// comparisons are local-hour comparisons.
func (h *DeliveryHandler) now() time.Time {
	return h.clock().In(h.loc)
}

type coordinatesRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func decodeCoordinates(w http.ResponseWriter, body *coordinatesRequest, err error) (model.Coordinates, bool) {
	if err != nil {
		// Only a wrong-typed lat/lng is a coordinates problem; a wrong-typed
		// date or time_block gets the generic body error.
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && (typeErr.Field == "lat" || typeErr.Field == "lng") {
			http.Error(w, coordinatesRequiredMsg, http.StatusBadRequest)
		} else {
			http.Error(w, "invalid json body", http.StatusBadRequest)
		}
		return model.Coordinates{}, false
	}
	if body.Lat == nil || body.Lng == nil {
		http.Error(w, coordinatesRequiredMsg, http.StatusBadRequest)
		return model.Coordinates{}, false
	}
	return model.Coordinates{Lat: *body.Lat, Lng: *body.Lng}, true
}

// Slots computes the delivery availability report for the requesting
// customer's location.
func (h *DeliveryHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req coordinatesRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	customer, ok := decodeCoordinates(w, &req, err)
	if !ok {
		return
	}

	ctx := r.Context()
	settings, err := h.settings.Get(ctx)
	if err != nil {
		h.logger.Error("failed to load store settings", "err", err)
		http.Error(w, "failed to load delivery settings", http.StatusInternalServerError)
		return
	}

	now := h.now()
	days := availability.HorizonDays(now, settings)
	dates := make([]string, 0, len(days))
	for _, day := range days {
		dates = append(dates, day.Format(model.DateLayout))
	}

	persisted, err := h.slots.LoadDates(ctx, dates)
	if err != nil {
		h.logger.Error("failed to load delivery slots", "err", err)
		http.Error(w, "failed to load delivery slots", http.StatusInternalServerError)
		return
	}
	lookup := func(date string, block model.TimeBlock) (model.DeliverySlot, bool) {
		s, found := persisted[model.SlotKey(date, block)]
		return s, found
	}

	schedule := availability.Schedule(now, settings, lookup, customer, h.opts)

	body, err := json.Marshal(schedule)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type bookRequest struct {
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	Date      string   `json:"date"`
	TimeBlock string   `json:"time_block"`
}

type bookResponse struct {
	BookingID string `json:"booking_id"`
	Date      string `json:"date"`
	TimeBlock string `json:"time_block"`
	BookedAt  string `json:"booked_at"`
}

// Book admits an order into a delivery slot. Capacity and zone rules are
// re-validated atomically in storage, so a slot that looked Open in the
// availability report can still come back 409 here.
func (h *DeliveryHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req bookRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	customer, ok := decodeCoordinates(w, &coordinatesRequest{Lat: req.Lat, Lng: req.Lng}, err)
	if !ok {
		return
	}

	if _, err := time.ParseInLocation(model.DateLayout, req.Date, h.loc); err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	block, err := model.ParseTimeBlock(req.TimeBlock)
	if err != nil {
		http.Error(w, "invalid time block", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	settings, err := h.settings.Get(ctx)
	if err != nil {
		h.logger.Error("failed to load store settings", "err", err)
		http.Error(w, "failed to load delivery settings", http.StatusInternalServerError)
		return
	}

	now := h.now()
	if !h.dateInHorizon(now, settings, req.Date) {
		http.Error(w, "requested date is outside the delivery horizon", http.StatusUnprocessableEntity)
		return
	}
	if req.Date == now.Format(model.DateLayout) {
		if _, end := block.Hours(); now.Hour() >= end {
			http.Error(w, "delivery window has passed", http.StatusUnprocessableEntity)
			return
		}
	}

	opts := h.opts
	booking, err := h.slots.Book(ctx, storage.BookingRequest{
		Date:            req.Date,
		TimeBlock:       block,
		Customer:        customer,
		Capacity:        capacityOrDefault(opts.SlotCapacity),
		ZoneRadiusMiles: radiusOrDefault(opts.ZoneRadiusMiles),
	})
	if err != nil {
		var zoneErr *storage.ZoneMismatchError
		switch {
		case errors.Is(err, storage.ErrSlotFull):
			http.Error(w, "delivery slot is fully booked", http.StatusConflict)
		case errors.As(err, &zoneErr):
			http.Error(w, zoneErr.Error(), http.StatusConflict)
		default:
			h.logger.Error("booking failed", "err", err, "date", req.Date, "block", req.TimeBlock)
			http.Error(w, "failed to book delivery slot", http.StatusInternalServerError)
		}
		return
	}

	body, err := json.Marshal(bookResponse{
		BookingID: booking.ID,
		Date:      booking.SlotDate,
		TimeBlock: string(booking.TimeBlock),
		BookedAt:  booking.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}

func (h *DeliveryHandler) dateInHorizon(now time.Time, settings model.StoreSettings, date string) bool {
	for _, day := range availability.HorizonDays(now, settings) {
		if day.Format(model.DateLayout) == date {
			return true
		}
	}
	return false
}

func capacityOrDefault(v int) int {
	if v <= 0 {
		return availability.DefaultSlotCapacity
	}
	return v
}

func radiusOrDefault(v float64) float64 {
	if v <= 0 {
		return availability.DefaultZoneRadiusMiles
	}
	return v
}
