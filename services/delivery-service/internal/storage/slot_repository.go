package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/greenlane-app/greenlane/libs/db"
	"github.com/greenlane-app/greenlane/services/delivery-service/internal/geo"
	"github.com/greenlane-app/greenlane/services/delivery-service/internal/model"
	"github.com/greenlane-app/greenlane/services/delivery-service/internal/outbox"
	"github.com/jackc/pgx/v5"
)

// ErrSlotFull means the slot reached driver capacity between the customer's
// availability check and their booking attempt. Retryable with another slot.
var ErrSlotFull = errors.New("delivery slot is fully booked")

// ZoneMismatchError means the slot is anchored to a route too far from the
// customer.
type ZoneMismatchError struct {
	Miles float64
}

func (e *ZoneMismatchError) Error() string {
	return fmt.Sprintf("Zone mismatch (%.1f miles from route)", e.Miles)
}

type SlotRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewSlotRepository(pool *db.Pool, outboxRepo *outbox.Repository) *SlotRepository {
	return &SlotRepository{pool: pool, outbox: outboxRepo}
}

// LoadDates fetches every persisted slot for the given calendar dates in one
// query, keyed by model.SlotKey. Dates with no record simply have no entry.
func (r *SlotRepository) LoadDates(ctx context.Context, dates []string) (map[string]model.DeliverySlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, slot_date::text, time_block, status, anchor_lat, anchor_lng, current_order_count, created_at, updated_at
		FROM delivery_slots
		WHERE slot_date = ANY($1)
	`, dates)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slots := make(map[string]model.DeliverySlot)
	for rows.Next() {
		var s model.DeliverySlot
		var anchorLat, anchorLng *float64
		if err := rows.Scan(
			&s.ID,
			&s.Date,
			&s.TimeBlock,
			&s.Status,
			&anchorLat,
			&anchorLng,
			&s.OrderCount,
			&s.CreatedAt,
			&s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if anchorLat != nil && anchorLng != nil {
			s.Anchor = &model.Coordinates{Lat: *anchorLat, Lng: *anchorLng}
		}
		slots[s.Key()] = s
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return slots, nil
}

type BookingRequest struct {
	Date            string
	TimeBlock       model.TimeBlock
	Customer        model.Coordinates
	Capacity        int
	ZoneRadiusMiles float64
}

// Book admits one order into a slot, creating and anchoring the slot when it
// is the first booking. The capacity and zone checks run under a row lock so
// two customers cannot both take the last opening or both win the anchor.
// An outbox event is written in the same transaction.
func (r *SlotRepository) Book(ctx context.Context, req BookingRequest) (model.Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// First booking claims the slot and pins the anchor in one statement;
	// ON CONFLICT DO NOTHING makes concurrent claims lose cleanly.
	ct, err := tx.Exec(ctx, `
		INSERT INTO delivery_slots (slot_date, time_block, status, anchor_lat, anchor_lng, current_order_count)
		VALUES ($1, $2, 'Anchored', $3, $4, 1)
		ON CONFLICT (slot_date, time_block) DO NOTHING
	`, req.Date, string(req.TimeBlock), req.Customer.Lat, req.Customer.Lng)
	if err != nil {
		return model.Booking{}, err
	}

	if ct.RowsAffected() == 0 {
		if err := r.admitIntoExisting(ctx, tx, req); err != nil {
			return model.Booking{}, err
		}
	}

	booking := model.Booking{
		ID:        uuid.NewString(),
		SlotDate:  req.Date,
		TimeBlock: req.TimeBlock,
		Customer:  req.Customer,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO delivery_bookings (id, slot_date, time_block, customer_lat, customer_lng)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, booking.ID, booking.SlotDate, string(booking.TimeBlock), booking.Customer.Lat, booking.Customer.Lng).Scan(&booking.CreatedAt)
	if err != nil {
		return model.Booking{}, err
	}

	payload, err := json.Marshal(map[string]any{
		"booking_id": booking.ID,
		"slot_date":  booking.SlotDate,
		"time_block": string(booking.TimeBlock),
		"lat":        booking.Customer.Lat,
		"lng":        booking.Customer.Lng,
		"booked_at":  booking.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return model.Booking{}, err
	}
	if err := r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "delivery_slot",
		AggregateID:   model.SlotKey(booking.SlotDate, booking.TimeBlock),
		EventType:     "delivery.slot.booked.v1",
		Payload:       payload,
	}); err != nil {
		return model.Booking{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, err
	}
	return booking, nil
}

// admitDecision is the booking-time re-validation of the capacity and anchor
// rules, run against the row state read under the lock. The availability read
// the customer saw may have raced another booking filling the slot or
// anchoring it elsewhere. Returns the slot status after admitting one more
// order.
func admitDecision(status model.SlotStatus, anchor *model.Coordinates, orderCount int, req BookingRequest) (model.SlotStatus, error) {
	if orderCount >= req.Capacity {
		return status, ErrSlotFull
	}

	if status == model.SlotAnchored && anchor != nil {
		dist := geo.Distance(req.Customer, *anchor)
		if dist > req.ZoneRadiusMiles {
			return status, &ZoneMismatchError{Miles: dist}
		}
	}

	if orderCount+1 >= req.Capacity {
		return model.SlotFull, nil
	}
	return status, nil
}

func (r *SlotRepository) admitIntoExisting(ctx context.Context, tx pgx.Tx, req BookingRequest) error {
	var (
		id         int64
		status     model.SlotStatus
		anchorLat  *float64
		anchorLng  *float64
		orderCount int
	)
	err := tx.QueryRow(ctx, `
		SELECT id, status, anchor_lat, anchor_lng, current_order_count
		FROM delivery_slots
		WHERE slot_date = $1 AND time_block = $2
		FOR UPDATE
	`, req.Date, string(req.TimeBlock)).Scan(&id, &status, &anchorLat, &anchorLng, &orderCount)
	if err != nil {
		return err
	}

	var anchor *model.Coordinates
	if anchorLat != nil && anchorLng != nil {
		anchor = &model.Coordinates{Lat: *anchorLat, Lng: *anchorLng}
	}
	newStatus, err := admitDecision(status, anchor, orderCount, req)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE delivery_slots
		SET current_order_count = current_order_count + 1,
			status = $2,
			updated_at = now()
		WHERE id = $1
	`, id, string(newStatus))
	return err
}
