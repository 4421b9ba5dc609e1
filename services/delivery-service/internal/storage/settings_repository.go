package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/greenlane-app/greenlane/libs/db"
	"github.com/greenlane-app/greenlane/services/delivery-service/internal/model"
	"github.com/greenlane-app/greenlane/services/delivery-service/internal/outbox"
)

// SettingsRepository reads and updates the store_settings singleton row.
// Updates announce themselves through the outbox so downstream consumers
// (storefront caches, ops tooling) learn about cutoff changes.
type SettingsRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewSettingsRepository(pool *db.Pool, outboxRepo *outbox.Repository) *SettingsRepository {
	return &SettingsRepository{pool: pool, outbox: outboxRepo}
}

// Get returns the store settings, creating the row with defaults the first
// time it is asked for. The create is an upsert-if-missing, so concurrent
// first requests are safe.
func (r *SettingsRepository) Get(ctx context.Context) (model.StoreSettings, error) {
	def := model.DefaultStoreSettings()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO store_settings (id, same_day_delivery_enabled, delivery_cutoff_hour)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO NOTHING
	`, def.SameDayDeliveryEnabled, def.DeliveryCutoffHour)
	if err != nil {
		return model.StoreSettings{}, fmt.Errorf("ensure store settings: %w", err)
	}

	var s model.StoreSettings
	err = r.pool.QueryRow(ctx, `
		SELECT same_day_delivery_enabled, delivery_cutoff_hour
		FROM store_settings
		WHERE id = 1
	`).Scan(&s.SameDayDeliveryEnabled, &s.DeliveryCutoffHour)
	if err != nil {
		return model.StoreSettings{}, fmt.Errorf("read store settings: %w", err)
	}
	return s, nil
}

// Update persists the new configuration and writes the settings-updated
// outbox event in the same transaction.
func (r *SettingsRepository) Update(ctx context.Context, s model.StoreSettings) (model.StoreSettings, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.StoreSettings{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var out model.StoreSettings
	err = tx.QueryRow(ctx, `
		INSERT INTO store_settings (id, same_day_delivery_enabled, delivery_cutoff_hour)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE
		SET same_day_delivery_enabled = EXCLUDED.same_day_delivery_enabled,
			delivery_cutoff_hour = EXCLUDED.delivery_cutoff_hour,
			updated_at = now()
		RETURNING same_day_delivery_enabled, delivery_cutoff_hour
	`, s.SameDayDeliveryEnabled, s.DeliveryCutoffHour).Scan(&out.SameDayDeliveryEnabled, &out.DeliveryCutoffHour)
	if err != nil {
		return model.StoreSettings{}, fmt.Errorf("update store settings: %w", err)
	}

	evt, err := settingsUpdatedEvent(out)
	if err != nil {
		return model.StoreSettings{}, err
	}
	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return model.StoreSettings{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.StoreSettings{}, err
	}
	return out, nil
}

func settingsUpdatedEvent(s model.StoreSettings) (outbox.Event, error) {
	payload, err := json.Marshal(map[string]any{
		"same_day_delivery_enabled": s.SameDayDeliveryEnabled,
		"delivery_cutoff_hour":      s.DeliveryCutoffHour,
	})
	if err != nil {
		return outbox.Event{}, err
	}
	return outbox.Event{
		AggregateType: "store_settings",
		AggregateID:   "1",
		EventType:     "delivery.settings.updated.v1",
		Payload:       payload,
	}, nil
}
