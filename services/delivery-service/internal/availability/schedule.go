// Package availability computes which delivery windows are bookable for a
// customer over the rolling horizon. It is a pure function of the clock, the
// store settings, the persisted slot state and the customer's location; it
// never writes anything.
package availability

import (
	"fmt"
	"time"

	"github.com/greenlane-app/greenlane/services/delivery-service/internal/geo"
	"github.com/greenlane-app/greenlane/services/delivery-service/internal/model"
)

// Status is the per-window bookability reported to the storefront. Distinct
// from model.SlotStatus: a persisted slot may be Anchored yet report Open to
// a customer inside the zone, or Locked to one outside it.
type Status string

const (
	StatusOpen        Status = "Open"
	StatusFull        Status = "Full"
	StatusLocked      Status = "Locked"
	StatusUnavailable Status = "Unavailable"
)

const fullReason = "Driver Fully Booked"

type SlotAvailability struct {
	Time   string `json:"time"`
	Status Status `json:"status"`
	Reason string `json:"reason"`
}

type DayAvailability struct {
	Date    string             `json:"date"`
	DayName string             `json:"dayName"`
	Slots   []SlotAvailability `json:"slots"`
}

// LookupFunc reports the persisted slot for a (date, block) pair, if any.
type LookupFunc func(date string, block model.TimeBlock) (model.DeliverySlot, bool)

type Options struct {
	ZoneRadiusMiles float64
	SlotCapacity    int
}

const (
	DefaultZoneRadiusMiles = 8.0
	DefaultSlotCapacity    = 12
)

func (o Options) withDefaults() Options {
	if o.ZoneRadiusMiles <= 0 {
		o.ZoneRadiusMiles = DefaultZoneRadiusMiles
	}
	if o.SlotCapacity <= 0 {
		o.SlotCapacity = DefaultSlotCapacity
	}
	return o
}

// HorizonDays returns the calendar days availability is computed for, in
// chronological order. Today is included only when same-day delivery is on
// and the cutoff hour has not passed; tomorrow and the day after are always
// included.
func HorizonDays(now time.Time, settings model.StoreSettings) []time.Time {
	var days []time.Time
	if settings.SameDayDeliveryEnabled && now.Hour() < settings.DeliveryCutoffHour {
		days = append(days, now)
	}
	days = append(days, now.AddDate(0, 0, 1), now.AddDate(0, 0, 2))
	return days
}

// Schedule produces the day-group availability report for one customer.
// All hour comparisons are against now's local clock; the caller supplies a
// now already in the store's operating timezone.
func Schedule(now time.Time, settings model.StoreSettings, lookup LookupFunc, customer model.Coordinates, opts Options) []DayAvailability {
	opts = opts.withDefaults()
	today := now.Format(model.DateLayout)

	days := HorizonDays(now, settings)
	out := make([]DayAvailability, 0, len(days))
	for _, day := range days {
		date := day.Format(model.DateLayout)
		group := DayAvailability{
			Date:    date,
			DayName: day.Weekday().String(),
			Slots:   make([]SlotAvailability, 0, len(model.TimeBlocks)),
		}
		for _, block := range model.TimeBlocks {
			group.Slots = append(group.Slots, resolve(now, date == today, date, block, lookup, customer, opts))
		}
		out = append(out, group)
	}
	return out
}

// resolve evaluates the gates for one (date, block) pair in precedence
// order: time-passed, then no-record, then capacity, then geographic anchor.
// A full slot is full regardless of zone, so capacity wins over anchoring.
func resolve(now time.Time, isToday bool, date string, block model.TimeBlock, lookup LookupFunc, customer model.Coordinates, opts Options) SlotAvailability {
	out := SlotAvailability{Time: block.Label(), Status: StatusOpen}

	if isToday {
		_, end := block.Hours()
		// The window's end hour counts as passed.
		if now.Hour() >= end {
			out.Status = StatusUnavailable
			return out
		}
	}

	slot, ok := lookup(date, block)
	if !ok {
		return out
	}

	if slot.OrderCount >= opts.SlotCapacity {
		out.Status = StatusFull
		out.Reason = fullReason
		return out
	}

	if slot.Status == model.SlotAnchored && slot.Anchor != nil {
		dist := geo.Distance(customer, *slot.Anchor)
		if dist > opts.ZoneRadiusMiles {
			out.Status = StatusLocked
			out.Reason = fmt.Sprintf("Zone mismatch (%.1f miles from route)", dist)
		}
	}

	return out
}
