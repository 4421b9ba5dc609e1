package model

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date key for delivery slots. Slots are keyed by
// local calendar date, not a timestamp, so the horizon doesn't drift across
// timezone boundaries.
const DateLayout = "2006-01-02"

// TimeBlock is one of the three fixed 4-hour delivery windows.
type TimeBlock string

const (
	BlockMorning   TimeBlock = "Morning"
	BlockAfternoon TimeBlock = "Afternoon"
	BlockEvening   TimeBlock = "Evening"
)

// TimeBlocks lists the blocks in display order.
var TimeBlocks = []TimeBlock{BlockMorning, BlockAfternoon, BlockEvening}

// Hours returns the local start and end hour of the block.
func (b TimeBlock) Hours() (start, end int) {
	switch b {
	case BlockMorning:
		return 8, 12
	case BlockAfternoon:
		return 12, 16
	case BlockEvening:
		return 16, 20
	}
	return 0, 0
}

// Label is the customer-facing window name shown in the storefront.
func (b TimeBlock) Label() string {
	switch b {
	case BlockMorning:
		return "Morning (8am - 12pm)"
	case BlockAfternoon:
		return "Afternoon (12pm - 4pm)"
	case BlockEvening:
		return "Evening (4pm - 8pm)"
	}
	return string(b)
}

func ParseTimeBlock(s string) (TimeBlock, error) {
	switch TimeBlock(s) {
	case BlockMorning, BlockAfternoon, BlockEvening:
		return TimeBlock(s), nil
	}
	return "", fmt.Errorf("unknown time block %q", s)
}

// SlotStatus tracks the booking state of a persisted slot.
//
// Open: no bookings yet, no geographic constraint.
// Anchored: the first booking pinned a reference coordinate; later bookings
// are distance-checked against it.
// Full: driver capacity reached, closed regardless of geography.
type SlotStatus string

const (
	SlotOpen     SlotStatus = "Open"
	SlotAnchored SlotStatus = "Anchored"
	SlotFull     SlotStatus = "Full"
)

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DeliverySlot is one record per unique (date, time block) pair. It is
// created on the first successful booking and never deleted.
type DeliverySlot struct {
	ID         int64
	Date       string // YYYY-MM-DD
	TimeBlock  TimeBlock
	Status     SlotStatus
	Anchor     *Coordinates // set exactly once, by the first booking
	OrderCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Key identifies a slot within a horizon lookup map.
func (s DeliverySlot) Key() string {
	return SlotKey(s.Date, s.TimeBlock)
}

func SlotKey(date string, block TimeBlock) string {
	return date + "|" + string(block)
}

// StoreSettings is the system-wide delivery configuration singleton.
type StoreSettings struct {
	SameDayDeliveryEnabled bool `json:"same_day_delivery_enabled"`
	DeliveryCutoffHour     int  `json:"delivery_cutoff_hour"`
}

// DefaultStoreSettings are applied when the settings row has never been
// configured: same-day off, ordering closes at 8pm.
func DefaultStoreSettings() StoreSettings {
	return StoreSettings{
		SameDayDeliveryEnabled: false,
		DeliveryCutoffHour:     20,
	}
}

type Booking struct {
	ID        string
	SlotDate  string
	TimeBlock TimeBlock
	Customer  Coordinates
	CreatedAt time.Time
}
