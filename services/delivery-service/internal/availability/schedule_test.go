package availability

import (
	"testing"
	"time"

	"github.com/greenlane-app/greenlane/services/delivery-service/internal/geo"
	"github.com/greenlane-app/greenlane/services/delivery-service/internal/model"
)

// 2024-06-03 is a Monday.
func monday(hour int) time.Time {
	return time.Date(2024, 6, 3, hour, 0, 0, 0, time.UTC)
}

func lookupNone(string, model.TimeBlock) (model.DeliverySlot, bool) {
	return model.DeliverySlot{}, false
}

func lookupMap(slots ...model.DeliverySlot) LookupFunc {
	m := make(map[string]model.DeliverySlot, len(slots))
	for _, s := range slots {
		m[s.Key()] = s
	}
	return func(date string, block model.TimeBlock) (model.DeliverySlot, bool) {
		s, ok := m[model.SlotKey(date, block)]
		return s, ok
	}
}

var customer = model.Coordinates{Lat: 44.0, Lng: -76.0}

func TestHorizonSameDayDisabled(t *testing.T) {
	settings := model.StoreSettings{SameDayDeliveryEnabled: false, DeliveryCutoffHour: 20}
	for _, hour := range []int{0, 8, 14, 19, 23} {
		days := Schedule(monday(hour), settings, lookupNone, customer, Options{})
		if len(days) != 2 {
			t.Fatalf("hour %d: expected 2 horizon days, got %d", hour, len(days))
		}
		if days[0].Date != "2024-06-04" || days[1].Date != "2024-06-05" {
			t.Fatalf("hour %d: unexpected horizon %s, %s", hour, days[0].Date, days[1].Date)
		}
	}
}

func TestHorizonSameDayBeforeCutoff(t *testing.T) {
	settings := model.StoreSettings{SameDayDeliveryEnabled: true, DeliveryCutoffHour: 20}
	days := Schedule(monday(14), settings, lookupNone, customer, Options{})
	if len(days) != 3 {
		t.Fatalf("expected 3 horizon days, got %d", len(days))
	}
	if days[0].Date != "2024-06-03" {
		t.Fatalf("expected today first, got %s", days[0].Date)
	}
	if days[0].DayName != "Monday" || days[1].DayName != "Tuesday" || days[2].DayName != "Wednesday" {
		t.Fatalf("unexpected day names: %s, %s, %s", days[0].DayName, days[1].DayName, days[2].DayName)
	}
}

func TestHorizonSameDayAtOrAfterCutoff(t *testing.T) {
	settings := model.StoreSettings{SameDayDeliveryEnabled: true, DeliveryCutoffHour: 20}
	for _, hour := range []int{20, 21, 23} {
		days := Schedule(monday(hour), settings, lookupNone, customer, Options{})
		if len(days) != 2 {
			t.Fatalf("hour %d: expected today excluded, got %d days", hour, len(days))
		}
		if days[0].Date != "2024-06-04" {
			t.Fatalf("hour %d: expected tomorrow first, got %s", hour, days[0].Date)
		}
	}
}

func TestTimePassedGate(t *testing.T) {
	// Cutoff late enough that today stays in the horizon for every case.
	settings := model.StoreSettings{SameDayDeliveryEnabled: true, DeliveryCutoffHour: 23}

	cases := []struct {
		hour int
		want [3]Status // Morning, Afternoon, Evening for today
	}{
		{hour: 8, want: [3]Status{StatusOpen, StatusOpen, StatusOpen}},
		{hour: 11, want: [3]Status{StatusOpen, StatusOpen, StatusOpen}},
		{hour: 12, want: [3]Status{StatusUnavailable, StatusOpen, StatusOpen}},
		{hour: 15, want: [3]Status{StatusUnavailable, StatusOpen, StatusOpen}},
		{hour: 16, want: [3]Status{StatusUnavailable, StatusUnavailable, StatusOpen}},
		{hour: 20, want: [3]Status{StatusUnavailable, StatusUnavailable, StatusUnavailable}},
		{hour: 22, want: [3]Status{StatusUnavailable, StatusUnavailable, StatusUnavailable}},
	}
	for _, tc := range cases {
		days := Schedule(monday(tc.hour), settings, lookupNone, customer, Options{})
		today := days[0]
		if today.Date != "2024-06-03" {
			t.Fatalf("hour %d: expected today first, got %s", tc.hour, today.Date)
		}
		for i, slot := range today.Slots {
			if slot.Status != tc.want[i] {
				t.Fatalf("hour %d, block %d: expected %s, got %s", tc.hour, i, tc.want[i], slot.Status)
			}
			if slot.Status == StatusUnavailable && slot.Reason != "" {
				t.Fatalf("hour %d, block %d: time-passed slot should carry no reason, got %q", tc.hour, i, slot.Reason)
			}
		}
	}
}

func TestTimePassedGateSkipsPersistedState(t *testing.T) {
	// A passed window reports Unavailable even when the record says Full.
	settings := model.StoreSettings{SameDayDeliveryEnabled: true, DeliveryCutoffHour: 23}
	lookup := lookupMap(model.DeliverySlot{
		Date:       "2024-06-03",
		TimeBlock:  model.BlockMorning,
		Status:     model.SlotFull,
		OrderCount: 12,
	})
	days := Schedule(monday(14), settings, lookup, customer, Options{})
	got := days[0].Slots[0]
	if got.Status != StatusUnavailable || got.Reason != "" {
		t.Fatalf("expected Unavailable with no reason, got %s %q", got.Status, got.Reason)
	}
}

func TestNoRecordIsOpen(t *testing.T) {
	settings := model.StoreSettings{SameDayDeliveryEnabled: false, DeliveryCutoffHour: 20}
	days := Schedule(monday(9), settings, lookupNone, customer, Options{})
	for _, day := range days {
		if len(day.Slots) != 3 {
			t.Fatalf("expected 3 slots per day, got %d", len(day.Slots))
		}
		for i, slot := range day.Slots {
			if slot.Status != StatusOpen || slot.Reason != "" {
				t.Fatalf("day %s block %d: expected Open with no reason, got %s %q", day.Date, i, slot.Status, slot.Reason)
			}
		}
	}
}

func TestSlotLabelsInOrder(t *testing.T) {
	settings := model.StoreSettings{SameDayDeliveryEnabled: false, DeliveryCutoffHour: 20}
	days := Schedule(monday(9), settings, lookupNone, customer, Options{})
	want := []string{"Morning (8am - 12pm)", "Afternoon (12pm - 4pm)", "Evening (4pm - 8pm)"}
	for i, slot := range days[0].Slots {
		if slot.Time != want[i] {
			t.Fatalf("block %d: expected label %q, got %q", i, want[i], slot.Time)
		}
	}
}

func TestCapacityGateBeatsAnchorGate(t *testing.T) {
	// Anchor is way out of range, but the slot is full: Full wins.
	farAnchor := &model.Coordinates{Lat: 45.5, Lng: -76.0}
	lookup := lookupMap(model.DeliverySlot{
		Date:       "2024-06-04",
		TimeBlock:  model.BlockAfternoon,
		Status:     model.SlotAnchored,
		Anchor:     farAnchor,
		OrderCount: 12,
	})
	settings := model.StoreSettings{SameDayDeliveryEnabled: false, DeliveryCutoffHour: 20}
	days := Schedule(monday(9), settings, lookup, customer, Options{})
	got := days[0].Slots[1]
	if got.Status != StatusFull {
		t.Fatalf("expected Full, got %s", got.Status)
	}
	if got.Reason != "Driver Fully Booked" {
		t.Fatalf("unexpected reason %q", got.Reason)
	}
}

func TestAnchorGateLocksDistantCustomer(t *testing.T) {
	// ~9.2 miles north of the anchor (one degree of latitude is ~69.09 mi).
	anchor := &model.Coordinates{Lat: 44.0, Lng: -76.0}
	distant := model.Coordinates{Lat: 44.1332, Lng: -76.0}
	lookup := lookupMap(model.DeliverySlot{
		Date:       "2024-06-05",
		TimeBlock:  model.BlockMorning,
		Status:     model.SlotAnchored,
		Anchor:     anchor,
		OrderCount: 3,
	})
	settings := model.StoreSettings{SameDayDeliveryEnabled: false, DeliveryCutoffHour: 20}
	days := Schedule(monday(9), settings, lookup, distant, Options{})
	got := days[1].Slots[0]
	if got.Status != StatusLocked {
		t.Fatalf("expected Locked, got %s", got.Status)
	}
	if got.Reason != "Zone mismatch (9.2 miles from route)" {
		t.Fatalf("unexpected reason %q", got.Reason)
	}
}

func TestAnchorGateKeepsNearbyCustomerOpen(t *testing.T) {
	anchor := &model.Coordinates{Lat: 44.0, Lng: -76.0}
	nearby := model.Coordinates{Lat: 44.02, Lng: -76.01} // well inside 8 miles
	lookup := lookupMap(model.DeliverySlot{
		Date:       "2024-06-04",
		TimeBlock:  model.BlockEvening,
		Status:     model.SlotAnchored,
		Anchor:     anchor,
		OrderCount: 5,
	})
	settings := model.StoreSettings{SameDayDeliveryEnabled: false, DeliveryCutoffHour: 20}
	days := Schedule(monday(9), settings, lookup, nearby, Options{})
	got := days[0].Slots[2]
	if got.Status != StatusOpen || got.Reason != "" {
		t.Fatalf("expected Open with no reason, got %s %q", got.Status, got.Reason)
	}
}

func TestAnchorGateThresholdIsStrict(t *testing.T) {
	// Distance exactly equal to the radius stays Open; only strictly greater locks.
	anchor := &model.Coordinates{Lat: 44.0, Lng: -76.0}
	at := model.Coordinates{Lat: 44.1, Lng: -76.05}
	exact := geo.Distance(at, *anchor)

	lookup := lookupMap(model.DeliverySlot{
		Date:       "2024-06-04",
		TimeBlock:  model.BlockMorning,
		Status:     model.SlotAnchored,
		Anchor:     anchor,
		OrderCount: 1,
	})
	settings := model.StoreSettings{SameDayDeliveryEnabled: false, DeliveryCutoffHour: 20}

	days := Schedule(monday(9), settings, lookup, at, Options{ZoneRadiusMiles: exact})
	if got := days[0].Slots[0]; got.Status != StatusOpen {
		t.Fatalf("distance == radius should stay Open, got %s", got.Status)
	}

	days = Schedule(monday(9), settings, lookup, at, Options{ZoneRadiusMiles: exact * 0.99})
	if got := days[0].Slots[0]; got.Status != StatusLocked {
		t.Fatalf("distance > radius should lock, got %s", got.Status)
	}
}

func TestScheduleMondayAfternoon(t *testing.T) {
	// End-to-end: Monday 14:00, same-day on, cutoff 20.
	settings := model.StoreSettings{SameDayDeliveryEnabled: true, DeliveryCutoffHour: 20}
	days := Schedule(monday(14), settings, lookupNone, customer, Options{})

	if len(days) != 3 {
		t.Fatalf("expected 3 days, got %d", len(days))
	}
	today := days[0]
	if today.Slots[0].Status != StatusUnavailable {
		t.Fatalf("Monday morning should be Unavailable at 14:00, got %s", today.Slots[0].Status)
	}
	if today.Slots[1].Status != StatusOpen {
		t.Fatalf("Monday afternoon should be Open, got %s", today.Slots[1].Status)
	}
	if today.Slots[2].Status != StatusOpen {
		t.Fatalf("Monday evening should be Open, got %s", today.Slots[2].Status)
	}
}

func TestHorizonDaysChronological(t *testing.T) {
	settings := model.StoreSettings{SameDayDeliveryEnabled: true, DeliveryCutoffHour: 20}
	days := HorizonDays(monday(10), settings)
	for i := 1; i < len(days); i++ {
		if !days[i].After(days[i-1]) {
			t.Fatalf("horizon not chronological at index %d", i)
		}
	}
}
