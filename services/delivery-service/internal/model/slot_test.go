package model

import "testing"

func TestTimeBlockHours(t *testing.T) {
	cases := []struct {
		block      TimeBlock
		start, end int
	}{
		{BlockMorning, 8, 12},
		{BlockAfternoon, 12, 16},
		{BlockEvening, 16, 20},
	}
	for _, tc := range cases {
		start, end := tc.block.Hours()
		if start != tc.start || end != tc.end {
			t.Fatalf("%s: expected %d-%d, got %d-%d", tc.block, tc.start, tc.end, start, end)
		}
	}
}

func TestParseTimeBlock(t *testing.T) {
	for _, valid := range []string{"Morning", "Afternoon", "Evening"} {
		if _, err := ParseTimeBlock(valid); err != nil {
			t.Fatalf("%s should parse: %v", valid, err)
		}
	}
	for _, invalid := range []string{"", "morning", "Night", "Midday"} {
		if _, err := ParseTimeBlock(invalid); err == nil {
			t.Fatalf("%q should not parse", invalid)
		}
	}
}

func TestSlotKey(t *testing.T) {
	s := DeliverySlot{Date: "2024-06-05", TimeBlock: BlockMorning}
	if s.Key() != SlotKey("2024-06-05", BlockMorning) {
		t.Fatalf("key mismatch: %q", s.Key())
	}
	if SlotKey("2024-06-05", BlockMorning) == SlotKey("2024-06-05", BlockEvening) {
		t.Fatal("keys for different blocks must differ")
	}
}
