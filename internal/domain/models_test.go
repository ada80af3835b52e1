package domain

import "testing"

func TestTableNames(t *testing.T) {
	cases := []struct {
		got  string
		want string
	}{
		{User{}.TableName(), "users"},
		{Message{}.TableName(), "messages"},
		{InteractionLog{}.TableName(), "interaction_logs"},
		{AppointmentSlot{}.TableName(), "appointment_slots"},
		{BlockEntry{}.TableName(), "block_entries"},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("TableName = %q, want %q", tc.got, tc.want)
		}
	}
}

func TestStatusConstants(t *testing.T) {
	// The booking state machine depends on these exact literals in SQL
	// conditions; a rename must show up here.
	if SlotOpen != "open" || SlotBooked != "booked" || SlotCancelled != "cancelled" || SlotCompleted != "completed" {
		t.Fatal("slot status literals changed")
	}
	if RoleUser != "user" || RoleAssistant != "assistant" || RoleSystem != "system" {
		t.Fatal("role literals changed")
	}
	if BlockSilent != "silent" || BlockSpam != "spam" {
		t.Fatal("block kind literals changed")
	}
}
