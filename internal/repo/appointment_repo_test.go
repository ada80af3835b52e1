package repo

import (
	"context"
	"testing"
	"time"

	"github.com/ranvir80/lumo-assistant/internal/domain"
)

func TestCreateSlot_And_ListOpenSlots(t *testing.T) {
	db := newRepoDB(t, &domain.AppointmentSlot{})
	ctx := context.Background()

	now := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	past, _ := CreateSlot(ctx, db, now.Add(-time.Hour))
	_ = past
	s1, err := CreateSlot(ctx, db, now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("CreateSlot: %v", err)
	}
	s2, _ := CreateSlot(ctx, db, now.Add(time.Hour))

	got, err := ListOpenSlots(ctx, db, now, 5)
	if err != nil {
		t.Fatalf("ListOpenSlots: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (past slot excluded)", len(got))
	}
	if got[0].ID != s2.ID || got[1].ID != s1.ID {
		t.Fatalf("slots not ascending by time: %v then %v", got[0].ID, got[1].ID)
	}
	if got[0].Status != domain.SlotOpen || got[0].Version != 0 {
		t.Fatalf("fresh slot should be open/v0: %+v", got[0])
	}
}

func TestBookSlotIf_SucceedsOnceAndBumpsVersion(t *testing.T) {
	db := newRepoDB(t, &domain.AppointmentSlot{})
	ctx := context.Background()
	now := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

	slot, _ := CreateSlot(ctx, db, now.Add(time.Hour))

	ok, err := BookSlotIf(ctx, db, slot.ID, slot.Version, "u1", "id-1", "Alice", "demo", now)
	if err != nil || !ok {
		t.Fatalf("first booking: ok=%v err=%v", ok, err)
	}

	got, err := GetSlot(ctx, db, slot.ID)
	if err != nil {
		t.Fatalf("GetSlot: %v", err)
	}
	if got.Status != domain.SlotBooked || got.UserID != "u1" || got.Version != slot.Version+1 {
		t.Fatalf("booked slot state wrong: %+v", got)
	}
	if got.BookedAt == nil {
		t.Fatal("BookedAt not set")
	}

	// Stale writer with the old version must lose.
	ok, err = BookSlotIf(ctx, db, slot.ID, slot.Version, "u2", "id-2", "Bob", "", now)
	if err != nil {
		t.Fatalf("stale booking errored: %v", err)
	}
	if ok {
		t.Fatal("stale booking must not apply")
	}

	// Winner unchanged.
	got, _ = GetSlot(ctx, db, slot.ID)
	if got.UserID != "u1" {
		t.Fatalf("winner overwritten: %+v", got)
	}
}

func TestBookSlotIf_ConcurrentExactlyOneWinner(t *testing.T) {
	db := newRepoDB(t, &domain.AppointmentSlot{})
	ctx := context.Background()
	now := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

	slot, _ := CreateSlot(ctx, db, now.Add(time.Hour))

	type result struct {
		ok  bool
		err error
	}
	results := make(chan result, 2)
	for _, who := range []struct{ uid, name string }{{"uA", "A"}, {"uB", "B"}} {
		who := who
		go func() {
			ok, err := BookSlotIf(ctx, db, slot.ID, slot.Version, who.uid, "id-"+who.uid, who.name, "", now)
			results <- result{ok, err}
		}()
	}

	wins := 0
	for i := 0; i < 2; i++ {
		r := <-results
		if r.err != nil {
			t.Fatalf("concurrent booking errored: %v", r.err)
		}
		if r.ok {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("winners = %d, want exactly 1", wins)
	}

	got, _ := GetSlot(ctx, db, slot.ID)
	if got.Status != domain.SlotBooked || got.Version != slot.Version+1 {
		t.Fatalf("final slot state wrong: %+v", got)
	}
}

func TestCancelSlot_GuardsOwnershipAndStatus(t *testing.T) {
	db := newRepoDB(t, &domain.AppointmentSlot{})
	ctx := context.Background()
	now := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

	slot, _ := CreateSlot(ctx, db, now.Add(time.Hour))
	if ok, _ := BookSlotIf(ctx, db, slot.ID, 0, "u1", "id-1", "Alice", "", now); !ok {
		t.Fatal("setup booking failed")
	}

	// Wrong owner.
	if ok, _ := CancelSlot(ctx, db, slot.ID, "u2", now); ok {
		t.Fatal("cancel by non-owner must fail")
	}

	// Owner.
	ok, err := CancelSlot(ctx, db, slot.ID, "u1", now.Add(time.Minute))
	if err != nil || !ok {
		t.Fatalf("owner cancel: ok=%v err=%v", ok, err)
	}
	got, _ := GetSlot(ctx, db, slot.ID)
	if got.Status != domain.SlotCancelled || got.CancelledAt == nil {
		t.Fatalf("slot not cancelled: %+v", got)
	}

	// No transition out of cancelled.
	if ok, _ := CancelSlot(ctx, db, slot.ID, "u1", now); ok {
		t.Fatal("double cancel must fail")
	}
	if ok, _ := BookSlotIf(ctx, db, slot.ID, got.Version, "u2", "id-2", "Bob", "", now); ok {
		t.Fatal("cancelled slot must not be bookable")
	}
}

func TestHasActiveBooking(t *testing.T) {
	db := newRepoDB(t, &domain.AppointmentSlot{})
	ctx := context.Background()
	now := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

	future, _ := CreateSlot(ctx, db, now.Add(2*time.Hour))
	if ok, _ := BookSlotIf(ctx, db, future.ID, 0, "u1", "id-1", "Alice", "", now); !ok {
		t.Fatal("setup booking failed")
	}

	ok, err := HasActiveBooking(ctx, db, "u1", now)
	if err != nil || !ok {
		t.Fatalf("expected active booking: ok=%v err=%v", ok, err)
	}
	// After the slot time passes, the booking no longer counts as active.
	ok, _ = HasActiveBooking(ctx, db, "u1", now.Add(3*time.Hour))
	if ok {
		t.Fatal("past booking must not count as active")
	}
	ok, _ = HasActiveBooking(ctx, db, "u2", now)
	if ok {
		t.Fatal("other user must have no booking")
	}
}

func TestListUserSlots_ExcludesOpen(t *testing.T) {
	db := newRepoDB(t, &domain.AppointmentSlot{})
	ctx := context.Background()
	now := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

	open, _ := CreateSlot(ctx, db, now.Add(time.Hour))
	_ = open
	booked, _ := CreateSlot(ctx, db, now.Add(2*time.Hour))
	if ok, _ := BookSlotIf(ctx, db, booked.ID, 0, "u1", "id-1", "Alice", "", now); !ok {
		t.Fatal("setup booking failed")
	}

	got, err := ListUserSlots(ctx, db, "u1")
	if err != nil {
		t.Fatalf("ListUserSlots: %v", err)
	}
	if len(got) != 1 || got[0].ID != booked.ID {
		t.Fatalf("unexpected user slots: %+v", got)
	}
}
