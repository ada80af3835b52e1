// Package services – AppointmentService
//
// This file implements AppointmentService, the component that owns the slot
// lifecycle: open → booked → cancelled (or completed, which is implicit and
// time based). Booking is a compare-and-swap against the (status, version)
// pair read beforehand, so two racing bookers for the same slot resolve to
// exactly one winner. Cancellation is allowed only to the booking owner and
// only within a fixed window after the booking was made.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// slot and user identifiers.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ranvir80/lumo-assistant/internal/domain"
	"github.com/ranvir80/lumo-assistant/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AppointmentService coordinates slot booking with optimistic locking.
type AppointmentService struct {
	DB *gorm.DB

	// CancelWindow is how long after booking a cancellation is allowed.
	CancelWindow time.Duration

	// Now is the clock, overridable in tests. Nil means time.Now.
	Now func() time.Time
}

func (s *AppointmentService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// CreateSlot opens a new bookable slot (admin action).
func (s *AppointmentService) CreateSlot(ctx context.Context, at time.Time) (*domain.AppointmentSlot, error) {
	tr := otel.Tracer("services/AppointmentService")
	ctx, span := tr.Start(ctx, "CreateSlot")
	defer span.End()

	return repo.CreateSlot(ctx, s.DB, at)
}

// ListAvailable returns open slots at or after `from`, ascending, capped at
// limit.
func (s *AppointmentService) ListAvailable(ctx context.Context, from time.Time, limit int) ([]domain.AppointmentSlot, error) {
	tr := otel.Tracer("services/AppointmentService")
	ctx, span := tr.Start(ctx, "ListAvailable",
		trace.WithAttributes(attribute.Int("slots.limit", limit)),
	)
	defer span.End()

	return repo.ListOpenSlots(ctx, s.DB, from, limit)
}

// Book reserves a slot for the user.
//
// Policy checks run first: a user may hold at most one active booking.
// The write itself is conditional on the (status, version) pair read here;
// a failed condition means another booker won and ErrSlotTaken is returned.
func (s *AppointmentService) Book(ctx context.Context, slotID uint, userID, identity, userName, reason string) (*domain.AppointmentSlot, error) {
	tr := otel.Tracer("services/AppointmentService")
	ctx, span := tr.Start(ctx, "Book",
		trace.WithAttributes(
			attribute.Int("slot.id", int(slotID)),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	now := s.now()

	active, err := repo.HasActiveBooking(ctx, s.DB, userID, now)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrActiveBookingExists
	}

	slot, err := repo.GetSlot(ctx, s.DB, slotID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}
	if slot.Status != domain.SlotOpen {
		return nil, ErrSlotUnavailable
	}

	ok, err := repo.BookSlotIf(ctx, s.DB, slotID, slot.Version, userID, identity, userName, reason, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSlotTaken
	}
	return repo.GetSlot(ctx, s.DB, slotID)
}

// Cancel releases the user's booking. Only the booking owner may cancel,
// only while the slot is still booked, and only within CancelWindow of the
// booking time.
func (s *AppointmentService) Cancel(ctx context.Context, slotID uint, userID string) (*domain.AppointmentSlot, error) {
	tr := otel.Tracer("services/AppointmentService")
	ctx, span := tr.Start(ctx, "Cancel",
		trace.WithAttributes(
			attribute.Int("slot.id", int(slotID)),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	now := s.now()

	slot, err := repo.GetSlot(ctx, s.DB, slotID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	if slot.Status != domain.SlotBooked || slot.UserID != userID {
		return nil, ErrBookingNotFound
	}
	if slot.BookedAt != nil && now.Sub(*slot.BookedAt) > s.CancelWindow {
		return nil, ErrCancelWindowClosed
	}

	ok, err := repo.CancelSlot(ctx, s.DB, slotID, userID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// The slot changed between the read and the write.
		return nil, ErrBookingNotFound
	}
	return repo.GetSlot(ctx, s.DB, slotID)
}

// ListForUser partitions the user's non-open appointments into upcoming
// (booked, time >= now) and past, each ascending by time.
func (s *AppointmentService) ListForUser(ctx context.Context, userID string) (upcoming, past []domain.AppointmentSlot, err error) {
	tr := otel.Tracer("services/AppointmentService")
	ctx, span := tr.Start(ctx, "ListForUser",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	slots, err := repo.ListUserSlots(ctx, s.DB, userID)
	if err != nil {
		return nil, nil, err
	}
	now := s.now()
	for _, sl := range slots {
		if sl.Status == domain.SlotBooked && !sl.SlotTime.Before(now) {
			upcoming = append(upcoming, sl)
		} else {
			past = append(past, sl)
		}
	}
	return upcoming, past, nil
}
