// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// AppointmentSlot model.
//
// Booking uses optimistic locking: BookSlotIf issues a single conditional
// UPDATE guarded by the (status, version) pair the caller read beforehand.
// The database checks the condition atomically, so of two racing bookers
// exactly one sees RowsAffected == 1.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ranvir80/lumo-assistant/internal/domain"
)

// CreateSlot inserts a new open slot at the given time (admin action).
func CreateSlot(ctx context.Context, db *gorm.DB, at time.Time) (*domain.AppointmentSlot, error) {
	s := &domain.AppointmentSlot{
		SlotTime: at.UTC(),
		Status:   domain.SlotOpen,
	}
	return s, db.WithContext(ctx).Create(s).Error
}

// GetSlot fetches a slot by id.
func GetSlot(ctx context.Context, db *gorm.DB, id uint) (*domain.AppointmentSlot, error) {
	var s domain.AppointmentSlot
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// ListOpenSlots returns open slots at or after `from`, ascending by time,
// capped at `limit`.
func ListOpenSlots(ctx context.Context, db *gorm.DB, from time.Time, limit int) ([]domain.AppointmentSlot, error) {
	var out []domain.AppointmentSlot
	q := db.WithContext(ctx).
		Where("status = ? AND slot_time >= ?", domain.SlotOpen, from.UTC()).
		Order("slot_time ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// HasActiveBooking reports whether the user currently holds a booked slot
// at or after `now`.
func HasActiveBooking(ctx context.Context, db *gorm.DB, userID string, now time.Time) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.AppointmentSlot{}).
		Where("user_id = ? AND status = ? AND slot_time >= ?", userID, domain.SlotBooked, now.UTC()).
		Count(&n).Error
	return n > 0, err
}

// BookSlotIf applies the booking as a compare-and-swap: the UPDATE matches
// only while the stored status is still "open" and the stored version still
// equals expectedVersion. It returns (false, nil) when the guard failed,
// i.e. another booker won the race.
func BookSlotIf(ctx context.Context, db *gorm.DB, slotID uint, expectedVersion int64, userID, identity, userName, reason string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.AppointmentSlot{}).
		Where("id = ? AND status = ? AND version = ?", slotID, domain.SlotOpen, expectedVersion).
		Updates(map[string]any{
			"status":    domain.SlotBooked,
			"user_id":   userID,
			"identity":  identity,
			"user_name": userName,
			"reason":    reason,
			"booked_at": now.UTC(),
			"version":   expectedVersion + 1,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CancelSlot marks a booked slot cancelled. The ownership and status guards
// are part of the WHERE clause so a stale caller cannot cancel a slot that
// already moved on. Returns (false, nil) when no row matched.
func CancelSlot(ctx context.Context, db *gorm.DB, slotID uint, userID string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.AppointmentSlot{}).
		Where("id = ? AND user_id = ? AND status = ?", slotID, userID, domain.SlotBooked).
		Updates(map[string]any{
			"status":       domain.SlotCancelled,
			"cancelled_at": now.UTC(),
			"version":      gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListUserSlots returns every non-open slot attached to the user, ascending
// by time. The service layer partitions them into upcoming and past.
func ListUserSlots(ctx context.Context, db *gorm.DB, userID string) ([]domain.AppointmentSlot, error) {
	var out []domain.AppointmentSlot
	err := db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, []string{domain.SlotBooked, domain.SlotCancelled, domain.SlotCompleted}).
		Order("slot_time ASC").
		Find(&out).Error
	return out, err
}
