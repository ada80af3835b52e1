// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ranvir80/lumo-assistant/internal/domain"
)

// UpsertUser fetches the user for identity, creating the row on first
// contact. On every contact it refreshes LastSeen, increments MessageCount,
// and overwrites display/contact fields when the caller supplied them.
func UpsertUser(ctx context.Context, db *gorm.DB, identity, displayName, email, phone string) (*domain.User, error) {
	now := time.Now().UTC()

	var u domain.User
	err := db.WithContext(ctx).Where("identity = ?", identity).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		u = domain.User{
			ID:           uuid.NewString(),
			Identity:     identity,
			DisplayName:  displayName,
			Email:        email,
			Phone:        phone,
			MessageCount: 1,
			CreatedAt:    now,
			LastSeen:     now,
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			return nil, err
		}
		return &u, nil
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"last_seen":     now,
		"message_count": gorm.Expr("message_count + 1"),
	}
	if displayName != "" {
		updates["display_name"] = displayName
	}
	if email != "" {
		updates["email"] = email
	}
	if phone != "" {
		updates["phone"] = phone
	}
	if err := db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", u.ID).Updates(updates).Error; err != nil {
		return nil, err
	}

	// Re-read so the caller sees the refreshed counters.
	if err := db.WithContext(ctx).Where("id = ?", u.ID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByIdentity fetches a user by external identity.
func GetUserByIdentity(ctx context.Context, db *gorm.DB, identity string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("identity = ?", identity).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}
