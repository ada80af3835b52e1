// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the BlockEntry
// model. The persisted table is the source of truth for blocks; the
// in-process abuse counters are only a fast-path cache.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ranvir80/lumo-assistant/internal/domain"
)

// IsBlocked reports whether identity has a block entry of the given kind.
func IsBlocked(ctx context.Context, db *gorm.DB, identity, kind string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.BlockEntry{}).
		Where("identity = ? AND kind = ?", identity, kind).
		Count(&n).Error
	return n > 0, err
}

// InsertBlock persists a block entry. Re-blocking an already blocked
// identity is not an error; the duplicate insert is swallowed so the
// pipeline's "block then drop" path stays idempotent.
func InsertBlock(ctx context.Context, db *gorm.DB, identity, kind, reason string) error {
	e := &domain.BlockEntry{
		ID:        uuid.NewString(),
		Identity:  identity,
		Kind:      kind,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
	err := db.WithContext(ctx).Create(e).Error
	if err != nil {
		if exists, checkErr := IsBlocked(ctx, db, identity, kind); checkErr == nil && exists {
			return nil
		}
	}
	return err
}
