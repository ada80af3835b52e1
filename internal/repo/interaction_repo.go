// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the append-only InteractionLog writer.
package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ranvir80/lumo-assistant/internal/domain"
)

// InsertInteraction appends an audit log row. Details are stored as JSON;
// a nil map stores an empty object. UserID may be empty for anonymous or
// security events.
func InsertInteraction(ctx context.Context, db *gorm.DB, userID, identity, actionType, sentiment string, details map[string]any) (*domain.InteractionLog, error) {
	raw := []byte("{}")
	if len(details) > 0 {
		if b, err := json.Marshal(details); err == nil {
			raw = b
		}
	}
	l := &domain.InteractionLog{
		ID:         uuid.NewString(),
		UserID:     userID,
		Identity:   identity,
		ActionType: actionType,
		Sentiment:  sentiment,
		Details:    string(raw),
		CreatedAt:  time.Now().UTC(),
	}
	return l, db.WithContext(ctx).Create(l).Error
}
