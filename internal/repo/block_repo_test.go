package repo

import (
	"context"
	"testing"

	"github.com/ranvir80/lumo-assistant/internal/domain"
)

func TestInsertBlock_And_IsBlocked(t *testing.T) {
	db := newRepoDB(t, &domain.BlockEntry{})
	ctx := context.Background()

	if err := InsertBlock(ctx, db, "jid:1", domain.BlockSilent, "manual"); err != nil {
		t.Fatalf("InsertBlock: %v", err)
	}

	ok, err := IsBlocked(ctx, db, "jid:1", domain.BlockSilent)
	if err != nil || !ok {
		t.Fatalf("IsBlocked silent: ok=%v err=%v", ok, err)
	}
	// A silent block is not a spam block.
	ok, _ = IsBlocked(ctx, db, "jid:1", domain.BlockSpam)
	if ok {
		t.Fatal("kinds must be independent")
	}
}

func TestInsertBlock_DuplicateIsIdempotent(t *testing.T) {
	db := newRepoDB(t, &domain.BlockEntry{})
	ctx := context.Background()

	if err := InsertBlock(ctx, db, "jid:2", domain.BlockSpam, "spam burst"); err != nil {
		t.Fatalf("InsertBlock: %v", err)
	}
	if err := InsertBlock(ctx, db, "jid:2", domain.BlockSpam, "spam burst again"); err != nil {
		t.Fatalf("duplicate InsertBlock should be swallowed: %v", err)
	}
}

func TestInsertInteraction_StoresDetailsJSON(t *testing.T) {
	db := newRepoDB(t, &domain.InteractionLog{})
	ctx := context.Background()

	l, err := InsertInteraction(ctx, db, "u1", "jid:1", "security_block", "negative", map[string]any{
		"reason": "repeated_injection_attempts",
		"count":  3,
	})
	if err != nil {
		t.Fatalf("InsertInteraction: %v", err)
	}
	var got domain.InteractionLog
	if err := db.First(&got, "id = ?", l.ID).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.ActionType != "security_block" || got.Sentiment != "negative" {
		t.Fatalf("unexpected row: %+v", got)
	}
	if got.Details == "" || got.Details == "{}" {
		t.Fatalf("details not stored: %q", got.Details)
	}
}

func TestInsertInteraction_NilDetails(t *testing.T) {
	db := newRepoDB(t, &domain.InteractionLog{})
	l, err := InsertInteraction(context.Background(), db, "", "jid:2", "chat", "neutral", nil)
	if err != nil {
		t.Fatalf("InsertInteraction: %v", err)
	}
	if l.Details != "{}" {
		t.Fatalf("Details = %q, want {}", l.Details)
	}
}
