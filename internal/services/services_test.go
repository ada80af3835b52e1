package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ranvir80/lumo-assistant/internal/abuse"
	"github.com/ranvir80/lumo-assistant/internal/domain"
	"github.com/ranvir80/lumo-assistant/internal/llm"
)

// newServiceDB opens an isolated in-memory database with every table
// migrated.
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.User{},
		&domain.Message{},
		&domain.InteractionLog{},
		&domain.AppointmentSlot{},
		&domain.BlockEntry{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// fakeCompleter returns a scripted structured reply.
type fakeCompleter struct {
	mu      sync.Mutex
	reply   *llm.StructuredReply
	err     error
	calls   int
	lastReq llm.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (*llm.StructuredReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastReq = req
	if f.reply == nil {
		return &llm.StructuredReply{Intent: llm.IntentGeneral, ReplyText: "scripted reply"}, f.err
	}
	cp := *f.reply
	return &cp, f.err
}

type sentMessage struct {
	identity, text, image string
}

// fakeSender records outbound deliveries.
type fakeSender struct {
	mu    sync.Mutex
	sends []sentMessage
	err   error
}

func (f *fakeSender) Send(_ context.Context, identity, text, imageURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, sentMessage{identity, text, imageURL})
	return f.err
}

func (f *fakeSender) sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMessage, len(f.sends))
	copy(out, f.sends)
	return out
}

// newTestPipeline wires a pipeline over fresh fakes and a fresh database.
func newTestPipeline(t *testing.T) (*MessagePipeline, *fakeCompleter, *fakeSender, *gorm.DB) {
	t.Helper()
	db := newServiceDB(t)
	comp := &fakeCompleter{}
	sender := &fakeSender{}
	appts := &AppointmentService{DB: db, CancelWindow: 3 * time.Hour}
	conv := &ConversationService{DB: db, HistoryLimit: 50, ContextLimit: 15, FlaggedLimit: 10}
	p := &MessagePipeline{
		DB:               db,
		Conversations:    conv,
		Appointments:     appts,
		Completer:        comp,
		Sender:           sender,
		SpamCounter:      abuse.NewWindowCounter(time.Minute),
		InjectionCounter: abuse.NewWindowCounter(time.Hour),
		SpamMax:          20,
		InjectionMax:     3,
		SlotListLimit:    5,
	}
	return p, comp, sender, db
}

func countRows(t *testing.T, db *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
