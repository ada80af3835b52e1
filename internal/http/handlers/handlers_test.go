package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ranvir80/lumo-assistant/internal/domain"
	"github.com/ranvir80/lumo-assistant/internal/services"
)

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:h_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.User{}, &domain.Message{}, &domain.InteractionLog{},
		&domain.AppointmentSlot{}, &domain.BlockEntry{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// fakePipeline records the inbound it was given and signals completion, so
// tests can wait for the detached webhook goroutine.
type fakePipeline struct {
	got  services.Inbound
	res  services.Result
	err  error
	done chan struct{}
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{
		res:  services.Result{Disposition: services.DispositionReplied, Reply: "ok"},
		done: make(chan struct{}),
	}
}

func (f *fakePipeline) Process(_ context.Context, in services.Inbound) (services.Result, error) {
	f.got = in
	close(f.done)
	return f.res, f.err
}

func (f *fakePipeline) wait(t *testing.T) {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("pipeline was never invoked")
	}
}

type fakeChat struct {
	got   services.ChatRequest
	reply string
	err   error
}

func (f *fakeChat) Answer(_ context.Context, req services.ChatRequest) (string, error) {
	f.got = req
	return f.reply, f.err
}

type fakeSender struct {
	identity string
	text     string
	image    string
	err      error
	calls    int
}

func (f *fakeSender) Send(_ context.Context, identity, text, imageURL string) error {
	f.calls++
	f.identity, f.text, f.image = identity, text, imageURL
	return f.err
}

type testEnv struct {
	h        *Handlers
	pipeline *fakePipeline
	chat     *fakeChat
	sender   *fakeSender
	db       *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newHandlerDB(t)
	env := &testEnv{
		pipeline: newFakePipeline(),
		chat:     &fakeChat{reply: "scripted reply"},
		sender:   &fakeSender{},
		db:       db,
	}
	slots := &services.AppointmentService{DB: db, CancelWindow: 3 * time.Hour}
	env.h = New(env.pipeline, env.chat, slots, env.sender, db)
	return env
}

func (e *testEnv) router() *gin.Engine {
	r := gin.New()
	r.POST("/webhook", e.h.Webhook)
	r.POST("/api/chat", e.h.Chat)
	r.POST("/send", e.h.Send)
	r.POST("/admin/slots", e.h.CreateSlot)
	r.GET("/admin/slots", e.h.ListSlots)
	r.POST("/admin/block", e.h.Block)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("invalid JSON body %q: %v", w.Body.String(), err)
	}
	return m
}
