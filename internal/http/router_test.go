package httpapi

import (
	"bytes"
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

	"github.com/ranvir80/lumo-assistant/internal/config"
	"github.com/ranvir80/lumo-assistant/internal/domain"
)

func newRouterDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:r_%s?mode=memory&cache=shared", t.Name())
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

func testConfig() config.Config {
	cfg := config.Config{
		MaxMessageLen: 1000,
		HistoryLimit:  50,
		ContextLimit:  15,
		FlaggedLimit:  10,
		CancelWindow:  3 * time.Hour,
		RateWindow:    15 * time.Second,
		RateMax:       5,
	}
	cfg.Abuse.SpamMaxPerWindow = 20
	cfg.Abuse.SpamWindow = time.Minute
	cfg.Abuse.InjectionMax = 3
	cfg.Abuse.InjectionWindow = time.Hour
	cfg.Delivery.AuthKey = "test-admin-key"
	cfg.OTEL.ServiceName = "lumo-assistant-test"
	// Empty LLM.APIKey keeps the gateway in demo mode: no network calls.
	return cfg
}

func newRouter(t *testing.T, cfg config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newRouterDB(t), cfg)
	return r
}

func TestRouter_Health(t *testing.T) {
	r := newRouter(t, testConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "ok" || body["service"] != "lumo-assistant-test" {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestRouter_NoRouteAndNoMethodEnvelopes(t *testing.T) {
	r := newRouter(t, testConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest(http.MethodDelete, "/health", nil))
	if w2.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w2.Code)
	}
}

func TestRouter_MetricsExposed(t *testing.T) {
	r := newRouter(t, testConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", w.Code)
	}
}

func TestRouter_AdminRoutesRequireAuthKey(t *testing.T) {
	r := newRouter(t, testConfig())

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/send"},
		{http.MethodPost, "/admin/slots"},
		{http.MethodGet, "/admin/slots"},
		{http.MethodPost, "/admin/block"},
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(route.method, route.path, nil))
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401 without key, got %d", route.method, route.path, w.Code)
		}
	}

	// With the key, the request clears auth and reaches the handler.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/slots", nil)
	req.Header.Set("Auth-Key", "test-admin-key")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d", w.Code)
	}
}

func TestRouter_ChatRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateMax = 2
	r := newRouter(t, cfg)

	payload, _ := json.Marshal(map[string]any{
		"userId": "web-1", "name": "A", "email": "a@b.co", "message": "hi",
	})
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("first two requests should pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Fatalf("third request should be rate-limited, got %v", codes)
	}
}

func TestRouter_CORSAllowAllByDefault(t *testing.T) {
	r := newRouter(t, testConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected ACAO *, got %q", got)
	}
}
