package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/ranvir80/lumo-assistant/internal/services"
)

func TestChat_ReturnsReply(t *testing.T) {
	env := newTestEnv(t)
	env.chat.reply = "BoardBro is a student marketplace."
	r := env.router()

	w := postJSON(t, r, "/api/chat", map[string]any{
		"userId":  "web-1",
		"name":    "Asha",
		"email":   "asha@example.com",
		"message": "What is BoardBro?",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := decodeBody(t, w)["message"]; got != "BoardBro is a student marketplace." {
		t.Fatalf("unexpected reply: %v", got)
	}
	if env.chat.got.UserID != "web-1" || env.chat.got.Email != "asha@example.com" {
		t.Fatalf("request not forwarded: %+v", env.chat.got)
	}
}

func TestChat_ValidationErrorsMapTo400(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"missing field", fmt.Errorf("name: %w", services.ErrMissingField)},
		{"empty message", services.ErrEmptyMessage},
		{"bad email", services.ErrInvalidEmail},
		{"too long", fmt.Errorf("1200 chars: %w", services.ErrMessageTooLong)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.chat.err = tc.err
			r := env.router()

			w := postJSON(t, r, "/api/chat", map[string]any{
				"userId": "web-1", "name": "A", "email": "a@b.co", "message": "x",
			})
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			if decodeBody(t, w)["code"] != ErrCodeBadRequest {
				t.Fatalf("unexpected body: %s", w.Body.String())
			}
		})
	}
}

func TestChat_InternalFailureReturnsApologyWithoutDetail(t *testing.T) {
	env := newTestEnv(t)
	env.chat.err = errors.New("database is on fire")
	r := env.router()

	w := postJSON(t, r, "/api/chat", map[string]any{
		"userId": "web-1", "name": "A", "email": "a@b.co", "message": "x",
	})

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["message"] != chatApology {
		t.Fatalf("expected apology, got %v", body)
	}
	if strings.Contains(w.Body.String(), "fire") {
		t.Fatalf("error detail leaked to client: %s", w.Body.String())
	}
}

func TestChat_RejectsInvalidJSON(t *testing.T) {
	env := newTestEnv(t)
	r := env.router()

	w := postJSON(t, r, "/api/chat", "not an object")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid body, got %d", w.Code)
	}
}
