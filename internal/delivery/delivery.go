// Package delivery sends outbound messages to end users through the
// messaging gateway's /send endpoint, authenticated with a shared key.
//
// Delivery is best effort: a failed send is logged and reported as an
// error, but callers are expected to continue (persistence and audit
// logging must not depend on a flaky gateway).
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Sender delivers one message to a recipient identity. An empty imageURL
// means text only.
type Sender interface {
	Send(ctx context.Context, identity, text, imageURL string) error
}

// HTTPSender posts messages to an HTTP gateway.
type HTTPSender struct {
	URL     string
	AuthKey string
	Client  *http.Client
}

// NewHTTPSender builds a sender with a bounded request timeout.
func NewHTTPSender(url, authKey string, timeout time.Duration) *HTTPSender {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPSender{
		URL:     url,
		AuthKey: authKey,
		Client:  &http.Client{Timeout: timeout},
	}
}

type sendPayload struct {
	JID      string `json:"jid"`
	Message  string `json:"message"`
	ImageURL string `json:"image_url,omitempty"`
}

// Send implements Sender.
func (s *HTTPSender) Send(ctx context.Context, identity, text, imageURL string) error {
	body, err := json.Marshal(sendPayload{JID: identity, Message: text, ImageURL: imageURL})
	if err != nil {
		return fmt.Errorf("marshal send payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Auth-Key", s.AuthKey)

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send rejected: status %d: %s", resp.StatusCode, snippet)
	}
	return nil
}

// Notifier pushes operational alerts to the admin identity. All methods
// are fire-and-forget; failures are logged, never returned.
type Notifier struct {
	Sender  Sender
	AdminID string
}

// Notify sends one alert to the admin. A missing admin identity disables
// notifications silently.
func (n *Notifier) Notify(ctx context.Context, text string) {
	if n == nil || n.AdminID == "" || n.Sender == nil {
		return
	}
	msg := "🔔 *Notification*\n\n" + text
	if err := n.Sender.Send(ctx, n.AdminID, msg, ""); err != nil {
		log.Warn().Err(err).Msg("admin notification failed")
	}
}
