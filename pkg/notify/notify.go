// Package notify delivers run reports to operators. Delivery is best
// effort: failures are logged and never returned to the caller.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/entrhq/wisplogin/pkg/config"
	"github.com/entrhq/wisplogin/pkg/logging"
)

// Notifier sends a text message somewhere a human will read it.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// DefaultTimeout bounds a single delivery.
const DefaultTimeout = 15 * time.Second

// maxResponseBytes caps how much of an error response is read
const maxResponseBytes = 64 << 10

// Telegram posts messages through the Bot API sendMessage method.
type Telegram struct {
	token   string
	chatID  string
	apiBase string
	client  *http.Client
	logger  *logging.Logger
}

// NewTelegram creates a Telegram notifier. A nil logger discards output.
func NewTelegram(cfg config.TelegramConfig, logger *logging.Logger) *Telegram {
	if logger == nil {
		logger = logging.Nop()
	}
	apiBase := strings.TrimRight(cfg.APIBase, "/")
	if apiBase == "" {
		apiBase = "https://api.telegram.org"
	}
	return &Telegram{
		token:   cfg.BotToken,
		chatID:  cfg.ChatID,
		apiBase: apiBase,
		client:  &http.Client{Timeout: DefaultTimeout},
		logger:  logger,
	}
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Notify sends message once. The message is plain text; it is escaped
// for the HTML parse mode.
func (t *Telegram) Notify(ctx context.Context, message string) {
	if t.token == "" || t.chatID == "" {
		t.logger.Infof("Telegram not configured, skipping notification")
		return
	}

	form := url.Values{
		"chat_id":                  {t.chatID},
		"text":                     {html.EscapeString(message)},
		"parse_mode":               {"HTML"},
		"disable_web_page_preview": {"true"},
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		t.logger.Warnf("Telegram request failed: %s", t.scrub(err.Error()))
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Warnf("Telegram send failed: %s", t.scrub(err.Error()))
		return
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var api apiResponse
		if json.Unmarshal(body, &api) == nil && api.Description != "" {
			t.logger.Warnf("Telegram send failed: %s (%s)", resp.Status, api.Description)
		} else {
			t.logger.Warnf("Telegram send failed: %s", resp.Status)
		}
		return
	}

	t.logger.Debugf("Telegram notification delivered")
}

// scrub removes the bot token from text that may echo the request URL.
func (t *Telegram) scrub(s string) string {
	if t.token == "" {
		return s
	}
	return strings.ReplaceAll(s, t.token, "<redacted>")
}

// Go runs n.Notify on its own goroutine. The returned channel is closed
// once the attempt finishes; a panic inside the notifier is swallowed.
func Go(ctx context.Context, n Notifier, message string) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() { _ = recover() }()
		n.Notify(ctx, message)
	}()
	return done
}
