package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTelegramAPI = "https://api.telegram.org"

// Telegram sends messages through the Telegram Bot API sendMessage call.
type Telegram struct {
	Token  string
	ChatID string
	// APIBase overrides the Bot API host. Tests point it at a local server.
	APIBase string
	// Timeout bounds each call. Zero means 15s, matching the deploy
	// scripts this replaces.
	Timeout time.Duration
	// Client is overridable in tests.
	Client *http.Client
}

func (t *Telegram) Notify(ctx context.Context, text string) error {
	base := t.APIBase
	if base == "" {
		base = defaultTelegramAPI
	}
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := t.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	form := url.Values{
		"chat_id":                  {t.ChatID},
		"text":                     {text},
		"disable_web_page_preview": {"true"},
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(base, "/"), t.Token)
	req, err := http.NewRequestWithContext(cctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram send: status %s", resp.Status)
	}
	return nil
}
