package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// sendTimeout bounds the single delivery attempt so a slow bot API cannot
// hold up the request that triggered the alert.
const sendTimeout = 5 * time.Second

// TelegramNotifier posts alert messages to a Telegram bot chat.
type TelegramNotifier struct {
	token  string
	chatID string
	client *http.Client

	// baseURL is overridable for tests.
	baseURL string
}

func NewTelegramNotifier(token, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: sendTimeout},
		baseURL: "https://api.telegram.org",
	}
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// Send delivers one message. A non-2xx response or transport error is
// returned to the caller, who is expected to log and move on.
func (n *TelegramNotifier) Send(ctx context.Context, text string) error {
	if n.token == "" || n.chatID == "" {
		return fmt.Errorf("telegram notifier is not configured")
	}

	body, err := json.Marshal(sendMessageRequest{
		ChatID:    n.chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return fmt.Errorf("failed to encode telegram message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}
