package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api.telegram.org"

// ErrNotConfigured is returned when the bot token or chat id is missing.
var ErrNotConfigured = errors.New("telegram: bot token or chat id is not configured")

// Config holds the bot credentials and the single operator chat.
type Config struct {
	BaseURL  string
	BotToken string
	ChatID   string
	Timeout  time.Duration
}

// Client sends HTML messages to one preconfigured chat.
type Client struct {
	baseURL string
	token   string
	chatID  string
	http    *http.Client
}

// NewClient creates a Client. Missing credentials are reported on Send, not here.
func NewClient(cfg Config, hc *http.Client) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: baseURL,
		token:   strings.TrimSpace(cfg.BotToken),
		chatID:  strings.TrimSpace(cfg.ChatID),
		http:    hc,
	}
}

type sendMessageReq struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type apiResp struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send posts text (HTML parse mode) to the operator chat.
func (c *Client) Send(ctx context.Context, text string) error {
	if c.token == "" || c.chatID == "" {
		return ErrNotConfigured
	}

	raw, err := json.Marshal(sendMessageReq{ChatID: c.chatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// the error text embeds the URL, and with it the bot token
		return fmt.Errorf("telegram: sendMessage: %w", redact(err, c.token))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram: sendMessage status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out apiResp
	if err := json.Unmarshal(body, &out); err == nil && !out.OK {
		return fmt.Errorf("telegram: sendMessage rejected: %s", out.Description)
	}
	return nil
}

func redact(err error, token string) error {
	return errors.New(strings.ReplaceAll(err.Error(), token, "***"))
}
