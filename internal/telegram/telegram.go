package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pptlinks-bot/internal/model"
)

const (
	DefaultAPIBase = "https://api.telegram.org"
	messageLimit   = 4096
)

// APIError is a non-successful Bot API reply.
type APIError struct {
	StatusCode  int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram error: %d %s", e.StatusCode, e.Description)
}

// Sender delivers HTML messages through the Bot API. Sends are spaced by a
// minimum interval across all chats.
type Sender struct {
	token  string
	base   string
	client *http.Client
	logger zerolog.Logger

	mu           sync.Mutex
	minInterval  time.Duration
	lastSentTime time.Time
}

type Option func(*Sender)

func WithAPIBase(base string) Option {
	return func(s *Sender) {
		if base != "" {
			s.base = strings.TrimRight(base, "/")
		}
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(s *Sender) {
		s.client = client
	}
}

func WithMinInterval(interval time.Duration) Option {
	return func(s *Sender) {
		s.minInterval = interval
	}
}

func NewSender(token string, logger zerolog.Logger, options ...Option) *Sender {
	s := &Sender{
		token:       token,
		base:        DefaultAPIBase,
		client:      &http.Client{Timeout: 15 * time.Second},
		logger:      logger.With().Str("component", "telegram").Logger(),
		minInterval: 1200 * time.Millisecond,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Deliver sends message to chatID, splitting long texts. Action buttons are
// attached to the last part. A rate-limited send is retried once after the
// delay Telegram asks for.
func (s *Sender) Deliver(ctx context.Context, chatID int64, message model.Message) error {
	parts := splitMessage(message.Text, messageLimit)
	for i, part := range parts {
		var actions []model.Action
		if i == len(parts)-1 {
			actions = message.Actions
		}
		if err := s.sendWithRateLimit(ctx, chatID, part, actions); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sender) sendWithRateLimit(ctx context.Context, chatID int64, text string, actions []model.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := sleep(ctx, time.Until(s.lastSentTime.Add(s.minInterval))); err != nil {
		return err
	}

	err := s.postMessage(ctx, chatID, text, actions)
	if apiErr, ok := err.(*APIError); ok && apiErr.RetryAfter > 0 {
		s.logger.Warn().Dur("retry_after", apiErr.RetryAfter).Int64("chat_id", chatID).Msg("rate limit hit")
		if err := sleep(ctx, apiErr.RetryAfter); err != nil {
			return err
		}
		err = s.postMessage(ctx, chatID, text, actions)
	}
	s.lastSentTime = time.Now()
	if err != nil {
		return err
	}

	s.logger.Debug().Int64("chat_id", chatID).Msg("message sent")
	return nil
}

type inlineButton struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

type replyMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

func (s *Sender) postMessage(ctx context.Context, chatID int64, text string, actions []model.Action) error {
	payload := map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	if len(actions) > 0 {
		markup := replyMarkup{}
		for _, action := range actions {
			markup.InlineKeyboard = append(markup.InlineKeyboard, []inlineButton{{Text: action.Label, URL: action.URL}})
		}
		payload["reply_markup"] = markup
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/bot%s/sendMessage", s.base, s.token), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var parsed telegramResponse
	_ = json.NewDecoder(resp.Body).Decode(&parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !parsed.OK {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Description: parsed.Description,
			RetryAfter:  time.Duration(parsed.Parameters.RetryAfter) * time.Second,
		}
	}
	return nil
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// splitMessage cuts on rune boundaries, preferring the last newline inside
// each chunk.
func splitMessage(message string, limit int) []string {
	runes := []rune(message)
	if len(runes) <= limit {
		return []string{message}
	}

	var parts []string
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i >= limit/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
