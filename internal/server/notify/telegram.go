package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/promptvault/internal/logging"
	"github.com/leonid-shevtsov/telegold"
	"github.com/yuin/goldmark"
	"golang.org/x/time/rate"
)

// DefaultTelegramAPI is the Bot API root.
const DefaultTelegramAPI = "https://api.telegram.org"

var telegramMarkdown = goldmark.New(goldmark.WithRenderer(telegold.NewRenderer()))

// Telegram sends alerts to a chat through the Bot API as HTML messages.
// At most one alert is sent per interval; extra alerts return ErrThrottled.
type Telegram struct {
	apiURL  string
	token   string
	chatID  string
	client  *http.Client
	limiter *rate.Limiter
	logger  logging.Logger
}

func NewTelegram(token, chatID string, every time.Duration, logger logging.Logger) *Telegram {
	limit := rate.Inf
	if every > 0 {
		limit = rate.Every(every)
	}

	return &Telegram{
		apiURL:  DefaultTelegramAPI,
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// WithAPIURL points the notifier at another Bot API root.
func (t *Telegram) WithAPIURL(u string) *Telegram {
	t.apiURL = strings.TrimRight(u, "/")
	return t
}

func toTelegramHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := telegramMarkdown.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func (t *Telegram) Notify(ctx context.Context, e Event) error {
	if !t.limiter.Allow() {
		return ErrThrottled
	}

	text, err := toTelegramHTML(Markdown(e))
	if err != nil {
		return fmt.Errorf("render alert: %w", err)
	}

	body, err := json.Marshal(map[string]any{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("telegram api error: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}

	t.logger.Debug(ctx, "alert sent", "user", e.User, "filename", e.Filename)
	return nil
}
