package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	DefaultAPIBaseURL = "https://api.telegram.org"
	DefaultAPITimeout = 10 * time.Second
)

// IdentityOf converts a message sender into the account identity.
func IdentityOf(u *tgbotapi.User) Identity {
	return Identity{
		ProviderID: strconv.FormatInt(u.ID, 10),
		Username:   u.UserName,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
	}
}

// APIError is a non-ok Bot API response.
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s failed (%d): %s", e.Method, e.Code, e.Description)
}

// BotAPI is the outbound surface the dispatcher and poller depend on.
type BotAPI interface {
	GetUpdates(ctx context.Context, offset int, timeout time.Duration) ([]tgbotapi.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Client adapts tgbotapi to BotAPI. Calls made through it honor ctx even
// though the library itself does not take one.
type Client struct {
	api        *tgbotapi.BotAPI
	token      string
	httpClient *http.Client
}

// NewClient connects to the Bot API and checks the token with getMe. An
// empty baseURL targets api.telegram.org.
func NewClient(token, baseURL string, pollTimeout time.Duration) (*Client, error) {
	if token == "" {
		return nil, errors.New("telegram bot token is not configured")
	}
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}

	c := &Client{
		token:      token,
		httpClient: &http.Client{Timeout: pollTimeout + DefaultAPITimeout},
	}
	endpoint := strings.TrimRight(baseURL, "/") + "/bot%s/%s"
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, c.httpClient)
	if err != nil {
		return nil, c.wrap("getMe", err)
	}
	c.api = api
	return c, nil
}

// Username is the bot's own @username as reported by getMe.
func (c *Client) Username() string {
	return c.api.Self.UserName
}

func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// wrap maps library errors onto APIError and strips the token from
// transport errors, which embed the request URL.
func (c *Client) wrap(method string, err error) error {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		return &APIError{
			Method:      method,
			Code:        tgErr.Code,
			Description: tgErr.Message,
			RetryAfter:  time.Duration(tgErr.RetryAfter) * time.Second,
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = &url.Error{
			Op:  urlErr.Op,
			URL: strings.ReplaceAll(urlErr.URL, c.token, "<redacted>"),
			Err: urlErr.Err,
		}
	}
	return fmt.Errorf("telegram %s request failed: %w", method, err)
}

// withContext runs fn in the background and stops waiting once ctx is done.
// An abandoned call finishes on its own within the HTTP client timeout.
func withContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-done:
		return r.value, r.err
	}
}

// GetUpdates long-polls for updates with update_id >= offset.
func (c *Client) GetUpdates(ctx context.Context, offset int, timeout time.Duration) ([]tgbotapi.Update, error) {
	cfg := tgbotapi.NewUpdate(offset)
	cfg.Timeout = int(timeout / time.Second)
	cfg.AllowedUpdates = []string{"message"}

	updates, err := withContext(ctx, func() ([]tgbotapi.Update, error) {
		return c.api.GetUpdates(cfg)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, c.wrap("getUpdates", err)
	}
	return updates, nil
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	_, err := withContext(ctx, func() (tgbotapi.Message, error) {
		return c.api.Send(tgbotapi.NewMessage(chatID, text))
	})
	if err != nil && ctx.Err() == nil {
		return c.wrap("sendMessage", err)
	}
	return err
}

// SetWebhook registers webhookURL. Telegram echoes secret back in the
// X-Telegram-Bot-Api-Secret-Token header of every delivery.
func (c *Client) SetWebhook(ctx context.Context, webhookURL, secret string) error {
	params := tgbotapi.Params{"url": webhookURL}
	params.AddNonEmpty("secret_token", secret)
	if err := params.AddInterface("allowed_updates", []string{"message"}); err != nil {
		return fmt.Errorf("failed to encode setWebhook params: %w", err)
	}

	_, err := withContext(ctx, func() (*tgbotapi.APIResponse, error) {
		return c.api.MakeRequest("setWebhook", params)
	})
	if err != nil && ctx.Err() == nil {
		return c.wrap("setWebhook", err)
	}
	return err
}

// DeleteWebhook switches the bot back to getUpdates delivery.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	_, err := withContext(ctx, func() (*tgbotapi.APIResponse, error) {
		return c.api.Request(tgbotapi.DeleteWebhookConfig{})
	})
	if err != nil && ctx.Err() == nil {
		return c.wrap("deleteWebhook", err)
	}
	return err
}
