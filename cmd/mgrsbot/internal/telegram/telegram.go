// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package telegram is a small client for the Telegram Bot API.
package telegram

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.gridlink.dev/tools/internal/request"
)

const (
	// DefaultAPIURL is the base URL of the Bot API.
	DefaultAPIURL = "https://api.telegram.org"
	// retryLimit is the number of attempts made when rate limited.
	retryLimit = 5
)

// Error is an error response of the Bot API.
type Error struct {
	Method      string
	Code        int
	Description string
	// RetryAfter is set when the request was rate limited.
	RetryAfter time.Duration

	err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("telegram: %s: %d %s", e.Method, e.Code, e.Description)
}

func (e *Error) Unwrap() error { return e.err }

// IsNotModified reports whether err says an edit left the message unchanged.
func IsNotModified(err error) bool {
	var te *Error
	return errors.As(err, &te) && strings.Contains(te.Description, "message is not modified")
}

// Config configures a [Client].
type Config struct {
	Token string
	// APIURL overrides DefaultAPIURL.
	APIURL string
	// HTTPClient sends requests. Its timeout must exceed the long polling
	// timeout passed to GetUpdates. If nil, request.DefaultClient is used.
	HTTPClient *http.Client
	Scrubber   *strings.Replacer
	Logger     *slog.Logger
}

// Client calls Bot API methods, retrying those that are rate limited.
type Client struct {
	token    string
	apiURL   string
	httpc    *http.Client
	scrubber *strings.Replacer
	logger   *slog.Logger
	sleep    func(context.Context, time.Duration) bool
}

// New returns a new Client.
func New(cfg Config) *Client {
	c := &Client{
		token:    cfg.Token,
		apiURL:   strings.TrimSuffix(cmp.Or(cfg.APIURL, DefaultAPIURL), "/"),
		httpc:    cfg.HTTPClient,
		scrubber: cfg.Scrubber,
		logger:   cfg.Logger,
		sleep:    sleep,
	}
	if c.httpc == nil {
		c.httpc = request.DefaultClient
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

type response[T any] struct {
	OK          bool   `json:"ok"`
	Result      T      `json:"result"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

func call[T any](ctx context.Context, c *Client, method string, args any) (T, error) {
	var (
		res T
		err error
	)
	for attempt := 1; attempt <= retryLimit; attempt++ {
		res, err = callOnce[T](ctx, c, method, args)
		if err == nil {
			return res, nil
		}
		var te *Error
		if !errors.As(err, &te) || te.Code != http.StatusTooManyRequests || attempt == retryLimit {
			break
		}
		c.logger.Warn("telegram rate limited, waiting",
			slog.String("method", method),
			slog.Duration("wait", te.RetryAfter),
			slog.Int("attempt", attempt),
		)
		if !c.sleep(ctx, te.RetryAfter) {
			return res, ctx.Err()
		}
	}
	return res, err
}

func callOnce[T any](ctx context.Context, c *Client, method string, args any) (T, error) {
	var zero T
	resp, err := request.Make[response[T]](ctx, request.Params{
		Method:     http.MethodPost,
		URL:        c.apiURL + "/bot" + c.token + "/" + method,
		Body:       args,
		HTTPClient: c.httpc,
		Scrubber:   c.scrubber,
	})
	if err != nil {
		var se *request.StatusError
		if !errors.As(err, &se) {
			return zero, err
		}
		var body response[json.RawMessage]
		if jerr := json.Unmarshal(se.Body, &body); jerr != nil {
			return zero, err
		}
		return zero, &Error{
			Method:      method,
			Code:        cmp.Or(body.ErrorCode, se.StatusCode),
			Description: body.Description,
			RetryAfter:  time.Duration(body.Parameters.RetryAfter) * time.Second,
			err:         err,
		}
	}
	if !resp.OK {
		return zero, &Error{Method: method, Code: resp.ErrorCode, Description: resp.Description}
	}
	return resp.Result, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// GetMe returns the bot's own user.
func (c *Client) GetMe(ctx context.Context) (User, error) {
	return call[User](ctx, c, "getMe", nil)
}

// GetUpdates long-polls for updates.
func (c *Client) GetUpdates(ctx context.Context, args GetUpdates) ([]Update, error) {
	return call[[]Update](ctx, c, "getUpdates", args)
}

// SendMessage sends a message.
func (c *Client) SendMessage(ctx context.Context, args SendMessage) (Message, error) {
	return call[Message](ctx, c, "sendMessage", args)
}

// EditMessageText replaces the text and keyboard of a message.
func (c *Client) EditMessageText(ctx context.Context, args EditMessageText) error {
	_, err := call[json.RawMessage](ctx, c, "editMessageText", args)
	return err
}

// AnswerCallbackQuery acknowledges a button press.
func (c *Client) AnswerCallbackQuery(ctx context.Context, args AnswerCallbackQuery) error {
	_, err := call[bool](ctx, c, "answerCallbackQuery", args)
	return err
}

// SetWebhook makes Telegram deliver updates to args.URL.
func (c *Client) SetWebhook(ctx context.Context, args SetWebhook) error {
	_, err := call[bool](ctx, c, "setWebhook", args)
	return err
}

// DeleteWebhook switches the bot back to getUpdates.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	_, err := call[bool](ctx, c, "deleteWebhook", nil)
	return err
}
