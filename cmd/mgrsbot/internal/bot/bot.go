// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package bot implements the conversation of the MGRS bot: menu, mode
// selection and conversion of the text users send.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"

	"go.gridlink.dev/tools/cmd/mgrsbot/internal/telegram"
	"go.gridlink.dev/tools/internal/coords"
	"go.gridlink.dev/tools/internal/session"
	"go.gridlink.dev/tools/internal/shortlink"
	"go.gridlink.dev/tools/internal/tgmarkup"
)

// API is the part of the Bot API the bot calls.
type API interface {
	SendMessage(context.Context, telegram.SendMessage) (telegram.Message, error)
	EditMessageText(context.Context, telegram.EditMessageText) error
	AnswerCallbackQuery(context.Context, telegram.AnswerCallbackQuery) error
}

// Config configures a [Bot].
type Config struct {
	API      API
	Sessions session.Store
	Resolver *shortlink.Resolver
	Messages *Messages
	Logger   *slog.Logger
}

// Bot handles updates. It is safe for concurrent use, but updates of one user
// must be handled in order.
type Bot struct {
	api      API
	sessions session.Store
	resolver *shortlink.Resolver
	msgs     *Messages
	logger   *slog.Logger

	stats Stats
}

// Stats counts handled events.
type Stats struct {
	Updates     atomic.Int64
	Conversions atomic.Int64
	Failures    atomic.Int64
}

// New returns a new Bot.
func New(cfg Config) *Bot {
	b := &Bot{
		api:      cfg.API,
		sessions: cfg.Sessions,
		resolver: cfg.Resolver,
		msgs:     cfg.Messages,
		logger:   cfg.Logger,
	}
	if b.resolver == nil {
		b.resolver = new(shortlink.Resolver)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// Stats returns the bot's counters.
func (b *Bot) Stats() *Stats { return &b.stats }

// SessionKey returns the key updates of the same user share, and false for
// updates the bot ignores.
func SessionKey(u telegram.Update) (string, bool) {
	switch {
	case u.Message != nil && u.Message.From != nil:
		return strconv.FormatInt(u.Message.From.ID, 10), true
	case u.CallbackQuery != nil:
		return strconv.FormatInt(u.CallbackQuery.From.ID, 10), true
	}
	return "", false
}

// Handle handles an update. Errors are logged and, where possible, reported
// to the user.
func (b *Bot) Handle(ctx context.Context, u telegram.Update) {
	b.stats.Updates.Add(1)
	switch {
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil && u.Message.From != nil && u.Message.Text != "":
		b.handleMessage(ctx, u.Message)
	default:
		b.logger.Debug("ignoring update", "update_id", u.UpdateID)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *telegram.CallbackQuery) {
	if err := b.api.AnswerCallbackQuery(ctx, telegram.AnswerCallbackQuery{CallbackQueryID: cq.ID}); err != nil {
		b.logger.Warn("answering callback query", "user", cq.From.ID, "err", err)
	}

	var (
		mode = session.ModeNone
		text string
		kb   *telegram.InlineKeyboardMarkup
	)
	switch cq.Data {
	case CallbackToMGRS:
		mode, text, kb = session.ModeAwaitingLink, b.msgs.AskLink, b.backKeyboard()
	case CallbackToGoogle:
		mode, text, kb = session.ModeAwaitingMGRS, b.msgs.AskMGRS, b.backKeyboard()
	case CallbackMainMenu:
		text, kb = b.msgs.Menu, b.menuKeyboard()
	default:
		b.logger.Debug("unknown callback data", "user", cq.From.ID, "data", cq.Data)
		return
	}

	if err := b.sessions.Set(ctx, cq.From.ID, mode); err != nil {
		b.logger.Error("saving session", "user", cq.From.ID, "err", err)
		if cq.Message != nil {
			b.send(ctx, cq.Message.Chat.ID, plain(b.msgs.InternalError), nil)
		}
		return
	}

	if cq.Message == nil {
		// The message with the keyboard is too old to be included.
		b.send(ctx, cq.From.ID, plain(text), kb)
		return
	}
	err := b.api.EditMessageText(ctx, telegram.EditMessageText{
		ChatID:      cq.Message.Chat.ID,
		MessageID:   cq.Message.MessageID,
		Message:     plain(text),
		ReplyMarkup: kb,
	})
	if err != nil && !telegram.IsNotModified(err) {
		b.logger.Warn("editing message", "user", cq.From.ID, "err", err)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *telegram.Message) {
	userID, chatID := msg.From.ID, msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	if cmd, ok := command(text); ok {
		switch cmd {
		case "start":
			if err := b.sessions.Clear(ctx, userID); err != nil {
				b.logger.Error("clearing session", "user", userID, "err", err)
			}
			b.send(ctx, chatID, plain(b.msgs.Menu), b.menuKeyboard())
		case "help":
			b.send(ctx, chatID, plain(b.msgs.Help), nil)
		default:
			b.logger.Debug("unknown command", "user", userID, "command", cmd)
		}
		return
	}

	mode, err := b.sessions.Get(ctx, userID)
	if err != nil {
		b.logger.Error("loading session", "user", userID, "err", err)
		b.send(ctx, chatID, plain(b.msgs.InternalError), nil)
		return
	}

	switch mode {
	case session.ModeAwaitingLink:
		b.send(ctx, chatID, b.linkToMGRS(ctx, userID, text), b.backKeyboard())
	case session.ModeAwaitingMGRS:
		b.send(ctx, chatID, b.mgrsToLink(text), b.backKeyboard())
	default:
		b.send(ctx, chatID, plain(b.msgs.SelectMode), b.menuKeyboard())
	}
}

func (b *Bot) linkToMGRS(ctx context.Context, userID int64, text string) tgmarkup.Message {
	notFound := b.msgs.NotFound
	if short := b.resolver.Find(text); short != "" {
		final, err := b.resolver.Resolve(ctx, short)
		if err != nil {
			b.stats.Failures.Add(1)
			b.logger.Info("short link resolution failed", "user", userID, "err", err)
			return plain(b.msgs.ResolveFailed)
		}
		text, notFound = final, b.msgs.NotFoundResolved
	}

	c, err := coords.Extract(text)
	if err != nil {
		b.stats.Failures.Add(1)
		return plain(notFound)
	}
	ref, err := coords.ToMGRS(c)
	if err != nil {
		b.stats.Failures.Add(1)
		b.logger.Error("converting to MGRS", "user", userID, "coordinate", c.String(), "err", err)
		return plain(b.msgs.InternalError)
	}
	b.stats.Conversions.Add(1)
	return tgmarkup.FromMarkdown(b.msgs.mgrsResult(ref))
}

func (b *Bot) mgrsToLink(text string) tgmarkup.Message {
	c, err := coords.FromMGRS(text)
	if err != nil {
		b.stats.Failures.Add(1)
		if !errors.Is(err, coords.ErrInvalidMGRS) {
			b.logger.Error("converting from MGRS", "err", err)
			return plain(b.msgs.InternalError)
		}
		return plain(b.msgs.InvalidMGRS)
	}
	b.stats.Conversions.Add(1)
	return plain(b.msgs.linkResult(coords.MapsLink(c)))
}

func (b *Bot) send(ctx context.Context, chatID int64, msg tgmarkup.Message, kb *telegram.InlineKeyboardMarkup) {
	_, err := b.api.SendMessage(ctx, telegram.SendMessage{
		ChatID:      chatID,
		Message:     msg,
		ReplyMarkup: kb,
	})
	if err != nil {
		b.logger.Warn("sending message", "chat", chatID, "err", err)
	}
}

func plain(text string) tgmarkup.Message { return tgmarkup.Message{Text: text} }

// command returns the name of the bot command text starts with, without
// the leading slash and the @botname suffix.
func command(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	name, _, _ := strings.Cut(strings.Fields(text)[0][1:], "@")
	if name == "" {
		return "", false
	}
	return strings.ToLower(name), true
}
