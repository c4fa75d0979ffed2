// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package telegram

import "go.gridlink.dev/tools/internal/tgmarkup"

// The subset of https://core.telegram.org/bots/api types the bot uses.

// Update is an incoming update.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// Message is a chat message.
type Message struct {
	MessageID int64             `json:"message_id"`
	From      *User             `json:"from,omitempty"`
	Chat      Chat              `json:"chat"`
	Date      int64             `json:"date,omitempty"`
	Text      string            `json:"text,omitempty"`
	Entities  []tgmarkup.Entity `json:"entities,omitempty"`
}

// User is a Telegram user or bot.
type User struct {
	ID           int64  `json:"id"`
	IsBot        bool   `json:"is_bot"`
	FirstName    string `json:"first_name"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// Chat is a chat.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"`
}

// CallbackQuery is a press of an inline keyboard button.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

// InlineKeyboardMarkup is a keyboard attached to a message.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// InlineKeyboardButton is a button that sends CallbackData back to the bot.
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

// LinkPreviewOptions controls link previews of a message.
type LinkPreviewOptions struct {
	IsDisabled bool `json:"is_disabled"`
}

// SendMessage is the argument of sendMessage.
type SendMessage struct {
	ChatID int64 `json:"chat_id"`
	tgmarkup.Message
	ReplyMarkup        *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
	LinkPreviewOptions *LinkPreviewOptions   `json:"link_preview_options,omitempty"`
}

// EditMessageText is the argument of editMessageText.
type EditMessageText struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int64 `json:"message_id"`
	tgmarkup.Message
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// AnswerCallbackQuery is the argument of answerCallbackQuery.
type AnswerCallbackQuery struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
}

// GetUpdates is the argument of getUpdates.
type GetUpdates struct {
	Offset         int64    `json:"offset,omitempty"`
	Timeout        int      `json:"timeout,omitempty"` // seconds
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

// SetWebhook is the argument of setWebhook.
type SetWebhook struct {
	URL            string   `json:"url"`
	SecretToken    string   `json:"secret_token,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}
