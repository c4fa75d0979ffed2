// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package bot

import "go.gridlink.dev/tools/cmd/mgrsbot/internal/telegram"

// Callback data of inline keyboard buttons.
const (
	CallbackMainMenu = "main_menu"
	CallbackToMGRS   = "to_mgrs"
	CallbackToGoogle = "to_google"
)

func button(text, data string) telegram.InlineKeyboardButton {
	return telegram.InlineKeyboardButton{Text: text, CallbackData: data}
}

func (b *Bot) menuKeyboard() *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{button(b.msgs.ToMGRSButton, CallbackToMGRS), button(b.msgs.ToGoogleButton, CallbackToGoogle)},
	}}
}

func (b *Bot) backKeyboard() *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{button(b.msgs.BackButton, CallbackMainMenu)},
	}}
}
