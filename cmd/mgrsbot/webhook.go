// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.gridlink.dev/tools/cmd/mgrsbot/internal/telegram"
	"go.gridlink.dev/tools/internal/web"
)

const maxUpdateSize = 1 << 20

func (e *engine) setWebhook(ctx context.Context) error {
	u := &url.URL{
		Scheme: "https",
		Host:   *e.host,
		Path:   webhookPath,
	}
	err := e.tg.SetWebhook(ctx, telegram.SetWebhook{
		URL:            u.String(),
		SecretToken:    e.tgSecret,
		AllowedUpdates: allowedUpdates,
	})
	if err != nil {
		return fmt.Errorf("setting webhook: %w", err)
	}
	return nil
}

func (e *engine) handleWebhook(w http.ResponseWriter, r *http.Request) {
	secret := r.Header.Get("X-Telegram-Bot-Api-Secret-Token")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(e.tgSecret)) != 1 {
		web.RespondJSONError(w, r, web.ErrUnauthorized)
		return
	}

	var u telegram.Update
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUpdateSize)).Decode(&u); err != nil {
		web.RespondJSONError(w, r, web.ErrBadRequest)
		return
	}

	// The response only acknowledges receipt. The update is handled later.
	e.dispatch(r.Context(), u)
	web.RespondJSON(w, map[string]string{"status": "success"})
}
