// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"fmt"
	"time"

	"go.gridlink.dev/tools/cmd/mgrsbot/internal/telegram"
)

const (
	minPollBackoff = time.Second
	maxPollBackoff = time.Minute
)

// poll receives updates with getUpdates until ctx is done. started is called
// after the first successful request.
func (e *engine) poll(ctx context.Context, started func()) error {
	// getUpdates fails while a webhook is set.
	if err := e.tg.DeleteWebhook(ctx); err != nil {
		return fmt.Errorf("deleting webhook: %w", err)
	}
	e.logger.Info("receiving updates with long polling")

	var (
		offset  int64
		backoff = minPollBackoff
	)
	for ctx.Err() == nil {
		updates, err := e.tg.GetUpdates(ctx, telegram.GetUpdates{
			Offset:         offset,
			Timeout:        int(e.pollTimeout.Seconds()),
			AllowedUpdates: allowedUpdates,
		})
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			e.pollErr.Store(&err)
			e.logger.Warn("getting updates", "err", err, "retry_in", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
			}
			backoff = min(backoff*2, maxPollBackoff)
			continue
		}

		if started != nil {
			started()
			started = nil
		}
		e.pollErr.Store(nil)
		backoff = minPollBackoff

		for _, u := range updates {
			offset = u.UpdateID + 1
			e.dispatch(ctx, u)
		}
	}
	return nil
}
