// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package httplogger provides an http.RoundTripper that logs every request
// it sends.
package httplogger

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// New returns an http.RoundTripper that sends requests with t and logs them
// to logger at debug level. If t is nil, http.DefaultTransport is used.
func New(t http.RoundTripper, logger *slog.Logger) http.RoundTripper {
	if t == nil {
		t = http.DefaultTransport
	}
	return &transport{next: t, logger: logger}
}

type transport struct {
	next   http.RoundTripper
	logger *slog.Logger
	seq    atomic.Uint64
	active atomic.Int64
}

func (t *transport) RoundTrip(r *http.Request) (*http.Response, error) {
	id := t.seq.Add(1)
	inFlight := t.active.Add(1)
	defer t.active.Add(-1)

	ctx := r.Context()
	if !t.logger.Enabled(ctx, slog.LevelDebug) {
		return t.next.RoundTrip(r)
	}

	start := time.Now()
	t.logger.DebugContext(ctx, "http request",
		"id", id,
		"method", r.Method,
		"url", r.URL.Redacted(),
		"in_flight", inFlight,
	)

	resp, err := t.next.RoundTrip(r)

	attrs := []any{"id", id, "duration", time.Since(start)}
	if resp != nil {
		attrs = append(attrs, "status", resp.StatusCode)
	}
	if err != nil {
		attrs = append(attrs, "err", err)
	}
	t.logger.Log(ctx, levelFor(ctx, resp, err), "http response", attrs...)
	return resp, err
}

// levelFor raises failures to warn, except those caused by the caller
// giving up.
func levelFor(ctx context.Context, resp *http.Response, err error) slog.Level {
	switch {
	case err != nil && ctx.Err() != nil:
		return slog.LevelDebug
	case err != nil, resp != nil && resp.StatusCode >= 500:
		return slog.LevelWarn
	}
	return slog.LevelDebug
}
