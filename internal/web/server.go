// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// ShutdownTimeout bounds graceful shutdown in [ListenAndServe].
const ShutdownTimeout = 30 * time.Second

// ListenAndServeConfig configures [ListenAndServe]. Fields must not be
// modified after ListenAndServe is called.
type ListenAndServeConfig struct {
	// Addr is a network address to listen on (in the form of "host:port").
	Addr string
	// Mux is the http.ServeMux to serve. /health is always registered on it.
	Mux *http.ServeMux
	// Logger receives server logs. If nil, slog.Default is used.
	Logger *slog.Logger
	// Debuggable specifies whether to register debug handlers at /debug/.
	Debuggable bool
	// DebugAuth, if not nil, is called on every request to /debug/. Denied
	// requests get a 404 as if the endpoints didn't exist.
	DebugAuth func(r *http.Request) bool
	// Ready, if not nil, is called with the listening address once the
	// server accepts connections.
	Ready func(addr string)
}

var (
	errNoAddr = errors.New("c.Addr is empty")
	errNilMux = errors.New("c.Mux is nil")
)

// ListenAndServe serves c.Mux until ctx is done, then shuts down gracefully.
// Request contexts carry the values of ctx but are not canceled with it.
func ListenAndServe(ctx context.Context, c *ListenAndServeConfig) error {
	if c.Addr == "" {
		return errNoAddr
	}
	if c.Mux == nil {
		return errNilMux
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	l, err := net.Listen("tcp", c.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	defer l.Close()
	logger.Info("listening", "addr", l.Addr().String())

	Health(c.Mux)
	if c.Debuggable {
		Debugger(c.Mux)
	}

	s := &http.Server{
		Handler:           protectDebug(c.DebugAuth, c.Mux),
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if c.Ready != nil {
		c.Ready(l.Addr().String())
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

func protectDebug(auth func(*http.Request) bool, next http.Handler) http.Handler {
	if auth == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/debug/") && !auth(r) {
			RespondJSONError(w, r, ErrNotFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
