// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package systemd implements the parts of the sd_notify protocol a
// long-running service needs: readiness, shutdown and watchdog pings.
package systemd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"
)

// State is an sd_notify state string.
// See https://www.freedesktop.org/software/systemd/man/sd_notify.html.
type State string

const (
	// Ready tells the service manager that startup is finished.
	Ready State = "READY=1"
	// Stopping tells the service manager that the service is shutting down.
	Stopping State = "STOPPING=1"
	// Watchdog updates the watchdog timestamp.
	Watchdog State = "WATCHDOG=1"
)

// Notify sends state to the socket named by NOTIFY_SOCKET, as looked up with
// getenv. It does nothing when the variable is not set.
func Notify(getenv func(string) string, state State) error {
	name := getenv("NOTIFY_SOCKET")
	if name == "" {
		return nil
	}
	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Net: "unixgram", Name: name})
	if err != nil {
		return fmt.Errorf("systemd: notifying %s: %w", state, err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(state)); err != nil {
		return fmt.Errorf("systemd: notifying %s: %w", state, err)
	}
	return nil
}

// WatchdogLoop sends [Watchdog] at half the interval from WATCHDOG_USEC until
// ctx is done. It returns immediately when the watchdog is not enabled.
func WatchdogLoop(ctx context.Context, getenv func(string) string, logger *slog.Logger) {
	v := getenv("WATCHDOG_USEC")
	if v == "" {
		return
	}
	interval, err := watchdogInterval(v)
	if err != nil {
		logger.Warn("systemd watchdog disabled", "err", err)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := Notify(getenv, Watchdog); err != nil {
				logger.Warn("systemd watchdog ping failed", "err", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func watchdogInterval(usec string) (time.Duration, error) {
	n, err := strconv.ParseInt(usec, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing WATCHDOG_USEC: %w", err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("WATCHDOG_USEC must be positive, got %d", n)
	}
	return time.Duration(n) * time.Microsecond / 2, nil
}
